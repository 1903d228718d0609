package seckill

import (
	"strings"
	"time"
)

// ActivityStatus 活动状态
type ActivityStatus string

const (
	ActivityPending   ActivityStatus = "pending"
	ActivityActive    ActivityStatus = "active"
	ActivityEnded     ActivityStatus = "ended"
	ActivityCancelled ActivityStatus = "cancelled"
)

// Activity 秒杀活动（聚合根）
// DDD设计说明:
// 1. 活动是场次的容器，场次通过ActivityID反向引用活动
// 2. 字段不对外暴露，状态只能通过领域方法迁移
// 3. 已有销售的数据通过状态迁移退役，而不是物理删除
type Activity struct {
	id          uint
	title       string
	description string
	status      ActivityStatus
	enabled     bool
	rules       string // 活动策略（JSON文本，由后台维护）
	remark      string
	createdAt   time.Time
	updatedAt   time.Time
}

// ActivityParams 创建/编辑活动的参数
type ActivityParams struct {
	Title       string
	Description string
	Rules       string
	Remark      string
	Enabled     bool
}

// ActivityState 活动的存储快照
type ActivityState struct {
	ID          uint           `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      ActivityStatus `json:"status"`
	Enabled     bool           `json:"is_enabled"`
	Rules       string         `json:"rules"`
	Remark      string         `json:"remark"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NewActivity 创建新活动（工厂方法）
func NewActivity(params ActivityParams, now time.Time) (*Activity, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, ErrInvalidTitle
	}
	return &Activity{
		title:       title,
		description: params.Description,
		status:      ActivityPending,
		enabled:     params.Enabled,
		rules:       params.Rules,
		remark:      params.Remark,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// RestoreActivity 从存储重建活动，不做业务校验
func RestoreActivity(s ActivityState) *Activity {
	return &Activity{
		id:          s.ID,
		title:       s.Title,
		description: s.Description,
		status:      s.Status,
		enabled:     s.Enabled,
		rules:       s.Rules,
		remark:      s.Remark,
		createdAt:   s.CreatedAt,
		updatedAt:   s.UpdatedAt,
	}
}

// State 导出快照
func (a *Activity) State() ActivityState {
	return ActivityState{
		ID:          a.id,
		Title:       a.title,
		Description: a.description,
		Status:      a.status,
		Enabled:     a.enabled,
		Rules:       a.rules,
		Remark:      a.remark,
		CreatedAt:   a.createdAt,
		UpdatedAt:   a.updatedAt,
	}
}

func (a *Activity) ID() uint               { return a.id }
func (a *Activity) Title() string          { return a.title }
func (a *Activity) Description() string    { return a.description }
func (a *Activity) Status() ActivityStatus { return a.status }
func (a *Activity) IsEnabled() bool        { return a.enabled }
func (a *Activity) Rules() string          { return a.rules }
func (a *Activity) Remark() string         { return a.remark }
func (a *Activity) CreatedAt() time.Time   { return a.createdAt }
func (a *Activity) UpdatedAt() time.Time   { return a.updatedAt }

// AssignID 持久化后回填自增ID
func (a *Activity) AssignID(id uint) { a.id = id }

// =========================================
// 生命周期规则
// =========================================

func (a *Activity) CanBeEdited() bool {
	return a.status != ActivityActive && a.status != ActivityEnded
}

func (a *Activity) CanBeDeleted() bool {
	return a.status != ActivityActive
}

func (a *Activity) CanBeCancelled() bool {
	return a.status != ActivityEnded && a.status != ActivityCancelled
}

func (a *Activity) CanBeEnabled() bool {
	return a.status != ActivityCancelled && a.status != ActivityEnded
}

// IsClosed 已结束或已取消（不能再挂新场次）
func (a *Activity) IsClosed() bool {
	return a.status == ActivityEnded || a.status == ActivityCancelled
}

// IsOnSale 已启用且未关闭，其下场次才允许购买
func (a *Activity) IsOnSale() bool {
	return a.enabled && !a.IsClosed()
}

// Update 编辑活动信息
func (a *Activity) Update(params ActivityParams, now time.Time) error {
	if !a.CanBeEdited() {
		return ErrActivityNotEditable
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return ErrInvalidTitle
	}
	a.title = title
	a.description = params.Description
	a.rules = params.Rules
	a.remark = params.Remark
	a.updatedAt = now
	return nil
}

// SetEnabled 启用/禁用，启用需要活动未取消、未结束
func (a *Activity) SetEnabled(enabled bool, now time.Time) error {
	if enabled && !a.CanBeEnabled() {
		return ErrActivityNotEnableable
	}
	a.enabled = enabled
	a.updatedAt = now
	return nil
}

// ToggleEnabled 切换启用状态
func (a *Activity) ToggleEnabled(now time.Time) error {
	return a.SetEnabled(!a.enabled, now)
}

// Cancel 取消活动
func (a *Activity) Cancel(now time.Time) error {
	if !a.CanBeCancelled() {
		return ErrActivityNotCancellable
	}
	a.status = ActivityCancelled
	a.updatedAt = now
	return nil
}

// Start 开始活动，要求未开始且已启用
func (a *Activity) Start(now time.Time) error {
	if a.status != ActivityPending || !a.enabled {
		return ErrActivityNotStartable
	}
	a.status = ActivityActive
	a.updatedAt = now
	return nil
}

// End 结束活动
func (a *Activity) End(now time.Time) error {
	if a.status == ActivityEnded {
		return ErrActivityAlreadyEnded
	}
	a.status = ActivityEnded
	a.updatedAt = now
	return nil
}
