package seckill

import "time"

// SessionStatus 场次状态
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionActive    SessionStatus = "active"
	SessionEnded     SessionStatus = "ended"
	SessionSoldOut   SessionStatus = "sold_out"
	SessionCancelled SessionStatus = "cancelled"
)

// Session 秒杀场次
// 设计说明:
// 1. 存储的status只是最近一次显式迁移（start/end/cancel/售罄）的结果
// 2. "现在是否在售"以CalculateDynamicStatus为准，读路径不能直接信任status字段
// 3. stock的上限等于rules.totalQuantity
type Session struct {
	id         uint
	activityID uint
	period     SessionPeriod
	status     SessionStatus
	rules      SessionRules
	stock      StockLedger
	sortOrder  int
	enabled    bool
	remark     string
	createdAt  time.Time
	updatedAt  time.Time
}

// SessionParams 创建/编辑场次的参数
type SessionParams struct {
	StartTime          time.Time
	EndTime            time.Time
	MaxQuantityPerUser int
	TotalQuantity      int
	SortOrder          int
	Enabled            bool
	Remark             string
}

// SessionState 场次快照（存储行与缓存JSON共用）
type SessionState struct {
	ID                 uint          `json:"id"`
	ActivityID         uint          `json:"activity_id"`
	StartTime          time.Time     `json:"start_time"`
	EndTime            time.Time     `json:"end_time"`
	Status             SessionStatus `json:"status"`
	MaxQuantityPerUser int           `json:"max_quantity_per_user"`
	TotalQuantity      int           `json:"total_quantity"`
	Quantity           int           `json:"quantity"`
	Sold               int           `json:"sold"`
	SortOrder          int           `json:"sort_order"`
	Enabled            bool          `json:"is_enabled"`
	Remark             string        `json:"remark"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// NewSession 创建新场次
func NewSession(activityID uint, params SessionParams, now time.Time) (*Session, error) {
	period, err := NewSessionPeriod(params.StartTime, params.EndTime)
	if err != nil {
		return nil, err
	}
	rules, err := NewSessionRules(params.MaxQuantityPerUser, params.TotalQuantity)
	if err != nil {
		return nil, err
	}
	stock, err := NewStockLedger(rules.TotalQuantity())
	if err != nil {
		return nil, err
	}
	return &Session{
		activityID: activityID,
		period:     period,
		status:     SessionPending,
		rules:      rules,
		stock:      stock,
		sortOrder:  params.SortOrder,
		enabled:    params.Enabled,
		remark:     params.Remark,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// RestoreSession 从存储或缓存重建场次，不做业务校验
func RestoreSession(s SessionState) *Session {
	return &Session{
		id:         s.ID,
		activityID: s.ActivityID,
		period:     SessionPeriod{start: s.StartTime, end: s.EndTime},
		status:     s.Status,
		rules: SessionRules{
			maxQuantityPerUser: s.MaxQuantityPerUser,
			totalQuantity:      s.TotalQuantity,
		},
		stock:     StockLedger{quantity: s.Quantity, sold: s.Sold},
		sortOrder: s.SortOrder,
		enabled:   s.Enabled,
		remark:    s.Remark,
		createdAt: s.CreatedAt,
		updatedAt: s.UpdatedAt,
	}
}

// State 导出快照
func (s *Session) State() SessionState {
	return SessionState{
		ID:                 s.id,
		ActivityID:         s.activityID,
		StartTime:          s.period.Start(),
		EndTime:            s.period.End(),
		Status:             s.status,
		MaxQuantityPerUser: s.rules.MaxQuantityPerUser(),
		TotalQuantity:      s.rules.TotalQuantity(),
		Quantity:           s.stock.Quantity(),
		Sold:               s.stock.Sold(),
		SortOrder:          s.sortOrder,
		Enabled:            s.enabled,
		Remark:             s.remark,
		CreatedAt:          s.createdAt,
		UpdatedAt:          s.updatedAt,
	}
}

func (s *Session) ID() uint              { return s.id }
func (s *Session) ActivityID() uint      { return s.activityID }
func (s *Session) Period() SessionPeriod { return s.period }
func (s *Session) Status() SessionStatus { return s.status }
func (s *Session) Rules() SessionRules   { return s.rules }
func (s *Session) Stock() StockLedger    { return s.stock }
func (s *Session) SortOrder() int        { return s.sortOrder }
func (s *Session) IsEnabled() bool       { return s.enabled }
func (s *Session) Remark() string        { return s.remark }
func (s *Session) CreatedAt() time.Time  { return s.createdAt }
func (s *Session) UpdatedAt() time.Time  { return s.updatedAt }

// AssignID 持久化后回填自增ID
func (s *Session) AssignID(id uint) { s.id = id }

// CalculateDynamicStatus 根据启用状态、库存、时间窗口推导当前状态
// 优先级: 禁用 > 售罄 > 未开始 > 已结束 > 进行中 > 存储状态
func (s *Session) CalculateDynamicStatus(now time.Time) SessionStatus {
	switch {
	case !s.enabled:
		return SessionCancelled
	case s.stock.IsSoldOut():
		return SessionSoldOut
	case s.period.IsPending(now):
		return SessionPending
	case s.period.IsEnded(now):
		return SessionEnded
	case s.period.IsActive(now):
		return SessionActive
	default:
		return s.status
	}
}

// IsOnSale 当前是否可以购买
func (s *Session) IsOnSale(now time.Time) bool {
	return s.CalculateDynamicStatus(now) == SessionActive
}

// =========================================
// 生命周期规则
// =========================================

func (s *Session) CanBeEdited() bool {
	return s.status != SessionActive && s.status != SessionEnded
}

// CanBeDeleted 进行中或已有销售记录的场次不能删除
func (s *Session) CanBeDeleted() bool {
	return s.status != SessionActive && s.stock.Sold() == 0
}

func (s *Session) CanBeCancelled() bool {
	return s.status != SessionEnded && s.status != SessionCancelled
}

func (s *Session) CanBeEnabled() bool {
	return s.status != SessionCancelled && s.status != SessionEnded
}

// Update 编辑场次；新的总库存不能低于已售数量
func (s *Session) Update(params SessionParams, now time.Time) error {
	if !s.CanBeEdited() {
		return ErrSessionNotEditable
	}
	period, err := NewSessionPeriod(params.StartTime, params.EndTime)
	if err != nil {
		return err
	}
	rules, err := NewSessionRules(params.MaxQuantityPerUser, params.TotalQuantity)
	if err != nil {
		return err
	}
	stock, err := s.stock.Resize(rules.TotalQuantity())
	if err != nil {
		return err
	}
	s.period = period
	s.rules = rules
	s.stock = stock
	s.sortOrder = params.SortOrder
	s.remark = params.Remark
	s.updatedAt = now
	return nil
}

// SetEnabled 启用/禁用
func (s *Session) SetEnabled(enabled bool, now time.Time) error {
	if enabled && !s.CanBeEnabled() {
		return ErrSessionNotEnableable
	}
	s.enabled = enabled
	s.updatedAt = now
	return nil
}

// ToggleEnabled 切换启用状态
func (s *Session) ToggleEnabled(now time.Time) error {
	return s.SetEnabled(!s.enabled, now)
}

// Cancel 取消场次，同时禁用
func (s *Session) Cancel(now time.Time) error {
	if !s.CanBeCancelled() {
		return ErrSessionNotCancellable
	}
	s.status = SessionCancelled
	s.enabled = false
	s.updatedAt = now
	return nil
}

// Start 开始场次
func (s *Session) Start(now time.Time) error {
	if s.status != SessionPending || !s.enabled {
		return ErrSessionNotStartable
	}
	s.status = SessionActive
	s.updatedAt = now
	return nil
}

// End 结束场次
func (s *Session) End(now time.Time) error {
	if s.status == SessionEnded {
		return ErrSessionAlreadyEnded
	}
	s.status = SessionEnded
	s.updatedAt = now
	return nil
}

// Sell 扣减场次库存，售罄时状态置为sold_out
func (s *Session) Sell(qty int, now time.Time) error {
	stock, err := s.stock.Sell(qty)
	if err != nil {
		return err
	}
	s.stock = stock
	if s.stock.IsSoldOut() {
		s.status = SessionSoldOut
	}
	s.updatedAt = now
	return nil
}
