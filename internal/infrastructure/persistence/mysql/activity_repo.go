package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/xiebiao/seckill/internal/domain/seckill"
	apperrors "github.com/xiebiao/seckill/pkg/errors"
)

// activityRepository 秒杀活动仓储实现(MySQL)
type activityRepository struct {
	db *gorm.DB
}

// NewActivityRepository 创建活动仓储
func NewActivityRepository(db *gorm.DB) seckill.ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Create(ctx context.Context, a *seckill.Activity) error {
	model := toActivityModel(a)
	if err := conn(ctx, r.db).Create(model).Error; err != nil {
		return apperrors.Wrap(err, "创建秒杀活动失败")
	}
	a.AssignID(model.ID)
	return nil
}

func (r *activityRepository) FindByID(ctx context.Context, id uint) (*seckill.Activity, error) {
	var model ActivityModel
	if err := conn(ctx, r.db).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, seckill.ErrActivityNotFound
		}
		return nil, apperrors.Wrap(err, "查询秒杀活动失败")
	}
	return toActivityEntity(&model), nil
}

func (r *activityRepository) Update(ctx context.Context, a *seckill.Activity) error {
	if err := conn(ctx, r.db).Save(toActivityModel(a)).Error; err != nil {
		return apperrors.Wrap(err, "更新秒杀活动失败")
	}
	return nil
}

func (r *activityRepository) Delete(ctx context.Context, id uint) error {
	result := conn(ctx, r.db).Delete(&ActivityModel{}, id)
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "删除秒杀活动失败")
	}
	if result.RowsAffected == 0 {
		return seckill.ErrActivityNotFound
	}
	return nil
}

// List 分页查询，按创建时间倒序
func (r *activityRepository) List(ctx context.Context, params seckill.ActivityListParams) ([]*seckill.Activity, int64, error) {
	var (
		models []ActivityModel
		total  int64
	)

	query := conn(ctx, r.db).Model(&ActivityModel{})
	if params.Status != "" {
		query = query.Where("status = ?", string(params.Status))
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Wrap(err, "查询秒杀活动总数失败")
	}

	err := query.Order("created_at DESC").Order("id DESC").
		Limit(params.PageSize).
		Offset(pageOffset(params.Page, params.PageSize)).
		Find(&models).Error
	if err != nil {
		return nil, 0, apperrors.Wrap(err, "查询秒杀活动列表失败")
	}

	activities := make([]*seckill.Activity, len(models))
	for i := range models {
		activities[i] = toActivityEntity(&models[i])
	}
	return activities, total, nil
}

func toActivityModel(a *seckill.Activity) *ActivityModel {
	s := a.State()
	return &ActivityModel{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		Status:      string(s.Status),
		IsEnabled:   s.Enabled,
		Rules:       s.Rules,
		Remark:      s.Remark,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func toActivityEntity(m *ActivityModel) *seckill.Activity {
	return seckill.RestoreActivity(seckill.ActivityState{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Status:      seckill.ActivityStatus(m.Status),
		Enabled:     m.IsEnabled,
		Rules:       m.Rules,
		Remark:      m.Remark,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	})
}
