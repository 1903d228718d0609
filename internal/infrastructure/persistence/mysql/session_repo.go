package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/seckill/internal/domain/seckill"
	apperrors "github.com/xiebiao/seckill/pkg/errors"
)

// sessionRepository 秒杀场次仓储实现(MySQL)
type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository 创建场次仓储
func NewSessionRepository(db *gorm.DB) seckill.SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, s *seckill.Session) error {
	model := toSessionModel(s)
	if err := conn(ctx, r.db).Create(model).Error; err != nil {
		return apperrors.Wrap(err, "创建秒杀场次失败")
	}
	s.AssignID(model.ID)
	return nil
}

func (r *sessionRepository) FindByID(ctx context.Context, id uint) (*seckill.Session, error) {
	var model SessionModel
	if err := conn(ctx, r.db).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, seckill.ErrSessionNotFound
		}
		return nil, apperrors.Wrap(err, "查询秒杀场次失败")
	}
	return toSessionEntity(&model), nil
}

// LockByID 悲观锁查询场次，只在事务内有意义
// SELECT * FROM seckill_sessions WHERE id = ? FOR UPDATE
func (r *sessionRepository) LockByID(ctx context.Context, id uint) (*seckill.Session, error) {
	var model SessionModel
	err := conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, seckill.ErrSessionNotFound
		}
		return nil, apperrors.Wrap(err, "锁定秒杀场次失败")
	}
	return toSessionEntity(&model), nil
}

// Update 保存后台可编辑字段和状态
// sold只由Sell的条件UPDATE修改，这里不覆盖，避免读改写期间的并发售出被回滚
func (r *sessionRepository) Update(ctx context.Context, s *seckill.Session) error {
	model := toSessionModel(s)
	result := conn(ctx, r.db).Model(&SessionModel{ID: model.ID}).
		Select("start_time", "end_time", "status", "max_quantity_per_user", "total_quantity",
			"quantity", "sort_order", "is_enabled", "remark", "updated_at").
		Updates(model)
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "更新秒杀场次失败")
	}
	return nil
}

// Delete 删除场次及其秒杀商品
func (r *sessionRepository) Delete(ctx context.Context, id uint) error {
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&ProductModel{}).Error; err != nil {
			return apperrors.Wrap(err, "删除场次商品失败")
		}
		result := tx.Delete(&SessionModel{}, id)
		if result.Error != nil {
			return apperrors.Wrap(result.Error, "删除秒杀场次失败")
		}
		if result.RowsAffected == 0 {
			return seckill.ErrSessionNotFound
		}
		return nil
	})
}

func (r *sessionRepository) ListByActivity(ctx context.Context, activityID uint) ([]*seckill.Session, error) {
	var models []SessionModel
	err := conn(ctx, r.db).
		Where("activity_id = ?", activityID).
		Order("sort_order ASC").Order("start_time ASC").
		Find(&models).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询活动场次失败")
	}
	return toSessionEntities(models), nil
}

func (r *sessionRepository) CountByActivity(ctx context.Context, activityID uint) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&SessionModel{}).Where("activity_id = ?", activityID).Count(&count).Error
	if err != nil {
		return 0, apperrors.Wrap(err, "统计活动场次失败")
	}
	return count, nil
}

func (r *sessionRepository) ListStartingBetween(ctx context.Context, from, to time.Time) ([]*seckill.Session, error) {
	var models []SessionModel
	err := conn(ctx, r.db).
		Where("is_enabled = ? AND status = ?", true, string(seckill.SessionPending)).
		Where("start_time >= ? AND start_time <= ?", from, to).
		Order("start_time ASC").
		Find(&models).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询待预热场次失败")
	}
	return toSessionEntities(models), nil
}

func (r *sessionRepository) ListDueForStart(ctx context.Context, now time.Time) ([]*seckill.Session, error) {
	var models []SessionModel
	err := conn(ctx, r.db).
		Where("is_enabled = ? AND status = ?", true, string(seckill.SessionPending)).
		Where("start_time <= ? AND end_time > ?", now, now).
		Find(&models).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询待开始场次失败")
	}
	return toSessionEntities(models), nil
}

func (r *sessionRepository) ListDueForEnd(ctx context.Context, now time.Time) ([]*seckill.Session, error) {
	var models []SessionModel
	err := conn(ctx, r.db).
		Where("end_time <= ?", now).
		Where("status NOT IN ?", []string{string(seckill.SessionEnded), string(seckill.SessionCancelled)}).
		Find(&models).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询待结束场次失败")
	}
	return toSessionEntities(models), nil
}

func toSessionModel(s *seckill.Session) *SessionModel {
	st := s.State()
	return &SessionModel{
		ID:                 st.ID,
		ActivityID:         st.ActivityID,
		StartTime:          st.StartTime,
		EndTime:            st.EndTime,
		Status:             string(st.Status),
		MaxQuantityPerUser: st.MaxQuantityPerUser,
		TotalQuantity:      st.TotalQuantity,
		Quantity:           st.Quantity,
		Sold:               st.Sold,
		SortOrder:          st.SortOrder,
		IsEnabled:          st.Enabled,
		Remark:             st.Remark,
		CreatedAt:          st.CreatedAt,
		UpdatedAt:          st.UpdatedAt,
	}
}

func toSessionEntity(m *SessionModel) *seckill.Session {
	return seckill.RestoreSession(seckill.SessionState{
		ID:                 m.ID,
		ActivityID:         m.ActivityID,
		StartTime:          m.StartTime,
		EndTime:            m.EndTime,
		Status:             seckill.SessionStatus(m.Status),
		MaxQuantityPerUser: m.MaxQuantityPerUser,
		TotalQuantity:      m.TotalQuantity,
		Quantity:           m.Quantity,
		Sold:               m.Sold,
		SortOrder:          m.SortOrder,
		Enabled:            m.IsEnabled,
		Remark:             m.Remark,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	})
}

func toSessionEntities(models []SessionModel) []*seckill.Session {
	sessions := make([]*seckill.Session, len(models))
	for i := range models {
		sessions[i] = toSessionEntity(&models[i])
	}
	return sessions
}
