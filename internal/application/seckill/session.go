package seckill

import (
	"context"
	"time"

	"go.uber.org/zap"

	domain "github.com/xiebiao/seckill/internal/domain/seckill"
	"github.com/xiebiao/seckill/pkg/logger"
)

// SessionUseCase 场次管理用例
// 每次成功修改都清理该场次缓存，下次读取时从数据库重新预热
type SessionUseCase struct {
	svc    domain.SessionService
	warm   *CacheWarmService
	events EventPublisher
	now    func() time.Time
}

// NewSessionUseCase 创建场次管理用例
func NewSessionUseCase(svc domain.SessionService, warm *CacheWarmService, events EventPublisher, now func() time.Time) *SessionUseCase {
	if events == nil {
		events = NopPublisher{}
	}
	if now == nil {
		now = time.Now
	}
	return &SessionUseCase{svc: svc, warm: warm, events: events, now: now}
}

func (uc *SessionUseCase) Create(ctx context.Context, activityID uint, params domain.SessionParams) (*domain.Session, error) {
	return uc.svc.Create(ctx, activityID, params)
}

func (uc *SessionUseCase) Get(ctx context.Context, id uint) (*domain.Session, error) {
	return uc.svc.Get(ctx, id)
}

func (uc *SessionUseCase) ListByActivity(ctx context.Context, activityID uint) ([]*domain.Session, error) {
	return uc.svc.ListByActivity(ctx, activityID)
}

func (uc *SessionUseCase) Update(ctx context.Context, id uint, params domain.SessionParams) (*domain.Session, error) {
	session, err := uc.svc.Update(ctx, id, params)
	if err != nil {
		return nil, err
	}
	uc.evict(ctx, id)
	return session, nil
}

func (uc *SessionUseCase) Delete(ctx context.Context, id uint) error {
	if err := uc.svc.Delete(ctx, id); err != nil {
		return err
	}
	uc.evict(ctx, id)
	return nil
}

func (uc *SessionUseCase) ToggleEnabled(ctx context.Context, id uint) (*domain.Session, error) {
	session, err := uc.svc.ToggleEnabled(ctx, id)
	if err != nil {
		return nil, err
	}
	uc.evict(ctx, id)
	return session, nil
}

func (uc *SessionUseCase) Cancel(ctx context.Context, id uint) (*domain.Session, error) {
	session, err := uc.svc.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	uc.evict(ctx, id)
	publishEvent(ctx, uc.events, domain.NewEvent(domain.EventSessionCancelled, id, session.State(), uc.now()))
	return session, nil
}

// Start 开始场次，缓存中还没有时顺带预热
func (uc *SessionUseCase) Start(ctx context.Context, id uint) (*domain.Session, error) {
	session, err := uc.svc.Start(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := uc.warm.EnsureWarmed(ctx, id); err != nil {
		logger.WithContext(ctx).Warn("开场预热失败", zap.Uint("session_id", id), zap.Error(err))
	}
	publishEvent(ctx, uc.events, domain.NewEvent(domain.EventSessionStarted, id, session.State(), uc.now()))
	return session, nil
}

func (uc *SessionUseCase) End(ctx context.Context, id uint) (*domain.Session, error) {
	session, err := uc.svc.End(ctx, id)
	if err != nil {
		return nil, err
	}
	uc.evict(ctx, id)
	publishEvent(ctx, uc.events, domain.NewEvent(domain.EventSessionEnded, id, session.State(), uc.now()))
	return session, nil
}

// Warm 手动预热
func (uc *SessionUseCase) Warm(ctx context.Context, id uint) error {
	return uc.warm.WarmSession(ctx, id)
}

// Evict 手动清理缓存
func (uc *SessionUseCase) Evict(ctx context.Context, id uint) error {
	return uc.warm.EvictSession(ctx, id)
}

func (uc *SessionUseCase) evict(ctx context.Context, id uint) {
	if err := uc.warm.EvictSession(ctx, id); err != nil {
		logger.WithContext(ctx).Warn("清理场次缓存失败", zap.Uint("session_id", id), zap.Error(err))
	}
}
