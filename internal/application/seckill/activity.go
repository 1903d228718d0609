package seckill

import (
	"context"
	"time"

	"go.uber.org/zap"

	domain "github.com/xiebiao/seckill/internal/domain/seckill"
	"github.com/xiebiao/seckill/pkg/logger"
)

// ActivityUseCase 活动管理用例
// 领域服务负责规则校验和持久化，这里负责缓存失效和事件发布
type ActivityUseCase struct {
	svc    domain.ActivityService
	warm   *CacheWarmService
	events EventPublisher
	now    func() time.Time
}

// NewActivityUseCase 创建活动管理用例
func NewActivityUseCase(svc domain.ActivityService, warm *CacheWarmService, events EventPublisher, now func() time.Time) *ActivityUseCase {
	if events == nil {
		events = NopPublisher{}
	}
	if now == nil {
		now = time.Now
	}
	return &ActivityUseCase{svc: svc, warm: warm, events: events, now: now}
}

func (uc *ActivityUseCase) Create(ctx context.Context, params domain.ActivityParams) (*domain.Activity, error) {
	return uc.svc.Create(ctx, params)
}

func (uc *ActivityUseCase) Get(ctx context.Context, id uint) (*domain.Activity, error) {
	return uc.svc.Get(ctx, id)
}

func (uc *ActivityUseCase) List(ctx context.Context, params domain.ActivityListParams) ([]*domain.Activity, int64, error) {
	return uc.svc.List(ctx, params)
}

func (uc *ActivityUseCase) Update(ctx context.Context, id uint, params domain.ActivityParams) (*domain.Activity, error) {
	return uc.svc.Update(ctx, id, params)
}

func (uc *ActivityUseCase) Delete(ctx context.Context, id uint) error {
	return uc.svc.Delete(ctx, id)
}

func (uc *ActivityUseCase) ToggleEnabled(ctx context.Context, id uint) (*domain.Activity, error) {
	return uc.svc.ToggleEnabled(ctx, id)
}

// Cancel 取消活动并清理其场次缓存
func (uc *ActivityUseCase) Cancel(ctx context.Context, id uint) (*domain.Activity, error) {
	activity, err := uc.svc.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	uc.evict(ctx, id)
	publishEvent(ctx, uc.events, domain.NewEvent(domain.EventActivityCancelled, id, activity.State(), uc.now()))
	return activity, nil
}

func (uc *ActivityUseCase) Start(ctx context.Context, id uint) (*domain.Activity, error) {
	activity, err := uc.svc.Start(ctx, id)
	if err != nil {
		return nil, err
	}
	publishEvent(ctx, uc.events, domain.NewEvent(domain.EventActivityStarted, id, activity.State(), uc.now()))
	return activity, nil
}

// End 结束活动并清理其场次缓存
func (uc *ActivityUseCase) End(ctx context.Context, id uint) (*domain.Activity, error) {
	activity, err := uc.svc.End(ctx, id)
	if err != nil {
		return nil, err
	}
	uc.evict(ctx, id)
	publishEvent(ctx, uc.events, domain.NewEvent(domain.EventActivityEnded, id, activity.State(), uc.now()))
	return activity, nil
}

// Warm 手动预热活动下全部场次
func (uc *ActivityUseCase) Warm(ctx context.Context, id uint) error {
	return uc.warm.WarmActivity(ctx, id)
}

// Evict 手动清理活动下全部场次缓存
func (uc *ActivityUseCase) Evict(ctx context.Context, id uint) error {
	return uc.warm.EvictActivity(ctx, id)
}

func (uc *ActivityUseCase) evict(ctx context.Context, id uint) {
	if err := uc.warm.EvictActivity(ctx, id); err != nil {
		logger.WithContext(ctx).Warn("清理活动缓存失败", zap.Uint("activity_id", id), zap.Error(err))
	}
}
