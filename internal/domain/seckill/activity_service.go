package seckill

import (
	"context"
	"time"
)

// ActivityService 活动领域服务接口
// 所有生命周期校验都在写库之前完成
type ActivityService interface {
	Create(ctx context.Context, params ActivityParams) (*Activity, error)
	Get(ctx context.Context, id uint) (*Activity, error)
	List(ctx context.Context, params ActivityListParams) ([]*Activity, int64, error)
	Update(ctx context.Context, id uint, params ActivityParams) (*Activity, error)

	// Delete 业务规则: 非进行中、没有子场次处于锁定窗口、没有场次
	Delete(ctx context.Context, id uint) error

	ToggleEnabled(ctx context.Context, id uint) (*Activity, error)

	// Cancel 取消活动，并在同一事务中取消其下未结束的场次
	Cancel(ctx context.Context, id uint) (*Activity, error)

	Start(ctx context.Context, id uint) (*Activity, error)

	// End 结束活动，并在同一事务中结束其下未结束的场次
	End(ctx context.Context, id uint) (*Activity, error)
}

type activityService struct {
	activities ActivityRepository
	sessions   SessionRepository
	guard      LockoutGuard
	tx         Transactor
	now        func() time.Time
}

// NewActivityService 创建活动领域服务，tx为nil时不开启事务
func NewActivityService(
	activities ActivityRepository,
	sessions SessionRepository,
	guard LockoutGuard,
	tx Transactor,
	now func() time.Time,
) ActivityService {
	if tx == nil {
		tx = directTx{}
	}
	if now == nil {
		now = time.Now
	}
	return &activityService{
		activities: activities,
		sessions:   sessions,
		guard:      guard,
		tx:         tx,
		now:        now,
	}
}

func (s *activityService) Create(ctx context.Context, params ActivityParams) (*Activity, error) {
	activity, err := NewActivity(params, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.activities.Create(ctx, activity); err != nil {
		return nil, err
	}
	return activity, nil
}

func (s *activityService) Get(ctx context.Context, id uint) (*Activity, error) {
	return s.activities.FindByID(ctx, id)
}

func (s *activityService) List(ctx context.Context, params ActivityListParams) ([]*Activity, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}
	return s.activities.List(ctx, params)
}

func (s *activityService) Update(ctx context.Context, id uint, params ActivityParams) (*Activity, error) {
	return s.mutate(ctx, id, func(a *Activity, now time.Time) error {
		return a.Update(params, now)
	})
}

func (s *activityService) Delete(ctx context.Context, id uint) error {
	activity, err := s.activities.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !activity.CanBeDeleted() {
		return ErrActivityNotDeletable
	}

	sessions, err := s.sessions.ListByActivity(ctx, id)
	if err != nil {
		return err
	}
	now := s.now()
	for _, session := range sessions {
		if err := s.guard.Check(session, now); err != nil {
			return err
		}
	}
	if len(sessions) > 0 {
		return ErrActivityHasSessions
	}

	return s.activities.Delete(ctx, id)
}

func (s *activityService) ToggleEnabled(ctx context.Context, id uint) (*Activity, error) {
	return s.mutate(ctx, id, func(a *Activity, now time.Time) error {
		return a.ToggleEnabled(now)
	})
}

func (s *activityService) Cancel(ctx context.Context, id uint) (*Activity, error) {
	return s.close(ctx, id,
		func(a *Activity, now time.Time) error { return a.Cancel(now) },
		func(session *Session, now time.Time) error { return session.Cancel(now) },
	)
}

func (s *activityService) Start(ctx context.Context, id uint) (*Activity, error) {
	return s.mutate(ctx, id, func(a *Activity, now time.Time) error {
		return a.Start(now)
	})
}

func (s *activityService) End(ctx context.Context, id uint) (*Activity, error) {
	return s.close(ctx, id,
		func(a *Activity, now time.Time) error { return a.End(now) },
		func(session *Session, now time.Time) error { return session.End(now) },
	)
}

// close 关闭活动并级联到场次；已结束或已取消的场次保持原状
// 状态迁移不受锁定窗口限制
func (s *activityService) close(
	ctx context.Context,
	id uint,
	closeActivity func(*Activity, time.Time) error,
	closeSession func(*Session, time.Time) error,
) (*Activity, error) {
	var activity *Activity
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		var err error
		activity, err = s.mutate(ctx, id, closeActivity)
		if err != nil {
			return err
		}

		sessions, err := s.sessions.ListByActivity(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		for _, session := range sessions {
			if !session.CanBeCancelled() {
				continue
			}
			if err := closeSession(session, now); err != nil {
				return err
			}
			if err := s.sessions.Update(ctx, session); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return activity, nil
}

// mutate 加载 → 领域方法 → 持久化
func (s *activityService) mutate(ctx context.Context, id uint, fn func(*Activity, time.Time) error) (*Activity, error) {
	activity, err := s.activities.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(activity, s.now()); err != nil {
		return nil, err
	}
	if err := s.activities.Update(ctx, activity); err != nil {
		return nil, err
	}
	return activity, nil
}
