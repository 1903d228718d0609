package seckill

import (
	"context"
	"time"
)

// SessionService 场次领域服务接口
type SessionService interface {
	// Create 业务规则: 活动存在且未结束/取消，开始时间不能落在锁定窗口内
	Create(ctx context.Context, activityID uint, params SessionParams) (*Session, error)
	Get(ctx context.Context, id uint) (*Session, error)
	ListByActivity(ctx context.Context, activityID uint) ([]*Session, error)

	// Update 业务规则: 当前和修改后的时间窗口都不在锁定窗口内，总库存不低于已售及商品库存之和
	Update(ctx context.Context, id uint, params SessionParams) (*Session, error)

	// Delete 业务规则: 不在锁定窗口内、非进行中、没有销售记录
	Delete(ctx context.Context, id uint) error

	ToggleEnabled(ctx context.Context, id uint) (*Session, error)
	Cancel(ctx context.Context, id uint) (*Session, error)
	Start(ctx context.Context, id uint) (*Session, error)
	End(ctx context.Context, id uint) (*Session, error)
}

type sessionService struct {
	activities ActivityRepository
	sessions   SessionRepository
	products   ProductRepository
	guard      LockoutGuard
	tx         Transactor
	now        func() time.Time
}

// NewSessionService 创建场次领域服务，tx为nil时不开启事务
func NewSessionService(
	activities ActivityRepository,
	sessions SessionRepository,
	products ProductRepository,
	guard LockoutGuard,
	tx Transactor,
	now func() time.Time,
) SessionService {
	if tx == nil {
		tx = directTx{}
	}
	if now == nil {
		now = time.Now
	}
	return &sessionService{
		activities: activities,
		sessions:   sessions,
		products:   products,
		guard:      guard,
		tx:         tx,
		now:        now,
	}
}

func (s *sessionService) Create(ctx context.Context, activityID uint, params SessionParams) (*Session, error) {
	activity, err := s.activities.FindByID(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if activity.IsClosed() {
		return nil, ErrActivityClosed
	}

	now := s.now()
	session, err := NewSession(activityID, params, now)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CheckPeriod(session.Period(), now); err != nil {
		return nil, err
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *sessionService) Get(ctx context.Context, id uint) (*Session, error) {
	return s.sessions.FindByID(ctx, id)
}

func (s *sessionService) ListByActivity(ctx context.Context, activityID uint) ([]*Session, error) {
	if _, err := s.activities.FindByID(ctx, activityID); err != nil {
		return nil, err
	}
	return s.sessions.ListByActivity(ctx, activityID)
}

// Update 锁定场次行后再校验容量，与并发的商品增改串行
func (s *sessionService) Update(ctx context.Context, id uint, params SessionParams) (*Session, error) {
	var session *Session
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		var err error
		session, err = s.sessions.LockByID(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		if err := s.guard.Check(session, now); err != nil {
			return err
		}
		if err := session.Update(params, now); err != nil {
			return err
		}
		if err := s.guard.CheckPeriod(session.Period(), now); err != nil {
			return err
		}

		// 场次总库存不能小于商品库存之和
		products, err := s.products.ListBySession(ctx, id)
		if err != nil {
			return err
		}
		if sumQuantity(products, 0) > session.Rules().TotalQuantity() {
			return ErrSessionCapacity
		}
		return s.sessions.Update(ctx, session)
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *sessionService) Delete(ctx context.Context, id uint) error {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.guard.Check(session, s.now()); err != nil {
		return err
	}
	if !session.CanBeDeleted() {
		return ErrSessionNotDeletable
	}
	return s.sessions.Delete(ctx, id)
}

func (s *sessionService) ToggleEnabled(ctx context.Context, id uint) (*Session, error) {
	return s.mutate(ctx, id, true, func(session *Session, now time.Time) error {
		return session.ToggleEnabled(now)
	})
}

func (s *sessionService) Cancel(ctx context.Context, id uint) (*Session, error) {
	return s.mutate(ctx, id, false, func(session *Session, now time.Time) error {
		return session.Cancel(now)
	})
}

func (s *sessionService) Start(ctx context.Context, id uint) (*Session, error) {
	return s.mutate(ctx, id, false, func(session *Session, now time.Time) error {
		return session.Start(now)
	})
}

func (s *sessionService) End(ctx context.Context, id uint) (*Session, error) {
	return s.mutate(ctx, id, false, func(session *Session, now time.Time) error {
		return session.End(now)
	})
}

// mutate guarded为true时先做锁定窗口校验（启用/禁用）；状态迁移不受锁定窗口限制
func (s *sessionService) mutate(ctx context.Context, id uint, guarded bool, fn func(*Session, time.Time) error) (*Session, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if guarded {
		if err := s.guard.Check(session, now); err != nil {
			return nil, err
		}
	}
	if err := fn(session, now); err != nil {
		return nil, err
	}
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// sumQuantity 商品库存之和，excludeID对应的商品不计入
func sumQuantity(products []*Product, excludeID uint) int {
	total := 0
	for _, p := range products {
		if excludeID != 0 && p.ID() == excludeID {
			continue
		}
		total += p.Stock().Quantity()
	}
	return total
}
