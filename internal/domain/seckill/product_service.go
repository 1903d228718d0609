package seckill

import (
	"context"
	"errors"
	"time"
)

// ProductService 秒杀商品领域服务接口
// 商品的增删改和启停都受所属场次锁定窗口约束
type ProductService interface {
	Create(ctx context.Context, sessionID uint, params ProductParams) (*Product, error)
	Get(ctx context.Context, id uint) (*Product, error)
	ListBySession(ctx context.Context, sessionID uint) ([]*Product, error)
	Update(ctx context.Context, id uint, params ProductParams) (*Product, error)
	Delete(ctx context.Context, id uint) (*Product, error)
	ToggleEnabled(ctx context.Context, id uint) (*Product, error)
}

type productService struct {
	sessions SessionRepository
	products ProductRepository
	guard    LockoutGuard
	tx       Transactor
	now      func() time.Time
}

// NewProductService 创建秒杀商品领域服务，tx为nil时不开启事务
func NewProductService(sessions SessionRepository, products ProductRepository, guard LockoutGuard, tx Transactor, now func() time.Time) ProductService {
	if tx == nil {
		tx = directTx{}
	}
	if now == nil {
		now = time.Now
	}
	return &productService{
		sessions: sessions,
		products: products,
		guard:    guard,
		tx:       tx,
		now:      now,
	}
}

// Create 先锁定所属场次，同一场次下的容量校验和写入串行执行
func (s *productService) Create(ctx context.Context, sessionID uint, params ProductParams) (*Product, error) {
	var product *Product
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		session, err := s.sessions.LockByID(ctx, sessionID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := s.guard.Check(session, now); err != nil {
			return err
		}
		if !session.CanBeEdited() {
			return ErrProductNotEditable
		}

		// 同一场次SKU唯一（数据库唯一索引兜底）
		existing, err := s.products.FindBySku(ctx, sessionID, params.SkuID)
		if err == nil && existing != nil {
			return ErrSkuDuplicate
		}
		if err != nil && !errors.Is(err, ErrProductNotFound) {
			return err
		}

		product, err = NewProduct(session, params, now)
		if err != nil {
			return err
		}

		siblings, err := s.products.ListBySession(ctx, sessionID)
		if err != nil {
			return err
		}
		if sumQuantity(siblings, 0)+product.Stock().Quantity() > session.Rules().TotalQuantity() {
			return ErrSessionCapacity
		}
		return s.products.Create(ctx, product)
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *productService) Get(ctx context.Context, id uint) (*Product, error) {
	return s.products.FindByID(ctx, id)
}

func (s *productService) ListBySession(ctx context.Context, sessionID uint) ([]*Product, error) {
	if _, err := s.sessions.FindByID(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.products.ListBySession(ctx, sessionID)
}

func (s *productService) Update(ctx context.Context, id uint, params ProductParams) (*Product, error) {
	return s.mutate(ctx, id, func(ctx context.Context, product *Product, session *Session, now time.Time) error {
		if !session.CanBeEdited() {
			return ErrProductNotEditable
		}
		if err := product.Update(session, params, now); err != nil {
			return err
		}

		siblings, err := s.products.ListBySession(ctx, session.ID())
		if err != nil {
			return err
		}
		if sumQuantity(siblings, product.ID())+product.Stock().Quantity() > session.Rules().TotalQuantity() {
			return ErrSessionCapacity
		}
		return s.products.Update(ctx, product)
	})
}

// Delete 返回被删除的商品，便于调用方清理缓存
func (s *productService) Delete(ctx context.Context, id uint) (*Product, error) {
	return s.mutate(ctx, id, func(ctx context.Context, product *Product, _ *Session, _ time.Time) error {
		if !product.CanBeDeleted() {
			return ErrProductHasSales
		}
		return s.products.Delete(ctx, id)
	})
}

func (s *productService) ToggleEnabled(ctx context.Context, id uint) (*Product, error) {
	return s.mutate(ctx, id, func(ctx context.Context, product *Product, _ *Session, now time.Time) error {
		if err := product.ToggleEnabled(now); err != nil {
			return err
		}
		return s.products.Update(ctx, product)
	})
}

// mutate 事务内加载商品、锁定所属场次并做锁定窗口校验，再执行fn
func (s *productService) mutate(
	ctx context.Context,
	id uint,
	fn func(ctx context.Context, product *Product, session *Session, now time.Time) error,
) (*Product, error) {
	var product *Product
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		var err error
		product, err = s.products.FindByID(ctx, id)
		if err != nil {
			return err
		}
		session, err := s.sessions.LockByID(ctx, product.SessionID())
		if err != nil {
			return err
		}
		now := s.now()
		if err := s.guard.Check(session, now); err != nil {
			return err
		}
		return fn(ctx, product, session, now)
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}
