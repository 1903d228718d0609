package seckill

import (
	"context"

	"go.uber.org/zap"

	domain "github.com/xiebiao/seckill/internal/domain/seckill"
	"github.com/xiebiao/seckill/pkg/logger"
)

// ProductUseCase 秒杀商品管理用例
type ProductUseCase struct {
	svc  domain.ProductService
	warm *CacheWarmService
}

// NewProductUseCase 创建秒杀商品管理用例
func NewProductUseCase(svc domain.ProductService, warm *CacheWarmService) *ProductUseCase {
	return &ProductUseCase{svc: svc, warm: warm}
}

func (uc *ProductUseCase) Create(ctx context.Context, sessionID uint, params domain.ProductParams) (*domain.Product, error) {
	product, err := uc.svc.Create(ctx, sessionID, params)
	if err != nil {
		return nil, err
	}
	uc.evict(ctx, sessionID)
	return product, nil
}

func (uc *ProductUseCase) Get(ctx context.Context, id uint) (*domain.Product, error) {
	return uc.svc.Get(ctx, id)
}

func (uc *ProductUseCase) ListBySession(ctx context.Context, sessionID uint) ([]*domain.Product, error) {
	return uc.svc.ListBySession(ctx, sessionID)
}

func (uc *ProductUseCase) Update(ctx context.Context, id uint, params domain.ProductParams) (*domain.Product, error) {
	product, err := uc.svc.Update(ctx, id, params)
	if err != nil {
		return nil, err
	}
	uc.evict(ctx, product.SessionID())
	return product, nil
}

func (uc *ProductUseCase) Delete(ctx context.Context, id uint) error {
	product, err := uc.svc.Delete(ctx, id)
	if err != nil {
		return err
	}
	uc.evict(ctx, product.SessionID())
	return nil
}

func (uc *ProductUseCase) ToggleEnabled(ctx context.Context, id uint) (*domain.Product, error) {
	product, err := uc.svc.ToggleEnabled(ctx, id)
	if err != nil {
		return nil, err
	}
	uc.evict(ctx, product.SessionID())
	return product, nil
}

func (uc *ProductUseCase) evict(ctx context.Context, sessionID uint) {
	if err := uc.warm.EvictSession(ctx, sessionID); err != nil {
		logger.WithContext(ctx).Warn("清理场次缓存失败", zap.Uint("session_id", sessionID), zap.Error(err))
	}
}
