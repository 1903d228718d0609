package seckill

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	domain "github.com/xiebiao/seckill/internal/domain/seckill"
	"github.com/xiebiao/seckill/pkg/circuitbreaker"
	apperrors "github.com/xiebiao/seckill/pkg/errors"
	"github.com/xiebiao/seckill/pkg/logger"
	"github.com/xiebiao/seckill/pkg/metrics"
	"github.com/xiebiao/seckill/pkg/saga"
	"github.com/xiebiao/seckill/pkg/tracing"
)

// StockCounter 缓存层预扣库存
type StockCounter interface {
	Reserve(ctx context.Context, sessionID, skuID, userID uint, quantity, maxPerUser int) (domain.ReserveResult, error)
	Release(ctx context.Context, sessionID, skuID, userID uint, quantity int) error
}

// PurchaseOutcome 抢购结果
type PurchaseOutcome string

const (
	OutcomeSuccess       PurchaseOutcome = "success"
	OutcomeSoldOut       PurchaseOutcome = "sold_out"
	OutcomeLimitExceeded PurchaseOutcome = "limit_exceeded"
)

// PurchaseCommand 抢购请求
type PurchaseCommand struct {
	SessionID uint
	SkuID     uint
	UserID    uint // 从JWT中提取
	Quantity  int
}

// PurchaseResult 抢购结果
// 售罄和超限购是正常的负面结果，通过Outcome返回，error为nil
type PurchaseResult struct {
	Outcome      PurchaseOutcome `json:"outcome"`
	SessionID    uint            `json:"session_id"`
	SkuID        uint            `json:"product_sku_id"`
	Quantity     int             `json:"quantity"`
	SeckillPrice int64           `json:"seckill_price"`
	Purchased    int             `json:"purchased"` // 用户在该商品上的累计购买数量
	Remaining    int             `json:"remaining"` // 扣减后商品剩余库存
}

// PurchaseUseCase 抢购用例
//
// 流程（Saga）：
//  1. Redis Lua预扣库存并登记已购数量，补偿为回补
//  2. 数据库条件UPDATE扣减库存和限购，这是最终裁决
//
// Redis不可用或场次未预热时跳过第1步直接扣库（降级），不会因为缓存故障拒绝抢购。
type PurchaseUseCase struct {
	warm       *CacheWarmService
	activities domain.ActivityRepository
	repo       domain.ProductRepository
	counter    StockCounter
	breaker    *circuitbreaker.CircuitBreaker
	events     EventPublisher
	timeout    time.Duration
	now        func() time.Time
}

// NewPurchaseUseCase 创建抢购用例
func NewPurchaseUseCase(
	warm *CacheWarmService,
	activities domain.ActivityRepository,
	repo domain.ProductRepository,
	counter StockCounter,
	breaker *circuitbreaker.CircuitBreaker,
	events EventPublisher,
	timeout time.Duration,
	now func() time.Time,
) *PurchaseUseCase {
	if breaker == nil {
		breaker = circuitbreaker.NewCircuitBreaker("seckill-stock", circuitbreaker.Config{})
	}
	if events == nil {
		events = NopPublisher{}
	}
	if now == nil {
		now = time.Now
	}
	return &PurchaseUseCase{
		warm:       warm,
		activities: activities,
		repo:       repo,
		counter:    counter,
		breaker:    breaker,
		events:     events,
		timeout:    timeout,
		now:        now,
	}
}

// Execute 执行抢购
func (uc *PurchaseUseCase) Execute(ctx context.Context, cmd PurchaseCommand) (result *PurchaseResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "Purchase.Execute",
		attribute.Int64("session_id", int64(cmd.SessionID)),
		attribute.Int64("sku_id", int64(cmd.SkuID)),
		attribute.Int("quantity", cmd.Quantity),
	)
	start := time.Now()
	defer func() {
		outcome := "error"
		if err == nil {
			outcome = string(result.Outcome)
		}
		span.SetAttributes(attribute.String("outcome", outcome))
		tracing.RecordError(span, err)
		span.End()
		metrics.PurchaseTotal.WithLabelValues(outcome).Inc()
		metrics.ObserveSince(metrics.PurchaseDuration, start)
	}()

	if cmd.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	session, err := uc.warm.GetSession(ctx, cmd.SessionID)
	if err != nil {
		return nil, err
	}
	now := uc.now()
	if session.Stock().IsSoldOut() {
		return uc.reject(ctx, cmd, OutcomeSoldOut, nil), nil
	}
	if !session.IsOnSale(now) {
		return nil, domain.ErrSessionNotOnSale
	}

	activity, err := uc.activities.FindByID(ctx, session.ActivityID())
	if err != nil {
		return nil, err
	}
	if !activity.IsOnSale() {
		return nil, domain.ErrActivityNotOnSale
	}

	// 预检只用于提前拒绝，缓存中的已售数量可能滞后，最终以第2步为准
	product, err := uc.warm.GetProductBySkuID(ctx, cmd.SessionID, cmd.SkuID)
	if err != nil {
		return nil, err
	}
	if !product.CanSell(cmd.Quantity) {
		if !product.IsEnabled() && !product.Stock().IsSoldOut() {
			return nil, domain.ErrProductNotOnSale
		}
		return uc.reject(ctx, cmd, OutcomeSoldOut, product), nil
	}
	purchased, err := uc.repo.PurchasedQuantity(ctx, cmd.SessionID, cmd.SkuID, cmd.UserID)
	if err != nil {
		return nil, err
	}
	if !product.CanUserPurchase(cmd.Quantity, purchased) {
		return uc.reject(ctx, cmd, OutcomeLimitExceeded, product), nil
	}

	var (
		reserved bool
		sold     *domain.SellResult
	)
	tx := saga.NewSaga("purchase", uc.timeout)
	tx.AddStep("预扣库存",
		func(ctx context.Context) error {
			var err error
			reserved, err = uc.reserve(ctx, cmd, product.MaxQuantityPerUser())
			return err
		},
		func(ctx context.Context) error {
			if !reserved {
				return nil
			}
			return uc.counter.Release(ctx, cmd.SessionID, cmd.SkuID, cmd.UserID, cmd.Quantity)
		},
	)
	tx.AddStep("扣减库存",
		func(ctx context.Context) error {
			var err error
			sold, err = uc.repo.Sell(ctx, domain.SellCommand{
				SessionID: cmd.SessionID,
				SkuID:     cmd.SkuID,
				UserID:    cmd.UserID,
				Quantity:  cmd.Quantity,
			})
			return err
		},
		nil,
	)

	if err := tx.Execute(ctx); err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientStock):
			return uc.reject(ctx, cmd, OutcomeSoldOut, product), nil
		case errors.Is(err, domain.ErrPurchaseLimitExceeded):
			return uc.reject(ctx, cmd, OutcomeLimitExceeded, product), nil
		case apperrors.CodeOf(err) < apperrors.ErrCodeInternal:
			// 商品不存在、未启用等业务错误
			return nil, err
		}
		logger.WithContext(ctx).Error("抢购失败",
			zap.Uint("session_id", cmd.SessionID),
			zap.Uint("sku_id", cmd.SkuID),
			zap.Uint("user_id", cmd.UserID),
			zap.Error(err),
		)
		return nil, err
	}

	uc.afterSell(ctx, session, cmd, sold)
	return &PurchaseResult{
		Outcome:      OutcomeSuccess,
		SessionID:    cmd.SessionID,
		SkuID:        cmd.SkuID,
		Quantity:     cmd.Quantity,
		SeckillPrice: sold.Product.Price().Seckill(),
		Purchased:    sold.Purchased,
		Remaining:    sold.Product.Stock().Remaining(),
	}, nil
}

// reserve 预扣库存，返回是否真正扣减了缓存
// 缓存异常或未预热返回(false, nil)走降级，售罄/超限购返回对应领域错误
func (uc *PurchaseUseCase) reserve(ctx context.Context, cmd PurchaseCommand, maxPerUser int) (bool, error) {
	var code domain.ReserveResult
	err := uc.breaker.Execute(func() (err error) {
		code, err = uc.counter.Reserve(ctx, cmd.SessionID, cmd.SkuID, cmd.UserID, cmd.Quantity, maxPerUser)
		return err
	})
	if err != nil {
		metrics.StockReserveTotal.WithLabelValues("error").Inc()
		logger.WithContext(ctx).Warn("缓存预扣失败，降级为数据库扣减",
			zap.Uint("session_id", cmd.SessionID),
			zap.Uint("sku_id", cmd.SkuID),
			zap.Error(err),
		)
		return false, nil
	}

	metrics.StockReserveTotal.WithLabelValues(code.String()).Inc()
	switch code {
	case domain.ReserveOK:
		return true, nil
	case domain.ReserveSoldOut:
		return false, domain.ErrInsufficientStock
	case domain.ReserveLimitExceeded:
		return false, domain.ErrPurchaseLimitExceeded
	default:
		return false, nil
	}
}

func (uc *PurchaseUseCase) afterSell(ctx context.Context, session *domain.Session, cmd PurchaseCommand, sold *domain.SellResult) {
	now := uc.now()
	p := sold.Product

	publishEvent(ctx, uc.events, domain.NewEvent(domain.EventPurchaseSucceeded, p.ID(), domain.PurchasePayload{
		ActivityID:   session.ActivityID(),
		SessionID:    cmd.SessionID,
		ProductID:    p.ProductID(),
		SkuID:        cmd.SkuID,
		UserID:       cmd.UserID,
		Quantity:     cmd.Quantity,
		SeckillPrice: p.Price().Seckill(),
	}, now))

	if sold.ProductSoldOut {
		uc.warm.RefreshProduct(ctx, p)
		publishEvent(ctx, uc.events, domain.NewEvent(domain.EventProductSoldOut, p.ID(), p.State(), now))
	}
	if sold.SessionSoldOut {
		if err := uc.warm.WarmSession(ctx, cmd.SessionID); err != nil {
			logger.WithContext(ctx).Warn("售罄后刷新场次缓存失败",
				zap.Uint("session_id", cmd.SessionID),
				zap.Error(err),
			)
		}
		publishEvent(ctx, uc.events, domain.NewEvent(domain.EventSessionSoldOut, cmd.SessionID, nil, now))
	}
}

// reject 负面结果只记Debug日志
func (uc *PurchaseUseCase) reject(ctx context.Context, cmd PurchaseCommand, outcome PurchaseOutcome, product *domain.Product) *PurchaseResult {
	logger.WithContext(ctx).Debug("抢购未成功",
		zap.String("outcome", string(outcome)),
		zap.Uint("session_id", cmd.SessionID),
		zap.Uint("sku_id", cmd.SkuID),
		zap.Uint("user_id", cmd.UserID),
	)
	result := &PurchaseResult{
		Outcome:   outcome,
		SessionID: cmd.SessionID,
		SkuID:     cmd.SkuID,
		Quantity:  cmd.Quantity,
	}
	if product != nil {
		result.SeckillPrice = product.Price().Seckill()
	}
	return result
}
