package seckill

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	domain "github.com/xiebiao/seckill/internal/domain/seckill"
	"github.com/xiebiao/seckill/pkg/circuitbreaker"
	apperrors "github.com/xiebiao/seckill/pkg/errors"
	"github.com/xiebiao/seckill/pkg/logger"
	"github.com/xiebiao/seckill/pkg/metrics"
	"github.com/xiebiao/seckill/pkg/tracing"
)

// SnapshotCache 场次快照缓存
// 未命中返回nil, nil；返回error表示缓存不可用
type SnapshotCache interface {
	SaveSession(ctx context.Context, session *domain.Session, products []*domain.Product) error
	GetSession(ctx context.Context, sessionID uint) (*domain.Session, error)
	GetProduct(ctx context.Context, sessionID, skuID uint) (*domain.Product, error)
	GetProducts(ctx context.Context, sessionID uint) ([]*domain.Product, error)
	GetStock(ctx context.Context, sessionID, skuID uint) (remaining int, ok bool, err error)
	SaveProduct(ctx context.Context, product *domain.Product) error
	Evict(ctx context.Context, sessionID uint) error
}

// CacheWarmService 场次缓存预热与旁路读取
//
// 数据库是唯一的事实来源，缓存只是延迟优化：
//   - 读：先读缓存，未命中或缓存不可用时读库，并尽力回填
//   - 写：预热/驱逐失败返回错误给调用方（后台任务或运营接口），不影响抢购
//
// 同一场次的并发未命中通过singleflight合并为一次读库+回填。
type CacheWarmService struct {
	activities  domain.ActivityRepository
	sessions    domain.SessionRepository
	products    domain.ProductRepository
	cache       SnapshotCache
	breaker     *circuitbreaker.CircuitBreaker
	concurrency int
	loads       singleflight.Group
}

// NewCacheWarmService 创建预热服务，concurrency是预热整个活动时的并行度
func NewCacheWarmService(
	activities domain.ActivityRepository,
	sessions domain.SessionRepository,
	products domain.ProductRepository,
	cache SnapshotCache,
	breaker *circuitbreaker.CircuitBreaker,
	concurrency int,
) *CacheWarmService {
	if breaker == nil {
		breaker = circuitbreaker.NewCircuitBreaker("seckill-cache", circuitbreaker.Config{})
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &CacheWarmService{
		activities:  activities,
		sessions:    sessions,
		products:    products,
		cache:       cache,
		breaker:     breaker,
		concurrency: concurrency,
	}
}

// snapshot 一次读库得到的场次和商品
type snapshot struct {
	session  *domain.Session
	products []*domain.Product
}

// WarmSession 从数据库加载场次及商品并整体写入缓存
func (c *CacheWarmService) WarmSession(ctx context.Context, sessionID uint) error {
	ctx, span := tracing.StartSpan(ctx, "CacheWarm.WarmSession", attribute.Int64("session_id", int64(sessionID)))
	defer span.End()

	snap, err := c.load(ctx, sessionID)
	if err != nil {
		tracing.RecordError(span, err)
		return err
	}
	err = c.save(ctx, snap)
	tracing.RecordError(span, err)
	return err
}

// EnsureWarmed 缓存中没有该场次时才预热，返回是否执行了预热
// 已预热的场次不重复写入，避免用数据库值覆盖正在被预扣的库存
func (c *CacheWarmService) EnsureWarmed(ctx context.Context, sessionID uint) (bool, error) {
	var cached *domain.Session
	err := c.call(ctx, "session", func() (err error) {
		cached, err = c.cache.GetSession(ctx, sessionID)
		return err
	})
	if err != nil {
		return false, err
	}
	if cached != nil {
		return false, nil
	}
	return true, c.WarmSession(ctx, sessionID)
}

// WarmActivity 并行预热活动下的全部场次
// 单个场次失败不影响其它场次，返回第一个错误
func (c *CacheWarmService) WarmActivity(ctx context.Context, activityID uint) error {
	ctx, span := tracing.StartSpan(ctx, "CacheWarm.WarmActivity", attribute.Int64("activity_id", int64(activityID)))
	defer span.End()

	if _, err := c.activities.FindByID(ctx, activityID); err != nil {
		return err
	}
	sessions, err := c.sessions.ListByActivity(ctx, activityID)
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for _, s := range sessions {
		g.Go(func() error {
			products, err := c.products.ListBySession(ctx, s.ID())
			if err != nil {
				return err
			}
			return c.save(ctx, &snapshot{session: s, products: products})
		})
	}
	err = g.Wait()
	tracing.RecordError(span, err)
	return err
}

// EvictSession 删除场次的全部缓存Key
func (c *CacheWarmService) EvictSession(ctx context.Context, sessionID uint) error {
	err := c.breaker.Execute(func() error {
		return c.cache.Evict(ctx, sessionID)
	})
	if err != nil {
		return apperrors.WithCode(apperrors.ErrCodeRedisError, err, "删除场次缓存失败")
	}
	return nil
}

// EvictActivity 删除活动下全部场次的缓存
func (c *CacheWarmService) EvictActivity(ctx context.Context, activityID uint) error {
	sessions, err := c.sessions.ListByActivity(ctx, activityID)
	if err != nil {
		return err
	}
	var errs []error
	for _, s := range sessions {
		if err := c.EvictSession(ctx, s.ID()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GetSession 旁路读取场次：命中直接返回，否则读库、回填并返回读库结果
func (c *CacheWarmService) GetSession(ctx context.Context, sessionID uint) (*domain.Session, error) {
	ctx, span := tracing.StartSpan(ctx, "CacheWarm.GetSession", attribute.Int64("session_id", int64(sessionID)))
	defer span.End()

	var cached *domain.Session
	err := c.call(ctx, "session", func() (err error) {
		cached, err = c.cache.GetSession(ctx, sessionID)
		return err
	})
	if err == nil && cached != nil {
		metrics.CacheRequestsTotal.WithLabelValues("session", "hit").Inc()
		return cached, nil
	}
	if err == nil {
		metrics.CacheRequestsTotal.WithLabelValues("session", "miss").Inc()
	}

	snap, err := c.loadAndWarm(ctx, sessionID)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	return snap.session, nil
}

// GetProductBySkuID 旁路读取单个秒杀商品
func (c *CacheWarmService) GetProductBySkuID(ctx context.Context, sessionID, skuID uint) (*domain.Product, error) {
	ctx, span := tracing.StartSpan(ctx, "CacheWarm.GetProductBySkuID",
		attribute.Int64("session_id", int64(sessionID)),
		attribute.Int64("sku_id", int64(skuID)),
	)
	defer span.End()

	var cached *domain.Product
	err := c.call(ctx, "product", func() (err error) {
		cached, err = c.cache.GetProduct(ctx, sessionID, skuID)
		return err
	})
	if err == nil && cached != nil {
		metrics.CacheRequestsTotal.WithLabelValues("product", "hit").Inc()
		return cached, nil
	}
	if err == nil {
		metrics.CacheRequestsTotal.WithLabelValues("product", "miss").Inc()
		// 场次已预热但没有该SKU：只读库，不重写正在被预扣的库存哈希
		if c.warmed(ctx, sessionID) {
			product, err := c.products.FindBySku(ctx, sessionID, skuID)
			tracing.RecordError(span, err)
			return product, err
		}
	}

	snap, err := c.loadAndWarm(ctx, sessionID)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	for _, p := range snap.products {
		if p.SkuID() == skuID {
			return p, nil
		}
	}
	return nil, domain.ErrProductNotFound
}

// GetProducts 旁路读取场次全部秒杀商品，按sort_order、id排序
func (c *CacheWarmService) GetProducts(ctx context.Context, sessionID uint) ([]*domain.Product, error) {
	ctx, span := tracing.StartSpan(ctx, "CacheWarm.GetProducts", attribute.Int64("session_id", int64(sessionID)))
	defer span.End()

	var cached []*domain.Product
	err := c.call(ctx, "products", func() (err error) {
		cached, err = c.cache.GetProducts(ctx, sessionID)
		return err
	})
	if err == nil && len(cached) > 0 {
		metrics.CacheRequestsTotal.WithLabelValues("products", "hit").Inc()
		sortProducts(cached)
		return cached, nil
	}
	if err == nil {
		// 预热时没有商品的场次不写商品哈希
		if c.warmed(ctx, sessionID) {
			metrics.CacheRequestsTotal.WithLabelValues("products", "hit").Inc()
			return []*domain.Product{}, nil
		}
		metrics.CacheRequestsTotal.WithLabelValues("products", "miss").Inc()
	}

	snap, err := c.loadAndWarm(ctx, sessionID)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	return snap.products, nil
}

// Remaining 缓存中的实时剩余库存；未预热或缓存不可用时ok为false
func (c *CacheWarmService) Remaining(ctx context.Context, sessionID, skuID uint) (remaining int, ok bool) {
	_ = c.call(ctx, "stock", func() (err error) {
		remaining, ok, err = c.cache.GetStock(ctx, sessionID, skuID)
		return err
	})
	return remaining, ok
}

// RefreshProduct 回写单个商品快照（售罄后调用），失败只记录日志
func (c *CacheWarmService) RefreshProduct(ctx context.Context, product *domain.Product) {
	_ = c.call(ctx, "refresh_product", func() error {
		return c.cache.SaveProduct(ctx, product)
	})
}

// loadAndWarm 读库并尽力回填，同一场次并发调用只执行一次
func (c *CacheWarmService) loadAndWarm(ctx context.Context, sessionID uint) (*snapshot, error) {
	v, err, _ := c.loads.Do(fmt.Sprint(sessionID), func() (interface{}, error) {
		// 合并后的调用方共享这次加载，不能随第一个请求一起取消
		ctx := context.WithoutCancel(ctx)
		snap, err := c.load(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if err := c.save(ctx, snap); err != nil {
			logger.WithContext(ctx).Warn("回填场次缓存失败，直接返回数据库结果",
				zap.Uint("session_id", sessionID),
				zap.Error(err),
			)
		}
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*snapshot), nil
}

// warmed 场次快照是否在缓存中，缓存不可用时视为未预热
func (c *CacheWarmService) warmed(ctx context.Context, sessionID uint) bool {
	var cached *domain.Session
	err := c.call(ctx, "session", func() (err error) {
		cached, err = c.cache.GetSession(ctx, sessionID)
		return err
	})
	return err == nil && cached != nil
}

func (c *CacheWarmService) load(ctx context.Context, sessionID uint) (*snapshot, error) {
	session, err := c.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	products, err := c.products.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &snapshot{session: session, products: products}, nil
}

func (c *CacheWarmService) save(ctx context.Context, snap *snapshot) error {
	start := time.Now()
	err := c.breaker.Execute(func() error {
		return c.cache.SaveSession(ctx, snap.session, snap.products)
	})
	metrics.ObserveSince(metrics.CacheWarmDuration, start)
	metrics.CacheWarmTotal.WithLabelValues(metrics.Result(err == nil)).Inc()
	if err != nil {
		return apperrors.WithCode(apperrors.ErrCodeRedisError, err, "场次缓存预热失败")
	}

	logger.WithContext(ctx).Debug("场次缓存已预热",
		zap.Uint("session_id", snap.session.ID()),
		zap.Int("products", len(snap.products)),
	)
	return nil
}

// call 经熔断器访问缓存，失败时记录告警并返回错误，由调用方降级
func (c *CacheWarmService) call(ctx context.Context, op string, fn func() error) error {
	err := c.breaker.Execute(fn)
	if err != nil {
		metrics.CacheRequestsTotal.WithLabelValues(op, "error").Inc()
		logger.WithContext(ctx).Warn("缓存不可用，降级读库",
			zap.String("op", op),
			zap.Error(err),
		)
	}
	return err
}

func sortProducts(products []*domain.Product) {
	slices.SortFunc(products, func(a, b *domain.Product) int {
		if a.SortOrder() != b.SortOrder() {
			return a.SortOrder() - b.SortOrder()
		}
		return int(a.ID()) - int(b.ID())
	})
}
