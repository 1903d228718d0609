package seckill

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	domain "github.com/xiebiao/seckill/internal/domain/seckill"
	"github.com/xiebiao/seckill/internal/infrastructure/persistence/mysql"
	redisstore "github.com/xiebiao/seckill/internal/infrastructure/persistence/redis"
	"github.com/xiebiao/seckill/pkg/circuitbreaker"
)

var baseTime = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

// recordingPublisher 记录发布的事件
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

// appFixture SQLite + miniredis上的完整应用层
type appFixture struct {
	mr    *miniredis.Miniredis
	now   time.Time
	clock func() time.Time

	activityRepo domain.ActivityRepository
	sessionRepo  domain.SessionRepository
	productRepo  domain.ProductRepository

	events     *recordingPublisher
	warm       *CacheWarmService
	activities *ActivityUseCase
	sessions   *SessionUseCase
	products   *ProductUseCase
	purchase   *PurchaseUseCase
}

func newAppFixture(t *testing.T) *appFixture {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:app_%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, mysql.Migrate(db))

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	f := &appFixture{
		mr:           mr,
		now:          baseTime,
		activityRepo: mysql.NewActivityRepository(db),
		sessionRepo:  mysql.NewSessionRepository(db),
		productRepo:  mysql.NewProductRepository(db),
		events:       &recordingPublisher{},
	}
	f.clock = func() time.Time { return f.now }

	txManager := mysql.NewTxManager(db)
	guard := domain.NewLockoutGuard(30 * time.Minute)
	breakerCfg := circuitbreaker.Config{
		ReadyToTrip: func(c circuitbreaker.Counts) bool { return c.ConsecutiveFailures >= 1000 },
	}

	f.warm = NewCacheWarmService(f.activityRepo, f.sessionRepo, f.productRepo,
		redisstore.NewSeckillCache(client, 0),
		circuitbreaker.NewCircuitBreaker("test-cache", breakerCfg), 2)
	f.activities = NewActivityUseCase(
		domain.NewActivityService(f.activityRepo, f.sessionRepo, guard, txManager, f.clock),
		f.warm, f.events, f.clock)
	f.sessions = NewSessionUseCase(
		domain.NewSessionService(f.activityRepo, f.sessionRepo, f.productRepo, guard, txManager, f.clock),
		f.warm, f.events, f.clock)
	f.products = NewProductUseCase(
		domain.NewProductService(f.sessionRepo, f.productRepo, guard, txManager, f.clock),
		f.warm)
	f.purchase = NewPurchaseUseCase(f.warm, f.activityRepo, f.productRepo,
		redisstore.NewStockCounter(client, time.Hour),
		circuitbreaker.NewCircuitBreaker("test-stock", breakerCfg),
		f.events, 3*time.Second, f.clock)
	return f
}

// createSession 在baseTime+startIn开始、持续2小时的场次，每人限购2
func (f *appFixture) createSession(t *testing.T, startIn time.Duration, total int) *domain.Session {
	t.Helper()
	ctx := context.Background()

	activity, err := f.activities.Create(ctx, domain.ActivityParams{Title: "五一秒杀", Enabled: true})
	require.NoError(t, err)

	session, err := f.sessions.Create(ctx, activity.ID(), domain.SessionParams{
		StartTime:          baseTime.Add(startIn),
		EndTime:            baseTime.Add(startIn + 2*time.Hour),
		MaxQuantityPerUser: 2,
		TotalQuantity:      total,
		Enabled:            true,
	})
	require.NoError(t, err)
	return session
}

func (f *appFixture) createProduct(t *testing.T, sessionID, skuID uint, quantity int, enabled bool) *domain.Product {
	t.Helper()
	product, err := f.products.Create(context.Background(), sessionID, domain.ProductParams{
		ProductID:     100,
		SkuID:         skuID,
		OriginalPrice: 9900,
		SeckillPrice:  5900,
		Quantity:      quantity,
		Enabled:       enabled,
	})
	require.NoError(t, err)
	return product
}

// openSale 把时钟拨到场次开始后1分钟
func (f *appFixture) openSale(session *domain.Session) {
	f.now = session.Period().Start().Add(time.Minute)
}
