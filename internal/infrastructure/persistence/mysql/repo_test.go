package mysql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/xiebiao/seckill/internal/domain/seckill"
)

// newTestDB 每个测试独立的内存SQLite，单连接保证事务串行
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, Migrate(db))
	return db
}

type fixture struct {
	db         *gorm.DB
	activities seckill.ActivityRepository
	sessions   seckill.SessionRepository
	products   seckill.ProductRepository
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	db := newTestDB(t)
	return &fixture{
		db:         db,
		activities: NewActivityRepository(db),
		sessions:   NewSessionRepository(db),
		products:   NewProductRepository(db),
		now:        time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) createSession(t *testing.T, startIn time.Duration, total int) *seckill.Session {
	t.Helper()
	ctx := context.Background()

	activity, err := seckill.NewActivity(seckill.ActivityParams{Title: "五一秒杀", Enabled: true}, f.now)
	require.NoError(t, err)
	require.NoError(t, f.activities.Create(ctx, activity))

	session, err := seckill.NewSession(activity.ID(), seckill.SessionParams{
		StartTime:          f.now.Add(startIn),
		EndTime:            f.now.Add(startIn + 2*time.Hour),
		MaxQuantityPerUser: 2,
		TotalQuantity:      total,
		Enabled:            true,
	}, f.now)
	require.NoError(t, err)
	require.NoError(t, f.sessions.Create(ctx, session))
	return session
}

func (f *fixture) createProduct(t *testing.T, session *seckill.Session, skuID uint, quantity int) *seckill.Product {
	t.Helper()
	product, err := seckill.NewProduct(session, seckill.ProductParams{
		ProductID:     100,
		SkuID:         skuID,
		OriginalPrice: 9900,
		SeckillPrice:  5900,
		Quantity:      quantity,
		Enabled:       true,
	}, f.now)
	require.NoError(t, err)
	require.NoError(t, f.products.Create(context.Background(), product))
	return product
}

func TestProductRepository_SellUntilSoldOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.createSession(t, time.Hour, 10)
	f.createProduct(t, session, 1001, 10)

	for i := 1; i <= 10; i++ {
		result, err := f.products.Sell(ctx, seckill.SellCommand{SessionID: session.ID(), SkuID: 1001, UserID: uint(i), Quantity: 1})
		require.NoError(t, err, "第%d次扣减", i)
		assert.Equal(t, 1, result.Purchased)
		assert.Equal(t, i == 10, result.ProductSoldOut)
		assert.Equal(t, i == 10, result.SessionSoldOut)
	}

	_, err := f.products.Sell(ctx, seckill.SellCommand{SessionID: session.ID(), SkuID: 1001, UserID: 99, Quantity: 1})
	assert.ErrorIs(t, err, seckill.ErrInsufficientStock)

	product, err := f.products.FindBySku(ctx, session.ID(), 1001)
	require.NoError(t, err)
	assert.Equal(t, 10, product.Stock().Sold())
	assert.False(t, product.IsEnabled())

	stored, err := f.sessions.FindByID(ctx, session.ID())
	require.NoError(t, err)
	assert.Equal(t, 10, stored.Stock().Sold())
	assert.Equal(t, seckill.SessionSoldOut, stored.Status())
}

func TestProductRepository_SellPurchaseLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.createSession(t, time.Hour, 10)
	f.createProduct(t, session, 1001, 10)

	cmd := seckill.SellCommand{SessionID: session.ID(), SkuID: 1001, UserID: 7, Quantity: 2}
	result, err := f.products.Sell(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Purchased)

	cmd.Quantity = 1
	_, err = f.products.Sell(ctx, cmd)
	assert.ErrorIs(t, err, seckill.ErrPurchaseLimitExceeded)

	// 超过限购时商品扣减一并回滚
	product, err := f.products.FindBySku(ctx, session.ID(), 1001)
	require.NoError(t, err)
	assert.Equal(t, 2, product.Stock().Sold())

	bought, err := f.products.PurchasedQuantity(ctx, session.ID(), 1001, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, bought)

	bought, err = f.products.PurchasedQuantity(ctx, session.ID(), 1001, 8)
	require.NoError(t, err)
	assert.Equal(t, 0, bought)
}

// TestProductRepository_SellConcurrent 20个并发请求抢10件库存，不超卖
func TestProductRepository_SellConcurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.createSession(t, time.Hour, 10)
	f.createProduct(t, session, 1001, 10)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		success  int
		soldOut  int
		unexpect []error
	)
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(userID uint) {
			defer wg.Done()
			_, err := f.products.Sell(ctx, seckill.SellCommand{SessionID: session.ID(), SkuID: 1001, UserID: userID, Quantity: 1})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, seckill.ErrInsufficientStock):
				soldOut++
			default:
				unexpect = append(unexpect, err)
			}
		}(uint(i))
	}
	wg.Wait()

	assert.Empty(t, unexpect)
	assert.Equal(t, 10, success)
	assert.Equal(t, 10, soldOut)

	product, err := f.products.FindBySku(ctx, session.ID(), 1001)
	require.NoError(t, err)
	assert.Equal(t, 10, product.Stock().Sold())
}

func TestProductRepository_SellRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.createSession(t, time.Hour, 10)
	product := f.createProduct(t, session, 1001, 5)

	_, err := f.products.Sell(ctx, seckill.SellCommand{SessionID: session.ID(), SkuID: 404, UserID: 1, Quantity: 1})
	assert.ErrorIs(t, err, seckill.ErrProductNotFound)

	_, err = f.products.Sell(ctx, seckill.SellCommand{SessionID: session.ID(), SkuID: 1001, UserID: 1, Quantity: 0})
	assert.ErrorIs(t, err, seckill.ErrInvalidQuantity)

	require.NoError(t, product.SetEnabled(false, f.now))
	require.NoError(t, f.products.Update(ctx, product))
	_, err = f.products.Sell(ctx, seckill.SellCommand{SessionID: session.ID(), SkuID: 1001, UserID: 1, Quantity: 1})
	assert.ErrorIs(t, err, seckill.ErrProductNotOnSale)
}

// TestProductRepository_SessionCapacity 最后一个商品售罄时场次同时售罄
func TestProductRepository_SessionCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.createSession(t, time.Hour, 3)
	f.createProduct(t, session, 1001, 2)
	f.createProduct(t, session, 1002, 1)

	_, err := f.products.Sell(ctx, seckill.SellCommand{SessionID: session.ID(), SkuID: 1001, UserID: 1, Quantity: 2})
	require.NoError(t, err)

	result, err := f.products.Sell(ctx, seckill.SellCommand{SessionID: session.ID(), SkuID: 1002, UserID: 1, Quantity: 1})
	require.NoError(t, err)
	assert.True(t, result.ProductSoldOut)
	assert.True(t, result.SessionSoldOut)
}

func TestProductRepository_CRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.createSession(t, time.Hour, 10)
	product := f.createProduct(t, session, 1001, 5)

	dup, err := seckill.NewProduct(session, seckill.ProductParams{SkuID: 1001, OriginalPrice: 100, SeckillPrice: 90, Quantity: 1}, f.now)
	require.NoError(t, err)
	assert.ErrorIs(t, f.products.Create(ctx, dup), seckill.ErrSkuDuplicate)

	_, err = f.products.Sell(ctx, seckill.SellCommand{SessionID: session.ID(), SkuID: 1001, UserID: 1, Quantity: 1})
	require.NoError(t, err)

	// 持有旧快照的编辑不能覆盖已售数量
	require.NoError(t, product.Update(session, seckill.ProductParams{OriginalPrice: 9900, SeckillPrice: 4900, Quantity: 6}, f.now))
	require.NoError(t, f.products.Update(ctx, product))

	stored, err := f.products.FindByID(ctx, product.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(4900), stored.Price().Seckill())
	assert.Equal(t, 6, stored.Stock().Quantity())
	assert.Equal(t, 1, stored.Stock().Sold())

	list, err := f.products.ListBySession(ctx, session.ID())
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, f.products.Delete(ctx, product.ID()))
	assert.ErrorIs(t, f.products.Delete(ctx, product.ID()), seckill.ErrProductNotFound)
	_, err = f.products.FindByID(ctx, product.ID())
	assert.ErrorIs(t, err, seckill.ErrProductNotFound)
}

func TestSessionRepository_Scans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	soon := f.createSession(t, 5*time.Minute, 10)   // 预热候选
	later := f.createSession(t, 3*time.Hour, 10)     // 不在预热窗口
	running := f.createSession(t, -time.Hour, 10)    // 已开始未结束
	finished := f.createSession(t, -3*time.Hour, 10) // 已结束

	warm, err := f.sessions.ListStartingBetween(ctx, f.now, f.now.Add(10*time.Minute))
	require.NoError(t, err)
	require.Len(t, warm, 1)
	assert.Equal(t, soon.ID(), warm[0].ID())

	due, err := f.sessions.ListDueForStart(ctx, f.now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, running.ID(), due[0].ID())

	ended, err := f.sessions.ListDueForEnd(ctx, f.now)
	require.NoError(t, err)
	require.Len(t, ended, 1)
	assert.Equal(t, finished.ID(), ended[0].ID())

	require.NoError(t, finished.End(f.now))
	require.NoError(t, f.sessions.Update(ctx, finished))
	ended, err = f.sessions.ListDueForEnd(ctx, f.now)
	require.NoError(t, err)
	assert.Empty(t, ended)

	stored, err := f.sessions.FindByID(ctx, later.ID())
	require.NoError(t, err)
	assert.True(t, stored.Period().Start().Equal(later.Period().Start()))
}

func TestSessionRepository_DeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.createSession(t, time.Hour, 10)
	f.createProduct(t, session, 1001, 5)
	f.createProduct(t, session, 1002, 5)

	count, err := f.sessions.CountByActivity(ctx, session.ActivityID())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, f.sessions.Delete(ctx, session.ID()))

	products, err := f.products.ListBySession(ctx, session.ID())
	require.NoError(t, err)
	assert.Empty(t, products)
	_, err = f.sessions.FindByID(ctx, session.ID())
	assert.ErrorIs(t, err, seckill.ErrSessionNotFound)
	assert.ErrorIs(t, f.sessions.Delete(ctx, session.ID()), seckill.ErrSessionNotFound)
}

func TestActivityRepository_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		a, err := seckill.NewActivity(seckill.ActivityParams{Title: fmt.Sprintf("活动%d", i), Enabled: true}, f.now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		require.NoError(t, f.activities.Create(ctx, a))
		if i == 0 {
			require.NoError(t, a.Start(f.now))
			require.NoError(t, f.activities.Update(ctx, a))
		}
	}

	page, total, err := f.activities.List(ctx, seckill.ActivityListParams{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	assert.Equal(t, "活动2", page[0].Title())

	active, total, err := f.activities.List(ctx, seckill.ActivityListParams{Page: 1, PageSize: 10, Status: seckill.ActivityActive})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "活动0", active[0].Title())

	require.NoError(t, f.activities.Delete(ctx, active[0].ID()))
	_, err = f.activities.FindByID(ctx, active[0].ID())
	assert.ErrorIs(t, err, seckill.ErrActivityNotFound)
}

func TestTxManager_Rollback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tm := NewTxManager(f.db)

	activity, err := seckill.NewActivity(seckill.ActivityParams{Title: "回滚"}, f.now)
	require.NoError(t, err)

	err = tm.Transaction(ctx, func(ctx context.Context) error {
		if err := f.activities.Create(ctx, activity); err != nil {
			return err
		}
		return seckill.ErrActivityClosed
	})
	assert.ErrorIs(t, err, seckill.ErrActivityClosed)

	_, total, err := f.activities.List(ctx, seckill.ActivityListParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestSessionRepository_LockByID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tm := NewTxManager(f.db)
	session := f.createSession(t, time.Hour, 10)

	err := tm.Transaction(ctx, func(ctx context.Context) error {
		locked, err := f.sessions.LockByID(ctx, session.ID())
		if err != nil {
			return err
		}
		assert.Equal(t, session.ID(), locked.ID())
		assert.Equal(t, 10, locked.Rules().TotalQuantity())

		_, err = f.sessions.LockByID(ctx, 999)
		assert.ErrorIs(t, err, seckill.ErrSessionNotFound)
		return nil
	})
	require.NoError(t, err)
}
