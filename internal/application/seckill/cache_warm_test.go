package seckill

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/xiebiao/seckill/internal/domain/seckill"
)

func TestCacheWarmService_WarmThenRead(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()
	session := f.createSession(t, time.Hour, 20)
	f.createProduct(t, session.ID(), 1001, 10, true)
	f.createProduct(t, session.ID(), 1002, 5, false)

	require.NoError(t, f.warm.WarmSession(ctx, session.ID()))

	sessionKey := fmt.Sprintf("session:%d", session.ID())
	stockKey := fmt.Sprintf("stock:%d", session.ID())
	assert.True(t, f.mr.Exists(sessionKey))
	assert.Equal(t, 7200*time.Second, f.mr.TTL(sessionKey))
	assert.Equal(t, "10", f.mr.HGet(stockKey, "1001"))
	assert.Equal(t, "", f.mr.HGet(stockKey, "1002"), "未启用商品不进入库存哈希")

	// 与数据库行结构一致
	stored, err := f.productRepo.FindBySku(ctx, session.ID(), 1001)
	require.NoError(t, err)
	cached, err := f.warm.GetProductBySkuID(ctx, session.ID(), 1001)
	require.NoError(t, err)
	assert.Equal(t, stored.ID(), cached.ID())
	assert.Equal(t, stored.Price(), cached.Price())
	assert.Equal(t, stored.Stock(), cached.Stock())
	assert.Equal(t, stored.MaxQuantityPerUser(), cached.MaxQuantityPerUser())
	assert.Equal(t, stored.IsEnabled(), cached.IsEnabled())

	products, err := f.warm.GetProducts(ctx, session.ID())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, uint(1001), products[0].SkuID())
}

// TestCacheWarmService_EvictThenReload 驱逐后下一次读取重新加载并回填
func TestCacheWarmService_EvictThenReload(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()
	session := f.createSession(t, time.Hour, 20)
	f.createProduct(t, session.ID(), 1001, 10, true)
	require.NoError(t, f.warm.WarmSession(ctx, session.ID()))

	require.NoError(t, f.warm.EvictSession(ctx, session.ID()))
	sessionKey := fmt.Sprintf("session:%d", session.ID())
	assert.False(t, f.mr.Exists(sessionKey))
	assert.False(t, f.mr.Exists(fmt.Sprintf("stock:%d", session.ID())))

	got, err := f.warm.GetSession(ctx, session.ID())
	require.NoError(t, err)
	assert.Equal(t, session.ID(), got.ID())
	assert.True(t, f.mr.Exists(sessionKey))
	assert.Equal(t, "10", f.mr.HGet(fmt.Sprintf("stock:%d", session.ID()), "1001"))
}

func TestCacheWarmService_NotFound(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()

	_, err := f.warm.GetSession(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	session := f.createSession(t, time.Hour, 20)
	_, err = f.warm.GetProductBySkuID(ctx, session.ID(), 404)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	err = f.warm.WarmActivity(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrActivityNotFound)
}

// TestCacheWarmService_CacheDown 缓存不可用时读取降级到数据库
func TestCacheWarmService_CacheDown(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()
	session := f.createSession(t, time.Hour, 20)
	f.createProduct(t, session.ID(), 1001, 10, true)
	f.mr.Close()

	got, err := f.warm.GetSession(ctx, session.ID())
	require.NoError(t, err)
	assert.Equal(t, session.ID(), got.ID())

	product, err := f.warm.GetProductBySkuID(ctx, session.ID(), 1001)
	require.NoError(t, err)
	assert.Equal(t, 10, product.Stock().Remaining())

	assert.Error(t, f.warm.WarmSession(ctx, session.ID()), "显式预热应返回缓存错误")
}

func TestCacheWarmService_WarmActivity(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()
	first := f.createSession(t, time.Hour, 20)

	second, err := f.sessions.Create(ctx, first.ActivityID(), domain.SessionParams{
		StartTime:          baseTime.Add(4 * time.Hour),
		EndTime:            baseTime.Add(6 * time.Hour),
		MaxQuantityPerUser: 1,
		TotalQuantity:      5,
		Enabled:            true,
	})
	require.NoError(t, err)

	require.NoError(t, f.warm.WarmActivity(ctx, first.ActivityID()))
	assert.True(t, f.mr.Exists(fmt.Sprintf("session:%d", first.ID())))
	assert.True(t, f.mr.Exists(fmt.Sprintf("session:%d", second.ID())))

	require.NoError(t, f.warm.EvictActivity(ctx, first.ActivityID()))
	assert.False(t, f.mr.Exists(fmt.Sprintf("session:%d", first.ID())))
	assert.False(t, f.mr.Exists(fmt.Sprintf("session:%d", second.ID())))
}

func TestCacheWarmService_EnsureWarmed(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()
	session := f.createSession(t, time.Hour, 20)
	f.createProduct(t, session.ID(), 1001, 10, true)

	warmed, err := f.warm.EnsureWarmed(ctx, session.ID())
	require.NoError(t, err)
	assert.True(t, warmed)

	// 已预热时不覆盖缓存中的库存
	f.mr.HSet(fmt.Sprintf("stock:%d", session.ID()), "1001", "7")
	warmed, err = f.warm.EnsureWarmed(ctx, session.ID())
	require.NoError(t, err)
	assert.False(t, warmed)
	assert.Equal(t, "7", f.mr.HGet(fmt.Sprintf("stock:%d", session.ID()), "1001"))
}

func TestCacheWarmService_Remaining(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()
	session := f.createSession(t, time.Hour, 20)
	f.createProduct(t, session.ID(), 1001, 10, true)

	_, ok := f.warm.Remaining(ctx, session.ID(), 1001)
	assert.False(t, ok, "未预热时没有实时库存")

	require.NoError(t, f.warm.WarmSession(ctx, session.ID()))
	f.mr.HSet(fmt.Sprintf("stock:%d", session.ID()), "1001", "3")

	remaining, ok := f.warm.Remaining(ctx, session.ID(), 1001)
	assert.True(t, ok)
	assert.Equal(t, 3, remaining)

	_, ok = f.warm.Remaining(ctx, session.ID(), 9999)
	assert.False(t, ok)
}

// TestCacheWarmService_ProductMissKeepsStock 已预热场次的SKU未命中只读库，不重写库存哈希
func TestCacheWarmService_ProductMissKeepsStock(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()
	session := f.createSession(t, time.Hour, 20)
	f.createProduct(t, session.ID(), 1001, 10, true)
	require.NoError(t, f.warm.WarmSession(ctx, session.ID()))

	stockKey := fmt.Sprintf("stock:%d", session.ID())
	f.mr.HSet(stockKey, "1001", "3")

	for i := 0; i < 3; i++ {
		_, err := f.warm.GetProductBySkuID(ctx, session.ID(), 999999)
		assert.ErrorIs(t, err, domain.ErrProductNotFound)
	}
	assert.Equal(t, "3", f.mr.HGet(stockKey, "1001"))

	// 预热后直接入库的商品从数据库读到
	added, err := domain.NewProduct(session, domain.ProductParams{
		SkuID: 1002, OriginalPrice: 100, SeckillPrice: 80, Quantity: 2, Enabled: true,
	}, f.now)
	require.NoError(t, err)
	require.NoError(t, f.productRepo.Create(ctx, added))

	got, err := f.warm.GetProductBySkuID(ctx, session.ID(), 1002)
	require.NoError(t, err)
	assert.Equal(t, added.ID(), got.ID())
	assert.Equal(t, "3", f.mr.HGet(stockKey, "1001"))
	assert.Equal(t, "", f.mr.HGet(stockKey, "1002"))
}

// TestCacheWarmService_EmptySessionProducts 没有商品的已预热场次返回空列表，不重新预热
func TestCacheWarmService_EmptySessionProducts(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()
	session := f.createSession(t, time.Hour, 20)
	require.NoError(t, f.warm.WarmSession(ctx, session.ID()))

	sessionKey := fmt.Sprintf("session:%d", session.ID())
	f.mr.SetTTL(sessionKey, 100*time.Second)

	products, err := f.warm.GetProducts(ctx, session.ID())
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.Equal(t, 100*time.Second, f.mr.TTL(sessionKey), "不应重写场次缓存")
}

// TestCacheWarmService_LoadIgnoresCallerCancel 回源加载不随发起请求的取消而失败
func TestCacheWarmService_LoadIgnoresCallerCancel(t *testing.T) {
	f := newAppFixture(t)
	session := f.createSession(t, time.Hour, 20)
	f.createProduct(t, session.ID(), 1001, 10, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := f.warm.GetSession(ctx, session.ID())
	require.NoError(t, err)
	assert.Equal(t, session.ID(), got.ID())
	assert.True(t, f.mr.Exists(fmt.Sprintf("session:%d", session.ID())))
}
