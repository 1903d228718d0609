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

func TestSessionUseCase_UpdateEvictsCache(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()
	session := f.createSession(t, 2*time.Hour, 20)
	require.NoError(t, f.warm.WarmSession(ctx, session.ID()))

	sessionKey := fmt.Sprintf("session:%d", session.ID())
	require.True(t, f.mr.Exists(sessionKey))

	updated, err := f.sessions.Update(ctx, session.ID(), domain.SessionParams{
		StartTime:          session.Period().Start(),
		EndTime:            session.Period().End(),
		MaxQuantityPerUser: 3,
		TotalQuantity:      30,
		Enabled:            true,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Rules().MaxQuantityPerUser())
	assert.False(t, f.mr.Exists(sessionKey))

	// 再次读取得到新规则
	got, err := f.warm.GetSession(ctx, session.ID())
	require.NoError(t, err)
	assert.Equal(t, 30, got.Rules().TotalQuantity())
}

// TestSessionUseCase_LockedKeepsCache 锁定窗口内修改被拒绝，缓存保持不变
func TestSessionUseCase_LockedKeepsCache(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()
	session := f.createSession(t, time.Hour, 20)
	f.createProduct(t, session.ID(), 1001, 10, true)
	require.NoError(t, f.warm.WarmSession(ctx, session.ID()))

	f.now = session.Period().Start().Add(-20 * time.Minute)

	_, err := f.sessions.Update(ctx, session.ID(), domain.SessionParams{
		StartTime:          session.Period().Start(),
		EndTime:            session.Period().End(),
		MaxQuantityPerUser: 5,
		TotalQuantity:      20,
		Enabled:            true,
	})
	assert.ErrorIs(t, err, domain.ErrSessionLocked)

	_, err = f.sessions.ToggleEnabled(ctx, session.ID())
	assert.ErrorIs(t, err, domain.ErrSessionLocked)

	_, err = f.products.Create(ctx, session.ID(), domain.ProductParams{
		ProductID: 100, SkuID: 1002, OriginalPrice: 9900, SeckillPrice: 5900, Quantity: 1, Enabled: true,
	})
	assert.ErrorIs(t, err, domain.ErrSessionLocked)

	assert.True(t, f.mr.Exists(fmt.Sprintf("session:%d", session.ID())))
	assert.Equal(t, "10", f.mr.HGet(fmt.Sprintf("stock:%d", session.ID()), "1001"))
}

func TestProductUseCase_MutationsEvictSession(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()
	session := f.createSession(t, time.Hour, 20)
	product := f.createProduct(t, session.ID(), 1001, 10, true)
	sessionKey := fmt.Sprintf("session:%d", session.ID())

	require.NoError(t, f.warm.WarmSession(ctx, session.ID()))
	f.createProduct(t, session.ID(), 1002, 5, true)
	assert.False(t, f.mr.Exists(sessionKey), "新增商品后清理缓存")

	products, err := f.warm.GetProducts(ctx, session.ID())
	require.NoError(t, err)
	assert.Len(t, products, 2)

	_, err = f.products.ToggleEnabled(ctx, product.ID())
	require.NoError(t, err)
	assert.False(t, f.mr.Exists(sessionKey), "切换启用后清理缓存")

	require.NoError(t, f.warm.WarmSession(ctx, session.ID()))
	assert.Equal(t, "", f.mr.HGet(fmt.Sprintf("stock:%d", session.ID()), "1001"))

	require.NoError(t, f.products.Delete(ctx, product.ID()))
	assert.False(t, f.mr.Exists(sessionKey), "删除后清理缓存")
}

func TestSessionUseCase_CancelPublishesEvent(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()
	session := f.createSession(t, time.Hour, 20)
	require.NoError(t, f.warm.WarmSession(ctx, session.ID()))

	cancelled, err := f.sessions.Cancel(ctx, session.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.SessionCancelled, cancelled.Status())
	assert.False(t, cancelled.IsEnabled())
	assert.Equal(t, 1, f.events.count(domain.EventSessionCancelled))
	assert.False(t, f.mr.Exists(fmt.Sprintf("session:%d", session.ID())))

	_, err = f.sessions.Cancel(ctx, session.ID())
	assert.ErrorIs(t, err, domain.ErrSessionNotCancellable)
	assert.Equal(t, 1, f.events.count(domain.EventSessionCancelled))
}

func TestActivityUseCase_CancelEvictsSessions(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()
	session := f.createSession(t, time.Hour, 20)
	require.NoError(t, f.activities.Warm(ctx, session.ActivityID()))
	require.True(t, f.mr.Exists(fmt.Sprintf("session:%d", session.ID())))

	activity, err := f.activities.Cancel(ctx, session.ActivityID())
	require.NoError(t, err)
	assert.Equal(t, domain.ActivityCancelled, activity.Status())
	assert.Equal(t, 1, f.events.count(domain.EventActivityCancelled))
	assert.False(t, f.mr.Exists(fmt.Sprintf("session:%d", session.ID())))
}
