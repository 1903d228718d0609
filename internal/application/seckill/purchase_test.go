package seckill

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/xiebiao/seckill/internal/domain/seckill"
)

// TestPurchase_TenThenSoldOut 库存10，前10个用户成功，第11个返回售罄且不是错误
func TestPurchase_TenThenSoldOut(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()
	session := f.createSession(t, time.Hour, 10)
	f.createProduct(t, session.ID(), 1001, 10, true)
	f.openSale(session)

	for i := 1; i <= 10; i++ {
		result, err := f.purchase.Execute(ctx, PurchaseCommand{SessionID: session.ID(), SkuID: 1001, UserID: uint(i), Quantity: 1})
		require.NoError(t, err, "第%d个用户", i)
		assert.Equal(t, OutcomeSuccess, result.Outcome)
		assert.Equal(t, 10-i, result.Remaining)
		assert.Equal(t, int64(5900), result.SeckillPrice)
	}

	result, err := f.purchase.Execute(ctx, PurchaseCommand{SessionID: session.ID(), SkuID: 1001, UserID: 11, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSoldOut, result.Outcome)

	product, err := f.productRepo.FindBySku(ctx, session.ID(), 1001)
	require.NoError(t, err)
	assert.Equal(t, 10, product.Stock().Sold())

	stored, err := f.sessionRepo.FindByID(ctx, session.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.SessionSoldOut, stored.Status())

	assert.Equal(t, 10, f.events.count(domain.EventPurchaseSucceeded))
	assert.Equal(t, 1, f.events.count(domain.EventProductSoldOut))
	assert.Equal(t, 1, f.events.count(domain.EventSessionSoldOut))

	// 售罄后缓存中的场次已刷新
	cached, err := f.warm.GetSession(ctx, session.ID())
	require.NoError(t, err)
	assert.True(t, cached.Stock().IsSoldOut())
}

func TestPurchase_LimitExceeded(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()
	session := f.createSession(t, time.Hour, 10)
	f.createProduct(t, session.ID(), 1001, 10, true)
	f.openSale(session)

	cmd := PurchaseCommand{SessionID: session.ID(), SkuID: 1001, UserID: 7, Quantity: 2}
	result, err := f.purchase.Execute(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, result.Outcome)
	assert.Equal(t, 2, result.Purchased)

	cmd.Quantity = 1
	result, err = f.purchase.Execute(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, OutcomeLimitExceeded, result.Outcome)

	cmd.UserID, cmd.Quantity = 8, 3
	result, err = f.purchase.Execute(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, OutcomeLimitExceeded, result.Outcome)

	purchased, err := f.productRepo.PurchasedQuantity(ctx, session.ID(), 1001, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, purchased)
	assert.Equal(t, "8", f.mr.HGet(fmt.Sprintf("stock:%d", session.ID()), "1001"))
}

func TestPurchase_Rejections(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()
	session := f.createSession(t, time.Hour, 10)
	f.createProduct(t, session.ID(), 1001, 5, true)
	f.createProduct(t, session.ID(), 1002, 5, false)

	_, err := f.purchase.Execute(ctx, PurchaseCommand{SessionID: session.ID(), SkuID: 1001, UserID: 1, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrSessionNotOnSale, "开场前")

	f.openSale(session)

	_, err = f.purchase.Execute(ctx, PurchaseCommand{SessionID: session.ID(), SkuID: 1001, UserID: 1, Quantity: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.purchase.Execute(ctx, PurchaseCommand{SessionID: session.ID(), SkuID: 404, UserID: 1, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	_, err = f.purchase.Execute(ctx, PurchaseCommand{SessionID: session.ID(), SkuID: 1002, UserID: 1, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrProductNotOnSale)

	_, err = f.purchase.Execute(ctx, PurchaseCommand{SessionID: 404, SkuID: 1001, UserID: 1, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	f.now = session.Period().End()
	_, err = f.purchase.Execute(ctx, PurchaseCommand{SessionID: session.ID(), SkuID: 1001, UserID: 1, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrSessionNotOnSale, "结束后")
}

// TestPurchase_DegradedWithoutRedis Redis不可用时仍按数据库结果成交
func TestPurchase_DegradedWithoutRedis(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()
	session := f.createSession(t, time.Hour, 10)
	f.createProduct(t, session.ID(), 1001, 2, true)
	f.openSale(session)
	f.mr.Close()

	result, err := f.purchase.Execute(ctx, PurchaseCommand{SessionID: session.ID(), SkuID: 1001, UserID: 1, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, result.Outcome)

	result, err = f.purchase.Execute(ctx, PurchaseCommand{SessionID: session.ID(), SkuID: 1001, UserID: 2, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSoldOut, result.Outcome)
}

// TestPurchase_DBRejectReleasesReservation 缓存快照滞后时数据库拒绝，回补Redis预扣
func TestPurchase_DBRejectReleasesReservation(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()
	session := f.createSession(t, time.Hour, 10)
	f.createProduct(t, session.ID(), 1001, 5, true)
	f.openSale(session)
	require.NoError(t, f.warm.WarmSession(ctx, session.ID()))

	// 绕过缓存直接在数据库卖完，缓存中的快照和库存都还是5
	for userID, qty := range map[uint]int{1: 2, 2: 2, 3: 1} {
		_, err := f.productRepo.Sell(ctx, domain.SellCommand{SessionID: session.ID(), SkuID: 1001, UserID: userID, Quantity: qty})
		require.NoError(t, err)
	}
	stockKey := fmt.Sprintf("stock:%d", session.ID())
	require.Equal(t, "5", f.mr.HGet(stockKey, "1001"))

	result, err := f.purchase.Execute(ctx, PurchaseCommand{SessionID: session.ID(), SkuID: 1001, UserID: 7, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSoldOut, result.Outcome)
	assert.Equal(t, "5", f.mr.HGet(stockKey, "1001"), "预扣应被回补")
	assert.Equal(t, "", f.mr.HGet(fmt.Sprintf("seckill:bought:%d:1001", session.ID()), "7"))
}

// TestPurchase_PrecheckLimitFromLedger 数据库购买记录已满时在预扣前拒绝
func TestPurchase_PrecheckLimitFromLedger(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()
	session := f.createSession(t, time.Hour, 10)
	f.createProduct(t, session.ID(), 1001, 5, true)
	f.openSale(session)
	require.NoError(t, f.warm.WarmSession(ctx, session.ID()))

	_, err := f.productRepo.Sell(ctx, domain.SellCommand{SessionID: session.ID(), SkuID: 1001, UserID: 7, Quantity: 2})
	require.NoError(t, err)
	stockKey := fmt.Sprintf("stock:%d", session.ID())
	f.mr.HSet(stockKey, "1001", "5")

	result, err := f.purchase.Execute(ctx, PurchaseCommand{SessionID: session.ID(), SkuID: 1001, UserID: 7, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, OutcomeLimitExceeded, result.Outcome)
	assert.Equal(t, "5", f.mr.HGet(stockKey, "1001"), "预检拒绝时不触碰缓存库存")

	// 单次数量超过限购
	result, err = f.purchase.Execute(ctx, PurchaseCommand{SessionID: session.ID(), SkuID: 1001, UserID: 8, Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, OutcomeLimitExceeded, result.Outcome)
}

// TestPurchase_ClosedActivity 活动取消（级联取消场次）或禁用后不能再购买
func TestPurchase_ClosedActivity(t *testing.T) {
	t.Run("取消活动", func(t *testing.T) {
		f := newAppFixture(t)
		ctx := context.Background()
		session := f.createSession(t, time.Hour, 10)
		f.createProduct(t, session.ID(), 1001, 10, true)
		require.NoError(t, f.warm.WarmSession(ctx, session.ID()))

		_, err := f.activities.Cancel(ctx, session.ActivityID())
		require.NoError(t, err)
		f.openSale(session)

		_, err = f.purchase.Execute(ctx, PurchaseCommand{SessionID: session.ID(), SkuID: 1001, UserID: 1, Quantity: 1})
		assert.ErrorIs(t, err, domain.ErrSessionNotOnSale)

		stored, err := f.sessionRepo.FindByID(ctx, session.ID())
		require.NoError(t, err)
		assert.Equal(t, domain.SessionCancelled, stored.Status())
		assert.False(t, stored.IsEnabled())

		product, err := f.productRepo.FindBySku(ctx, session.ID(), 1001)
		require.NoError(t, err)
		assert.Zero(t, product.Stock().Sold())
	})

	t.Run("禁用活动", func(t *testing.T) {
		f := newAppFixture(t)
		ctx := context.Background()
		session := f.createSession(t, time.Hour, 10)
		f.createProduct(t, session.ID(), 1001, 10, true)
		f.openSale(session)

		activity, err := f.activities.ToggleEnabled(ctx, session.ActivityID())
		require.NoError(t, err)
		require.False(t, activity.IsEnabled())

		_, err = f.purchase.Execute(ctx, PurchaseCommand{SessionID: session.ID(), SkuID: 1001, UserID: 1, Quantity: 1})
		assert.ErrorIs(t, err, domain.ErrActivityNotOnSale)

		_, err = f.activities.ToggleEnabled(ctx, session.ActivityID())
		require.NoError(t, err)
		result, err := f.purchase.Execute(ctx, PurchaseCommand{SessionID: session.ID(), SkuID: 1001, UserID: 1, Quantity: 1})
		require.NoError(t, err)
		assert.Equal(t, OutcomeSuccess, result.Outcome)
	})
}

// TestPurchase_Concurrent 30个用户并发抢10件，成交数恰好为10
func TestPurchase_Concurrent(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()
	session := f.createSession(t, time.Hour, 10)
	f.createProduct(t, session.ID(), 1001, 10, true)
	f.openSale(session)
	require.NoError(t, f.warm.WarmSession(ctx, session.ID()))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = map[PurchaseOutcome]int{}
		failures int
	)
	for i := 1; i <= 30; i++ {
		wg.Add(1)
		go func(userID uint) {
			defer wg.Done()
			result, err := f.purchase.Execute(ctx, PurchaseCommand{SessionID: session.ID(), SkuID: 1001, UserID: userID, Quantity: 1})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				return
			}
			outcomes[result.Outcome]++
		}(uint(i))
	}
	wg.Wait()

	assert.Zero(t, failures)
	assert.Equal(t, 10, outcomes[OutcomeSuccess])
	assert.Equal(t, 20, outcomes[OutcomeSoldOut])

	product, err := f.productRepo.FindBySku(ctx, session.ID(), 1001)
	require.NoError(t, err)
	assert.Equal(t, 10, product.Stock().Sold())
}
