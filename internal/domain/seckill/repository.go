package seckill

import (
	"context"
	"time"
)

// Transactor 事务边界
// fn内通过ctx调用的仓储方法在同一事务中执行，fn返回error时回滚
type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// directTx 不开启事务，直接执行fn
type directTx struct{}

func (directTx) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// ActivityRepository 活动仓储接口
// 由domain层定义，infrastructure层实现
type ActivityRepository interface {
	Create(ctx context.Context, activity *Activity) error
	FindByID(ctx context.Context, id uint) (*Activity, error)
	Update(ctx context.Context, activity *Activity) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, params ActivityListParams) ([]*Activity, int64, error)
}

// ActivityListParams 活动列表查询参数
type ActivityListParams struct {
	Page     int            // 页码(从1开始)
	PageSize int            // 每页数量
	Status   ActivityStatus // 为空表示不过滤
}

// SessionRepository 场次仓储接口
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	FindByID(ctx context.Context, id uint) (*Session, error)

	// LockByID 事务内加行锁读取，串行化同一场次下的容量校验
	LockByID(ctx context.Context, id uint) (*Session, error)

	Update(ctx context.Context, session *Session) error

	// Delete 删除场次及其秒杀商品（同一事务）
	Delete(ctx context.Context, id uint) error

	ListByActivity(ctx context.Context, activityID uint) ([]*Session, error)
	CountByActivity(ctx context.Context, activityID uint) (int64, error)

	// ListStartingBetween 已启用、未开始且开始时间在[from, to]内的场次（预热候选）
	ListStartingBetween(ctx context.Context, from, to time.Time) ([]*Session, error)

	// ListDueForStart 已启用、存储状态为pending、当前处于售卖窗口内的场次
	ListDueForStart(ctx context.Context, now time.Time) ([]*Session, error)

	// ListDueForEnd 结束时间已过但存储状态尚未ended/cancelled的场次
	ListDueForEnd(ctx context.Context, now time.Time) ([]*Session, error)
}

// ProductRepository 秒杀商品仓储接口
type ProductRepository interface {
	Create(ctx context.Context, product *Product) error
	FindByID(ctx context.Context, id uint) (*Product, error)
	FindBySku(ctx context.Context, sessionID, skuID uint) (*Product, error)
	Update(ctx context.Context, product *Product) error
	Delete(ctx context.Context, id uint) error
	ListBySession(ctx context.Context, sessionID uint) ([]*Product, error)

	// Sell 原子扣减库存并登记用户购买数量
	// 库存不足返回ErrInsufficientStock，超过限购返回ErrPurchaseLimitExceeded
	Sell(ctx context.Context, cmd SellCommand) (*SellResult, error)

	// PurchasedQuantity 用户在该场次该SKU上已购数量
	PurchasedQuantity(ctx context.Context, sessionID, skuID, userID uint) (int, error)
}

// SellCommand 扣减命令
type SellCommand struct {
	SessionID uint
	SkuID     uint
	UserID    uint
	Quantity  int
}

// SellResult 扣减结果
type SellResult struct {
	Product        *Product // 扣减后的商品
	Purchased      int      // 用户累计已购数量
	ProductSoldOut bool     // 本次扣减后商品售罄
	SessionSoldOut bool     // 本次扣减后场次售罄
}
