package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xiebiao/seckill/internal/domain/seckill"
)

// go:embed不允许..向上引用，脚本与使用它的代码放在同一个包
//
//go:embed deduct_stock.lua
var deductStockLua string

//go:embed release_stock.lua
var releaseStockLua string

var (
	deductScript  = redis.NewScript(deductStockLua)
	releaseScript = redis.NewScript(releaseStockLua)
)

// StockCounter Redis预扣库存
// 1. 库存与限购校验在一个Lua脚本内完成，天然原子
// 2. 数据库条件UPDATE仍是最终裁决，预扣只用于在缓存层挡掉售罄和超限购流量
// 3. Script.Run优先EVALSHA，脚本未加载时自动回退EVAL
type StockCounter struct {
	client    *redis.Client
	boughtTTL time.Duration
}

// NewStockCounter 创建预扣计数器，boughtTTL是已购记录的过期时间
func NewStockCounter(client *redis.Client, boughtTTL time.Duration) *StockCounter {
	if boughtTTL <= 0 {
		boughtTTL = DefaultCacheTTL
	}
	return &StockCounter{client: client, boughtTTL: boughtTTL}
}

// LoadScripts 预加载Lua脚本
func (s *StockCounter) LoadScripts(ctx context.Context) error {
	if err := deductScript.Load(ctx, s.client).Err(); err != nil {
		return fmt.Errorf("加载扣减脚本失败: %w", err)
	}
	if err := releaseScript.Load(ctx, s.client).Err(); err != nil {
		return fmt.Errorf("加载回补脚本失败: %w", err)
	}
	return nil
}

// Reserve 预扣库存并登记已购数量
func (s *StockCounter) Reserve(ctx context.Context, sessionID, skuID, userID uint, quantity, maxPerUser int) (seckill.ReserveResult, error) {
	keys := []string{stockKey(sessionID), boughtKey(sessionID, skuID)}
	code, err := deductScript.Run(ctx, s.client, keys,
		skuID, userID, quantity, maxPerUser, int64(s.boughtTTL/time.Second)).Int64()
	if err != nil {
		return seckill.ReserveNotWarmed, fmt.Errorf("执行扣减脚本失败: %w", err)
	}

	result := seckill.ReserveResult(code)
	switch result {
	case seckill.ReserveNotWarmed, seckill.ReserveSoldOut, seckill.ReserveOK, seckill.ReserveLimitExceeded:
		return result, nil
	default:
		return seckill.ReserveNotWarmed, fmt.Errorf("扣减脚本返回值异常: %d", code)
	}
}

// Release 回补预扣
func (s *StockCounter) Release(ctx context.Context, sessionID, skuID, userID uint, quantity int) error {
	keys := []string{stockKey(sessionID), boughtKey(sessionID, skuID)}
	if err := releaseScript.Run(ctx, s.client, keys, skuID, userID, quantity).Err(); err != nil {
		return fmt.Errorf("执行回补脚本失败: %w", err)
	}
	return nil
}
