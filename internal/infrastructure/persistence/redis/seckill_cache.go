package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xiebiao/seckill/internal/domain/seckill"
)

// DefaultCacheTTL 预热缓存默认过期时间
const DefaultCacheTTL = 7200 * time.Second

// SeckillCache 秒杀场次预热缓存
//
// Key设计（订单子系统直接读取，格式不能改）:
//   - session:{session_id}            场次JSON
//   - session:{session_id}:products   哈希 sku_id -> 商品JSON
//   - stock:{session_id}              哈希 sku_id -> 剩余库存（只包含已启用商品）
//
// 三个Key在同一个MULTI中写入，读方不会看到半写状态
type SeckillCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSeckillCache 创建场次缓存，ttl<=0时使用7200秒
func NewSeckillCache(client *redis.Client, ttl time.Duration) *SeckillCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &SeckillCache{client: client, ttl: ttl}
}

// TTL 缓存过期时间
func (c *SeckillCache) TTL() time.Duration { return c.ttl }

// SaveSession 覆盖写入场次快照、商品快照和库存
func (c *SeckillCache) SaveSession(ctx context.Context, session *seckill.Session, products []*seckill.Product) error {
	sessionJSON, err := json.Marshal(session.State())
	if err != nil {
		return fmt.Errorf("序列化场次失败: %w", err)
	}

	productFields := make(map[string]interface{}, len(products))
	stockFields := make(map[string]interface{}, len(products))
	for _, p := range products {
		data, err := json.Marshal(p.State())
		if err != nil {
			return fmt.Errorf("序列化商品失败: %w", err)
		}
		field := skuField(p.SkuID())
		productFields[field] = data
		if p.IsEnabled() {
			stockFields[field] = p.Stock().Remaining()
		}
	}

	id := session.ID()
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, productsKey(id), stockKey(id))
		pipe.Set(ctx, sessionKey(id), sessionJSON, c.ttl)
		if len(productFields) > 0 {
			pipe.HSet(ctx, productsKey(id), productFields)
			pipe.Expire(ctx, productsKey(id), c.ttl)
		}
		if len(stockFields) > 0 {
			pipe.HSet(ctx, stockKey(id), stockFields)
			pipe.Expire(ctx, stockKey(id), c.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("写入场次缓存失败: %w", err)
	}
	return nil
}

// GetSession 读取场次快照，未命中返回nil, nil
func (c *SeckillCache) GetSession(ctx context.Context, sessionID uint) (*seckill.Session, error) {
	val, err := c.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("获取场次缓存失败: %w", err)
	}

	var state seckill.SessionState
	if err := json.Unmarshal(val, &state); err != nil {
		return nil, fmt.Errorf("反序列化场次失败: %w", err)
	}
	return seckill.RestoreSession(state), nil
}

// GetProduct 读取单个商品快照，未命中返回nil, nil
func (c *SeckillCache) GetProduct(ctx context.Context, sessionID, skuID uint) (*seckill.Product, error) {
	val, err := c.client.HGet(ctx, productsKey(sessionID), skuField(skuID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("获取商品缓存失败: %w", err)
	}
	return decodeProduct(val)
}

// GetProducts 读取场次全部商品快照，未命中返回nil, nil
func (c *SeckillCache) GetProducts(ctx context.Context, sessionID uint) ([]*seckill.Product, error) {
	vals, err := c.client.HGetAll(ctx, productsKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("获取商品缓存失败: %w", err)
	}
	if len(vals) == 0 {
		return nil, nil
	}

	products := make([]*seckill.Product, 0, len(vals))
	for _, v := range vals {
		p, err := decodeProduct([]byte(v))
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

// GetStock 读取缓存中的剩余库存，ok=false表示该商品不在库存哈希中
func (c *SeckillCache) GetStock(ctx context.Context, sessionID, skuID uint) (remaining int, ok bool, err error) {
	remaining, err = c.client.HGet(ctx, stockKey(sessionID), skuField(skuID)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("获取库存缓存失败: %w", err)
	}
	return remaining, true, nil
}

// SaveProduct 刷新单个商品快照（售罄后回写）
// 场次未预热时不写入；售罄商品的库存字段置0而不是删除，抢购请求直接在缓存返回售罄
func (c *SeckillCache) SaveProduct(ctx context.Context, product *seckill.Product) error {
	id := product.SessionID()
	exists, err := c.client.Exists(ctx, sessionKey(id)).Result()
	if err != nil {
		return fmt.Errorf("检查场次缓存失败: %w", err)
	}
	if exists == 0 {
		return nil
	}

	data, err := json.Marshal(product.State())
	if err != nil {
		return fmt.Errorf("序列化商品失败: %w", err)
	}

	field := skuField(product.SkuID())
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, productsKey(id), field, data)
		pipe.Expire(ctx, productsKey(id), c.ttl)
		if product.Stock().IsSoldOut() {
			pipe.HSet(ctx, stockKey(id), field, 0)
			pipe.Expire(ctx, stockKey(id), c.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("写入商品缓存失败: %w", err)
	}
	return nil
}

// Evict 删除场次的三个缓存Key，已购哈希随TTL过期
func (c *SeckillCache) Evict(ctx context.Context, sessionID uint) error {
	if err := c.client.Del(ctx, sessionKey(sessionID), productsKey(sessionID), stockKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("删除场次缓存失败: %w", err)
	}
	return nil
}

func decodeProduct(data []byte) (*seckill.Product, error) {
	var state seckill.ProductState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("反序列化商品失败: %w", err)
	}
	return seckill.RestoreProduct(state), nil
}

// sessionKey 格式：session:{session_id}
func sessionKey(sessionID uint) string {
	return fmt.Sprintf("session:%d", sessionID)
}

// productsKey 格式：session:{session_id}:products
func productsKey(sessionID uint) string {
	return fmt.Sprintf("session:%d:products", sessionID)
}

// stockKey 格式：stock:{session_id}
func stockKey(sessionID uint) string {
	return fmt.Sprintf("stock:%d", sessionID)
}

// boughtKey 格式：seckill:bought:{session_id}:{sku_id}
func boughtKey(sessionID, skuID uint) string {
	return fmt.Sprintf("seckill:bought:%d:%d", sessionID, skuID)
}

func skuField(skuID uint) string {
	return strconv.FormatUint(uint64(skuID), 10)
}
