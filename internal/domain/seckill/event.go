package seckill

import (
	"time"

	"github.com/google/uuid"
)

// 领域事件路由键
const (
	EventActivityStarted   = "seckill.activity.started"
	EventActivityEnded     = "seckill.activity.ended"
	EventActivityCancelled = "seckill.activity.cancelled"
	EventSessionStarted    = "seckill.session.started"
	EventSessionEnded      = "seckill.session.ended"
	EventSessionCancelled  = "seckill.session.cancelled"
	EventSessionSoldOut    = "seckill.session.sold_out"
	EventProductSoldOut    = "seckill.product.sold_out"
	EventPurchaseSucceeded = "seckill.purchase.succeeded"
)

// Event 领域事件
type Event struct {
	ID          string      `json:"event_id"`
	Type        string      `json:"event_type"`
	AggregateID uint        `json:"aggregate_id"`
	OccurredAt  time.Time   `json:"occurred_at"`
	Payload     interface{} `json:"payload,omitempty"`
}

// NewEvent 创建领域事件
func NewEvent(eventType string, aggregateID uint, payload interface{}, now time.Time) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		AggregateID: aggregateID,
		OccurredAt:  now,
		Payload:     payload,
	}
}

// PurchasePayload 抢购成功事件内容，订单子系统据此生成订单行
type PurchasePayload struct {
	ActivityID   uint  `json:"activity_id"`
	SessionID    uint  `json:"session_id"`
	ProductID    uint  `json:"product_id"`
	SkuID        uint  `json:"product_sku_id"`
	UserID       uint  `json:"user_id"`
	Quantity     int   `json:"quantity"`
	SeckillPrice int64 `json:"seckill_price"`
}
