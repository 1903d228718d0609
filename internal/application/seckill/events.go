package seckill

import (
	"context"

	"go.uber.org/zap"

	domain "github.com/xiebiao/seckill/internal/domain/seckill"
	"github.com/xiebiao/seckill/pkg/logger"
)

// EventPublisher 领域事件发布
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// NopPublisher 未启用消息队列时使用
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.Event) error { return nil }

// messagePublisher pkg/mq.Publisher满足该接口
type messagePublisher interface {
	Publish(ctx context.Context, routingKey, messageID string, message interface{}) error
}

// MQEventPublisher 以事件类型作为路由键、事件ID作为消息ID发布到RabbitMQ
type MQEventPublisher struct {
	publisher messagePublisher
}

// NewMQEventPublisher 创建RabbitMQ事件发布者
func NewMQEventPublisher(publisher messagePublisher) *MQEventPublisher {
	return &MQEventPublisher{publisher: publisher}
}

func (p *MQEventPublisher) Publish(ctx context.Context, event domain.Event) error {
	return p.publisher.Publish(ctx, event.Type, event.ID, event)
}

// publishEvent 事件发布失败只记录日志，不影响已经提交的业务操作
func publishEvent(ctx context.Context, publisher EventPublisher, event domain.Event) {
	if err := publisher.Publish(ctx, event); err != nil {
		logger.WithContext(ctx).Warn("领域事件发布失败",
			zap.String("event_type", event.Type),
			zap.String("event_id", event.ID),
			zap.Uint("aggregate_id", event.AggregateID),
			zap.Error(err),
		)
	}
}
