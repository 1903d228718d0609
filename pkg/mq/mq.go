// Package mq 基于RabbitMQ的领域事件发布
//
// 事件发往topic类型的Exchange，路由键形如seckill.session.sold_out，
// 订单、通知等下游服务按seckill.#或seckill.session.*绑定自己的队列。
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/xiebiao/seckill/pkg/logger"
	"github.com/xiebiao/seckill/pkg/metrics"
)

// Publisher 消息发布者，并发安全
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	mu       sync.Mutex
}

// NewPublisher 连接RabbitMQ并声明持久化的topic Exchange
func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("连接RabbitMQ失败: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("创建Channel失败: %w", err)
	}

	// durable=true, autoDelete=false, internal=false, noWait=false
	if err := channel.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("声明Exchange失败: %w", err)
	}

	p := &Publisher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
	}
	go p.watchClose(conn.NotifyClose(make(chan *amqp.Error, 1)))

	logger.Info("消息发布者已创建", zap.String("exchange", exchange))
	return p, nil
}

func (p *Publisher) watchClose(ch <-chan *amqp.Error) {
	if err, ok := <-ch; ok && err != nil {
		logger.Error("RabbitMQ连接断开", zap.String("exchange", p.exchange), zap.Error(err))
	}
}

// Publish 以JSON持久化消息发布，messageID用于下游去重
func (p *Publisher) Publish(ctx context.Context, routingKey, messageID string, message interface{}) error {
	msg, err := newPublishing(messageID, message, time.Now())
	if err != nil {
		return err
	}

	p.mu.Lock()
	// mandatory=false, immediate=false
	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	p.mu.Unlock()

	metrics.MessagesPublishedTotal.WithLabelValues(routingKey, metrics.Result(err == nil)).Inc()
	if err != nil {
		return fmt.Errorf("发布消息失败: %w", err)
	}

	logger.WithContext(ctx).Debug("消息已发布",
		zap.String("routing_key", routingKey),
		zap.String("message_id", messageID),
	)
	return nil
}

// Close 关闭Channel和连接
func (p *Publisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func newPublishing(messageID string, message interface{}, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(message)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("消息序列化失败: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    now,
		Body:         body,
	}, nil
}
