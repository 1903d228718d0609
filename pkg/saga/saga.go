// Package saga 顺序执行一组本地步骤，某一步失败时按逆序执行已完成步骤的补偿。
//
// 补偿必须幂等：网络抖动时同一个补偿可能被执行多次。
// Saga只保证最终一致，补偿期间数据可能处于中间状态。
package saga

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xiebiao/seckill/pkg/logger"
	"github.com/xiebiao/seckill/pkg/metrics"
)

// Step Saga中的一个步骤
type Step struct {
	Name       string
	Action     func(ctx context.Context) error
	Compensate func(ctx context.Context) error // 可以为nil
}

// Saga 一次编排
// 不可复用，每个请求创建一个新的Saga
type Saga struct {
	name     string
	steps    []Step
	executed []Step
	timeout  time.Duration
}

// NewSaga 创建Saga，timeout<=0表示不限制整体耗时
func NewSaga(name string, timeout time.Duration) *Saga {
	return &Saga{
		name:    name,
		timeout: timeout,
	}
}

// AddStep 追加步骤，按添加顺序执行，按逆序补偿
func (s *Saga) AddStep(name string, action, compensate func(ctx context.Context) error) *Saga {
	s.steps = append(s.steps, Step{
		Name:       name,
		Action:     action,
		Compensate: compensate,
	})
	return s
}

// Execute 执行全部步骤
// 返回的错误包装了失败步骤的原始错误，可以用errors.Is判断
func (s *Saga) Execute(ctx context.Context) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	for i, step := range s.steps {
		if err := ctx.Err(); err != nil {
			s.compensate(ctx)
			metrics.SagaExecutionsTotal.WithLabelValues(s.name, "failure").Inc()
			return fmt.Errorf("saga[%s]超时: %w", s.name, err)
		}

		if step.Action != nil {
			if err := step.Action(ctx); err != nil {
				s.compensate(ctx)
				metrics.SagaExecutionsTotal.WithLabelValues(s.name, "failure").Inc()
				return fmt.Errorf("saga[%s]步骤[%d:%s]失败: %w", s.name, i, step.Name, err)
			}
		}
		s.executed = append(s.executed, step)
	}

	metrics.SagaExecutionsTotal.WithLabelValues(s.name, "success").Inc()
	return nil
}

// compensate 逆序补偿，单个补偿失败只记录日志，继续补偿其余步骤
// 使用脱离取消信号的ctx，超时后补偿仍然要执行
func (s *Saga) compensate(parent context.Context) {
	ctx := context.WithoutCancel(parent)
	for i := len(s.executed) - 1; i >= 0; i-- {
		step := s.executed[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			metrics.SagaCompensationsTotal.WithLabelValues(step.Name, "failure").Inc()
			logger.WithContext(ctx).Error("saga补偿失败，需要人工介入",
				zap.String("saga", s.name),
				zap.String("step", step.Name),
				zap.Error(err),
			)
			continue
		}
		metrics.SagaCompensationsTotal.WithLabelValues(step.Name, "success").Inc()
	}
	s.executed = nil
}
