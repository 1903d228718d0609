package seckill

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	domain "github.com/xiebiao/seckill/internal/domain/seckill"
	"github.com/xiebiao/seckill/pkg/logger"
	"github.com/xiebiao/seckill/pkg/metrics"
)

// WarmupWorker 后台扫描场次
//
// 每个周期依次：
//  1. 结束时间已过的场次持久化为ended并清理缓存
//  2. 已进入售卖窗口但仍为pending的场次持久化为active
//  3. 即将在leadTime内开始的场次，缓存中没有时预热
//
// 多实例部署时各实例都会扫描，每一步都是幂等的。
type WarmupWorker struct {
	sessions domain.SessionRepository
	usecase  *SessionUseCase
	warm     *CacheWarmService
	leadTime time.Duration
	interval time.Duration
	now      func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewWarmupWorker 创建后台扫描任务
func NewWarmupWorker(
	sessions domain.SessionRepository,
	usecase *SessionUseCase,
	warm *CacheWarmService,
	leadTime, interval time.Duration,
	now func() time.Time,
) *WarmupWorker {
	if now == nil {
		now = time.Now
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &WarmupWorker{
		sessions: sessions,
		usecase:  usecase,
		warm:     warm,
		leadTime: leadTime,
		interval: interval,
		now:      now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start 启动后台循环，立即执行一次，之后每interval执行一次
func (w *WarmupWorker) Start(ctx context.Context) {
	go func() {
		defer close(w.done)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			if err := w.RunOnce(ctx); err != nil {
				logger.Warn("场次扫描出现错误", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return
			case <-w.stop:
				return
			case <-ticker.C:
			}
		}
	}()
	logger.Info("场次预热任务已启动",
		zap.Duration("interval", w.interval),
		zap.Duration("lead_time", w.leadTime),
	)
}

// Stop 停止后台循环并等待当前周期结束，只能在Start之后调用
func (w *WarmupWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
}

// RunOnce 执行一个扫描周期，单个场次失败不中断本周期
func (w *WarmupWorker) RunOnce(ctx context.Context) error {
	now := w.now()
	var errs []error

	due, err := w.sessions.ListDueForEnd(ctx, now)
	if err != nil {
		errs = append(errs, err)
	}
	for _, s := range due {
		if _, err := w.usecase.End(ctx, s.ID()); err != nil {
			errs = append(errs, err)
			continue
		}
		metrics.WorkerTransitionsTotal.WithLabelValues("end").Inc()
	}

	due, err = w.sessions.ListDueForStart(ctx, now)
	if err != nil {
		errs = append(errs, err)
	}
	for _, s := range due {
		if _, err := w.usecase.Start(ctx, s.ID()); err != nil {
			errs = append(errs, err)
			continue
		}
		metrics.WorkerTransitionsTotal.WithLabelValues("start").Inc()
	}

	upcoming, err := w.sessions.ListStartingBetween(ctx, now, now.Add(w.leadTime))
	if err != nil {
		errs = append(errs, err)
	}
	for _, s := range upcoming {
		warmed, err := w.warm.EnsureWarmed(ctx, s.ID())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if warmed {
			metrics.WorkerTransitionsTotal.WithLabelValues("warm").Inc()
			logger.Info("场次已预热",
				zap.Uint("session_id", s.ID()),
				zap.Time("start_time", s.Period().Start()),
			)
		}
	}

	return errors.Join(errs...)
}
