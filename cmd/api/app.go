package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	appseckill "github.com/xiebiao/seckill/internal/application/seckill"
	domain "github.com/xiebiao/seckill/internal/domain/seckill"
	"github.com/xiebiao/seckill/internal/infrastructure/config"
	"github.com/xiebiao/seckill/internal/infrastructure/persistence/mysql"
	redisstore "github.com/xiebiao/seckill/internal/infrastructure/persistence/redis"
	"github.com/xiebiao/seckill/internal/interface/http/handler"
	"github.com/xiebiao/seckill/internal/interface/http/middleware"
	"github.com/xiebiao/seckill/pkg/circuitbreaker"
	"github.com/xiebiao/seckill/pkg/jwt"
	"github.com/xiebiao/seckill/pkg/logger"
	"github.com/xiebiao/seckill/pkg/metrics"
	"github.com/xiebiao/seckill/pkg/mq"
)

// App 进程内的长生命周期组件
type App struct {
	cfg    *config.Config
	server *http.Server
	worker *appseckill.WarmupWorker // 未启用时为nil
}

func newApp(cfg *config.Config, engine *gin.Engine, worker *appseckill.WarmupWorker) *App {
	return &App{
		cfg: cfg,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      engine,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		worker: worker,
	}
}

// Run 启动后台任务和HTTP服务，ctx取消后优雅退出
func (a *App) Run(ctx context.Context) error {
	if a.worker != nil {
		a.worker.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP服务启动", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if a.worker != nil {
			a.worker.Stop()
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("正在关闭服务...")
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if a.worker != nil {
		a.worker.Stop()
	}
	return a.server.Shutdown(shutdownCtx)
}

// ---- 需要从配置中取参数的Provider，main.go手动组装和wire.go共用 ----

// provideDB 连接MySQL，按配置自动迁移表结构
func provideDB(cfg *config.Config) (*gorm.DB, func(), error) {
	db, err := mysql.NewDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if cfg.Database.AutoMigrate {
		if err := mysql.Migrate(db); err != nil {
			cleanup()
			return nil, nil, err
		}
	}
	return db, cleanup, nil
}

func provideRedisClient(cfg *config.Config) (*goredis.Client, func(), error) {
	client, err := redisstore.NewClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

func provideJWTManager(cfg *config.Config) *jwt.Manager {
	return jwt.NewManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpire)
}

func provideClock() func() time.Time {
	return time.Now
}

func provideLockoutGuard(cfg *config.Config) domain.LockoutGuard {
	window := cfg.Seckill.LockoutWindow
	if window <= 0 {
		window = domain.DefaultLockoutWindow
	}
	return domain.NewLockoutGuard(window)
}

func provideSeckillCache(cfg *config.Config, client *goredis.Client) *redisstore.SeckillCache {
	return redisstore.NewSeckillCache(client, cfg.Seckill.CacheTTL)
}

// provideStockCounter 预加载Lua脚本，加载失败不影响启动（执行时会回退到EVAL）
func provideStockCounter(cfg *config.Config, client *goredis.Client) *redisstore.StockCounter {
	counter := redisstore.NewStockCounter(client, cfg.Seckill.CacheTTL)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := counter.LoadScripts(ctx); err != nil {
		logger.Warn("预加载库存脚本失败", zap.Error(err))
	}
	return counter
}

// newBreaker 连续失败达到阈值即熔断
func newBreaker(name string, cfg *config.Config) *circuitbreaker.CircuitBreaker {
	threshold := cfg.CircuitBreaker.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	cb := circuitbreaker.NewCircuitBreaker(name, circuitbreaker.Config{
		MaxRequests: cfg.CircuitBreaker.MaxRequests,
		Interval:    cfg.CircuitBreaker.Interval,
		Timeout:     cfg.CircuitBreaker.Timeout,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	})
	cb.OnStateChange(func(name string, from, to circuitbreaker.State) {
		logger.Warn("熔断器状态变化",
			zap.String("name", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	})
	return cb
}

func provideCacheWarmService(
	cfg *config.Config,
	activities domain.ActivityRepository,
	sessions domain.SessionRepository,
	products domain.ProductRepository,
	cache *redisstore.SeckillCache,
) *appseckill.CacheWarmService {
	return appseckill.NewCacheWarmService(activities, sessions, products, cache,
		newBreaker("seckill-cache", cfg), cfg.Seckill.WarmConcurrency)
}

func providePurchaseUseCase(
	cfg *config.Config,
	warm *appseckill.CacheWarmService,
	activities domain.ActivityRepository,
	products domain.ProductRepository,
	counter *redisstore.StockCounter,
	events appseckill.EventPublisher,
	now func() time.Time,
) *appseckill.PurchaseUseCase {
	return appseckill.NewPurchaseUseCase(warm, activities, products, counter,
		newBreaker("seckill-stock", cfg), events, cfg.Seckill.PurchaseTimeout, now)
}

// provideEventPublisher 未启用MQ时事件直接丢弃
func provideEventPublisher(cfg *config.Config) (appseckill.EventPublisher, func(), error) {
	if !cfg.MQ.Enabled {
		return appseckill.NopPublisher{}, func() {}, nil
	}
	publisher, err := mq.NewPublisher(cfg.MQ.URL, cfg.MQ.Exchange)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("关闭消息发布者失败", zap.Error(err))
		}
	}
	return appseckill.NewMQEventPublisher(publisher), cleanup, nil
}

func provideWarmupWorker(
	cfg *config.Config,
	sessions domain.SessionRepository,
	usecase *appseckill.SessionUseCase,
	warm *appseckill.CacheWarmService,
	now func() time.Time,
) *appseckill.WarmupWorker {
	if !cfg.Seckill.EnableWorker {
		return nil
	}
	return appseckill.NewWarmupWorker(sessions, usecase, warm,
		cfg.Seckill.WarmLeadTime, cfg.Seckill.ScanInterval, now)
}

// provideGinEngine 全局中间件 + /metrics + Swagger + 业务路由
func provideGinEngine(cfg *config.Config, handlers *handler.Handlers, auth *middleware.AuthMiddleware) *gin.Engine {
	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Tracing(),
		middleware.Metrics(),
		middleware.AccessLog(),
	)

	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	if cfg.Server.Mode != gin.ReleaseMode {
		// http://localhost:8080/swagger/index.html
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, handlers, auth)
	return r
}
