package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	appseckill "github.com/xiebiao/seckill/internal/application/seckill"
	domain "github.com/xiebiao/seckill/internal/domain/seckill"
	"github.com/xiebiao/seckill/internal/infrastructure/config"
	"github.com/xiebiao/seckill/internal/infrastructure/persistence/mysql"
	"github.com/xiebiao/seckill/internal/interface/http/handler"
	"github.com/xiebiao/seckill/internal/interface/http/middleware"
	"github.com/xiebiao/seckill/pkg/logger"
	"github.com/xiebiao/seckill/pkg/tracing"
)

const serviceName = "seckill-api"

// @title           秒杀服务API
// @version         1.0
// @description     秒杀活动、场次、商品管理与抢购接口
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	if err := logger.Init(&logger.Config{
		Level:        cfg.Log.Level,
		Format:       cfg.Log.Format,
		Output:       cfg.Log.Output,
		EnableCaller: cfg.Log.EnableCaller,
		ServiceName:  serviceName,
	}); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.InitTracer(serviceName, cfg.Tracing.Endpoint)
		if err != nil {
			logger.Get().Fatal("初始化链路追踪失败", zap.Error(err))
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Warn("关闭链路追踪失败", zap.Error(err))
			}
		}()
	}

	app, cleanup, err := buildApp(cfg)
	if err != nil {
		logger.Get().Fatal("初始化应用失败", zap.Error(err))
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		logger.Error("服务异常退出", zap.Error(err))
		return
	}
	logger.Info("服务已退出")
}

// buildApp 手动组装依赖，与wire.go中的InitializeApp保持一致
// 依赖链：Repository ← Domain Service ← UseCase ← Handler ← Engine
func buildApp(cfg *config.Config) (*App, func(), error) {
	db, closeDB, err := provideDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	redisClient, closeRedis, err := provideRedisClient(cfg)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	events, closeEvents, err := provideEventPublisher(cfg)
	if err != nil {
		closeRedis()
		closeDB()
		return nil, nil, err
	}
	cleanup := func() {
		closeEvents()
		closeRedis()
		closeDB()
	}

	// 基础设施层
	activityRepo := mysql.NewActivityRepository(db)
	sessionRepo := mysql.NewSessionRepository(db)
	productRepo := mysql.NewProductRepository(db)
	txManager := mysql.NewTxManager(db)
	cache := provideSeckillCache(cfg, redisClient)
	counter := provideStockCounter(cfg, redisClient)
	clock := provideClock()
	guard := provideLockoutGuard(cfg)

	// 领域层
	activityService := domain.NewActivityService(activityRepo, sessionRepo, guard, txManager, clock)
	sessionService := domain.NewSessionService(activityRepo, sessionRepo, productRepo, guard, txManager, clock)
	productService := domain.NewProductService(sessionRepo, productRepo, guard, txManager, clock)

	// 应用层
	warm := provideCacheWarmService(cfg, activityRepo, sessionRepo, productRepo, cache)
	activityUseCase := appseckill.NewActivityUseCase(activityService, warm, events, clock)
	sessionUseCase := appseckill.NewSessionUseCase(sessionService, warm, events, clock)
	productUseCase := appseckill.NewProductUseCase(productService, warm)
	purchaseUseCase := providePurchaseUseCase(cfg, warm, activityRepo, productRepo, counter, events, clock)
	worker := provideWarmupWorker(cfg, sessionRepo, sessionUseCase, warm, clock)

	// 接口层
	handlers := &handler.Handlers{
		Activity: handler.NewActivityHandler(activityUseCase),
		Session:  handler.NewSessionHandler(sessionUseCase),
		Product:  handler.NewProductHandler(productUseCase),
		Seckill:  handler.NewSeckillHandler(warm, purchaseUseCase),
	}
	auth := middleware.NewAuthMiddleware(provideJWTManager(cfg))
	engine := provideGinEngine(cfg, handlers, auth)

	return newApp(cfg, engine, worker), cleanup, nil
}
