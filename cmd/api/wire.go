//go:build wireinject
// +build wireinject

// Wire依赖注入配置
//
// 生成代码：wire gen ./cmd/api
// 依赖图与main.go中的buildApp一致，需要从配置中取参数的Provider定义在app.go。

package main

import (
	"github.com/google/wire"

	appseckill "github.com/xiebiao/seckill/internal/application/seckill"
	domain "github.com/xiebiao/seckill/internal/domain/seckill"
	"github.com/xiebiao/seckill/internal/infrastructure/config"
	"github.com/xiebiao/seckill/internal/infrastructure/persistence/mysql"
	"github.com/xiebiao/seckill/internal/interface/http/handler"
	"github.com/xiebiao/seckill/internal/interface/http/middleware"
)

// infrastructureSet 数据库、Redis、消息队列
var infrastructureSet = wire.NewSet(
	provideDB,
	provideRedisClient,
	provideEventPublisher,
	provideSeckillCache,
	provideStockCounter,
	provideClock,
)

// repositorySet 仓储和事务管理器
var repositorySet = wire.NewSet(
	mysql.NewActivityRepository,
	mysql.NewSessionRepository,
	mysql.NewProductRepository,
	mysql.NewTxManager,
	wire.Bind(new(domain.Transactor), new(*mysql.TxManager)),
)

// domainSet 领域服务
var domainSet = wire.NewSet(
	provideLockoutGuard,
	domain.NewActivityService,
	domain.NewSessionService,
	domain.NewProductService,
)

// applicationSet 用例、缓存预热、后台任务
var applicationSet = wire.NewSet(
	provideCacheWarmService,
	appseckill.NewActivityUseCase,
	appseckill.NewSessionUseCase,
	appseckill.NewProductUseCase,
	providePurchaseUseCase,
	provideWarmupWorker,
)

// interfaceSet 中间件、Handler、Gin引擎
var interfaceSet = wire.NewSet(
	provideJWTManager,
	middleware.NewAuthMiddleware,
	handler.NewActivityHandler,
	handler.NewSessionHandler,
	handler.NewProductHandler,
	handler.NewSeckillHandler,
	wire.Struct(new(handler.Handlers), "*"),
	provideGinEngine,
)

// InitializeApp 组装整个应用，cleanup按创建的逆序释放连接
func InitializeApp(cfg *config.Config) (*App, func(), error) {
	wire.Build(
		infrastructureSet,
		repositorySet,
		domainSet,
		applicationSet,
		interfaceSet,
		newApp,
	)
	return nil, nil, nil
}
