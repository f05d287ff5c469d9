// Storefront 主程序
// 功能：商品目录、买家账户、购买交易与销售统计的 HTTP API
// 架构：DDD 分层 + gin + GORM + Redis + Kafka
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/wyfcoding/pkg/app"
	"github.com/wyfcoding/pkg/databases"
	"github.com/wyfcoding/pkg/limiter"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/messagequeue/kafka"
	"github.com/wyfcoding/pkg/metrics"
	pkgmiddleware "github.com/wyfcoding/pkg/middleware"
	"github.com/wyfcoding/pkg/redis"
	accounthttp "github.com/wyfcoding/storefront/internal/account/interfaces/http"
	storefrontapp "github.com/wyfcoding/storefront/internal/app"
	cataloghttp "github.com/wyfcoding/storefront/internal/catalog/interfaces/http"
	purchasehttp "github.com/wyfcoding/storefront/internal/purchase/interfaces/http"
	statshttp "github.com/wyfcoding/storefront/internal/statistics/interfaces/http"
	"github.com/wyfcoding/storefront/pkg/config"
	"github.com/wyfcoding/storefront/pkg/db"
	"github.com/wyfcoding/storefront/pkg/middleware"
	"github.com/wyfcoding/storefront/pkg/mq"
)

// BootstrapName 服务唯一标识
const BootstrapName = "storefront"

// AppContext 应用上下文
type AppContext struct {
	Config    *config.Config
	Container *storefrontapp.Container
	DB        *databases.DB
	Throttle  limiter.Limiter
	Metrics   *metrics.Metrics
}

func main() {
	var appCtx *AppContext
	if err := app.NewBuilder(BootstrapName).
		WithConfig(config.Default()).
		WithService(func(c any, m *metrics.Metrics) (any, func(), error) {
			ctx, cleanup, err := initService(c.(*config.Config), m)
			appCtx = ctx
			return ctx, cleanup, err
		}).
		WithGin(registerGin).
		WithGinMiddleware(pkgmiddleware.CORS()).
		WithHealthChecker(func() error {
			if appCtx == nil {
				return errors.New("service not initialized")
			}
			sqlDB, err := appCtx.DB.RawDB().DB()
			if err != nil {
				return err
			}
			return sqlDB.Ping()
		}).
		Build().
		Run(); err != nil {
		slog.Error("service bootstrap failed", "error", err)
	}
}

func registerGin(e *gin.Engine, svc any) {
	ctx := svc.(*AppContext)
	c := ctx.Container

	api := e.Group("/api/v1")
	authed := api.Group("", middleware.RequireAuth(c.Issuer))
	buyer := authed.Group("", middleware.RequireBuyer())
	admin := authed.Group("", middleware.RequireAdmin())
	throttle := middleware.Throttle(ctx.Throttle, "auth")

	cataloghttp.NewCatalogHandler(c.CatalogCommands, c.CatalogQueries, c.ProductCSV, ctx.Config.Storefront.MaxUploadMB).
		RegisterRoutes(api, admin)
	accounthttp.NewAccountHandler(c.Registration, c.AccountCommands, c.AccountQueries).
		RegisterRoutes(api, authed, admin, throttle)
	purchasehttp.NewPurchaseHandler(c.Purchases, c.PurchaseQuery).
		RegisterRoutes(buyer, authed, admin)
	statshttp.NewStatisticsHandler(c.Reconciler, c.StatisticsView).
		RegisterRoutes(admin)
}

func initService(cfg *config.Config, m *metrics.Metrics) (*AppContext, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	logging.InitLogger(cfg.Server.Name, "storefront", cfg.Log.Level)
	bootLog := slog.With("module", "bootstrap")
	logger := logging.Default()
	ctx := context.Background()

	// 1. 数据库
	dbWrapper, err := databases.NewDB(cfg.Data.Database, cfg.CircuitBreaker, logger, m)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init db: %w", err)
	}
	gdb := dbWrapper.RawDB()
	// 唯一约束冲突统一转换为 gorm.ErrDuplicatedKey
	gdb.Config.TranslateError = true

	if cfg.Storefront.AutoMigrate {
		if err := storefrontapp.AutoMigrate(ctx, gdb); err != nil {
			_ = dbWrapper.Close()
			return nil, nil, err
		}
	}
	cleanups := []func(){func() { _ = dbWrapper.Close() }}
	cleanup := func() {
		bootLog.Info("shutting down...")
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// 2. Redis 与限流
	var (
		redisClient *goredis.Client
		throttle    limiter.Limiter
	)
	if cfg.Storefront.RedisEnabled {
		client, closeRedis, err := redis.NewClient(&cfg.Data.Redis, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to init redis: %w", err)
		}
		redisClient = client
		cleanups = append(cleanups, closeRedis)
	}
	if cfg.Throttle.Enabled {
		if redisClient != nil {
			throttle = limiter.NewRedisLimiterWithBurst(redisClient, cfg.Throttle.Rate, cfg.Throttle.Burst)
		} else {
			throttle = middleware.NewKeyedLocalLimiter(cfg.Throttle.Rate, cfg.Throttle.Burst)
		}
	}

	// 3. 事件发布
	var publisher mq.Publisher = mq.LogPublisher{}
	if cfg.Storefront.KafkaEnabled {
		publisher = mq.NewKafkaPublisher(kafka.NewProducer(cfg.MessageQueue.Kafka, logger, m), cfg.MessageQueue.Kafka.Topic)
	}
	cleanups = append(cleanups, func() { _ = publisher.Close() })

	// 4. 依赖注入
	deps := storefrontapp.Deps{
		Config:    cfg,
		DB:        gdb,
		Tx:        db.BreakerTransactor{DB: dbWrapper},
		Publisher: publisher,
		Metrics:   m,
	}
	if redisClient != nil {
		deps.Redis = redisClient
	}
	container, err := storefrontapp.New(deps)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to build services: %w", err)
	}
	cleanups = append(cleanups, func() { _ = container.Close() })

	logging.Info(ctx, "Storefront initialized",
		"environment", cfg.Server.Environment,
		"redis", cfg.Storefront.RedisEnabled,
		"kafka", cfg.Storefront.KafkaEnabled,
	)

	return &AppContext{
		Config:    cfg,
		Container: container,
		DB:        dbWrapper,
		Throttle:  throttle,
		Metrics:   m,
	}, cleanup, nil
}
