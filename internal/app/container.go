// Package app 组装各个上下文的仓储与应用服务，供 API 服务与运维 CLI 共用
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/metrics"
	accountapp "github.com/wyfcoding/storefront/internal/account/application"
	accountdomain "github.com/wyfcoding/storefront/internal/account/domain"
	"github.com/wyfcoding/storefront/internal/account/infrastructure/mail"
	accountmysql "github.com/wyfcoding/storefront/internal/account/infrastructure/persistence/mysql"
	"github.com/wyfcoding/storefront/internal/account/infrastructure/verification"
	catalogapp "github.com/wyfcoding/storefront/internal/catalog/application"
	catalogdomain "github.com/wyfcoding/storefront/internal/catalog/domain"
	catalogmysql "github.com/wyfcoding/storefront/internal/catalog/infrastructure/persistence/mysql"
	purchaseapp "github.com/wyfcoding/storefront/internal/purchase/application"
	purchasedomain "github.com/wyfcoding/storefront/internal/purchase/domain"
	purchasemysql "github.com/wyfcoding/storefront/internal/purchase/infrastructure/persistence/mysql"
	statsapp "github.com/wyfcoding/storefront/internal/statistics/application"
	statsdomain "github.com/wyfcoding/storefront/internal/statistics/domain"
	statscache "github.com/wyfcoding/storefront/internal/statistics/infrastructure/cache"
	statsmysql "github.com/wyfcoding/storefront/internal/statistics/infrastructure/persistence/mysql"
	"github.com/wyfcoding/storefront/pkg/auth"
	"github.com/wyfcoding/storefront/pkg/config"
	"github.com/wyfcoding/storefront/pkg/db"
	"github.com/wyfcoding/storefront/pkg/mq"
	"gorm.io/gorm"
)

// Models 需要建表的全部实体
func Models() []any {
	return []any{
		&catalogdomain.Product{},
		&catalogdomain.ProductCategory{},
		&catalogdomain.PriceHistory{},
		&accountdomain.Buyer{},
		&accountdomain.Administrator{},
		&purchasedomain.Purchase{},
		&statsdomain.Statistics{},
	}
}

// AutoMigrate 按实体定义建表，生产环境应使用 migrations 目录
func AutoMigrate(ctx context.Context, gdb *gorm.DB) error {
	if err := gdb.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	logging.Info(ctx, "Database schema migrated", "models", len(Models()))
	return nil
}

// Deps 外部依赖，Redis 为 nil 时使用进程内实现，Tx 为 nil 时直接在 DB 上开启事务
type Deps struct {
	Config    *config.Config
	DB        *gorm.DB
	Tx        db.Transactor
	Redis     redis.UniversalClient
	Publisher mq.Publisher
	Metrics   *metrics.Metrics
}

// Container 全部应用服务
type Container struct {
	Issuer *auth.TokenIssuer

	CatalogCommands *catalogapp.CatalogCommandService
	CatalogQueries  *catalogapp.CatalogQueryService
	ProductCSV      *catalogapp.ProductCSVService

	Registration    *accountapp.RegistrationService
	AccountCommands *accountapp.AccountCommandService
	AccountQueries  *accountapp.AccountQueryService

	Purchases      *purchaseapp.PurchaseCoordinator
	PurchaseQuery  *purchaseapp.PurchaseQueryService
	Reconciler     *statsapp.ReconcileService
	StatisticsView *statsapp.StatisticsQueryService

	verification accountdomain.VerificationStore
}

// New 组装容器
func New(d Deps) (*Container, error) {
	cfg := d.Config
	tx := d.Tx
	if tx == nil {
		tx = db.GormTransactor{DB: d.DB}
	}
	publisher := d.Publisher
	if publisher == nil {
		publisher = mq.LogPublisher{}
	}

	products := catalogmysql.NewProductRepository(d.DB)
	categories := catalogmysql.NewCategoryRepository(d.DB)
	history := catalogmysql.NewPriceHistoryRepository(d.DB)
	buyers := accountmysql.NewBuyerRepository(d.DB)
	admins := accountmysql.NewAdminRepository(d.DB)
	purchases := purchasemysql.NewPurchaseRepository(d.DB)
	stats := statsmysql.NewStatisticsRepository(d.DB)

	store, err := newVerificationStore(cfg.Verification, d.Redis)
	if err != nil {
		return nil, err
	}

	var dashboardCache statsdomain.DashboardCache
	if d.Redis != nil && cfg.Catalog.DashboardCacheTTL > 0 {
		dashboardCache = statscache.NewRedisDashboardCache(d.Redis, cfg.Catalog.DashboardCacheTTL)
	}

	issuer := auth.NewTokenIssuer(cfg.JWT)
	catalogCmd := catalogapp.NewCatalogCommandService(tx, products, categories, history, publisher)

	return &Container{
		Issuer: issuer,

		CatalogCommands: catalogCmd,
		CatalogQueries:  catalogapp.NewCatalogQueryService(products, categories, history),
		ProductCSV:      catalogapp.NewProductCSVService(catalogCmd, products, categories),

		Registration: accountapp.NewRegistrationService(buyers, store, mail.New(cfg.Mail), publisher,
			cfg.Verification.TTL),
		AccountCommands: accountapp.NewAccountCommandService(tx, buyers, admins, issuer, publisher),
		AccountQueries:  accountapp.NewAccountQueryService(buyers, admins),

		Purchases:      purchaseapp.NewPurchaseCoordinator(tx, purchases, products, buyers, stats, publisher, purchaseapp.NewPurchaseMetrics(d.Metrics)),
		PurchaseQuery:  purchaseapp.NewPurchaseQueryService(purchases),
		Reconciler:     statsapp.NewReconcileService(tx, products, purchases, stats, dashboardCache, publisher, statsapp.NewReconcileMetrics(d.Metrics)),
		StatisticsView: statsapp.NewStatisticsQueryService(products, buyers, purchases, stats, dashboardCache, cfg.Catalog.LowStockThreshold),

		verification: store,
	}, nil
}

// Close 释放容器持有的后台资源
func (c *Container) Close() error {
	return c.verification.Close()
}

func newVerificationStore(cfg config.VerificationConfig, client redis.UniversalClient) (accountdomain.VerificationStore, error) {
	switch cfg.Store {
	case "", "memory":
		return verification.NewMemoryStore(cfg.TTL, cfg.SweepInterval), nil
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("verification store redis requires storefront.redis_enabled")
		}
		return verification.NewRedisStore(client, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unsupported verification store: %s", cfg.Store)
	}
}
