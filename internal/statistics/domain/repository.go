package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	catalogdomain "github.com/wyfcoding/storefront/internal/catalog/domain"
	purchasedomain "github.com/wyfcoding/storefront/internal/purchase/domain"
)

// StatisticsRepository 统计仓储，查询不到时返回 (nil, nil)
type StatisticsRepository interface {
	// IncrementForPurchase 原子累加，行不存在时创建
	IncrementForPurchase(ctx context.Context, productID string, quantity int, amount decimal.Decimal, at time.Time) error
	// Overwrite 覆盖写入，行不存在时创建
	Overwrite(ctx context.Context, stats *Statistics) error
	GetByProduct(ctx context.Context, productID string) (*Statistics, error)
	// TopSelling 按 total_sales 倒序
	TopSelling(ctx context.Context, limit int) ([]TopProduct, error)
}

// ProductCatalog 统计所需的商品读取
type ProductCatalog interface {
	GetByID(ctx context.Context, id string) (*catalogdomain.Product, error)
	GetByIDForUpdate(ctx context.Context, id string) (*catalogdomain.Product, error)
	ListIDs(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int64, error)
	LowStock(ctx context.Context, threshold, limit int) ([]*catalogdomain.Product, error)
}

// BuyerCounter 买家计数
type BuyerCounter interface {
	Count(ctx context.Context) (int64, error)
}

// PurchaseLedger 购买流水读取，统计的事实来源
type PurchaseLedger interface {
	ListByProduct(ctx context.Context, productID string) ([]*purchasedomain.Purchase, error)
	Recent(ctx context.Context, limit int) ([]*purchasedomain.Purchase, error)
	TotalsForProduct(ctx context.Context, productID string) (purchasedomain.LedgerTotals, error)
	Totals(ctx context.Context) (purchasedomain.LedgerTotals, error)
	DailySales(ctx context.Context, from, to time.Time) ([]purchasedomain.DailySales, error)
}

// DashboardCache 看板快照缓存
type DashboardCache interface {
	Load(ctx context.Context) (*Dashboard, bool)
	Store(ctx context.Context, d *Dashboard)
	Invalidate(ctx context.Context)
}
