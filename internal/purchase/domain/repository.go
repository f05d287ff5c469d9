package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/pagination"
	accountdomain "github.com/wyfcoding/storefront/internal/account/domain"
	catalogdomain "github.com/wyfcoding/storefront/internal/catalog/domain"
	"github.com/wyfcoding/storefront/pkg/apperr"
)

// PurchaseFilter 流水查询条件，To 为开区间上界
type PurchaseFilter struct {
	BuyerID   string
	ProductID string
	From      *time.Time
	To        *time.Time
}

// Validate 时间区间合法性
func (f PurchaseFilter) Validate() error {
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return apperr.InvalidInput("start date must not be after end date")
	}
	return nil
}

// PurchaseRepository 购买流水仓储，查询不到时返回 (nil, nil)
type PurchaseRepository interface {
	Create(ctx context.Context, purchase *Purchase) error
	GetByID(ctx context.Context, id string) (*Purchase, error)
	// List 按 purchase_date 倒序
	List(ctx context.Context, filter PurchaseFilter, page *pagination.Request) ([]*Purchase, int64, error)
	ListByProduct(ctx context.Context, productID string) ([]*Purchase, error)
	Recent(ctx context.Context, limit int) ([]*Purchase, error)
	SumByBuyer(ctx context.Context, buyerID string) (decimal.Decimal, int64, error)
	// TotalsForProduct 单个商品的件数与金额合计
	TotalsForProduct(ctx context.Context, productID string) (LedgerTotals, error)
	Totals(ctx context.Context) (LedgerTotals, error)
	// DailySales [from, to) 区间按天聚合，日期升序
	DailySales(ctx context.Context, from, to time.Time) ([]DailySales, error)
}

// ProductStock 购买流程所需的商品操作
type ProductStock interface {
	GetByID(ctx context.Context, id string) (*catalogdomain.Product, error)
	GetByIDForUpdate(ctx context.Context, id string) (*catalogdomain.Product, error)
	DecrementStock(ctx context.Context, id string, quantity int) (bool, error)
}

// BuyerLookup 买家查询
type BuyerLookup interface {
	GetByID(ctx context.Context, id string) (*accountdomain.Buyer, error)
}

// StatisticsRecorder 在同一事务内累加商品统计，不存在时创建
type StatisticsRecorder interface {
	IncrementForPurchase(ctx context.Context, productID string, quantity int, amount decimal.Decimal, at time.Time) error
}
