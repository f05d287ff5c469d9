package domain

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/pagination"
	"github.com/wyfcoding/storefront/pkg/apperr"
)

// ProductFilter 商品查询条件，JSON 接口与 CSV 导出共用
type ProductFilter struct {
	Search     string
	CategoryID string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	InStock    bool
}

// Validate 价格区间合法性
func (f ProductFilter) Validate() error {
	if f.MinPrice != nil && f.MinPrice.IsNegative() {
		return apperr.InvalidInput("min_price must be non-negative")
	}
	if f.MaxPrice != nil && f.MaxPrice.IsNegative() {
		return apperr.InvalidInput("max_price must be non-negative")
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return apperr.InvalidInput("min_price must not exceed max_price")
	}
	return nil
}

// ProductRepository 商品仓储，查询不到时返回 (nil, nil)
type ProductRepository interface {
	Create(ctx context.Context, product *Product) error
	// Save 更新标量字段，不触碰分类关联
	Save(ctx context.Context, product *Product) error
	ReplaceCategories(ctx context.Context, product *Product, categories []ProductCategory) error
	GetByID(ctx context.Context, id string) (*Product, error)
	// GetByIDForUpdate 在事务中对商品行加排他锁
	GetByIDForUpdate(ctx context.Context, id string) (*Product, error)
	// HasPurchases 商品是否已被购买过
	HasPurchases(ctx context.Context, id string) (bool, error)
	// Delete 删除商品及其价格历史、分类关联与统计行
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ProductFilter, page *pagination.Request) ([]*Product, int64, error)
	ListAll(ctx context.Context, filter ProductFilter) ([]*Product, error)
	ListIDs(ctx context.Context) ([]string, error)
	// DecrementStock 条件扣减，库存不足时返回 false 且不修改
	DecrementStock(ctx context.Context, id string, quantity int) (bool, error)
	Count(ctx context.Context) (int64, error)
	LowStock(ctx context.Context, threshold, limit int) ([]*Product, error)
}

// CategoryRepository 分类仓储，查询不到时返回 (nil, nil)
type CategoryRepository interface {
	Create(ctx context.Context, category *ProductCategory) error
	Save(ctx context.Context, category *ProductCategory) error
	GetByID(ctx context.Context, id string) (*ProductCategory, error)
	GetByName(ctx context.Context, name string) (*ProductCategory, error)
	GetByIDs(ctx context.Context, ids []string) ([]ProductCategory, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*ProductCategory, error)
	CountProducts(ctx context.Context, id string) (int64, error)
}

// PriceHistoryRepository 价格历史仓储
type PriceHistoryRepository interface {
	Append(ctx context.Context, entry *PriceHistory) error
	// ListByProduct 按 recorded_at 倒序
	ListByProduct(ctx context.Context, productID string) ([]*PriceHistory, error)
}
