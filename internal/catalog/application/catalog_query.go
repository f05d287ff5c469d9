package application

import (
	"context"

	"github.com/wyfcoding/pkg/pagination"
	"github.com/wyfcoding/storefront/internal/catalog/domain"
	"github.com/wyfcoding/storefront/pkg/apperr"
)

// CatalogQueryService 商品目录查询服务
type CatalogQueryService struct {
	products   domain.ProductRepository
	categories domain.CategoryRepository
	history    domain.PriceHistoryRepository
}

// NewCatalogQueryService 创建商品目录查询服务实例
func NewCatalogQueryService(
	products domain.ProductRepository,
	categories domain.CategoryRepository,
	history domain.PriceHistoryRepository,
) *CatalogQueryService {
	return &CatalogQueryService{
		products:   products,
		categories: categories,
		history:    history,
	}
}

// GetProduct 根据ID获取商品信息
func (s *CatalogQueryService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Persistence("load product", err)
	}
	if p == nil {
		return nil, apperr.NotFound("product", id)
	}
	return p, nil
}

// ListProducts 按条件分页列出商品
func (s *CatalogQueryService) ListProducts(ctx context.Context, filter domain.ProductFilter, page *pagination.Request) (*pagination.Result[*domain.Product], error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	items, total, err := s.products.List(ctx, filter, page)
	if err != nil {
		return nil, apperr.Persistence("list products", err)
	}
	return pagination.NewResult(total, page, items), nil
}

// PriceHistory 商品价格历史，最新在前
func (s *CatalogQueryService) PriceHistory(ctx context.Context, productID string) ([]*domain.PriceHistory, error) {
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByProduct(ctx, productID)
	if err != nil {
		return nil, apperr.Persistence("list price history", err)
	}
	return entries, nil
}

// ListCategories 全部分类
func (s *CatalogQueryService) ListCategories(ctx context.Context) ([]*domain.ProductCategory, error) {
	cats, err := s.categories.List(ctx)
	if err != nil {
		return nil, apperr.Persistence("list categories", err)
	}
	return cats, nil
}

// GetCategory 根据ID获取分类
func (s *CatalogQueryService) GetCategory(ctx context.Context, id string) (*domain.ProductCategory, error) {
	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Persistence("load category", err)
	}
	if c == nil {
		return nil, apperr.NotFound("category", id)
	}
	return c, nil
}

// ProductsByCategory 分类下的商品
func (s *CatalogQueryService) ProductsByCategory(ctx context.Context, categoryID string, page *pagination.Request) (*pagination.Result[*domain.Product], error) {
	if _, err := s.GetCategory(ctx, categoryID); err != nil {
		return nil, err
	}
	return s.ListProducts(ctx, domain.ProductFilter{CategoryID: categoryID}, page)
}
