package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/storefront/internal/catalog/domain"
	"github.com/wyfcoding/storefront/pkg/apperr"
	"github.com/wyfcoding/storefront/pkg/db"
	"gorm.io/gorm"
)

// CreateProductCommand 创建商品命令
type CreateProductCommand struct {
	Name          string
	Description   string
	Price         decimal.Decimal
	StockQuantity int
	CategoryIDs   []string
}

// UpdateProductCommand 部分更新命令，nil 字段保持不变
// CategoryIDs 为 nil 表示不修改分类，空切片表示清空
type UpdateProductCommand struct {
	ID            string
	Name          *string
	Description   *string
	Price         *decimal.Decimal
	StockQuantity *int
	CategoryIDs   []string
}

// CatalogCommandService 商品目录命令服务
type CatalogCommandService struct {
	tx         db.Transactor
	products   domain.ProductRepository
	categories domain.CategoryRepository
	history    domain.PriceHistoryRepository
	publisher  domain.EventPublisher
	now        func() time.Time
}

// NewCatalogCommandService 创建商品目录命令服务实例
func NewCatalogCommandService(
	tx db.Transactor,
	products domain.ProductRepository,
	categories domain.CategoryRepository,
	history domain.PriceHistoryRepository,
	publisher domain.EventPublisher,
) *CatalogCommandService {
	return &CatalogCommandService{
		tx:         tx,
		products:   products,
		categories: categories,
		history:    history,
		publisher:  publisher,
		now:        time.Now,
	}
}

// CreateProduct 创建商品并写入初始价格记录
func (s *CatalogCommandService) CreateProduct(ctx context.Context, cmd CreateProductCommand) (*domain.Product, error) {
	product := &domain.Product{
		Name:          strings.TrimSpace(cmd.Name),
		Description:   cmd.Description,
		Price:         cmd.Price,
		StockQuantity: cmd.StockQuantity,
	}
	if err := product.Validate(); err != nil {
		return nil, err
	}

	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		cats, err := resolveCategories(ctx, s.categories, cmd.CategoryIDs)
		if err != nil {
			return err
		}
		product.Categories = cats

		if err := s.products.Create(ctx, product); err != nil {
			return apperr.Persistence("create product", err)
		}
		initial := &domain.PriceHistory{ProductID: product.ID, Price: product.Price, RecordedAt: s.now()}
		if err := s.history.Append(ctx, initial); err != nil {
			return apperr.Persistence("append price history", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Info(ctx, "product created", "product_id", product.ID, "name", product.Name)
	publish(ctx, s.publisher, domain.TopicProductCreated, product.ID, domain.ProductCreatedEvent{
		ProductID:     product.ID,
		Name:          product.Name,
		Price:         product.Price,
		StockQuantity: product.StockQuantity,
		Timestamp:     s.now(),
	})
	return product, nil
}

// UpdateProduct 部分更新商品，价格变化时在同一事务内追加价格记录
func (s *CatalogCommandService) UpdateProduct(ctx context.Context, cmd UpdateProductCommand) (*domain.Product, error) {
	if cmd.Price != nil {
		if err := domain.ValidatePrice(*cmd.Price); err != nil {
			return nil, err
		}
	}

	var (
		product  *domain.Product
		oldPrice decimal.Decimal
		oldStock int
		priced   *domain.PriceHistory
	)
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		var err error
		product, err = s.products.GetByIDForUpdate(ctx, cmd.ID)
		if err != nil {
			return apperr.Persistence("load product", err)
		}
		if product == nil {
			return apperr.NotFound("product", cmd.ID)
		}
		oldPrice, oldStock = product.Price, product.StockQuantity

		if cmd.Name != nil {
			product.Name = strings.TrimSpace(*cmd.Name)
		}
		if cmd.Description != nil {
			product.Description = *cmd.Description
		}
		if cmd.StockQuantity != nil {
			product.StockQuantity = *cmd.StockQuantity
		}
		if cmd.Price != nil {
			priced = product.ChangePrice(*cmd.Price, s.now())
		}
		if err := product.Validate(); err != nil {
			return err
		}

		if err := s.products.Save(ctx, product); err != nil {
			return apperr.Persistence("update product", err)
		}
		if priced != nil {
			if err := s.history.Append(ctx, priced); err != nil {
				return apperr.Persistence("append price history", err)
			}
		}
		if cmd.CategoryIDs != nil {
			cats, err := resolveCategories(ctx, s.categories, cmd.CategoryIDs)
			if err != nil {
				return err
			}
			if err := s.products.ReplaceCategories(ctx, product, cats); err != nil {
				return apperr.Persistence("replace product categories", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, domain.TopicProductUpdated, product.ID, domain.ProductUpdatedEvent{
		ProductID:     product.ID,
		Name:          product.Name,
		StockQuantity: product.StockQuantity,
		OldStock:      oldStock,
		Timestamp:     s.now(),
	})
	if priced != nil {
		s.publishPriceChanged(ctx, product.ID, oldPrice, product.Price)
	}

	return s.reload(ctx, product), nil
}

// UpdateProductPrice 修改价格，仅在价格变化时追加价格记录
func (s *CatalogCommandService) UpdateProductPrice(ctx context.Context, id string, newPrice decimal.Decimal) (*domain.Product, error) {
	if err := domain.ValidatePrice(newPrice); err != nil {
		return nil, err
	}

	var (
		product  *domain.Product
		oldPrice decimal.Decimal
		changed  bool
	)
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		var err error
		product, err = s.products.GetByIDForUpdate(ctx, id)
		if err != nil {
			return apperr.Persistence("load product", err)
		}
		if product == nil {
			return apperr.NotFound("product", id)
		}
		oldPrice = product.Price

		entry := product.ChangePrice(newPrice, s.now())
		if entry == nil {
			return nil
		}
		changed = true
		if err := s.products.Save(ctx, product); err != nil {
			return apperr.Persistence("update product price", err)
		}
		if err := s.history.Append(ctx, entry); err != nil {
			return apperr.Persistence("append price history", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		logging.Info(ctx, "product price changed", "product_id", id, "old_price", oldPrice.StringFixed(2), "new_price", newPrice.StringFixed(2))
		s.publishPriceChanged(ctx, id, oldPrice, product.Price)
	}
	return s.reload(ctx, product), nil
}

// reload 提交后重新读取，带回分类关联
func (s *CatalogCommandService) reload(ctx context.Context, product *domain.Product) *domain.Product {
	fresh, err := s.products.GetByID(ctx, product.ID)
	if err != nil || fresh == nil {
		return product
	}
	return fresh
}

func (s *CatalogCommandService) publishPriceChanged(ctx context.Context, id string, oldPrice, newPrice decimal.Decimal) {
	publish(ctx, s.publisher, domain.TopicProductPriceChanged, id, domain.ProductPriceChangedEvent{
		ProductID: id,
		OldPrice:  oldPrice,
		NewPrice:  newPrice,
		Timestamp: s.now(),
	})
}

// DeleteProduct 删除商品，已有购买记录的商品不可删除
func (s *CatalogCommandService) DeleteProduct(ctx context.Context, id string) error {
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		product, err := s.products.GetByIDForUpdate(ctx, id)
		if err != nil {
			return apperr.Persistence("load product", err)
		}
		if product == nil {
			return apperr.NotFound("product", id)
		}
		purchased, err := s.products.HasPurchases(ctx, id)
		if err != nil {
			return apperr.Persistence("check product purchases", err)
		}
		if purchased {
			return apperr.Conflict("product %s has purchases and cannot be deleted", id)
		}
		if err := s.products.Delete(ctx, id); err != nil {
			return apperr.Persistence("delete product", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	publish(ctx, s.publisher, domain.TopicProductDeleted, id, domain.ProductDeletedEvent{ProductID: id, Timestamp: s.now()})
	return nil
}

// CreateCategory 创建分类，名称唯一
func (s *CatalogCommandService) CreateCategory(ctx context.Context, name, description string) (*domain.ProductCategory, error) {
	category := &domain.ProductCategory{Name: strings.TrimSpace(name), Description: description}
	if err := category.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.categories.GetByName(ctx, category.Name)
	if err != nil {
		return nil, apperr.Persistence("load category", err)
	}
	if existing != nil {
		return nil, apperr.Conflict("category %q already exists", category.Name)
	}
	if err := s.categories.Create(ctx, category); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("category %q already exists", category.Name)
		}
		return nil, apperr.Persistence("create category", err)
	}
	return category, nil
}

// UpdateCategory 更新分类名称或描述
func (s *CatalogCommandService) UpdateCategory(ctx context.Context, id string, name, description *string) (*domain.ProductCategory, error) {
	category, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Persistence("load category", err)
	}
	if category == nil {
		return nil, apperr.NotFound("category", id)
	}

	if name != nil && strings.TrimSpace(*name) != category.Name {
		newName := strings.TrimSpace(*name)
		other, err := s.categories.GetByName(ctx, newName)
		if err != nil {
			return nil, apperr.Persistence("load category", err)
		}
		if other != nil && other.ID != id {
			return nil, apperr.Conflict("category %q already exists", newName)
		}
		category.Name = newName
	}
	if description != nil {
		category.Description = *description
	}
	if err := category.Validate(); err != nil {
		return nil, err
	}
	if err := s.categories.Save(ctx, category); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("category %q already exists", category.Name)
		}
		return nil, apperr.Persistence("update category", err)
	}
	return category, nil
}

// DeleteCategory 删除分类，仍有商品关联时拒绝
func (s *CatalogCommandService) DeleteCategory(ctx context.Context, id string) error {
	category, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return apperr.Persistence("load category", err)
	}
	if category == nil {
		return apperr.NotFound("category", id)
	}
	n, err := s.categories.CountProducts(ctx, id)
	if err != nil {
		return apperr.Persistence("count category products", err)
	}
	if n > 0 {
		return apperr.Conflict("category %q still has %d products", category.Name, n).WithContext("products", n)
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		return apperr.Persistence("delete category", err)
	}
	return nil
}
