package mysql

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/wyfcoding/pkg/pagination"
	"github.com/wyfcoding/storefront/internal/catalog/domain"
	"github.com/wyfcoding/storefront/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type productRepository struct{ db *gorm.DB }

// NewProductRepository 创建商品仓储
func NewProductRepository(gdb *gorm.DB) domain.ProductRepository {
	return &productRepository{db: gdb}
}

// getDB 优先使用 context 中的事务
func (r *productRepository) getDB(ctx context.Context) *gorm.DB {
	return db.Conn(ctx, r.db)
}

func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	// 分类已存在，只写关联表
	return r.getDB(ctx).Omit("Categories.*").Create(product).Error
}

func (r *productRepository) Save(ctx context.Context, product *domain.Product) error {
	return r.getDB(ctx).Model(product).
		Select("name", "description", "price", "stock_quantity", "updated_at").
		Updates(product).Error
}

func (r *productRepository) ReplaceCategories(ctx context.Context, product *domain.Product, categories []domain.ProductCategory) error {
	if err := r.getDB(ctx).Model(product).Omit("Categories.*").Association("Categories").Replace(categories); err != nil {
		return err
	}
	product.Categories = categories
	return nil
}

func (r *productRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := r.getDB(ctx).Preload("Categories").Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := r.getDB(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepository) HasPurchases(ctx context.Context, id string) (bool, error) {
	var n int64
	err := r.getDB(ctx).Table("purchases").Where("product_id = ?", id).Count(&n).Error
	return n > 0, err
}

func (r *productRepository) Delete(ctx context.Context, id string) error {
	conn := r.getDB(ctx)
	for _, table := range []string{"price_history", "product_category_relation", "statistics"} {
		if err := conn.Exec("DELETE FROM "+table+" WHERE product_id = ?", id).Error; err != nil {
			return err
		}
	}
	return conn.Where("id = ?", id).Delete(&domain.Product{}).Error
}

// applyProductFilter 商品过滤条件的唯一构造入口
func applyProductFilter(q *gorm.DB, f domain.ProductFilter) *gorm.DB {
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + escapeLike(s) + "%"
		q = q.Where("(products.name LIKE ? OR products.description LIKE ?)", like, like)
	}
	if f.CategoryID != "" {
		q = q.Where("products.id IN (?)",
			q.Session(&gorm.Session{NewDB: true}).Table("product_category_relation").
				Select("product_id").Where("category_id = ?", f.CategoryID))
	}
	if f.MinPrice != nil {
		q = q.Where("products.price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("products.price <= ?", *f.MaxPrice)
	}
	if f.InStock {
		q = q.Where("products.stock_quantity > 0")
	}
	return q
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *productRepository) List(ctx context.Context, filter domain.ProductFilter, page *pagination.Request) ([]*domain.Product, int64, error) {
	var (
		products []*domain.Product
		total    int64
	)
	q := applyProductFilter(r.getDB(ctx).Model(&domain.Product{}), filter)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Preload("Categories").
		Order("products.created_at DESC").Order("products.id").
		Offset(page.Offset()).Limit(page.Limit()).
		Find(&products).Error
	return products, total, err
}

func (r *productRepository) ListAll(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	var products []*domain.Product
	err := applyProductFilter(r.getDB(ctx).Model(&domain.Product{}), filter).
		Preload("Categories").
		Order("products.name").
		Find(&products).Error
	return products, err
}

func (r *productRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.getDB(ctx).Model(&domain.Product{}).Order("id").Pluck("id", &ids).Error
	return ids, err
}

func (r *productRepository) DecrementStock(ctx context.Context, id string, quantity int) (bool, error) {
	res := r.getDB(ctx).Model(&domain.Product{}).
		Where("id = ? AND stock_quantity >= ?", id, quantity).
		UpdateColumns(map[string]any{
			"stock_quantity": gorm.Expr("stock_quantity - ?", quantity),
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *productRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.getDB(ctx).Model(&domain.Product{}).Count(&n).Error
	return n, err
}

func (r *productRepository) LowStock(ctx context.Context, threshold, limit int) ([]*domain.Product, error) {
	var products []*domain.Product
	err := r.getDB(ctx).
		Where("stock_quantity <= ?", threshold).
		Order("stock_quantity ASC").Order("name").
		Limit(limit).
		Find(&products).Error
	return products, err
}

type categoryRepository struct{ db *gorm.DB }

// NewCategoryRepository 创建分类仓储
func NewCategoryRepository(gdb *gorm.DB) domain.CategoryRepository {
	return &categoryRepository{db: gdb}
}

func (r *categoryRepository) getDB(ctx context.Context) *gorm.DB {
	return db.Conn(ctx, r.db)
}

func (r *categoryRepository) Create(ctx context.Context, category *domain.ProductCategory) error {
	return r.getDB(ctx).Create(category).Error
}

func (r *categoryRepository) Save(ctx context.Context, category *domain.ProductCategory) error {
	return r.getDB(ctx).Model(category).Select("name", "description", "updated_at").Updates(category).Error
}

func (r *categoryRepository) GetByID(ctx context.Context, id string) (*domain.ProductCategory, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *categoryRepository) GetByName(ctx context.Context, name string) (*domain.ProductCategory, error) {
	return r.first(ctx, "name = ?", name)
}

func (r *categoryRepository) first(ctx context.Context, query string, arg any) (*domain.ProductCategory, error) {
	var c domain.ProductCategory
	err := r.getDB(ctx).Where(query, arg).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *categoryRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.ProductCategory, error) {
	var cats []domain.ProductCategory
	err := r.getDB(ctx).Where("id IN ?", ids).Find(&cats).Error
	return cats, err
}

func (r *categoryRepository) Delete(ctx context.Context, id string) error {
	return r.getDB(ctx).Where("id = ?", id).Delete(&domain.ProductCategory{}).Error
}

func (r *categoryRepository) List(ctx context.Context) ([]*domain.ProductCategory, error) {
	var cats []*domain.ProductCategory
	err := r.getDB(ctx).Order("name").Find(&cats).Error
	return cats, err
}

func (r *categoryRepository) CountProducts(ctx context.Context, id string) (int64, error) {
	var n int64
	err := r.getDB(ctx).Table("product_category_relation").Where("category_id = ?", id).Count(&n).Error
	return n, err
}

type priceHistoryRepository struct{ db *gorm.DB }

// NewPriceHistoryRepository 创建价格历史仓储
func NewPriceHistoryRepository(gdb *gorm.DB) domain.PriceHistoryRepository {
	return &priceHistoryRepository{db: gdb}
}

func (r *priceHistoryRepository) Append(ctx context.Context, entry *domain.PriceHistory) error {
	return db.Conn(ctx, r.db).Create(entry).Error
}

func (r *priceHistoryRepository) ListByProduct(ctx context.Context, productID string) ([]*domain.PriceHistory, error) {
	var entries []*domain.PriceHistory
	err := db.Conn(ctx, r.db).
		Where("product_id = ?", productID).
		Order("recorded_at DESC").Order("id DESC").
		Find(&entries).Error
	return entries, err
}
