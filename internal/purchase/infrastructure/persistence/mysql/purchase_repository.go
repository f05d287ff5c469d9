package mysql

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/pagination"
	"github.com/wyfcoding/storefront/internal/purchase/domain"
	"github.com/wyfcoding/storefront/pkg/db"
	"gorm.io/gorm"
)

type purchaseRepository struct{ db *gorm.DB }

// NewPurchaseRepository 创建购买流水仓储
func NewPurchaseRepository(gdb *gorm.DB) domain.PurchaseRepository {
	return &purchaseRepository{db: gdb}
}

func (r *purchaseRepository) getDB(ctx context.Context) *gorm.DB {
	return db.Conn(ctx, r.db)
}

func (r *purchaseRepository) Create(ctx context.Context, purchase *domain.Purchase) error {
	return r.getDB(ctx).Create(purchase).Error
}

func (r *purchaseRepository) GetByID(ctx context.Context, id string) (*domain.Purchase, error) {
	var p domain.Purchase
	err := r.getDB(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func applyPurchaseFilter(q *gorm.DB, f domain.PurchaseFilter) *gorm.DB {
	if f.BuyerID != "" {
		q = q.Where("buyer_id = ?", f.BuyerID)
	}
	if f.ProductID != "" {
		q = q.Where("product_id = ?", f.ProductID)
	}
	if f.From != nil {
		q = q.Where("purchase_date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("purchase_date < ?", *f.To)
	}
	return q
}

func (r *purchaseRepository) List(ctx context.Context, filter domain.PurchaseFilter, page *pagination.Request) ([]*domain.Purchase, int64, error) {
	var (
		items []*domain.Purchase
		total int64
	)
	q := applyPurchaseFilter(r.getDB(ctx).Model(&domain.Purchase{}), filter)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("purchase_date DESC").Order("id").
		Offset(page.Offset()).Limit(page.Limit()).
		Find(&items).Error
	return items, total, err
}

func (r *purchaseRepository) ListByProduct(ctx context.Context, productID string) ([]*domain.Purchase, error) {
	var items []*domain.Purchase
	err := r.getDB(ctx).Where("product_id = ?", productID).Order("purchase_date DESC").Find(&items).Error
	return items, err
}

func (r *purchaseRepository) Recent(ctx context.Context, limit int) ([]*domain.Purchase, error) {
	var items []*domain.Purchase
	err := r.getDB(ctx).Order("purchase_date DESC").Limit(limit).Find(&items).Error
	return items, err
}

type sumRow struct {
	Units   int64
	Revenue decimal.Decimal
	Count   int64
}

func (r *purchaseRepository) sum(q *gorm.DB) (sumRow, error) {
	var row sumRow
	err := q.Model(&domain.Purchase{}).
		Select("COALESCE(SUM(quantity), 0) AS units, COALESCE(SUM(amount), 0) AS revenue, COUNT(*) AS count").
		Scan(&row).Error
	return row, err
}

func (r *purchaseRepository) SumByBuyer(ctx context.Context, buyerID string) (decimal.Decimal, int64, error) {
	row, err := r.sum(r.getDB(ctx).Where("buyer_id = ?", buyerID))
	return row.Revenue, row.Count, err
}

func (r *purchaseRepository) TotalsForProduct(ctx context.Context, productID string) (domain.LedgerTotals, error) {
	row, err := r.sum(r.getDB(ctx).Where("product_id = ?", productID))
	return domain.LedgerTotals(row), err
}

func (r *purchaseRepository) Totals(ctx context.Context) (domain.LedgerTotals, error) {
	row, err := r.sum(r.getDB(ctx))
	return domain.LedgerTotals(row), err
}

func (r *purchaseRepository) DailySales(ctx context.Context, from, to time.Time) ([]domain.DailySales, error) {
	// DATE() 在 MySQL(parseTime) 下为 time.Time，在其他方言下为文本，统一按字符串取前 10 位
	var rows []struct {
		Day       string
		Revenue   decimal.Decimal
		Purchases int64
		Units     int64
	}
	err := r.getDB(ctx).Model(&domain.Purchase{}).
		Select("DATE(purchase_date) AS day, SUM(amount) AS revenue, COUNT(*) AS purchases, SUM(quantity) AS units").
		Where("purchase_date >= ? AND purchase_date < ?", from, to).
		Group("DATE(purchase_date)").
		Order("day").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]domain.DailySales, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.DailySales{
			Date:      dayOf(row.Day),
			Revenue:   row.Revenue,
			Purchases: row.Purchases,
			Units:     row.Units,
		})
	}
	return out, nil
}

func dayOf(v string) string {
	if len(v) > len(time.DateOnly) {
		return v[:len(time.DateOnly)]
	}
	return v
}
