package mysql

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/storefront/internal/statistics/domain"
	"github.com/wyfcoding/storefront/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type statisticsRepository struct{ db *gorm.DB }

// NewStatisticsRepository 创建统计仓储
func NewStatisticsRepository(gdb *gorm.DB) domain.StatisticsRepository {
	return &statisticsRepository{db: gdb}
}

func (r *statisticsRepository) getDB(ctx context.Context) *gorm.DB {
	return db.Conn(ctx, r.db)
}

// IncrementForPurchase INSERT ... ON DUPLICATE KEY UPDATE total_sales = total_sales + ?
func (r *statisticsRepository) IncrementForPurchase(ctx context.Context, productID string, quantity int, amount decimal.Decimal, at time.Time) error {
	record := &domain.Statistics{
		ProductID:    productID,
		TotalSales:   int64(quantity),
		TotalRevenue: amount,
		LastUpdated:  at,
	}
	return db.UpsertWithConflict(r.getDB(ctx), record, []string{"product_id"}, clause.Set{
		{Column: clause.Column{Name: "total_sales"}, Value: gorm.Expr("total_sales + ?", quantity)},
		{Column: clause.Column{Name: "total_revenue"}, Value: gorm.Expr("total_revenue + ?", amount)},
		{Column: clause.Column{Name: "last_updated"}, Value: at},
	})
}

func (r *statisticsRepository) Overwrite(ctx context.Context, stats *domain.Statistics) error {
	return db.UpsertWithConflict(r.getDB(ctx), stats, []string{"product_id"},
		clause.AssignmentColumns([]string{"total_sales", "total_revenue", "last_updated"}))
}

func (r *statisticsRepository) GetByProduct(ctx context.Context, productID string) (*domain.Statistics, error) {
	var s domain.Statistics
	err := r.getDB(ctx).Where("product_id = ?", productID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *statisticsRepository) TopSelling(ctx context.Context, limit int) ([]domain.TopProduct, error) {
	var rows []domain.TopProduct
	err := r.getDB(ctx).Table("statistics AS s").
		Select("s.product_id, p.name, s.total_sales, s.total_revenue").
		Joins("JOIN products AS p ON p.id = s.product_id").
		Order("s.total_sales DESC").Order("s.product_id").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
