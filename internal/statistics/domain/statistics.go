package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	catalogdomain "github.com/wyfcoding/storefront/internal/catalog/domain"
	purchasedomain "github.com/wyfcoding/storefront/internal/purchase/domain"
	"gorm.io/gorm"
)

// Statistics 商品销售统计，与商品一对一，可由购买流水重新计算
type Statistics struct {
	ID           string          `gorm:"column:id;type:char(36);primaryKey" json:"id"`
	ProductID    string          `gorm:"column:product_id;type:char(36);not null;uniqueIndex" json:"product_id"`
	TotalSales   int64           `gorm:"column:total_sales;not null;default:0" json:"total_sales"`
	TotalRevenue decimal.Decimal `gorm:"column:total_revenue;type:decimal(14,2);not null;default:0" json:"total_revenue"`
	LastUpdated  time.Time       `gorm:"column:last_updated;not null" json:"last_updated"`
}

func (Statistics) TableName() string { return "statistics" }

// BeforeCreate 生成 UUID 主键
func (s *Statistics) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// FromLedger 由流水聚合构造统计
func FromLedger(productID string, totals purchasedomain.LedgerTotals, at time.Time) *Statistics {
	return &Statistics{
		ProductID:    productID,
		TotalSales:   totals.Units,
		TotalRevenue: totals.Revenue.Round(2),
		LastUpdated:  at,
	}
}

// TopProduct 销量排行项
type TopProduct struct {
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name"`
	TotalSales   int64           `json:"total_sales"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}

// Dashboard 运营看板
type Dashboard struct {
	TotalProducts   int64                      `json:"total_products"`
	TotalBuyers     int64                      `json:"total_buyers"`
	TotalPurchases  int64                      `json:"total_purchases"`
	TotalUnitsSold  int64                      `json:"total_units_sold"`
	TotalRevenue    decimal.Decimal            `json:"total_revenue"`
	TopProducts     []TopProduct               `json:"top_products"`
	RecentPurchases []*purchasedomain.Purchase `json:"recent_purchases"`
	LowStock        []*catalogdomain.Product   `json:"low_stock"`
	GeneratedAt     time.Time                  `json:"generated_at"`
}

// ProductReport 单个商品的统计与流水
type ProductReport struct {
	Statistics *Statistics                `json:"statistics"`
	Purchases  []*purchasedomain.Purchase `json:"purchases"`
}

// SalesReport 区间销售报表
type SalesReport struct {
	From         string                      `json:"from"`
	To           string                      `json:"to"`
	Days         []purchasedomain.DailySales `json:"days"`
	TotalRevenue decimal.Decimal             `json:"total_revenue"`
	TotalCount   int64                       `json:"total_purchases"`
}

// ReconcileFailure 单个商品对账失败
type ReconcileFailure struct {
	ProductID string `json:"product_id"`
	Error     string `json:"error"`
}

// ReconcileReport 一轮对账结果
type ReconcileReport struct {
	Total      int                `json:"total"`
	Reconciled int                `json:"reconciled"`
	Failures   []ReconcileFailure `json:"failures,omitempty"`
	StartedAt  time.Time          `json:"started_at"`
	Duration   time.Duration      `json:"duration_ns"`
}
