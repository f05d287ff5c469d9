package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/storefront/pkg/apperr"
	"gorm.io/gorm"
)

// DefaultQuantity 调用方未指定数量时的购买件数
const DefaultQuantity = 1

// Purchase 购买流水，提交后不再修改
// Amount 是成交时的 单价×数量 快照，与商品当前价格无关
type Purchase struct {
	ID           string          `gorm:"column:id;type:char(36);primaryKey" json:"id"`
	BuyerID      string          `gorm:"column:buyer_id;type:char(36);not null;index" json:"buyer_id"`
	ProductID    string          `gorm:"column:product_id;type:char(36);not null;index" json:"product_id"`
	Quantity     int             `gorm:"column:quantity;not null;default:1" json:"quantity"`
	Amount       decimal.Decimal `gorm:"column:amount;type:decimal(12,2);not null" json:"amount"`
	PurchaseDate time.Time       `gorm:"column:purchase_date;not null;index" json:"purchase_date"`
}

func (Purchase) TableName() string { return "purchases" }

// BeforeCreate 生成 UUID 主键
func (p *Purchase) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// NewPurchase 按当前单价生成购买记录
func NewPurchase(buyerID, productID string, unitPrice decimal.Decimal, quantity int, at time.Time) *Purchase {
	return &Purchase{
		ID:           uuid.NewString(),
		BuyerID:      buyerID,
		ProductID:    productID,
		Quantity:     quantity,
		Amount:       unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2),
		PurchaseDate: at,
	}
}

// ResolveQuantity nil 取默认值，必须为正整数
func ResolveQuantity(quantity *int) (int, error) {
	if quantity == nil {
		return DefaultQuantity, nil
	}
	if *quantity <= 0 {
		return 0, apperr.InvalidInput("quantity must be a positive integer")
	}
	return *quantity, nil
}

// SpendingSummary 买家消费汇总
type SpendingSummary struct {
	BuyerID       string          `json:"buyer_id"`
	TotalSpent    decimal.Decimal `json:"total_spent"`
	PurchaseCount int64           `json:"purchase_count"`
	AverageSpent  decimal.Decimal `json:"average_spent"`
}

// NewSpendingSummary 计算平均单笔消费
func NewSpendingSummary(buyerID string, total decimal.Decimal, count int64) SpendingSummary {
	avg := decimal.Zero
	if count > 0 {
		avg = total.Div(decimal.NewFromInt(count)).Round(2)
	}
	return SpendingSummary{
		BuyerID:       buyerID,
		TotalSpent:    total.Round(2),
		PurchaseCount: count,
		AverageSpent:  avg,
	}
}

// LedgerTotals 流水聚合
type LedgerTotals struct {
	Units   int64           `json:"units"`
	Revenue decimal.Decimal `json:"revenue"`
	Count   int64           `json:"count"`
}

// DailySales 单日销售
type DailySales struct {
	Date      string          `json:"date"`
	Revenue   decimal.Decimal `json:"revenue"`
	Purchases int64           `json:"purchases"`
	Units     int64           `json:"units"`
}
