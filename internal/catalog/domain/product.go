package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/storefront/pkg/apperr"
	"gorm.io/gorm"
)

const maxNameLength = 255

// Product 商品
type Product struct {
	ID            string            `gorm:"column:id;type:char(36);primaryKey" json:"id"`
	Name          string            `gorm:"column:name;type:varchar(255);not null;index" json:"name"`
	Description   string            `gorm:"column:description;type:text" json:"description"`
	Price         decimal.Decimal   `gorm:"column:price;type:decimal(12,2);not null" json:"price"`
	StockQuantity int               `gorm:"column:stock_quantity;not null;default:0" json:"stock_quantity"`
	Categories    []ProductCategory `gorm:"many2many:product_category_relation;joinForeignKey:product_id;joinReferences:category_id" json:"categories,omitempty"`
	CreatedAt     time.Time         `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"column:updated_at" json:"updated_at"`
}

func (Product) TableName() string { return "products" }

// BeforeCreate 生成 UUID 主键
func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Validate 校验名称、价格与库存
func (p *Product) Validate() error {
	name := strings.TrimSpace(p.Name)
	if name == "" || len(name) > maxNameLength {
		return apperr.InvalidInput("name must be 1-%d characters", maxNameLength)
	}
	if err := ValidatePrice(p.Price); err != nil {
		return err
	}
	if p.StockQuantity < 0 {
		return apperr.InvalidInput("stock_quantity must be a non-negative integer")
	}
	return nil
}

// ChangePrice 设置新价格，价格未变时返回 nil
func (p *Product) ChangePrice(newPrice decimal.Decimal, at time.Time) *PriceHistory {
	if p.Price.Equal(newPrice) {
		return nil
	}
	p.Price = newPrice
	return &PriceHistory{ProductID: p.ID, Price: newPrice, RecordedAt: at}
}

// InStock 当前库存能否满足 quantity
func (p *Product) InStock(quantity int) bool {
	return p.StockQuantity >= quantity
}

// CategoryIDs 已关联的分类 ID
func (p *Product) CategoryIDs() []string {
	ids := make([]string, 0, len(p.Categories))
	for _, c := range p.Categories {
		ids = append(ids, c.ID)
	}
	return ids
}

// ValidatePrice 价格非负且最多两位小数
func ValidatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return apperr.InvalidInput("price must be a non-negative number")
	}
	if !price.Equal(price.Round(2)) {
		return apperr.InvalidInput("price must have at most 2 decimal places")
	}
	return nil
}

// ProductCategory 商品分类
type ProductCategory struct {
	ID          string    `gorm:"column:id;type:char(36);primaryKey" json:"id"`
	Name        string    `gorm:"column:name;type:varchar(255);not null;uniqueIndex" json:"name"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (ProductCategory) TableName() string { return "product_categories" }

// BeforeCreate 生成 UUID 主键
func (c *ProductCategory) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Validate 校验分类名称
func (c *ProductCategory) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" || len(name) > maxNameLength {
		return apperr.InvalidInput("category name must be 1-%d characters", maxNameLength)
	}
	return nil
}

// PriceHistory 价格变更记录，只追加不修改
type PriceHistory struct {
	ID         string          `gorm:"column:id;type:char(36);primaryKey" json:"id"`
	ProductID  string          `gorm:"column:product_id;type:char(36);not null;index:idx_price_history_product,priority:1" json:"product_id"`
	Price      decimal.Decimal `gorm:"column:price;type:decimal(12,2);not null" json:"price"`
	RecordedAt time.Time       `gorm:"column:recorded_at;not null;index:idx_price_history_product,priority:2" json:"recorded_at"`
}

func (PriceHistory) TableName() string { return "price_history" }

// BeforeCreate 生成 UUID 主键
func (h *PriceHistory) BeforeCreate(*gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}
