package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TopicProductCreated      = "product.created"
	TopicProductUpdated      = "product.updated"
	TopicProductPriceChanged = "product.price.changed"
	TopicProductDeleted      = "product.deleted"
)

// EventPublisher 领域事件发布
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, event any) error
}

// ProductCreatedEvent 商品创建事件
type ProductCreatedEvent struct {
	ProductID     string          `json:"product_id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	Timestamp     time.Time       `json:"timestamp"`
}

// ProductUpdatedEvent 商品更新事件
type ProductUpdatedEvent struct {
	ProductID     string    `json:"product_id"`
	Name          string    `json:"name"`
	StockQuantity int       `json:"stock_quantity"`
	OldStock      int       `json:"old_stock"`
	Timestamp     time.Time `json:"timestamp"`
}

// ProductPriceChangedEvent 价格变更事件
type ProductPriceChangedEvent struct {
	ProductID string          `json:"product_id"`
	OldPrice  decimal.Decimal `json:"old_price"`
	NewPrice  decimal.Decimal `json:"new_price"`
	Timestamp time.Time       `json:"timestamp"`
}

// ProductDeletedEvent 商品删除事件
type ProductDeletedEvent struct {
	ProductID string    `json:"product_id"`
	Timestamp time.Time `json:"timestamp"`
}
