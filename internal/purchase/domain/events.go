package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const TopicPurchaseCompleted = "purchase.completed"

// EventPublisher 领域事件发布
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, event any) error
}

// PurchaseCompletedEvent 购买完成事件
type PurchaseCompletedEvent struct {
	PurchaseID     string          `json:"purchase_id"`
	BuyerID        string          `json:"buyer_id"`
	ProductID      string          `json:"product_id"`
	Quantity       int             `json:"quantity"`
	Amount         decimal.Decimal `json:"amount"`
	RemainingStock int             `json:"remaining_stock"`
	Timestamp      time.Time       `json:"timestamp"`
}
