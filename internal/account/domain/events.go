package domain

import (
	"context"
	"time"
)

const (
	TopicBuyerRegistered = "buyer.registered"
	TopicBuyerDeleted    = "buyer.deleted"
)

// EventPublisher 领域事件发布
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, event any) error
}

// BuyerRegisteredEvent 买家完成注册
type BuyerRegisteredEvent struct {
	BuyerID   string    `json:"buyer_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Timestamp time.Time `json:"timestamp"`
}

// BuyerDeletedEvent 买家删除
type BuyerDeletedEvent struct {
	BuyerID   string    `json:"buyer_id"`
	Timestamp time.Time `json:"timestamp"`
}
