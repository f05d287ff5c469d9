package domain

import (
	"context"
	"time"
)

const TopicStatisticsReconciled = "statistics.reconciled"

// EventPublisher 领域事件发布
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, event any) error
}

// StatisticsReconciledEvent 对账完成
type StatisticsReconciledEvent struct {
	Total      int       `json:"total"`
	Reconciled int       `json:"reconciled"`
	Failed     int       `json:"failed"`
	Timestamp  time.Time `json:"timestamp"`
}
