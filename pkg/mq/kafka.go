// Package mq 提供领域事件发布，生产环境走 Kafka，本地开发可退化为日志
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wyfcoding/pkg/logging"
)

// Event 事件信封
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Publisher 领域事件发布者，事务提交后调用
type Publisher interface {
	Publish(ctx context.Context, eventType, key string, payload any) error
	Close() error
}

// producer 由 kafka.Producer 实现，链路头、死信与生产指标均在其中处理
type producer interface {
	PublishToTopic(ctx context.Context, topic string, key, value []byte) error
	Close() error
}

// KafkaPublisher 按事件类型分 topic：<基础 topic>.<事件类型>
type KafkaPublisher struct {
	producer  producer
	baseTopic string
}

// NewKafkaPublisher 包装共享生产者
func NewKafkaPublisher(p producer, baseTopic string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, baseTopic: baseTopic}
}

// Topic 事件类型对应的 topic
func (p *KafkaPublisher) Topic(eventType string) string {
	if p.baseTopic == "" {
		return eventType
	}
	return p.baseTopic + "." + eventType
}

// Publish 发送单条事件，同一 key 落在同一分区
func (p *KafkaPublisher) Publish(ctx context.Context, eventType, key string, payload any) error {
	value, err := encode(eventType, key, payload)
	if err != nil {
		return err
	}
	topic := p.Topic(eventType)
	if err := p.producer.PublishToTopic(ctx, topic, []byte(key), value); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	logging.Debug(ctx, "domain event published", "topic", topic, "key", key)
	return nil
}

// Close 关闭生产者
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

func encode(eventType, key string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	evt := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    body,
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return data, nil
}

// LogPublisher 仅记录日志，Kafka 关闭时使用
type LogPublisher struct{}

// Publish 实现 Publisher
func (LogPublisher) Publish(ctx context.Context, eventType, key string, payload any) error {
	logging.Info(ctx, "domain event", "type", eventType, "key", key)
	return nil
}

// Close 实现 Publisher
func (LogPublisher) Close() error { return nil }

// PublishAfterCommit 发布失败只记录日志，不影响已提交的业务结果
func PublishAfterCommit(ctx context.Context, p Publisher, eventType, key string, payload any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, eventType, key, payload); err != nil {
		logging.Warn(ctx, "event publish failed after commit", "type", eventType, "key", key, "error", err)
	}
}
