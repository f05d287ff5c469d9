package application

import (
	"context"

	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/storefront/internal/statistics/domain"
)

// publish 事务提交后发布事件，失败只记日志
func publish(ctx context.Context, p domain.EventPublisher, topic, key string, event any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, topic, key, event); err != nil {
		logging.Warn(ctx, "failed to publish statistics event", "topic", topic, "key", key, "error", err)
	}
}
