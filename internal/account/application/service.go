package application

import (
	"context"

	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/storefront/internal/account/domain"
)

// publish 发布失败只记日志
func publish(ctx context.Context, p domain.EventPublisher, topic, key string, event any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, topic, key, event); err != nil {
		logging.Warn(ctx, "failed to publish account event", "topic", topic, "key", key, "error", err)
	}
}
