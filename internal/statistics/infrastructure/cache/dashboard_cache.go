package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/storefront/internal/statistics/domain"
)

const dashboardKey = "storefront:statistics:dashboard"

// RedisDashboardCache 看板快照缓存，读写失败只降级不报错
type RedisDashboardCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisDashboardCache ttl 必须大于 0
func NewRedisDashboardCache(client redis.UniversalClient, ttl time.Duration) *RedisDashboardCache {
	return &RedisDashboardCache{client: client, ttl: ttl}
}

func (c *RedisDashboardCache) Load(ctx context.Context) (*domain.Dashboard, bool) {
	data, err := c.client.Get(ctx, dashboardKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.Warn(ctx, "dashboard cache read failed", "error", err)
		}
		return nil, false
	}
	var d domain.Dashboard
	if err := json.Unmarshal(data, &d); err != nil {
		logging.Warn(ctx, "dashboard cache entry corrupt", "error", err)
		return nil, false
	}
	return &d, true
}

func (c *RedisDashboardCache) Store(ctx context.Context, d *domain.Dashboard) {
	data, err := json.Marshal(d)
	if err != nil {
		logging.Warn(ctx, "dashboard cache encode failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, dashboardKey, data, c.ttl).Err(); err != nil {
		logging.Warn(ctx, "dashboard cache write failed", "error", err)
	}
}

func (c *RedisDashboardCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, dashboardKey).Err(); err != nil {
		logging.Warn(ctx, "dashboard cache invalidate failed", "error", err)
	}
}
