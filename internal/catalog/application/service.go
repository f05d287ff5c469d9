package application

import (
	"context"
	"slices"

	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/storefront/internal/catalog/domain"
	"github.com/wyfcoding/storefront/pkg/apperr"
)

// publish 事务提交后发布事件，失败只记日志
func publish(ctx context.Context, p domain.EventPublisher, topic, key string, event any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, topic, key, event); err != nil {
		logging.Warn(ctx, "failed to publish catalog event", "topic", topic, "key", key, "error", err)
	}
}

// resolveCategories 按 ID 加载分类，任一缺失返回 NotFound
func resolveCategories(ctx context.Context, repo domain.CategoryRepository, ids []string) ([]domain.ProductCategory, error) {
	if len(ids) == 0 {
		return []domain.ProductCategory{}, nil
	}
	unique := slices.Compact(slices.Sorted(slices.Values(ids)))

	found, err := repo.GetByIDs(ctx, unique)
	if err != nil {
		return nil, apperr.Persistence("load categories", err)
	}
	if len(found) == len(unique) {
		return found, nil
	}

	have := make(map[string]bool, len(found))
	for _, c := range found {
		have[c.ID] = true
	}
	for _, id := range unique {
		if !have[id] {
			return nil, apperr.NotFound("category", id)
		}
	}
	return found, nil
}
