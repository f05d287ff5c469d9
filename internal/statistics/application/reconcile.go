package application

import (
	"context"
	"time"

	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/tracing"
	"github.com/wyfcoding/storefront/internal/statistics/domain"
	"github.com/wyfcoding/storefront/pkg/apperr"
	"github.com/wyfcoding/storefront/pkg/db"
)

// ReconcileService 依据购买流水重建统计
type ReconcileService struct {
	tx        db.Transactor
	products  domain.ProductCatalog
	ledger    domain.PurchaseLedger
	stats     domain.StatisticsRepository
	cache     domain.DashboardCache
	publisher domain.EventPublisher
	metrics   *ReconcileMetrics
	now       func() time.Time
}

// NewReconcileService 创建对账服务，cache 可为 nil
func NewReconcileService(
	tx db.Transactor,
	products domain.ProductCatalog,
	ledger domain.PurchaseLedger,
	stats domain.StatisticsRepository,
	cache domain.DashboardCache,
	publisher domain.EventPublisher,
	m *ReconcileMetrics,
) *ReconcileService {
	return &ReconcileService{
		tx:        tx,
		products:  products,
		ledger:    ledger,
		stats:     stats,
		cache:     cache,
		publisher: publisher,
		metrics:   m,
		now:       time.Now,
	}
}

// ReconcileAllStatistics 逐个商品在独立事务中覆盖统计
// 单个商品失败只记入报告，已处理的商品不回滚
func (s *ReconcileService) ReconcileAllStatistics(ctx context.Context) (*domain.ReconcileReport, error) {
	ctx, span := tracing.StartSpan(ctx, "ReconcileService.ReconcileAllStatistics")
	defer span.End()

	start := s.now()
	ids, err := s.products.ListIDs(ctx)
	if err != nil {
		err = apperr.Persistence("list products", err)
		tracing.SetError(ctx, err)
		return nil, err
	}
	tracing.AddTag(ctx, "products.total", len(ids))

	report := &domain.ReconcileReport{Total: len(ids), StartedAt: start.UTC()}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.reconcileProduct(ctx, id); err != nil {
			logging.Error(ctx, "statistics reconcile failed", "product_id", id, "error", err)
			report.Failures = append(report.Failures, domain.ReconcileFailure{ProductID: id, Error: err.Error()})
			continue
		}
		report.Reconciled++
	}
	report.Duration = s.now().Sub(start)

	s.metrics.observe(report.Duration, report.Reconciled, len(report.Failures))
	tracing.AddTag(ctx, "products.reconciled", report.Reconciled)
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	logging.Info(ctx, "statistics reconciled",
		"total", report.Total,
		"reconciled", report.Reconciled,
		"failed", len(report.Failures),
		"duration", report.Duration,
	)
	publish(ctx, s.publisher, domain.TopicStatisticsReconciled, "all", domain.StatisticsReconciledEvent{
		Total:      report.Total,
		Reconciled: report.Reconciled,
		Failed:     len(report.Failures),
		Timestamp:  s.now().UTC(),
	})
	return report, nil
}

// reconcileProduct 先锁商品行，与同一商品的购买事务串行
func (s *ReconcileService) reconcileProduct(ctx context.Context, productID string) error {
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		product, err := s.products.GetByIDForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if product == nil {
			// 并发删除
			return nil
		}
		totals, err := s.ledger.TotalsForProduct(ctx, productID)
		if err != nil {
			return err
		}
		return s.stats.Overwrite(ctx, domain.FromLedger(productID, totals, s.now().UTC()))
	})
	return apperr.Persistence("reconcile product", err)
}
