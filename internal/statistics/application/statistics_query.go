package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/storefront/internal/statistics/domain"
	"github.com/wyfcoding/storefront/pkg/apperr"
	"golang.org/x/sync/errgroup"
)

const (
	topProductsLimit     = 5
	recentPurchasesLimit = 10
	lowStockLimit        = 10
	defaultLowStock      = 5
)

// StatisticsQueryService 看板与报表查询
type StatisticsQueryService struct {
	products          domain.ProductCatalog
	buyers            domain.BuyerCounter
	ledger            domain.PurchaseLedger
	stats             domain.StatisticsRepository
	cache             domain.DashboardCache
	lowStockThreshold int
	now               func() time.Time
}

// NewStatisticsQueryService 创建查询服务，cache 可为 nil
func NewStatisticsQueryService(
	products domain.ProductCatalog,
	buyers domain.BuyerCounter,
	ledger domain.PurchaseLedger,
	stats domain.StatisticsRepository,
	cache domain.DashboardCache,
	lowStockThreshold int,
) *StatisticsQueryService {
	if lowStockThreshold <= 0 {
		lowStockThreshold = defaultLowStock
	}
	return &StatisticsQueryService{
		products:          products,
		buyers:            buyers,
		ledger:            ledger,
		stats:             stats,
		cache:             cache,
		lowStockThreshold: lowStockThreshold,
		now:               time.Now,
	}
}

// Dashboard 并发聚合看板数据，启用缓存时优先返回快照
func (s *StatisticsQueryService) Dashboard(ctx context.Context) (*domain.Dashboard, error) {
	if s.cache != nil {
		if d, ok := s.cache.Load(ctx); ok {
			return d, nil
		}
	}

	d := &domain.Dashboard{GeneratedAt: s.now().UTC()}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.TotalProducts, err = s.products.Count(gctx)
		return apperr.Persistence("count products", err)
	})
	g.Go(func() (err error) {
		d.TotalBuyers, err = s.buyers.Count(gctx)
		return apperr.Persistence("count buyers", err)
	})
	g.Go(func() error {
		totals, err := s.ledger.Totals(gctx)
		if err != nil {
			return apperr.Persistence("sum purchases", err)
		}
		d.TotalPurchases, d.TotalUnitsSold, d.TotalRevenue = totals.Count, totals.Units, totals.Revenue.Round(2)
		return nil
	})
	g.Go(func() (err error) {
		d.TopProducts, err = s.stats.TopSelling(gctx, topProductsLimit)
		return apperr.Persistence("load top products", err)
	})
	g.Go(func() (err error) {
		d.RecentPurchases, err = s.ledger.Recent(gctx, recentPurchasesLimit)
		return apperr.Persistence("load recent purchases", err)
	})
	g.Go(func() (err error) {
		d.LowStock, err = s.products.LowStock(gctx, s.lowStockThreshold, lowStockLimit)
		return apperr.Persistence("load low stock", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Store(ctx, d)
	}
	return d, nil
}

// SalesByDate [from, to) 区间按天汇总，两端必填
func (s *StatisticsQueryService) SalesByDate(ctx context.Context, from, to time.Time) (*domain.SalesReport, error) {
	if from.IsZero() || to.IsZero() {
		return nil, apperr.InvalidInput("start_date and end_date are required")
	}
	if !from.Before(to) {
		return nil, apperr.InvalidInput("start date must be before end date")
	}

	days, err := s.ledger.DailySales(ctx, from, to)
	if err != nil {
		return nil, apperr.Persistence("aggregate daily sales", err)
	}
	report := &domain.SalesReport{
		From:         from.Format(time.DateOnly),
		To:           to.Add(-time.Nanosecond).Format(time.DateOnly),
		Days:         days,
		TotalRevenue: decimal.Zero,
	}
	for _, d := range days {
		report.TotalRevenue = report.TotalRevenue.Add(d.Revenue)
		report.TotalCount += d.Purchases
	}
	return report, nil
}

// ProductStatistics 单个商品的统计与流水，没有统计行时返回 NotFound
func (s *StatisticsQueryService) ProductStatistics(ctx context.Context, productID string) (*domain.ProductReport, error) {
	stats, err := s.stats.GetByProduct(ctx, productID)
	if err != nil {
		return nil, apperr.Persistence("load statistics", err)
	}
	if stats == nil {
		return nil, apperr.NotFound("statistics", productID)
	}
	purchases, err := s.ledger.ListByProduct(ctx, productID)
	if err != nil {
		return nil, apperr.Persistence("load product purchases", err)
	}
	return &domain.ProductReport{Statistics: stats, Purchases: purchases}, nil
}
