package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	purchaseapp "github.com/wyfcoding/storefront/internal/purchase/application"
	purchasedomain "github.com/wyfcoding/storefront/internal/purchase/domain"
	"github.com/wyfcoding/storefront/internal/purchase/purchasetest"
	"github.com/wyfcoding/storefront/internal/statistics/domain"
	"github.com/wyfcoding/storefront/pkg/apperr"
)

type memDashboardCache struct {
	snap        *domain.Dashboard
	loads       int
	invalidated int
}

func (c *memDashboardCache) Load(context.Context) (*domain.Dashboard, bool) {
	c.loads++
	return c.snap, c.snap != nil
}

func (c *memDashboardCache) Store(_ context.Context, d *domain.Dashboard) { c.snap = d }

func (c *memDashboardCache) Invalidate(context.Context) {
	c.snap = nil
	c.invalidated++
}

type statsFixture struct {
	world       *purchasetest.World
	coordinator *purchaseapp.PurchaseCoordinator
	reconcile   *ReconcileService
	query       *StatisticsQueryService
	cache       *memDashboardCache
}

func newStatsFixture() *statsFixture {
	w := purchasetest.NewWorld()
	c := &memDashboardCache{}
	return &statsFixture{
		world:       w,
		coordinator: purchaseapp.NewPurchaseCoordinator(w, w.Ledger(), w.Products(), w.Buyers(), w.Stats(), nil, nil),
		reconcile:   NewReconcileService(w, w.Products(), w.Ledger(), w.Stats(), c, nil, nil),
		query:       NewStatisticsQueryService(w.Products(), w.Buyers(), w.Ledger(), w.Stats(), c, 3),
		cache:       c,
	}
}

func (f *statsFixture) buy(t *testing.T, buyer, product string, n int) {
	t.Helper()
	_, err := f.coordinator.ExecutePurchase(context.Background(), purchaseapp.ExecutePurchaseCommand{BuyerID: buyer, ProductID: product, Quantity: &n})
	require.NoError(t, err)
}

func TestReconcile_RepairsFromLedger(t *testing.T) {
	f := newStatsFixture()
	ctx := context.Background()
	buyer := f.world.AddBuyer("alice")
	sold := f.world.AddProduct("Sold", "2.50", 20)
	untouched := f.world.AddProduct("Untouched", "1.00", 20)

	f.buy(t, buyer, sold, 2)
	f.buy(t, buyer, sold, 3)
	f.world.CorruptStats(sold, 999, "1.00")

	report, err := f.reconcile.ReconcileAllStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Reconciled)
	assert.Empty(t, report.Failures)

	s := f.world.StatsFor(sold)
	require.NotNil(t, s)
	assert.Equal(t, int64(5), s.TotalSales)
	assert.Equal(t, "12.50", s.TotalRevenue.StringFixed(2))

	z := f.world.StatsFor(untouched)
	require.NotNil(t, z, "missing rows are created")
	assert.Zero(t, z.TotalSales)
	assert.True(t, z.TotalRevenue.IsZero())
	assert.Equal(t, 1, f.cache.invalidated)
}

func TestReconcile_Idempotent(t *testing.T) {
	f := newStatsFixture()
	ctx := context.Background()
	buyer := f.world.AddBuyer("bob")
	a := f.world.AddProduct("A", "3.33", 10)
	b := f.world.AddProduct("B", "0.10", 10)
	f.buy(t, buyer, a, 3)
	f.buy(t, buyer, b, 7)

	_, err := f.reconcile.ReconcileAllStatistics(ctx)
	require.NoError(t, err)
	first := map[string]domain.Statistics{a: *f.world.StatsFor(a), b: *f.world.StatsFor(b)}

	_, err = f.reconcile.ReconcileAllStatistics(ctx)
	require.NoError(t, err)
	for id, before := range first {
		after := f.world.StatsFor(id)
		assert.Equal(t, before.TotalSales, after.TotalSales)
		assert.True(t, before.TotalRevenue.Equal(after.TotalRevenue))
		assert.Equal(t, before.ID, after.ID)
	}
}

func TestReconcile_PartialFailureKeepsOthers(t *testing.T) {
	f := newStatsFixture()
	buyer := f.world.AddBuyer("carol")
	good := f.world.AddProduct("Good", "1.00", 10)
	bad := f.world.AddProduct("Bad", "1.00", 10)
	f.buy(t, buyer, good, 1)
	f.buy(t, buyer, bad, 1)
	f.world.CorruptStats(good, 50, "50.00")
	f.world.CorruptStats(bad, 50, "50.00")
	f.world.FailOverwrite[bad] = errors.New("deadlock")

	report, err := f.reconcile.ReconcileAllStatistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Reconciled)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, bad, report.Failures[0].ProductID)

	assert.Equal(t, int64(1), f.world.StatsFor(good).TotalSales)
	assert.Equal(t, int64(50), f.world.StatsFor(bad).TotalSales)
}

func TestRevenueConservation(t *testing.T) {
	f := newStatsFixture()
	buyer := f.world.AddBuyer("dave")
	product := f.world.AddProduct("Coffee", "3.75", 100)
	for _, n := range []int{1, 4, 2, 7} {
		f.buy(t, buyer, product, n)
	}

	incremental := f.world.StatsFor(product)
	totals, err := f.world.Ledger().TotalsForProduct(context.Background(), product)
	require.NoError(t, err)
	assert.Equal(t, totals.Units, incremental.TotalSales)
	assert.True(t, totals.Revenue.Equal(incremental.TotalRevenue))

	_, err = f.reconcile.ReconcileAllStatistics(context.Background())
	require.NoError(t, err)
	assert.True(t, incremental.TotalRevenue.Equal(f.world.StatsFor(product).TotalRevenue))
}

func TestDashboard(t *testing.T) {
	f := newStatsFixture()
	ctx := context.Background()
	buyer := f.world.AddBuyer("erin")
	f.world.AddBuyer("frank")
	hot := f.world.AddProduct("Hot", "5.00", 10)
	warm := f.world.AddProduct("Warm", "2.00", 10)
	f.world.AddProduct("Scarce", "1.00", 1)
	f.buy(t, buyer, hot, 8)
	f.buy(t, buyer, warm, 2)

	d, err := f.query.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), d.TotalProducts)
	assert.Equal(t, int64(2), d.TotalBuyers)
	assert.Equal(t, int64(2), d.TotalPurchases)
	assert.Equal(t, int64(10), d.TotalUnitsSold)
	assert.Equal(t, "44.00", d.TotalRevenue.StringFixed(2))
	require.Len(t, d.TopProducts, 2)
	assert.Equal(t, hot, d.TopProducts[0].ProductID)
	assert.Len(t, d.RecentPurchases, 2)

	var low []string
	for _, p := range d.LowStock {
		low = append(low, p.Name)
	}
	assert.Equal(t, []string{"Scarce", "Hot"}, low)

	again, err := f.query.Dashboard(ctx)
	require.NoError(t, err)
	assert.Same(t, d, again, "second call served from cache")
}

func TestSalesByDate(t *testing.T) {
	f := newStatsFixture()
	ctx := context.Background()
	ledger := f.world.Ledger()
	day := func(d, h int) time.Time { return time.Date(2024, 6, d, h, 0, 0, 0, time.UTC) }
	for _, p := range []*purchasedomain.Purchase{
		purchasedomain.NewPurchase("b", "p", decimal.RequireFromString("10.00"), 1, day(1, 9)),
		purchasedomain.NewPurchase("b", "p", decimal.RequireFromString("10.00"), 2, day(1, 18)),
		purchasedomain.NewPurchase("b", "p", decimal.RequireFromString("5.00"), 1, day(3, 12)),
		purchasedomain.NewPurchase("b", "p", decimal.RequireFromString("7.00"), 1, day(5, 12)),
	} {
		require.NoError(t, ledger.Create(ctx, p))
	}

	report, err := f.query.SalesByDate(ctx, day(1, 0), day(4, 0))
	require.NoError(t, err)
	require.Len(t, report.Days, 2)
	assert.Equal(t, "2024-06-01", report.Days[0].Date)
	assert.Equal(t, int64(2), report.Days[0].Purchases)
	assert.Equal(t, "30.00", report.Days[0].Revenue.StringFixed(2))
	assert.Equal(t, "35.00", report.TotalRevenue.StringFixed(2))
	assert.Equal(t, int64(3), report.TotalCount)
	assert.Equal(t, "2024-06-03", report.To)

	_, err = f.query.SalesByDate(ctx, time.Time{}, day(4, 0))
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidInput))
	_, err = f.query.SalesByDate(ctx, day(4, 0), day(1, 0))
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidInput))
}

func TestProductStatistics(t *testing.T) {
	f := newStatsFixture()
	ctx := context.Background()
	buyer := f.world.AddBuyer("grace")
	product := f.world.AddProduct("Mug", "8.00", 5)

	_, err := f.query.ProductStatistics(ctx, product)
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))

	f.buy(t, buyer, product, 2)
	report, err := f.query.ProductStatistics(ctx, product)
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.Statistics.TotalSales)
	assert.Len(t, report.Purchases, 1)
}
