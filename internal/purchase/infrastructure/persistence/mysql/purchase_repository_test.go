package mysql

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/pkg/pagination"
	"github.com/wyfcoding/storefront/internal/purchase/domain"
	"github.com/wyfcoding/storefront/pkg/db/dbtest"
)

func newPurchaseRepo(t *testing.T) domain.PurchaseRepository {
	t.Helper()
	return NewPurchaseRepository(dbtest.Open(t, &domain.Purchase{}))
}

func day(d, h int) time.Time {
	return time.Date(2024, 3, d, h, 0, 0, 0, time.UTC)
}

func seed(t *testing.T, repo domain.PurchaseRepository, buyer, product, price string, qty int, at time.Time) *domain.Purchase {
	t.Helper()
	p := domain.NewPurchase(buyer, product, decimal.RequireFromString(price), qty, at)
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

func TestPurchaseRepository_DailySales(t *testing.T) {
	repo := newPurchaseRepo(t)
	ctx := context.Background()
	seed(t, repo, "b1", "p1", "10.00", 3, day(1, 9))
	seed(t, repo, "b2", "p1", "10.00", 1, day(1, 23))
	seed(t, repo, "b1", "p2", "2.50", 2, day(3, 12))
	seed(t, repo, "b1", "p2", "2.50", 4, day(5, 0))

	rows, err := repo.DailySales(ctx, day(1, 0), day(5, 0))
	require.NoError(t, err)
	require.Len(t, rows, 2, "upper bound is exclusive")

	assert.Equal(t, "2024-03-01", rows[0].Date)
	assert.EqualValues(t, 2, rows[0].Purchases)
	assert.EqualValues(t, 4, rows[0].Units)
	assert.True(t, decimal.NewFromInt(40).Equal(rows[0].Revenue), rows[0].Revenue.String())

	assert.Equal(t, "2024-03-03", rows[1].Date)
	assert.True(t, decimal.NewFromInt(5).Equal(rows[1].Revenue), rows[1].Revenue.String())
}

func TestPurchaseRepository_Totals(t *testing.T) {
	repo := newPurchaseRepo(t)
	ctx := context.Background()

	empty, err := repo.Totals(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.Count)
	assert.True(t, empty.Revenue.IsZero())

	seed(t, repo, "b1", "p1", "10.00", 3, day(1, 9))
	seed(t, repo, "b2", "p1", "10.00", 1, day(2, 9))
	seed(t, repo, "b1", "p2", "2.50", 2, day(3, 9))

	p1, err := repo.TotalsForProduct(ctx, "p1")
	require.NoError(t, err)
	assert.EqualValues(t, 4, p1.Units)
	assert.EqualValues(t, 2, p1.Count)
	assert.True(t, decimal.NewFromInt(40).Equal(p1.Revenue), p1.Revenue.String())

	all, err := repo.Totals(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 6, all.Units)
	assert.True(t, decimal.NewFromInt(45).Equal(all.Revenue), all.Revenue.String())

	spent, n, err := repo.SumByBuyer(ctx, "b1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.True(t, decimal.NewFromInt(35).Equal(spent), spent.String())
}

func TestPurchaseRepository_ListFilter(t *testing.T) {
	repo := newPurchaseRepo(t)
	ctx := context.Background()
	seed(t, repo, "b1", "p1", "1.00", 1, day(1, 9))
	newest := seed(t, repo, "b1", "p2", "1.00", 1, day(4, 9))
	seed(t, repo, "b2", "p1", "1.00", 1, day(2, 9))

	from, to := day(1, 12), day(5, 0)
	items, total, err := repo.List(ctx, domain.PurchaseFilter{BuyerID: "b1", From: &from, To: &to}, pagination.NewRequest(1, 10))
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, newest.ID, items[0].ID)

	items, total, err = repo.List(ctx, domain.PurchaseFilter{ProductID: "p1"}, pagination.NewRequest(1, 1))
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, items, 1)
	assert.Equal(t, "b2", items[0].BuyerID, "newest first")

	got, err := repo.GetByID(ctx, newest.ID)
	require.NoError(t, err)
	assert.Equal(t, "p2", got.ProductID)
	missing, err := repo.GetByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDayOf(t *testing.T) {
	assert.Equal(t, "2024-03-01", dayOf("2024-03-01T00:00:00Z"))
	assert.Equal(t, "2024-03-01", dayOf("2024-03-01"))
}
