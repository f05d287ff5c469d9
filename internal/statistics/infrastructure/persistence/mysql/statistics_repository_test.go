package mysql

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	catalogdomain "github.com/wyfcoding/storefront/internal/catalog/domain"
	"github.com/wyfcoding/storefront/internal/statistics/domain"
	"github.com/wyfcoding/storefront/pkg/db/dbtest"
	"gorm.io/gorm"
)

func newStatsRepo(t *testing.T) (*gorm.DB, domain.StatisticsRepository) {
	t.Helper()
	gdb := dbtest.Open(t, &catalogdomain.Product{}, &catalogdomain.ProductCategory{}, &domain.Statistics{})
	return gdb, NewStatisticsRepository(gdb)
}

func TestStatisticsRepository_IncrementCreatesThenAccumulates(t *testing.T) {
	_, repo := newStatsRepo(t)
	ctx := context.Background()
	t1 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	require.NoError(t, repo.IncrementForPurchase(ctx, "p1", 3, decimal.NewFromInt(30), t1))
	got, err := repo.GetByProduct(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.EqualValues(t, 3, got.TotalSales)
	assert.True(t, decimal.NewFromInt(30).Equal(got.TotalRevenue))
	firstID := got.ID

	require.NoError(t, repo.IncrementForPurchase(ctx, "p1", 1, decimal.RequireFromString("10.50"), t2))
	got, err = repo.GetByProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, firstID, got.ID, "same row")
	assert.EqualValues(t, 4, got.TotalSales)
	assert.True(t, decimal.RequireFromString("40.50").Equal(got.TotalRevenue), got.TotalRevenue.String())
	assert.True(t, t2.Equal(got.LastUpdated), got.LastUpdated.String())
}

func TestStatisticsRepository_OverwriteReplacesCorruptedRow(t *testing.T) {
	_, repo := newStatsRepo(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.IncrementForPurchase(ctx, "p1", 999, decimal.NewFromInt(123456), at))
	require.NoError(t, repo.Overwrite(ctx, &domain.Statistics{
		ProductID:    "p1",
		TotalSales:   4,
		TotalRevenue: decimal.NewFromInt(40),
		LastUpdated:  at.Add(time.Minute),
	}))

	got, err := repo.GetByProduct(ctx, "p1")
	require.NoError(t, err)
	assert.EqualValues(t, 4, got.TotalSales)
	assert.True(t, decimal.NewFromInt(40).Equal(got.TotalRevenue), got.TotalRevenue.String())

	require.NoError(t, repo.Overwrite(ctx, &domain.Statistics{ProductID: "p2", LastUpdated: at}))
	fresh, err := repo.GetByProduct(ctx, "p2")
	require.NoError(t, err)
	require.NotNil(t, fresh)
	assert.Zero(t, fresh.TotalSales)

	missing, err := repo.GetByProduct(ctx, "p3")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStatisticsRepository_TopSelling(t *testing.T) {
	gdb, repo := newStatsRepo(t)
	ctx := context.Background()
	at := time.Now().UTC()

	for _, p := range []*catalogdomain.Product{
		{ID: "p1", Name: "Lamp", Price: decimal.NewFromInt(10)},
		{ID: "p2", Name: "Desk", Price: decimal.NewFromInt(99)},
		{ID: "p3", Name: "Mug", Price: decimal.NewFromInt(5)},
	} {
		require.NoError(t, gdb.Create(p).Error)
	}
	require.NoError(t, repo.IncrementForPurchase(ctx, "p1", 4, decimal.NewFromInt(40), at))
	require.NoError(t, repo.IncrementForPurchase(ctx, "p2", 1, decimal.NewFromInt(99), at))
	require.NoError(t, repo.IncrementForPurchase(ctx, "p3", 9, decimal.NewFromInt(45), at))

	top, err := repo.TopSelling(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "Mug", top[0].Name)
	assert.EqualValues(t, 9, top[0].TotalSales)
	assert.Equal(t, "Lamp", top[1].Name)
}
