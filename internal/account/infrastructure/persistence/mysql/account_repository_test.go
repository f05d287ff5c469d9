package mysql

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/pkg/pagination"
	"github.com/wyfcoding/storefront/internal/account/domain"
	purchasedomain "github.com/wyfcoding/storefront/internal/purchase/domain"
	"github.com/wyfcoding/storefront/pkg/db"
	"github.com/wyfcoding/storefront/pkg/db/dbtest"
	"gorm.io/gorm"
)

func openAccountDB(t *testing.T) *gorm.DB {
	t.Helper()
	return dbtest.Open(t, &domain.Buyer{}, &domain.Administrator{}, &purchasedomain.Purchase{})
}

func TestBuyerRepository_UniqueUsernameAndEmail(t *testing.T) {
	repo := NewBuyerRepository(openAccountDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.Buyer{Username: "alice", Email: "alice@example.com", PasswordHash: "x"}))
	err := repo.Create(ctx, &domain.Buyer{Username: "alice", Email: "other@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
	err = repo.Create(ctx, &domain.Buyer{Username: "bob", Email: "alice@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	got, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	missing, err := repo.GetByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestBuyerRepository_ListAndPurchases(t *testing.T) {
	gdb := openAccountDB(t)
	repo := NewBuyerRepository(gdb)
	ctx := context.Background()

	for _, name := range []string{"carol", "alice", "bob"} {
		require.NoError(t, repo.Create(ctx, &domain.Buyer{Username: name, Email: name + "@example.com", PasswordHash: "x"}))
	}
	page, total, err := repo.List(ctx, pagination.NewRequest(1, 2))
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "alice", page[0].Username)

	alice, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	has, err := repo.HasPurchases(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, gdb.Create(purchasedomain.NewPurchase(alice.ID, "p1", decimal.NewFromInt(10), 1, time.Now().UTC())).Error)
	has, err = repo.HasPurchases(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestAdminRepository_LockIDsInTx(t *testing.T) {
	gdb := openAccountDB(t)
	repo := NewAdminRepository(gdb)
	ctx := context.Background()

	a := &domain.Administrator{Username: "root", PasswordHash: "x"}
	b := &domain.Administrator{Username: "ops", PasswordHash: "x"}
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	err := db.RunInTx(ctx, gdb, func(ctx context.Context) error {
		ids, err := repo.LockIDs(ctx)
		if err != nil {
			return err
		}
		assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)
		return repo.Delete(ctx, a.ID)
	})
	require.NoError(t, err)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	err = repo.Create(ctx, &domain.Administrator{Username: "ops", PasswordHash: "x"})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}
