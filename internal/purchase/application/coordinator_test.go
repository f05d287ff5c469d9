package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/pkg/pagination"
	"github.com/wyfcoding/storefront/internal/purchase/domain"
	"github.com/wyfcoding/storefront/internal/purchase/purchasetest"
	"github.com/wyfcoding/storefront/pkg/apperr"
)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic, _ string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return p.err
}

type purchaseFixture struct {
	world       *purchasetest.World
	publisher   *recordingPublisher
	coordinator *PurchaseCoordinator
	query       *PurchaseQueryService
}

func newPurchaseFixture() *purchaseFixture {
	w := purchasetest.NewWorld()
	pub := &recordingPublisher{}
	return &purchaseFixture{
		world:       w,
		publisher:   pub,
		coordinator: NewPurchaseCoordinator(w, w.Ledger(), w.Products(), w.Buyers(), w.Stats(), pub, nil),
		query:       NewPurchaseQueryService(w.Ledger()),
	}
}

func qty(n int) *int { return &n }

func TestExecutePurchase_Scenario(t *testing.T) {
	f := newPurchaseFixture()
	ctx := context.Background()
	buyer := f.world.AddBuyer("alice")
	product := f.world.AddProduct("Widget", "10.00", 5)

	p, err := f.coordinator.ExecutePurchase(ctx, ExecutePurchaseCommand{BuyerID: buyer, ProductID: product, Quantity: qty(3)})
	require.NoError(t, err)
	assert.Equal(t, "30.00", p.Amount.StringFixed(2))
	assert.Equal(t, 2, f.world.Stock(product))

	stats := f.world.StatsFor(product)
	require.NotNil(t, stats)
	assert.Equal(t, int64(3), stats.TotalSales)
	assert.Equal(t, "30.00", stats.TotalRevenue.StringFixed(2))

	_, err = f.coordinator.ExecutePurchase(ctx, ExecutePurchaseCommand{BuyerID: buyer, ProductID: product, Quantity: qty(3)})
	require.Error(t, err)
	xe, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeInsufficientStock, apperr.CodeOf(xe))
	assert.Contains(t, xe.Message, "Only 2 available")
	assert.Equal(t, 2, xe.Context["available"])

	assert.Equal(t, 2, f.world.Stock(product))
	assert.Len(t, f.world.Purchases(), 1)
	assert.Equal(t, int64(3), f.world.StatsFor(product).TotalSales)
	assert.Equal(t, []string{domain.TopicPurchaseCompleted}, f.publisher.topics)
}

func TestExecutePurchase_DefaultQuantity(t *testing.T) {
	f := newPurchaseFixture()
	buyer := f.world.AddBuyer("bob")
	product := f.world.AddProduct("Gadget", "4.50", 2)

	p, err := f.coordinator.ExecutePurchase(context.Background(), ExecutePurchaseCommand{BuyerID: buyer, ProductID: product})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Quantity)
	assert.Equal(t, "4.50", p.Amount.StringFixed(2))
	assert.Equal(t, 1, f.world.Stock(product))
}

func TestExecutePurchase_ValidationOrder(t *testing.T) {
	f := newPurchaseFixture()
	ctx := context.Background()
	buyer := f.world.AddBuyer("carol")
	product := f.world.AddProduct("Thing", "1.00", 0)

	cases := []struct {
		name string
		cmd  ExecutePurchaseCommand
		code apperr.Code
	}{
		{"no identity", ExecutePurchaseCommand{ProductID: product, Quantity: qty(1)}, apperr.CodeUnauthenticated},
		{"unknown buyer before bad quantity", ExecutePurchaseCommand{BuyerID: "ghost", ProductID: product, Quantity: qty(0)}, apperr.CodeNotFound},
		{"unknown product", ExecutePurchaseCommand{BuyerID: buyer, ProductID: "ghost", Quantity: qty(1)}, apperr.CodeNotFound},
		{"bad quantity before stock", ExecutePurchaseCommand{BuyerID: buyer, ProductID: product, Quantity: qty(-1)}, apperr.CodeInvalidInput},
		{"out of stock", ExecutePurchaseCommand{BuyerID: buyer, ProductID: product, Quantity: qty(1)}, apperr.CodeInsufficientStock},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.coordinator.ExecutePurchase(ctx, tc.cmd)
			assert.True(t, apperr.IsCode(err, tc.code), "got %v", err)
		})
	}
	assert.Empty(t, f.world.Purchases())
	assert.Nil(t, f.world.StatsFor(product))
	assert.Empty(t, f.publisher.topics)
}

func TestExecutePurchase_AtomicOnStatisticsFailure(t *testing.T) {
	f := newPurchaseFixture()
	buyer := f.world.AddBuyer("dave")
	product := f.world.AddProduct("Lamp", "20.00", 4)
	f.world.FailIncrement = errors.New("statistics table locked")

	_, err := f.coordinator.ExecutePurchase(context.Background(), ExecutePurchaseCommand{BuyerID: buyer, ProductID: product, Quantity: qty(2)})
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodePersistence))

	assert.Equal(t, 4, f.world.Stock(product))
	assert.Empty(t, f.world.Purchases())
	assert.Nil(t, f.world.StatsFor(product))
	assert.Empty(t, f.publisher.topics)
}

func TestExecutePurchase_PublishFailureDoesNotFail(t *testing.T) {
	f := newPurchaseFixture()
	f.publisher.err = errors.New("broker down")
	buyer := f.world.AddBuyer("erin")
	product := f.world.AddProduct("Desk", "99.99", 1)

	_, err := f.coordinator.ExecutePurchase(context.Background(), ExecutePurchaseCommand{BuyerID: buyer, ProductID: product})
	require.NoError(t, err)
	assert.Equal(t, 0, f.world.Stock(product))
}

func TestExecutePurchase_ConcurrentNeverOversells(t *testing.T) {
	f := newPurchaseFixture()
	const initial = 10
	product := f.world.AddProduct("Hot Item", "2.50", initial)
	buyers := make([]string, 8)
	for i := range buyers {
		buyers[i] = f.world.AddBuyer("buyer" + string(rune('a'+i)))
	}

	var (
		wg        sync.WaitGroup
		soldUnits atomic.Int64
		rejected  atomic.Int64
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q := i%3 + 1
			_, err := f.coordinator.ExecutePurchase(context.Background(), ExecutePurchaseCommand{
				BuyerID:   buyers[i%len(buyers)],
				ProductID: product,
				Quantity:  qty(q),
			})
			switch {
			case err == nil:
				soldUnits.Add(int64(q))
			case apperr.IsCode(err, apperr.CodeInsufficientStock):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	stock := f.world.Stock(product)
	assert.GreaterOrEqual(t, stock, 0)
	assert.Equal(t, initial-int(soldUnits.Load()), stock)
	assert.Positive(t, rejected.Load())

	revenue := decimal.Zero
	var units int64
	for _, p := range f.world.Purchases() {
		revenue = revenue.Add(p.Amount)
		units += int64(p.Quantity)
	}
	stats := f.world.StatsFor(product)
	require.NotNil(t, stats)
	assert.Equal(t, soldUnits.Load(), units)
	assert.Equal(t, units, stats.TotalSales)
	assert.True(t, revenue.Equal(stats.TotalRevenue), "revenue %s != %s", revenue, stats.TotalRevenue)
}

func TestPurchaseAmount_IsPriceSnapshot(t *testing.T) {
	f := newPurchaseFixture()
	ctx := context.Background()
	buyer := f.world.AddBuyer("frank")
	product := f.world.AddProduct("Book", "10.00", 5)

	p, err := f.coordinator.ExecutePurchase(ctx, ExecutePurchaseCommand{BuyerID: buyer, ProductID: product, Quantity: qty(2)})
	require.NoError(t, err)
	f.world.SetPrice(product, "12.00")

	stored, err := f.query.GetPurchase(ctx, p.ID, Viewer{UserID: buyer})
	require.NoError(t, err)
	assert.Equal(t, "20.00", stored.Amount.StringFixed(2))

	next, err := f.coordinator.ExecutePurchase(ctx, ExecutePurchaseCommand{BuyerID: buyer, ProductID: product})
	require.NoError(t, err)
	assert.Equal(t, "12.00", next.Amount.StringFixed(2))
}

func TestPurchaseQueries(t *testing.T) {
	f := newPurchaseFixture()
	ctx := context.Background()
	alice := f.world.AddBuyer("alice")
	bob := f.world.AddBuyer("bob")
	product := f.world.AddProduct("Pen", "1.50", 100)

	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	step := 0
	f.coordinator.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * 24 * time.Hour)
	}

	var ids []string
	for _, q := range []int{1, 2, 3} {
		p, err := f.coordinator.ExecutePurchase(ctx, ExecutePurchaseCommand{BuyerID: alice, ProductID: product, Quantity: qty(q)})
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}
	other, err := f.coordinator.ExecutePurchase(ctx, ExecutePurchaseCommand{BuyerID: bob, ProductID: product})
	require.NoError(t, err)

	t.Run("own purchases newest first", func(t *testing.T) {
		res, err := f.query.ListBuyerPurchases(ctx, alice, pagination.NewRequest(1, 10))
		require.NoError(t, err)
		require.Len(t, res.Data, 3)
		assert.Equal(t, ids[2], res.Data[0].ID)
		assert.Equal(t, int64(3), res.Total)
	})

	t.Run("summary", func(t *testing.T) {
		s, err := f.query.BuyerSpendingSummary(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, "9.00", s.TotalSpent.StringFixed(2))
		assert.Equal(t, int64(3), s.PurchaseCount)
		assert.Equal(t, "3.00", s.AverageSpent.StringFixed(2))
	})

	t.Run("visibility", func(t *testing.T) {
		_, err := f.query.GetPurchase(ctx, other.ID, Viewer{UserID: alice})
		assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
		got, err := f.query.GetPurchase(ctx, other.ID, Viewer{UserID: "admin-1", IsAdmin: true})
		require.NoError(t, err)
		assert.Equal(t, bob, got.BuyerID)
	})

	t.Run("filter by range", func(t *testing.T) {
		from := base.Add(36 * time.Hour)
		to := base.Add(84 * time.Hour)
		res, err := f.query.FilterPurchases(ctx, domain.PurchaseFilter{From: &from, To: &to}, pagination.NewRequest(1, 10))
		require.NoError(t, err)
		assert.Len(t, res.Data, 2)

		_, err = f.query.FilterPurchases(ctx, domain.PurchaseFilter{From: &to, To: &from}, pagination.NewRequest(1, 10))
		assert.True(t, apperr.IsCode(err, apperr.CodeInvalidInput))
	})

	t.Run("all", func(t *testing.T) {
		res, err := f.query.ListAllPurchases(ctx, pagination.NewRequest(1, 2))
		require.NoError(t, err)
		assert.Len(t, res.Data, 2)
		assert.Equal(t, int64(4), res.Total)
		assert.Equal(t, 2, res.TotalPages)
	})
}
