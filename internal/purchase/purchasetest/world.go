// Package purchasetest 提供购买与统计流程的内存实现，事务失败时回滚到快照，供测试使用
package purchasetest

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/pagination"
	accountdomain "github.com/wyfcoding/storefront/internal/account/domain"
	catalogdomain "github.com/wyfcoding/storefront/internal/catalog/domain"
	"github.com/wyfcoding/storefront/internal/purchase/domain"
	statsdomain "github.com/wyfcoding/storefront/internal/statistics/domain"
)

// World 商品、买家、流水与统计的内存状态
// Transaction 串行执行，等价于对所有行加锁
type World struct {
	txMu sync.Mutex
	mu   sync.Mutex

	products  map[string]*catalogdomain.Product
	buyers    map[string]*accountdomain.Buyer
	purchases []*domain.Purchase
	stats     map[string]*statsdomain.Statistics

	// FailIncrement 非空时统计累加返回该错误
	FailIncrement error
	// FailOverwrite 指定商品的统计覆盖返回错误
	FailOverwrite map[string]error
}

func NewWorld() *World {
	return &World{
		products:      map[string]*catalogdomain.Product{},
		buyers:        map[string]*accountdomain.Buyer{},
		stats:         map[string]*statsdomain.Statistics{},
		FailOverwrite: map[string]error{},
	}
}

// AddProduct 新增商品并返回其 ID
func (w *World) AddProduct(name, price string, stock int) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := uuid.NewString()
	w.products[id] = &catalogdomain.Product{
		ID:            id,
		Name:          name,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
	}
	return id
}

// SetPrice 直接修改商品单价
func (w *World) SetPrice(id, price string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.products[id].Price = decimal.RequireFromString(price)
}

// AddBuyer 新增买家并返回其 ID
func (w *World) AddBuyer(username string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := uuid.NewString()
	w.buyers[id] = &accountdomain.Buyer{ID: id, Username: username, Email: username + "@example.com"}
	return id
}

// Stock 当前库存
func (w *World) Stock(id string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.products[id].StockQuantity
}

// Purchases 全部流水的副本
func (w *World) Purchases() []domain.Purchase {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]domain.Purchase, 0, len(w.purchases))
	for _, p := range w.purchases {
		out = append(out, *p)
	}
	return out
}

// StatsFor 商品统计副本，不存在时返回 nil
func (w *World) StatsFor(productID string) *statsdomain.Statistics {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.stats[productID]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

// CorruptStats 直接篡改统计行
func (w *World) CorruptStats(productID string, sales int64, revenue string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats[productID] = &statsdomain.Statistics{
		ID:           uuid.NewString(),
		ProductID:    productID,
		TotalSales:   sales,
		TotalRevenue: decimal.RequireFromString(revenue),
	}
}

type snapshot struct {
	products  map[string]catalogdomain.Product
	purchases []*domain.Purchase
	stats     map[string]statsdomain.Statistics
}

func (w *World) snapshot() snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := snapshot{
		products:  make(map[string]catalogdomain.Product, len(w.products)),
		purchases: slices.Clone(w.purchases),
		stats:     make(map[string]statsdomain.Statistics, len(w.stats)),
	}
	for id, p := range w.products {
		s.products[id] = *p
	}
	for id, st := range w.stats {
		s.stats[id] = *st
	}
	return s
}

func (w *World) restore(s snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.products = make(map[string]*catalogdomain.Product, len(s.products))
	for id, p := range s.products {
		w.products[id] = &p
	}
	w.purchases = s.purchases
	w.stats = make(map[string]*statsdomain.Statistics, len(s.stats))
	for id, st := range s.stats {
		w.stats[id] = &st
	}
}

// Transaction 实现 db.Transactor，fn 返回错误时恢复快照
func (w *World) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	w.txMu.Lock()
	defer w.txMu.Unlock()
	snap := w.snapshot()
	if err := fn(ctx); err != nil {
		w.restore(snap)
		return err
	}
	return nil
}

// Products 商品视图
func (w *World) Products() Products { return Products{w} }

// Buyers 买家视图
func (w *World) Buyers() Buyers { return Buyers{w} }

// Ledger 流水视图
func (w *World) Ledger() Ledger { return Ledger{w} }

// Stats 统计视图
func (w *World) Stats() Stats { return Stats{w} }

// Products 实现 domain.ProductStock 与 statsdomain.ProductCatalog
type Products struct{ w *World }

func (r Products) GetByID(_ context.Context, id string) (*catalogdomain.Product, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	p, ok := r.w.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r Products) GetByIDForUpdate(ctx context.Context, id string) (*catalogdomain.Product, error) {
	return r.GetByID(ctx, id)
}

func (r Products) DecrementStock(_ context.Context, id string, quantity int) (bool, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	p, ok := r.w.products[id]
	if !ok || p.StockQuantity < quantity {
		return false, nil
	}
	p.StockQuantity -= quantity
	return true, nil
}

func (r Products) ListIDs(_ context.Context) ([]string, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	return slices.Sorted(maps.Keys(r.w.products)), nil
}

func (r Products) Count(_ context.Context) (int64, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	return int64(len(r.w.products)), nil
}

func (r Products) LowStock(_ context.Context, threshold, limit int) ([]*catalogdomain.Product, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	var out []*catalogdomain.Product
	for _, p := range r.w.products {
		if p.StockQuantity <= threshold {
			cp := *p
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *catalogdomain.Product) int {
		return cmp.Or(cmp.Compare(a.StockQuantity, b.StockQuantity), cmp.Compare(a.Name, b.Name))
	})
	return out[:min(limit, len(out))], nil
}

// Buyers 实现 domain.BuyerLookup 与 statsdomain.BuyerCounter
type Buyers struct{ w *World }

func (r Buyers) GetByID(_ context.Context, id string) (*accountdomain.Buyer, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	b, ok := r.w.buyers[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (r Buyers) Count(_ context.Context) (int64, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	return int64(len(r.w.buyers)), nil
}

// Ledger 实现 domain.PurchaseRepository
type Ledger struct{ w *World }

func (r Ledger) Create(_ context.Context, p *domain.Purchase) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	cp := *p
	r.w.purchases = append(r.w.purchases, &cp)
	return nil
}

func (r Ledger) GetByID(_ context.Context, id string) (*domain.Purchase, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	for _, p := range r.w.purchases {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r Ledger) match(f domain.PurchaseFilter) []*domain.Purchase {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	var out []*domain.Purchase
	for _, p := range r.w.purchases {
		if f.BuyerID != "" && p.BuyerID != f.BuyerID {
			continue
		}
		if f.ProductID != "" && p.ProductID != f.ProductID {
			continue
		}
		if f.From != nil && p.PurchaseDate.Before(*f.From) {
			continue
		}
		if f.To != nil && !p.PurchaseDate.Before(*f.To) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	slices.SortStableFunc(out, func(a, b *domain.Purchase) int {
		return b.PurchaseDate.Compare(a.PurchaseDate)
	})
	return out
}

func (r Ledger) List(_ context.Context, f domain.PurchaseFilter, page *pagination.Request) ([]*domain.Purchase, int64, error) {
	all := r.match(f)
	start := min(page.Offset(), len(all))
	end := min(start+page.Limit(), len(all))
	return all[start:end], int64(len(all)), nil
}

func (r Ledger) ListByProduct(_ context.Context, productID string) ([]*domain.Purchase, error) {
	return r.match(domain.PurchaseFilter{ProductID: productID}), nil
}

func (r Ledger) Recent(_ context.Context, limit int) ([]*domain.Purchase, error) {
	all := r.match(domain.PurchaseFilter{})
	return all[:min(limit, len(all))], nil
}

func totals(ps []*domain.Purchase) domain.LedgerTotals {
	t := domain.LedgerTotals{Revenue: decimal.Zero}
	for _, p := range ps {
		t.Units += int64(p.Quantity)
		t.Revenue = t.Revenue.Add(p.Amount)
		t.Count++
	}
	return t
}

func (r Ledger) SumByBuyer(_ context.Context, buyerID string) (decimal.Decimal, int64, error) {
	t := totals(r.match(domain.PurchaseFilter{BuyerID: buyerID}))
	return t.Revenue, t.Count, nil
}

func (r Ledger) TotalsForProduct(_ context.Context, productID string) (domain.LedgerTotals, error) {
	return totals(r.match(domain.PurchaseFilter{ProductID: productID})), nil
}

func (r Ledger) Totals(_ context.Context) (domain.LedgerTotals, error) {
	return totals(r.match(domain.PurchaseFilter{})), nil
}

func (r Ledger) DailySales(_ context.Context, from, to time.Time) ([]domain.DailySales, error) {
	byDay := map[string]*domain.DailySales{}
	for _, p := range r.match(domain.PurchaseFilter{From: &from, To: &to}) {
		day := p.PurchaseDate.UTC().Format(time.DateOnly)
		d, ok := byDay[day]
		if !ok {
			d = &domain.DailySales{Date: day, Revenue: decimal.Zero}
			byDay[day] = d
		}
		d.Revenue = d.Revenue.Add(p.Amount)
		d.Purchases++
		d.Units += int64(p.Quantity)
	}
	out := make([]domain.DailySales, 0, len(byDay))
	for _, day := range slices.Sorted(maps.Keys(byDay)) {
		out = append(out, *byDay[day])
	}
	return out, nil
}

// Stats 实现 statsdomain.StatisticsRepository
type Stats struct{ w *World }

func (r Stats) IncrementForPurchase(_ context.Context, productID string, quantity int, amount decimal.Decimal, at time.Time) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	if r.w.FailIncrement != nil {
		return r.w.FailIncrement
	}
	s, ok := r.w.stats[productID]
	if !ok {
		s = &statsdomain.Statistics{ID: uuid.NewString(), ProductID: productID, TotalRevenue: decimal.Zero}
		r.w.stats[productID] = s
	}
	s.TotalSales += int64(quantity)
	s.TotalRevenue = s.TotalRevenue.Add(amount)
	s.LastUpdated = at
	return nil
}

func (r Stats) Overwrite(_ context.Context, stats *statsdomain.Statistics) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	if err := r.w.FailOverwrite[stats.ProductID]; err != nil {
		return err
	}
	cp := *stats
	if cur, ok := r.w.stats[stats.ProductID]; ok {
		cp.ID = cur.ID
	} else if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	r.w.stats[stats.ProductID] = &cp
	return nil
}

func (r Stats) GetByProduct(_ context.Context, productID string) (*statsdomain.Statistics, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	s, ok := r.w.stats[productID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r Stats) TopSelling(_ context.Context, limit int) ([]statsdomain.TopProduct, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	out := make([]statsdomain.TopProduct, 0, len(r.w.stats))
	for id, s := range r.w.stats {
		name := ""
		if p, ok := r.w.products[id]; ok {
			name = p.Name
		}
		out = append(out, statsdomain.TopProduct{ProductID: id, Name: name, TotalSales: s.TotalSales, TotalRevenue: s.TotalRevenue})
	}
	slices.SortFunc(out, func(a, b statsdomain.TopProduct) int {
		return cmp.Or(cmp.Compare(b.TotalSales, a.TotalSales), cmp.Compare(a.ProductID, b.ProductID))
	})
	return out[:min(limit, len(out))], nil
}
