// Package catalogtest 提供商品目录的内存实现，供测试使用
package catalogtest

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/wyfcoding/pkg/pagination"
	"github.com/wyfcoding/storefront/internal/catalog/domain"
)

// PassthroughTx 直接执行回调的事务器
type PassthroughTx struct{}

func (PassthroughTx) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// MemStore 内存中的商品、分类与价格历史
type MemStore struct {
	mu         sync.Mutex
	Products   map[string]*domain.Product
	Categories map[string]*domain.ProductCategory
	History    []*domain.PriceHistory
	Purchased  map[string]bool
}

func NewMemStore() *MemStore {
	return &MemStore{
		Products:   map[string]*domain.Product{},
		Categories: map[string]*domain.ProductCategory{},
		Purchased:  map[string]bool{},
	}
}

func clone(p *domain.Product) *domain.Product {
	cp := *p
	cp.Categories = slices.Clone(p.Categories)
	return &cp
}

// MemProducts 实现 domain.ProductRepository
type MemProducts struct{ S *MemStore }

func (r MemProducts) Create(_ context.Context, p *domain.Product) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	r.S.Products[p.ID] = clone(p)
	return nil
}

func (r MemProducts) Save(_ context.Context, p *domain.Product) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	cur, ok := r.S.Products[p.ID]
	if !ok {
		return errors.New("missing row")
	}
	cats := cur.Categories
	cp := clone(p)
	cp.Categories = cats
	r.S.Products[p.ID] = cp
	return nil
}

func (r MemProducts) ReplaceCategories(_ context.Context, p *domain.Product, cats []domain.ProductCategory) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	r.S.Products[p.ID].Categories = slices.Clone(cats)
	p.Categories = cats
	return nil
}

func (r MemProducts) GetByID(_ context.Context, id string) (*domain.Product, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	p, ok := r.S.Products[id]
	if !ok {
		return nil, nil
	}
	return clone(p), nil
}

func (r MemProducts) GetByIDForUpdate(ctx context.Context, id string) (*domain.Product, error) {
	return r.GetByID(ctx, id)
}

func (r MemProducts) HasPurchases(_ context.Context, id string) (bool, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	return r.S.Purchased[id], nil
}

func (r MemProducts) Delete(_ context.Context, id string) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	delete(r.S.Products, id)
	r.S.History = slices.DeleteFunc(r.S.History, func(h *domain.PriceHistory) bool { return h.ProductID == id })
	return nil
}

func (r MemProducts) match(p *domain.Product, f domain.ProductFilter) bool {
	if f.Search != "" && !strings.Contains(strings.ToLower(p.Name+" "+p.Description), strings.ToLower(f.Search)) {
		return false
	}
	if f.CategoryID != "" && !slices.Contains(p.CategoryIDs(), f.CategoryID) {
		return false
	}
	if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.InStock && p.StockQuantity <= 0 {
		return false
	}
	return true
}

func (r MemProducts) ListAll(_ context.Context, f domain.ProductFilter) ([]*domain.Product, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	var out []*domain.Product
	for _, p := range r.S.Products {
		if r.match(p, f) {
			out = append(out, clone(p))
		}
	}
	slices.SortFunc(out, func(a, b *domain.Product) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (r MemProducts) List(ctx context.Context, f domain.ProductFilter, page *pagination.Request) ([]*domain.Product, int64, error) {
	all, _ := r.ListAll(ctx, f)
	total := int64(len(all))
	start := min(page.Offset(), len(all))
	end := min(start+page.Limit(), len(all))
	return all[start:end], total, nil
}

func (r MemProducts) ListIDs(_ context.Context) ([]string, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	ids := make([]string, 0, len(r.S.Products))
	for id := range r.S.Products {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (r MemProducts) DecrementStock(_ context.Context, id string, qty int) (bool, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	p, ok := r.S.Products[id]
	if !ok || p.StockQuantity < qty {
		return false, nil
	}
	p.StockQuantity -= qty
	return true, nil
}

func (r MemProducts) Count(_ context.Context) (int64, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	return int64(len(r.S.Products)), nil
}

func (r MemProducts) LowStock(_ context.Context, threshold, limit int) ([]*domain.Product, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	var out []*domain.Product
	for _, p := range r.S.Products {
		if p.StockQuantity <= threshold {
			out = append(out, clone(p))
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MemCategories 实现 domain.CategoryRepository
type MemCategories struct{ S *MemStore }

func (r MemCategories) Create(_ context.Context, c *domain.ProductCategory) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	cp := *c
	r.S.Categories[c.ID] = &cp
	return nil
}

func (r MemCategories) Save(_ context.Context, c *domain.ProductCategory) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	cp := *c
	r.S.Categories[c.ID] = &cp
	return nil
}

func (r MemCategories) GetByID(_ context.Context, id string) (*domain.ProductCategory, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	c, ok := r.S.Categories[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r MemCategories) GetByName(_ context.Context, name string) (*domain.ProductCategory, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	for _, c := range r.S.Categories {
		if c.Name == name {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r MemCategories) GetByIDs(_ context.Context, ids []string) ([]domain.ProductCategory, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	var out []domain.ProductCategory
	for _, id := range ids {
		if c, ok := r.S.Categories[id]; ok {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r MemCategories) Delete(_ context.Context, id string) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	delete(r.S.Categories, id)
	return nil
}

func (r MemCategories) List(_ context.Context) ([]*domain.ProductCategory, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	var out []*domain.ProductCategory
	for _, c := range r.S.Categories {
		cp := *c
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *domain.ProductCategory) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (r MemCategories) CountProducts(_ context.Context, id string) (int64, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	var n int64
	for _, p := range r.S.Products {
		if slices.Contains(p.CategoryIDs(), id) {
			n++
		}
	}
	return n, nil
}

// MemHistory 实现 domain.PriceHistoryRepository
type MemHistory struct{ S *MemStore }

func (r MemHistory) Append(_ context.Context, e *domain.PriceHistory) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	cp := *e
	r.S.History = append(r.S.History, &cp)
	return nil
}

func (r MemHistory) ListByProduct(_ context.Context, productID string) ([]*domain.PriceHistory, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	var out []*domain.PriceHistory
	for i := len(r.S.History) - 1; i >= 0; i-- {
		if r.S.History[i].ProductID == productID {
			cp := *r.S.History[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

type RecordedEvent struct {
	Topic string
	Key   string
	Event any
}

// RecordingPublisher 记录发布的事件，Err 非空时返回该错误
type RecordingPublisher struct {
	mu     sync.Mutex
	Events []RecordedEvent
	Err    error
}

func (p *RecordingPublisher) Publish(_ context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, RecordedEvent{Topic: topic, Key: key, Event: event})
	return p.Err
}

// Topics 按发布顺序返回主题
func (p *RecordingPublisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.Events))
	for _, e := range p.Events {
		out = append(out, e.Topic)
	}
	return out
}

// SetStock 直接修改库存
func (s *MemStore) SetStock(id string, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.Products[id]; ok {
		p.StockQuantity = stock
	}
}
