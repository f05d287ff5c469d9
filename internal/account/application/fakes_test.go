package application

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/wyfcoding/pkg/pagination"
	"github.com/wyfcoding/storefront/internal/account/domain"
	"gorm.io/gorm"
)

type memBuyers struct {
	mu        sync.Mutex
	rows      map[string]domain.Buyer
	purchased map[string]bool
}

func newMemBuyers() *memBuyers {
	return &memBuyers{rows: map[string]domain.Buyer{}, purchased: map[string]bool{}}
}

func (r *memBuyers) Create(_ context.Context, b *domain.Buyer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.Username == b.Username || row.Email == b.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	r.rows[b.ID] = *b
	return nil
}

func (r *memBuyers) Save(_ context.Context, b *domain.Buyer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[b.ID] = *b
	return nil
}

func (r *memBuyers) find(match func(domain.Buyer) bool) *domain.Buyer {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if match(row) {
			cp := row
			return &cp
		}
	}
	return nil
}

func (r *memBuyers) GetByID(_ context.Context, id string) (*domain.Buyer, error) {
	return r.find(func(b domain.Buyer) bool { return b.ID == id }), nil
}

func (r *memBuyers) GetByUsername(_ context.Context, username string) (*domain.Buyer, error) {
	return r.find(func(b domain.Buyer) bool { return b.Username == username }), nil
}

func (r *memBuyers) GetByEmail(_ context.Context, email string) (*domain.Buyer, error) {
	return r.find(func(b domain.Buyer) bool { return b.Email == email }), nil
}

func (r *memBuyers) List(_ context.Context, page *pagination.Request) ([]*domain.Buyer, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*domain.Buyer
	for _, row := range r.rows {
		cp := row
		all = append(all, &cp)
	}
	slices.SortFunc(all, func(a, b *domain.Buyer) int { return strings.Compare(a.Username, b.Username) })
	start := min(page.Offset(), len(all))
	end := min(start+page.Limit(), len(all))
	return all[start:end], int64(len(all)), nil
}

func (r *memBuyers) HasPurchases(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.purchased[id], nil
}

func (r *memBuyers) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

func (r *memBuyers) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.rows)), nil
}

type memAdmins struct {
	mu   sync.Mutex
	rows map[string]domain.Administrator
}

func newMemAdmins() *memAdmins {
	return &memAdmins{rows: map[string]domain.Administrator{}}
}

func (r *memAdmins) Create(_ context.Context, a *domain.Administrator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	r.rows[a.ID] = *a
	return nil
}

func (r *memAdmins) Save(_ context.Context, a *domain.Administrator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[a.ID] = *a
	return nil
}

func (r *memAdmins) GetByID(_ context.Context, id string) (*domain.Administrator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *memAdmins) GetByUsername(_ context.Context, username string) (*domain.Administrator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.rows {
		if a.Username == username {
			cp := a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memAdmins) List(_ context.Context) ([]*domain.Administrator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Administrator
	for _, a := range r.rows {
		cp := a
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memAdmins) LockIDs(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.rows))
	for id := range r.rows {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *memAdmins) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

func (r *memAdmins) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.rows)), nil
}

// serialTx 串行执行事务回调，等价于行锁持有到事务结束
type serialTx struct{ mu sync.Mutex }

func (t *serialTx) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}

type sentMail struct {
	to, subject, body string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

// lastCode 从最近一封邮件中取出验证码
func (m *recordingMailer) lastCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	body := m.sent[len(m.sent)-1].body
	i := strings.Index(body, "code is ")
	if i < 0 {
		return ""
	}
	return body[i+len("code is ") : i+len("code is ")+6]
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, string, any) error { return nil }
