// Package verification 注册验证码存储的内存与 Redis 实现
package verification

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/storefront/internal/account/domain"
)

// 生成验证码的最大重试次数
const maxCodeAttempts = 10

var errNoFreeCode = errors.New("verification: could not allocate a unique code")

type entry struct {
	pending   domain.PendingRegistration
	expiresAt time.Time
}

// MemoryStore 进程内验证码存储，带 TTL 与定期清理
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	byEmail map[string]string
	ttl     time.Duration
	now     func() time.Time
	newCode func() (string, error)

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryStore 创建内存存储，sweepInterval > 0 时启动后台清理
func NewMemoryStore(ttl, sweepInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]entry),
		byEmail: make(map[string]string),
		ttl:     ttl,
		now:     time.Now,
		newCode: domain.NewVerificationCode,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if sweepInterval > 0 {
		go s.sweepLoop(sweepInterval)
	} else {
		close(s.done)
	}
	return s
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logging.Debug(context.Background(), "expired verification codes evicted", "count", n)
			}
		}
	}
}

// Create 保存待注册信息并返回新验证码
func (s *MemoryStore) Create(_ context.Context, pending domain.PendingRegistration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if old, ok := s.byEmail[pending.Email]; ok {
		delete(s.entries, old)
	}
	for range maxCodeAttempts {
		code, err := s.newCode()
		if err != nil {
			return "", err
		}
		if e, taken := s.entries[code]; taken {
			if now.Before(e.expiresAt) {
				continue
			}
			// 过期槽位可能属于其他邮箱，先解除其索引
			s.remove(code, e)
		}
		s.entries[code] = entry{pending: pending, expiresAt: now.Add(s.ttl)}
		s.byEmail[pending.Email] = code
		return code, nil
	}
	return "", errNoFreeCode
}

// Consume 取出并删除验证码对应的信息，只能成功一次
func (s *MemoryStore) Consume(_ context.Context, token string) (*domain.PendingRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[token]
	if !ok {
		return nil, nil
	}
	s.remove(token, e)
	if !s.now().Before(e.expiresAt) {
		return nil, nil
	}
	p := e.pending
	return &p, nil
}

// FindByEmail 查找邮箱对应且未过期的待注册信息
func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*domain.PendingRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.byEmail[email]
	if !ok {
		return nil, nil
	}
	e := s.entries[token]
	if !s.now().Before(e.expiresAt) {
		s.remove(token, e)
		return nil, nil
	}
	p := e.pending
	return &p, nil
}

// Sweep 清理过期条目，返回清理数量
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for token, e := range s.entries {
		if !now.Before(e.expiresAt) {
			s.remove(token, e)
			n++
		}
	}
	return n
}

// Len 当前条目数，含尚未清理的过期条目
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// remove 调用方需持有锁
func (s *MemoryStore) remove(token string, e entry) {
	delete(s.entries, token)
	if s.byEmail[e.pending.Email] == token {
		delete(s.byEmail, e.pending.Email)
	}
}

// Close 停止后台清理
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() { close(s.stop) })
	<-s.done
	return nil
}
