package middleware

import (
	"context"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/pkg/limiter"
	pkgmiddleware "github.com/wyfcoding/pkg/middleware"
	"golang.org/x/time/rate"
)

// maxLocalBuckets 进程内桶数上限，超出后整体重置
const maxLocalBuckets = 10000

// ScopedLimiter 为 key 加上接口组前缀，同一 IP 在不同接口组分别计数
type ScopedLimiter struct {
	limiter limiter.Limiter
	scope   string
}

// NewScopedLimiter 包装共享限流器
func NewScopedLimiter(l limiter.Limiter, scope string) *ScopedLimiter {
	return &ScopedLimiter{limiter: l, scope: scope}
}

// Allow 实现 limiter.Limiter
func (s *ScopedLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return s.limiter.Allow(ctx, "throttle:"+s.scope+":"+key)
}

// KeyedLocalLimiter 进程内按 key 分桶的令牌桶，Redis 关闭时替代 limiter.RedisLimiter
// limiter.LocalLimiter 只有一个全局桶，不能按 IP 计数
type KeyedLocalLimiter struct {
	mu      sync.Mutex
	rate    rate.Limit
	burst   int
	buckets map[string]*rate.Limiter
}

// NewKeyedLocalLimiter 每个 key 每秒 r 个令牌，容量 burst
func NewKeyedLocalLimiter(r, burst int) *KeyedLocalLimiter {
	return &KeyedLocalLimiter{
		rate:    rate.Limit(r),
		burst:   burst,
		buckets: make(map[string]*rate.Limiter),
	}
}

// Allow 实现 limiter.Limiter
func (l *KeyedLocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= maxLocalBuckets {
			l.buckets = make(map[string]*rate.Limiter)
		}
		b = rate.NewLimiter(l.rate, l.burst)
		l.buckets[key] = b
	}
	l.mu.Unlock()
	return b.Allow(), nil
}

// Throttle 按客户端 IP 限流，scope 区分接口组；l 为 nil 时不限流
// 限流器出错时放行，超限返回 429
func Throttle(l limiter.Limiter, scope string) gin.HandlerFunc {
	if l == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return pkgmiddleware.RateLimitMiddleware(NewScopedLimiter(l, scope))
}
