// Package limiter 提供基于令牌桶算法的请求限流器。
package limiter

import (
	"context"
	"sync"
	"time"

	"github.com/wyfcoding/geonear/config"
	"golang.org/x/time/rate" // 导入基于令牌桶算法的限流库。
)

// Limiter 接口定义了限流器的通用行为。
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error) // 检查是否允许请求通过。
}

// LocalLimiter 是一个基于令牌桶算法的本地全局限流器，忽略 key。
type LocalLimiter struct {
	limiter *rate.Limiter
}

// NewLocalLimiter 创建并返回一个新的 LocalLimiter 实例。
// r: 每秒生成的令牌数。b: 令牌桶容量，即允许的瞬时突发请求数。
func NewLocalLimiter(r rate.Limit, b int) *LocalLimiter {
	return &LocalLimiter{
		limiter: rate.NewLimiter(r, b),
	}
}

// Allow 尝试从令牌桶中获取一个令牌。
func (l *LocalLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return l.limiter.Allow(), nil
}

// Update 在运行时调整速率与突发容量。
func (l *LocalLimiter) Update(r rate.Limit, b int) {
	l.limiter.SetLimit(r)
	l.limiter.SetBurst(b)
}

// KeyedLimiter 为每个 key（通常是客户端 IP）维护独立的令牌桶。
// 超过 idle 未访问的桶会在后续调用时被回收。
type KeyedLimiter struct {
	mu      sync.Mutex
	r       rate.Limit
	b       int
	idle    time.Duration
	buckets map[string]*bucket
	swept   time.Time
}

type bucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

// NewKeyedLimiter 创建按 key 限流的限流器。
func NewKeyedLimiter(r rate.Limit, b int, idle time.Duration) *KeyedLimiter {
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &KeyedLimiter{
		r:       r,
		b:       b,
		idle:    idle,
		buckets: make(map[string]*bucket),
		swept:   time.Now(),
	}
}

// Allow 从 key 对应的令牌桶中获取一个令牌。
func (l *KeyedLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now()

	l.mu.Lock()
	if now.Sub(l.swept) > l.idle {
		for k, bk := range l.buckets {
			if now.Sub(bk.seen) > l.idle {
				delete(l.buckets, k)
			}
		}
		l.swept = now
	}
	bk, ok := l.buckets[key]
	if !ok {
		bk = &bucket{limiter: rate.NewLimiter(l.r, l.b)}
		l.buckets[key] = bk
	}
	bk.seen = now
	l.mu.Unlock()

	return bk.limiter.AllowN(now, 1), nil
}

// Update 调整速率，已有的桶一并生效。
func (l *KeyedLimiter) Update(r rate.Limit, b int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.r, l.b = r, b
	for _, bk := range l.buckets {
		bk.limiter.SetLimit(r)
		bk.limiter.SetBurst(b)
	}
}

// Len 返回当前维护的桶数量。
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// FromConfig 按配置构造按客户端限流的限流器，未启用时返回 nil。
func FromConfig(cfg config.RateLimitConfig) *KeyedLimiter {
	if !cfg.Enabled {
		return nil
	}
	return NewKeyedLimiter(rate.Limit(cfg.RPS), cfg.Burst, 0)
}
