// Package retry 提供指数退避重试，用于从远程来源加载数据集。
package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// Config 封装了重试策略参数。MaxRetries < 0 表示不重试。
type Config struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	Jitter         float64
	MaxRetries     int
}

// DefaultRetryConfig 返回默认重试配置。
func DefaultRetryConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.1,
	}
}

// Always 对任何错误都重试。
func Always(error) bool { return true }

// Do 执行 fn，失败且 shouldRetry 返回 true 时按退避策略重试，返回最后一次的结果。
// ctx 取消时立即返回。
func Do[T any](ctx context.Context, cfg Config, shouldRetry func(error) bool, fn func(context.Context) (T, error)) (T, error) {
	if cfg.MaxRetries < 0 {
		return fn(ctx)
	}

	var (
		out     T
		lastErr error
	)
	backoff := cfg.InitialBackoff

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		out, lastErr = fn(ctx)
		if lastErr == nil {
			return out, nil
		}
		if attempt == cfg.MaxRetries || !shouldRetry(lastErr) {
			if attempt == 0 {
				return out, lastErr
			}
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}

		next := float64(backoff) * cfg.Multiplier
		if cfg.Jitter > 0 {
			next += (rand.Float64()*2 - 1) * cfg.Jitter * next
		}
		backoff = min(time.Duration(next), cfg.MaxBackoff)
	}

	return out, fmt.Errorf("retry failed after %d attempts: %w", cfg.MaxRetries+1, lastErr)
}

// Retry 是无返回值版本的 Do。
func Retry(ctx context.Context, cfg Config, shouldRetry func(error) bool, fn func(context.Context) error) error {
	_, err := Do(ctx, cfg, shouldRetry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
