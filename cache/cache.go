// Package cache 提供了查询结果缓存的抽象与基于 bigcache 的本地实现。
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss 表示缓存未命中。
var ErrMiss = errors.New("cache miss")

// Cache 定义缓存接口。
type Cache interface {
	Get(ctx context.Context, key string, value any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}
