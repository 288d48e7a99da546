package storage

import (
	"context"
	"errors"
	"io"

	"github.com/wyfcoding/geonear/breaker"
	"github.com/wyfcoding/geonear/xerrors"
)

// Guarded 在熔断器保护下访问底层数据源。对象不存在与调用方取消不计为失败。
type Guarded struct {
	Storage
	b *breaker.Breaker
}

// WithBreaker 用熔断器包装 src，b 为 nil 时原样返回。
func WithBreaker(src Storage, b *breaker.Breaker) Storage {
	if b == nil {
		return src
	}
	return &Guarded{Storage: src, b: b}
}

// IsSourceHealthy 判断一次数据源调用的错误是否应计入熔断统计。
func IsSourceHealthy(err error) bool {
	if err == nil || errors.Is(err, xerrors.ErrObjectNotFound) || errors.Is(err, context.Canceled) {
		return true
	}
	e, ok := xerrors.FromError(err)
	return ok && e.Type == xerrors.ErrInvalidArg
}

// Download 实现 Storage。
func (g *Guarded) Download(ctx context.Context, objectName string) (io.ReadCloser, error) {
	return breaker.Execute(g.b, func() (io.ReadCloser, error) {
		return g.Storage.Download(ctx, objectName)
	})
}

// Exists 实现 Storage。
func (g *Guarded) Exists(ctx context.Context, objectName string) (bool, error) {
	return breaker.Execute(g.b, func() (bool, error) {
		return g.Storage.Exists(ctx, objectName)
	})
}
