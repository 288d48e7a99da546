package health

import (
	"context"
	"errors"
	"fmt"
)

// Pinger 是可探活的数据源，例如 storage.MinIOClient。
type Pinger interface {
	Ping(ctx context.Context) error
}

// MinioChecker 返回对象存储来源的健康检查函数。
func MinioChecker(p Pinger) Checker {
	return func(ctx context.Context) error {
		if p == nil {
			return errors.New("minio client is nil")
		}
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("minio ping failed: %w", err)
		}
		return nil
	}
}
