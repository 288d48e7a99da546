// Package storage 定义了格点数据集的来源抽象，支持 MinIO/S3 与本地文件两种驱动。
package storage

import (
	"context"
	"io"
)

// Storage 定义了数据集对象的只读访问接口。
type Storage interface {
	// Download 打开对象的数据流，调用方负责关闭
	Download(ctx context.Context, objectName string) (io.ReadCloser, error)

	// Exists 检查对象是否存在
	Exists(ctx context.Context, objectName string) (bool, error)
}
