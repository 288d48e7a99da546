// Package server 提供 HTTP 服务的生命周期封装与最近格点查询接口。
package server

import "context"

// Server 定义服务器生命周期契约。
type Server interface {
	// Start 阻塞运行，直到 ctx 取消或监听失败。
	Start(ctx context.Context) error
	// Stop 优雅关闭，等待进行中的请求完成。
	Stop(ctx context.Context) error
}
