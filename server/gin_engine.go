package server

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/geonear/config"
	"github.com/wyfcoding/geonear/limiter"
	"github.com/wyfcoding/geonear/metrics"
	"github.com/wyfcoding/geonear/middleware"
)

// 不记录访问日志、不产生 Span、不计入 HTTP 指标的探活路径。
const healthPath = "/healthz"

// NewDefaultGinEngine 创建一个不带默认中间件的 Gin 引擎，中间件顺序由调用方决定。
func NewDefaultGinEngine(middlewares ...gin.HandlerFunc) *gin.Engine {
	engine := gin.New()
	engine.Use(middlewares...)
	return engine
}

// EngineOptions 描述标准中间件链的依赖。
type EngineOptions struct {
	Config  config.Config
	Metrics *metrics.Metrics
	Limiter limiter.Limiter
	Logger  *slog.Logger
}

// NewEngine 组装标准中间件链：恢复、请求 ID、追踪、访问日志、指标、限流、请求体限制、超时、错误输出。
func NewEngine(opts EngineOptions) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	quiet := []string{healthPath, opts.Config.Metrics.Path}

	mws := []gin.HandlerFunc{
		middleware.Recovery(logger),
		middleware.RequestID(),
	}
	if opts.Config.Tracing.Enabled {
		mws = append(mws, middleware.TracingMiddleware(opts.Config.Server.Name, quiet...))
	}
	mws = append(mws,
		middleware.Logger(logger, quiet...),
		middleware.HTTPMetricsMiddlewareWithOptions(opts.Metrics, middleware.MetricsOptions{SkipPaths: quiet}),
	)
	if opts.Limiter != nil {
		mws = append(mws, middleware.RateLimitMiddleware(opts.Limiter))
	}
	mws = append(mws,
		middleware.MaxBodyBytes(opts.Config.Server.HTTP.MaxBodyBytes),
		middleware.TimeoutMiddleware(opts.Config.Server.HTTP.RequestTimeout, logger),
		middleware.HTTPErrorHandler(),
	)
	return NewDefaultGinEngine(mws...)
}
