package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// TracingMiddleware 包装 otelgin.Middleware，为每个请求创建服务端 Span。
// skipPaths 中的路径不产生 Span。
func TracingMiddleware(serviceName string, skipPaths ...string) gin.HandlerFunc {
	if len(skipPaths) == 0 {
		return otelgin.Middleware(serviceName)
	}
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}
	return otelgin.Middleware(serviceName, otelgin.WithFilter(func(r *http.Request) bool {
		_, ok := skip[r.URL.Path]
		return !ok
	}))
}
