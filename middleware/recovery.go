// Package middleware 提供了 Gin HTTP 服务使用的通用中间件。
package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/geonear/contextx"
	"github.com/wyfcoding/geonear/response"
	"github.com/wyfcoding/geonear/xerrors"
)

// Recovery 捕获处理器 panic，记录所在格点场与堆栈，并以 ErrHandlerPanic 响应。
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			ctx := c.Request.Context()
			logger.ErrorContext(ctx, "panic recovered",
				"panic", rec,
				"panic_type", fmt.Sprintf("%T", rec),
				"field", contextx.GetField(ctx),
				"method", c.Request.Method,
				"route", c.FullPath(),
				"query", c.Request.URL.RawQuery,
				"stack", string(debug.Stack()),
			)
			response.Error(c, xerrors.Derive(xerrors.ErrHandlerPanic, "%s %s", c.Request.Method, c.FullPath()))
			c.Abort()
		}()
		c.Next()
	}
}
