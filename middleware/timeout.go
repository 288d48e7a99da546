package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/geonear/contextx"
	"github.com/wyfcoding/geonear/response"
	"github.com/wyfcoding/geonear/xerrors"
)

// TimeoutMiddleware 为请求设置检索期限。
// registry 的并行检索在分片之间响应取消；期限已过且处理器尚未写出响应时返回 ErrLookupTimeout (504)。
func TimeoutMiddleware(duration time.Duration, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if duration <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), duration)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if !errors.Is(ctx.Err(), context.DeadlineExceeded) || c.Writer.Written() {
			return
		}
		// 处理器可能已替换请求 context 并写入格点场名称
		reqCtx := c.Request.Context()
		field := contextx.GetField(reqCtx)
		if logger != nil {
			logger.WarnContext(reqCtx, "lookup deadline exceeded",
				"field", field,
				"timeout", duration,
				"path", c.FullPath(),
			)
		}
		response.Error(c, xerrors.Derive(xerrors.ErrLookupTimeout, "field %q exceeded %s", field, duration))
		c.Abort()
	}
}
