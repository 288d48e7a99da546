package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/geonear/response"
)

// MaxBodyBytes 限制批量检索请求体的大小，limit <= 0 时不生效。
// 先按 Content-Length 快速拒绝，再用 MaxBytesReader 约束分块上传；GET/HEAD/DELETE 不携带请求体，直接放行。
// 流式超限由处理器读取请求体时得到 *http.MaxBytesError，并以 413 响应。
func MaxBodyBytes(limit int64) gin.HandlerFunc {
	detail := fmt.Sprintf("request body exceeds %d bytes, split the batch into smaller requests", limit)
	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodDelete:
			c.Next()
			return
		}

		if c.Request.ContentLength > limit {
			response.ErrorWithStatus(c, http.StatusRequestEntityTooLarge, "batch too large", detail)
			c.Abort()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
