package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/geonear/contextx"
	"github.com/wyfcoding/geonear/idgen"
)

const (
	// HeaderXRequestID 请求 ID 头，响应中原样回写。
	HeaderXRequestID = "X-Request-ID"

	maxRequestIDLen = 64
)

// RequestID 沿用客户端传入的请求 ID，缺失或不合法时用 idgen 生成。
// ID 写入 contextx，由日志 Handler 附加到该请求的每条日志上。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderXRequestID)
		if !validRequestID(requestID) {
			requestID = idgen.GenIDString()
		}

		c.Request = c.Request.WithContext(contextx.WithRequestID(c.Request.Context(), requestID))
		c.Header(HeaderXRequestID, requestID)
		c.Next()
	}
}

// validRequestID 只接受不超过 64 字节的可打印 ASCII，防止日志注入。
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
