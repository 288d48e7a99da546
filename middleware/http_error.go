package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/geonear/contextx"
	"github.com/wyfcoding/geonear/response"
	"github.com/wyfcoding/geonear/xerrors"
)

// HTTPErrorHandler 将处理器通过 c.Error 登记的最后一个错误统一输出，已写出响应时不做处理。
// 检索因请求期限中止时输出 ErrLookupTimeout。
func HTTPErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		if errors.Is(err, context.DeadlineExceeded) {
			err = xerrors.Derive(xerrors.ErrLookupTimeout, "field %q: %v", contextx.GetField(c.Request.Context()), err)
		}
		response.Error(c, err)
	}
}
