// Package response 提供了统一的 HTTP 响应封装，负责业务错误到 HTTP 状态码的映射。
package response

import (
	"errors"
	"net/http"

	"github.com/wyfcoding/geonear/xerrors"

	"github.com/gin-gonic/gin"
)

// HTTPStatusProvider 定义了能够提供 HTTP 状态码的错误接口。
type HTTPStatusProvider interface {
	HTTPStatus() int // 返回对应的 HTTP 标准状态码
}

// Success 发送一个标准的成功响应。
// 默认：HTTP 200，业务码 0，消息 "success"。
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code": 0,
		"msg":  "success",
		"data": data,
	})
}

// SuccessWithRawData 发送原始数据的成功响应 (不包装 code 和 msg)。
// 用于某些特定系统接口 (如 Health Check)。
func SuccessWithRawData(c *gin.Context, status int, data any) {
	c.JSON(status, data)
}

// Error 发送错误响应。
// 沿错误链识别 xerrors.Error 并使用其业务码与 HTTP 状态码；无法识别时返回 500。
func Error(c *gin.Context, err error) {
	if err == nil {
		Success(c, nil)
		return
	}

	statusCode := http.StatusInternalServerError
	code := statusCode
	msg := err.Error()
	detail := ""

	if e, ok := xerrors.FromError(err); ok {
		statusCode = e.HTTPStatus()
		code = e.Code
		msg = e.Message
		detail = e.Detail
	} else {
		var p HTTPStatusProvider
		if errors.As(err, &p) {
			statusCode = p.HTTPStatus()
			code = statusCode
		}
	}

	c.JSON(statusCode, gin.H{
		"code":   code,
		"msg":    msg,
		"detail": detail,
	})
}

// ErrorWithStatus 发送一个带有指定 HTTP 状态码、消息和详情的错误响应。
func ErrorWithStatus(c *gin.Context, status int, msg string, detail string) {
	c.JSON(status, gin.H{
		"code":   status,
		"msg":    msg,
		"detail": detail,
	})
}
