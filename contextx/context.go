// Package contextx 提供在 context.Context 中注入与提取请求级信息的工具函数。
// 使用私有类型作为 Key，防止跨包的 Key 冲突。
package contextx

import (
	"context"
)

type contextKey int

const (
	RequestIDKey contextKey = iota // 请求唯一标识 Key。
	FieldKey                       // 当前查询的格点场名称 Key。
)

// KeyNames 映射 Key 到日志字段名。
var KeyNames = map[contextKey]string{
	RequestIDKey: "request_id",
	FieldKey:     "field",
}

// WithRequestID 将请求 ID 注入到 Context 中。
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID 从 Context 中提取请求 ID。
func GetRequestID(ctx context.Context) string {
	if val, ok := ctx.Value(RequestIDKey).(string); ok {
		return val
	}
	return ""
}

// WithField 将格点场名称注入到 Context 中。
func WithField(ctx context.Context, field string) context.Context {
	return context.WithValue(ctx, FieldKey, field)
}

// GetField 从 Context 中提取格点场名称。
func GetField(ctx context.Context) string {
	if val, ok := ctx.Value(FieldKey).(string); ok {
		return val
	}
	return ""
}

// Attrs 返回 Context 中已设置的全部键值，供日志使用。
func Attrs(ctx context.Context) []any {
	var out []any
	for _, key := range []contextKey{RequestIDKey, FieldKey} {
		if val, ok := ctx.Value(key).(string); ok && val != "" {
			out = append(out, KeyNames[key], val)
		}
	}
	return out
}
