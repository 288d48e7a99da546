package logging

import (
	"context"
	"errors"
	"log/slog"
)

// teeHandler 把记录同时写到控制台与切割文件。
// 两个目标共享同一 LevelVar；文件写入失败不阻断控制台输出，错误合并后返回。
type teeHandler struct {
	console slog.Handler
	file    slog.Handler
}

func newTeeHandler(console, file slog.Handler) slog.Handler {
	return &teeHandler{console: console, file: file}
}

func (h *teeHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.console.Enabled(ctx, lvl) || h.file.Enabled(ctx, lvl)
}

func (h *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errConsole, errFile error
	if h.console.Enabled(ctx, record.Level) {
		errConsole = h.console.Handle(ctx, record.Clone())
	}
	if h.file.Enabled(ctx, record.Level) {
		errFile = h.file.Handle(ctx, record)
	}
	return errors.Join(errConsole, errFile)
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &teeHandler{console: h.console.WithAttrs(attrs), file: h.file.WithAttrs(attrs)}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{console: h.console.WithGroup(name), file: h.file.WithGroup(name)}
}
