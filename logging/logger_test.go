package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wyfcoding/geonear/contextx"
	"go.opentelemetry.io/otel/trace"
)

func TestNewFromConfig_InjectsTraceContext(t *testing.T) {
	var buf bytes.Buffer
	l := NewFromConfig(Config{Service: "geonear", Module: "test", Level: "debug", Output: &buf})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))
	ctx = contextx.WithRequestID(ctx, "1887")

	l.InfoContext(ctx, "index built", "points", 42)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if rec["trace_id"] != traceID.String() || rec["span_id"] != spanID.String() {
		t.Errorf("trace context not injected: %v", rec)
	}
	if rec["request_id"] != "1887" {
		t.Errorf("request id not injected: %v", rec)
	}
	if rec["service"] != "geonear" || rec["module"] != "test" {
		t.Errorf("service/module attributes missing: %v", rec)
	}
	if _, ok := rec["timestamp"]; !ok {
		t.Errorf("time key not renamed to timestamp: %v", rec)
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewFromConfig(Config{Service: "geonear", Level: "info", Output: &buf, Format: "text"})

	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug record written at info level: %q", buf.String())
	}

	SetLevel("debug")
	defer SetLevel("info")
	l.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("debug record missing after SetLevel: %q", buf.String())
	}
}

func TestNewFromConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geonear.log")
	var buf bytes.Buffer
	l := NewFromConfig(Config{Service: "geonear", Level: "info", Output: &buf, File: path, MaxSize: 1})
	l.Named("registry").Info("field registered", "name", "t2m")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"component":"registry"`) {
		t.Errorf("file record missing component: %s", data)
	}
	if !strings.Contains(buf.String(), "field registered") {
		t.Errorf("stdout record missing: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("WARN").String() != "WARN" || ParseLevel("bogus").String() != "INFO" {
		t.Errorf("unexpected level parsing")
	}
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("disk full") }

func TestTeeHandler_FileFailureKeepsConsole(t *testing.T) {
	var console bytes.Buffer
	h := newTeeHandler(
		slog.NewJSONHandler(&console, nil),
		failingHandler{slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn})},
	)
	logger := slog.New(h).With("field", "t2m")

	logger.Info("index built")
	if !strings.Contains(console.String(), `"field":"t2m"`) {
		t.Errorf("console record = %s", console.String())
	}
	if err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelError, "reload failed", 0)); err == nil {
		t.Error("file failure not reported")
	}
	if !h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("tee disabled although console accepts info")
	}
}
