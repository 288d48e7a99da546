package contextx

import (
	"context"
	"testing"
)

func TestRequestContext(t *testing.T) {
	ctx := context.Background()
	if GetRequestID(ctx) != "" || len(Attrs(ctx)) != 0 {
		t.Fatal("empty context carries values")
	}
	ctx = WithField(WithRequestID(ctx, "42"), "t2m")
	if GetRequestID(ctx) != "42" || GetField(ctx) != "t2m" {
		t.Errorf("got request %q field %q", GetRequestID(ctx), GetField(ctx))
	}
	attrs := Attrs(ctx)
	want := []any{"request_id", "42", "field", "t2m"}
	if len(attrs) != len(want) {
		t.Fatalf("Attrs() = %v, want %v", attrs, want)
	}
	for i := range want {
		if attrs[i] != want[i] {
			t.Errorf("Attrs()[%d] = %v, want %v", i, attrs[i], want[i])
		}
	}
}
