package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type match struct {
	Index    int     `json:"index"`
	Distance float64 `json:"distance"`
}

func TestBigCache(t *testing.T) {
	c, err := NewBigCache(time.Minute, 8)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	ctx := context.Background()

	var got match
	if err := c.Get(ctx, "t2m@1:51.5,0", &got); !errors.Is(err, ErrMiss) {
		t.Fatalf("Get(empty) error = %v, want ErrMiss", err)
	}

	want := match{Index: 42, Distance: 1234.5}
	if err := c.Set(ctx, "t2m@1:51.5,0", want, 0); err != nil {
		t.Fatal(err)
	}
	if err := c.Get(ctx, "t2m@1:51.5,0", &got); err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
	if ok, _ := c.Exists(ctx, "t2m@1:51.5,0"); !ok {
		t.Error("Exists() = false after Set")
	}

	if err := c.Delete(ctx, "t2m@1:51.5,0", "absent"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if ok, _ := c.Exists(ctx, "t2m@1:51.5,0"); ok {
		t.Error("Exists() = true after Delete")
	}

	_ = c.Set(ctx, "a", want, 0)
	_ = c.Set(ctx, "b", want, 0)
	if err := c.Reset(); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", c.Len())
	}
}

func TestBigCache_ImplementsCache(t *testing.T) {
	var _ Cache = (*BigCache)(nil)
}
