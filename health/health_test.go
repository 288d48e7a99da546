package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type names []string

func (n names) Names() []string { return n }

func TestService_Check(t *testing.T) {
	s := NewService("geonear", time.Second)
	s.Register("minio", MinioChecker(fakePinger{}))
	s.Register("fields", FieldsChecker(names{"t2m", "rh"}, []string{"t2m"}))

	r := s.Check(context.Background())
	if !r.Healthy() || r.Checks["minio"] != StatusUp || r.Checks["fields"] != StatusUp {
		t.Fatalf("report = %+v", r)
	}

	s.Register("minio", MinioChecker(fakePinger{err: errors.New("connection refused")}))
	r = s.Check(context.Background())
	if r.Healthy() {
		t.Fatal("expected unhealthy report")
	}
	if r.Checks["minio"] != "minio ping failed: connection refused" {
		t.Errorf("minio check = %q", r.Checks["minio"])
	}
	if got := s.Names(); len(got) != 2 || got[0] != "fields" {
		t.Errorf("Names = %v", got)
	}
}

func TestService_Timeout(t *testing.T) {
	s := NewService("geonear", 10*time.Millisecond)
	s.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	r := s.Check(context.Background())
	if r.Healthy() || r.Checks["slow"] != context.DeadlineExceeded.Error() {
		t.Errorf("report = %+v", r)
	}
}

func TestFieldsChecker_Missing(t *testing.T) {
	err := FieldsChecker(names{"t2m"}, []string{"t2m", "rh", "wind"})(context.Background())
	if err == nil || err.Error() != "fields not loaded: [rh wind]" {
		t.Errorf("error = %v", err)
	}
}

func TestHTTPChecker(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	defer ok.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer bad.Close()

	if err := HTTPChecker(ok.URL)(context.Background()); err != nil {
		t.Errorf("ok server: %v", err)
	}
	if err := HTTPChecker(bad.URL)(context.Background()); err == nil {
		t.Error("expected error for 503")
	}
	if err := HTTPChecker("")(context.Background()); err == nil {
		t.Error("expected error for empty url")
	}
	if err := MinioChecker(nil)(context.Background()); err == nil {
		t.Error("expected error for nil pinger")
	}
}
