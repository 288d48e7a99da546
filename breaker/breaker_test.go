package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/wyfcoding/geonear/config"
	"github.com/wyfcoding/geonear/metrics"
	"github.com/wyfcoding/geonear/xerrors"
)

var errBackend = errors.New("backend down")

func tripConfig() config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{
		Enabled:      true,
		Timeout:      time.Minute,
		MinRequests:  2,
		FailureRatio: 0.5,
	}
}

func TestBreaker_Disabled(t *testing.T) {
	b := NewBreaker(Settings{Name: "off"}, nil)
	for range 10 {
		if _, err := Execute(b, func() (int, error) { return 0, errBackend }); !errors.Is(err, errBackend) {
			t.Fatalf("error = %v, want backend error", err)
		}
	}
	if b.State() != gobreaker.StateClosed {
		t.Errorf("State = %v, want closed", b.State())
	}
}

func TestBreaker_TripsOpen(t *testing.T) {
	m := metrics.NewMetrics("test")
	b := NewBreaker(Settings{Name: "minio", Config: tripConfig()}, m)

	got, err := Execute(b, func() (string, error) { return "ok", nil })
	if err != nil || got != "ok" {
		t.Fatalf("Execute = %q, %v", got, err)
	}
	for range 2 {
		if _, err := Execute(b, func() (string, error) { return "", errBackend }); !errors.Is(err, errBackend) {
			t.Fatalf("error = %v, want backend error", err)
		}
	}
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("State = %v, want open", b.State())
	}

	called := false
	_, err = Execute(b, func() (string, error) {
		called = true
		return "", nil
	})
	if called {
		t.Error("function ran while breaker open")
	}
	if !errors.Is(err, xerrors.ErrSourceUnavailable) {
		t.Errorf("error = %v, want ErrSourceUnavailable", err)
	}

	n, err := testutil.GatherAndCount(m.Registry(), "circuit_breaker_state")
	if err != nil || n != 1 {
		t.Errorf("circuit_breaker_state series = %d, %v", n, err)
	}
}

func TestBreaker_IsSuccessful(t *testing.T) {
	b := NewBreaker(Settings{
		Name:         "notfound",
		Config:       tripConfig(),
		IsSuccessful: func(err error) bool { return err == nil || errors.Is(err, xerrors.ErrObjectNotFound) },
	}, nil)

	for range 5 {
		_, err := Execute(b, func() (int, error) {
			return 0, xerrors.Derive(xerrors.ErrObjectNotFound, "missing.csv")
		})
		if !errors.Is(err, xerrors.ErrObjectNotFound) {
			t.Fatalf("error = %v, want ErrObjectNotFound", err)
		}
	}
	if b.State() != gobreaker.StateClosed {
		t.Errorf("State = %v, want closed", b.State())
	}
}
