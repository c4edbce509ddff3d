package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

// flakyStore — Store, который падает первые failCount вызовов Get.
type flakyStore struct {
	*MemoryStore
	failsLeft int
	calls     int
}

func (f *flakyStore) Get(ctx context.Context, key string) (string, error) {
	f.calls++
	if f.failsLeft > 0 {
		f.failsLeft--
		return "", errors.New("connection refused")
	}
	return f.MemoryStore.Get(ctx, key)
}

func TestResilient_RetriesThenSucceeds(t *testing.T) {
	inner := &flakyStore{MemoryStore: NewMemoryStore(), failsLeft: 2}
	ctx := context.Background()
	_ = inner.MemoryStore.Set(ctx, "key", "value", 0)

	r := NewResilient(inner, ResilientConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		Breaker:      BreakerConfig{FailureThreshold: 10},
	})

	value, err := r.Get(ctx, "key")
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if value != "value" {
		t.Errorf("unexpected value: %s", value)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", inner.calls)
	}
}

func TestResilient_SurfacesStoreUnavailable(t *testing.T) {
	inner := &flakyStore{MemoryStore: NewMemoryStore(), failsLeft: 100}

	r := NewResilient(inner, ResilientConfig{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		Breaker:      BreakerConfig{FailureThreshold: 10},
	})

	_, err := r.Get(context.Background(), "key")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestResilient_NotFoundIsNotRetried(t *testing.T) {
	inner := &flakyStore{MemoryStore: NewMemoryStore()}

	r := NewResilient(inner, ResilientConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
	})

	_, err := r.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("ErrNotFound must not be retried, got %d calls", inner.calls)
	}
}

func TestResilient_CacheMissesDoNotTripBreaker(t *testing.T) {
	r := NewResilient(NewMemoryStore(), ResilientConfig{
		MaxAttempts:  1,
		InitialDelay: time.Millisecond,
		Breaker:      BreakerConfig{FailureThreshold: 2},
	})
	ctx := context.Background()

	// Серия промахов по ключам на здоровом хранилище
	for i := 0; i < 5; i++ {
		if _, err := r.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}

	if state := r.BreakerState(); state != BreakerClosed {
		t.Fatalf("cache misses must not trip the breaker, got %s", state)
	}
	if err := r.Set(ctx, "key", "value", 0); err != nil {
		t.Errorf("healthy store must accept writes after misses: %v", err)
	}
}

func TestResilient_BreakerOpensAndFailsFast(t *testing.T) {
	inner := &flakyStore{MemoryStore: NewMemoryStore(), failsLeft: 100}

	r := NewResilient(inner, ResilientConfig{
		MaxAttempts:  1,
		InitialDelay: time.Millisecond,
		Breaker:      BreakerConfig{FailureThreshold: 2, RecoveryTimeout: time.Hour},
	})
	ctx := context.Background()

	_, _ = r.Get(ctx, "key")
	_, _ = r.Get(ctx, "key")

	if r.BreakerState() != BreakerOpen {
		t.Fatalf("expected OPEN breaker, got %s", r.BreakerState())
	}

	callsBefore := inner.calls
	_, err := r.Get(ctx, "key")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable while open, got %v", err)
	}
	if inner.calls != callsBefore {
		t.Error("inner store must not be called while breaker is open")
	}
}
