package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Dirigent/internal/telemetry"
)

// Значения по умолчанию для retry.
const (
	defaultMaxAttempts  = 3
	defaultInitialDelay = 100 * time.Millisecond
	defaultMaxDelay     = 2 * time.Second
)

// Resilient — обёртка Store с circuit breaker и ограниченным retry.
//
// Каждый вызов проходит через breaker. Инфраструктурные ошибки
// повторяются с экспоненциальным backoff (не больше MaxAttempts),
// затем наружу уходит ErrStoreUnavailable. ErrNotFound ошибкой
// хранилища не считается и не повторяется.
type Resilient struct {
	inner   Store
	breaker *Breaker
	logger  *slog.Logger

	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
}

// ResilientConfig — конфигурация Resilient.
type ResilientConfig struct {
	// Breaker — настройки circuit breaker.
	Breaker BreakerConfig

	// MaxAttempts — максимум попыток на один вызов (default: 3).
	MaxAttempts int

	// InitialDelay — начальная задержка backoff (default: 100ms).
	InitialDelay time.Duration

	// MaxDelay — потолок задержки backoff (default: 2s).
	MaxDelay time.Duration

	// Logger — логгер (default: slog.Default()).
	Logger *slog.Logger
}

// NewResilient оборачивает хранилище в breaker + retry.
func NewResilient(inner Store, cfg ResilientConfig) *Resilient {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	initialDelay := cfg.InitialDelay
	if initialDelay <= 0 {
		initialDelay = defaultInitialDelay
	}

	maxDelay := cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Resilient{
		inner:        inner,
		breaker:      NewBreaker(cfg.Breaker),
		logger:       logger,
		maxAttempts:  maxAttempts,
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
	}
}

// BreakerState возвращает текущее состояние breaker.
func (r *Resilient) BreakerState() BreakerState {
	return r.breaker.State()
}

// call выполняет fn через breaker с retry.
func (r *Resilient) call(ctx context.Context, op string, fn func() error) error {
	delay := r.initialDelay

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		// ErrNotFound — валидный ответ хранилища, а не сбой:
		// breaker его не считает, иначе серия промахов по ключам
		// открыла бы breaker на здоровом хранилище
		var opErr error
		err := r.breaker.Call(func() error {
			opErr = fn()
			if errors.Is(opErr, ErrNotFound) {
				return nil
			}
			return opErr
		})
		telemetry.StoreBreakerState.Set(float64(r.breaker.State()))
		if err == nil {
			return opErr
		}
		if errors.Is(err, ErrBreakerOpen) {
			// Breaker открыт — retry бессмысленен
			return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
		}

		lastErr = err
		if attempt == r.maxAttempts {
			break
		}

		r.logger.Warn("store call failed, retrying",
			"op", op,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > r.maxDelay {
			delay = r.maxDelay
		}
	}

	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, lastErr)
}

// Get возвращает значение ключа.
func (r *Resilient) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.call(ctx, "get", func() error {
		var err error
		value, err = r.inner.Get(ctx, key)
		return err
	})
	return value, err
}

// Set записывает значение ключа.
func (r *Resilient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.call(ctx, "set", func() error {
		return r.inner.Set(ctx, key, value, ttl)
	})
}

// Delete удаляет ключ.
func (r *Resilient) Delete(ctx context.Context, key string) error {
	return r.call(ctx, "delete", func() error {
		return r.inner.Delete(ctx, key)
	})
}

// SAdd добавляет элементы в множество.
func (r *Resilient) SAdd(ctx context.Context, key string, members ...string) error {
	return r.call(ctx, "sadd", func() error {
		return r.inner.SAdd(ctx, key, members...)
	})
}

// SRem удаляет элементы из множества.
func (r *Resilient) SRem(ctx context.Context, key string, members ...string) error {
	return r.call(ctx, "srem", func() error {
		return r.inner.SRem(ctx, key, members...)
	})
}

// SMembers возвращает все элементы множества.
func (r *Resilient) SMembers(ctx context.Context, key string) ([]string, error) {
	var members []string
	err := r.call(ctx, "smembers", func() error {
		var err error
		members, err = r.inner.SMembers(ctx, key)
		return err
	})
	return members, err
}

// SIsMember проверяет принадлежность элемента множеству.
func (r *Resilient) SIsMember(ctx context.Context, key, member string) (bool, error) {
	var ok bool
	err := r.call(ctx, "sismember", func() error {
		var err error
		ok, err = r.inner.SIsMember(ctx, key, member)
		return err
	})
	return ok, err
}

// Ping проверяет доступность хранилища.
func (r *Resilient) Ping(ctx context.Context) error {
	return r.call(ctx, "ping", func() error {
		return r.inner.Ping(ctx)
	})
}

// Close закрывает обёрнутое хранилище.
func (r *Resilient) Close() error {
	return r.inner.Close()
}
