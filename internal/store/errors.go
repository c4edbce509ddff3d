package store

import "errors"

// Ошибки хранилища.
var (
	// ErrNotFound — ключ не найден.
	ErrNotFound = errors.New("key not found")

	// ErrBreakerOpen — circuit breaker открыт, вызов не выполнялся.
	ErrBreakerOpen = errors.New("circuit breaker is open")

	// ErrStoreUnavailable — хранилище недоступно после всех retry.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrClosed — хранилище закрыто.
	ErrClosed = errors.New("store closed")
)
