package store

import (
	"context"
	"time"
)

// Store — интерфейс персистентного key/value хранилища.
//
// Семантика:
//   - Get возвращает ErrNotFound для отсутствующего ключа
//   - Set с ttl > 0 устанавливает срок жизни ключа
//   - SAdd/SRem/SMembers/SIsMember — операции над множествами
type Store interface {
	// Get возвращает значение ключа.
	Get(ctx context.Context, key string) (string, error)

	// Set записывает значение ключа. ttl <= 0 — без срока жизни.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete удаляет ключ. Удаление отсутствующего ключа — не ошибка.
	Delete(ctx context.Context, key string) error

	// SAdd добавляет элементы в множество.
	SAdd(ctx context.Context, key string, members ...string) error

	// SRem удаляет элементы из множества.
	SRem(ctx context.Context, key string, members ...string) error

	// SMembers возвращает все элементы множества.
	SMembers(ctx context.Context, key string) ([]string, error)

	// SIsMember проверяет принадлежность элемента множеству.
	SIsMember(ctx context.Context, key, member string) (bool, error)

	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error

	// Close закрывает соединение.
	Close() error
}
