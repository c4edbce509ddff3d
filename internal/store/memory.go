package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore — in-memory реализация Store.
//
// Используется в тестах и при запуске без Redis. TTL реализован
// лениво: просроченные ключи удаляются при обращении.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]memoryEntry
	sets   map[string]map[string]bool
	closed bool
}

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero — без срока жизни
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewMemoryStore создаёт пустое in-memory хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]memoryEntry),
		sets:   make(map[string]map[string]bool),
	}
}

// Get возвращает значение ключа.
func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrClosed
	}

	entry, ok := s.values[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if entry.expired(time.Now()) {
		delete(s.values, key)
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return entry.value, nil
}

// Set записывает значение ключа.
func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	s.values[key] = entry
	return nil
}

// Delete удаляет ключ.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	delete(s.values, key)
	delete(s.sets, key)
	return nil
}

// SAdd добавляет элементы в множество.
func (s *MemoryStore) SAdd(_ context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]bool)
		s.sets[key] = set
	}
	for _, m := range members {
		set[m] = true
	}
	return nil
}

// SRem удаляет элементы из множества.
func (s *MemoryStore) SRem(_ context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	set, ok := s.sets[key]
	if !ok {
		return nil
	}
	for _, m := range members {
		delete(set, m)
	}
	return nil
}

// SMembers возвращает все элементы множества.
func (s *MemoryStore) SMembers(_ context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	set := s.sets[key]
	members := make([]string, 0, len(set))
	for m := range set {
		members = append(members, m)
	}
	return members, nil
}

// SIsMember проверяет принадлежность элемента множеству.
func (s *MemoryStore) SIsMember(_ context.Context, key, member string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, ErrClosed
	}

	return s.sets[key][member], nil
}

// Ping проверяет доступность хранилища.
func (s *MemoryStore) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close закрывает хранилище.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
