package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisStore — реализация Store на Redis.
//
// TTL и операции над множествами транслируются в нативные команды
// Redis (SET EX, SADD, SREM, SMEMBERS, SISMEMBER).
type RedisStore struct {
	rdb *goredis.Client
}

// RedisConfig — конфигурация подключения к Redis.
type RedisConfig struct {
	// Addr — адрес сервера (default: "localhost:6379").
	Addr string

	// Password — пароль (опционально).
	Password string

	// DB — номер базы.
	DB int

	// DialTimeout — таймаут подключения (default: 5s).
	DialTimeout time.Duration
}

// NewRedisStore создаёт хранилище на Redis и проверяет соединение.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{rdb: rdb}, nil
}

// Get возвращает значение ключа.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return value, err
}

// Set записывает значение ключа. ttl <= 0 — без срока жизни.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

// Delete удаляет ключ.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

// SAdd добавляет элементы в множество.
func (s *RedisStore) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return s.rdb.SAdd(ctx, key, args...).Err()
}

// SRem удаляет элементы из множества.
func (s *RedisStore) SRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return s.rdb.SRem(ctx, key, args...).Err()
}

// SMembers возвращает все элементы множества.
func (s *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	return s.rdb.SMembers(ctx, key).Result()
}

// SIsMember проверяет принадлежность элемента множеству.
func (s *RedisStore) SIsMember(ctx context.Context, key, member string) (bool, error) {
	return s.rdb.SIsMember(ctx, key, member).Result()
}

// Ping проверяет доступность Redis.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close закрывает соединение.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
