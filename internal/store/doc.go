// Package store содержит персистентное key/value хранилище.
//
// Включает:
//   - store.go   — интерфейс Store (get/set/delete, множества, TTL)
//   - redis.go   — реализация на Redis (go-redis)
//   - memory.go  — in-memory реализация для тестов и работы без Redis
//   - breaker.go — circuit breaker, оборачивающий каждый вызов Store
//
// Все обращения к хранилищу идут через Resilient — обёртку с circuit
// breaker и ограниченным retry с backoff.
package store
