// Package taskmgr содержит менеджер tasks.
//
// Включает:
//   - manager.go  — CRUD tasks, действия (start/pause/resume/cancel/retry),
//     batch-операции, worker pool
//   - queue.go    — очередь с приоритетным смещением (HIGH → в голову)
//   - executor.go — интерфейс Executor и реестр по типу task
//   - stats.go    — статистика с кэшированием
//
// Конкурентность ограничена счётным семафором: настроенный MaxConcurrent
// не превышается даже кратковременно.
package taskmgr
