// Package scheduler содержит планировщик workflows.
//
// Включает:
//   - scheduler.go — регистрация definitions, запуск instances,
//     тик планировщика, инкрементальная разблокировка DAG
//   - state.go     — состояние одного instance в памяти
//   - assign.go    — очередь назначения tasks на узлы, admission control
//   - nodes.go     — пул worker-узлов, heartbeats, сэмплер локального узла
//   - metrics.go   — скользящие окна и агрегированные метрики
//   - cron.go      — периодический запуск workflows по cron-выражениям
//
// Всё состояние планировщика защищено одним мьютексом: узлы и instances
// мутируются только под ним, что сохраняет инвариант admission control
// при настоящем параллелизме горутин.
package scheduler
