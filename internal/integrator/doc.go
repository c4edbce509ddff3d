// Package integrator содержит менеджер жизненного цикла компонентов.
//
// Включает:
//   - integrator.go — регистрация компонентов с зависимостями,
//     запуск/остановка в топологическом порядке, health loop
//   - events.go — типизированная шина событий (publish/subscribe)
//
// Компонент — любой тип с методами Start(ctx)/Stop(ctx). Опционально
// компонент реализует HealthChecker (периодический probe) и
// MetricsProvider (метрики для system status).
package integrator
