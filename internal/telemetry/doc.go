// Package telemetry содержит утилиты для логирования и метрик.
//
// Включает:
//   - logging.go — настройка log/slog (LOG_LEVEL, LOG_FORMAT), хелперы
//     для контекстных логгеров
//   - metrics.go — Prometheus-метрики планировщика и task manager'а
//   - sampler.go — сэмплер ресурсов процесса (CPU/память) для
//     обновления нагрузки локального узла
package telemetry
