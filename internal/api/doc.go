// Package api содержит HTTP API оркестратора.
//
// Включает:
//   - handler.go          — главный Handler с зависимостями
//   - routes.go           — регистрация маршрутов
//   - task_handler.go     — операции над tasks
//   - workflow_handler.go — операции над workflows и instances
//   - node_handler.go     — управление worker-узлами
//   - system_handler.go   — статус системы
//   - dto.go              — структуры запросов/ответов
//   - response.go         — хелперы JSON ответов
//   - middleware.go       — logging и recovery middleware
package api
