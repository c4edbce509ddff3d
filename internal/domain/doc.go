// Package domain содержит основные типы данных системы.
//
// Здесь определены:
//   - Task — единица работы со статусным жизненным циклом
//   - WorkflowDefinition / WorkflowInstance — шаблон workflow и его выполнение
//   - WorkerNode / ResourceRequirement — модель ресурсов и узлов
//   - ComponentStatus — статусы управляемых компонентов
//
// Типы domain не зависят от других пакетов проекта (кроме uuid).
package domain
