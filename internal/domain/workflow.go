package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskTemplate — шаблон task внутри WorkflowDefinition.
//
// При старте instance из шаблона создаётся конкретный Task.
type TaskTemplate struct {
	// Name — имя шага, уникальное внутри definition.
	// Используется как ключ в Dependencies и TaskInstances.
	Name string `json:"name"`

	// Type — тип task (определяет executor).
	Type string `json:"type"`

	// Priority — приоритет создаваемых tasks.
	Priority TaskPriority `json:"priority"`

	// Config — конфигурация, передаваемая executor'у.
	Config map[string]any `json:"config,omitempty"`

	// MaxRetries — лимит повторов для создаваемых tasks.
	MaxRetries int `json:"max_retries"`

	// Requirements — ресурсы, необходимые task'у.
	// Task с требованиями проходит через очередь назначения на узлы.
	Requirements []ResourceRequirement `json:"requirements,omitempty"`
}

// WorkflowDefinition — многоразовый шаблон workflow.
//
// Регистрируется один раз, используется многими instances.
type WorkflowDefinition struct {
	// ID — идентификатор definition.
	ID string `json:"id"`

	// Name — человекочитаемое имя.
	Name string `json:"name"`

	// Tasks — упорядоченный список шаблонов tasks.
	Tasks []TaskTemplate `json:"tasks"`

	// Dependencies — граф зависимостей: имя шага → имена шагов,
	// которые должны завершиться раньше.
	Dependencies map[string][]string `json:"dependencies,omitempty"`

	// Strategy — стратегия создания tasks.
	Strategy SchedulingStrategy `json:"strategy"`

	// MaxParallelTasks — максимум одновременно выполняющихся tasks instance.
	// 0 — без ограничения.
	MaxParallelTasks int `json:"max_parallel_tasks"`
}

// Template возвращает шаблон task по имени.
func (d *WorkflowDefinition) Template(name string) *TaskTemplate {
	for i := range d.Tasks {
		if d.Tasks[i].Name == name {
			return &d.Tasks[i]
		}
	}
	return nil
}

// WorkflowInstance — одно выполнение WorkflowDefinition.
type WorkflowInstance struct {
	// ID — уникальный идентификатор instance.
	ID uuid.UUID `json:"id"`

	// WorkflowID — ссылка на definition.
	WorkflowID string `json:"workflow_id"`

	// Status — текущий статус instance.
	Status InstanceStatus `json:"status"`

	// TaskInstances — созданные tasks: имя шага → ID task.
	// Шаг попадает сюда только после того, как все его зависимости COMPLETED.
	TaskInstances map[string]uuid.UUID `json:"task_instances"`

	// Context — контекст выполнения, передаётся в Config каждого task.
	Context map[string]any `json:"context,omitempty"`

	// Error — текст ошибки при неудаче.
	Error string `json:"error,omitempty"`

	// StartedAt — время допуска instance планировщиком.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания instance.
	CreatedAt time.Time `json:"created_at"`
}

// MarkRunning переводит instance в статус RUNNING.
func (i *WorkflowInstance) MarkRunning() {
	now := time.Now()
	i.Status = InstanceStatusRunning
	i.StartedAt = &now
}

// MarkCompleted переводит instance в статус COMPLETED.
func (i *WorkflowInstance) MarkCompleted() {
	now := time.Now()
	i.Status = InstanceStatusCompleted
	i.FinishedAt = &now
}

// MarkFailed переводит instance в статус FAILED с ошибкой.
func (i *WorkflowInstance) MarkFailed(errMsg string) {
	now := time.Now()
	i.Status = InstanceStatusFailed
	i.FinishedAt = &now
	i.Error = errMsg
}

// MarkCancelled переводит instance в статус CANCELLED.
func (i *WorkflowInstance) MarkCancelled() {
	now := time.Now()
	i.Status = InstanceStatusCancelled
	i.FinishedAt = &now
}

// IsFinished возвращает true, если instance завершён.
func (i *WorkflowInstance) IsFinished() bool {
	return i.Status.IsTerminal()
}

// Duration возвращает продолжительность выполнения instance.
func (i *WorkflowInstance) Duration() time.Duration {
	if i.StartedAt == nil || i.FinishedAt == nil {
		return 0
	}
	return i.FinishedAt.Sub(*i.StartedAt)
}
