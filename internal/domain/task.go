package domain

import (
	"time"

	"github.com/google/uuid"
)

// Task — отдельная единица работы.
//
// Task создаётся либо напрямую через API, либо WorkflowScheduler'ом,
// когда зависимости шага внутри instance удовлетворены.
//
// Task выполняется worker pool'ом TaskManager'а через зарегистрированный
// Executor соответствующего типа.
type Task struct {
	// ID — уникальный идентификатор task.
	ID uuid.UUID `json:"id"`

	// Name — человекочитаемое имя task.
	Name string `json:"name"`

	// Type — тип task, определяет executor: "proxy_crawl", "proxy_validate", ...
	Type string `json:"type"`

	// Status — текущий статус task.
	Status TaskStatus `json:"status"`

	// Priority — приоритет в очереди.
	Priority TaskPriority `json:"priority"`

	// Progress — прогресс выполнения, 0–100.
	// Обновляется executor'ом через ProgressFunc.
	Progress int `json:"progress"`

	// Config — конфигурация для executor'а.
	Config map[string]any `json:"config,omitempty"`

	// Result — результат успешного выполнения.
	Result map[string]any `json:"result,omitempty"`

	// Error — текст ошибки при неудаче.
	Error string `json:"error,omitempty"`

	// RetryCount — количество уже сделанных повторов.
	RetryCount int `json:"retry_count"`

	// MaxRetries — максимальное количество повторов.
	MaxRetries int `json:"max_retries"`

	// ParentTaskID — ссылка на родительский task (опционально).
	ParentTaskID *uuid.UUID `json:"parent_task_id,omitempty"`

	// ScheduledAt — время, раньше которого task не должен выполняться.
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания task.
	CreatedAt time.Time `json:"created_at"`
}

// Duration возвращает продолжительность выполнения.
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil || t.FinishedAt == nil {
		return 0
	}
	return t.FinishedAt.Sub(*t.StartedAt)
}

// IsFinished возвращает true, если task завершён.
func (t *Task) IsFinished() bool {
	return t.Status.IsTerminal()
}

// IsDue возвращает true, если task можно выполнять (ScheduledAt наступил).
func (t *Task) IsDue(now time.Time) bool {
	return t.ScheduledAt == nil || !t.ScheduledAt.After(now)
}

// MarkRunning переводит task в статус RUNNING.
func (t *Task) MarkRunning() {
	now := time.Now()
	t.Status = TaskStatusRunning
	t.StartedAt = &now
}

// MarkCompleted переводит task в статус COMPLETED с результатом.
func (t *Task) MarkCompleted(result map[string]any) {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.FinishedAt = &now
	t.Result = result
	t.Progress = 100
}

// MarkFailed переводит task в статус FAILED с ошибкой.
func (t *Task) MarkFailed(errMsg string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.FinishedAt = &now
	t.Error = errMsg
}

// MarkCancelled переводит task в статус CANCELLED.
func (t *Task) MarkCancelled() {
	now := time.Now()
	t.Status = TaskStatusCancelled
	t.FinishedAt = &now
}

// MarkPaused переводит task в статус PAUSED.
// Время старта сбрасывается: после resume отсчёт начнётся заново.
func (t *Task) MarkPaused() {
	t.Status = TaskStatusPaused
	t.StartedAt = nil
}

// CanRetry проверяет, можно ли сделать ещё одну попытку.
// Повтор возможен только из FAILED и пока не исчерпан лимит.
func (t *Task) CanRetry() bool {
	return t.Status == TaskStatusFailed && t.RetryCount < t.MaxRetries
}

// ResetForRetry подготавливает task к повторной попытке:
// сбрасывает статус в PENDING, очищает ошибку, увеличивает RetryCount.
func (t *Task) ResetForRetry() {
	t.Status = TaskStatusPending
	t.StartedAt = nil
	t.FinishedAt = nil
	t.Error = ""
	t.Progress = 0
	t.RetryCount++
}
