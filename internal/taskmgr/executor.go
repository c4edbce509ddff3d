package taskmgr

import (
	"context"
	"fmt"

	"github.com/shaiso/Dirigent/internal/domain"
)

// ProgressFunc — callback для обновления прогресса task (0–100).
type ProgressFunc func(progress int)

// Executor — интерфейс выполнения task определённого типа.
//
// Execute получает копию task (мутации снимка не видны менеджеру),
// отчитывается о прогрессе через progress и обязан уважать отмену ctx.
// Возвращённая map становится Result task'а; ошибка переводит task
// в FAILED с её текстом.
type Executor interface {
	Execute(ctx context.Context, task *domain.Task, progress ProgressFunc) (map[string]any, error)
}

// ExecutorFunc — адаптер функции к интерфейсу Executor.
type ExecutorFunc func(ctx context.Context, task *domain.Task, progress ProgressFunc) (map[string]any, error)

// Execute реализует Executor.
func (f ExecutorFunc) Execute(ctx context.Context, task *domain.Task, progress ProgressFunc) (map[string]any, error) {
	return f(ctx, task, progress)
}

// Registry — реестр executor'ов по типу task.
type Registry struct {
	executors map[string]Executor
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register добавляет executor для типа task.
func (r *Registry) Register(taskType string, executor Executor) {
	r.executors[taskType] = executor
}

// Get возвращает executor для типа task.
func (r *Registry) Get(taskType string) (Executor, error) {
	executor, ok := r.executors[taskType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, taskType)
	}
	return executor, nil
}

// Types возвращает зарегистрированные типы.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.executors))
	for t := range r.executors {
		types = append(types, t)
	}
	return types
}
