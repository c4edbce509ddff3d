package scheduler

import "errors"

// Ошибки планировщика.
var (
	// ErrWorkflowNotFound — definition не найден.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrInstanceNotFound — instance не найден.
	ErrInstanceNotFound = errors.New("workflow instance not found")

	// ErrDuplicateWorkflow — definition с таким ID уже зарегистрирован.
	ErrDuplicateWorkflow = errors.New("workflow already registered")

	// ErrInvalidDefinition — definition не прошёл валидацию.
	ErrInvalidDefinition = errors.New("invalid workflow definition")

	// ErrInstanceFinished — instance уже в терминальном статусе.
	ErrInstanceFinished = errors.New("workflow instance already finished")

	// ErrNodeNotFound — узел не найден.
	ErrNodeNotFound = errors.New("worker node not found")

	// ErrDuplicateNode — узел с таким ID уже добавлен.
	ErrDuplicateNode = errors.New("worker node already registered")

	// ErrLocalNodeRemoval — локальный узел удалить нельзя.
	ErrLocalNodeRemoval = errors.New("local node cannot be removed")

	// ErrNoCapacity — ни один здоровый узел не вмещает требования.
	ErrNoCapacity = errors.New("no node with sufficient capacity")

	// ErrSchedulerStopped — планировщик остановлен.
	ErrSchedulerStopped = errors.New("scheduler stopped")
)
