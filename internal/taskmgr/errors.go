package taskmgr

import "errors"

// Ошибки task manager'а.
var (
	// ErrTaskNotFound — task не найден.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidTransition — действие недопустимо для текущего статуса task.
	ErrInvalidTransition = errors.New("invalid task state transition")

	// ErrRetryExhausted — лимит повторов исчерпан.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrUnknownTaskType — нет executor'а для данного типа task.
	ErrUnknownTaskType = errors.New("unknown task type")

	// ErrUnknownAction — неизвестное действие.
	ErrUnknownAction = errors.New("unknown task action")

	// ErrManagerStopped — менеджер остановлен.
	ErrManagerStopped = errors.New("task manager stopped")
)
