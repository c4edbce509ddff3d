package domain

// TaskStatus — статус выполнения task.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED
//	                  ↘ FAILED (retry → обратно в PENDING)
//	                  ↘ CANCELLED
//	RUNNING → PAUSED → PENDING (единственное обратное ребро)
type TaskStatus string

const (
	// TaskStatusPending — task создан и ожидает выполнения.
	TaskStatusPending TaskStatus = "PENDING"

	// TaskStatusRunning — task выполняется воркером.
	TaskStatusRunning TaskStatus = "RUNNING"

	// TaskStatusPaused — task приостановлен, может быть возобновлён.
	TaskStatusPaused TaskStatus = "PAUSED"

	// TaskStatusCompleted — task успешно завершён.
	TaskStatusCompleted TaskStatus = "COMPLETED"

	// TaskStatusFailed — task завершился с ошибкой.
	TaskStatusFailed TaskStatus = "FAILED"

	// TaskStatusCancelled — task отменён.
	TaskStatusCancelled TaskStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// TaskPriority — приоритет task в очереди.
//
// HIGH и URGENT попадают в голову очереди, остальные — в хвост.
type TaskPriority int

const (
	PriorityLow    TaskPriority = 0
	PriorityNormal TaskPriority = 1
	PriorityHigh   TaskPriority = 2
	PriorityUrgent TaskPriority = 3
)

// String возвращает строковое представление приоритета.
func (p TaskPriority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityNormal:
		return "NORMAL"
	case PriorityHigh:
		return "HIGH"
	case PriorityUrgent:
		return "URGENT"
	default:
		return "NORMAL"
	}
}

// IsHigh возвращает true для приоритетов, идущих в голову очереди.
func (p TaskPriority) IsHigh() bool {
	return p >= PriorityHigh
}

// InstanceStatus — статус выполнения workflow instance.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED
//	                  ↘ FAILED
//	          (или) → CANCELLED (из PENDING или RUNNING)
type InstanceStatus string

const (
	// InstanceStatusPending — instance создан, ожидает допуска планировщиком.
	InstanceStatusPending InstanceStatus = "PENDING"

	// InstanceStatusRunning — instance в процессе выполнения.
	InstanceStatusRunning InstanceStatus = "RUNNING"

	// InstanceStatusPaused — instance приостановлен.
	InstanceStatusPaused InstanceStatus = "PAUSED"

	// InstanceStatusCompleted — все tasks завершились успешно.
	InstanceStatusCompleted InstanceStatus = "COMPLETED"

	// InstanceStatusFailed — хотя бы один task упал.
	InstanceStatusFailed InstanceStatus = "FAILED"

	// InstanceStatusCancelled — instance отменён пользователем.
	InstanceStatusCancelled InstanceStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный.
func (s InstanceStatus) IsTerminal() bool {
	switch s {
	case InstanceStatusCompleted, InstanceStatusFailed, InstanceStatusCancelled:
		return true
	default:
		return false
	}
}

// ComponentStatus — статус управляемого компонента системы.
//
// Жизненный цикл:
//
//	INACTIVE → STARTING → ACTIVE → STOPPING → INACTIVE
//	                    ↘ ERROR (ошибка старта или health check)
type ComponentStatus string

const (
	ComponentStatusInactive ComponentStatus = "INACTIVE"
	ComponentStatusStarting ComponentStatus = "STARTING"
	ComponentStatusActive   ComponentStatus = "ACTIVE"
	ComponentStatusStopping ComponentStatus = "STOPPING"
	ComponentStatusError    ComponentStatus = "ERROR"
)

// SchedulingStrategy — стратегия создания tasks внутри instance.
type SchedulingStrategy string

const (
	// StrategyFIFO — все tasks создаются сразу при старте instance.
	StrategyFIFO SchedulingStrategy = "FIFO"

	// StrategyParallel — все tasks создаются сразу, порядок не важен.
	StrategyParallel SchedulingStrategy = "PARALLEL"

	// StrategyDependencyAware — tasks создаются инкрементально
	// по мере завершения их зависимостей.
	StrategyDependencyAware SchedulingStrategy = "DEPENDENCY_AWARE"
)
