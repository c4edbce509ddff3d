package taskmgr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Dirigent/internal/domain"
	"github.com/shaiso/Dirigent/internal/telemetry"
)

// Default configuration values.
const (
	defaultMaxConcurrent = 5
	defaultPollInterval  = 200 * time.Millisecond
	defaultStatsTTL      = 5 * time.Second
)

// Action — действие над task.
type Action string

const (
	ActionStart  Action = "start"
	ActionPause  Action = "pause"
	ActionResume Action = "resume"
	ActionCancel Action = "cancel"
	ActionRetry  Action = "retry"
)

// TaskSpec — параметры создания task.
type TaskSpec struct {
	// Name — имя task.
	Name string

	// Type — тип task (должен быть зарегистрирован в Registry).
	Type string

	// Priority — приоритет в очереди.
	Priority domain.TaskPriority

	// Config — конфигурация для executor'а.
	Config map[string]any

	// MaxRetries — лимит повторов.
	MaxRetries int

	// ScheduledAt — время, раньше которого task не выполняется.
	ScheduledAt *time.Time

	// ParentTaskID — родительский task (опционально).
	ParentTaskID *uuid.UUID

	// Hold — не ставить task в очередь при создании.
	// Используется планировщиком: task с требованиями к ресурсам
	// ставится в очередь действием start после назначения на узел.
	Hold bool
}

// Filter — фильтр для выборки tasks.
type Filter struct {
	// Status — только tasks в данном статусе.
	Status *domain.TaskStatus

	// Type — только tasks данного типа.
	Type string

	// Limit — максимум результатов. 0 — без ограничения.
	Limit int
}

// BatchResult — результат действия над одним task из batch-операции.
type BatchResult struct {
	ID    uuid.UUID `json:"id"`
	OK    bool      `json:"ok"`
	Error string    `json:"error,omitempty"`
}

// Manager управляет жизненным циклом tasks.
//
// Manager — компонент системы, который:
//   - Хранит tasks в памяти (арена процесса)
//   - Ставит PENDING tasks в очередь с приоритетным смещением
//   - Выполняет их пулом воркеров, ограниченным счётным семафором
//   - Реализует действия start/pause/resume/cancel/retry
//   - Считает статистику с кэшированием
type Manager struct {
	registry      *Registry
	maxConcurrent int
	pollInterval  time.Duration
	statsTTL      time.Duration
	logger        *slog.Logger

	mu      sync.RWMutex
	tasks   map[uuid.UUID]*domain.Task
	held    map[uuid.UUID]bool
	cancels map[uuid.UUID]context.CancelFunc

	queue *queue

	// sem — счётный семафор: слот занимается перед запуском task,
	// освобождается по завершении. MaxConcurrent не превышается
	// даже кратковременно.
	sem chan struct{}

	statsMu      sync.Mutex
	cachedStats  TaskStats
	statsValidAt time.Time

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Manager.
type Config struct {
	// Registry — реестр executor'ов (обязателен).
	Registry *Registry

	// MaxConcurrent — максимум одновременно выполняющихся tasks (default: 5).
	MaxConcurrent int

	// PollInterval — пауза при пустой очереди (default: 200ms).
	PollInterval time.Duration

	// StatsTTL — срок жизни кэша статистики (default: 5s).
	StatsTTL time.Duration

	// Logger — логгер (default: slog.Default()).
	Logger *slog.Logger
}

// New создаёт новый Manager.
func New(cfg Config) *Manager {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	statsTTL := cfg.StatsTTL
	if statsTTL <= 0 {
		statsTTL = defaultStatsTTL
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	return &Manager{
		registry:      registry,
		maxConcurrent: maxConcurrent,
		pollInterval:  pollInterval,
		statsTTL:      statsTTL,
		logger:        logger,
		tasks:         make(map[uuid.UUID]*domain.Task),
		held:          make(map[uuid.UUID]bool),
		cancels:       make(map[uuid.UUID]context.CancelFunc),
		queue:         newQueue(),
		sem:           make(chan struct{}, maxConcurrent),
	}
}

// Registry возвращает реестр executor'ов.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Start запускает цикл диспетчеризации.
func (m *Manager) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel

	m.logger.Info("starting task manager",
		"max_concurrent", m.maxConcurrent,
		"poll_interval", m.pollInterval,
	)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.dispatchLoop(ctx)
	}()

	return nil
}

// Stop останавливает Manager и дожидается завершения воркеров.
func (m *Manager) Stop(_ context.Context) error {
	m.stoppedMu.Lock()
	m.stopped = true
	m.stoppedMu.Unlock()

	m.logger.Info("stopping task manager...")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}
	m.wg.Wait()

	m.logger.Info("task manager stopped")
	return nil
}

// HealthCheck реализует health probe для интегратора.
func (m *Manager) HealthCheck(_ context.Context) error {
	m.stoppedMu.RLock()
	defer m.stoppedMu.RUnlock()

	if m.stopped {
		return ErrManagerStopped
	}
	return nil
}

// Metrics возвращает снимок метрик для system status.
func (m *Manager) Metrics() map[string]any {
	stats := m.Stats()
	return map[string]any{
		"total_tasks":  stats.Total,
		"queue_depth":  stats.QueueDepth,
		"running":      stats.ByStatus[domain.TaskStatusRunning],
		"avg_duration": stats.AvgDurationSeconds,
	}
}

// Create создаёт task и ставит его в очередь.
//
// Task не попадает в очередь, если spec.Hold установлен или
// ScheduledAt в будущем (такой task всё равно в очереди, но воркеры
// перекладывают его в хвост до наступления срока).
func (m *Manager) Create(spec TaskSpec) (domain.Task, error) {
	if _, err := m.registry.Get(spec.Type); err != nil {
		return domain.Task{}, err
	}

	maxRetries := spec.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	task := &domain.Task{
		ID:           uuid.New(),
		Name:         spec.Name,
		Type:         spec.Type,
		Status:       domain.TaskStatusPending,
		Priority:     spec.Priority,
		Config:       spec.Config,
		MaxRetries:   maxRetries,
		ParentTaskID: spec.ParentTaskID,
		ScheduledAt:  spec.ScheduledAt,
		CreatedAt:    time.Now(),
	}

	m.mu.Lock()
	m.tasks[task.ID] = task
	if spec.Hold {
		m.held[task.ID] = true
	}
	snapshot := *task
	m.mu.Unlock()

	if !spec.Hold {
		m.enqueue(task.ID, task.Priority)
	}

	telemetry.TasksCreated.WithLabelValues(task.Type).Inc()
	m.logger.Debug("task created",
		"task_id", task.ID,
		"type", task.Type,
		"priority", task.Priority.String(),
		"held", spec.Hold,
	)

	return snapshot, nil
}

// Get возвращает снимок task.
func (m *Manager) Get(id uuid.UUID) (domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	task, ok := m.tasks[id]
	if !ok {
		return domain.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return *task, nil
}

// List возвращает снимки tasks, подходящих под фильтр,
// отсортированные по времени создания.
func (m *Manager) List(filter Filter) []domain.Task {
	m.mu.RLock()
	out := make([]domain.Task, 0, len(m.tasks))
	for _, task := range m.tasks {
		if filter.Status != nil && task.Status != *filter.Status {
			continue
		}
		if filter.Type != "" && task.Type != filter.Type {
			continue
		}
		out = append(out, *task)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

// ExecuteAction выполняет действие над task.
//
// Допустимые переходы:
//   - start:  PENDING (held) → в очередь
//   - pause:  RUNNING → PAUSED
//   - resume: PAUSED → PENDING (в очередь)
//   - cancel: PENDING | RUNNING | PAUSED → CANCELLED
//   - retry:  FAILED (retry_count < max_retries) → PENDING (в очередь)
func (m *Manager) ExecuteAction(id uuid.UUID, action Action) error {
	switch action {
	case ActionStart:
		return m.startTask(id)
	case ActionPause:
		return m.pauseTask(id)
	case ActionResume:
		return m.resumeTask(id)
	case ActionCancel:
		return m.cancelTask(id)
	case ActionRetry:
		return m.retryTask(id)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
}

// ExecuteBatch применяет действие к списку tasks.
// Ошибка одного task не прерывает обработку остальных.
func (m *Manager) ExecuteBatch(ids []uuid.UUID, action Action) []BatchResult {
	results := make([]BatchResult, 0, len(ids))
	for _, id := range ids {
		result := BatchResult{ID: id, OK: true}
		if err := m.ExecuteAction(id, action); err != nil {
			result.OK = false
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	return results
}

// startTask ставит held task в очередь.
func (m *Manager) startTask(id uuid.UUID) error {
	m.mu.Lock()

	task, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if task.Status != domain.TaskStatusPending {
		m.mu.Unlock()
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, task.Status)
	}
	if !m.held[id] {
		// Task уже в очереди — start идемпотентен
		m.mu.Unlock()
		return nil
	}
	delete(m.held, id)
	priority := task.Priority
	m.mu.Unlock()

	m.enqueue(id, priority)
	return nil
}

// pauseTask приостанавливает RUNNING task.
func (m *Manager) pauseTask(id uuid.UUID) error {
	m.mu.Lock()

	task, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if task.Status != domain.TaskStatusRunning {
		m.mu.Unlock()
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, task.Status)
	}

	task.MarkPaused()
	cancel := m.cancels[id]
	m.mu.Unlock()

	// Сигнализируем executor'у остановиться
	if cancel != nil {
		cancel()
	}

	m.logger.Info("task paused", "task_id", id)
	return nil
}

// resumeTask возвращает PAUSED task в очередь.
func (m *Manager) resumeTask(id uuid.UUID) error {
	m.mu.Lock()

	task, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if task.Status != domain.TaskStatusPaused {
		m.mu.Unlock()
		return fmt.Errorf("%w: resume from %s", ErrInvalidTransition, task.Status)
	}

	task.Status = domain.TaskStatusPending
	priority := task.Priority
	m.mu.Unlock()

	m.enqueue(id, priority)
	m.logger.Info("task resumed", "task_id", id)
	return nil
}

// cancelTask отменяет task.
func (m *Manager) cancelTask(id uuid.UUID) error {
	m.mu.Lock()

	task, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if task.Status.IsTerminal() {
		m.mu.Unlock()
		return fmt.Errorf("%w: cancel from %s", ErrInvalidTransition, task.Status)
	}

	wasRunning := task.Status == domain.TaskStatusRunning
	task.MarkCancelled()
	delete(m.held, id)
	cancel := m.cancels[id]
	taskType := task.Type
	m.mu.Unlock()

	if wasRunning && cancel != nil {
		// Отмена кооперативная: executor разматывается по ctx
		cancel()
	} else {
		m.queue.Remove(id)
	}

	telemetry.TasksFinished.WithLabelValues(taskType, string(domain.TaskStatusCancelled)).Inc()
	m.logger.Info("task cancelled", "task_id", id)
	return nil
}

// retryTask повторяет FAILED task.
func (m *Manager) retryTask(id uuid.UUID) error {
	m.mu.Lock()

	task, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if task.Status != domain.TaskStatusFailed {
		m.mu.Unlock()
		return fmt.Errorf("%w: retry from %s", ErrInvalidTransition, task.Status)
	}
	if !task.CanRetry() {
		m.mu.Unlock()
		return fmt.Errorf("%w: %d of %d", ErrRetryExhausted, task.RetryCount, task.MaxRetries)
	}

	task.ResetForRetry()
	priority := task.Priority
	retryCount := task.RetryCount
	m.mu.Unlock()

	m.enqueue(id, priority)
	m.logger.Info("task retrying", "task_id", id, "retry_count", retryCount)
	return nil
}

// enqueue ставит task в очередь с учётом приоритета.
func (m *Manager) enqueue(id uuid.UUID, priority domain.TaskPriority) {
	if priority.IsHigh() {
		m.queue.PushFront(id)
	} else {
		m.queue.PushBack(id)
	}
	telemetry.QueueDepth.Set(float64(m.queue.Len()))
}

// QueueDepth возвращает текущую глубину очереди.
func (m *Manager) QueueDepth() int {
	return m.queue.Len()
}

// dispatchLoop извлекает tasks из очереди и раздаёт их воркерам.
func (m *Manager) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		id, ok := m.queue.Pop()
		if !ok {
			sleepCtx(ctx, m.pollInterval)
			continue
		}
		telemetry.QueueDepth.Set(float64(m.queue.Len()))

		m.mu.RLock()
		task, exists := m.tasks[id]
		var pending, due bool
		if exists {
			pending = task.Status == domain.TaskStatusPending
			due = task.IsDue(time.Now())
		}
		m.mu.RUnlock()

		if !exists || !pending {
			continue
		}
		if !due {
			// Срок не наступил — в хвост и пауза, чтобы не крутиться вхолостую
			m.queue.PushBack(id)
			sleepCtx(ctx, m.pollInterval)
			continue
		}

		// Занимаем слот семафора; при остановке возвращаем task в очередь
		select {
		case m.sem <- struct{}{}:
		case <-ctx.Done():
			m.queue.PushFront(id)
			return
		}

		m.wg.Add(1)
		go m.runTask(ctx, id)
	}
}

// runTask выполняет один task.
func (m *Manager) runTask(ctx context.Context, id uuid.UUID) {
	defer func() {
		<-m.sem
		m.wg.Done()
	}()

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.mu.Lock()
	task, ok := m.tasks[id]
	if !ok || task.Status != domain.TaskStatusPending {
		m.mu.Unlock()
		return
	}
	task.MarkRunning()
	m.cancels[id] = cancel
	snapshot := *task
	m.mu.Unlock()

	logger := telemetry.WithTaskID(m.logger, id.String())
	logger.Debug("task started", "type", snapshot.Type)

	executor, err := m.registry.Get(snapshot.Type)
	if err != nil {
		m.finishTask(id, nil, err)
		return
	}

	progress := func(p int) { m.setProgress(id, p) }

	var result map[string]any
	var execErr error
	func() {
		// Паника executor'а изолируется и превращается в FAILED
		defer func() {
			if r := recover(); r != nil {
				execErr = fmt.Errorf("executor panic: %v", r)
			}
		}()
		result, execErr = executor.Execute(taskCtx, &snapshot, progress)
	}()

	m.finishTask(id, result, execErr)
}

// finishTask фиксирует результат выполнения task.
//
// Если действие pause/cancel успело пометить task раньше,
// его статус не перезаписывается.
func (m *Manager) finishTask(id uuid.UUID, result map[string]any, execErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.cancels, id)

	task, ok := m.tasks[id]
	if !ok {
		return
	}

	switch {
	case task.Status == domain.TaskStatusPaused,
		task.Status == domain.TaskStatusCancelled:
		return

	case execErr != nil && errors.Is(execErr, context.Canceled):
		task.MarkCancelled()

	case execErr != nil:
		task.MarkFailed(execErr.Error())
		m.logger.Warn("task failed",
			"task_id", id,
			"type", task.Type,
			"error", execErr,
			"retry_count", task.RetryCount,
		)

	default:
		task.MarkCompleted(result)
		m.logger.Debug("task completed",
			"task_id", id,
			"duration", task.Duration(),
		)
	}

	telemetry.TasksFinished.WithLabelValues(task.Type, string(task.Status)).Inc()
	telemetry.TaskDuration.WithLabelValues(task.Type).Observe(task.Duration().Seconds())
}

// setProgress обновляет прогресс RUNNING task.
func (m *Manager) setProgress(id uuid.UUID, progress int) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if task, ok := m.tasks[id]; ok && task.Status == domain.TaskStatusRunning {
		task.Progress = progress
	}
}

// sleepCtx спит duration или до отмены ctx.
func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
