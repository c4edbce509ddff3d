package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Dirigent/internal/domain"
	"github.com/shaiso/Dirigent/internal/engine"
	"github.com/shaiso/Dirigent/internal/taskmgr"
	"github.com/shaiso/Dirigent/internal/telemetry"
)

// Default configuration values.
const (
	defaultTickInterval           = 500 * time.Millisecond
	defaultMaxConcurrentWorkflows = 10
	defaultHeartbeatTimeout       = 30 * time.Second
	defaultSampleInterval         = 5 * time.Second
)

// LocalNodeID — ID всегда присутствующего локального узла.
const LocalNodeID = "local"

// Scheduler — планировщик workflows с назначением tasks на узлы.
//
// Scheduler:
//   - Регистрирует workflow definitions и валидирует их DAG
//   - Создаёт instances и допускает их к выполнению FIFO
//   - Инкрементально создаёт tasks по мере завершения зависимостей
//   - Назначает tasks с требованиями к ресурсам на узлы (admission control)
//   - Отслеживает завершение instances и собирает метрики
type Scheduler struct {
	tasks *taskmgr.Manager

	mu          sync.RWMutex
	definitions map[string]*registered
	instances   map[uuid.UUID]*instanceState

	// pending — FIFO очередь instance ID, ожидающих допуска.
	pending []uuid.UUID

	// nodes — узлы в порядке добавления; локальный узел всегда первый.
	nodes     []*domain.WorkerNode
	nodeByID  map[string]*domain.WorkerNode
	assignQ   []*assignment
	assigned  map[uuid.UUID]*assignment
	metricsW  *metricsWindows
	cachedMet domain.SchedulingMetrics

	tickInterval           time.Duration
	maxConcurrentWorkflows int
	heartbeatTimeout       time.Duration
	sampleInterval         time.Duration
	sampler                telemetry.Sampler
	logger                 *slog.Logger

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Scheduler.
type Config struct {
	// Tasks — менеджер tasks (обязателен).
	Tasks *taskmgr.Manager

	// TickInterval — период тика планировщика (default: 500ms).
	TickInterval time.Duration

	// MaxConcurrentWorkflows — максимум одновременно выполняющихся
	// instances (default: 10).
	MaxConcurrentWorkflows int

	// HeartbeatTimeout — допустимый возраст heartbeat узла (default: 30s).
	HeartbeatTimeout time.Duration

	// SampleInterval — период обновления нагрузки локального узла (default: 5s).
	SampleInterval time.Duration

	// Sampler — сэмплер ресурсов локального узла (опционально).
	Sampler telemetry.Sampler

	// LocalCapacity — вместимость локального узла
	// (default: cpu=100, memory=100).
	LocalCapacity map[domain.ResourceType]float64

	// Logger — логгер (default: slog.Default()).
	Logger *slog.Logger
}

// New создаёт новый Scheduler с локальным узлом.
func New(cfg Config) *Scheduler {
	tickInterval := cfg.TickInterval
	if tickInterval <= 0 {
		tickInterval = defaultTickInterval
	}

	maxWorkflows := cfg.MaxConcurrentWorkflows
	if maxWorkflows <= 0 {
		maxWorkflows = defaultMaxConcurrentWorkflows
	}

	heartbeatTimeout := cfg.HeartbeatTimeout
	if heartbeatTimeout <= 0 {
		heartbeatTimeout = defaultHeartbeatTimeout
	}

	sampleInterval := cfg.SampleInterval
	if sampleInterval <= 0 {
		sampleInterval = defaultSampleInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	capacity := cfg.LocalCapacity
	if len(capacity) == 0 {
		capacity = map[domain.ResourceType]float64{
			domain.ResourceCPU:    100,
			domain.ResourceMemory: 100,
		}
	}

	local := domain.NewWorkerNode(LocalNodeID, "local node", capacity)

	return &Scheduler{
		tasks:                  cfg.Tasks,
		definitions:            make(map[string]*registered),
		instances:              make(map[uuid.UUID]*instanceState),
		pending:                make([]uuid.UUID, 0),
		nodes:                  []*domain.WorkerNode{local},
		nodeByID:               map[string]*domain.WorkerNode{LocalNodeID: local},
		assigned:               make(map[uuid.UUID]*assignment),
		metricsW:               newMetricsWindows(),
		tickInterval:           tickInterval,
		maxConcurrentWorkflows: maxWorkflows,
		heartbeatTimeout:       heartbeatTimeout,
		sampleInterval:         sampleInterval,
		sampler:                cfg.Sampler,
		logger:                 logger,
	}
}

// Start запускает тик планировщика и сэмплер локального узла.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel

	s.logger.Info("starting workflow scheduler",
		"tick_interval", s.tickInterval,
		"max_concurrent_workflows", s.maxConcurrentWorkflows,
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.tickLoop(ctx)
	}()

	if s.sampler != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.sampleLoop(ctx)
		}()
	}

	return nil
}

// Stop останавливает планировщик.
func (s *Scheduler) Stop(_ context.Context) error {
	s.stoppedMu.Lock()
	s.stopped = true
	s.stoppedMu.Unlock()

	s.logger.Info("stopping workflow scheduler...")

	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.wg.Wait()

	s.logger.Info("workflow scheduler stopped")
	return nil
}

// HealthCheck реализует health probe для интегратора.
func (s *Scheduler) HealthCheck(_ context.Context) error {
	s.stoppedMu.RLock()
	defer s.stoppedMu.RUnlock()

	if s.stopped {
		return ErrSchedulerStopped
	}
	return nil
}

// Metrics возвращает снимок метрик для system status.
func (s *Scheduler) Metrics() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	running := 0
	for _, st := range s.instances {
		if st.instance.Status == domain.InstanceStatusRunning {
			running++
		}
	}

	return map[string]any{
		"workflows_registered": len(s.definitions),
		"instances_total":      len(s.instances),
		"instances_running":    running,
		"instances_pending":    len(s.pending),
		"pending_assignments":  len(s.assignQ),
		"nodes":                len(s.nodes),
	}
}

// RegisterWorkflow регистрирует definition.
//
// Валидация: непустой список шагов, уникальные имена, зависимости
// ссылаются на существующие шаги, граф ацикличен.
func (s *Scheduler) RegisterWorkflow(def *domain.WorkflowDefinition) error {
	if def.ID == "" || len(def.Tasks) == 0 {
		return fmt.Errorf("%w: empty id or task list", ErrInvalidDefinition)
	}

	g := engine.NewGraph()
	for i := range def.Tasks {
		if def.Tasks[i].Name == "" {
			return fmt.Errorf("%w: task with empty name", ErrInvalidDefinition)
		}
		if err := g.AddNode(def.Tasks[i].Name); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
		}
	}
	for step, deps := range def.Dependencies {
		for _, dep := range deps {
			if err := g.AddEdge(step, dep); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
			}
		}
	}
	if _, err := g.TopoSort(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	if def.Strategy == "" {
		def.Strategy = domain.StrategyDependencyAware
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.definitions[def.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateWorkflow, def.ID)
	}
	s.definitions[def.ID] = &registered{def: def, graph: g}

	s.logger.Info("workflow registered",
		"workflow_id", def.ID,
		"steps", len(def.Tasks),
		"strategy", def.Strategy,
	)
	return nil
}

// ListWorkflows возвращает зарегистрированные definitions
// в алфавитном порядке ID.
func (s *Scheduler) ListWorkflows() []domain.WorkflowDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.WorkflowDefinition, 0, len(s.definitions))
	for _, reg := range s.definitions {
		out = append(out, *reg.def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// StartWorkflow создаёт PENDING instance и ставит его в очередь допуска.
func (s *Scheduler) StartWorkflow(workflowID string, execCtx map[string]any) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.definitions[workflowID]
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowID)
	}

	instance := &domain.WorkflowInstance{
		ID:            uuid.New(),
		WorkflowID:    workflowID,
		Status:        domain.InstanceStatusPending,
		TaskInstances: make(map[string]uuid.UUID),
		Context:       execCtx,
		CreatedAt:     time.Now(),
	}

	s.instances[instance.ID] = newInstanceState(instance, reg)
	s.pending = append(s.pending, instance.ID)

	telemetry.WorkflowsStarted.WithLabelValues(workflowID).Inc()
	s.logger.Info("workflow instance queued",
		"instance_id", instance.ID,
		"workflow_id", workflowID,
	)
	return instance.ID, nil
}

// GetInstance возвращает снимок instance.
func (s *Scheduler) GetInstance(id uuid.UUID) (domain.WorkflowInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.instances[id]
	if !ok {
		return domain.WorkflowInstance{}, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}
	return st.snapshot(), nil
}

// ListInstances возвращает снимки всех instances.
func (s *Scheduler) ListInstances() []domain.WorkflowInstance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.WorkflowInstance, 0, len(s.instances))
	for _, st := range s.instances {
		out = append(out, st.snapshot())
	}
	return out
}

// CancelWorkflow отменяет instance.
//
// Отмена best-effort: каждому отслеживаемому task отправляется cancel
// (уже завершённые не затрагиваются); tasks из ещё не разблокированных
// ярусов просто никогда не будут созданы.
func (s *Scheduler) CancelWorkflow(id uuid.UUID) (bool, error) {
	s.mu.Lock()

	st, ok := s.instances[id]
	if !ok {
		s.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}
	if st.instance.IsFinished() {
		s.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrInstanceFinished, st.instance.Status)
	}

	taskIDs := make([]uuid.UUID, 0, len(st.instance.TaskInstances))
	for _, taskID := range st.instance.TaskInstances {
		taskIDs = append(taskIDs, taskID)
	}

	st.instance.MarkCancelled()
	s.removePending(id)
	s.mu.Unlock()

	for _, taskID := range taskIDs {
		if err := s.tasks.ExecuteAction(taskID, taskmgr.ActionCancel); err != nil {
			// Терминальные tasks отменить нельзя — это не ошибка отмены workflow
			s.logger.Debug("task cancel skipped", "task_id", taskID, "reason", err)
		}
	}

	s.mu.Lock()
	s.releaseInstanceAssignments(st)
	s.mu.Unlock()

	telemetry.WorkflowsFinished.WithLabelValues(string(domain.InstanceStatusCancelled)).Inc()
	s.logger.Info("workflow instance cancelled", "instance_id", id)
	return true, nil
}

// removePending убирает instance из очереди допуска. Вызывается под s.mu.
func (s *Scheduler) removePending(id uuid.UUID) {
	for i, pendingID := range s.pending {
		if pendingID == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

// tickLoop — основной цикл планировщика.
func (s *Scheduler) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick выполняет один тик планировщика.
//
// Порядок фаз:
//  1. Проверка heartbeats узлов
//  2. Допуск PENDING instances (FIFO, до MaxConcurrentWorkflows)
//  3. Обработка очереди назначения на узлы
//  4. Переоценка RUNNING instances (завершение, разблокировка DAG)
//  5. Пересчёт метрик
func (s *Scheduler) Tick() {
	s.checkHeartbeats()
	s.admitPending()
	s.processAssignments()
	s.evaluateInstances()
	s.updateMetrics()
}

// admitPending допускает PENDING instances до потолка конкурентности.
func (s *Scheduler) admitPending() {
	s.mu.Lock()
	defer s.mu.Unlock()

	running := 0
	for _, st := range s.instances {
		if st.instance.Status == domain.InstanceStatusRunning {
			running++
		}
	}

	for len(s.pending) > 0 && running < s.maxConcurrentWorkflows {
		id := s.pending[0]
		s.pending = s.pending[1:]

		st, ok := s.instances[id]
		if !ok || st.instance.Status != domain.InstanceStatusPending {
			continue
		}

		st.instance.MarkRunning()
		running++

		s.logger.Info("workflow instance admitted",
			"instance_id", id,
			"workflow_id", st.instance.WorkflowID,
		)

		s.createInitialTasks(st)
	}
}

// createInitialTasks создаёт стартовые tasks instance согласно стратегии.
// Вызывается под s.mu.
func (s *Scheduler) createInitialTasks(st *instanceState) {
	switch st.reg.def.Strategy {
	case domain.StrategyDependencyAware:
		// Только шаги без зависимостей; остальные разблокируются по мере
		// завершения предшественников
		s.createSteps(st, st.readySteps())
	default:
		// FIFO/PARALLEL: все tasks создаются сразу
		s.createSteps(st, st.reg.graph.Nodes())
	}
}

// createSteps создаёт tasks для шагов instance. Вызывается под s.mu.
//
// Для DEPENDENCY_AWARE учитывается MaxParallelTasks: новые шаги не
// создаются, пока созданных и не завершённых шагов не станет меньше лимита.
func (s *Scheduler) createSteps(st *instanceState, steps []string) {
	maxParallel := st.reg.def.MaxParallelTasks

	for _, step := range steps {
		if st.reg.def.Strategy == domain.StrategyDependencyAware &&
			maxParallel > 0 && st.runningSteps() >= maxParallel {
			return
		}

		tmpl := st.reg.def.Template(step)
		if tmpl == nil {
			// Шаг без шаблона — дефект definition, валидация это исключает
			continue
		}

		config := make(map[string]any, len(tmpl.Config)+1)
		for k, v := range tmpl.Config {
			config[k] = v
		}
		if len(st.instance.Context) > 0 {
			config["workflow_context"] = st.instance.Context
		}

		hold := len(tmpl.Requirements) > 0

		task, err := s.tasks.Create(taskmgr.TaskSpec{
			Name:       fmt.Sprintf("%s/%s", st.reg.def.Name, step),
			Type:       tmpl.Type,
			Priority:   tmpl.Priority,
			Config:     config,
			MaxRetries: tmpl.MaxRetries,
			Hold:       hold,
		})
		if err != nil {
			st.failed[step] = true
			st.created[step] = true
			s.logger.Error("failed to create workflow task",
				"instance_id", st.instance.ID,
				"step", step,
				"error", err,
			)
			continue
		}

		st.markCreated(step, task.ID)

		if hold {
			// Task ждёт назначения на узел; start будет вызван после резервирования
			s.enqueueAssignment(task.ID, tmpl.Requirements)
		}

		s.logger.Debug("workflow task created",
			"instance_id", st.instance.ID,
			"step", step,
			"task_id", task.ID,
			"held", hold,
		)
	}
}

// evaluateInstances переоценивает все RUNNING instances.
func (s *Scheduler) evaluateInstances() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range s.instances {
		if st.instance.Status != domain.InstanceStatusRunning {
			continue
		}
		s.evaluateInstance(st)
	}
}

// evaluateInstance обновляет состояние одного instance. Вызывается под s.mu.
//
// Переоценка:
//   - Синхронизирует статусы созданных tasks
//   - FAILED task с оставшимся бюджетом повторов перезапускается
//   - Любой окончательно FAILED task ⇒ instance FAILED
//   - Все шаги завершены, ни одного FAILED ⇒ instance COMPLETED;
//     отменённый поштучно task терминален, но не FAILED — он считается
//     завершённым шагом и instance не валит
//   - Иначе создаются новые разблокированные шаги
func (s *Scheduler) evaluateInstance(st *instanceState) {
	for step, taskID := range st.instance.TaskInstances {
		if st.completed[step] || st.failed[step] {
			continue
		}

		task, err := s.tasks.Get(taskID)
		if err != nil {
			st.failed[step] = true
			continue
		}

		switch task.Status {
		case domain.TaskStatusCompleted:
			st.completed[step] = true
			s.releaseAssignment(taskID)
			s.recordExecution(st, &task)

		case domain.TaskStatusFailed:
			if task.CanRetry() {
				if err := s.tasks.ExecuteAction(taskID, taskmgr.ActionRetry); err == nil {
					s.logger.Info("workflow task retrying",
						"instance_id", st.instance.ID,
						"step", step,
						"retry_count", task.RetryCount+1,
					)
					continue
				}
			}
			st.failed[step] = true
			s.releaseAssignment(taskID)
			s.recordExecution(st, &task)

		case domain.TaskStatusCancelled:
			st.completed[step] = true
			s.releaseAssignment(taskID)
			s.logger.Info("workflow step cancelled, counting as terminal",
				"instance_id", st.instance.ID,
				"step", step,
			)
		}
	}

	switch {
	case st.hasFailed():
		st.instance.MarkFailed(fmt.Sprintf("%d step(s) failed", len(st.failed)))
		s.releaseInstanceAssignments(st)
		telemetry.WorkflowsFinished.WithLabelValues(string(domain.InstanceStatusFailed)).Inc()
		s.logger.Warn("workflow instance failed",
			"instance_id", st.instance.ID,
			"failed_steps", len(st.failed),
		)

	case st.isComplete():
		st.instance.MarkCompleted()
		telemetry.WorkflowsFinished.WithLabelValues(string(domain.InstanceStatusCompleted)).Inc()
		s.logger.Info("workflow instance completed",
			"instance_id", st.instance.ID,
			"duration", st.instance.Duration(),
		)

	default:
		// Инкрементальный обход DAG: создаём ровно те шаги,
		// чьи зависимости только что завершились
		if st.reg.def.Strategy == domain.StrategyDependencyAware {
			if ready := st.readySteps(); len(ready) > 0 {
				s.createSteps(st, ready)
			}
		}
	}
}

// recordExecution учитывает длительность task в метриках. Вызывается под s.mu.
func (s *Scheduler) recordExecution(st *instanceState, task *domain.Task) {
	if st.measured[task.ID] || task.Duration() <= 0 {
		return
	}
	st.measured[task.ID] = true
	s.metricsW.recordExecution(task.Duration())
}
