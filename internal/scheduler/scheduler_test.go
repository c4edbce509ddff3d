package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Dirigent/internal/domain"
	"github.com/shaiso/Dirigent/internal/taskmgr"
)

// testEnv — менеджер tasks и планировщик с ручным тиком.
type testEnv struct {
	tasks     *taskmgr.Manager
	scheduler *Scheduler

	mu        sync.Mutex
	execOrder []string
	failures  map[string]int // имя task → сколько раз упасть

	// gate открывает выполнение tasks типа "gated"
	gate chan struct{}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		failures: make(map[string]int),
		gate:     make(chan struct{}),
	}

	registry := taskmgr.NewRegistry()
	registry.Register("noop", taskmgr.ExecutorFunc(
		func(_ context.Context, task *domain.Task, _ taskmgr.ProgressFunc) (map[string]any, error) {
			env.mu.Lock()
			defer env.mu.Unlock()
			env.execOrder = append(env.execOrder, task.Name)
			if env.failures[task.Name] > 0 {
				env.failures[task.Name]--
				return nil, errors.New("synthetic failure")
			}
			return map[string]any{"ok": true}, nil
		}))
	registry.Register("slow", taskmgr.ExecutorFunc(
		func(ctx context.Context, _ *domain.Task, _ taskmgr.ProgressFunc) (map[string]any, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return map[string]any{"ok": true}, nil
			}
		}))
	registry.Register("gated", taskmgr.ExecutorFunc(
		func(ctx context.Context, _ *domain.Task, _ taskmgr.ProgressFunc) (map[string]any, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-env.gate:
				return map[string]any{"ok": true}, nil
			}
		}))

	env.tasks = taskmgr.New(taskmgr.Config{
		Registry:     registry,
		PollInterval: 5 * time.Millisecond,
	})
	if err := env.tasks.Start(context.Background()); err != nil {
		t.Fatalf("start task manager: %v", err)
	}
	t.Cleanup(func() { env.tasks.Stop(context.Background()) })

	// Планировщик не запускается: тик вызывается вручную,
	// чтобы тесты управляли фазами детерминированно
	env.scheduler = New(Config{Tasks: env.tasks})
	return env
}

// waitInstance тикает планировщик до достижения instance нужного статуса.
func (e *testEnv) waitInstance(t *testing.T, id uuid.UUID, want domain.InstanceStatus) domain.WorkflowInstance {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		e.scheduler.Tick()
		instance, err := e.scheduler.GetInstance(id)
		if err != nil {
			t.Fatalf("get instance: %v", err)
		}
		if instance.Status == want {
			return instance
		}
		if instance.Status.IsTerminal() {
			t.Fatalf("instance finished as %s, want %s (error: %q)",
				instance.Status, want, instance.Error)
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("instance did not reach %s in time", want)
	return domain.WorkflowInstance{}
}

func linearDefinition(id string) *domain.WorkflowDefinition {
	return &domain.WorkflowDefinition{
		ID:   id,
		Name: id,
		Tasks: []domain.TaskTemplate{
			{Name: "fetch", Type: "noop"},
			{Name: "validate", Type: "noop"},
			{Name: "score", Type: "noop"},
		},
		Dependencies: map[string][]string{
			"validate": {"fetch"},
			"score":    {"validate"},
		},
		Strategy: domain.StrategyDependencyAware,
	}
}

func TestRegisterWorkflow_Validation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		def  *domain.WorkflowDefinition
	}{
		{"empty id", &domain.WorkflowDefinition{Tasks: []domain.TaskTemplate{{Name: "a", Type: "noop"}}}},
		{"no tasks", &domain.WorkflowDefinition{ID: "wf"}},
		{"unnamed task", &domain.WorkflowDefinition{ID: "wf", Tasks: []domain.TaskTemplate{{Type: "noop"}}}},
		{"duplicate step", &domain.WorkflowDefinition{
			ID:    "wf",
			Tasks: []domain.TaskTemplate{{Name: "a", Type: "noop"}, {Name: "a", Type: "noop"}},
		}},
		{"unknown dependency", &domain.WorkflowDefinition{
			ID:           "wf",
			Tasks:        []domain.TaskTemplate{{Name: "a", Type: "noop"}},
			Dependencies: map[string][]string{"a": {"ghost"}},
		}},
		{"cycle", &domain.WorkflowDefinition{
			ID:           "wf",
			Tasks:        []domain.TaskTemplate{{Name: "a", Type: "noop"}, {Name: "b", Type: "noop"}},
			Dependencies: map[string][]string{"a": {"b"}, "b": {"a"}},
		}},
	}

	for _, tc := range cases {
		if err := env.scheduler.RegisterWorkflow(tc.def); !errors.Is(err, ErrInvalidDefinition) {
			t.Errorf("%s: expected ErrInvalidDefinition, got %v", tc.name, err)
		}
	}
}

func TestRegisterWorkflow_Duplicate(t *testing.T) {
	env := newTestEnv(t)

	if err := env.scheduler.RegisterWorkflow(linearDefinition("wf")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := env.scheduler.RegisterWorkflow(linearDefinition("wf")); !errors.Is(err, ErrDuplicateWorkflow) {
		t.Errorf("expected ErrDuplicateWorkflow, got %v", err)
	}
}

func TestStartWorkflow_Unknown(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.scheduler.StartWorkflow("ghost", nil); !errors.Is(err, ErrWorkflowNotFound) {
		t.Errorf("expected ErrWorkflowNotFound, got %v", err)
	}
}

func TestWorkflow_DependencyAwareOrder(t *testing.T) {
	env := newTestEnv(t)

	if err := env.scheduler.RegisterWorkflow(linearDefinition("linear")); err != nil {
		t.Fatalf("register: %v", err)
	}
	id, err := env.scheduler.StartWorkflow("linear", map[string]any{"source": "test"})
	if err != nil {
		t.Fatalf("start workflow: %v", err)
	}

	instance := env.waitInstance(t, id, domain.InstanceStatusCompleted)

	if len(instance.TaskInstances) != 3 {
		t.Errorf("expected 3 task instances, got %d", len(instance.TaskInstances))
	}

	env.mu.Lock()
	defer env.mu.Unlock()
	want := []string{"linear/fetch", "linear/validate", "linear/score"}
	if len(env.execOrder) != len(want) {
		t.Fatalf("expected execution order %v, got %v", want, env.execOrder)
	}
	for i, name := range want {
		if env.execOrder[i] != name {
			t.Errorf("step %d: expected %s, got %s", i, name, env.execOrder[i])
		}
	}
}

func TestWorkflow_DiamondUnlocksAfterBothBranches(t *testing.T) {
	env := newTestEnv(t)

	def := &domain.WorkflowDefinition{
		ID:   "diamond",
		Name: "diamond",
		Tasks: []domain.TaskTemplate{
			{Name: "root", Type: "noop"},
			{Name: "left", Type: "noop"},
			{Name: "right", Type: "noop"},
			{Name: "join", Type: "noop"},
		},
		Dependencies: map[string][]string{
			"left":  {"root"},
			"right": {"root"},
			"join":  {"left", "right"},
		},
		Strategy: domain.StrategyDependencyAware,
	}
	if err := env.scheduler.RegisterWorkflow(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	id, err := env.scheduler.StartWorkflow("diamond", nil)
	if err != nil {
		t.Fatalf("start workflow: %v", err)
	}
	env.waitInstance(t, id, domain.InstanceStatusCompleted)

	env.mu.Lock()
	defer env.mu.Unlock()
	if len(env.execOrder) != 4 {
		t.Fatalf("expected 4 executions, got %v", env.execOrder)
	}
	if env.execOrder[0] != "diamond/root" {
		t.Errorf("root must execute first, got %v", env.execOrder)
	}
	if env.execOrder[3] != "diamond/join" {
		t.Errorf("join must execute last, got %v", env.execOrder)
	}
}

func TestWorkflow_FailureFailsInstance(t *testing.T) {
	env := newTestEnv(t)

	if err := env.scheduler.RegisterWorkflow(linearDefinition("failing")); err != nil {
		t.Fatalf("register: %v", err)
	}
	// validate падает без бюджета повторов
	env.mu.Lock()
	env.failures["failing/validate"] = 1
	env.mu.Unlock()

	id, err := env.scheduler.StartWorkflow("failing", nil)
	if err != nil {
		t.Fatalf("start workflow: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		env.scheduler.Tick()
		instance, _ := env.scheduler.GetInstance(id)
		if instance.Status == domain.InstanceStatusFailed {
			// score не должен был создаться: его зависимость не завершилась
			if _, created := instance.TaskInstances["score"]; created {
				t.Error("downstream step must not be created after failure")
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("instance did not fail in time")
}

func TestWorkflow_RetryBudgetRecovers(t *testing.T) {
	env := newTestEnv(t)

	def := linearDefinition("retrying")
	def.Tasks[1].MaxRetries = 2
	if err := env.scheduler.RegisterWorkflow(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	// validate падает дважды, третья попытка успешна
	env.mu.Lock()
	env.failures["retrying/validate"] = 2
	env.mu.Unlock()

	id, err := env.scheduler.StartWorkflow("retrying", nil)
	if err != nil {
		t.Fatalf("start workflow: %v", err)
	}
	instance := env.waitInstance(t, id, domain.InstanceStatusCompleted)

	task, err := env.tasks.Get(instance.TaskInstances["validate"])
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if task.RetryCount != 2 {
		t.Errorf("expected 2 retries, got %d", task.RetryCount)
	}
}

func TestWorkflow_Cancel(t *testing.T) {
	env := newTestEnv(t)

	def := &domain.WorkflowDefinition{
		ID:       "long",
		Name:     "long",
		Tasks:    []domain.TaskTemplate{{Name: "work", Type: "slow"}},
		Strategy: domain.StrategyDependencyAware,
	}
	if err := env.scheduler.RegisterWorkflow(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	id, err := env.scheduler.StartWorkflow("long", nil)
	if err != nil {
		t.Fatalf("start workflow: %v", err)
	}
	env.waitInstance(t, id, domain.InstanceStatusRunning)

	if _, err := env.scheduler.CancelWorkflow(id); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	instance, _ := env.scheduler.GetInstance(id)
	if instance.Status != domain.InstanceStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", instance.Status)
	}

	// Повторная отмена — ошибка
	if _, err := env.scheduler.CancelWorkflow(id); !errors.Is(err, ErrInstanceFinished) {
		t.Errorf("expected ErrInstanceFinished, got %v", err)
	}
}

func TestWorkflow_CancelledStepDoesNotFailInstance(t *testing.T) {
	env := newTestEnv(t)

	def := &domain.WorkflowDefinition{
		ID:   "partial",
		Name: "partial",
		Tasks: []domain.TaskTemplate{
			{Name: "first", Type: "slow"},
			{Name: "second", Type: "noop"},
		},
		Dependencies: map[string][]string{"second": {"first"}},
		Strategy:     domain.StrategyDependencyAware,
	}
	if err := env.scheduler.RegisterWorkflow(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	id, err := env.scheduler.StartWorkflow("partial", nil)
	if err != nil {
		t.Fatalf("start workflow: %v", err)
	}
	instance := env.waitInstance(t, id, domain.InstanceStatusRunning)
	firstID := instance.TaskInstances["first"]

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if task, _ := env.tasks.Get(firstID); task.Status == domain.TaskStatusRunning {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Отменяем один task через действие менеджера: шаг терминален,
	// но не FAILED — instance продолжается и завершается успешно
	if err := env.tasks.ExecuteAction(firstID, taskmgr.ActionCancel); err != nil {
		t.Fatalf("cancel task: %v", err)
	}

	env.waitInstance(t, id, domain.InstanceStatusCompleted)

	env.mu.Lock()
	defer env.mu.Unlock()
	ran := false
	for _, name := range env.execOrder {
		if name == "partial/second" {
			ran = true
		}
	}
	if !ran {
		t.Error("dependent step must run after a cancelled predecessor")
	}
}

func TestAdmission_ConcurrencyCap(t *testing.T) {
	env := newTestEnv(t)
	env.scheduler.maxConcurrentWorkflows = 1

	def := &domain.WorkflowDefinition{
		ID:       "slowwf",
		Name:     "slowwf",
		Tasks:    []domain.TaskTemplate{{Name: "work", Type: "slow"}},
		Strategy: domain.StrategyDependencyAware,
	}
	if err := env.scheduler.RegisterWorkflow(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	first, _ := env.scheduler.StartWorkflow("slowwf", nil)
	second, _ := env.scheduler.StartWorkflow("slowwf", nil)

	env.waitInstance(t, first, domain.InstanceStatusRunning)
	env.scheduler.Tick()

	instance, _ := env.scheduler.GetInstance(second)
	if instance.Status != domain.InstanceStatusPending {
		t.Errorf("second instance must wait for admission, got %s", instance.Status)
	}

	// Завершаем первый — второй допускается
	if _, err := env.scheduler.CancelWorkflow(first); err != nil {
		t.Fatalf("cancel first: %v", err)
	}
	env.waitInstance(t, second, domain.InstanceStatusRunning)
}

func TestScheduler_MaxParallelTasksRespected(t *testing.T) {
	env := newTestEnv(t)

	def := &domain.WorkflowDefinition{
		ID:   "wide",
		Name: "wide",
		Tasks: []domain.TaskTemplate{
			{Name: "a", Type: "slow"},
			{Name: "b", Type: "slow"},
			{Name: "c", Type: "slow"},
		},
		Strategy:         domain.StrategyDependencyAware,
		MaxParallelTasks: 2,
	}
	if err := env.scheduler.RegisterWorkflow(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	id, _ := env.scheduler.StartWorkflow("wide", nil)
	instance := env.waitInstance(t, id, domain.InstanceStatusRunning)

	if len(instance.TaskInstances) != 2 {
		t.Errorf("expected 2 tasks created under MaxParallelTasks=2, got %d",
			len(instance.TaskInstances))
	}
}
