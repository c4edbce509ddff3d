package taskmgr

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Dirigent/internal/domain"
)

// newTestManager создаёт Manager с заданными executor'ами и запускает его.
func newTestManager(t *testing.T, maxConcurrent int, executors map[string]Executor) *Manager {
	t.Helper()

	registry := NewRegistry()
	for taskType, executor := range executors {
		registry.Register(taskType, executor)
	}

	m := New(Config{
		Registry:      registry,
		MaxConcurrent: maxConcurrent,
		PollInterval:  5 * time.Millisecond,
	})

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start manager: %v", err)
	}
	t.Cleanup(func() { _ = m.Stop(ctx) })

	return m
}

// waitForStatus ждёт, пока task не перейдёт в ожидаемый статус.
func waitForStatus(t *testing.T, m *Manager, id uuid.UUID, want domain.TaskStatus) domain.Task {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		task, err := m.Get(id)
		if err != nil {
			t.Fatalf("get task: %v", err)
		}
		if task.Status == want {
			return task
		}
		time.Sleep(5 * time.Millisecond)
	}

	task, _ := m.Get(id)
	t.Fatalf("task %s stuck in %s, want %s", id, task.Status, want)
	return domain.Task{}
}

// echoExecutor сразу завершается с результатом.
func echoExecutor(ctx context.Context, task *domain.Task, progress ProgressFunc) (map[string]any, error) {
	progress(50)
	return map[string]any{"echo": task.Config["value"]}, nil
}

// failExecutor всегда падает.
func failExecutor(ctx context.Context, task *domain.Task, progress ProgressFunc) (map[string]any, error) {
	return nil, errors.New("executor exploded")
}

// blockExecutor висит до отмены ctx.
func blockExecutor(ctx context.Context, task *domain.Task, progress ProgressFunc) (map[string]any, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestManager_CreateAndComplete(t *testing.T) {
	m := newTestManager(t, 2, map[string]Executor{"echo": ExecutorFunc(echoExecutor)})

	task, err := m.Create(TaskSpec{
		Name:   "hello",
		Type:   "echo",
		Config: map[string]any{"value": "world"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Status != domain.TaskStatusPending {
		t.Errorf("expected PENDING, got %s", task.Status)
	}

	done := waitForStatus(t, m, task.ID, domain.TaskStatusCompleted)
	if done.Result["echo"] != "world" {
		t.Errorf("unexpected result: %v", done.Result)
	}
	if done.Progress != 100 {
		t.Errorf("expected progress 100, got %d", done.Progress)
	}
	if done.StartedAt == nil || done.FinishedAt == nil {
		t.Error("timestamps must be recorded")
	}
}

func TestManager_CreateUnknownType(t *testing.T) {
	m := newTestManager(t, 1, nil)

	_, err := m.Create(TaskSpec{Name: "x", Type: "nope"})
	if !errors.Is(err, ErrUnknownTaskType) {
		t.Errorf("expected ErrUnknownTaskType, got %v", err)
	}
}

func TestManager_ExecutorFailure(t *testing.T) {
	m := newTestManager(t, 1, map[string]Executor{"fail": ExecutorFunc(failExecutor)})

	task, _ := m.Create(TaskSpec{Name: "boom", Type: "fail", MaxRetries: 2})
	failed := waitForStatus(t, m, task.ID, domain.TaskStatusFailed)

	if failed.Error != "executor exploded" {
		t.Errorf("unexpected error message: %s", failed.Error)
	}
}

func TestManager_RetrySemantics(t *testing.T) {
	m := newTestManager(t, 1, map[string]Executor{"fail": ExecutorFunc(failExecutor)})

	task, _ := m.Create(TaskSpec{Name: "boom", Type: "fail", MaxRetries: 2})
	waitForStatus(t, m, task.ID, domain.TaskStatusFailed)

	// Первый retry
	if err := m.ExecuteAction(task.ID, ActionRetry); err != nil {
		t.Fatalf("retry 1: %v", err)
	}
	waitForStatus(t, m, task.ID, domain.TaskStatusFailed)

	// Второй retry
	if err := m.ExecuteAction(task.ID, ActionRetry); err != nil {
		t.Fatalf("retry 2: %v", err)
	}
	failed := waitForStatus(t, m, task.ID, domain.TaskStatusFailed)

	if failed.RetryCount != 2 {
		t.Errorf("expected retry_count 2, got %d", failed.RetryCount)
	}
	if failed.CanRetry() {
		t.Error("CanRetry must be false once retry_count equals max_retries")
	}

	// Третий retry отклоняется
	if err := m.ExecuteAction(task.ID, ActionRetry); !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("expected ErrRetryExhausted, got %v", err)
	}
}

func TestManager_CancelRunning(t *testing.T) {
	m := newTestManager(t, 1, map[string]Executor{"block": ExecutorFunc(blockExecutor)})

	task, _ := m.Create(TaskSpec{Name: "stuck", Type: "block"})
	waitForStatus(t, m, task.ID, domain.TaskStatusRunning)

	if err := m.ExecuteAction(task.ID, ActionCancel); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	cancelled := waitForStatus(t, m, task.ID, domain.TaskStatusCancelled)
	if cancelled.FinishedAt == nil {
		t.Error("cancelled task must have finished_at")
	}

	// Повторная отмена недопустима
	if err := m.ExecuteAction(task.ID, ActionCancel); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestManager_PauseResume(t *testing.T) {
	m := newTestManager(t, 1, map[string]Executor{"block": ExecutorFunc(blockExecutor)})

	task, _ := m.Create(TaskSpec{Name: "pausable", Type: "block"})
	waitForStatus(t, m, task.ID, domain.TaskStatusRunning)

	if err := m.ExecuteAction(task.ID, ActionPause); err != nil {
		t.Fatalf("pause: %v", err)
	}
	waitForStatus(t, m, task.ID, domain.TaskStatusPaused)

	// PAUSED → PENDING — единственное обратное ребро
	if err := m.ExecuteAction(task.ID, ActionResume); err != nil {
		t.Fatalf("resume: %v", err)
	}
	waitForStatus(t, m, task.ID, domain.TaskStatusRunning)

	// pause из PENDING недопустим
	held, _ := m.Create(TaskSpec{Name: "held", Type: "block", Hold: true})
	if err := m.ExecuteAction(held.ID, ActionPause); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for pause from PENDING, got %v", err)
	}
}

func TestManager_HoldAndStart(t *testing.T) {
	m := newTestManager(t, 1, map[string]Executor{"echo": ExecutorFunc(echoExecutor)})

	task, _ := m.Create(TaskSpec{Name: "held", Type: "echo", Hold: true})

	// Held task не выполняется сам по себе
	time.Sleep(50 * time.Millisecond)
	got, _ := m.Get(task.ID)
	if got.Status != domain.TaskStatusPending {
		t.Fatalf("held task must stay PENDING, got %s", got.Status)
	}

	if err := m.ExecuteAction(task.ID, ActionStart); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForStatus(t, m, task.ID, domain.TaskStatusCompleted)
}

func TestManager_ScheduledTaskWaits(t *testing.T) {
	m := newTestManager(t, 1, map[string]Executor{"echo": ExecutorFunc(echoExecutor)})

	scheduledAt := time.Now().Add(80 * time.Millisecond)
	task, _ := m.Create(TaskSpec{Name: "later", Type: "echo", ScheduledAt: &scheduledAt})

	time.Sleep(30 * time.Millisecond)
	got, _ := m.Get(task.ID)
	if got.Status != domain.TaskStatusPending {
		t.Fatalf("scheduled task ran too early: %s", got.Status)
	}

	waitForStatus(t, m, task.ID, domain.TaskStatusCompleted)
}

func TestManager_ConcurrencyBound(t *testing.T) {
	const maxConcurrent = 3

	var current, peak int64
	var mu sync.Mutex

	counting := ExecutorFunc(func(ctx context.Context, task *domain.Task, progress ProgressFunc) (map[string]any, error) {
		n := atomic.AddInt64(&current, 1)
		mu.Lock()
		if n > peak {
			peak = n
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)
		atomic.AddInt64(&current, -1)
		return nil, nil
	})

	m := newTestManager(t, maxConcurrent, map[string]Executor{"count": counting})

	ids := make([]uuid.UUID, 0, 12)
	for i := 0; i < 12; i++ {
		task, err := m.Create(TaskSpec{Name: "c", Type: "count"})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, task.ID)
	}

	for _, id := range ids {
		waitForStatus(t, m, id, domain.TaskStatusCompleted)
	}

	mu.Lock()
	defer mu.Unlock()
	if peak > maxConcurrent {
		t.Errorf("concurrency ceiling exceeded: peak %d > max %d", peak, maxConcurrent)
	}
}

func TestManager_ExecutorPanicIsolated(t *testing.T) {
	panicking := ExecutorFunc(func(ctx context.Context, task *domain.Task, progress ProgressFunc) (map[string]any, error) {
		panic("kaboom")
	})

	m := newTestManager(t, 1, map[string]Executor{
		"panic": panicking,
		"echo":  ExecutorFunc(echoExecutor),
	})

	bad, _ := m.Create(TaskSpec{Name: "bad", Type: "panic"})
	good, _ := m.Create(TaskSpec{Name: "good", Type: "echo"})

	failed := waitForStatus(t, m, bad.ID, domain.TaskStatusFailed)
	if failed.Error == "" {
		t.Error("panic must be converted to error message")
	}

	// Соседний task не пострадал
	waitForStatus(t, m, good.ID, domain.TaskStatusCompleted)
}

func TestManager_ExecuteBatch(t *testing.T) {
	m := newTestManager(t, 1, map[string]Executor{"echo": ExecutorFunc(echoExecutor)})

	a, _ := m.Create(TaskSpec{Name: "a", Type: "echo"})
	waitForStatus(t, m, a.ID, domain.TaskStatusCompleted)

	missing := uuid.New()
	results := m.ExecuteBatch([]uuid.UUID{a.ID, missing}, ActionCancel)

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	// Отмена завершённого — ошибка, но batch не прерывается
	if results[0].OK {
		t.Error("cancel of completed task must fail")
	}
	if results[1].OK {
		t.Error("cancel of missing task must fail")
	}
	if results[1].Error == "" {
		t.Error("error message expected for missing task")
	}
}

func TestManager_StatsCached(t *testing.T) {
	registry := NewRegistry()
	registry.Register("echo", ExecutorFunc(echoExecutor))

	m := New(Config{Registry: registry, StatsTTL: time.Hour})

	_, _ = m.Create(TaskSpec{Name: "a", Type: "echo", Hold: true})
	first := m.Stats()
	if first.Total != 1 {
		t.Fatalf("expected 1 task, got %d", first.Total)
	}

	// Новый task не виден, пока кэш жив
	_, _ = m.Create(TaskSpec{Name: "b", Type: "echo", Hold: true})
	cached := m.Stats()
	if cached.Total != 1 {
		t.Errorf("expected cached stats, got total %d", cached.Total)
	}
	if !cached.ComputedAt.Equal(first.ComputedAt) {
		t.Error("expected same computed_at from cache")
	}
}

func TestManager_ListFilter(t *testing.T) {
	registry := NewRegistry()
	registry.Register("echo", ExecutorFunc(echoExecutor))
	registry.Register("fail", ExecutorFunc(failExecutor))

	m := New(Config{Registry: registry})

	_, _ = m.Create(TaskSpec{Name: "a", Type: "echo", Hold: true})
	_, _ = m.Create(TaskSpec{Name: "b", Type: "fail", Hold: true})
	_, _ = m.Create(TaskSpec{Name: "c", Type: "echo", Hold: true})

	echos := m.List(Filter{Type: "echo"})
	if len(echos) != 2 {
		t.Errorf("expected 2 echo tasks, got %d", len(echos))
	}

	pending := domain.TaskStatusPending
	all := m.List(Filter{Status: &pending})
	if len(all) != 3 {
		t.Errorf("expected 3 pending tasks, got %d", len(all))
	}

	limited := m.List(Filter{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("expected 1 task with limit, got %d", len(limited))
	}
	if limited[0].Name != "a" {
		t.Errorf("expected oldest task first, got %s", limited[0].Name)
	}
}
