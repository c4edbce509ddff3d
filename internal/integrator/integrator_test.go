package integrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/Dirigent/internal/domain"
)

// fakeComponent — тестовый компонент, записывающий порядок вызовов.
type fakeComponent struct {
	name     string
	log      *callLog
	startErr error
	stopErr  error
	probeErr error
}

type callLog struct {
	mu      sync.Mutex
	started []string
	stopped []string
}

func (l *callLog) start(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = append(l.started, name)
}

func (l *callLog) stop(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = append(l.stopped, name)
}

func (c *fakeComponent) Start(_ context.Context) error {
	if c.startErr != nil {
		return c.startErr
	}
	c.log.start(c.name)
	return nil
}

func (c *fakeComponent) Stop(_ context.Context) error {
	c.log.stop(c.name)
	return c.stopErr
}

func (c *fakeComponent) HealthCheck(_ context.Context) error {
	return c.probeErr
}

func indexOf(list []string, name string) int {
	for i, n := range list {
		if n == name {
			return i
		}
	}
	return -1
}

func TestIntegrator_RegisterDuplicate(t *testing.T) {
	in := New(Config{})
	log := &callLog{}

	if err := in.Register("db", &fakeComponent{name: "db", log: log}); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := in.Register("db", &fakeComponent{name: "db", log: log})
	if !errors.Is(err, ErrDuplicateComponent) {
		t.Errorf("expected ErrDuplicateComponent, got %v", err)
	}
}

func TestIntegrator_StartOrderFollowsDependencies(t *testing.T) {
	in := New(Config{})
	log := &callLog{}

	// api зависит от scheduler, scheduler от taskmgr, taskmgr от store
	_ = in.Register("api", &fakeComponent{name: "api", log: log}, "scheduler")
	_ = in.Register("store", &fakeComponent{name: "store", log: log})
	_ = in.Register("scheduler", &fakeComponent{name: "scheduler", log: log}, "taskmgr", "store")
	_ = in.Register("taskmgr", &fakeComponent{name: "taskmgr", log: log}, "store")

	ctx := context.Background()
	if err := in.StartAll(ctx); err != nil {
		t.Fatalf("start all: %v", err)
	}
	defer in.StopAll(ctx)

	log.mu.Lock()
	started := append([]string(nil), log.started...)
	log.mu.Unlock()

	if len(started) != 4 {
		t.Fatalf("expected 4 components started, got %v", started)
	}

	// Каждый компонент — после всех своих зависимостей
	if indexOf(started, "store") > indexOf(started, "taskmgr") {
		t.Errorf("store must start before taskmgr: %v", started)
	}
	if indexOf(started, "taskmgr") > indexOf(started, "scheduler") {
		t.Errorf("taskmgr must start before scheduler: %v", started)
	}
	if indexOf(started, "scheduler") > indexOf(started, "api") {
		t.Errorf("scheduler must start before api: %v", started)
	}
}

func TestIntegrator_CycleFailsBeforeStarting(t *testing.T) {
	in := New(Config{})
	log := &callLog{}

	_ = in.Register("a", &fakeComponent{name: "a", log: log}, "b")
	_ = in.Register("b", &fakeComponent{name: "b", log: log}, "c")
	_ = in.Register("c", &fakeComponent{name: "c", log: log}, "a")

	err := in.StartAll(context.Background())
	if !errors.Is(err, ErrCyclicDependency) {
		t.Fatalf("expected ErrCyclicDependency, got %v", err)
	}

	log.mu.Lock()
	defer log.mu.Unlock()
	if len(log.started) != 0 {
		t.Errorf("nothing must start on cycle, started: %v", log.started)
	}
}

func TestIntegrator_UnknownDependency(t *testing.T) {
	in := New(Config{})
	log := &callLog{}

	_ = in.Register("a", &fakeComponent{name: "a", log: log}, "ghost")

	err := in.StartAll(context.Background())
	if !errors.Is(err, ErrUnknownDependency) {
		t.Errorf("expected ErrUnknownDependency, got %v", err)
	}
}

func TestIntegrator_StartFailureAbortsWithoutRollback(t *testing.T) {
	in := New(Config{})
	log := &callLog{}

	boom := errors.New("no disk")
	_ = in.Register("store", &fakeComponent{name: "store", log: log})
	_ = in.Register("taskmgr", &fakeComponent{name: "taskmgr", log: log, startErr: boom}, "store")
	_ = in.Register("scheduler", &fakeComponent{name: "scheduler", log: log}, "taskmgr")

	err := in.StartAll(context.Background())
	if !errors.Is(err, ErrComponentStartFailed) {
		t.Fatalf("expected ErrComponentStartFailed, got %v", err)
	}

	log.mu.Lock()
	started := append([]string(nil), log.started...)
	stopped := append([]string(nil), log.stopped...)
	log.mu.Unlock()

	// store запущен и НЕ откатывается; scheduler не стартовал
	if len(started) != 1 || started[0] != "store" {
		t.Errorf("expected only store started, got %v", started)
	}
	if len(stopped) != 0 {
		t.Errorf("no rollback expected, stopped: %v", stopped)
	}

	if status, _ := in.ComponentStatus("taskmgr"); status != domain.ComponentStatusError {
		t.Errorf("failed component must be ERROR, got %s", status)
	}
	if status, _ := in.ComponentStatus("scheduler"); status != domain.ComponentStatusInactive {
		t.Errorf("never-started component must be INACTIVE, got %s", status)
	}
}

func TestIntegrator_StopAllReverseBestEffort(t *testing.T) {
	in := New(Config{})
	log := &callLog{}

	_ = in.Register("store", &fakeComponent{name: "store", log: log})
	_ = in.Register("taskmgr", &fakeComponent{name: "taskmgr", log: log, stopErr: errors.New("flush failed")}, "store")
	_ = in.Register("scheduler", &fakeComponent{name: "scheduler", log: log}, "taskmgr")

	ctx := context.Background()
	if err := in.StartAll(ctx); err != nil {
		t.Fatalf("start all: %v", err)
	}
	in.StopAll(ctx)

	log.mu.Lock()
	stopped := append([]string(nil), log.stopped...)
	log.mu.Unlock()

	// Ошибка taskmgr.Stop не прерывает остановку store
	if len(stopped) != 3 {
		t.Fatalf("expected all 3 components stopped, got %v", stopped)
	}
	if indexOf(stopped, "scheduler") > indexOf(stopped, "taskmgr") ||
		indexOf(stopped, "taskmgr") > indexOf(stopped, "store") {
		t.Errorf("stop order must be reverse of start: %v", stopped)
	}

	if in.IsRunning() {
		t.Error("integrator must not be running after StopAll")
	}
}

func TestIntegrator_HealthCheckTransitionsToError(t *testing.T) {
	in := New(Config{HealthInterval: 10 * time.Millisecond})
	log := &callLog{}

	comp := &fakeComponent{name: "flaky", log: log}
	_ = in.Register("flaky", comp)

	var events []Event
	var eventsMu sync.Mutex
	in.Bus().Subscribe(EventComponentError, func(e Event) {
		eventsMu.Lock()
		events = append(events, e)
		eventsMu.Unlock()
	})

	ctx := context.Background()
	if err := in.StartAll(ctx); err != nil {
		t.Fatalf("start all: %v", err)
	}
	defer in.StopAll(ctx)

	// Ломаем probe
	comp.probeErr = errors.New("degraded")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if status, _ := in.ComponentStatus("flaky"); status == domain.ComponentStatusError {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if status, _ := in.ComponentStatus("flaky"); status != domain.ComponentStatusError {
		t.Fatalf("expected ERROR after failed probe, got %s", status)
	}

	// Чиним probe — компонент возвращается в ACTIVE
	comp.probeErr = nil
	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if status, _ := in.ComponentStatus("flaky"); status == domain.ComponentStatusActive {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if status, _ := in.ComponentStatus("flaky"); status != domain.ComponentStatusActive {
		t.Errorf("expected recovery to ACTIVE, got %s", status)
	}

	eventsMu.Lock()
	defer eventsMu.Unlock()
	if len(events) == 0 {
		t.Error("expected ComponentError event")
	}
}

func TestIntegrator_SystemStatusCounts(t *testing.T) {
	in := New(Config{})
	log := &callLog{}

	_ = in.Register("a", &fakeComponent{name: "a", log: log})
	_ = in.Register("b", &fakeComponent{name: "b", log: log})

	status := in.SystemStatus()
	if status.Running {
		t.Error("not running before StartAll")
	}
	if len(status.Components) != 2 {
		t.Errorf("expected 2 components, got %d", len(status.Components))
	}

	ctx := context.Background()
	if err := in.StartAll(ctx); err != nil {
		t.Fatalf("start all: %v", err)
	}
	defer in.StopAll(ctx)

	status = in.SystemStatus()
	if !status.Running {
		t.Error("expected running")
	}
	if status.ActiveCount != 2 {
		t.Errorf("expected 2 active, got %d", status.ActiveCount)
	}
	if status.ErrorCount != 0 {
		t.Errorf("expected 0 errors, got %d", status.ErrorCount)
	}
}

func TestBus_HandlerPanicIsolated(t *testing.T) {
	bus := NewBus(nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		bus.Run(ctx)
		close(done)
	}()

	received := make(chan Event, 1)
	bus.Subscribe(EventComponentStarted, func(Event) { panic("handler bug") })
	bus.Subscribe(EventComponentStarted, func(e Event) { received <- e })

	bus.Publish(Event{Kind: EventComponentStarted, Component: "x"})

	select {
	case e := <-received:
		if e.Component != "x" {
			t.Errorf("unexpected event: %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("second handler not invoked after first panicked")
	}

	cancel()
	<-done
}
