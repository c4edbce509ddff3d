package integrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Dirigent/internal/domain"
	"github.com/shaiso/Dirigent/internal/engine"
)

// Default configuration values.
const (
	defaultHealthInterval = 30 * time.Second
	defaultProbeTimeout   = 5 * time.Second
)

// Component — управляемый компонент системы.
type Component interface {
	// Start запускает компонент. Блокирующие операции — через ctx.
	Start(ctx context.Context) error

	// Stop останавливает компонент.
	Stop(ctx context.Context) error
}

// HealthChecker — опциональный health probe компонента.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// MetricsProvider — опциональный поставщик метрик для system status.
type MetricsProvider interface {
	Metrics() map[string]any
}

// managed — компонент с учётным состоянием интегратора.
type managed struct {
	name            string
	instance        Component
	status          domain.ComponentStatus
	deps            []string
	errorCount      int
	lastError       error
	lastHealthCheck time.Time
}

// ComponentInfo — снимок состояния компонента для system status.
type ComponentInfo struct {
	Name            string                 `json:"name"`
	Status          domain.ComponentStatus `json:"status"`
	Dependencies    []string               `json:"dependencies,omitempty"`
	ErrorCount      int                    `json:"error_count"`
	LastError       string                 `json:"last_error,omitempty"`
	LastHealthCheck *time.Time             `json:"last_health_check,omitempty"`
	Metrics         map[string]any         `json:"metrics,omitempty"`
}

// SystemStatus — агрегированный снимок состояния системы.
type SystemStatus struct {
	Running     bool                     `json:"running"`
	Components  map[string]ComponentInfo `json:"components"`
	ActiveCount int                      `json:"active_count"`
	ErrorCount  int                      `json:"error_count"`
	Time        time.Time                `json:"time"`
}

// Integrator управляет жизненным циклом компонентов.
//
// Integrator:
//   - Регистрирует именованные компоненты с зависимостями
//   - Запускает их в топологическом порядке (зависимости раньше)
//   - Останавливает в обратном порядке, best-effort
//   - Периодически опрашивает health probes
//   - Раздаёт события через типизированную шину
type Integrator struct {
	mu         sync.RWMutex
	components map[string]*managed

	// startOrder — порядок, вычисленный последним StartAll.
	// StopAll идёт по нему в обратную сторону.
	startOrder []string

	bus            *Bus
	healthInterval time.Duration
	probeTimeout   time.Duration
	logger         *slog.Logger

	running    bool
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Integrator.
type Config struct {
	// HealthInterval — период health loop (default: 30s).
	HealthInterval time.Duration

	// ProbeTimeout — таймаут одного health probe (default: 5s).
	ProbeTimeout time.Duration

	// Logger — логгер (default: slog.Default()).
	Logger *slog.Logger
}

// New создаёт новый Integrator.
func New(cfg Config) *Integrator {
	healthInterval := cfg.HealthInterval
	if healthInterval <= 0 {
		healthInterval = defaultHealthInterval
	}

	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Integrator{
		components:     make(map[string]*managed),
		bus:            NewBus(logger),
		healthInterval: healthInterval,
		probeTimeout:   probeTimeout,
		logger:         logger,
	}
}

// Bus возвращает шину событий.
func (in *Integrator) Bus() *Bus {
	return in.bus
}

// Register регистрирует компонент с зависимостями.
// Имя должно быть уникальным. Зависимости проверяются при StartAll.
func (in *Integrator) Register(name string, instance Component, deps ...string) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if _, exists := in.components[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateComponent, name)
	}

	in.components[name] = &managed{
		name:     name,
		instance: instance,
		status:   domain.ComponentStatusInactive,
		deps:     deps,
	}

	in.logger.Debug("component registered", "component", name, "deps", deps)
	return nil
}

// StartAll запускает все компоненты в топологическом порядке.
//
// Цикл в графе зависимостей — конфигурационная ошибка: обнаруживается
// до запуска чего-либо. Ошибка старта компонента прерывает
// последовательность; уже запущенные компоненты НЕ откатываются —
// вызывающий решает, звать ли StopAll.
func (in *Integrator) StartAll(ctx context.Context) error {
	in.mu.Lock()
	if in.running {
		in.mu.Unlock()
		return ErrAlreadyRunning
	}

	order, err := in.resolveOrder()
	if err != nil {
		in.mu.Unlock()
		return err
	}
	in.startOrder = order
	in.mu.Unlock()

	// Шина и health loop живут до StopAll
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	in.cancelFunc = cancel

	in.wg.Add(1)
	go func() {
		defer in.wg.Done()
		in.bus.Run(runCtx)
	}()

	in.logger.Info("starting components", "order", order)

	for _, name := range order {
		if err := in.startComponent(ctx, name); err != nil {
			// Прерываем запуск; уже стартовавшие остаются работать
			return err
		}
	}

	in.wg.Add(1)
	go func() {
		defer in.wg.Done()
		in.healthLoop(runCtx)
	}()

	in.mu.Lock()
	in.running = true
	in.mu.Unlock()

	in.logger.Info("all components started", "count", len(order))
	return nil
}

// resolveOrder строит топологический порядок запуска.
// Вызывается под in.mu.
func (in *Integrator) resolveOrder() ([]string, error) {
	g := engine.NewGraph()

	for name := range in.components {
		if err := g.AddNode(name); err != nil {
			return nil, err
		}
	}
	for name, comp := range in.components {
		for _, dep := range comp.deps {
			if _, exists := in.components[dep]; !exists {
				return nil, fmt.Errorf("%w: %s -> %s", ErrUnknownDependency, name, dep)
			}
			if err := g.AddEdge(name, dep); err != nil {
				return nil, err
			}
		}
	}

	order, err := g.TopoSort()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCyclicDependency, err)
	}
	return order, nil
}

// startComponent запускает один компонент.
func (in *Integrator) startComponent(ctx context.Context, name string) error {
	in.mu.Lock()
	comp := in.components[name]
	comp.status = domain.ComponentStatusStarting
	instance := comp.instance
	in.mu.Unlock()

	in.logger.Info("starting component", "component", name)

	if err := instance.Start(ctx); err != nil {
		in.mu.Lock()
		comp.status = domain.ComponentStatusError
		comp.lastError = err
		comp.errorCount++
		in.mu.Unlock()

		in.bus.Publish(Event{Kind: EventComponentError, Component: name, Err: err})
		in.logger.Error("component start failed", "component", name, "error", err)

		return fmt.Errorf("%w: %s: %v", ErrComponentStartFailed, name, err)
	}

	in.mu.Lock()
	comp.status = domain.ComponentStatusActive
	in.mu.Unlock()

	in.bus.Publish(Event{Kind: EventComponentStarted, Component: name})
	in.logger.Info("component started", "component", name)
	return nil
}

// StopAll останавливает компоненты в обратном порядке.
//
// Best-effort: ошибка остановки логируется, цикл продолжается.
func (in *Integrator) StopAll(ctx context.Context) {
	in.mu.Lock()
	order := make([]string, len(in.startOrder))
	copy(order, in.startOrder)
	in.running = false
	in.mu.Unlock()

	in.logger.Info("stopping components...")

	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]

		in.mu.Lock()
		comp := in.components[name]
		if comp.status != domain.ComponentStatusActive && comp.status != domain.ComponentStatusError {
			in.mu.Unlock()
			continue
		}
		comp.status = domain.ComponentStatusStopping
		instance := comp.instance
		in.mu.Unlock()

		if err := instance.Stop(ctx); err != nil {
			in.logger.Error("component stop failed, continuing", "component", name, "error", err)
		}

		in.mu.Lock()
		comp.status = domain.ComponentStatusInactive
		in.mu.Unlock()

		in.bus.Publish(Event{Kind: EventComponentStopped, Component: name})
		in.logger.Info("component stopped", "component", name)
	}

	// Останавливаем health loop и шину
	if in.cancelFunc != nil {
		in.cancelFunc()
	}
	in.wg.Wait()

	in.logger.Info("all components stopped")
}

// healthLoop периодически опрашивает health probes компонентов.
func (in *Integrator) healthLoop(ctx context.Context) {
	ticker := time.NewTicker(in.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			in.checkHealth(ctx)
		}
	}
}

// checkHealth выполняет один проход health probes.
//
// Отрицательный probe переводит ACTIVE компонент в ERROR.
// Успешный probe возвращает ERROR компонент в ACTIVE.
func (in *Integrator) checkHealth(ctx context.Context) {
	in.mu.RLock()
	names := make([]string, 0, len(in.components))
	for name := range in.components {
		names = append(names, name)
	}
	in.mu.RUnlock()

	for _, name := range names {
		in.mu.RLock()
		comp := in.components[name]
		status := comp.status
		instance := comp.instance
		in.mu.RUnlock()

		checker, ok := instance.(HealthChecker)
		if !ok {
			continue
		}
		if status != domain.ComponentStatusActive && status != domain.ComponentStatusError {
			continue
		}

		probeCtx, cancel := context.WithTimeout(ctx, in.probeTimeout)
		err := checker.HealthCheck(probeCtx)
		cancel()

		in.mu.Lock()
		comp.lastHealthCheck = time.Now()
		if err != nil {
			comp.errorCount++
			comp.lastError = err
			wasActive := comp.status == domain.ComponentStatusActive
			comp.status = domain.ComponentStatusError
			in.mu.Unlock()

			if wasActive {
				in.bus.Publish(Event{Kind: EventComponentError, Component: name, Err: err})
			}
			in.logger.Warn("health check failed", "component", name, "error", err)
			continue
		}
		if comp.status == domain.ComponentStatusError {
			comp.status = domain.ComponentStatusActive
			in.logger.Info("component recovered", "component", name)
		}
		in.mu.Unlock()
	}
}

// SystemStatus возвращает агрегированный снимок состояния системы.
func (in *Integrator) SystemStatus() SystemStatus {
	in.mu.RLock()
	defer in.mu.RUnlock()

	status := SystemStatus{
		Running:    in.running,
		Components: make(map[string]ComponentInfo, len(in.components)),
		Time:       time.Now(),
	}

	for name, comp := range in.components {
		info := ComponentInfo{
			Name:         name,
			Status:       comp.status,
			Dependencies: comp.deps,
			ErrorCount:   comp.errorCount,
		}
		if comp.lastError != nil {
			info.LastError = comp.lastError.Error()
		}
		if !comp.lastHealthCheck.IsZero() {
			t := comp.lastHealthCheck
			info.LastHealthCheck = &t
		}
		if provider, ok := comp.instance.(MetricsProvider); ok {
			info.Metrics = provider.Metrics()
		}

		status.Components[name] = info

		switch comp.status {
		case domain.ComponentStatusActive:
			status.ActiveCount++
		case domain.ComponentStatusError:
			status.ErrorCount++
		}
	}

	return status
}

// ComponentStatus возвращает статус одного компонента.
func (in *Integrator) ComponentStatus(name string) (domain.ComponentStatus, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()

	comp, ok := in.components[name]
	if !ok {
		return "", false
	}
	return comp.status, true
}

// IsRunning возвращает true, если система запущена.
func (in *Integrator) IsRunning() bool {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.running
}
