package integrator

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventKind — вид события системы.
type EventKind string

const (
	// EventComponentStarted — компонент успешно запущен.
	EventComponentStarted EventKind = "component.started"

	// EventComponentStopped — компонент остановлен.
	EventComponentStopped EventKind = "component.stopped"

	// EventComponentError — ошибка старта или health check компонента.
	EventComponentError EventKind = "component.error"
)

// Event — событие системы (tagged union: Kind определяет смысл полей).
type Event struct {
	// Kind — вид события.
	Kind EventKind

	// Component — имя компонента, к которому относится событие.
	Component string

	// Err — ошибка (для EventComponentError).
	Err error

	// Time — время события.
	Time time.Time
}

// Handler — обработчик события.
type Handler func(Event)

// Bus — типизированная шина событий in-process.
//
// Все события идут через один канал и раздаются выделенным
// dispatcher-горутиной. Паника обработчика перехватывается и
// логируется, наружу не распространяется.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventKind][]subscription
	all      []subscription

	events chan Event
	logger *slog.Logger
	wg     sync.WaitGroup
}

type subscription struct {
	handler Handler
	async   bool
}

// defaultBusBuffer — размер буфера канала событий.
const defaultBusBuffer = 64

// NewBus создаёт шину событий.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		handlers: make(map[EventKind][]subscription),
		events:   make(chan Event, defaultBusBuffer),
		logger:   logger,
	}
}

// Subscribe регистрирует синхронный обработчик для вида события.
// Обработчик вызывается из dispatcher-горутины.
func (b *Bus) Subscribe(kind EventKind, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], subscription{handler: handler})
}

// SubscribeAsync регистрирует обработчик, вызываемый в отдельной горутине.
func (b *Bus) SubscribeAsync(kind EventKind, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], subscription{handler: handler, async: true})
}

// SubscribeAll регистрирует синхронный обработчик для всех событий.
func (b *Bus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, subscription{handler: handler})
}

// Publish отправляет событие в шину.
// При переполненном буфере событие отбрасывается с предупреждением —
// шина не должна блокировать публикующего.
func (b *Bus) Publish(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	select {
	case b.events <- event:
	default:
		b.logger.Warn("event bus buffer full, dropping event",
			"kind", event.Kind,
			"component", event.Component,
		)
	}
}

// Run запускает dispatcher. Блокируется до отмены ctx,
// затем дорабатывает накопившиеся события.
func (b *Bus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// Доставляем то, что уже в буфере
			for {
				select {
				case event := <-b.events:
					b.dispatch(event)
				default:
					b.wg.Wait()
					return
				}
			}
		case event := <-b.events:
			b.dispatch(event)
		}
	}
}

// dispatch раздаёт событие подписчикам.
func (b *Bus) dispatch(event Event) {
	b.mu.RLock()
	subs := make([]subscription, 0, len(b.handlers[event.Kind])+len(b.all))
	subs = append(subs, b.handlers[event.Kind]...)
	subs = append(subs, b.all...)
	b.mu.RUnlock()

	for _, sub := range subs {
		if sub.async {
			b.wg.Add(1)
			go func(s subscription) {
				defer b.wg.Done()
				b.invoke(s.handler, event)
			}(sub)
			continue
		}
		b.invoke(sub.handler, event)
	}
}

// invoke вызывает обработчик, перехватывая панику.
func (b *Bus) invoke(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"kind", event.Kind,
				"component", event.Component,
				"panic", r,
			)
		}
	}()
	handler(event)
}
