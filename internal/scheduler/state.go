package scheduler

import (
	"github.com/google/uuid"
	"github.com/shaiso/Dirigent/internal/domain"
	"github.com/shaiso/Dirigent/internal/engine"
)

// registered — definition вместе с построенным графом зависимостей.
// Граф строится один раз при регистрации и переиспользуется
// всеми instances.
type registered struct {
	def   *domain.WorkflowDefinition
	graph *engine.Graph
}

// instanceState — состояние выполнения одного instance в памяти.
//
// Создаётся при StartWorkflow и живёт до завершения instance.
// Мутируется только под мьютексом планировщика.
type instanceState struct {
	// instance — данные instance.
	instance *domain.WorkflowInstance

	// reg — definition и граф.
	reg *registered

	// created — созданные шаги (имя шага → true).
	created map[string]bool

	// completed — успешно завершённые шаги.
	completed map[string]bool

	// failed — упавшие шаги.
	failed map[string]bool

	// measured — tasks, чья длительность уже учтена в метриках.
	measured map[uuid.UUID]bool
}

// newInstanceState создаёт состояние для нового instance.
func newInstanceState(instance *domain.WorkflowInstance, reg *registered) *instanceState {
	return &instanceState{
		instance:  instance,
		reg:       reg,
		created:   make(map[string]bool),
		completed: make(map[string]bool),
		failed:    make(map[string]bool),
		measured:  make(map[uuid.UUID]bool),
	}
}

// readySteps возвращает шаги, готовые к созданию:
// все зависимости завершены, сам шаг ещё не создан.
func (s *instanceState) readySteps() []string {
	return s.reg.graph.Ready(s.completed, s.created)
}

// markCreated фиксирует созданный task шага.
func (s *instanceState) markCreated(step string, taskID uuid.UUID) {
	s.created[step] = true
	s.instance.TaskInstances[step] = taskID
}

// allCreated возвращает true, если созданы tasks для всех шагов.
func (s *instanceState) allCreated() bool {
	return len(s.created) == s.reg.graph.Size()
}

// runningSteps возвращает количество созданных, но не завершённых шагов.
func (s *instanceState) runningSteps() int {
	running := 0
	for step := range s.created {
		if !s.completed[step] && !s.failed[step] {
			running++
		}
	}
	return running
}

// hasFailed возвращает true, если есть упавшие шаги.
func (s *instanceState) hasFailed() bool {
	return len(s.failed) > 0
}

// isComplete возвращает true, если все шаги завершены успешно.
func (s *instanceState) isComplete() bool {
	return s.allCreated() && s.reg.graph.IsComplete(s.completed)
}

// snapshot возвращает копию instance для внешних потребителей.
func (s *instanceState) snapshot() domain.WorkflowInstance {
	copied := *s.instance
	copied.TaskInstances = make(map[string]uuid.UUID, len(s.instance.TaskInstances))
	for step, id := range s.instance.TaskInstances {
		copied.TaskInstances[step] = id
	}
	return copied
}
