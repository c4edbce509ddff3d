package scheduler

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Dirigent/internal/domain"
	"github.com/shaiso/Dirigent/internal/taskmgr"
	"github.com/shaiso/Dirigent/internal/telemetry"
)

// assignment — запрос на назначение task'а на узел.
//
// started=true означает, что task уже запущен и запрос служит только
// для повторного резервирования ресурсов (после удаления узла).
type assignment struct {
	taskID     uuid.UUID
	reqs       []domain.ResourceRequirement
	nodeID     string
	enqueuedAt time.Time
	started    bool
}

// enqueueAssignment ставит запрос в очередь назначения. Вызывается под s.mu.
func (s *Scheduler) enqueueAssignment(taskID uuid.UUID, reqs []domain.ResourceRequirement) {
	s.assignQ = append(s.assignQ, &assignment{
		taskID:     taskID,
		reqs:       reqs,
		enqueuedAt: time.Now(),
	})
}

// processAssignments обрабатывает очередь назначения.
//
// Очередь FIFO без старения: запрос, для которого нет подходящего узла,
// остаётся в очереди и не блокирует последующие — те могут поместиться
// на другие узлы.
func (s *Scheduler) processAssignments() {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := s.assignQ[:0]
	for _, a := range s.assignQ {
		// Запущенный task мог завершиться, пока запрос ждал повторного
		// резервирования (после удаления узла) — резервировать под
		// терминальный task нечего
		if a.started {
			task, err := s.tasks.Get(a.taskID)
			if err != nil || task.Status.IsTerminal() {
				s.logger.Debug("dropping assignment for finished task",
					"task_id", a.taskID,
				)
				continue
			}
		}

		node := s.selectNode(a.reqs)
		if node == nil {
			s.logger.Debug("assignment deferred",
				"task_id", a.taskID,
				"waited", time.Since(a.enqueuedAt),
				"error", ErrNoCapacity,
			)
			remaining = append(remaining, a)
			continue
		}

		node.Reserve(a.taskID, a.reqs)
		a.nodeID = node.ID

		if !a.started {
			if err := s.tasks.ExecuteAction(a.taskID, taskmgr.ActionStart); err != nil {
				// Откат: task мог быть отменён, пока ждал назначения
				node.Release(a.taskID, a.reqs)
				s.logger.Warn("assignment start failed, dropping",
					"task_id", a.taskID,
					"node_id", node.ID,
					"error", err,
				)
				continue
			}
			a.started = true

			wait := time.Since(a.enqueuedAt)
			s.metricsW.recordWait(wait)
			telemetry.AssignmentWait.Observe(wait.Seconds())
		}

		s.assigned[a.taskID] = a
		s.logger.Debug("task assigned to node",
			"task_id", a.taskID,
			"node_id", node.ID,
		)
	}
	s.assignQ = remaining
}

// selectNode выбирает узел для требований: из здоровых узлов,
// проходящих admission check, берётся узел с минимальным LoadScore.
// При равенстве — более ранний по порядку добавления (локальный первый).
// Вызывается под s.mu.
func (s *Scheduler) selectNode(reqs []domain.ResourceRequirement) *domain.WorkerNode {
	var best *domain.WorkerNode
	var bestScore float64

	for _, node := range s.nodes {
		if !node.Healthy || !node.CanAccept(reqs) {
			continue
		}
		score := node.LoadScore(reqs)
		if best == nil || score < bestScore {
			best = node
			bestScore = score
		}
	}
	return best
}

// releaseAssignment освобождает ресурсы узла, занятые task'ом.
// Вызывается под s.mu.
func (s *Scheduler) releaseAssignment(taskID uuid.UUID) {
	a, ok := s.assigned[taskID]
	if !ok {
		return
	}
	if node, ok := s.nodeByID[a.nodeID]; ok {
		node.Release(taskID, a.reqs)
	}
	delete(s.assigned, taskID)
}

// releaseInstanceAssignments освобождает назначения всех tasks instance
// и убирает его запросы из очереди назначения. Вызывается под s.mu.
func (s *Scheduler) releaseInstanceAssignments(st *instanceState) {
	ids := make(map[uuid.UUID]bool, len(st.instance.TaskInstances))
	for _, taskID := range st.instance.TaskInstances {
		ids[taskID] = true
		s.releaseAssignment(taskID)
	}

	remaining := s.assignQ[:0]
	for _, a := range s.assignQ {
		if !ids[a.taskID] {
			remaining = append(remaining, a)
		}
	}
	s.assignQ = remaining
}
