package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/Dirigent/internal/domain"
)

// AddWorkerNode добавляет узел в пул.
func (s *Scheduler) AddWorkerNode(id, name string, capacity map[domain.ResourceType]float64) error {
	if id == "" || len(capacity) == 0 {
		return fmt.Errorf("%w: empty id or capacity", ErrNodeNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nodeByID[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, id)
	}

	node := domain.NewWorkerNode(id, name, capacity)
	s.nodes = append(s.nodes, node)
	s.nodeByID[id] = node

	s.logger.Info("worker node added", "node_id", id, "capacity", capacity)
	return nil
}

// RemoveWorkerNode удаляет узел из пула.
//
// Локальный узел удалить нельзя. Назначения удалённого узла возвращаются
// в очередь назначения: уже запущенные tasks продолжают выполняться,
// их ресурсы будут зарезервированы на другом узле без повторного запуска.
func (s *Scheduler) RemoveWorkerNode(id string) error {
	if id == LocalNodeID {
		return ErrLocalNodeRemoval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodeByID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	requeued := 0
	for taskID, a := range s.assigned {
		if a.nodeID != id {
			continue
		}
		delete(s.assigned, taskID)
		a.nodeID = ""
		s.assignQ = append(s.assignQ, a)
		requeued++
	}

	delete(s.nodeByID, id)
	for i, n := range s.nodes {
		if n.ID == id {
			s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)
			break
		}
	}

	s.logger.Info("worker node removed",
		"node_id", id,
		"active_tasks", len(node.ActiveTasks),
		"requeued_assignments", requeued,
	)
	return nil
}

// HeartbeatNode обновляет heartbeat узла и возвращает его в пул здоровых.
func (s *Scheduler) HeartbeatNode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodeByID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	node.LastHeartbeat = time.Now()
	if !node.Healthy {
		node.Healthy = true
		s.logger.Info("worker node recovered", "node_id", id)
	}
	return nil
}

// ListNodes возвращает снимки всех узлов в порядке добавления.
func (s *Scheduler) ListNodes() []domain.NodeStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.NodeStatus, 0, len(s.nodes))
	for _, node := range s.nodes {
		out = append(out, node.Snapshot())
	}
	return out
}

// GetNode возвращает снимок одного узла.
func (s *Scheduler) GetNode(id string) (domain.NodeStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodeByID[id]
	if !ok {
		return domain.NodeStatus{}, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return node.Snapshot(), nil
}

// checkHeartbeats помечает узлы с устаревшим heartbeat нездоровыми.
// Локальный узел heartbeat'ов не шлёт и всегда обновляется тиком.
func (s *Scheduler) checkHeartbeats() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, node := range s.nodes {
		if node.ID == LocalNodeID {
			node.LastHeartbeat = now
			continue
		}
		if node.Healthy && now.Sub(node.LastHeartbeat) > s.heartbeatTimeout {
			node.Healthy = false
			s.logger.Warn("worker node heartbeat expired",
				"node_id", node.ID,
				"last_heartbeat", node.LastHeartbeat,
			)
		}
	}
}

// sampleLoop периодически обновляет измеренную нагрузку локального узла.
func (s *Scheduler) sampleLoop(ctx context.Context) {
	ticker := time.NewTicker(s.sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample, err := s.sampler.Sample()
			if err != nil {
				s.logger.Warn("resource sampling failed", "error", err)
				continue
			}

			s.mu.Lock()
			local := s.nodeByID[LocalNodeID]
			// Измеренное потребление замещает оценку из резервирований:
			// реальные цифры точнее суммы заявленных требований
			local.CurrentLoad[domain.ResourceCPU] = sample.CPUPercent
			local.CurrentLoad[domain.ResourceMemory] = sample.MemoryPercent
			local.LastHeartbeat = time.Now()
			s.mu.Unlock()
		}
	}
}
