package taskmgr

import (
	"time"

	"github.com/shaiso/Dirigent/internal/domain"
)

// TaskStats — агрегированная статистика по tasks.
type TaskStats struct {
	// Total — всего tasks в арене.
	Total int `json:"total"`

	// ByStatus — количество tasks по статусам.
	ByStatus map[domain.TaskStatus]int `json:"by_status"`

	// ByPriority — количество tasks по приоритетам.
	ByPriority map[string]int `json:"by_priority"`

	// AvgDurationSeconds — средняя длительность завершённых tasks.
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`

	// QueueDepth — глубина очереди на момент подсчёта.
	QueueDepth int `json:"queue_depth"`

	// ComputedAt — время подсчёта.
	ComputedAt time.Time `json:"computed_at"`
}

// Stats возвращает статистику по tasks.
//
// Полный проход по арене дорог при большом количестве tasks,
// поэтому результат кэшируется на StatsTTL.
func (m *Manager) Stats() TaskStats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()

	if time.Since(m.statsValidAt) < m.statsTTL && !m.statsValidAt.IsZero() {
		return m.cachedStats
	}

	stats := m.computeStats()
	m.cachedStats = stats
	m.statsValidAt = time.Now()
	return stats
}

// computeStats выполняет полный проход по tasks.
func (m *Manager) computeStats() TaskStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := TaskStats{
		Total:      len(m.tasks),
		ByStatus:   make(map[domain.TaskStatus]int),
		ByPriority: make(map[string]int),
		QueueDepth: m.queue.Len(),
		ComputedAt: time.Now(),
	}

	var totalDuration time.Duration
	var finished int

	for _, task := range m.tasks {
		stats.ByStatus[task.Status]++
		stats.ByPriority[task.Priority.String()]++

		if task.IsFinished() && task.Duration() > 0 {
			totalDuration += task.Duration()
			finished++
		}
	}

	if finished > 0 {
		stats.AvgDurationSeconds = totalDuration.Seconds() / float64(finished)
	}

	return stats
}
