package scheduler

import (
	"time"

	"github.com/shaiso/Dirigent/internal/domain"
	"github.com/shaiso/Dirigent/internal/telemetry"
)

// windowSize — максимум наблюдений в скользящем окне.
const windowSize = 256

// throughputWindow — окно подсчёта throughput.
const throughputWindow = time.Minute

// metricsWindows — ограниченные скользящие окна наблюдений.
// Мутируются только под мьютексом планировщика.
type metricsWindows struct {
	waits       []float64
	executions  []float64
	completions []time.Time
}

func newMetricsWindows() *metricsWindows {
	return &metricsWindows{}
}

func appendBounded(window []float64, v float64) []float64 {
	if len(window) >= windowSize {
		copy(window, window[1:])
		window = window[:windowSize-1]
	}
	return append(window, v)
}

// recordWait учитывает время ожидания назначения.
func (w *metricsWindows) recordWait(d time.Duration) {
	w.waits = appendBounded(w.waits, d.Seconds())
}

// recordExecution учитывает длительность выполнения task'а.
func (w *metricsWindows) recordExecution(d time.Duration) {
	w.executions = appendBounded(w.executions, d.Seconds())
	w.completions = append(w.completions, time.Now())
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// throughput возвращает количество завершений за последнюю минуту,
// попутно отбрасывая устаревшие отметки.
func (w *metricsWindows) throughput(now time.Time) float64 {
	cutoff := now.Add(-throughputWindow)
	kept := w.completions[:0]
	for _, t := range w.completions {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.completions = kept
	return float64(len(w.completions))
}

// GetMetrics возвращает последние вычисленные метрики планировщика.
func (s *Scheduler) GetMetrics() domain.SchedulingMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cachedMet
}

// updateMetrics пересчитывает агрегаты и обновляет Prometheus-гейджи.
func (s *Scheduler) updateMetrics() {
	s.mu.Lock()
	defer s.mu.Unlock()

	utilization := make(map[domain.ResourceType]float64)
	counts := make(map[domain.ResourceType]int)
	var scoreSum float64
	healthy := 0

	for _, node := range s.nodes {
		if !node.Healthy {
			continue
		}
		healthy++

		loads := node.LoadPercentages()
		for res, pct := range loads {
			utilization[res] += pct
			counts[res]++
			telemetry.NodeLoad.WithLabelValues(node.ID, string(res)).Set(pct)
		}
		scoreSum += nodeVariance(loads)
	}

	for res, count := range counts {
		utilization[res] /= float64(count)
	}

	balance := 100.0
	if healthy > 0 {
		balance -= scoreSum / float64(healthy)
	}
	if balance < 0 {
		balance = 0
	}

	s.cachedMet = domain.SchedulingMetrics{
		AvgWaitSeconds:      mean(s.metricsW.waits),
		AvgExecutionSeconds: mean(s.metricsW.executions),
		ThroughputPerMinute: s.metricsW.throughput(time.Now()),
		ResourceUtilization: utilization,
		LoadBalanceScore:    balance,
	}

	telemetry.PendingAssignments.Set(float64(len(s.assignQ)))
	telemetry.LoadBalanceScore.Set(balance)
}

// nodeVariance — дисперсия процентов загрузки ресурсов одного узла.
func nodeVariance(loads map[domain.ResourceType]float64) float64 {
	if len(loads) == 0 {
		return 0
	}
	var sum float64
	for _, pct := range loads {
		sum += pct
	}
	avg := sum / float64(len(loads))

	var variance float64
	for _, pct := range loads {
		diff := pct - avg
		variance += diff * diff
	}
	return variance / float64(len(loads))
}
