package scheduler

import (
	"math"
	"testing"
	"time"

	"github.com/shaiso/Dirigent/internal/domain"
)

func TestMetricsWindows_Bounded(t *testing.T) {
	w := newMetricsWindows()

	for i := 0; i < windowSize*2; i++ {
		w.recordWait(time.Second)
	}
	if len(w.waits) != windowSize {
		t.Errorf("expected window capped at %d, got %d", windowSize, len(w.waits))
	}
}

func TestMetricsWindows_Throughput(t *testing.T) {
	w := newMetricsWindows()

	now := time.Now()
	w.completions = []time.Time{
		now.Add(-2 * time.Minute), // устарело
		now.Add(-30 * time.Second),
		now.Add(-5 * time.Second),
	}

	if got := w.throughput(now); got != 2 {
		t.Errorf("expected throughput 2, got %v", got)
	}
	if len(w.completions) != 2 {
		t.Errorf("stale completions must be evicted, got %d", len(w.completions))
	}
}

func TestMean(t *testing.T) {
	if got := mean(nil); got != 0 {
		t.Errorf("mean of empty must be 0, got %v", got)
	}
	if got := mean([]float64{1, 2, 3}); math.Abs(got-2) > 1e-9 {
		t.Errorf("expected mean 2, got %v", got)
	}
}

func TestNodeVariance(t *testing.T) {
	balanced := map[domain.ResourceType]float64{
		domain.ResourceCPU:    40,
		domain.ResourceMemory: 40,
	}
	if got := nodeVariance(balanced); got != 0 {
		t.Errorf("balanced node must have zero variance, got %v", got)
	}

	skewed := map[domain.ResourceType]float64{
		domain.ResourceCPU:    80,
		domain.ResourceMemory: 0,
	}
	// avg 40, отклонения ±40 → дисперсия 1600
	if got := nodeVariance(skewed); math.Abs(got-1600) > 1e-9 {
		t.Errorf("expected variance 1600, got %v", got)
	}
}

func TestUpdateMetrics_LoadBalanceScore(t *testing.T) {
	env := newTestEnv(t)
	s := env.scheduler

	// Идеально сбалансированный локальный узел
	s.nodeByID[LocalNodeID].CurrentLoad[domain.ResourceCPU] = 30
	s.nodeByID[LocalNodeID].CurrentLoad[domain.ResourceMemory] = 30

	s.updateMetrics()

	m := s.GetMetrics()
	if m.LoadBalanceScore != 100 {
		t.Errorf("expected perfect balance score 100, got %v", m.LoadBalanceScore)
	}
	if math.Abs(m.ResourceUtilization[domain.ResourceCPU]-30) > 1e-9 {
		t.Errorf("expected cpu utilization 30, got %v", m.ResourceUtilization)
	}

	// Перекос: cpu 100%, memory 0% → дисперсия 2500, score прижимается к нулю
	s.nodeByID[LocalNodeID].CurrentLoad[domain.ResourceCPU] = 100
	s.nodeByID[LocalNodeID].CurrentLoad[domain.ResourceMemory] = 0
	s.updateMetrics()

	if got := s.GetMetrics().LoadBalanceScore; got != 0 {
		t.Errorf("expected clamped score 0, got %v", got)
	}
}
