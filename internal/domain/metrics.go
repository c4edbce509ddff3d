package domain

// SchedulingMetrics — агрегированные метрики планировщика.
//
// Пересчитываются из ограниченных скользящих окон на каждом тике.
type SchedulingMetrics struct {
	// AvgWaitSeconds — среднее время ожидания task в очереди назначения.
	AvgWaitSeconds float64 `json:"avg_wait_seconds"`

	// AvgExecutionSeconds — среднее время выполнения task.
	AvgExecutionSeconds float64 `json:"avg_execution_seconds"`

	// ThroughputPerMinute — завершённых tasks в минуту.
	ThroughputPerMinute float64 `json:"throughput_per_minute"`

	// ResourceUtilization — средний процент загрузки по каждому ресурсу
	// среди здоровых узлов.
	ResourceUtilization map[ResourceType]float64 `json:"resource_utilization"`

	// LoadBalanceScore — 100 минус средняя дисперсия процентов загрузки
	// по ресурсам среди здоровых узлов. 100 — идеальный баланс.
	LoadBalanceScore float64 `json:"load_balance_score"`
}
