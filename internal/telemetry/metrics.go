package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики task manager'а.
var (
	// TasksCreated — счётчик созданных tasks по типу.
	TasksCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dirigent_tasks_created_total",
		Help: "Total number of tasks created, by type.",
	}, []string{"type"})

	// TasksFinished — счётчик завершённых tasks по типу и финальному статусу.
	TasksFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dirigent_tasks_finished_total",
		Help: "Total number of finished tasks, by type and terminal status.",
	}, []string{"type", "status"})

	// TaskDuration — гистограмма времени выполнения tasks.
	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dirigent_task_duration_seconds",
		Help:    "Task execution time in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"type"})

	// QueueDepth — текущая глубина очереди tasks.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dirigent_task_queue_depth",
		Help: "Current number of tasks waiting in the queue.",
	})
)

// Метрики планировщика.
var (
	// WorkflowsStarted — счётчик запущенных workflow instances.
	WorkflowsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dirigent_workflows_started_total",
		Help: "Total number of workflow instances started, by workflow.",
	}, []string{"workflow"})

	// WorkflowsFinished — счётчик завершённых instances по статусу.
	WorkflowsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dirigent_workflows_finished_total",
		Help: "Total number of finished workflow instances, by terminal status.",
	}, []string{"status"})

	// PendingAssignments — глубина очереди назначения на узлы.
	PendingAssignments = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dirigent_pending_assignments",
		Help: "Number of assignment requests waiting for a qualifying node.",
	})

	// AssignmentWait — гистограмма времени ожидания назначения.
	AssignmentWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dirigent_assignment_wait_seconds",
		Help:    "Time an assignment request spent queued before a node accepted it.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	})

	// NodeLoad — текущая загрузка узлов по ресурсам, в процентах.
	NodeLoad = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dirigent_node_load_percent",
		Help: "Per-node per-resource load percentage.",
	}, []string{"node", "resource"})

	// LoadBalanceScore — текущий показатель балансировки нагрузки.
	LoadBalanceScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dirigent_load_balance_score",
		Help: "Load balance score: 100 minus average load variance across healthy nodes.",
	})
)

// Метрики хранилища.
var (
	// StoreBreakerState — состояние circuit breaker хранилища
	// (0 — CLOSED, 1 — OPEN, 2 — HALF_OPEN).
	StoreBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dirigent_store_breaker_state",
		Help: "Persistent store circuit breaker state (0=closed, 1=open, 2=half-open).",
	})
)
