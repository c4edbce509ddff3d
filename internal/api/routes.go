package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		RequestID(),
		Logging(h.logger),
	)

	// Tasks
	mux.Handle("GET /api/v1/tasks", chain(http.HandlerFunc(h.ListTasks)))
	mux.Handle("POST /api/v1/tasks", chain(http.HandlerFunc(h.CreateTask)))
	mux.Handle("GET /api/v1/tasks/stats", chain(http.HandlerFunc(h.TaskStats)))
	mux.Handle("POST /api/v1/tasks/actions", chain(http.HandlerFunc(h.ExecuteBatchActions)))
	mux.Handle("GET /api/v1/tasks/{id}", chain(http.HandlerFunc(h.GetTask)))
	mux.Handle("POST /api/v1/tasks/{id}/actions", chain(http.HandlerFunc(h.ExecuteTaskAction)))

	// Workflows
	mux.Handle("GET /api/v1/workflows", chain(http.HandlerFunc(h.ListWorkflows)))
	mux.Handle("POST /api/v1/workflows", chain(http.HandlerFunc(h.RegisterWorkflow)))
	mux.Handle("POST /api/v1/workflows/{id}/instances", chain(http.HandlerFunc(h.StartWorkflow)))

	// Instances
	mux.Handle("GET /api/v1/instances", chain(http.HandlerFunc(h.ListInstances)))
	mux.Handle("GET /api/v1/instances/{id}", chain(http.HandlerFunc(h.GetInstance)))
	mux.Handle("POST /api/v1/instances/{id}/cancel", chain(http.HandlerFunc(h.CancelInstance)))

	// Nodes
	mux.Handle("GET /api/v1/nodes", chain(http.HandlerFunc(h.ListNodes)))
	mux.Handle("POST /api/v1/nodes", chain(http.HandlerFunc(h.AddNode)))
	mux.Handle("GET /api/v1/nodes/{id}", chain(http.HandlerFunc(h.GetNode)))
	mux.Handle("DELETE /api/v1/nodes/{id}", chain(http.HandlerFunc(h.RemoveNode)))
	mux.Handle("POST /api/v1/nodes/{id}/heartbeat", chain(http.HandlerFunc(h.HeartbeatNode)))

	// Scheduling & system
	mux.Handle("GET /api/v1/scheduling/metrics", chain(http.HandlerFunc(h.SchedulingMetrics)))
	mux.Handle("GET /api/v1/system/status", chain(http.HandlerFunc(h.SystemStatus)))
}
