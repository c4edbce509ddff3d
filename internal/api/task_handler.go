package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shaiso/Dirigent/internal/domain"
	"github.com/shaiso/Dirigent/internal/taskmgr"
)

// ListTasks возвращает список tasks с фильтрацией.
// GET /api/v1/tasks?status=RUNNING&type=proxy_crawl&limit=50
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	filter := taskmgr.Filter{
		Type: r.URL.Query().Get("type"),
	}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.TaskStatus(raw)
		filter.Status = &status
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			BadRequest(w, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	tasks := h.tasks.List(filter)

	result := make([]TaskResponse, len(tasks))
	for i, task := range tasks {
		result[i] = TaskFromDomain(task)
	}
	List(w, result, len(result))
}

// CreateTask создаёт новый task.
// POST /api/v1/tasks
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Type == "" {
		BadRequest(w, "type is required")
		return
	}

	priority := domain.PriorityNormal
	if req.Priority != nil {
		priority = domain.TaskPriority(*req.Priority)
		if priority < domain.PriorityLow || priority > domain.PriorityUrgent {
			BadRequest(w, "priority out of range")
			return
		}
	}

	task, err := h.tasks.Create(taskmgr.TaskSpec{
		Name:        req.Name,
		Type:        req.Type,
		Priority:    priority,
		Config:      req.Config,
		MaxRetries:  req.MaxRetries,
		ScheduledAt: req.ScheduledAt,
	})
	if HandleDomainError(w, h.logger, err) {
		return
	}

	Created(w, TaskFromDomain(task))
}

// GetTask возвращает task по ID.
// GET /api/v1/tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid task id")
		return
	}

	task, err := h.tasks.Get(id)
	if HandleDomainError(w, h.logger, err) {
		return
	}

	Success(w, TaskFromDomain(task))
}

// ExecuteTaskAction выполняет действие над task.
// POST /api/v1/tasks/{id}/actions
func (h *Handler) ExecuteTaskAction(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid task id")
		return
	}

	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.Action == "" {
		BadRequest(w, "action is required")
		return
	}

	if err := h.tasks.ExecuteAction(id, taskmgr.Action(req.Action)); HandleDomainError(w, h.logger, err) {
		return
	}

	task, err := h.tasks.Get(id)
	if HandleDomainError(w, h.logger, err) {
		return
	}
	Success(w, TaskFromDomain(task))
}

// ExecuteBatchActions выполняет действие над несколькими tasks.
// POST /api/v1/tasks/actions
//
// Ответ всегда 200: результат по каждому task отдельно,
// неудача одного не прерывает остальные.
func (h *Handler) ExecuteBatchActions(w http.ResponseWriter, r *http.Request) {
	var req BatchActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		BadRequest(w, "ids are required")
		return
	}
	if req.Action == "" {
		BadRequest(w, "action is required")
		return
	}

	results := h.tasks.ExecuteBatch(req.IDs, taskmgr.Action(req.Action))
	List(w, results, len(results))
}

// TaskStats возвращает агрегированную статистику по tasks.
// GET /api/v1/tasks/stats
func (h *Handler) TaskStats(w http.ResponseWriter, _ *http.Request) {
	Success(w, h.tasks.Stats())
}
