package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// ListWorkflows возвращает зарегистрированные workflow definitions.
// GET /api/v1/workflows
func (h *Handler) ListWorkflows(w http.ResponseWriter, _ *http.Request) {
	definitions := h.scheduler.ListWorkflows()
	List(w, definitions, len(definitions))
}

// RegisterWorkflow регистрирует workflow definition.
// POST /api/v1/workflows
func (h *Handler) RegisterWorkflow(w http.ResponseWriter, r *http.Request) {
	var req RegisterWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.ID == "" {
		BadRequest(w, "id is required")
		return
	}

	def := req.ToDomain()
	if err := h.scheduler.RegisterWorkflow(def); HandleDomainError(w, h.logger, err) {
		return
	}

	Created(w, def)
}

// StartWorkflow запускает новый instance workflow.
// POST /api/v1/workflows/{id}/instances
func (h *Handler) StartWorkflow(w http.ResponseWriter, r *http.Request) {
	workflowID := r.PathValue("id")

	var req StartWorkflowRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			BadRequest(w, "invalid request body")
			return
		}
	}

	instanceID, err := h.scheduler.StartWorkflow(workflowID, req.Context)
	if HandleDomainError(w, h.logger, err) {
		return
	}

	instance, err := h.scheduler.GetInstance(instanceID)
	if HandleDomainError(w, h.logger, err) {
		return
	}
	Created(w, InstanceFromDomain(instance))
}

// ListInstances возвращает все workflow instances.
// GET /api/v1/instances
func (h *Handler) ListInstances(w http.ResponseWriter, _ *http.Request) {
	instances := h.scheduler.ListInstances()

	result := make([]InstanceResponse, len(instances))
	for i, instance := range instances {
		result[i] = InstanceFromDomain(instance)
	}
	List(w, result, len(result))
}

// GetInstance возвращает workflow instance по ID.
// GET /api/v1/instances/{id}
func (h *Handler) GetInstance(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid instance id")
		return
	}

	instance, err := h.scheduler.GetInstance(id)
	if HandleDomainError(w, h.logger, err) {
		return
	}
	Success(w, InstanceFromDomain(instance))
}

// CancelInstance отменяет workflow instance.
// POST /api/v1/instances/{id}/cancel
func (h *Handler) CancelInstance(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid instance id")
		return
	}

	if _, err := h.scheduler.CancelWorkflow(id); HandleDomainError(w, h.logger, err) {
		return
	}

	instance, err := h.scheduler.GetInstance(id)
	if HandleDomainError(w, h.logger, err) {
		return
	}
	Success(w, InstanceFromDomain(instance))
}

// SchedulingMetrics возвращает метрики планировщика.
// GET /api/v1/scheduling/metrics
func (h *Handler) SchedulingMetrics(w http.ResponseWriter, _ *http.Request) {
	Success(w, h.scheduler.GetMetrics())
}
