package api

import (
	"encoding/json"
	"net/http"

	"github.com/shaiso/Dirigent/internal/domain"
)

// ListNodes возвращает все worker-узлы.
// GET /api/v1/nodes
func (h *Handler) ListNodes(w http.ResponseWriter, _ *http.Request) {
	nodes := h.scheduler.ListNodes()
	List(w, nodes, len(nodes))
}

// AddNode добавляет worker-узел.
// POST /api/v1/nodes
func (h *Handler) AddNode(w http.ResponseWriter, r *http.Request) {
	var req AddNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.ID == "" {
		BadRequest(w, "id is required")
		return
	}
	if len(req.Capacity) == 0 {
		BadRequest(w, "capacity is required")
		return
	}

	capacity := make(map[domain.ResourceType]float64, len(req.Capacity))
	for res, amount := range req.Capacity {
		if amount <= 0 {
			BadRequest(w, "capacity amounts must be positive")
			return
		}
		capacity[domain.ResourceType(res)] = amount
	}

	name := req.Name
	if name == "" {
		name = req.ID
	}

	if err := h.scheduler.AddWorkerNode(req.ID, name, capacity); HandleDomainError(w, h.logger, err) {
		return
	}

	node, err := h.scheduler.GetNode(req.ID)
	if HandleDomainError(w, h.logger, err) {
		return
	}
	Created(w, node)
}

// GetNode возвращает worker-узел по ID.
// GET /api/v1/nodes/{id}
func (h *Handler) GetNode(w http.ResponseWriter, r *http.Request) {
	node, err := h.scheduler.GetNode(r.PathValue("id"))
	if HandleDomainError(w, h.logger, err) {
		return
	}
	Success(w, node)
}

// RemoveNode удаляет worker-узел.
// DELETE /api/v1/nodes/{id}
func (h *Handler) RemoveNode(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.RemoveWorkerNode(r.PathValue("id")); HandleDomainError(w, h.logger, err) {
		return
	}
	NoContent(w)
}

// HeartbeatNode обновляет heartbeat worker-узла.
// POST /api/v1/nodes/{id}/heartbeat
func (h *Handler) HeartbeatNode(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.HeartbeatNode(r.PathValue("id")); HandleDomainError(w, h.logger, err) {
		return
	}
	NoContent(w)
}
