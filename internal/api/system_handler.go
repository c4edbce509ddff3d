package api

import (
	"net/http"
)

// SystemStatus возвращает агрегированный статус системы.
// GET /api/v1/system/status
func (h *Handler) SystemStatus(w http.ResponseWriter, _ *http.Request) {
	Success(w, h.integrator.SystemStatus())
}
