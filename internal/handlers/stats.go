package handlers

import (
	"net/http"

	"github.com/roadwatch/roadwatch/internal/api"
)

// handleQueueStats handles GET /api/queue/stats.
func (h *APIHandler) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	api.RespondJSON(w, http.StatusOK, h.jobs.Stats())
}

// handleMetrics handles GET /api/metrics: incident counts by status plus
// queue depth, for the operator dashboard.
func (h *APIHandler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.incidents.Metrics()
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to compute metrics")
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"incidents":  metrics,
		"queue":      h.jobs.Stats(),
		"ws_clients": h.hub.ClientCount(),
	})
}
