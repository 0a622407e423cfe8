package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/roadwatch/roadwatch/internal/api"
	"github.com/roadwatch/roadwatch/internal/database"
	"github.com/roadwatch/roadwatch/internal/services"
)

// handleIncidents handles GET /api/incidents: the operator list, which
// unlike the feed also shows pending, in-review and rejected incidents.
// Query params: status, needs_attention, from/to (unix seconds).
func (h *APIHandler) handleIncidents(w http.ResponseWriter, r *http.Request) {
	params := api.ParsePagination(r)

	q := services.ListQuery{
		Offset: params.Offset(),
		Limit:  params.PerPage,
	}

	if v := r.URL.Query().Get("status"); v != "" {
		q.Status = database.IncidentStatus(v)
	}
	if v := r.URL.Query().Get("needs_attention"); v != "" {
		needs := v == "true" || v == "1"
		q.NeedsAttention = &needs
	}
	if v := r.URL.Query().Get("from"); v != "" {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			from := time.Unix(ts, 0)
			q.From = &from
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			to := time.Unix(ts, 0)
			q.To = &to
		}
	}

	incidents, total, err := h.incidents.List(q)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to get incidents")
		return
	}

	api.RespondJSON(w, http.StatusOK, api.PaginatedResponse{
		Data:       api.IncidentsToListItems(incidents),
		Pagination: params.Meta(total),
	})
}

// handleIncidentByUUID handles GET /api/incidents/{uuid}: the full
// operator view including detections and OCR text.
func (h *APIHandler) handleIncidentByUUID(w http.ResponseWriter, r *http.Request) {
	uuid := r.PathValue("uuid")

	incident, err := h.incidents.Get(uuid)
	if err != nil {
		api.RespondError(w, http.StatusNotFound, "Incident not found")
		return
	}

	api.RespondJSON(w, http.StatusOK, incident)
}

// handleIncidentOriginal handles GET /api/incidents/{uuid}/original.
// It serves the unredacted artifact and is reachable only through the
// JWT-protected operator surface; the public feed has no path to it.
func (h *APIHandler) handleIncidentOriginal(w http.ResponseWriter, r *http.Request) {
	uuid := r.PathValue("uuid")

	incident, err := h.incidents.Get(uuid)
	if err != nil {
		api.RespondError(w, http.StatusNotFound, "Incident not found")
		return
	}
	if incident.RawImagePath == "" {
		api.RespondError(w, http.StatusNotFound, "Original artifact not available")
		return
	}

	w.Header().Set("Cache-Control", "private, no-store")
	http.ServeFile(w, r, incident.RawImagePath)
}

// handleCancelProcessing handles POST /api/incidents/{uuid}/cancel. The
// worker aborts at its next stage boundary; partial results persisted so
// far are retained.
func (h *APIHandler) handleCancelProcessing(w http.ResponseWriter, r *http.Request) {
	uuid := r.PathValue("uuid")

	if _, err := h.incidents.Get(uuid); err != nil {
		api.RespondError(w, http.StatusNotFound, "Incident not found")
		return
	}

	if !h.jobs.Cancel(uuid) {
		api.RespondErrorWithCode(w, http.StatusConflict, "not_active", "no active job for this incident")
		return
	}

	log.Printf("Processing cancelled for incident %s", uuid)
	api.RespondJSON(w, http.StatusOK, map[string]string{
		"status": "cancelling",
		"uuid":   uuid,
	})
}
