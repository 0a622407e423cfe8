package handlers

import (
	"log"
	"net/http"

	"github.com/roadwatch/roadwatch/internal/api"
	"github.com/roadwatch/roadwatch/internal/middleware"
	"github.com/roadwatch/roadwatch/internal/services"
)

// handleReviewQueue handles GET /api/review/queue: in-review incidents
// ordered by severity, then age.
func (h *APIHandler) handleReviewQueue(w http.ResponseWriter, r *http.Request) {
	params := api.ParsePagination(r)

	incidents, total, err := h.reviews.ReviewQueue(params.Offset(), params.PerPage)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to load review queue")
		return
	}

	api.RespondJSON(w, http.StatusOK, api.PaginatedResponse{
		Data:       api.IncidentsToListItems(incidents),
		Pagination: params.Meta(total),
	})
}

// handleReviewDecision builds the handler for approve, reject and reopen.
// All three share a body shape and differ only in the transition applied.
func (h *APIHandler) handleReviewDecision(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uuid := r.PathValue("uuid")

		var req api.ReviewDecisionRequest
		if r.ContentLength > 0 {
			if err := api.DecodeJSON(r, &req); err != nil {
				api.RespondError(w, http.StatusBadRequest, err.Error())
				return
			}
			if errs := api.Validate(req); errs != nil {
				api.RespondValidationError(w, errs)
				return
			}
		}

		actor := middleware.GetUserFromContext(r.Context())
		if actor == "" {
			actor = "operator"
		}

		incident, err := h.reviews.Transition(uuid, services.TransitionRequest{
			Action:       action,
			Actor:        actor,
			Note:         req.Note,
			CorrectedLat: req.CorrectedLat,
			CorrectedLon: req.CorrectedLon,
		})
		if err != nil {
			if services.IsReviewConflict(err) {
				api.RespondErrorWithCode(w, http.StatusConflict, "review_conflict", err.Error())
				return
			}
			api.RespondError(w, http.StatusNotFound, "Incident not found")
			return
		}

		log.Printf("Review %s on incident %s by %s", action, uuid, actor)
		api.RespondJSON(w, http.StatusOK, incident)
	}
}

// handleReviewBulk handles POST /api/review/bulk: the same decision
// applied to many incidents, reported per item. One conflicting incident
// never aborts the rest.
func (h *APIHandler) handleReviewBulk(w http.ResponseWriter, r *http.Request) {
	var req api.BulkReviewRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := api.Validate(req); errs != nil {
		api.RespondValidationError(w, errs)
		return
	}

	actor := middleware.GetUserFromContext(r.Context())
	if actor == "" {
		actor = "operator"
	}

	results := h.reviews.BulkTransition(req.UUIDs, services.TransitionRequest{
		Action: req.Action,
		Actor:  actor,
		Note:   req.Note,
	})

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
	})
}

// handleReviewAudit handles GET /api/review/{uuid}/audit: the complete
// append-only audit trail in chronological order.
func (h *APIHandler) handleReviewAudit(w http.ResponseWriter, r *http.Request) {
	uuid := r.PathValue("uuid")

	if _, err := h.incidents.Get(uuid); err != nil {
		api.RespondError(w, http.StatusNotFound, "Incident not found")
		return
	}

	actions, err := h.reviews.AuditTrail(uuid)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to load audit trail")
		return
	}

	api.RespondJSON(w, http.StatusOK, actions)
}
