package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/roadwatch/roadwatch/internal/api"
	"github.com/roadwatch/roadwatch/internal/events"
	"github.com/roadwatch/roadwatch/internal/ingest"
)

// handleSubmit handles POST /api/submit: a multipart image plus source
// metadata. Duplicates resolve to the existing incident with 200;
// accepted submissions return 202 with the new incident UUID.
func (h *APIHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	data, filename, err := api.ReadImageUpload(r)
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	source := r.FormValue("source")
	if source == "" {
		source = "manual"
	}
	if source != "manual" && source != "scraper" {
		api.RespondError(w, http.StatusBadRequest, "source must be manual or scraper")
		return
	}

	ref := r.FormValue("source_ref")
	if ref == "" {
		ref = filename
	}

	result, err := h.gate.Submit(data, ingest.SourceMeta{
		Source:       source,
		Ref:          ref,
		Caption:      r.FormValue("caption"),
		Hashtag:      r.FormValue("hashtag"),
		LocationHint: r.FormValue("location_hint"),
	})
	if err != nil {
		if errors.Is(err, ingest.ErrMalformedInput) {
			api.RespondErrorWithCode(w, http.StatusBadRequest, "malformed_input", "image could not be decoded")
			return
		}
		log.Printf("Submit failed for %s: %v", ref, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to accept submission")
		return
	}

	if !result.Accepted {
		api.RespondJSON(w, http.StatusOK, api.SubmitResponse{
			Accepted:    false,
			DuplicateOf: result.DuplicateOf,
			Distance:    result.Distance,
			Message:     "duplicate of an already-ingested image",
		})
		return
	}

	h.hub.Broadcast(events.Event{
		Type:         events.EventIncidentCreated,
		IncidentUUID: result.IncidentUUID,
		Timestamp:    time.Now(),
	})

	api.RespondJSON(w, http.StatusAccepted, api.SubmitResponse{
		Accepted: true,
		UUID:     result.IncidentUUID,
		Message:  "accepted for analysis",
	})
}
