// Package handlers wires the HTTP surface: public feed, ingestion,
// operator incident views, the review workflow and operational stats.
package handlers

import (
	"net/http"

	"github.com/roadwatch/roadwatch/internal/events"
	"github.com/roadwatch/roadwatch/internal/ingest"
	"github.com/roadwatch/roadwatch/internal/middleware"
	"github.com/roadwatch/roadwatch/internal/queue"
	"github.com/roadwatch/roadwatch/internal/services"
)

// APIHandler handles API endpoints for submitters, the public feed and
// the operator UI.
type APIHandler struct {
	gate      *ingest.Gate
	incidents *services.IncidentService
	reviews   *services.ReviewService
	jobs      *queue.Queue
	hub       *events.Hub
	ingestKey *middleware.IngestKeyMiddleware
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(
	gate *ingest.Gate,
	incidents *services.IncidentService,
	reviews *services.ReviewService,
	jobs *queue.Queue,
	hub *events.Hub,
	ingestKey *middleware.IngestKeyMiddleware,
) *APIHandler {
	return &APIHandler{
		gate:      gate,
		incidents: incidents,
		reviews:   reviews,
		jobs:      jobs,
		hub:       hub,
		ingestKey: ingestKey,
	}
}

// SetupRoutes sets up all API routes
func (h *APIHandler) SetupRoutes(mux *http.ServeMux) {
	// Ingestion (API-key gated, not JWT)
	mux.HandleFunc("POST /api/submit", h.ingestKey.WrapFunc(h.handleSubmit))

	// Public feed
	mux.HandleFunc("GET /api/feed", h.handleFeed)

	// Operator incident surface
	mux.HandleFunc("GET /api/incidents", h.handleIncidents)
	mux.HandleFunc("GET /api/incidents/{uuid}", h.handleIncidentByUUID)
	mux.HandleFunc("GET /api/incidents/{uuid}/original", h.handleIncidentOriginal)
	mux.HandleFunc("POST /api/incidents/{uuid}/cancel", h.handleCancelProcessing)

	// Review workflow
	mux.HandleFunc("GET /api/review/queue", h.handleReviewQueue)
	mux.HandleFunc("POST /api/review/{uuid}/approve", h.handleReviewDecision("approve"))
	mux.HandleFunc("POST /api/review/{uuid}/reject", h.handleReviewDecision("reject"))
	mux.HandleFunc("POST /api/review/{uuid}/reopen", h.handleReviewDecision("reopen"))
	mux.HandleFunc("POST /api/review/bulk", h.handleReviewBulk)
	mux.HandleFunc("GET /api/review/{uuid}/audit", h.handleReviewAudit)

	// Operational stats
	mux.HandleFunc("GET /api/queue/stats", h.handleQueueStats)
	mux.HandleFunc("GET /api/metrics", h.handleMetrics)

	// Operator event stream
	mux.HandleFunc("GET /ws/events", h.hub.ServeWS)
}
