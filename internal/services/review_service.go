package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/roadwatch/roadwatch/internal/database"
	"github.com/roadwatch/roadwatch/internal/events"
	"github.com/roadwatch/roadwatch/internal/routing"
)

// ReviewConflictError reports an attempted transition the state machine
// forbids. The incident is left untouched.
type ReviewConflictError struct {
	IncidentUUID string
	From         database.IncidentStatus
	Action       string
}

func (e *ReviewConflictError) Error() string {
	return fmt.Sprintf("review conflict: cannot %s incident %s in status %s", e.Action, e.IncidentUUID, e.From)
}

// IsReviewConflict reports whether err is a state-machine violation.
func IsReviewConflict(err error) bool {
	var rc *ReviewConflictError
	return errors.As(err, &rc)
}

// TransitionRequest is one reviewer action against one incident.
type TransitionRequest struct {
	Action string // "approve", "reject", "reopen"
	Actor  string
	Note   string

	// Optional reviewer coordinate correction, applied on approve.
	CorrectedLat *float64
	CorrectedLon *float64
}

// BulkResult reports one item of a bulk transition.
type BulkResult struct {
	IncidentUUID string `json:"incident_uuid"`
	OK           bool   `json:"ok"`
	Error        string `json:"error,omitempty"`
}

// ReviewService owns the review state machine and its audit trail. Every
// status change and its ReviewAction record commit in one transaction;
// the audit trail can never diverge from visible state.
type ReviewService struct {
	db  *gorm.DB
	hub *events.Hub
}

// NewReviewService creates a review service. hub may be nil in tests.
func NewReviewService(db *gorm.DB, hub *events.Hub) *ReviewService {
	return &ReviewService{db: db, hub: hub}
}

// target returns the destination status for a reviewer action given the
// current status, or an error when the state machine forbids it.
func target(uuid string, from database.IncidentStatus, action string) (database.IncidentStatus, error) {
	switch action {
	case "approve":
		if from == database.IncidentStatusInReview {
			return database.IncidentStatusApproved, nil
		}
	case "reject":
		if from == database.IncidentStatusInReview {
			return database.IncidentStatusRejected, nil
		}
	case "reopen":
		if from.Terminal() {
			return database.IncidentStatusInReview, nil
		}
	default:
		return "", fmt.Errorf("unknown review action %q", action)
	}
	return "", &ReviewConflictError{IncidentUUID: uuid, From: from, Action: action}
}

// Transition applies one reviewer action. On any error the incident and
// audit trail are unchanged.
func (s *ReviewService) Transition(incidentUUID string, req TransitionRequest) (*database.Incident, error) {
	var result *database.Incident

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var incident database.Incident
		if err := tx.Where("uuid = ?", incidentUUID).First(&incident).Error; err != nil {
			return err
		}

		from := incident.Status
		to, err := target(incidentUUID, from, req.Action)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{"status": to}
		if req.Action == "approve" && req.CorrectedLat != nil && req.CorrectedLon != nil {
			updates["geo_lat"] = *req.CorrectedLat
			updates["geo_lon"] = *req.CorrectedLon
			updates["geo_confidence"] = 1.0
			updates["geo_source"] = "reviewer"
			updates["geo_mismatch"] = false
		}
		// Updates writes the map values back into the struct, so the
		// prior status must be captured before this call.
		if err := tx.Model(&incident).Updates(updates).Error; err != nil {
			return err
		}

		if err := database.AppendReviewAction(tx, &database.ReviewAction{
			IncidentUUID: incidentUUID,
			Actor:        req.Actor,
			Action:       req.Action,
			FromStatus:   from,
			ToStatus:     to,
			Note:         req.Note,
		}); err != nil {
			return err
		}

		incident.Status = to
		result = &incident
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.hub != nil {
		s.hub.Broadcast(events.Event{
			Type:         events.EventStatusChanged,
			IncidentUUID: incidentUUID,
			Data:         map[string]interface{}{"status": result.Status, "actor": req.Actor},
		})
	}
	return result, nil
}

// BulkTransition applies the same action to a set of incidents. Items
// succeed or fail individually; one failure never aborts the others.
func (s *ReviewService) BulkTransition(incidentUUIDs []string, req TransitionRequest) []BulkResult {
	results := make([]BulkResult, 0, len(incidentUUIDs))
	for _, uuid := range incidentUUIDs {
		if _, err := s.Transition(uuid, req); err != nil {
			results = append(results, BulkResult{IncidentUUID: uuid, Error: err.Error()})
			continue
		}
		results = append(results, BulkResult{IncidentUUID: uuid, OK: true})
	}
	return results
}

// ApplyRouting assigns the router's outcome to a pending incident, with
// the audit record committed in the same transaction. Redelivered jobs
// (at-least-once) that find the incident already routed to the same
// outcome are a harmless no-op.
func (s *ReviewService) ApplyRouting(incidentUUID string, outcome routing.Outcome, score float64, reason string) error {
	to := database.IncidentStatus(outcome)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var incident database.Incident
		if err := tx.Where("uuid = ?", incidentUUID).First(&incident).Error; err != nil {
			return err
		}

		if incident.Status != database.IncidentStatusPending {
			if incident.Status == to {
				return nil
			}
			return &ReviewConflictError{IncidentUUID: incidentUUID, From: incident.Status, Action: "route"}
		}

		if err := tx.Model(&incident).Updates(map[string]interface{}{
			"status": to,
			"score":  score,
		}).Error; err != nil {
			return err
		}

		return database.AppendReviewAction(tx, &database.ReviewAction{
			IncidentUUID: incidentUUID,
			Actor:        "pipeline",
			Action:       "route",
			FromStatus:   database.IncidentStatusPending,
			ToStatus:     to,
			Note:         reason,
		})
	})
	if err != nil {
		return err
	}

	if s.hub != nil {
		s.hub.Broadcast(events.Event{
			Type:         events.EventIncidentRouted,
			IncidentUUID: incidentUUID,
			Data:         map[string]interface{}{"outcome": outcome, "score": score},
		})
	}
	return nil
}

// AuditTrail returns the immutable transition history for an incident.
func (s *ReviewService) AuditTrail(incidentUUID string) ([]database.ReviewAction, error) {
	return database.ListReviewActions(s.db, incidentUUID)
}

// ReviewQueue returns the in_review set, most severe first, oldest first
// within equal severity.
func (s *ReviewService) ReviewQueue(offset, limit int) ([]database.Incident, int64, error) {
	var total int64
	base := s.db.Model(&database.Incident{}).Where("status = ?", database.IncidentStatusInReview)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var incidents []database.Incident
	err := s.db.Where("status = ?", database.IncidentStatusInReview).
		Order("severity DESC, created_at ASC").
		Offset(offset).Limit(limit).
		Find(&incidents).Error
	return incidents, total, err
}

// StaleInReview is an operator helper listing incidents sitting in review
// longer than maxAge.
func (s *ReviewService) StaleInReview(maxAge time.Duration) ([]database.Incident, error) {
	cutoff := time.Now().Add(-maxAge)
	var incidents []database.Incident
	err := s.db.Where("status = ? AND updated_at < ?", database.IncidentStatusInReview, cutoff).
		Order("updated_at ASC").Find(&incidents).Error
	if err != nil {
		log.Printf("Stale review query failed: %v", err)
	}
	return incidents, err
}
