package database

import (
	"time"

	"gorm.io/gorm"
)

// GetIncidentByUUID returns an incident with its detections, ordered as
// the detector emitted them.
func GetIncidentByUUID(db *gorm.DB, uuid string) (*Incident, error) {
	var incident Incident
	err := db.Preload("Detections", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("position ASC")
	}).Where("uuid = ?", uuid).First(&incident).Error
	if err != nil {
		return nil, err
	}
	return &incident, nil
}

// ReplaceDetections swaps the detections owned by an incident. Re-runs of
// the same job (at-least-once delivery) overwrite rather than append.
func ReplaceDetections(db *gorm.DB, incidentID uint, detections []Detection) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("incident_id = ?", incidentID).Delete(&Detection{}).Error; err != nil {
			return err
		}
		for i := range detections {
			detections[i].ID = 0
			detections[i].IncidentID = incidentID
			detections[i].Position = i
		}
		if len(detections) == 0 {
			return nil
		}
		return tx.Create(&detections).Error
	})
}

// MarkNeedsAttention flags an incident so operators see it; used when a
// job dead-letters. The incident is never silently dropped.
func MarkNeedsAttention(db *gorm.DB, uuid, reason string) error {
	return db.Model(&Incident{}).Where("uuid = ?", uuid).Updates(map[string]interface{}{
		"needs_attention":  true,
		"attention_reason": reason,
	}).Error
}

// AppendReviewAction writes one audit record. Callers needing atomicity
// with a status change pass the transaction handle.
func AppendReviewAction(db *gorm.DB, action *ReviewAction) error {
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now()
	}
	return db.Create(action).Error
}

// ListReviewActions returns the full audit trail for an incident, oldest
// first.
func ListReviewActions(db *gorm.DB, incidentUUID string) ([]ReviewAction, error) {
	var actions []ReviewAction
	err := db.Where("incident_uuid = ?", incidentUUID).
		Order("created_at ASC, id ASC").Find(&actions).Error
	return actions, err
}
