package api

import "github.com/roadwatch/roadwatch/internal/database"

// IncidentToListItem converts a database Incident to its compact list form.
func IncidentToListItem(i database.Incident) IncidentListItem {
	return IncidentListItem{
		UUID:           i.UUID,
		Source:         i.Source,
		SourceRef:      i.SourceRef,
		Status:         i.Status,
		Score:          i.Score,
		Severity:       i.Severity,
		GeoLat:         i.GeoLat,
		GeoLon:         i.GeoLon,
		GeoConfidence:  i.GeoConfidence,
		GeoMismatch:    i.GeoMismatch,
		Degraded:       i.Degraded,
		PIIUncertain:   i.PIIUncertain,
		NeedsAttention: i.NeedsAttention,
		ProcessedAt:    i.ProcessedAt,
		CreatedAt:      i.CreatedAt,
	}
}

// IncidentsToListItems converts a slice of database Incidents to list items.
func IncidentsToListItems(incidents []database.Incident) []IncidentListItem {
	items := make([]IncidentListItem, len(incidents))
	for i, inc := range incidents {
		items[i] = IncidentToListItem(inc)
	}
	return items
}
