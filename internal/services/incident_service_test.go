package services

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/roadwatch/roadwatch/internal/database"
	"github.com/roadwatch/roadwatch/internal/testhelpers"
)

// The feed must only ever serve auto_published and approved incidents
// with a redacted artifact, whatever states exist in the store.
func TestFeed_VisibilityInvariant(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svc := NewIncidentService(db)

	for _, status := range []database.IncidentStatus{
		database.IncidentStatusPending,
		database.IncidentStatusInReview,
		database.IncidentStatusRejected,
		database.IncidentStatusAutoPublished,
		database.IncidentStatusApproved,
	} {
		testhelpers.NewIncidentBuilder().
			WithUUID("incident-" + string(status)).
			WithStatus(status).
			WithRedactedImage("/data/public/" + string(status) + ".jpg").
			Create(t, db)
	}
	// published but not yet redacted: must stay hidden
	testhelpers.NewIncidentBuilder().
		WithUUID("no-artifact").
		WithStatus(database.IncidentStatusAutoPublished).
		Create(t, db)

	items, total, err := svc.Feed(FeedQuery{Limit: 50})
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("expected exactly the 2 visible incidents, got total=%d len=%d", total, len(items))
	}
	for _, item := range items {
		if item.Status != database.IncidentStatusAutoPublished && item.Status != database.IncidentStatusApproved {
			t.Errorf("feed leaked status %s", item.Status)
		}
	}
}

func TestFeed_NeverCarriesRawPathOrOCR(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svc := NewIncidentService(db)

	testhelpers.NewIncidentBuilder().
		WithStatus(database.IncidentStatusApproved).
		WithRedactedImage("/data/public/x.jpg").
		WithOCRText("AB 1234 CD near Main St").
		Create(t, db)

	items, _, err := svc.Feed(FeedQuery{Limit: 10})
	if err != nil {
		t.Fatalf("feed: %v", err)
	}

	raw, err := json.Marshal(items)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(raw)
	if strings.Contains(body, "uploads") || strings.Contains(body, "AB 1234") {
		t.Errorf("feed serialization leaks private data: %s", body)
	}
	if !strings.Contains(body, "/data/public/x.jpg") {
		t.Error("feed lost the redacted artifact path")
	}
}

func TestFeed_TimeWindow(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svc := NewIncidentService(db)

	now := time.Now()
	testhelpers.NewIncidentBuilder().WithUUID("old").
		WithStatus(database.IncidentStatusApproved).
		WithRedactedImage("/p/a.jpg").
		CreatedAt(now.Add(-72 * time.Hour)).Create(t, db)
	testhelpers.NewIncidentBuilder().WithUUID("recent").
		WithStatus(database.IncidentStatusApproved).
		WithRedactedImage("/p/b.jpg").
		CreatedAt(now.Add(-time.Hour)).Create(t, db)

	from := now.Add(-24 * time.Hour)
	items, _, err := svc.Feed(FeedQuery{From: &from, Limit: 10})
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(items) != 1 || items[0].UUID != "recent" {
		t.Errorf("time filter failed: %+v", items)
	}
}

func TestFeed_BoundingBox(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svc := NewIncidentService(db)

	testhelpers.NewIncidentBuilder().WithUUID("inside").
		WithStatus(database.IncidentStatusApproved).
		WithRedactedImage("/p/a.jpg").
		WithLocation(55.75, 37.61, 0.9).Create(t, db)
	testhelpers.NewIncidentBuilder().WithUUID("outside").
		WithStatus(database.IncidentStatusApproved).
		WithRedactedImage("/p/b.jpg").
		WithLocation(59.93, 30.33, 0.9).Create(t, db)

	items, _, err := svc.Feed(FeedQuery{
		BBox:  &BoundingBox{MinLat: 55, MaxLat: 56, MinLon: 37, MaxLon: 38},
		Limit: 10,
	})
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(items) != 1 || items[0].UUID != "inside" {
		t.Errorf("bbox filter failed: %+v", items)
	}
}

func TestFeed_SeverityOrdering(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svc := NewIncidentService(db)

	testhelpers.NewIncidentBuilder().WithUUID("minor").
		WithStatus(database.IncidentStatusApproved).
		WithRedactedImage("/p/a.jpg").
		WithScore(0.5, 0.2).Create(t, db)
	testhelpers.NewIncidentBuilder().WithUUID("major").
		WithStatus(database.IncidentStatusApproved).
		WithRedactedImage("/p/b.jpg").
		WithScore(0.5, 0.9).Create(t, db)

	items, _, err := svc.Feed(FeedQuery{OrderBySeverity: true, Limit: 10})
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(items) != 2 || items[0].UUID != "major" {
		t.Errorf("severity ordering failed: %+v", items)
	}
}

func TestList_Filters(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svc := NewIncidentService(db)

	testhelpers.NewIncidentBuilder().WithUUID("pending-1").Create(t, db)
	testhelpers.NewIncidentBuilder().WithUUID("flagged").
		WithStatus(database.IncidentStatusInReview).
		NeedsAttention("processing dead-lettered").Create(t, db)

	incidents, total, err := svc.List(ListQuery{Status: database.IncidentStatusPending, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || incidents[0].UUID != "pending-1" {
		t.Errorf("status filter failed: %+v", incidents)
	}

	needs := true
	incidents, _, err = svc.List(ListQuery{NeedsAttention: &needs, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(incidents) != 1 || incidents[0].UUID != "flagged" {
		t.Errorf("needs-attention filter failed: %+v", incidents)
	}
}

func TestGet_WithOrderedDetections(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svc := NewIncidentService(db)

	incident := testhelpers.NewIncidentBuilder().Create(t, db)
	detections := []database.Detection{
		testhelpers.NewDetectionBuilder().WithClass("vehicle_damage").Build(),
		testhelpers.NewDetectionBuilder().WithClass("plate").Build(),
		testhelpers.NewDetectionBuilder().WithClass("face").Build(),
	}
	if err := database.ReplaceDetections(db, incident.ID, detections); err != nil {
		t.Fatalf("store detections: %v", err)
	}

	got, err := svc.Get(incident.UUID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Detections) != 3 {
		t.Fatalf("expected 3 detections, got %d", len(got.Detections))
	}
	for i, d := range got.Detections {
		if d.Position != i {
			t.Errorf("detection %d out of order: position %d", i, d.Position)
		}
	}
	if got.Detections[1].Class != "plate" {
		t.Errorf("detector ordering lost: %+v", got.Detections)
	}
}

func TestReplaceDetections_RerunOverwrites(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svc := NewIncidentService(db)

	incident := testhelpers.NewIncidentBuilder().Create(t, db)

	first := []database.Detection{testhelpers.NewDetectionBuilder().WithClass("face").Build()}
	if err := database.ReplaceDetections(db, incident.ID, first); err != nil {
		t.Fatalf("first run: %v", err)
	}
	second := []database.Detection{
		testhelpers.NewDetectionBuilder().WithClass("vehicle_damage").Build(),
		testhelpers.NewDetectionBuilder().WithClass("plate").Build(),
	}
	if err := database.ReplaceDetections(db, incident.ID, second); err != nil {
		t.Fatalf("second run: %v", err)
	}

	got, err := svc.Get(incident.UUID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Detections) != 2 {
		t.Errorf("re-run must overwrite, got %d detections", len(got.Detections))
	}
}

func TestMetrics(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svc := NewIncidentService(db)

	testhelpers.NewIncidentBuilder().Create(t, db)
	testhelpers.NewIncidentBuilder().WithStatus(database.IncidentStatusAutoPublished).Create(t, db)
	testhelpers.NewIncidentBuilder().WithStatus(database.IncidentStatusApproved).Create(t, db)
	testhelpers.NewIncidentBuilder().WithStatus(database.IncidentStatusInReview).
		NeedsAttention("geo mismatch").Create(t, db)

	m, err := svc.Metrics()
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if m.Total != 4 || m.Published != 2 || m.InReview != 1 || m.Pending != 1 || m.NeedsAttention != 1 {
		t.Errorf("unexpected metrics: %+v", m)
	}
}
