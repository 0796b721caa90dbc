package database

import (
	"path/filepath"
	"testing"
	"time"

	"trafficwatch/internal/detection"
	"trafficwatch/internal/storage"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	return db
}

func record(id string, vtype detection.ViolationType, ts time.Time) *storage.ViolationRecord {
	return &storage.ViolationRecord{
		ID:         id,
		Type:       vtype,
		Source:     "cam-1",
		Timestamp:  ts,
		ImagePath:  "/tmp/" + id + ".jpg",
		Confidence: 0.9,
		BBox:       detection.BBox{X1: 1, Y1: 2, X2: 3, Y2: 4},
	}
}

func TestSaveAndQueryRecent(t *testing.T) {
	db := newTestDB(t)
	now := time.Now()

	if err := db.SaveViolation(record("v1", detection.ViolationNoHelmet, now.Add(-2*time.Minute))); err != nil {
		t.Fatalf("SaveViolation failed: %v", err)
	}
	if err := db.SaveViolation(record("v2", detection.ViolationNoSeatbelt, now.Add(-1*time.Minute))); err != nil {
		t.Fatalf("SaveViolation failed: %v", err)
	}

	rows, err := db.RecentViolations("", 10)
	if err != nil {
		t.Fatalf("RecentViolations failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].ID != "v2" {
		t.Errorf("newest first ordering broken, got %q", rows[0].ID)
	}
}

func TestRecentViolationsTypeFilter(t *testing.T) {
	db := newTestDB(t)
	now := time.Now()

	db.SaveViolation(record("v1", detection.ViolationNoHelmet, now))
	db.SaveViolation(record("v2", detection.ViolationTripleRiding, now))

	rows, err := db.RecentViolations("triple_riding", 10)
	if err != nil {
		t.Fatalf("RecentViolations failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Type != "triple_riding" {
		t.Errorf("type filter returned %+v", rows)
	}
}

func TestSaveViolationIdempotent(t *testing.T) {
	db := newTestDB(t)
	rec := record("v1", detection.ViolationNoHelmet, time.Now())

	if err := db.SaveViolation(rec); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	// Re-dispatched event with the same id must not error or duplicate.
	if err := db.SaveViolation(rec); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	rows, err := db.RecentViolations("", 10)
	if err != nil {
		t.Fatalf("RecentViolations failed: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("got %d rows after duplicate save, want 1", len(rows))
	}
}

func TestSummaryWindow(t *testing.T) {
	db := newTestDB(t)
	now := time.Now()

	db.SaveViolation(record("in1", detection.ViolationNoHelmet, now.Add(-1*time.Hour)))
	db.SaveViolation(record("in2", detection.ViolationNoHelmet, now.Add(-2*time.Hour)))
	db.SaveViolation(record("in3", detection.ViolationNoSeatbelt, now.Add(-30*time.Minute)))
	db.SaveViolation(record("old", detection.ViolationNoHelmet, now.Add(-48*time.Hour)))

	counts, err := db.Summary(24 * time.Hour)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}

	byType := make(map[string]int, len(counts))
	for _, tc := range counts {
		byType[tc.Type] = tc.Count
	}
	if byType["no_helmet"] != 2 || byType["no_seatbelt"] != 1 {
		t.Errorf("summary = %v, want no_helmet=2 no_seatbelt=1", byType)
	}

	total, err := db.CountSince(24 * time.Hour)
	if err != nil {
		t.Fatalf("CountSince failed: %v", err)
	}
	if total != 3 {
		t.Errorf("CountSince = %d, want 3", total)
	}
}

func TestPlateNumberPersisted(t *testing.T) {
	db := newTestDB(t)

	rec := record("v1", detection.ViolationNoHelmet, time.Now())
	rec.PlateInfo = &detection.PlateInfo{Number: "MH12DE1433", Confidence: 0.77}
	if err := db.SaveViolation(rec); err != nil {
		t.Fatalf("SaveViolation failed: %v", err)
	}

	rows, err := db.RecentViolations("", 1)
	if err != nil {
		t.Fatalf("RecentViolations failed: %v", err)
	}
	if len(rows) != 1 || rows[0].PlateNumber != "MH12DE1433" {
		t.Errorf("plate number not persisted: %+v", rows)
	}
}
