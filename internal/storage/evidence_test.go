package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"trafficwatch/internal/detection"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store, err := NewEvidenceStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewEvidenceStore failed: %v", err)
	}

	rec := &ViolationRecord{
		ID:         "20260801_120000_no_helmet_0_abc123",
		Type:       detection.ViolationNoHelmet,
		Source:     "cam-1",
		Timestamp:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Confidence: 0.92,
		BBox:       detection.BBox{X1: 10, Y1: 20, X2: 110, Y2: 220},
		PlateInfo:  &detection.PlateInfo{Number: "KA01AB1234", Confidence: 0.8},
	}

	if err := store.Save(rec, []byte{0xFF, 0xD8, 0xFF, 0xD9}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Save fills in ImagePath before writing the sidecar.
	wantImage := filepath.Join(store.Dir(), rec.ID+".jpg")
	if rec.ImagePath != wantImage {
		t.Errorf("ImagePath = %q, want %q", rec.ImagePath, wantImage)
	}

	loaded, err := store.Load(rec.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Type != rec.Type || loaded.Source != rec.Source || loaded.BBox != rec.BBox {
		t.Errorf("loaded record differs: %+v vs %+v", loaded, rec)
	}
	if loaded.PlateInfo == nil || loaded.PlateInfo.Number != "KA01AB1234" {
		t.Errorf("plate info not preserved: %+v", loaded.PlateInfo)
	}

	data, err := os.ReadFile(loaded.ImagePath)
	if err != nil {
		t.Fatalf("reading evidence image failed: %v", err)
	}
	if len(data) != 4 {
		t.Errorf("evidence image length = %d, want 4", len(data))
	}
}

func TestNewEvidenceStoreCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "evidence")

	if _, err := NewEvidenceStore(dir); err != nil {
		t.Fatalf("NewEvidenceStore failed: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("output directory not created: %v", err)
	}
}

func TestLoadMissingRecord(t *testing.T) {
	store, err := NewEvidenceStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewEvidenceStore failed: %v", err)
	}

	if _, err := store.Load("does_not_exist"); err == nil {
		t.Error("Load of missing record should fail")
	}
}
