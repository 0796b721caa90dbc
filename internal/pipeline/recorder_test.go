package pipeline

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"trafficwatch/internal/detection"
	"trafficwatch/internal/storage"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 120, G: 60, B: 30, A: 255})
		}
	}
	return img
}

func newTestRecorder(t *testing.T) (*ViolationRecorder, *storage.EvidenceStore, *EventBus, string) {
	t.Helper()

	dir := t.TempDir()
	store, err := storage.NewEvidenceStore(dir)
	if err != nil {
		t.Fatalf("NewEvidenceStore failed: %v", err)
	}

	det, err := detection.NewDetector(detection.DetectorConfig{Model: &stubModel{}})
	if err != nil {
		t.Fatalf("NewDetector failed: %v", err)
	}

	bus := NewEventBus()
	return NewViolationRecorder(store, det, bus), store, bus, dir
}

func testFrameContext(ts time.Time) *FrameContext {
	return &FrameContext{
		Source:    "cam-1",
		Timestamp: ts,
		Image:     testImage(640, 480),
	}
}

func violationsWith(vtype detection.ViolationType, list ...detection.Violation) map[detection.ViolationType][]detection.Violation {
	m := detection.EmptyViolations()
	m[vtype] = list
	return m
}

func TestRecordPersistsEvidencePair(t *testing.T) {
	recorder, _, bus, dir := newTestRecorder(t)

	var records []*storage.ViolationRecord
	bus.Register(EventViolation, func(payload interface{}) error {
		records = append(records, payload.(*storage.ViolationRecord))
		return nil
	})

	ts := time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC)
	recorder.Record(context.Background(), testFrameContext(ts), violationsWith(
		detection.ViolationNoSeatbelt,
		detection.Violation{
			Type:       detection.ViolationNoSeatbelt,
			BBox:       detection.BBox{X1: 100, Y1: 100, X2: 300, Y2: 250},
			Confidence: 0.85,
		},
	))

	if len(records) != 1 {
		t.Fatalf("got %d violation events, want 1", len(records))
	}

	rec := records[0]
	if !strings.HasPrefix(rec.ID, "20260801_093000_no_seatbelt_0_") {
		t.Errorf("violation id = %q, want timestamp/type/index prefix", rec.ID)
	}

	// Image and metadata sidecar must both exist under the same id.
	if _, err := os.Stat(filepath.Join(dir, rec.ID+".jpg")); err != nil {
		t.Errorf("evidence image missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, rec.ID+".json")); err != nil {
		t.Errorf("evidence metadata missing: %v", err)
	}
}

func TestRecordCropsVehicleBoxWhenPresent(t *testing.T) {
	recorder, store, bus, _ := newTestRecorder(t)

	var records []*storage.ViolationRecord
	bus.Register(EventViolation, func(payload interface{}) error {
		records = append(records, payload.(*storage.ViolationRecord))
		return nil
	})

	vehicleBox := detection.BBox{X1: 50, Y1: 50, X2: 200, Y2: 180}
	recorder.Record(context.Background(), testFrameContext(time.Now()), violationsWith(
		detection.ViolationNoHelmet,
		detection.Violation{
			Type:        detection.ViolationNoHelmet,
			BBox:        detection.BBox{X1: 80, Y1: 60, X2: 120, Y2: 110},
			Confidence:  0.9,
			VehicleBBox: &vehicleBox,
		},
	))

	if len(records) != 1 {
		t.Fatalf("got %d violation events, want 1", len(records))
	}

	// The sidecar keeps the violation's own box even though the crop
	// covers the vehicle.
	loaded, err := store.Load(records[0].ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.BBox != (detection.BBox{X1: 80, Y1: 60, X2: 120, Y2: 110}) {
		t.Errorf("persisted bbox = %+v, want the violation box", loaded.BBox)
	}
}

func TestRecordSkipsDegenerateCrop(t *testing.T) {
	recorder, _, bus, dir := newTestRecorder(t)

	dispatched := 0
	bus.Register(EventViolation, func(interface{}) error {
		dispatched++
		return nil
	})

	// Box entirely outside the 640x480 frame clips to empty.
	recorder.Record(context.Background(), testFrameContext(time.Now()), violationsWith(
		detection.ViolationNoSeatbelt,
		detection.Violation{
			Type:       detection.ViolationNoSeatbelt,
			BBox:       detection.BBox{X1: 900, Y1: 900, X2: 1000, Y2: 1000},
			Confidence: 0.5,
		},
	))

	if dispatched != 0 {
		t.Errorf("degenerate crop dispatched %d events, want 0", dispatched)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("degenerate crop wrote %d files, want 0", len(entries))
	}
}

func TestRecordIDsUniqueWithinBatch(t *testing.T) {
	recorder, _, bus, _ := newTestRecorder(t)

	ids := make(map[string]bool)
	bus.Register(EventViolation, func(payload interface{}) error {
		ids[payload.(*storage.ViolationRecord).ID] = true
		return nil
	})

	// Two violations of the same type in the same frame, identical
	// boxes: ids must still differ.
	v := detection.Violation{
		Type:       detection.ViolationNoSeatbelt,
		BBox:       detection.BBox{X1: 100, Y1: 100, X2: 200, Y2: 200},
		Confidence: 0.7,
	}
	recorder.Record(context.Background(), testFrameContext(time.Now()), violationsWith(
		detection.ViolationNoSeatbelt, v, v,
	))

	if len(ids) != 2 {
		t.Errorf("got %d distinct ids, want 2", len(ids))
	}
}

func TestRecordPersistenceFailureIsolated(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}

	dir := t.TempDir()
	store, err := storage.NewEvidenceStore(dir)
	if err != nil {
		t.Fatalf("NewEvidenceStore failed: %v", err)
	}
	// Make the evidence directory unwritable so every save fails.
	if err := os.Chmod(dir, 0500); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}
	t.Cleanup(func() { os.Chmod(dir, 0700) })

	det, err := detection.NewDetector(detection.DetectorConfig{Model: &stubModel{}})
	if err != nil {
		t.Fatalf("NewDetector failed: %v", err)
	}
	bus := NewEventBus()
	recorder := NewViolationRecorder(store, det, bus)

	dispatched := 0
	bus.Register(EventViolation, func(interface{}) error {
		dispatched++
		return nil
	})

	// Must not panic or dispatch despite the failed save.
	recorder.Record(context.Background(), testFrameContext(time.Now()), violationsWith(
		detection.ViolationNoSeatbelt,
		detection.Violation{
			Type:       detection.ViolationNoSeatbelt,
			BBox:       detection.BBox{X1: 10, Y1: 10, X2: 100, Y2: 100},
			Confidence: 0.6,
		},
	))

	if dispatched != 0 {
		t.Errorf("failed persistence dispatched %d events, want 0", dispatched)
	}
}
