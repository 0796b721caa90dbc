package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"log"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"trafficwatch/internal/detection"
	"trafficwatch/internal/storage"
)

// ViolationRecorder turns raw violation detections into persisted evidence
// records and emits them on the event bus. Persistence failures are logged
// and skipped per record; they never interrupt the remaining violations in
// the same frame or the next frame.
type ViolationRecorder struct {
	store    *storage.EvidenceStore
	detector *detection.Detector
	bus      *EventBus
}

// NewViolationRecorder creates a recorder.
func NewViolationRecorder(store *storage.EvidenceStore, detector *detection.Detector, bus *EventBus) *ViolationRecorder {
	return &ViolationRecorder{
		store:    store,
		detector: detector,
		bus:      bus,
	}
}

// Record persists evidence for every violation detected in this frame.
// Violation types are processed in their stable order so evidence ids get
// deterministic batch indexes within a frame.
func (r *ViolationRecorder) Record(ctx context.Context, frame *FrameContext, violations map[detection.ViolationType][]detection.Violation) {
	for _, vtype := range detection.ViolationTypes {
		list := violations[vtype]
		if len(list) == 0 {
			continue
		}

		for i, violation := range list {
			r.recordOne(ctx, frame, violation, i)
		}
	}
}

// recordOne handles a single violation instance: crop, persist, plate
// lookup, dispatch. Any failure is absorbed here.
func (r *ViolationRecorder) recordOne(ctx context.Context, frame *FrameContext, violation detection.Violation, batchIndex int) {
	// Crop the vehicle region when present, otherwise the violation's own box
	cropBox := violation.BBox
	if violation.VehicleBBox != nil {
		cropBox = *violation.VehicleBBox
	}

	bounds := frame.Image.Bounds()
	cropBox = cropBox.Clip(bounds.Dx(), bounds.Dy())
	if cropBox.Empty() {
		// Box clipped entirely outside the frame, nothing to evidence
		return
	}

	cropData, err := encodeCrop(frame.Image, cropBox)
	if err != nil {
		log.Printf("[Recorder] Failed to encode crop for %s: %v", violation.Type, err)
		return
	}

	record := &storage.ViolationRecord{
		ID:         violationID(frame, violation.Type, batchIndex),
		Type:       violation.Type,
		Source:     frame.Source,
		Timestamp:  frame.Timestamp,
		Confidence: violation.Confidence,
		BBox:       violation.BBox,
	}

	if violation.VehicleBBox != nil {
		record.PlateInfo = r.detector.DetectLicensePlate(ctx, frame.Image, *violation.VehicleBBox)
	}

	if err := r.store.Save(record, cropData); err != nil {
		log.Printf("[Recorder] Failed to persist %s evidence: %v", violation.Type, err)
		return
	}

	r.bus.Dispatch(EventViolation, record)
}

// violationID builds an evidence id from the capture second, the violation
// type and the index within the frame's batch, plus a random suffix that
// makes ids globally unique across frames sharing the same second.
func violationID(frame *FrameContext, vtype detection.ViolationType, batchIndex int) string {
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return frame.Timestamp.Format("20060102_150405") + "_" + string(vtype) + "_" +
		strconv.Itoa(batchIndex) + "_" + suffix
}

// encodeCrop extracts the region and encodes it as JPEG.
func encodeCrop(img image.Image, box detection.BBox) ([]byte, error) {
	rect := image.Rect(box.X1, box.Y1, box.X2, box.Y2)

	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}

	var crop image.Image
	if si, ok := img.(subImager); ok {
		crop = si.SubImage(rect)
	} else {
		rgba := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
		for y := 0; y < rect.Dy(); y++ {
			for x := 0; x < rect.Dx(); x++ {
				rgba.Set(x, y, img.At(rect.Min.X+x, rect.Min.Y+y))
			}
		}
		crop = rgba
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, crop, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
