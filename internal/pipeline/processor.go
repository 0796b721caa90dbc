package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"log"
	"sync"

	"trafficwatch/internal/annotate"
	"trafficwatch/internal/capture"
	"trafficwatch/internal/detection"
	"trafficwatch/internal/metrics"
)

// FrameProcessor runs the per-frame detection-and-correlation pass. It is
// the single entry point for frame processing: both the streaming loop and
// the ad-hoc single-frame submission path route through Process, serialized
// by one mutex so the two writer paths never interleave.
type FrameProcessor struct {
	detector *detection.Detector
	analyzer *TrafficAnalyzer
	recorder *ViolationRecorder
	bus      *EventBus
	metrics  *metrics.Metrics

	mu                sync.Mutex
	lastFrame         []byte
	currentVehicles   int
	currentViolations map[detection.ViolationType]int
}

// NewFrameProcessor creates a processor. All collaborators are required
// except metrics, which may be nil.
func NewFrameProcessor(detector *detection.Detector, analyzer *TrafficAnalyzer, recorder *ViolationRecorder, bus *EventBus, m *metrics.Metrics) *FrameProcessor {
	return &FrameProcessor{
		detector:          detector,
		analyzer:          analyzer,
		recorder:          recorder,
		bus:               bus,
		metrics:           m,
		currentViolations: make(map[detection.ViolationType]int),
	}
}

// Process runs one frame through detection, correlation, evidence recording
// and annotation. Per-frame detection failures degrade to empty detections;
// only a frame that cannot be decoded at all is reported as an error, and
// even that never crashes the capture loop.
func (p *FrameProcessor) Process(ctx context.Context, frame *capture.Frame) (*ProcessResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	img, err := jpeg.Decode(bytes.NewReader(frame.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	fc := &FrameContext{
		Source:    frame.Source,
		Seq:       frame.Seq,
		Timestamp: frame.Timestamp,
		Data:      frame.Data,
		Image:     img,
	}

	// Two independent model passes, per the detector contract
	vehicles, err := p.detector.DetectVehicles(ctx, fc.Data)
	if err != nil {
		log.Printf("[Processor] Vehicle detection degraded to empty: %v", err)
		vehicles = nil
	}

	violations, err := p.detector.DetectViolations(ctx, fc.Data, fc.Image)
	if err != nil {
		log.Printf("[Processor] Violation detection degraded to empty: %v", err)
		violations = detection.EmptyViolations()
	}

	// Side effects in contract order: analyzer, recorder, annotation, event
	p.analyzer.UpdateAt(len(vehicles), fc.Timestamp)

	p.recorder.Record(ctx, fc, violations)

	annotated := fc.Data
	if len(vehicles) > 0 || countViolations(violations) > 0 {
		drawn, err := annotate.Frame(fc.Image, vehicles, violations)
		if err != nil {
			log.Printf("[Processor] Annotation failed, serving raw frame: %v", err)
		} else {
			annotated = drawn
		}
	}

	violationCounts := make(map[detection.ViolationType]int, len(detection.ViolationTypes))
	for _, vt := range detection.ViolationTypes {
		violationCounts[vt] = len(violations[vt])
	}

	p.lastFrame = annotated
	p.currentVehicles = len(vehicles)
	p.currentViolations = violationCounts

	if p.metrics != nil {
		p.metrics.ObserveFrame(len(vehicles), violationCounts)
	}

	p.bus.Dispatch(EventVehicleCount, VehicleCountEvent{
		Source:    fc.Source,
		Count:     len(vehicles),
		Timestamp: fc.Timestamp,
	})
	p.bus.Dispatch(EventFrameProcessed, &FrameProcessedEvent{
		Source:          fc.Source,
		Timestamp:       fc.Timestamp,
		VehicleCount:    len(vehicles),
		ViolationCounts: violationCounts,
		Vehicles:        vehicles,
		Violations:      violations,
		AnnotatedFrame:  annotated,
	})

	return &ProcessResult{
		AnnotatedFrame: annotated,
		Vehicles:       vehicles,
		Violations:     violations,
		Timestamp:      fc.Timestamp,
	}, nil
}

// Snapshot returns the current shared-state values under the processor lock.
func (p *FrameProcessor) Snapshot() (lastFrame []byte, vehicles int, violations map[detection.ViolationType]int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	counts := make(map[detection.ViolationType]int, len(p.currentViolations))
	for k, v := range p.currentViolations {
		counts[k] = v
	}
	return p.lastFrame, p.currentVehicles, counts
}

// Analyzer exposes the traffic analyzer for status queries.
func (p *FrameProcessor) Analyzer() *TrafficAnalyzer { return p.analyzer }

func countViolations(violations map[detection.ViolationType][]detection.Violation) int {
	n := 0
	for _, list := range violations {
		n += len(list)
	}
	return n
}
