package pipeline

import (
	"image"
	"time"

	"trafficwatch/internal/detection"
)

// FrameContext is a captured frame decoded for processing: the immutable
// JPEG payload plus its decoded pixels, capture timestamp and source id.
type FrameContext struct {
	Source    string
	Seq       uint64
	Timestamp time.Time
	Data      []byte      // Original JPEG payload
	Image     image.Image // Decoded pixels
}

// ProcessResult is what one FrameProcessor.Process call produced.
type ProcessResult struct {
	AnnotatedFrame []byte
	Vehicles       []detection.Detection
	Violations     map[detection.ViolationType][]detection.Violation
	Timestamp      time.Time
}

// VehicleCountEvent is the payload of EventVehicleCount dispatches.
type VehicleCountEvent struct {
	Source    string    `json:"source"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// FrameProcessedEvent is the payload of EventFrameProcessed dispatches.
type FrameProcessedEvent struct {
	Source          string                                            `json:"source"`
	Timestamp       time.Time                                         `json:"timestamp"`
	VehicleCount    int                                               `json:"vehicle_count"`
	ViolationCounts map[detection.ViolationType]int                   `json:"violation_counts"`
	Vehicles        []detection.Detection                             `json:"vehicles"`
	Violations      map[detection.ViolationType][]detection.Violation `json:"violations"`
	AnnotatedFrame  []byte                                            `json:"-"`
}

// ProcessorStatus is a read-only snapshot of the pipeline, recomputed on
// every query and never persisted.
type ProcessorStatus struct {
	IsRunning           bool                            `json:"is_running"`
	FPS                 float64                         `json:"fps"`
	FrameCount          uint64                          `json:"frame_count"`
	CurrentVehicleCount int                             `json:"current_vehicle_count"`
	CurrentViolations   map[detection.ViolationType]int `json:"current_violation_counts"`
	TrafficDensity      float64                         `json:"traffic_density"`
	PredictedCongestion float64                         `json:"predicted_congestion"`
}
