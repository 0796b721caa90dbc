package detection

import (
	"context"
	"image"
)

// ModelClient is the boundary to the object-detection model. One call runs
// inference once on a full frame and returns raw detections for every class.
type ModelClient interface {
	// Detect runs the model on a JPEG-encoded frame
	Detect(ctx context.Context, jpegData []byte) ([]Detection, error)

	// IsHealthy returns true if the model backend is operational
	IsHealthy() bool

	// Close releases backend resources
	Close() error
}

// HelmetClassifier decides whether a detected rider is wearing a helmet.
// Implementations are injected; the detector never hard-codes the outcome.
type HelmetClassifier interface {
	IsWearingHelmet(frame image.Image, person BBox) bool
}

// SeatbeltClassifier decides whether a car driver is wearing a seatbelt.
type SeatbeltClassifier interface {
	IsWearingSeatbelt(frame image.Image, vehicle BBox) bool
}

// PlateReader performs best-effort license plate recognition on a vehicle
// region. A nil result with nil error means no plate was found.
type PlateReader interface {
	ReadPlate(ctx context.Context, frame image.Image, vehicle BBox) (*PlateInfo, error)
}

// HelmetClassifierFunc adapts a function to the HelmetClassifier interface.
type HelmetClassifierFunc func(frame image.Image, person BBox) bool

func (f HelmetClassifierFunc) IsWearingHelmet(frame image.Image, person BBox) bool {
	return f(frame, person)
}

// SeatbeltClassifierFunc adapts a function to the SeatbeltClassifier interface.
type SeatbeltClassifierFunc func(frame image.Image, vehicle BBox) bool

func (f SeatbeltClassifierFunc) IsWearingSeatbelt(frame image.Image, vehicle BBox) bool {
	return f(frame, vehicle)
}
