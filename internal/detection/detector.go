package detection

import (
	"context"
	"fmt"
	"image"
	"log"
)

// DefaultRiderRadius is the per-axis pixel distance between a person's box
// center and a motorcycle's box center for the person to count as a rider.
const DefaultRiderRadius = 100

// tripleRidingThreshold is the rider count at which triple riding fires.
const tripleRidingThreshold = 3

// Detector classifies raw model detections into vehicles and persons and
// evaluates per-vehicle violation predicates. It is stateless per call: each
// Detect* method runs the model independently with no cross-call caching.
type Detector struct {
	model       ModelClient
	helmet      HelmetClassifier
	seatbelt    SeatbeltClassifier
	plates      PlateReader
	riderRadius int
}

// DetectorConfig holds construction parameters for the Detector.
type DetectorConfig struct {
	Model       ModelClient
	Helmet      HelmetClassifier
	Seatbelt    SeatbeltClassifier
	Plates      PlateReader
	RiderRadius int
}

// NewDetector creates a Detector. A missing or unhealthy model backend is
// fatal: callers must abort startup on error. Helmet/seatbelt classifiers
// default to "compliant" (never firing) when not injected; plate reading
// defaults to disabled.
func NewDetector(cfg DetectorConfig) (*Detector, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("detection model is required")
	}
	if !cfg.Model.IsHealthy() {
		return nil, fmt.Errorf("detection model backend unavailable")
	}

	helmet := cfg.Helmet
	if helmet == nil {
		helmet = HelmetClassifierFunc(func(image.Image, BBox) bool { return true })
	}
	seatbelt := cfg.Seatbelt
	if seatbelt == nil {
		seatbelt = SeatbeltClassifierFunc(func(image.Image, BBox) bool { return true })
	}

	radius := cfg.RiderRadius
	if radius <= 0 {
		radius = DefaultRiderRadius
	}

	return &Detector{
		model:       cfg.Model,
		helmet:      helmet,
		seatbelt:    seatbelt,
		plates:      cfg.Plates,
		riderRadius: radius,
	}, nil
}

// DetectVehicles runs the model once and returns detections filtered to the
// vehicle class set. An empty slice is a normal result, not an error.
func (d *Detector) DetectVehicles(ctx context.Context, jpegData []byte) ([]Detection, error) {
	detections, err := d.model.Detect(ctx, jpegData)
	if err != nil {
		return nil, fmt.Errorf("vehicle detection: %w", err)
	}

	vehicles := make([]Detection, 0, len(detections))
	for _, det := range detections {
		if det.IsVehicle() {
			vehicles = append(vehicles, det)
		}
	}
	return vehicles, nil
}

// DetectViolations runs the model once and evaluates violation predicates
// over the detections. The returned map always contains all four violation
// types, each possibly empty. The wrong_way key is reserved: no direction
// tracking exists yet, so its list is always empty.
func (d *Detector) DetectViolations(ctx context.Context, jpegData []byte, img image.Image) (map[ViolationType][]Violation, error) {
	violations := emptyViolations()

	detections, err := d.model.Detect(ctx, jpegData)
	if err != nil {
		return violations, fmt.Errorf("violation detection: %w", err)
	}

	// Model boxes can overshoot the frame edge. Clamp them so persisted
	// records and overlays only ever carry in-frame coordinates.
	if img != nil {
		bounds := img.Bounds()
		inFrame := detections[:0]
		for _, det := range detections {
			det.BBox = det.BBox.Clip(bounds.Dx(), bounds.Dy())
			if det.BBox.Empty() {
				continue
			}
			inFrame = append(inFrame, det)
		}
		detections = inFrame
	}

	for _, det := range detections {
		switch det.ClassID {
		case ClassMotorcycle:
			riders := d.findRiders(detections, det.BBox)

			for _, rider := range riders {
				if !d.helmet.IsWearingHelmet(img, rider.BBox) {
					vehicleBBox := det.BBox
					violations[ViolationNoHelmet] = append(violations[ViolationNoHelmet], Violation{
						Type:        ViolationNoHelmet,
						BBox:        rider.BBox,
						Confidence:  rider.Confidence,
						VehicleBBox: &vehicleBBox,
					})
				}
			}

			if len(riders) >= tripleRidingThreshold {
				violations[ViolationTripleRiding] = append(violations[ViolationTripleRiding], Violation{
					Type:       ViolationTripleRiding,
					BBox:       det.BBox,
					Confidence: det.Confidence,
					RiderCount: len(riders),
				})
			}

		case ClassCar:
			if !d.seatbelt.IsWearingSeatbelt(img, det.BBox) {
				violations[ViolationNoSeatbelt] = append(violations[ViolationNoSeatbelt], Violation{
					Type:       ViolationNoSeatbelt,
					BBox:       det.BBox,
					Confidence: det.Confidence,
				})
			}
		}
	}

	return violations, nil
}

// DetectLicensePlate attempts plate recognition on a vehicle region.
// Returns nil when no reader is configured or no plate is found.
func (d *Detector) DetectLicensePlate(ctx context.Context, img image.Image, vehicle BBox) *PlateInfo {
	if d.plates == nil {
		return nil
	}

	plate, err := d.plates.ReadPlate(ctx, img, vehicle)
	if err != nil {
		log.Printf("[Detector] Plate recognition failed: %v", err)
		return nil
	}
	return plate
}

// findRiders gathers person detections whose box center lies within the
// rider radius of the motorcycle's box center, independently per axis.
// This is a box proximity test, not Euclidean distance.
func (d *Detector) findRiders(detections []Detection, bike BBox) []Detection {
	bikeCX, bikeCY := bike.Center()

	var riders []Detection
	for _, det := range detections {
		if !det.IsPerson() {
			continue
		}
		cx, cy := det.BBox.Center()
		if abs(cx-bikeCX) < d.riderRadius && abs(cy-bikeCY) < d.riderRadius {
			riders = append(riders, det)
		}
	}
	return riders
}

// emptyViolations returns a violation map with all four keys present.
func emptyViolations() map[ViolationType][]Violation {
	m := make(map[ViolationType][]Violation, len(ViolationTypes))
	for _, vt := range ViolationTypes {
		m[vt] = nil
	}
	return m
}

// EmptyViolations returns a violation map with every type present and empty.
// Used by callers degrading to "no detections" after a per-frame failure.
func EmptyViolations() map[ViolationType][]Violation {
	return emptyViolations()
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
