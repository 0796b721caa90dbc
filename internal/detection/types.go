package detection

// COCO class ids used by the detection model.
const (
	ClassPerson     = 0
	ClassCar        = 2
	ClassMotorcycle = 3
	ClassBus        = 5
	ClassTruck      = 7
)

// vehicleClasses is the fixed set of class ids treated as vehicles.
var vehicleClasses = map[int]bool{
	ClassCar:        true,
	ClassMotorcycle: true,
	ClassBus:        true,
	ClassTruck:      true,
}

// BBox is an axis-aligned rectangle in pixel coordinates.
// Invariant: X1 < X2 and Y1 < Y2 for non-degenerate boxes.
type BBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Width returns the box width in pixels.
func (b BBox) Width() int { return b.X2 - b.X1 }

// Height returns the box height in pixels.
func (b BBox) Height() int { return b.Y2 - b.Y1 }

// Center returns the box center point.
func (b BBox) Center() (int, int) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// Empty reports whether the box has zero area.
func (b BBox) Empty() bool {
	return b.X2 <= b.X1 || b.Y2 <= b.Y1
}

// Clip constrains the box to the given frame dimensions.
func (b BBox) Clip(width, height int) BBox {
	c := b
	if c.X1 < 0 {
		c.X1 = 0
	}
	if c.Y1 < 0 {
		c.Y1 = 0
	}
	if c.X2 > width {
		c.X2 = width
	}
	if c.Y2 > height {
		c.Y2 = height
	}
	return c
}

// Detection is a single object detection result in frame pixel coordinates.
type Detection struct {
	ClassID    int     `json:"class_id"`
	Class      string  `json:"class_name"`
	BBox       BBox    `json:"bbox"`
	Confidence float32 `json:"confidence"`
	TrackID    *int    `json:"track_id"`
}

// IsVehicle reports whether the detection belongs to the vehicle class set.
func (d Detection) IsVehicle() bool { return vehicleClasses[d.ClassID] }

// IsPerson reports whether the detection is a person.
func (d Detection) IsPerson() bool { return d.ClassID == ClassPerson }

// ViolationType identifies a traffic-rule violation category.
type ViolationType string

const (
	ViolationNoHelmet     ViolationType = "no_helmet"
	ViolationNoSeatbelt   ViolationType = "no_seatbelt"
	ViolationTripleRiding ViolationType = "triple_riding"
	ViolationWrongWay     ViolationType = "wrong_way"
)

// ViolationTypes lists all violation categories in a stable order.
// DetectViolations always returns a map containing every one of these keys.
var ViolationTypes = []ViolationType{
	ViolationNoHelmet,
	ViolationNoSeatbelt,
	ViolationTripleRiding,
	ViolationWrongWay,
}

// Violation is one detected traffic-rule violation instance.
type Violation struct {
	Type        ViolationType `json:"type"`
	BBox        BBox          `json:"bbox"`
	Confidence  float32       `json:"confidence"`
	VehicleBBox *BBox         `json:"vehicle_bbox,omitempty"`
	RiderCount  int           `json:"rider_count,omitempty"`
}

// PlateInfo is a recognized license plate. Absence of a plate is represented
// by a nil *PlateInfo, not an error.
type PlateInfo struct {
	Number     string  `json:"number"`
	Confidence float32 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}
