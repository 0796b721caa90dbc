package ws

import "time"

// ViolationMessage announces a newly recorded violation.
type ViolationMessage struct {
	Type        string    `json:"type"` // "violation"
	ViolationID string    `json:"violation_id"`
	Violation   string    `json:"violation"`
	Source      string    `json:"source"`
	Timestamp   time.Time `json:"timestamp"`
	Confidence  float32   `json:"confidence"`
	PlateNumber string    `json:"plate_number,omitempty"`
	ImagePath   string    `json:"image_path,omitempty"`
}

// VehicleCountMessage carries the per-frame vehicle count.
type VehicleCountMessage struct {
	Type      string    `json:"type"` // "vehicle_count"
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Count     int       `json:"count"`
}

// StatusMessage is a periodic pipeline status broadcast.
type StatusMessage struct {
	Type                string         `json:"type"` // "status"
	Timestamp           time.Time      `json:"timestamp"`
	IsRunning           bool           `json:"is_running"`
	FPS                 float64        `json:"fps"`
	FrameCount          uint64         `json:"frame_count"`
	VehicleCount        int            `json:"vehicle_count"`
	Violations          map[string]int `json:"violations"`
	TrafficDensity      float64        `json:"traffic_density"`
	PredictedCongestion float64        `json:"predicted_congestion"`
}

// NewViolationMessage creates a violation broadcast.
func NewViolationMessage(id, violation, source string, ts time.Time, confidence float32) *ViolationMessage {
	return &ViolationMessage{
		Type:        "violation",
		ViolationID: id,
		Violation:   violation,
		Source:      source,
		Timestamp:   ts,
		Confidence:  confidence,
	}
}

// NewVehicleCountMessage creates a vehicle count broadcast.
func NewVehicleCountMessage(source string, ts time.Time, count int) *VehicleCountMessage {
	return &VehicleCountMessage{
		Type:      "vehicle_count",
		Source:    source,
		Timestamp: ts,
		Count:     count,
	}
}
