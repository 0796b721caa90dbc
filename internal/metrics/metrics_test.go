package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"trafficwatch/internal/detection"
)

func TestObserveFrameUpdatesState(t *testing.T) {
	m := New()

	m.ObserveFrame(3, map[detection.ViolationType]int{
		detection.ViolationNoHelmet: 2,
		detection.ViolationWrongWay: 0,
	})
	m.ObserveFrame(5, nil)

	if got := m.FramesProcessed.Load(); got != 2 {
		t.Errorf("FramesProcessed = %d, want 2", got)
	}
	if got := m.VehiclesCurrent.Load(); got != 5 {
		t.Errorf("VehiclesCurrent = %d, want 5", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveFrame(4, map[detection.ViolationType]int{detection.ViolationNoSeatbelt: 1})
	m.SetFPS(9.5)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		"trafficwatch_frames_processed_total 1",
		"trafficwatch_vehicles_current 4",
		`trafficwatch_violations_total{type="no_seatbelt"} 1`,
		"trafficwatch_processing_fps 9.5",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
