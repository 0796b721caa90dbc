package annotate

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"trafficwatch/internal/detection"
)

func grayFrame(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}
	return img
}

func TestFrameProducesValidJPEG(t *testing.T) {
	src := grayFrame(320, 240)
	vehicles := []detection.Detection{{
		ClassID:    detection.ClassCar,
		Class:      "car",
		BBox:       detection.BBox{X1: 40, Y1: 40, X2: 160, Y2: 140},
		Confidence: 0.9,
	}}

	data, err := Frame(src, vehicles, nil)
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("annotated output is not a valid JPEG: %v", err)
	}
	if decoded.Bounds() != src.Bounds() {
		t.Errorf("annotated bounds %v, want %v", decoded.Bounds(), src.Bounds())
	}
}

func TestFrameDrawsVehicleBox(t *testing.T) {
	src := grayFrame(320, 240)
	box := detection.BBox{X1: 40, Y1: 40, X2: 160, Y2: 140}
	vehicles := []detection.Detection{{
		ClassID: detection.ClassCar, Class: "car", BBox: box, Confidence: 0.9,
	}}

	data, err := Frame(src, vehicles, nil)
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	// A pixel on the box edge should be much greener than the gray
	// background. JPEG is lossy, so compare loosely.
	r, g, b, _ := decoded.At(100, 40).RGBA()
	if !(g > r && g > b && g>>8 > 140) {
		t.Errorf("box edge pixel r=%d g=%d b=%d, expected dominant green", r>>8, g>>8, b>>8)
	}
}

func TestFrameSkipsEmptyViolationLists(t *testing.T) {
	src := grayFrame(160, 120)
	violations := detection.EmptyViolations()

	data, err := Frame(src, nil, violations)
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
		t.Fatalf("output not decodable: %v", err)
	}
}

func TestFrameDrawsViolationWithVehicleBox(t *testing.T) {
	src := grayFrame(320, 240)
	vehicleBox := detection.BBox{X1: 60, Y1: 60, X2: 200, Y2: 180}
	violations := detection.EmptyViolations()
	violations[detection.ViolationNoHelmet] = []detection.Violation{{
		Type:        detection.ViolationNoHelmet,
		BBox:        detection.BBox{X1: 90, Y1: 70, X2: 130, Y2: 120},
		Confidence:  0.8,
		VehicleBBox: &vehicleBox,
	}}

	data, err := Frame(src, nil, violations)
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	// no_helmet draws red on the vehicle box edge.
	r, g, b, _ := decoded.At(130, 60).RGBA()
	if !(r > g && r > b && r>>8 > 140) {
		t.Errorf("violation edge pixel r=%d g=%d b=%d, expected dominant red", r>>8, g>>8, b>>8)
	}
}

func TestTitleCase(t *testing.T) {
	if got := titleCase("no_helmet"); got != "No Helmet" {
		t.Errorf("titleCase(no_helmet) = %q, want %q", got, "No Helmet")
	}
	if got := titleCase("triple_riding"); got != "Triple Riding" {
		t.Errorf("titleCase(triple_riding) = %q, want %q", got, "Triple Riding")
	}
}
