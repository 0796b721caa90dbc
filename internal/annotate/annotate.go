// Package annotate draws detection and violation overlays onto frames for
// display. Drawing always happens on a working copy, never on the captured
// frame itself.
package annotate

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"trafficwatch/internal/detection"
)

var (
	vehicleColor = color.RGBA{0, 255, 0, 255}   // Green
	riderColor   = color.RGBA{255, 255, 0, 255} // Yellow

	violationColors = map[detection.ViolationType]color.RGBA{
		detection.ViolationNoHelmet:     {255, 0, 0, 255},   // Red
		detection.ViolationNoSeatbelt:   {0, 0, 255, 255},   // Blue
		detection.ViolationTripleRiding: {255, 165, 0, 255}, // Orange
		detection.ViolationWrongWay:     {255, 0, 255, 255}, // Magenta
	}
)

// Frame draws vehicle and violation overlays onto a copy of img and returns
// the copy encoded as JPEG.
func Frame(img image.Image, vehicles []detection.Detection, violations map[detection.ViolationType][]detection.Violation) ([]byte, error) {
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)

	for _, vehicle := range vehicles {
		drawBox(rgba, vehicle.BBox, vehicleColor, 2)
		label := fmt.Sprintf("%s %.2f", vehicle.Class, vehicle.Confidence)
		drawLabel(rgba, vehicle.BBox.X1, vehicle.BBox.Y1-10, label, vehicleColor)
	}

	for _, vt := range detection.ViolationTypes {
		list := violations[vt]
		if len(list) == 0 {
			continue
		}
		c := violationColors[vt]

		for _, v := range list {
			box := v.BBox
			if v.VehicleBBox != nil {
				box = *v.VehicleBBox
				// The violating rider gets an additional box
				drawBox(rgba, v.BBox, riderColor, 2)
			}
			drawBox(rgba, box, c, 3)

			label := fmt.Sprintf("%s (%.2f)", titleCase(string(vt)), v.Confidence)
			drawLabel(rgba, box.X1, box.Y1-20, label, c)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rgba, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode annotated frame: %w", err)
	}
	return buf.Bytes(), nil
}

// drawBox draws a rectangle outline clipped to the image bounds.
func drawBox(img *image.RGBA, box detection.BBox, c color.RGBA, thickness int) {
	bounds := img.Bounds()

	for t := 0; t < thickness; t++ {
		// Horizontal edges
		for x := box.X1; x < box.X2 && x < bounds.Max.X; x++ {
			if x < bounds.Min.X {
				continue
			}
			if y := box.Y1 + t; y >= bounds.Min.Y && y < bounds.Max.Y {
				img.SetRGBA(x, y, c)
			}
			if y := box.Y2 - 1 - t; y >= bounds.Min.Y && y < bounds.Max.Y {
				img.SetRGBA(x, y, c)
			}
		}
		// Vertical edges
		for y := box.Y1; y < box.Y2 && y < bounds.Max.Y; y++ {
			if y < bounds.Min.Y {
				continue
			}
			if x := box.X1 + t; x >= bounds.Min.X && x < bounds.Max.X {
				img.SetRGBA(x, y, c)
			}
			if x := box.X2 - 1 - t; x >= bounds.Min.X && x < bounds.Max.X {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

// drawLabel draws text with a dark background rectangle.
func drawLabel(img *image.RGBA, x, y int, label string, c color.RGBA) {
	if y < 10 {
		y = 10
	}
	if x < 0 {
		x = 0
	}

	bgColor := color.RGBA{0, 0, 0, 180}
	textWidth := len(label) * 7
	for dy := -2; dy < 12; dy++ {
		for dx := -2; dx < textWidth+2; dx++ {
			px, py := x+dx, y+dy
			if px >= img.Bounds().Min.X && px < img.Bounds().Max.X &&
				py >= img.Bounds().Min.Y && py < img.Bounds().Max.Y {
				img.Set(px, py, bgColor)
			}
		}
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y + 10)},
	}
	d.DrawString(label)
}

// titleCase renders a violation type as a display label, e.g.
// "no_helmet" -> "No Helmet".
func titleCase(s string) string {
	parts := strings.Split(s, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
