package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// HTTPPlateReader talks to an ANPR (automatic number plate recognition)
// service over HTTP. The service accepts a cropped vehicle JPEG and returns
// the recognized plate, or 404 when no plate is visible.
type HTTPPlateReader struct {
	endpoint string
	client   *http.Client
}

// plateResponse is the wire format of a plate recognition response.
type plateResponse struct {
	Number     string    `json:"number"`
	Confidence float32   `json:"confidence"`
	BBox       []float32 `json:"bbox"` // [x1, y1, x2, y2] relative to the crop
}

// NewHTTPPlateReader creates a client for an ANPR service.
func NewHTTPPlateReader(endpoint string) *HTTPPlateReader {
	return &HTTPPlateReader{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// ReadPlate crops the vehicle region, submits it for recognition and maps
// the plate box back to frame coordinates. A nil result means no plate.
func (r *HTTPPlateReader) ReadPlate(ctx context.Context, frame image.Image, vehicle BBox) (*PlateInfo, error) {
	bounds := frame.Bounds()
	clipped := vehicle.Clip(bounds.Dx(), bounds.Dy())
	if clipped.Empty() {
		return nil, nil
	}

	crop, err := cropImage(frame, clipped)
	if err != nil {
		return nil, err
	}

	var jpegBuf bytes.Buffer
	if err := jpeg.Encode(&jpegBuf, crop, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode vehicle crop: %w", err)
	}

	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	fw, err := w.CreateFormFile("file", "vehicle.jpg")
	if err != nil {
		return nil, err
	}
	fw.Write(jpegBuf.Bytes())
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/recognize", &b)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("plate recognition request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil // No plate visible, a normal outcome
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("plate service returned %d: %s", resp.StatusCode, string(body))
	}

	var result plateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode plate response: %w", err)
	}
	if result.Number == "" {
		return nil, nil
	}

	info := &PlateInfo{
		Number:     result.Number,
		Confidence: result.Confidence,
		BBox:       clipped,
	}
	if len(result.BBox) == 4 {
		// Map plate box from crop coordinates back to the frame
		info.BBox = BBox{
			X1: clipped.X1 + int(result.BBox[0]),
			Y1: clipped.Y1 + int(result.BBox[1]),
			X2: clipped.X1 + int(result.BBox[2]),
			Y2: clipped.Y1 + int(result.BBox[3]),
		}
	}
	return info, nil
}

var _ PlateReader = (*HTTPPlateReader)(nil)

// subImager is implemented by image types that can share pixels with a crop.
type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// cropImage extracts the region described by the box.
func cropImage(img image.Image, box BBox) (image.Image, error) {
	rect := image.Rect(box.X1, box.Y1, box.X2, box.Y2)
	if si, ok := img.(subImager); ok {
		return si.SubImage(rect), nil
	}

	crop := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := 0; y < rect.Dy(); y++ {
		for x := 0; x < rect.Dx(); x++ {
			crop.Set(x, y, img.At(rect.Min.X+x, rect.Min.Y+y))
		}
	}
	return crop, nil
}
