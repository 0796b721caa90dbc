package detection

import (
	"bytes"
	"encoding/json"
	"image"
	"image/jpeg"
	"log"
	"mime/multipart"
	"net/http"
	"time"
)

// HTTPBinaryClassifier submits a cropped region to a binary classifier
// service and returns its verdict. One instance serves one predicate (e.g.
// helmet or seatbelt) at a dedicated endpoint.
//
// The classifier is deliberately fail-open: when the service is unreachable
// the region is treated as compliant, so outages never produce a flood of
// false violations.
type HTTPBinaryClassifier struct {
	endpoint string
	client   *http.Client
}

// classifierResponse is the wire format of a binary classifier response.
type classifierResponse struct {
	Positive   bool    `json:"positive"`
	Confidence float32 `json:"confidence"`
}

// NewHTTPBinaryClassifier creates a client for a binary classifier service.
func NewHTTPBinaryClassifier(endpoint string) *HTTPBinaryClassifier {
	return &HTTPBinaryClassifier{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Classify crops the region and asks the service for a verdict.
func (c *HTTPBinaryClassifier) Classify(frame image.Image, region BBox) bool {
	bounds := frame.Bounds()
	clipped := region.Clip(bounds.Dx(), bounds.Dy())
	if clipped.Empty() {
		return true
	}

	crop, err := cropImage(frame, clipped)
	if err != nil {
		return true
	}

	var jpegBuf bytes.Buffer
	if err := jpeg.Encode(&jpegBuf, crop, &jpeg.Options{Quality: 85}); err != nil {
		return true
	}

	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	fw, err := w.CreateFormFile("file", "region.jpg")
	if err != nil {
		return true
	}
	fw.Write(jpegBuf.Bytes())
	w.Close()

	req, err := http.NewRequest(http.MethodPost, c.endpoint+"/classify", &b)
	if err != nil {
		return true
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		log.Printf("[Classifier] Request failed, treating region as compliant: %v", err)
		return true
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return true
	}

	var result classifierResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return true
	}
	return result.Positive
}

// IsWearingHelmet implements HelmetClassifier.
func (c *HTTPBinaryClassifier) IsWearingHelmet(frame image.Image, person BBox) bool {
	return c.Classify(frame, person)
}

// IsWearingSeatbelt implements SeatbeltClassifier.
func (c *HTTPBinaryClassifier) IsWearingSeatbelt(frame image.Image, vehicle BBox) bool {
	return c.Classify(frame, vehicle)
}

var (
	_ HelmetClassifier   = (*HTTPBinaryClassifier)(nil)
	_ SeatbeltClassifier = (*HTTPBinaryClassifier)(nil)
)
