package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"time"
)

// HTTPModelClient talks to a YOLO inference service over HTTP.
// The service accepts a multipart JPEG upload and returns detections as JSON.
type HTTPModelClient struct {
	endpoint      string
	client        *http.Client
	confThreshold float32
	enabled       bool
	healthCheck   time.Time
	mu            sync.RWMutex
}

// modelDetection is the wire format of a single detection.
type modelDetection struct {
	Class      string    `json:"class"`
	ClassID    int       `json:"class_id"`
	Confidence float32   `json:"confidence"`
	BBox       []float32 `json:"bbox"` // [x1, y1, x2, y2]
	TrackID    *int      `json:"track_id"`
}

// modelResponse is the wire format of a detection response.
type modelResponse struct {
	Detections      []modelDetection `json:"detections"`
	Count           int              `json:"count"`
	InferenceTimeMs float32          `json:"inference_time_ms"`
	Device          string           `json:"device"`
}

// modelHealthResponse is the wire format of the health endpoint.
type modelHealthResponse struct {
	Status      string `json:"status"`
	Device      string `json:"device"`
	ModelLoaded bool   `json:"model_loaded"`
}

// NewHTTPModelClient creates a client for a YOLO inference service.
func NewHTTPModelClient(endpoint string, confThreshold float32) *HTTPModelClient {
	if confThreshold <= 0 {
		confThreshold = 0.5
	}
	return &HTTPModelClient{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 15 * time.Second, // Longer timeout for GPU inference
		},
		confThreshold: confThreshold,
		enabled:       true,
	}
}

// IsHealthy checks if the inference service is available. Positive results
// are cached for 30 seconds to avoid probing on every frame.
func (c *HTTPModelClient) IsHealthy() bool {
	c.mu.RLock()
	if !c.enabled {
		c.mu.RUnlock()
		return false
	}
	if time.Since(c.healthCheck) < 30*time.Second {
		c.mu.RUnlock()
		return true
	}
	c.mu.RUnlock()

	resp, err := c.client.Get(c.endpoint + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var health modelHealthResponse
		if err := json.NewDecoder(resp.Body).Decode(&health); err == nil && health.ModelLoaded {
			c.mu.Lock()
			c.healthCheck = time.Now()
			c.mu.Unlock()
			return true
		}
	}
	return false
}

// Detect runs inference on a JPEG frame and returns all detections.
func (c *HTTPModelClient) Detect(ctx context.Context, jpegData []byte) ([]Detection, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	fw, err := w.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, err
	}
	fw.Write(jpegData)
	w.WriteField("conf_threshold", fmt.Sprintf("%.3f", c.confThreshold))
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/detect", &b)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("inference service returned %d: %s", resp.StatusCode, string(body))
	}

	var result modelResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode detection response: %w", err)
	}

	detections := make([]Detection, 0, len(result.Detections))
	for _, det := range result.Detections {
		if len(det.BBox) != 4 {
			continue
		}
		detections = append(detections, Detection{
			ClassID:    det.ClassID,
			Class:      det.Class,
			Confidence: det.Confidence,
			BBox: BBox{
				X1: int(det.BBox[0]),
				Y1: int(det.BBox[1]),
				X2: int(det.BBox[2]),
				Y2: int(det.BBox[3]),
			},
			TrackID: det.TrackID,
		})
	}
	return detections, nil
}

// Close releases client resources.
func (c *HTTPModelClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

var _ ModelClient = (*HTTPModelClient)(nil)
