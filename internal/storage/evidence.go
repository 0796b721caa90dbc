// Package storage persists violation evidence to durable storage: one
// cropped JPEG plus one JSON metadata sidecar per violation, sharing an id.
// Queryable history is built by other components reading these records.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"trafficwatch/internal/detection"
)

// ViolationRecord is the persisted evidence metadata for one violation.
type ViolationRecord struct {
	ID         string                  `json:"id"`
	Type       detection.ViolationType `json:"type"`
	Source     string                  `json:"source"`
	Timestamp  time.Time               `json:"timestamp"`
	ImagePath  string                  `json:"image_path"`
	Confidence float32                 `json:"confidence"`
	BBox       detection.BBox          `json:"bbox"`
	PlateInfo  *detection.PlateInfo    `json:"plate_info,omitempty"`
}

// EvidenceStore writes evidence records under a configured directory.
type EvidenceStore struct {
	dir string
}

// NewEvidenceStore creates the output directory if needed.
func NewEvidenceStore(dir string) (*EvidenceStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create evidence directory %s: %w", dir, err)
	}
	return &EvidenceStore{dir: dir}, nil
}

// Dir returns the evidence output directory.
func (s *EvidenceStore) Dir() string { return s.dir }

// Save writes the cropped evidence image and its metadata sidecar. The
// record's ImagePath is populated before the sidecar is written.
func (s *EvidenceStore) Save(record *ViolationRecord, imageData []byte) error {
	imgPath := filepath.Join(s.dir, record.ID+".jpg")
	if err := os.WriteFile(imgPath, imageData, 0644); err != nil {
		return fmt.Errorf("failed to write evidence image: %w", err)
	}
	record.ImagePath = imgPath

	meta, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal evidence metadata: %w", err)
	}

	metaPath := filepath.Join(s.dir, record.ID+".json")
	if err := os.WriteFile(metaPath, meta, 0644); err != nil {
		return fmt.Errorf("failed to write evidence metadata: %w", err)
	}
	return nil
}

// Load reads one evidence record by id.
func (s *EvidenceStore) Load(id string) (*ViolationRecord, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, id+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read evidence record %s: %w", id, err)
	}

	var record ViolationRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode evidence record %s: %w", id, err)
	}
	return &record, nil
}
