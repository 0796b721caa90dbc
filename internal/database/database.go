// Package database maintains a queryable SQLite index of recorded
// violations. The evidence files on disk remain the source of truth;
// this index exists so the API can answer history and summary queries
// without scanning the evidence directory.
package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"trafficwatch/internal/storage"
)

// Database handles SQLite database operations.
type Database struct {
	db *sql.DB
}

// ViolationRow is one indexed violation as returned by queries.
type ViolationRow struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Source      string    `json:"source"`
	Timestamp   time.Time `json:"timestamp"`
	ImagePath   string    `json:"image_path"`
	Confidence  float64   `json:"confidence"`
	PlateNumber string    `json:"plate_number,omitempty"`
}

// TypeCount pairs a violation type with its occurrence count.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// New creates a new database connection.
func New(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return &Database{db: db}, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Migrate runs database migrations.
func (d *Database) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS violations (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			source TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			image_path TEXT,
			confidence REAL,
			bbox TEXT,
			plate_number TEXT,
			plate_confidence REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_violations_time ON violations(timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_violations_type_time ON violations(type, timestamp DESC)`,
	}

	for _, migration := range migrations {
		if _, err := d.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// SaveViolation indexes one recorded violation.
func (d *Database) SaveViolation(rec *storage.ViolationRecord) error {
	bboxJSON, err := json.Marshal(rec.BBox)
	if err != nil {
		return fmt.Errorf("failed to marshal bounding box: %w", err)
	}

	var plateNumber string
	var plateConfidence float64
	if rec.PlateInfo != nil {
		plateNumber = rec.PlateInfo.Number
		plateConfidence = float64(rec.PlateInfo.Confidence)
	}

	query := `INSERT INTO violations
		(id, type, source, timestamp, image_path, confidence, bbox, plate_number, plate_confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`

	_, err = d.db.Exec(query, rec.ID, string(rec.Type), rec.Source, rec.Timestamp,
		rec.ImagePath, float64(rec.Confidence), string(bboxJSON), plateNumber, plateConfidence)
	if err != nil {
		return fmt.Errorf("failed to save violation: %w", err)
	}
	return nil
}

// RecentViolations returns the newest violations, optionally filtered by
// type. A non-positive limit defaults to 50.
func (d *Database) RecentViolations(violationType string, limit int) ([]*ViolationRow, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, type, source, timestamp, image_path, confidence, plate_number
		FROM violations`
	args := []interface{}{}
	if violationType != "" {
		query += ` WHERE type = ?`
		args = append(args, violationType)
	}
	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query violations: %w", err)
	}
	defer rows.Close()

	var results []*ViolationRow
	for rows.Next() {
		var row ViolationRow
		if err := rows.Scan(&row.ID, &row.Type, &row.Source, &row.Timestamp,
			&row.ImagePath, &row.Confidence, &row.PlateNumber); err != nil {
			return nil, fmt.Errorf("failed to scan violation: %w", err)
		}
		results = append(results, &row)
	}
	return results, rows.Err()
}

// Summary returns per-type violation counts over the trailing window.
func (d *Database) Summary(window time.Duration) ([]TypeCount, error) {
	since := time.Now().Add(-window)

	rows, err := d.db.Query(
		`SELECT type, COUNT(*) FROM violations WHERE timestamp >= ? GROUP BY type ORDER BY type`,
		since)
	if err != nil {
		return nil, fmt.Errorf("failed to query violation summary: %w", err)
	}
	defer rows.Close()

	var counts []TypeCount
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.Type, &tc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		counts = append(counts, tc)
	}
	return counts, rows.Err()
}

// CountSince returns the total violation count over the trailing window.
func (d *Database) CountSince(window time.Duration) (int, error) {
	since := time.Now().Add(-window)

	var count int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM violations WHERE timestamp >= ?`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count violations: %w", err)
	}
	return count, nil
}
