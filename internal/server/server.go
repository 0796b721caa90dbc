// Package server exposes the operator HTTP API over the pipeline.
package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"trafficwatch/internal/auth"
	"trafficwatch/internal/capture"
	"trafficwatch/internal/database"
	"trafficwatch/internal/metrics"
	"trafficwatch/internal/middleware"
	"trafficwatch/internal/pipeline"
	"trafficwatch/internal/ws"
)

const maxUploadBytes = 32 << 20 // 32MB frame upload cap

// Server wires the HTTP API to the pipeline components.
type Server struct {
	worker        *pipeline.StreamWorker
	processor     *pipeline.FrameProcessor
	db            *database.Database
	wsHandler     *ws.Handler
	authenticator *auth.Authenticator
	metrics       *metrics.Metrics
	source        string
}

// New creates a server over the given pipeline components. db and
// metrics may be nil; the corresponding endpoints then report
// unavailable.
func New(worker *pipeline.StreamWorker, processor *pipeline.FrameProcessor, db *database.Database,
	hub *ws.Hub, authenticator *auth.Authenticator, m *metrics.Metrics, source string) *Server {
	return &Server{
		worker:        worker,
		processor:     processor,
		db:            db,
		wsHandler:     ws.NewHandler(hub),
		authenticator: authenticator,
		metrics:       m,
		source:        source,
	}
}

// Routes builds the HTTP handler with authentication applied to the
// API endpoints. Login, WebSocket upgrades and metrics stay open.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.Handle("/ws/updates", s.wsHandler)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	api := http.NewServeMux()
	api.HandleFunc("GET /api/status", s.handleStatus)
	api.HandleFunc("GET /api/frame/latest", s.handleLatestFrame)
	api.HandleFunc("POST /api/traffic/analyze", s.handleAnalyze)
	api.HandleFunc("GET /api/violations/recent", s.handleRecentViolations)
	api.HandleFunc("GET /api/traffic/summary", s.handleTrafficSummary)

	authed := middleware.AuthMiddleware(s.authenticator)(api)
	mux.Handle("/api/", authed)

	return mux
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, expiresAt, err := s.authenticator.Authenticate(req.Username, req.Password)
	if err != nil {
		if err == auth.ErrAuthDisabled {
			writeError(w, http.StatusNotFound, "authentication is disabled")
			return
		}
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"expires_at": expiresAt,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.worker.Status())
}

func (s *Server) handleLatestFrame(w http.ResponseWriter, r *http.Request) {
	frame := s.worker.LastFrame()
	if len(frame) == 0 {
		writeError(w, http.StatusNotFound, "no frame processed yet")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(frame)))
	w.Write(frame)
}

// handleAnalyze runs one uploaded frame through the same processing
// path as the live stream.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	frame := &capture.Frame{
		Source:    "upload",
		Timestamp: time.Now(),
		Data:      data,
	}

	result, err := s.processor.Process(r.Context(), frame)
	if err != nil {
		log.Printf("[Server] Analyze failed: %v", err)
		writeError(w, http.StatusUnprocessableEntity, "frame could not be decoded")
		return
	}

	violationCounts := make(map[string]int, len(result.Violations))
	for vtype, list := range result.Violations {
		violationCounts[string(vtype)] = len(list)
	}

	analyzer := s.processor.Analyzer()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"vehicle_count":        len(result.Vehicles),
		"vehicles":             result.Vehicles,
		"violations":           result.Violations,
		"violation_counts":     violationCounts,
		"traffic_density":      analyzer.Density(5 * time.Minute),
		"predicted_congestion": analyzer.PredictCongestion(5 * time.Minute),
		"timestamp":            result.Timestamp,
	})
}

func (s *Server) handleRecentViolations(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "violation index not configured")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	rows, err := s.db.RecentViolations(r.URL.Query().Get("type"), limit)
	if err != nil {
		log.Printf("[Server] Recent violations query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if rows == nil {
		rows = []*database.ViolationRow{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"violations": rows,
		"count":      len(rows),
	})
}

func (s *Server) handleTrafficSummary(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			hours = n
		}
	}
	window := time.Duration(hours) * time.Hour

	var byType []database.TypeCount
	var total int
	if s.db != nil {
		var err error
		byType, err = s.db.Summary(window)
		if err != nil {
			log.Printf("[Server] Summary query failed: %v", err)
			writeError(w, http.StatusInternalServerError, "query failed")
			return
		}
		total, err = s.db.CountSince(window)
		if err != nil {
			log.Printf("[Server] Summary count failed: %v", err)
			writeError(w, http.StatusInternalServerError, "query failed")
			return
		}
	}
	if byType == nil {
		byType = []database.TypeCount{}
	}

	analyzer := s.processor.Analyzer()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"source":               s.source,
		"window_hours":         hours,
		"total_violations":     total,
		"violations_by_type":   byType,
		"traffic_density":      analyzer.Density(5 * time.Minute),
		"predicted_congestion": analyzer.PredictCongestion(5 * time.Minute),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[Server] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ListenAndServe runs the HTTP server until it fails or the listener
// is shut down.
func (s *Server) ListenAndServe(port int) error {
	addr := fmt.Sprintf(":%d", port)
	log.Printf("[Server] HTTP server listening on %s", addr)
	return http.ListenAndServe(addr, s.Routes())
}
