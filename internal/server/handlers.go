package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fabrica-labs/fabrica/internal/formats"
	"github.com/fabrica-labs/fabrica/internal/history"
	"github.com/fabrica-labs/fabrica/internal/workflow"
)

// GenerateRequest is the POST /api/v1/generate body.
type GenerateRequest struct {
	Domain     string `json:"domain"`
	DataFormat string `json:"data_format"`
	NumRecords int    `json:"num_records"`
	Context    string `json:"context,omitempty"`
}

// GenerateResponse summarizes a finished run.
type GenerateResponse struct {
	RunID          string `json:"run_id"`
	Status         string `json:"status"`
	TotalRecords   int    `json:"total_records"`
	FilePath       string `json:"file_path,omitempty"`
	GenerationTime string `json:"generation_time"`
	Message        string `json:"message,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	start := time.Now()
	state, err := s.engine.Run(r.Context(), req.Domain, req.DataFormat, req.NumRecords, req.Context)
	if err != nil {
		// Validation failures: no state was constructed.
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.history != nil {
		if err := s.history.Record(r.Context(), state); err != nil {
			s.logger.Warn("Failed to record run history",
				zap.String("run_id", state.RunID),
				zap.Error(err),
			)
		}
	}

	resp := GenerateResponse{
		RunID:          state.RunID,
		Status:         string(state.Status),
		TotalRecords:   len(state.GeneratedData),
		FilePath:       state.FilePath,
		GenerationTime: humanDuration(time.Since(start)),
	}
	if state.Status == workflow.StatusCompleted {
		resp.Message = "Data generation completed successfully"
		s.writeJSON(w, http.StatusOK, resp)
		return
	}
	resp.Message = fmt.Sprintf("Data generation failed: %s", state.ErrorMessage)
	s.writeJSON(w, http.StatusInternalServerError, resp)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	recent := []history.Entry{}
	if s.history != nil {
		entries, err := s.history.List(r.Context(), limit)
		if err != nil {
			s.logger.Error("Failed to list run history", zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "failed to list runs")
			return
		}
		recent = entries
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"active": s.tracker.Active(),
		"recent": recent,
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")

	if snap, ok := s.tracker.Get(runID); ok {
		s.writeJSON(w, http.StatusOK, snap)
		return
	}

	if s.history != nil {
		entry, err := s.history.Get(r.Context(), runID)
		if err == nil {
			s.writeJSON(w, http.StatusOK, entry)
			return
		}
		if !errors.Is(err, history.ErrNotFound) {
			s.logger.Error("Failed to load run", zap.String("run_id", runID), zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "failed to load run")
			return
		}
	}
	s.writeError(w, http.StatusNotFound, "run not found")
}

func (s *Server) handleDomains(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"domains": s.catalog.Names(),
		"details": s.catalog.All(),
	})
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"formats": formats.Names(),
		"details": formats.All(),
	})
}

func (s *Server) handleFileStats(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("file_path")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "file_path is required")
		return
	}

	stats, err := s.store.Stats(path)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !stats.Exists {
		s.writeError(w, http.StatusNotFound, "file not found")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleFileSample(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("file_path")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "file_path is required")
		return
	}
	numRows := 5
	if v := r.URL.Query().Get("num_rows"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			s.writeError(w, http.StatusBadRequest, "num_rows must be between 1 and 100")
			return
		}
		numRows = n
	}

	stats, err := s.store.Stats(path)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !stats.Exists {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("file not found: %s", path))
		return
	}

	sample, err := s.store.Sample(path, numRows)
	if err != nil {
		s.logger.Error("Failed to read file sample", zap.String("path", path), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to read file sample")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"file_path":     path,
		"sample_rows":   len(sample),
		"total_records": stats.RecordCount,
		"data":          sample,
	})
}

func (s *Server) handleFileCleanup(w http.ResponseWriter, r *http.Request) {
	daysOld := 7
	if v := r.URL.Query().Get("days_old"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "days_old must be at least 1")
			return
		}
		daysOld = n
	}

	removed, err := s.store.CleanupOlderThan(time.Duration(daysOld) * 24 * time.Hour)
	if err != nil {
		s.logger.Error("Cleanup failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "cleanup failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message":       fmt.Sprintf("Cleaned up %d files older than %d days", removed, daysOld),
		"files_removed": removed,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// humanDuration renders a duration the way the progress UI shows it.
func humanDuration(d time.Duration) string {
	seconds := d.Seconds()
	switch {
	case seconds < 60:
		return fmt.Sprintf("%.1f seconds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%.1f minutes", seconds/60)
	default:
		return fmt.Sprintf("%.1f hours", seconds/3600)
	}
}
