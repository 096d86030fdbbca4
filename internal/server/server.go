// Package server exposes the generation workflow over HTTP.
package server

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fabrica-labs/fabrica/internal/catalog"
	"github.com/fabrica-labs/fabrica/internal/history"
	"github.com/fabrica-labs/fabrica/internal/metrics"
	"github.com/fabrica-labs/fabrica/internal/store"
	"github.com/fabrica-labs/fabrica/internal/workflow"
)

// Server bundles the HTTP handlers and their dependencies.
type Server struct {
	engine  *workflow.Engine
	tracker *workflow.Tracker
	history *history.Store
	store   *store.CSVStore
	catalog *catalog.Catalog
	logger  *zap.Logger
}

// New creates the server.
func New(
	engine *workflow.Engine,
	tracker *workflow.Tracker,
	hist *history.Store,
	st *store.CSVStore,
	cat *catalog.Catalog,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:  engine,
		tracker: tracker,
		history: hist,
		store:   st,
		catalog: cat,
		logger:  logger,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.Handle("POST /api/v1/generate", s.instrument("/api/v1/generate", s.handleGenerate))
	mux.Handle("GET /api/v1/runs", s.instrument("/api/v1/runs", s.handleListRuns))
	mux.Handle("GET /api/v1/runs/{id}", s.instrument("/api/v1/runs/{id}", s.handleGetRun))
	mux.Handle("GET /api/v1/runs/{id}/stream", s.instrument("/api/v1/runs/{id}/stream", s.handleStreamRun))
	mux.Handle("GET /api/v1/domains", s.instrument("/api/v1/domains", s.handleDomains))
	mux.Handle("GET /api/v1/formats", s.instrument("/api/v1/formats", s.handleFormats))
	mux.Handle("GET /api/v1/files/stats", s.instrument("/api/v1/files/stats", s.handleFileStats))
	mux.Handle("GET /api/v1/files/sample", s.instrument("/api/v1/files/sample", s.handleFileSample))
	mux.Handle("DELETE /api/v1/files/cleanup", s.instrument("/api/v1/files/cleanup", s.handleFileCleanup))

	return mux
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument wraps a handler with request logging and metrics. The websocket
// endpoint passes through the raw writer because the upgrader needs it.
func (s *Server) instrument(pattern string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Upgrade") == "websocket" {
			h(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)

		duration := time.Since(start)
		metrics.HTTPRequests.WithLabelValues(r.Method, pattern, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, pattern).Observe(duration.Seconds())
		s.logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", duration),
		)
	})
}
