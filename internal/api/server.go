// Package api exposes the read and registration surface over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"signal-tracker/internal/engine"
	"signal-tracker/internal/observability"
	"signal-tracker/internal/storage"
)

// DefaultMetricsWindowDays is the rolling window used when the request
// does not specify one.
const DefaultMetricsWindowDays = 30

// Server wraps the engine behind an HTTP router.
type Server struct {
	engine   *engine.Engine
	outcomes storage.SignalOutcomeStore
	logger   *zap.Logger
	http     *http.Server
}

// New creates a Server listening on addr.
func New(addr string, eng *engine.Engine, outcomes storage.SignalOutcomeStore, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{engine: eng, outcomes: outcomes, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Get("/entities/{id}/metrics", s.handleEntityMetrics)
	r.Get("/entities/{id}/evaluations", s.handleEntityEvaluations)
	r.Post("/signals", s.handleRegisterSignal)
	r.Get("/signals/{id}", s.handleSignalOutcome)
	r.Handle("/metrics", observability.Handler())

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins serving. Blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleEntityMetrics(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "id")

	windowDays := DefaultMetricsWindowDays
	if raw := r.URL.Query().Get("window_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, storage.ErrInvalidInput)
			return
		}
		windowDays = parsed
	}

	m, err := s.engine.Metrics(r.Context(), entityID, windowDays)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleEntityEvaluations(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "id")

	history, err := s.engine.EvaluationHistory(r.Context(), entityID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

type registerSignalRequest struct {
	SignalID     string  `json:"signal_id"`
	TokenAddress string  `json:"token_address"`
	EntryPrice   float64 `json:"entry_price"`
	Source       string  `json:"source"`
}

func (s *Server) handleRegisterSignal(w http.ResponseWriter, r *http.Request) {
	var req registerSignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, storage.ErrInvalidInput)
		return
	}

	entity, err := s.engine.RecordSignal(r.Context(), req.SignalID, req.TokenAddress, req.EntryPrice, req.Source)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entity)
}

func (s *Server) handleSignalOutcome(w http.ResponseWriter, r *http.Request) {
	signalID := chi.URLParam(r, "id")

	outcome, err := s.outcomes.GetBySignalID(r.Context(), signalID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrInvalidInput):
		status = http.StatusBadRequest
	default:
		s.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
