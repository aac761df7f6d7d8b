package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mlcrowe/geocode-reconciler/internal/domain"
)

// Geocoder runs an immediate-mode lookup. Implemented by pipeline.Pipeline.
type Geocoder interface {
	Lookup(ctx context.Context, components domain.Components) ([]domain.Candidate, error)
}

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes the immediate-mode geocode endpoint plus health,
// readiness, and metrics routes.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// lookupTimeout bounds an immediate-mode request end to end, including
// the provider fan-out.
const lookupTimeout = 30 * time.Second

// NewServer creates an HTTP server with /geocode, /healthz, /readyz, and
// /metrics routes.
func NewServer(addr string, geocoder Geocoder, ready ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: lookupTimeout + 5*time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("POST /geocode", s.handleGeocode(geocoder))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// geocodeResponse is the wire shape of a successful lookup. An empty
// candidates list is a 200: "could not verify" is an answer, not a
// server failure.
type geocodeResponse struct {
	Candidates []domain.Candidate `json:"candidates"`
}

func (s *Server) handleGeocode(geocoder Geocoder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var components domain.Components
		if err := json.NewDecoder(r.Body).Decode(&components); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), lookupTimeout)
		defer cancel()

		candidates, err := geocoder.Lookup(ctx, components)
		if err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error()})
				return
			}
			s.logger.Error("lookup failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
			return
		}

		if candidates == nil {
			candidates = []domain.Candidate{}
		}
		writeJSON(w, http.StatusOK, geocodeResponse{Candidates: candidates})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
