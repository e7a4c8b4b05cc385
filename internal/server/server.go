// Package server provides the read-only status server and its wiring.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pendergraft/contraship/internal/artifact"
	"github.com/pendergraft/contraship/internal/config"
	deploymentsTransport "github.com/pendergraft/contraship/internal/deployments/transport"
	"github.com/pendergraft/contraship/internal/middleware/logging"
	"github.com/pendergraft/contraship/internal/observability/metrics"
)

// Server is the HTTP server
type Server struct {
	cfg       *config.Config
	artifacts *artifact.Store
	logger    *slog.Logger
	router    *chi.Mux

	// nil when storage is disabled
	deploymentsSvc deploymentsTransport.Service
}

// TargetStatus describes a configured target and its committed build
type TargetStatus struct {
	Name    string     `json:"name"`
	Sources []string   `json:"sources"`
	Built   bool       `json:"built"`
	Hash    string     `json:"hash,omitempty"`
	Size    int64      `json:"size,omitempty"`
	BuiltAt *time.Time `json:"builtAt,omitempty"`
}

// New creates a new server. deployments may be nil when no ledger is configured.
func New(cfg *config.Config, artifacts *artifact.Store, deployments deploymentsTransport.Service, logger *slog.Logger) *Server {
	s := &Server{
		cfg:            cfg,
		artifacts:      artifacts,
		logger:         logger,
		router:         chi.NewRouter(),
		deploymentsSvc: deployments,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(logging.Middleware(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/targets", s.handleTargets)
		r.Get("/targets/{name}/artifact", s.handleArtifact)

		r.Route("/deployments", func(r chi.Router) {
			if s.deploymentsSvc == nil {
				r.HandleFunc("/*", s.handleStorageDisabled)
				r.HandleFunc("/", s.handleStorageDisabled)
				return
			}
			deploymentsTransport.NewHandler(s.deploymentsSvc).RegisterRoutes(r)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	names := s.cfg.TargetNames()
	statuses := make([]TargetStatus, 0, len(names))
	for _, name := range names {
		target := s.cfg.Targets[name]
		status := TargetStatus{Name: name, Sources: target.SourceNames()}

		info, err := s.artifacts.Info(name)
		switch {
		case err == nil:
			status.Built = true
			status.Hash = info.Hash
			status.Size = info.Size
			status.BuiltAt = &info.BuiltAt
		case errors.Is(err, artifact.ErrNotFound):
		default:
			s.logger.Error("reading build info", "target", name, "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to read build info")
			return
		}
		statuses = append(statuses, status)
	}

	writeJSON(w, http.StatusOK, map[string]any{"targets": statuses})
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := s.cfg.Target(name); err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown target: "+name)
		return
	}

	raw, err := s.artifacts.ReadRaw(name)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "target has not been built: "+name)
			return
		}
		s.logger.Error("reading artifact", "target", name, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to read artifact")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", `"`+artifact.Hash(raw)+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

func (s *Server) handleStorageDisabled(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusServiceUnavailable, "STORAGE_DISABLED", "no deployment ledger is configured")
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
