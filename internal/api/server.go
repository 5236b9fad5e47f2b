// SPDX-License-Identifier: MIT

// Package api provides the HTTP control surface for vidsyncd. The daemon
// is single-account; the API is a thin trigger and status window over the
// sync engine.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/vidsync/internal/identity"
	"github.com/ManuGH/vidsync/internal/model"
	"github.com/ManuGH/vidsync/internal/netstat"
	"github.com/ManuGH/vidsync/internal/store"
)

// Engine is the subset of the sync engine the API drives.
type Engine interface {
	Upload(ctx context.Context) error
	Download(ctx context.Context) (model.SyncRecord, error)
	Sync(ctx context.Context) (model.SyncRecord, error)
	DeleteRemote(ctx context.Context) error
}

// Config wires a Server.
type Config struct {
	Listen  string
	Version string

	// TokenPath enables POST /api/token when non-empty.
	TokenPath string

	Engine   Engine
	Store    store.Store
	Identity identity.Provider
	Network  netstat.Monitor
	Logger   zerolog.Logger
}

// Server is the vidsyncd HTTP control surface.
type Server struct {
	cfg       Config
	logger    zerolog.Logger
	startTime time.Time
	srv       *http.Server
}

// New creates a Server. Call ListenAndServe to start it, or Router to
// mount the handler elsewhere (tests use httptest on the router).
func New(cfg Config) *Server {
	s := &Server{
		cfg:       cfg,
		logger:    cfg.Logger,
		startTime: time.Now(),
	}
	s.srv = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Router builds the chi handler with the canonical middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(Recoverer(s.logger))
	r.Use(RequestID)
	r.Use(Tracing())
	r.Use(RequestLogger(s.logger))
	r.Use(HTTPMetrics())

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.With(SyncRateLimit()).Post("/sync", s.handleSync)
		r.With(SyncRateLimit()).Post("/upload", s.handleUpload)
		r.Get("/status", s.handleStatus)
		r.Delete("/remote", s.handleDeleteRemote)
		if s.cfg.TokenPath != "" {
			r.Post("/token", s.handleToken)
		}
	})
	return r
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info().Str("listen", s.cfg.Listen).Msg("api server listening")
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
