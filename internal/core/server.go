// Package core provides the HTTP chassis for the revenue relay. It builds a
// chi router that serves both the standalone HTTP server and the Lambda
// Function URL adapter, and applies the cross-cutting concerns (panic
// recovery, request IDs, logging, metrics) before requests reach handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"revenuerelay/internal/config"
)

// MetricsCollector records inbound request telemetry.
type MetricsCollector interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// RouteRegistrar mounts domain routes on the router. Registrars are supplied
// by the entry point so core never imports handler packages.
type RouteRegistrar func(r chi.Router)

// Server bundles the router with the dependencies the middleware needs.
type Server struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics MetricsCollector

	// HealthProbes are evaluated by GET /health.
	HealthProbes []HealthProbe

	// MetricsHandler is mounted at GET /metrics when set.
	MetricsHandler http.Handler

	RouteRegistrars []RouteRegistrar

	router *chi.Mux
}

// NewServer validates its dependencies and prepares an empty router. The
// caller mounts routes with MountRoutes once the optional fields are set.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config: cfg,
		Logger: logger,
		router: chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases server resources. The relay holds no pools or
// connections of its own, so this only records the event.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown complete")
	return nil
}
