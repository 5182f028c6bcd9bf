// Package server hosts the voxsign HTTP surface: the /ws/translate websocket
// endpoint carrying audio in and JSON events out, plus health and metrics
// endpoints, all wrapped in the tracing/metrics middleware.
package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxsign/voxsign/internal/health"
	"github.com/voxsign/voxsign/internal/observe"
	"github.com/voxsign/voxsign/internal/session"
)

// Server wires the session manager and health checks into an HTTP handler.
type Server struct {
	manager *session.Manager
	health  *health.Handler
	metrics *observe.Metrics
}

// New creates a Server. metrics may not be nil; pass
// [observe.DefaultMetrics] when no custom provider is configured.
func New(manager *session.Manager, healthHandler *health.Handler, metrics *observe.Metrics) *Server {
	return &Server{
		manager: manager,
		health:  healthHandler,
		metrics: metrics,
	}
}

// Handler returns the full route tree:
//
//	GET /ws/translate — streaming translation websocket
//	GET /healthz      — liveness
//	GET /readyz       — readiness
//	GET /metrics      — Prometheus scrape endpoint
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/translate", s.handleTranslate)
	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.metrics)(mux)
}
