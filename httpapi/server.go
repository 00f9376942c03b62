// Package httpapi wires the HTTP Edge (spec.md §4.11): the Integration
// Router's /command and Event Intake's /event entry points, process/agent
// introspection, and the standard liveness/readiness probes.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentmesh/platform/integration"
	"github.com/agentmesh/platform/internal/logging"
	"github.com/agentmesh/platform/internal/middleware"
	"github.com/agentmesh/platform/orchestrator"
)

// ReadinessReporter reports whether every required agent has reached
// Running, backing GET /ready (spec.md §4.11).
type ReadinessReporter interface {
	Health() []orchestrator.AgentHealth
	Graph() map[string][]string
}

// Server hosts the HTTP Edge's gorilla/mux router and its middleware chain.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
}

// Config configures Server's transport-level knobs.
type Config struct {
	Addr               string
	SigningKey         string
	PathRateLimit      float64
	PathRateLimitBurst int
}

// New builds a Server wiring the command router, event intake, and
// orchestrator introspection endpoints behind the standard middleware chain
// (grounded on the teacher's infrastructure/service.Run middleware
// ordering: recovery, logging, then rate limit, with auth per route).
func New(cfg Config, cmdRouter *integration.Router, events *integration.EventIntake, orch ReadinessReporter, logger *logging.Logger) *Server {
	r := mux.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))

	limiter := middleware.NewPathLimiter(ratePerSecond(cfg.PathRateLimit), rateBurst(cfg.PathRateLimitBurst))
	r.Use(limiter.Middleware())

	api := &handlers{router: cmdRouter, events: events, orch: orch, logger: logger}

	r.Handle("/command", middleware.ActorAuth(cfg.SigningKey)(http.HandlerFunc(api.postCommand))).Methods(http.MethodPost)
	r.Handle("/event", middleware.ActorAuth(cfg.SigningKey)(http.HandlerFunc(api.postEvent))).Methods(http.MethodPost)
	r.HandleFunc("/health", api.health).Methods(http.MethodGet)
	r.HandleFunc("/ready", api.ready).Methods(http.MethodGet)
	r.HandleFunc("/api/status", api.status).Methods(http.MethodGet)
	r.HandleFunc("/api/graph", api.graph).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return &Server{
		router: r,
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           r,
			ReadTimeout:       30 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}
}

// Router exposes the underlying mux.Router, mainly for tests.
func (s *Server) Router() *mux.Router { return s.router }

// ListenAndServe blocks serving HTTP until the server is shut down.
func (s *Server) ListenAndServe() error {
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests up to ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func ratePerSecond(v float64) float64 {
	if v <= 0 {
		return 50
	}
	return v
}

func rateBurst(v int) int {
	if v <= 0 {
		return 20
	}
	return v
}
