// Package httpserver provides the chi-based HTTP scaffolding shared by the
// Authentication Controller and Global Controller binaries: middleware,
// health/readiness/metrics endpoints, and the JSON response envelope.
package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessCheck is one named dependency probed by GET /ready and /readyz.
// Fn's error is logged in full server-side but never echoed to the client.
type ReadinessCheck struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Server wraps a chi.Mux with the ambient middleware and endpoints common to
// both binaries. Domain routes are mounted on Router by the caller.
type Server struct {
	Router    *chi.Mux
	Logger    *slog.Logger
	startedAt time.Time
	checks    []ReadinessCheck
}

// New builds a Server with request-id, access-log, metrics, recovery, CORS,
// and a 30s request timeout already installed, plus health/ready/metrics
// endpoints mounted. checks are consulted by the readiness endpoints.
func New(logger *slog.Logger, metricsReg *prometheus.Registry, corsOrigins []string, checks []ReadinessCheck) *Server {
	s := &Server{
		Router:    chi.NewRouter(),
		Logger:    logger,
		startedAt: time.Now(),
		checks:    checks,
	}

	s.Router.Use(RequestID)
	s.Router.Use(Logger(logger))
	s.Router.Use(Metrics)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(middleware.Timeout(30 * time.Second))
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.Router.Get("/health", s.handleHealth)
	s.Router.Get("/healthz", s.handleHealth)
	s.Router.Get("/ready", s.handleReady)
	s.Router.Get("/readyz", s.handleReady)
	s.Router.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// readyResponse names the status and error fields of the GET /ready body.
// handleReady does not use this type: it writes the body from a map holding
// these fields plus one key per readiness check. Generic error messages only
// — detailed causes go to the server log through s.Logger.
type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"-"`
	Error  string            `json:"error,omitempty"`
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	results := make(map[string]any, len(s.checks)+1)
	allOK := true
	for _, c := range s.checks {
		if err := c.Fn(ctx); err != nil {
			s.Logger.Error("readiness check failed", "check", c.Name, "error", err)
			results[c.Name] = "error"
			allOK = false
		} else {
			results[c.Name] = "ok"
		}
	}

	if allOK {
		results["status"] = "ok"
		Respond(w, http.StatusOK, results)
		return
	}

	results["status"] = "unavailable"
	results["error"] = "one or more dependencies are not ready"
	Respond(w, http.StatusServiceUnavailable, results)
}
