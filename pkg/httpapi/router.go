// Package httpapi wires the chi router exposing task submission (SSE
// progress), the stress endpoint, the health check, and the Prometheus
// metrics endpoint.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eternnoir/mediascribe/pkg/config"
	"github.com/eternnoir/mediascribe/pkg/task"
	"github.com/eternnoir/mediascribe/pkg/worker"
)

// ServiceInfo is returned from the root health endpoint.
type ServiceInfo struct {
	Message     string `json:"message"`
	Environment string `json:"environment"`
	Debug       bool   `json:"debug"`
}

// Server bundles the dependencies the router's handlers need.
type Server struct {
	pool        *worker.Pool
	registry    *task.Registry
	cfg         config.HTTPConfig
	environment string
	debug       bool
}

// NewServer constructs a Server.
func NewServer(pool *worker.Pool, registry *task.Registry, cfg config.HTTPConfig, environment string, debug bool) *Server {
	return &Server{pool: pool, registry: registry, cfg: cfg, environment: environment, debug: debug}
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// The blanket request timeout fits the three short, synchronous routes
	// below. It is deliberately NOT applied to the SSE routes (a
	// submitted task can run well past 60s end to end) or to
	// /process-url (cpu_duration_sec can legitimately run up to 300s,
	// spec §6) — either would otherwise have chi cancel the response
	// mid-flight while the handler keeps running in the background.
	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(60 * time.Second))

		r.Get("/", s.handleHealth)
		r.Get("/metrics", promhttp.Handler().ServeHTTP)
		r.Get("/tasks/{taskID}", s.handleGetTask)
	})

	r.Post("/tasks", s.handleSubmitTask)
	r.Get("/tasks/{taskID}/stream", s.handleStreamTask)

	r.Post("/process-url/", s.handleProcessURL)
	r.Post("/process-url", s.handleProcessURL)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ServiceInfo{
		Message:     "mediascribe transcription pipeline is running.",
		Environment: s.environment,
		Debug:       s.debug,
	})
}
