// Package httpapi is the controller's HTTP surface: a thin JSON-over-HTTP
// translation layer in front of lib/orchestrator and lib/store, per §6's
// route table and the SPEC_FULL host/job-listing additions.
package httpapi

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"

	"github.com/qarax-project/qarax/lib/orchestrator"
	"github.com/qarax-project/qarax/lib/store"
)

// Server wires the orchestrator and store into chi handlers.
type Server struct {
	orch *orchestrator.Orchestrator
	st   store.Store
	log  *slog.Logger
}

// Config controls optional router behavior.
type Config struct {
	// OtelServiceName enables otelchi tracing middleware when non-empty.
	OtelServiceName string
}

func NewServer(orch *orchestrator.Orchestrator, st store.Store, log *slog.Logger) *Server {
	return &Server{orch: orch, st: st, log: log}
}

// Router builds the chi router: request id/real-ip/recoverer, optional
// otel tracing, logger injection, access logging, and a 60s handler
// timeout, mirroring the teacher's middleware ordering (tracing before
// logging so the access log can carry trace context).
func (s *Server) Router(cfg Config) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.OtelServiceName != "" {
		r.Use(otelchi.Middleware(cfg.OtelServiceName, otelchi.WithChiRoutes(r)))
	}
	r.Use(injectLogger(s.log))
	r.Use(accessLogger(s.log))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/vms", func(r chi.Router) {
		r.Get("/", s.listVMs)
		r.Post("/", s.createVM)
		r.Get("/{id}", s.getVM)
		r.Delete("/{id}", s.deleteVM)
		r.Post("/{id}/start", s.lifecycleAction("start"))
		r.Post("/{id}/stop", s.lifecycleAction("stop"))
		r.Post("/{id}/pause", s.lifecycleAction("pause"))
		r.Post("/{id}/resume", s.lifecycleAction("resume"))
		r.Get("/{id}/metrics", s.getMetrics)
		r.Get("/{id}/console", s.getConsole)
		r.Get("/{id}/jobs", s.listJobsForVM)
	})

	r.Route("/hosts", func(r chi.Router) {
		r.Get("/", s.listHosts)
		r.Post("/", s.createHost)
		r.Get("/{id}", s.getHost)
		r.Patch("/{id}", s.patchHost)
	})

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/{id}", s.getJob)
	})

	return r
}
