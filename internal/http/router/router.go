// Package router assembles the HTTP surface of the service:
//
//	POST   /api/students        → register a student
//	GET    /api/students        → list all students
//	GET    /api/students/{id}   → get one student by id
//	PATCH  /api/students/{id}   → overwrite name and email
//	DELETE /api/students/{id}   → delete a student
//	GET    /health              → liveness probe
//	GET    /metrics             → Prometheus exposition
package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dlvi/student-management/internal/http/handlers/student"
	"github.com/dlvi/student-management/internal/http/middleware"
	"github.com/dlvi/student-management/internal/metrics"
	"github.com/dlvi/student-management/internal/utils/response"
)

type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// RequestTimeout bounds each API request. Zero disables it.
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// New returns the root handler.
func New(svc student.Service, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics(opts.Metrics))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.WriteStatus(w, r, http.StatusNotFound, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.WriteStatus(w, r, http.StatusMethodNotAllowed, r.Method+" is not allowed on "+r.URL.Path)
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	deps := student.Deps{
		Service:      svc,
		Logger:       log,
		MaxBodyBytes: opts.MaxBodyBytes,
	}
	r.Route("/api/students", func(r chi.Router) {
		if opts.RequestTimeout > 0 {
			r.Use(chimw.Timeout(opts.RequestTimeout))
		}
		r.Post("/", student.New(deps))
		r.Get("/", student.GetList(deps))
		r.Get("/{id}", student.GetByID(deps))
		r.Patch("/{id}", student.Patch(deps))
		r.Delete("/{id}", student.Delete(deps))
	})

	return r
}
