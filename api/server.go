/*
server.go - Routes and middleware of the license API

PURPOSE:
  Builds the chi router: middleware first, then the operational endpoints,
  then the /api tree. No handler logic lives here.

MIDDLEWARE (in order):
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the HR frontend

ROUTES:
  /api/policies/*       Policy catalog administration
  /api/employees/*      Employees, balances, request submission
  /api/requests/*       Request lifecycle
  /api/admin/*          Manual sweep
  /metrics              Prometheus
  /healthz              Liveness with a database ping

SEE ALSO:
  - handlers.go: What each route does
  - cmd/server/main.go: Where the router is served
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions tunes NewRouter. The zero value is usable.
type RouterOptions struct {
	AllowedOrigins []string
	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// NewRouter mounts every route on a fresh chi router.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor-ID"},
		AllowCredentials: true,
	}))

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", h.Healthz)

	r.Route("/api", func(r chi.Router) {
		r.Route("/policies", func(r chi.Router) {
			r.Get("/", h.ListPolicies)
			r.Post("/", h.CreatePolicy)
			r.Get("/{id}", h.GetPolicy)
			r.Delete("/{id}", h.DeletePolicy)
		})

		r.Route("/employees", func(r chi.Router) {
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/requests", h.ListRequests)
			r.Post("/{id}/requests", h.SubmitRequest)
		})

		// Lifecycle of one request
		r.Route("/requests/{id}", func(r chi.Router) {
			r.Get("/", h.GetRequest)
			r.Put("/", h.UpdateRequest)
			r.Delete("/", h.RetireRequest)
			r.Get("/history", h.GetHistory)
			r.Put("/certificate", h.AttachCertificate)
			r.Post("/evaluate", h.EvaluateRequest)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/sweep", h.TriggerSweep)
		})
	})

	return r
}
