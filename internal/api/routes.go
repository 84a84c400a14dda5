package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions carries the optional collaborators of the router.
type RouterOptions struct {
	AllowedOrigins []string
	Health         *HealthChecker
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Observer records per-route request metrics when set.
	Observer HTTPObserver
}

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if opts.Observer != nil {
		r.Use(instrument(opts.Observer))
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	health := opts.Health
	if health == nil {
		health = NewHealthChecker(nil, nil)
	}
	r.Get("/healthz", health.HandleLiveness)
	r.Get("/readyz", health.HandleReadiness)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/campaigns/{campaignID}", func(r chi.Router) {
			r.Post("/imports", h.HandleImport)
			r.Get("/imports", h.HandleListImports)
			r.Get("/metrics", h.HandleCampaignMetrics)
			r.Post("/winners", h.HandleSelectWinners)
			r.Post("/iterations", h.HandleGenerateIterations)
		})
		r.Get("/imports/template", h.HandleImportTemplate)
		r.Get("/imports/{batchID}", h.HandleGetImport)
	})

	return r
}
