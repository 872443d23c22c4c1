// Package api provides the status HTTP API for probed WRMS sites.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/wrmsprobe/wrmsprobe/internal/api/handler"
	"github.com/wrmsprobe/wrmsprobe/internal/api/middleware"
	"github.com/wrmsprobe/wrmsprobe/internal/api/models"
	"github.com/wrmsprobe/wrmsprobe/internal/auth"
	"github.com/wrmsprobe/wrmsprobe/internal/provider/resilience"
	"github.com/wrmsprobe/wrmsprobe/internal/worker"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version    string
	BuildTime  string
	Logger     zerolog.Logger
	Metrics    *middleware.Metrics
	RequireTLS bool

	// Tokens validates operator bearer tokens.
	Tokens *auth.JWTService

	// Sweep owns the configured sites and their latest results.
	Sweep *worker.SweepJob

	// Registry is optional and adds breaker state to responses.
	Registry *resilience.Registry
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing())
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		problem := models.NewNotFound(middleware.GetRequestID(req.Context()), "no route for "+req.URL.Path)
		problem.Instance = req.URL.Path
		problem.Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		problem := models.NewMethodNotAllowed(middleware.GetRequestID(req.Context()),
			req.Method+" is not supported on "+req.URL.Path)
		problem.Instance = req.URL.Path
		problem.Write(w)
	})

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Sweep, cfg.Registry)
	authMiddleware := middleware.Auth(cfg.Tokens)

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public, except status)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(authMiddleware, middleware.RequireScope(auth.ScopeRead)).Get("/status", opsHandler.SystemStatus)
		})

		if cfg.Sweep == nil {
			return
		}
		sitesHandler := handler.NewSitesHandler(cfg.Sweep, cfg.Registry, cfg.Logger)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireScope(auth.ScopeRead))
				r.Use(middleware.RateLimitByOperator(middleware.ReadRateLimit))
				r.Get("/sites", sitesHandler.ListSites)
				r.Get("/sites/{site}", sitesHandler.GetSite)
			})

			// Runs hit production sites, so they get a much tighter budget.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireScope(auth.ScopeRun))
				r.Use(middleware.RateLimitByOperator(middleware.RunRateLimit))
				r.Post("/sites/{site}/runs", sitesHandler.RunSite)
				r.Post("/sweeps", sitesHandler.StartSweep)
			})
		})
	})

	return r
}
