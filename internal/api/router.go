// Package api provides the HTTP API for the FieldAtlas tile daemon.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/fieldatlas/fieldatlas/internal/api/handler"
	"github.com/fieldatlas/fieldatlas/internal/api/middleware"
	"github.com/fieldatlas/fieldatlas/internal/audit"
	"github.com/fieldatlas/fieldatlas/internal/download"
	"github.com/fieldatlas/fieldatlas/internal/geocode"
	"github.com/fieldatlas/fieldatlas/internal/provider/resilience"
	"github.com/fieldatlas/fieldatlas/internal/region"
	"github.com/fieldatlas/fieldatlas/internal/tileindex"
	"github.com/fieldatlas/fieldatlas/internal/tilestore"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	Providers *resilience.Registry
	Store     *tilestore.Store
	Index     *tileindex.Index
	Registry  region.Repository
	Manager   *download.Manager
	Auditor   *audit.Auditor
	Resolver  geocode.Resolver
	Modes     []region.Mode

	// Bridge is the WebSocket tile channel for the renderer. Optional.
	Bridge http.Handler
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "fieldatlas-tilesd"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Providers, cfg.Store, cfg.Index, cfg.Manager)
	geocodeHandler := handler.NewGeocodeHandler(cfg.Resolver)
	modesHandler := handler.NewModesHandler(cfg.Modes)
	regionsHandler := handler.NewRegionsHandler(cfg.Manager, cfg.Registry, cfg.Auditor, cfg.Modes)
	tilesHandler := handler.NewTilesHandler(cfg.Index)

	geocodeRateLimit := middleware.RateLimitByIP(middleware.GeocodeRateLimit)
	downloadRateLimit := middleware.RateLimitByIP(middleware.DownloadRateLimit)
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)
	tileRateLimit := middleware.RateLimitByIP(middleware.TileRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		// Geocoding fans out to the upstream provider, keep it tight.
		r.With(geocodeRateLimit).Get("/geocode", geocodeHandler.Lookup)

		r.With(standardRateLimit).Get("/modes", modesHandler.List)

		r.Route("/regions", func(r chi.Router) {
			r.With(downloadRateLimit).Post("/", regionsHandler.Create)
			r.With(standardRateLimit).Get("/", regionsHandler.List)

			r.Route("/active", func(r chi.Router) {
				r.Use(standardRateLimit)
				r.Get("/", regionsHandler.Active)
				r.Post("/cancel", regionsHandler.CancelActive)
			})

			r.Route("/{regionId}", func(r chi.Router) {
				r.Use(standardRateLimit)
				r.Delete("/", regionsHandler.Delete)
				r.Get("/audit", regionsHandler.Audit)
			})
		})

		r.Route("/tiles", func(r chi.Router) {
			if cfg.Bridge != nil {
				r.Handle("/ws", cfg.Bridge)
			}
			r.With(tileRateLimit).Get("/{z}/{x}/{y}.png", tilesHandler.Get)
		})
	})

	return r
}
