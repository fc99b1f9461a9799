// Package main provides the entrypoint for the FieldAtlas tile daemon.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldatlas/fieldatlas/internal/api"
	"github.com/fieldatlas/fieldatlas/internal/api/middleware"
	"github.com/fieldatlas/fieldatlas/internal/audit"
	"github.com/fieldatlas/fieldatlas/internal/config"
	"github.com/fieldatlas/fieldatlas/internal/download"
	"github.com/fieldatlas/fieldatlas/internal/geocode/nominatim"
	"github.com/fieldatlas/fieldatlas/internal/provider/resilience"
	"github.com/fieldatlas/fieldatlas/internal/region"
	"github.com/fieldatlas/fieldatlas/internal/telemetry"
	"github.com/fieldatlas/fieldatlas/internal/tileindex"
	"github.com/fieldatlas/fieldatlas/internal/tilesource"
	"github.com/fieldatlas/fieldatlas/internal/tilestore"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "fieldatlas-tilesd"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting FieldAtlas tile daemon")

	cfg := config.FromEnv()

	ctx := context.Background()
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TelemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.TelemetryEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	modes, err := cfg.Modes()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load download modes")
	}

	if err := os.MkdirAll(cfg.TileDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.TileDir).Msg("failed to create tile directory")
	}

	store := tilestore.New(cfg.TileDir, log)
	registry := region.NewFileRepository(cfg.RegistryPath)

	index := tileindex.New(store, log)
	if err := index.Rebuild(); err != nil {
		log.Fatal().Err(err).Msg("failed to build tile index")
	}
	log.Info().
		Str("tile_dir", cfg.TileDir).
		Int("indexed", index.Size()).
		Msg("tile index ready")

	providers := resilience.NewRegistry()

	resolver := nominatim.NewClient(nominatim.ClientConfig{
		BaseURL:  cfg.GeocoderBaseURL,
		Registry: providers,
	})

	fetcher := tilesource.NewClient(tilesource.ClientConfig{
		BaseURL:  cfg.TileSourceBaseURL,
		Timeout:  cfg.FetchTimeout,
		Registry: providers,
	})

	orchestrator := download.NewOrchestrator(download.Config{
		Store:       store,
		Fetcher:     fetcher,
		Registry:    registry,
		Logger:      log,
		Concurrency: cfg.DownloadConcurrency,
	})
	manager := download.NewManager(download.ManagerConfig{
		Orchestrator: orchestrator,
		Store:        store,
		Registry:     registry,
		Index:        index,
		Logger:       log,
	})
	log.Info().Msg("download manager initialized")

	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		Providers:   providers,
		Store:       store,
		Index:       index,
		Registry:    registry,
		Manager:     manager,
		Auditor:     audit.New(store, log),
		Resolver:    resolver,
		Modes:       modes,
		Bridge:      tileindex.NewBridge(index, log),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// A download in flight gets cancelled cooperatively and resumes on
	// the next run, so shutdown never has to wait for it.
	if err := manager.Cancel(); err == nil {
		log.Info().Msg("cancelled active download")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
