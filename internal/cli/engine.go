package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/fieldatlas/fieldatlas/internal/audit"
	"github.com/fieldatlas/fieldatlas/internal/config"
	"github.com/fieldatlas/fieldatlas/internal/download"
	"github.com/fieldatlas/fieldatlas/internal/geocode"
	"github.com/fieldatlas/fieldatlas/internal/geocode/nominatim"
	"github.com/fieldatlas/fieldatlas/internal/provider/resilience"
	"github.com/fieldatlas/fieldatlas/internal/region"
	"github.com/fieldatlas/fieldatlas/internal/tilesource"
	"github.com/fieldatlas/fieldatlas/internal/tilestore"
)

// engine bundles the components a command needs, built from the same
// environment configuration the daemon uses.
type engine struct {
	cfg      config.Config
	store    *tilestore.Store
	registry region.Repository
	resolver geocode.Resolver
	orch     *download.Orchestrator
	manager  *download.Manager
	auditor  *audit.Auditor
	modes    []region.Mode
}

func newEngine() (*engine, error) {
	cfg := config.FromEnv()

	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Logger()

	modes, err := cfg.Modes()
	if err != nil {
		return nil, fmt.Errorf("load modes: %w", err)
	}

	if err := os.MkdirAll(cfg.TileDir, 0o755); err != nil {
		return nil, fmt.Errorf("create tile directory: %w", err)
	}

	store := tilestore.New(cfg.TileDir, logger)
	registry := region.NewFileRepository(cfg.RegistryPath)
	providers := resilience.NewRegistry()

	fetcher := tilesource.NewClient(tilesource.ClientConfig{
		BaseURL:  cfg.TileSourceBaseURL,
		Timeout:  cfg.FetchTimeout,
		Registry: providers,
	})

	orch := download.NewOrchestrator(download.Config{
		Store:       store,
		Fetcher:     fetcher,
		Registry:    registry,
		Logger:      logger,
		Concurrency: cfg.DownloadConcurrency,
	})

	return &engine{
		cfg:      cfg,
		store:    store,
		registry: registry,
		resolver: nominatim.NewClient(nominatim.ClientConfig{
			BaseURL:  cfg.GeocoderBaseURL,
			Registry: providers,
		}),
		orch: orch,
		manager: download.NewManager(download.ManagerConfig{
			Orchestrator: orch,
			Store:        store,
			Registry:     registry,
			Logger:       logger,
		}),
		auditor: audit.New(store, logger),
		modes:   modes,
	}, nil
}
