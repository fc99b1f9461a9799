// Package config loads daemon configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fieldatlas/fieldatlas/internal/region"
)

// Config holds the daemon configuration.
type Config struct {
	Port        string
	Environment string

	// DataDir is the root for everything the daemon persists. The tile
	// tree and the region registry live beneath it.
	DataDir      string
	TileDir      string
	RegistryPath string

	// ModesFile optionally overrides the built-in download modes.
	ModesFile string

	TileSourceBaseURL string
	GeocoderBaseURL   string

	DownloadConcurrency int
	FetchTimeout        time.Duration

	OTLPEndpoint     string
	TelemetryEnabled bool
}

// FromEnv creates a Config from environment variables. A .env file in
// the working directory is loaded first when present.
func FromEnv() Config {
	// Missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	dataDir := getEnvOrDefault("FIELDATLAS_DATA_DIR", defaultDataDir())
	concurrency, _ := strconv.Atoi(getEnvOrDefault("FIELDATLAS_DOWNLOAD_CONCURRENCY", "6"))
	fetchTimeout, _ := time.ParseDuration(getEnvOrDefault("FIELDATLAS_FETCH_TIMEOUT", "20s"))

	return Config{
		Port:                getEnvOrDefault("APP_PORT", "8446"),
		Environment:         getEnvOrDefault("APP_ENV", "development"),
		DataDir:             dataDir,
		TileDir:             getEnvOrDefault("FIELDATLAS_TILE_DIR", filepath.Join(dataDir, "tiles")),
		RegistryPath:        getEnvOrDefault("FIELDATLAS_REGISTRY_PATH", filepath.Join(dataDir, "regions.json")),
		ModesFile:           os.Getenv("FIELDATLAS_MODES_FILE"),
		TileSourceBaseURL:   os.Getenv("FIELDATLAS_TILE_SOURCE_URL"),
		GeocoderBaseURL:     os.Getenv("FIELDATLAS_GEOCODER_URL"),
		DownloadConcurrency: concurrency,
		FetchTimeout:        fetchTimeout,
		OTLPEndpoint:        getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		TelemetryEnabled:    os.Getenv("OTEL_ENABLED") == "true",
	}
}

// Modes returns the download modes, reading the override file when one
// is configured.
func (c Config) Modes() ([]region.Mode, error) {
	if c.ModesFile == "" {
		return region.DefaultModes(), nil
	}

	raw, err := os.ReadFile(c.ModesFile)
	if err != nil {
		return nil, fmt.Errorf("read modes file: %w", err)
	}

	var doc struct {
		Modes []region.Mode `yaml:"modes"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse modes file: %w", err)
	}
	if len(doc.Modes) == 0 {
		return nil, fmt.Errorf("modes file %s defines no modes", c.ModesFile)
	}

	for _, m := range doc.Modes {
		if m.ID == "" {
			return nil, fmt.Errorf("modes file %s: mode with empty id", c.ModesFile)
		}
		if m.MinZoom > m.MaxZoom {
			return nil, fmt.Errorf("modes file %s: mode %s has minZoom above maxZoom", c.ModesFile, m.ID)
		}
		if m.TileLimit <= 0 {
			return nil, fmt.Errorf("modes file %s: mode %s needs a positive tile limit", c.ModesFile, m.ID)
		}
	}

	return doc.Modes, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "fieldatlas-data"
	}
	return filepath.Join(home, ".fieldatlas")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
