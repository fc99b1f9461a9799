// Package tilesource fetches raster tiles from a slippy-map tile
// provider over HTTP.
package tilesource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldatlas/fieldatlas/internal/provider/resilience"
	"github.com/fieldatlas/fieldatlas/internal/tile"
)

const (
	// ProviderName identifies the tile provider.
	ProviderName = "tilesource"

	// DefaultBaseURL is the OpenStreetMap standard tile endpoint.
	DefaultBaseURL = "https://tile.openstreetmap.org"

	// DefaultTimeout bounds one tile fetch; a hung request is counted
	// as a normal fetch failure, never allowed to stall the region.
	DefaultTimeout = 20 * time.Second

	// userAgent identifies the app per the OSM tile usage policy.
	userAgent = "fieldatlas/1.0"
)

// ErrFetchFailed wraps any per-tile failure: network error, timeout, or
// a non-2xx status.
var ErrFetchFailed = errors.New("tile fetch failed")

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the tile source client.
type ClientConfig struct {
	// BaseURL is the tile endpoint base (defaults to OSM).
	BaseURL string

	// HTTPClient is the HTTP client to use. If nil, a resilient client
	// with circuit breaker and bounded retry is created.
	HTTPClient HTTPDoer

	// Timeout is the per-tile request timeout (default 20s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client fetches raster tiles from the provider endpoint.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new tile source client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Fetch retrieves the raster bytes for one tile. Any 2xx status is
// success; everything else is ErrFetchFailed.
func (c *Client) Fetch(ctx context.Context, k tile.Key) ([]byte, error) {
	url := fmt.Sprintf("%s/%d/%d/%d.png", c.baseURL, k.Z, k.X, k.Y)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for tile %s: %w", k, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrFetchFailed, k, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s: status %d", ErrFetchFailed, k, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: reading body: %s", ErrFetchFailed, k, err)
	}
	return data, nil
}
