// Package nominatim provides a geocoding client for the Nominatim
// search API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldatlas/fieldatlas/internal/geocode"
	"github.com/fieldatlas/fieldatlas/internal/provider/resilience"
	"github.com/fieldatlas/fieldatlas/internal/tile"
)

const (
	// ProviderName identifies this geocoding provider.
	ProviderName = "nominatim"

	// DefaultBaseURL is the public Nominatim endpoint.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	// userAgent identifies the app per the Nominatim usage policy.
	userAgent = "fieldatlas/1.0"
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Nominatim client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to the public instance).
	BaseURL string

	// HTTPClient is the HTTP client to use. If nil, a breaker-guarded
	// single-attempt client is created; the resolver owns no retry.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (default 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Nominatim search client.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new Nominatim client.
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
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:     ProviderName,
			Timeout:  timeout,
			NoRetry:  true,
			Registry: cfg.Registry,
		})
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

// searchResult is the wire shape of one Nominatim candidate. The
// bounding box arrives as [south, north, west, east] strings.
type searchResult struct {
	DisplayName string   `json:"display_name"`
	BoundingBox []string `json:"boundingbox"`
}

// Resolve looks up a free-text query and returns up to
// geocode.MaxResults candidates.
func (c *Client) Resolve(ctx context.Context, query string) ([]geocode.Place, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("limit", strconv.Itoa(geocode.MaxResults))

	reqURL := fmt.Sprintf("%s/search?%s", c.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug().Str("query", query).Msg("resolving place name")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", geocode.ErrLookupUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", geocode.ErrLookupUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %s", geocode.ErrLookupUnavailable, err)
	}

	var results []searchResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %s", geocode.ErrLookupUnavailable, err)
	}

	places := make([]geocode.Place, 0, len(results))
	for _, r := range results {
		bbox, err := parseBoundingBox(r.BoundingBox)
		if err != nil {
			c.logger.Warn().Err(err).Str("place", r.DisplayName).Msg("skipping candidate with bad bounding box")
			continue
		}
		places = append(places, geocode.Place{
			DisplayName: r.DisplayName,
			BBox:        bbox,
		})
		if len(places) == geocode.MaxResults {
			break
		}
	}

	c.logger.Debug().Int("candidates", len(places)).Msg("place name resolved")
	return places, nil
}

func parseBoundingBox(raw []string) (tile.BoundingBox, error) {
	if len(raw) != 4 {
		return tile.BoundingBox{}, fmt.Errorf("bounding box has %d fields, want 4", len(raw))
	}

	vals := make([]float64, 4)
	for i, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return tile.BoundingBox{}, fmt.Errorf("parsing bounding box field %d: %w", i, err)
		}
		vals[i] = v
	}

	bbox := tile.BoundingBox{South: vals[0], North: vals[1], West: vals[2], East: vals[3]}
	if err := bbox.Validate(); err != nil {
		return tile.BoundingBox{}, err
	}
	return bbox, nil
}

// Ensure Client implements geocode.Resolver.
var _ geocode.Resolver = (*Client)(nil)
