package nominatim_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldatlas/fieldatlas/internal/geocode"
	"github.com/fieldatlas/fieldatlas/internal/geocode/nominatim"
)

func TestClient_Resolve(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Beersheba", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		// Nominatim returns boundingbox as [south, north, west, east].
		response := []map[string]interface{}{
			{
				"display_name": "Beersheba, Southern District, Israel",
				"boundingbox":  []string{"31.2093", "31.2933", "34.7384", "34.8516"},
			},
			{
				"display_name": "Beersheba Springs, Tennessee, USA",
				"boundingbox":  []string{"35.4481", "35.4786", "-85.6921", "-85.6467"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := nominatim.NewClient(nominatim.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
		Logger:     zerolog.Nop(),
	})

	places, err := client.Resolve(context.Background(), "Beersheba")
	require.NoError(t, err)
	require.Len(t, places, 2)

	assert.Equal(t, "Beersheba, Southern District, Israel", places[0].DisplayName)
	assert.InDelta(t, 31.2933, places[0].BBox.North, 1e-9)
	assert.InDelta(t, 31.2093, places[0].BBox.South, 1e-9)
	assert.InDelta(t, 34.7384, places[0].BBox.West, 1e-9)
	assert.InDelta(t, 34.8516, places[0].BBox.East, 1e-9)
}

func TestClient_Resolve_SkipsBadBoundingBoxes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		response := []map[string]interface{}{
			{
				"display_name": "Broken",
				"boundingbox":  []string{"oops", "31.2933", "34.7384", "34.8516"},
			},
			{
				"display_name": "Fine",
				"boundingbox":  []string{"31.2093", "31.2933", "34.7384", "34.8516"},
			},
		}
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := nominatim.NewClient(nominatim.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
		Logger:     zerolog.Nop(),
	})

	places, err := client.Resolve(context.Background(), "anywhere")
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "Fine", places[0].DisplayName)
}

func TestClient_Resolve_CapsResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		var response []map[string]interface{}
		for i := 0; i < 8; i++ {
			response = append(response, map[string]interface{}{
				"display_name": "Candidate",
				"boundingbox":  []string{"31.2093", "31.2933", "34.7384", "34.8516"},
			})
		}
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := nominatim.NewClient(nominatim.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
		Logger:     zerolog.Nop(),
	})

	places, err := client.Resolve(context.Background(), "anywhere")
	require.NoError(t, err)
	assert.Len(t, places, geocode.MaxResults)
}

func TestClient_Resolve_LookupUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	server.Close() // connection refused from here on

	client := nominatim.NewClient(nominatim.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
		Logger:     zerolog.Nop(),
	})

	_, err := client.Resolve(context.Background(), "anywhere")
	assert.True(t, errors.Is(err, geocode.ErrLookupUnavailable))
}

func TestClient_Resolve_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := nominatim.NewClient(nominatim.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
		Logger:     zerolog.Nop(),
	})

	_, err := client.Resolve(context.Background(), "anywhere")
	assert.True(t, errors.Is(err, geocode.ErrLookupUnavailable))
}
