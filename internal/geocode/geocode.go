// Package geocode resolves free-text place names into candidate
// bounding boxes. Lookups are advisory only: the tile cache stays fully
// usable when the geocoder is unreachable.
package geocode

import (
	"context"
	"errors"

	"github.com/fieldatlas/fieldatlas/internal/tile"
)

// ErrLookupUnavailable is returned when the geocoding call cannot
// complete. Callers treat it as recoverable.
var ErrLookupUnavailable = errors.New("geocoding lookup unavailable")

// MaxResults caps the number of candidates returned per query.
const MaxResults = 5

// Place is one ranked geocoding candidate.
type Place struct {
	DisplayName string           `json:"displayName"`
	BBox        tile.BoundingBox `json:"bbox"`
}

// Resolver turns a free-text query into ranked candidate places.
type Resolver interface {
	// Resolve performs at most one lookup attempt and returns up to
	// MaxResults candidates. Network failures surface as
	// ErrLookupUnavailable.
	Resolve(ctx context.Context, query string) ([]Place, error)
}
