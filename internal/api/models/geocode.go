package models

import "github.com/fieldatlas/fieldatlas/internal/tile"

// GeocodeResult is one place-name match.
type GeocodeResult struct {
	DisplayName string           `json:"displayName"`
	BBox        tile.BoundingBox `json:"bbox"`
}

// GeocodeResponse lists the matches for a free-text query.
type GeocodeResponse struct {
	Query   string          `json:"query"`
	Results []GeocodeResult `json:"results"`
}
