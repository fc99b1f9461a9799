// Package region defines downloaded-region metadata and its registry.
package region

import (
	"time"

	"github.com/google/uuid"

	"github.com/fieldatlas/fieldatlas/internal/tile"
)

// Mode is a named download configuration. Tile count grows roughly 4x
// per zoom level, so the fine-grained mode carries a lower ceiling.
type Mode struct {
	ID        string `json:"id" yaml:"id"`
	Label     string `json:"label" yaml:"label"`
	MinZoom   int    `json:"minZoom" yaml:"minZoom"`
	MaxZoom   int    `json:"maxZoom" yaml:"maxZoom"`
	TileLimit int    `json:"tileLimit" yaml:"tileLimit"`
}

// Built-in mode identifiers.
const (
	ModeNavigation = "navigation"
	ModeFieldwork  = "fieldwork"
)

// DefaultModes returns the two built-in download modes.
func DefaultModes() []Mode {
	return []Mode{
		{ID: ModeNavigation, Label: "Navigation", MinZoom: 10, MaxZoom: 13, TileLimit: 12000},
		{ID: ModeFieldwork, Label: "Field work", MinZoom: 14, MaxZoom: 18, TileLimit: 6000},
	}
}

// ModeByID looks up a mode by its identifier.
func ModeByID(modes []Mode, id string) (Mode, bool) {
	for _, m := range modes {
		if m.ID == id {
			return m, true
		}
	}
	return Mode{}, false
}

// Region records one completed download: the area, its own zoom range,
// and advisory counters. Two regions with the same (Name, Mode) are the
// same logical region; the registry keeps only the newest.
type Region struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	FullName       string           `json:"fullName,omitempty"`
	BBox           tile.BoundingBox `json:"bbox"`
	MinZoom        int              `json:"minZoom"`
	MaxZoom        int              `json:"maxZoom"`
	Mode           string           `json:"mode"`
	TileCount      int              `json:"tileCount"`
	SizeEstimateMB float64          `json:"sizeEstimateMB"`
	DownloadedAt   time.Time        `json:"downloadedAt"`
}

// NewID returns an opaque region identifier.
func NewID() string {
	return "rgn_" + uuid.New().String()[:22]
}

// Keys enumerates every tile key the region's own bounding box and zoom
// range cover, in deterministic zoom/column/row order.
func (r *Region) Keys() []tile.Key {
	keys := make([]tile.Key, 0, tile.CountTiles(r.BBox, r.MinZoom, r.MaxZoom))
	for z := r.MinZoom; z <= r.MaxZoom; z++ {
		rect := tile.RectFor(r.BBox, z)
		for x := rect.MinX; x <= rect.MaxX; x++ {
			for y := rect.MinY; y <= rect.MaxY; y++ {
				keys = append(keys, tile.Key{Z: z, X: x, Y: y})
			}
		}
	}
	return keys
}
