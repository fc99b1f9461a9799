package models

import (
	"github.com/fieldatlas/fieldatlas/internal/region"
	"github.com/fieldatlas/fieldatlas/internal/tile"
)

// RegionCreateRequest asks the daemon to download a region for offline
// use.
type RegionCreateRequest struct {
	Name     string           `json:"name"`
	FullName string           `json:"fullName,omitempty"`
	BBox     tile.BoundingBox `json:"bbox"`
	Mode     string           `json:"mode"`
}

// DownloadAccepted is returned when a download has been admitted and
// started in the background.
type DownloadAccepted struct {
	Name           string  `json:"name"`
	Mode           string  `json:"mode"`
	TileCount      int     `json:"tileCount"`
	SizeEstimateMB float64 `json:"sizeEstimateMB"`
}

// ActiveDownload is a snapshot of the download in flight.
type ActiveDownload struct {
	Name      string    `json:"name"`
	Mode      string    `json:"mode"`
	State     string    `json:"state"`
	Zoom      int       `json:"zoom"`
	Done      int       `json:"done"`
	Total     int       `json:"total"`
	StartedAt Timestamp `json:"startedAt"`
}

// DownloadResult summarizes the most recently finished download.
type DownloadResult struct {
	State          string         `json:"state"`
	Total          int            `json:"total"`
	Downloaded     int            `json:"downloaded"`
	Skipped        int            `json:"skipped"`
	Failed         int            `json:"failed"`
	SizeEstimateMB float64        `json:"sizeEstimateMB"`
	Region         *region.Region `json:"region,omitempty"`
}

// RegionEntry is one registry entry, optionally joined with its audit
// summary.
type RegionEntry struct {
	region.Region
	Audit *AuditResponse `json:"audit,omitempty"`
}

// RegionList wraps the registry contents.
type RegionList struct {
	Items []RegionEntry `json:"items"`
}

// DeleteResult reports how many cached tiles a region removal purged.
type DeleteResult struct {
	RemovedTiles int `json:"removedTiles"`
}

// AuditResponse reports cache coverage for one region.
type AuditResponse struct {
	RegionID string `json:"regionId"`
	Name     string `json:"name"`
	Cached   int    `json:"cached"`
	Total    int    `json:"total"`
	Missing  int    `json:"missing"`
	Status   string `json:"status"`
}

// ModeList wraps the configured download modes.
type ModeList struct {
	Modes []region.Mode `json:"modes"`
}
