// Package audit walks a region's expected tile set and reports how
// complete the on-disk cache is.
package audit

import (
	"github.com/rs/zerolog"

	"github.com/fieldatlas/fieldatlas/internal/region"
	"github.com/fieldatlas/fieldatlas/internal/tilestore"
)

// Status is the qualitative completeness of a region's cache.
type Status string

// Audit statuses.
const (
	StatusEmpty    Status = "empty"
	StatusPartial  Status = "partial"
	StatusComplete Status = "complete"
)

// completeThreshold tolerates a small missing tail from historical
// per-tile fetch failures.
const completeThreshold = 0.95

// Report is the outcome of auditing one region.
type Report struct {
	Cached  int    `json:"cached"`
	Total   int    `json:"total"`
	Missing int    `json:"missing"`
	Status  Status `json:"status"`
}

// Auditor checks cached tiles against a region's expected coverage.
type Auditor struct {
	store  *tilestore.Store
	logger zerolog.Logger
}

// New creates an auditor over the given store.
func New(store *tilestore.Store, logger zerolog.Logger) *Auditor {
	return &Auditor{
		store:  store,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Audit recomputes the tile rectangle from the region's own stored
// bounding box and zoom range, not whatever mode is currently selected,
// and checks presence for every key.
func (a *Auditor) Audit(reg *region.Region) Report {
	cached := 0
	keys := reg.Keys()
	for _, k := range keys {
		if a.store.Exists(k) {
			cached++
		}
	}
	total := len(keys)

	report := Report{
		Cached:  cached,
		Total:   total,
		Missing: total - cached,
		Status:  classify(cached, total),
	}

	a.logger.Debug().
		Str("region", reg.Name).
		Int("cached", cached).
		Int("total", total).
		Str("status", string(report.Status)).
		Msg("region audited")
	return report
}

func classify(cached, total int) Status {
	switch {
	case cached == 0:
		return StatusEmpty
	case total > 0 && float64(cached) >= completeThreshold*float64(total):
		return StatusComplete
	default:
		return StatusPartial
	}
}
