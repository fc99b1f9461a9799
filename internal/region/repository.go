package region

import (
	"context"
	"errors"
)

// ErrRegionNotFound is returned when a region id has no registry entry.
var ErrRegionNotFound = errors.New("region not found")

// Repository defines the interface for region metadata persistence.
// The whole collection is one persisted document; Save is a full
// overwrite, never incremental. Consumers holding a stale copy must
// reload after any mutation.
type Repository interface {
	// Load returns all persisted regions. A missing backing file yields
	// an empty list, not an error.
	Load(ctx context.Context) ([]Region, error)

	// Save overwrites the persisted collection.
	Save(ctx context.Context, regions []Region) error

	// Upsert persists a region, replacing any existing entry with the
	// same (Name, Mode) pair.
	Upsert(ctx context.Context, r Region) error

	// Get returns a region by id, or ErrRegionNotFound.
	Get(ctx context.Context, id string) (*Region, error)

	// Remove deletes the entry with the given id, or returns
	// ErrRegionNotFound.
	Remove(ctx context.Context, id string) error
}
