// Package tileindex bridges the tile store to renderers that cannot
// touch the filesystem: it keeps an in-memory presence index of every
// cached tile and answers point lookups with tile bytes or an explicit
// not-found signal. It never writes tiles.
package tileindex

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/fieldatlas/fieldatlas/internal/tile"
	"github.com/fieldatlas/fieldatlas/internal/tilestore"
)

// Index is the in-memory presence set over the tile store.
type Index struct {
	store  *tilestore.Store
	logger zerolog.Logger

	mu   sync.RWMutex
	keys map[tile.Key]struct{}
}

// New creates an index over the store. Call Rebuild before serving.
func New(store *tilestore.Store, logger zerolog.Logger) *Index {
	return &Index{
		store:  store,
		logger: logger.With().Str("component", "tileindex").Logger(),
		keys:   make(map[tile.Key]struct{}),
	}
}

// Rebuild re-scans the on-disk tree and swaps in a fresh presence set.
// Run at startup and after every download or region deletion.
func (i *Index) Rebuild() error {
	keys, err := i.store.BuildIndex()
	if err != nil {
		return err
	}

	i.mu.Lock()
	i.keys = keys
	i.mu.Unlock()

	i.logger.Info().Int("tiles", len(keys)).Msg("tile index rebuilt")
	return nil
}

// Size returns the number of indexed tiles.
func (i *Index) Size() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.keys)
}

// Has reports presence from the in-memory set without touching the
// filesystem.
func (i *Index) Has(k tile.Key) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.keys[k]
	return ok
}

// Lookup returns the tile bytes for a cached key, or
// tilestore.ErrTileNotFound so the caller can fall back to a live
// network fetch.
func (i *Index) Lookup(k tile.Key) ([]byte, error) {
	if !i.Has(k) {
		return nil, tilestore.ErrTileNotFound
	}
	data, err := i.store.Read(k)
	if err != nil {
		// Index and disk can briefly disagree after a deletion.
		return nil, err
	}
	return data, nil
}
