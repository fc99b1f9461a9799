// Package tilestore persists raster tiles on the local filesystem under
// the {base}/{z}/{x}/{y}.png layout used by slippy-map renderers.
package tilestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fieldatlas/fieldatlas/internal/tile"
)

// ErrTileNotFound is returned by Read when no tile file exists for a key.
var ErrTileNotFound = errors.New("tile not found")

// Store is a filesystem-backed tile store. Writes are atomic per file
// (temp file + rename), so readers never observe a partial tile.
type Store struct {
	base   string
	logger zerolog.Logger
}

// New creates a Store rooted at base. The directory itself is created
// lazily on first write.
func New(base string, logger zerolog.Logger) *Store {
	return &Store{
		base:   base,
		logger: logger.With().Str("component", "tilestore").Logger(),
	}
}

// Base returns the root directory of the tile tree.
func (s *Store) Base() string {
	return s.base
}

// Path returns the on-disk path for a key.
func (s *Store) Path(k tile.Key) string {
	return filepath.Join(s.base, strconv.Itoa(k.Z), strconv.Itoa(k.X), strconv.Itoa(k.Y)+".png")
}

// Exists reports whether a tile file is present for the key. I/O errors
// degrade to false, which at worst triggers a re-fetch.
func (s *Store) Exists(k tile.Key) bool {
	info, err := os.Stat(s.Path(k))
	return err == nil && info.Mode().IsRegular()
}

// Write persists tile bytes for the key, creating parent directories as
// needed. The write lands under a temp name first and becomes visible
// through a single rename.
func (s *Store) Write(k tile.Key, data []byte) error {
	path := s.Path(k)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating tile directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+strconv.Itoa(k.Y)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp tile file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing tile %s: %w", k, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing tile %s: %w", k, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publishing tile %s: %w", k, err)
	}
	return nil
}

// Read returns the tile bytes for the key, or ErrTileNotFound.
func (s *Store) Read(k tile.Key) ([]byte, error) {
	data, err := os.ReadFile(s.Path(k))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrTileNotFound
		}
		return nil, fmt.Errorf("reading tile %s: %w", k, err)
	}
	return data, nil
}

// Delete removes the tile file for the key. Deleting an absent tile is
// success.
func (s *Store) Delete(k tile.Key) error {
	if err := os.Remove(s.Path(k)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting tile %s: %w", k, err)
	}
	return nil
}

// BuildIndex walks the tile tree once and returns the set of present
// keys. Partially-structured directories and stray files are skipped
// rather than failing the scan.
func (s *Store) BuildIndex() (map[tile.Key]struct{}, error) {
	index := make(map[tile.Key]struct{})

	zoomDirs, err := os.ReadDir(s.base)
	if err != nil {
		if os.IsNotExist(err) {
			return index, nil
		}
		return nil, fmt.Errorf("reading tile base %s: %w", s.base, err)
	}

	for _, zd := range zoomDirs {
		z, ok := dirNumber(zd)
		if !ok {
			continue
		}
		colDirs, err := os.ReadDir(filepath.Join(s.base, zd.Name()))
		if err != nil {
			s.logger.Warn().Err(err).Str("dir", zd.Name()).Msg("skipping unreadable zoom directory")
			continue
		}
		for _, cd := range colDirs {
			x, ok := dirNumber(cd)
			if !ok {
				continue
			}
			rows, err := os.ReadDir(filepath.Join(s.base, zd.Name(), cd.Name()))
			if err != nil {
				s.logger.Warn().Err(err).Str("dir", cd.Name()).Msg("skipping unreadable column directory")
				continue
			}
			for _, rf := range rows {
				if rf.IsDir() {
					continue
				}
				name, found := strings.CutSuffix(rf.Name(), ".png")
				if !found {
					continue
				}
				y, err := strconv.Atoi(name)
				if err != nil {
					continue
				}
				index[tile.Key{Z: z, X: x, Y: y}] = struct{}{}
			}
		}
	}
	return index, nil
}

// Stats reports the number of cached tiles and their total size in
// bytes from a single walk of the tree.
func (s *Store) Stats() (count int, bytes int64, err error) {
	err = filepath.WalkDir(s.base, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return nil
			}
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".png") {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		count++
		bytes += info.Size()
		return nil
	})
	if err != nil && os.IsNotExist(err) {
		return 0, 0, nil
	}
	return count, bytes, err
}

func dirNumber(d os.DirEntry) (int, bool) {
	if !d.IsDir() {
		return 0, false
	}
	n, err := strconv.Atoi(d.Name())
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
