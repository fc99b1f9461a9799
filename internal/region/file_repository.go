package region

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileRepository persists the region collection as a single JSON array
// at a fixed path, fully rewritten on every mutation. The load-modify-
// save cycle is not atomic on its own, so a mutex serializes all
// mutations within the process.
type FileRepository struct {
	mu   sync.Mutex
	path string
}

// NewFileRepository creates a repository backed by the given file path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

// Load returns all persisted regions.
func (r *FileRepository) Load(_ context.Context) ([]Region, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

func (r *FileRepository) load() ([]Region, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Region{}, nil
		}
		return nil, fmt.Errorf("reading region registry: %w", err)
	}

	var regions []Region
	if err := json.Unmarshal(data, &regions); err != nil {
		return nil, fmt.Errorf("parsing region registry: %w", err)
	}
	if regions == nil {
		regions = []Region{}
	}
	return regions, nil
}

// Save overwrites the persisted collection.
func (r *FileRepository) Save(_ context.Context, regions []Region) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save(regions)
}

func (r *FileRepository) save(regions []Region) error {
	if regions == nil {
		regions = []Region{}
	}
	data, err := json.MarshalIndent(regions, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding region registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("creating registry directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".regions.*.tmp")
	if err != nil {
		return fmt.Errorf("creating registry temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing region registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing region registry: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publishing region registry: %w", err)
	}
	return nil
}

// Upsert persists a region, replacing any prior entry with the same
// (Name, Mode) pair. Last write wins.
func (r *FileRepository) Upsert(_ context.Context, reg Region) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	regions, err := r.load()
	if err != nil {
		return err
	}

	replaced := false
	for i := range regions {
		if regions[i].Name == reg.Name && regions[i].Mode == reg.Mode {
			regions[i] = reg
			replaced = true
			break
		}
	}
	if !replaced {
		regions = append(regions, reg)
	}
	return r.save(regions)
}

// Get returns a region by id.
func (r *FileRepository) Get(_ context.Context, id string) (*Region, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	regions, err := r.load()
	if err != nil {
		return nil, err
	}
	for i := range regions {
		if regions[i].ID == id {
			reg := regions[i]
			return &reg, nil
		}
	}
	return nil, ErrRegionNotFound
}

// Remove deletes the entry with the given id.
func (r *FileRepository) Remove(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	regions, err := r.load()
	if err != nil {
		return err
	}

	kept := regions[:0]
	found := false
	for _, reg := range regions {
		if reg.ID == id {
			found = true
			continue
		}
		kept = append(kept, reg)
	}
	if !found {
		return ErrRegionNotFound
	}
	return r.save(kept)
}

// Ensure FileRepository implements Repository.
var _ Repository = (*FileRepository)(nil)
