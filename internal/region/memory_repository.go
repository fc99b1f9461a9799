package region

import (
	"context"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository for
// testing. Semantics match FileRepository, including the (Name, Mode)
// replacement rule.
type InMemoryRepository struct {
	mu      sync.Mutex
	regions []Region
}

// NewInMemoryRepository creates a new in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{regions: []Region{}}
}

// Load returns a copy of the stored regions.
func (r *InMemoryRepository) Load(_ context.Context) ([]Region, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Region, len(r.regions))
	copy(out, r.regions)
	return out, nil
}

// Save overwrites the stored collection.
func (r *InMemoryRepository) Save(_ context.Context, regions []Region) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.regions = make([]Region, len(regions))
	copy(r.regions, regions)
	return nil
}

// Upsert stores a region, replacing any entry with the same (Name, Mode).
func (r *InMemoryRepository) Upsert(_ context.Context, reg Region) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.regions {
		if r.regions[i].Name == reg.Name && r.regions[i].Mode == reg.Mode {
			r.regions[i] = reg
			return nil
		}
	}
	r.regions = append(r.regions, reg)
	return nil
}

// Get returns a region by id.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Region, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.regions {
		if r.regions[i].ID == id {
			reg := r.regions[i]
			return &reg, nil
		}
	}
	return nil, ErrRegionNotFound
}

// Remove deletes the entry with the given id.
func (r *InMemoryRepository) Remove(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.regions {
		if r.regions[i].ID == id {
			r.regions = append(r.regions[:i], r.regions[i+1:]...)
			return nil
		}
	}
	return ErrRegionNotFound
}

// Ensure InMemoryRepository implements Repository.
var _ Repository = (*InMemoryRepository)(nil)
