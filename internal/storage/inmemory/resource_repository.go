package inmemory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/arnabghosh/compute-matcher/internal/domain"
)

// ResourceRepository is an in-memory implementation of resource storage
type ResourceRepository struct {
	mu   sync.RWMutex
	data map[string]*domain.Resource // key: resource ID
}

// NewResourceRepository creates a new in-memory resource repository
func NewResourceRepository() *ResourceRepository {
	return &ResourceRepository{
		data: make(map[string]*domain.Resource),
	}
}

// Store persists or replaces a resource
func (r *ResourceRepository) Store(ctx context.Context, resource *domain.Resource) error {
	if resource == nil || resource.ID == "" {
		return domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[resource.ID] = resource.Clone()
	return nil
}

// GetByID retrieves a resource by its identifier
func (r *ResourceRepository) GetByID(ctx context.Context, id string) (*domain.Resource, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	resource, exists := r.data[id]
	if !exists {
		return nil, domain.ErrResourceNotFound
	}
	return resource.Clone(), nil
}

// List returns every resource ordered by ID
func (r *ResourceRepository) List(ctx context.Context) ([]*domain.Resource, error) {
	return r.list(func(*domain.Resource) bool { return true }), nil
}

// ListAvailable returns active, non-busy resources ordered by ID
func (r *ResourceRepository) ListAvailable(ctx context.Context) ([]*domain.Resource, error) {
	return r.list((*domain.Resource).Available), nil
}

func (r *ResourceRepository) list(keep func(*domain.Resource) bool) []*domain.Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	resources := make([]*domain.Resource, 0, len(r.data))
	for _, res := range r.data {
		if keep(res) {
			resources = append(resources, res.Clone())
		}
	}
	sort.Slice(resources, func(i, j int) bool {
		return resources[i].ID < resources[j].ID
	})
	return resources
}

// Reserve marks an available resource busy
func (r *ResourceRepository) Reserve(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	resource, exists := r.data[id]
	if !exists {
		return domain.ErrResourceNotFound
	}
	if !resource.Available() {
		return fmt.Errorf("%w: resource %s is not available", domain.ErrInvalidStatus, id)
	}
	resource.Busy = true
	return nil
}

// Release clears the busy flag
func (r *ResourceRepository) Release(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	resource, exists := r.data[id]
	if !exists {
		return domain.ErrResourceNotFound
	}
	resource.Busy = false
	return nil
}

// Update applies change under the write lock. The busy flag and ID are
// kept from the stored record.
func (r *ResourceRepository) Update(ctx context.Context, id string, change func(*domain.Resource) error) (*domain.Resource, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.data[id]
	if !exists {
		return nil, domain.ErrResourceNotFound
	}

	updated := current.Clone()
	if err := change(updated); err != nil {
		return nil, err
	}
	updated.ID = current.ID
	updated.Busy = current.Busy

	r.data[id] = updated
	return updated.Clone(), nil
}

// RecordOutcome releases the resource and applies the usage and reputation delta
func (r *ResourceRepository) RecordOutcome(ctx context.Context, id string, delta, maxReputation float64, used time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	resource, exists := r.data[id]
	if !exists {
		return domain.ErrResourceNotFound
	}
	resource.Reputation = math.Max(0, math.Min(maxReputation, resource.Reputation+delta))
	resource.TotalUsage += used
	resource.Busy = false
	return nil
}

// Count returns the total number of resources
func (r *ResourceRepository) Count(ctx context.Context) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.data))
}
