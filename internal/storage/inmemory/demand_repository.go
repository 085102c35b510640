package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/arnabghosh/compute-matcher/internal/domain"
)

// DemandRepository is an in-memory implementation of demand storage.
// Values are copied on the way in and out so callers always work on snapshots.
type DemandRepository struct {
	mu   sync.RWMutex
	data map[string]*domain.Demand // key: demand ID
}

// NewDemandRepository creates a new in-memory demand repository
func NewDemandRepository() *DemandRepository {
	return &DemandRepository{
		data: make(map[string]*domain.Demand),
	}
}

// Store persists or replaces a demand
func (r *DemandRepository) Store(ctx context.Context, demand *domain.Demand) error {
	if demand == nil || demand.ID == "" {
		return domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[demand.ID] = demand.Clone()
	return nil
}

// GetByID retrieves a demand by its identifier
func (r *DemandRepository) GetByID(ctx context.Context, id string) (*domain.Demand, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	demand, exists := r.data[id]
	if !exists {
		return nil, domain.ErrDemandNotFound
	}
	return demand.Clone(), nil
}

// ListByStatus returns demands in the given status ordered by creation time, then ID
func (r *DemandRepository) ListByStatus(ctx context.Context, status domain.DemandStatus) ([]*domain.Demand, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	demands := make([]*domain.Demand, 0, len(r.data))
	for _, d := range r.data {
		if status == "" || d.Status == status {
			demands = append(demands, d.Clone())
		}
	}

	sort.Slice(demands, func(i, j int) bool {
		if !demands[i].CreatedAt.Equal(demands[j].CreatedAt) {
			return demands[i].CreatedAt.Before(demands[j].CreatedAt)
		}
		return demands[i].ID < demands[j].ID
	})
	return demands, nil
}

// Transition moves a demand between statuses if it is currently in from
func (r *DemandRepository) Transition(ctx context.Context, id string, from, to domain.DemandStatus, resourceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	demand, exists := r.data[id]
	if !exists {
		return domain.ErrDemandNotFound
	}
	if demand.Status != from {
		return fmt.Errorf("%w: demand %s is %s, expected %s", domain.ErrInvalidStatus, id, demand.Status, from)
	}

	demand.Status = to
	if resourceID != "" {
		demand.MatchedResourceID = resourceID
	}
	return nil
}

// Count returns the total number of demands
func (r *DemandRepository) Count(ctx context.Context) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.data))
}

// Clear removes all demands from the repository
// Useful for testing
func (r *DemandRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data = make(map[string]*domain.Demand)
}
