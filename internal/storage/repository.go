package storage

import (
	"context"
	"time"

	"github.com/arnabghosh/compute-matcher/internal/domain"
)

// DemandRepository defines the interface for computation demand storage
type DemandRepository interface {
	// Store persists or replaces a demand
	Store(ctx context.Context, demand *domain.Demand) error

	// GetByID retrieves a demand by its identifier
	GetByID(ctx context.Context, id string) (*domain.Demand, error)

	// ListByStatus returns demands in the given status ordered by creation time.
	// An empty status returns every demand.
	ListByStatus(ctx context.Context, status domain.DemandStatus) ([]*domain.Demand, error)

	// Transition moves a demand from one status to another and records the
	// matched resource. Returns domain.ErrInvalidStatus if the demand is not in
	// the expected status.
	Transition(ctx context.Context, id string, from, to domain.DemandStatus, resourceID string) error

	// Count returns the total number of demands stored
	Count(ctx context.Context) int64
}

// ResourceRepository defines the interface for computational resource storage
type ResourceRepository interface {
	// Store persists or replaces a resource
	Store(ctx context.Context, resource *domain.Resource) error

	// GetByID retrieves a resource by its identifier
	GetByID(ctx context.Context, id string) (*domain.Resource, error)

	// List returns every resource ordered by identifier
	List(ctx context.Context) ([]*domain.Resource, error)

	// ListAvailable returns active, non-busy resources ordered by identifier
	ListAvailable(ctx context.Context) ([]*domain.Resource, error)

	// Reserve marks an available resource busy. Returns domain.ErrInvalidStatus
	// if it is inactive or already busy.
	Reserve(ctx context.Context, id string) error

	// Release clears the busy flag
	Release(ctx context.Context, id string) error

	// Update applies change to the current record and writes back only the
	// fields it modified. Busy belongs to Reserve, Release and RecordOutcome;
	// changes to it are ignored.
	Update(ctx context.Context, id string, change func(*domain.Resource) error) (*domain.Resource, error)

	// RecordOutcome clears the busy flag, adds used to the total usage and
	// moves the reputation by delta, clamped to [0, maxReputation], in one write
	RecordOutcome(ctx context.Context, id string, delta, maxReputation float64, used time.Duration) error

	// Count returns the total number of resources
	Count(ctx context.Context) int64
}

// Source adapts the repositories to the scheduler's fetch contract
type Source struct {
	Demands   DemandRepository
	Resources ResourceRepository
}

// NewSource creates a fetch source over the given repositories
func NewSource(demands DemandRepository, resources ResourceRepository) *Source {
	return &Source{Demands: demands, Resources: resources}
}

// FetchPendingDemands returns demands in the given status
func (s *Source) FetchPendingDemands(ctx context.Context, status domain.DemandStatus) ([]*domain.Demand, error) {
	return s.Demands.ListByStatus(ctx, status)
}

// FetchAvailableResources returns resources that can take new work
func (s *Source) FetchAvailableResources(ctx context.Context) ([]*domain.Resource, error) {
	return s.Resources.ListAvailable(ctx)
}
