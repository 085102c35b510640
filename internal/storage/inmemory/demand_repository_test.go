package inmemory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/arnabghosh/compute-matcher/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemandRepository_Store(t *testing.T) {
	repo := NewDemandRepository()
	ctx := context.Background()

	demand := &domain.Demand{
		ID:              "demand-1",
		RequiredPower:   100,
		RequiredMemory:  16,
		MaxPricePerUnit: 2,
		Status:          domain.StatusPending,
	}

	require.NoError(t, repo.Store(ctx, demand))
	assert.Equal(t, int64(1), repo.Count(ctx))

	retrieved, err := repo.GetByID(ctx, "demand-1")
	require.NoError(t, err)
	assert.Equal(t, demand.RequiredPower, retrieved.RequiredPower)
}

func TestDemandRepository_ReturnsSnapshots(t *testing.T) {
	repo := NewDemandRepository()
	ctx := context.Background()

	demand := &domain.Demand{ID: "demand-1", RequiredPower: 100, Status: domain.StatusPending}
	require.NoError(t, repo.Store(ctx, demand))

	// Mutating the caller's value must not leak into the store
	demand.RequiredPower = 1

	retrieved, err := repo.GetByID(ctx, "demand-1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, retrieved.RequiredPower)

	retrieved.RequiredPower = 5
	again, _ := repo.GetByID(ctx, "demand-1")
	assert.Equal(t, 100.0, again.RequiredPower)
}

func TestDemandRepository_StoreInvalid(t *testing.T) {
	repo := NewDemandRepository()
	ctx := context.Background()

	assert.ErrorIs(t, repo.Store(ctx, nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, repo.Store(ctx, &domain.Demand{}), domain.ErrInvalidInput)
}

func TestDemandRepository_GetByID_NotFound(t *testing.T) {
	repo := NewDemandRepository()

	demand, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrDemandNotFound)
	assert.Nil(t, demand)

	_, err = repo.GetByID(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDemandRepository_ListByStatus(t *testing.T) {
	repo := NewDemandRepository()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	demands := []*domain.Demand{
		{ID: "c", Status: domain.StatusPending, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "a", Status: domain.StatusPending, CreatedAt: base},
		{ID: "b", Status: domain.StatusRunning, CreatedAt: base},
		{ID: "d", Status: domain.StatusPending, CreatedAt: base},
	}
	for _, d := range demands {
		require.NoError(t, repo.Store(ctx, d))
	}

	pending, err := repo.ListByStatus(ctx, domain.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "a", pending[0].ID)
	assert.Equal(t, "d", pending[1].ID)
	assert.Equal(t, "c", pending[2].ID)

	all, err := repo.ListByStatus(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestDemandRepository_Transition(t *testing.T) {
	repo := NewDemandRepository()
	ctx := context.Background()
	require.NoError(t, repo.Store(ctx, &domain.Demand{ID: "demand-1", Status: domain.StatusPending}))

	require.NoError(t, repo.Transition(ctx, "demand-1", domain.StatusPending, domain.StatusMatching, "res-1"))

	d, err := repo.GetByID(ctx, "demand-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusMatching, d.Status)
	assert.Equal(t, "res-1", d.MatchedResourceID)

	err = repo.Transition(ctx, "demand-1", domain.StatusPending, domain.StatusMatching, "res-2")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	err = repo.Transition(ctx, "missing", domain.StatusPending, domain.StatusMatching, "")
	assert.ErrorIs(t, err, domain.ErrDemandNotFound)
}

func TestDemandRepository_ConcurrentTransitions(t *testing.T) {
	repo := NewDemandRepository()
	ctx := context.Background()
	require.NoError(t, repo.Store(ctx, &domain.Demand{ID: "demand-1", Status: domain.StatusPending}))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := repo.Transition(ctx, "demand-1", domain.StatusPending, domain.StatusMatching, fmt.Sprintf("res-%d", i)); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins, "exactly one transition may succeed")
}

func TestDemandRepository_Clear(t *testing.T) {
	repo := NewDemandRepository()
	ctx := context.Background()
	require.NoError(t, repo.Store(ctx, &domain.Demand{ID: "demand-1"}))

	repo.Clear()
	assert.Equal(t, int64(0), repo.Count(ctx))
}
