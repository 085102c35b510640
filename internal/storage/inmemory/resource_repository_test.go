package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arnabghosh/compute-matcher/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedResources(t *testing.T, repo *ResourceRepository) {
	t.Helper()
	resources := []*domain.Resource{
		{ID: "res-c", Active: true},
		{ID: "res-a", Active: true},
		{ID: "res-b", Active: false},
		{ID: "res-d", Active: true, Busy: true},
	}
	for _, r := range resources {
		require.NoError(t, repo.Store(context.Background(), r))
	}
}

func TestResourceRepository_List(t *testing.T) {
	repo := NewResourceRepository()
	seedResources(t, repo)

	all, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "res-a", all[0].ID)
	assert.Equal(t, "res-d", all[3].ID)
}

func TestResourceRepository_ListAvailable(t *testing.T) {
	repo := NewResourceRepository()
	seedResources(t, repo)

	available, err := repo.ListAvailable(context.Background())
	require.NoError(t, err)
	require.Len(t, available, 2)
	assert.Equal(t, "res-a", available[0].ID)
	assert.Equal(t, "res-c", available[1].ID)
}

func TestResourceRepository_ReserveRelease(t *testing.T) {
	repo := NewResourceRepository()
	ctx := context.Background()
	seedResources(t, repo)

	require.NoError(t, repo.Reserve(ctx, "res-a"))
	assert.ErrorIs(t, repo.Reserve(ctx, "res-a"), domain.ErrInvalidStatus)
	assert.ErrorIs(t, repo.Reserve(ctx, "res-b"), domain.ErrInvalidStatus, "inactive resources cannot be reserved")
	assert.ErrorIs(t, repo.Reserve(ctx, "missing"), domain.ErrResourceNotFound)

	r, err := repo.GetByID(ctx, "res-a")
	require.NoError(t, err)
	assert.True(t, r.Busy)

	require.NoError(t, repo.Release(ctx, "res-a"))
	r, _ = repo.GetByID(ctx, "res-a")
	assert.False(t, r.Busy)
	assert.ErrorIs(t, repo.Release(ctx, "missing"), domain.ErrResourceNotFound)
}

func TestResourceRepository_GetByID(t *testing.T) {
	repo := NewResourceRepository()
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrResourceNotFound)

	assert.ErrorIs(t, repo.Store(ctx, nil), domain.ErrInvalidInput)
	assert.Equal(t, int64(0), repo.Count(ctx))
}

func TestResourceRepository_UpdateKeepsBusy(t *testing.T) {
	repo := NewResourceRepository()
	seedResources(t, repo)
	ctx := context.Background()

	// Reserved after the caller decided on its change
	require.NoError(t, repo.Reserve(ctx, "res-a"))

	updated, err := repo.Update(ctx, "res-a", func(r *domain.Resource) error {
		r.PricePerUnit = 3
		r.Busy = false
		r.ID = "renamed"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "res-a", updated.ID)
	assert.True(t, updated.Busy)

	stored, err := repo.GetByID(ctx, "res-a")
	require.NoError(t, err)
	assert.Equal(t, 3.0, stored.PricePerUnit)
	assert.True(t, stored.Busy)

	available, err := repo.ListAvailable(ctx)
	require.NoError(t, err)
	for _, r := range available {
		assert.NotEqual(t, "res-a", r.ID)
	}
}

func TestResourceRepository_UpdateErrors(t *testing.T) {
	repo := NewResourceRepository()
	seedResources(t, repo)
	ctx := context.Background()

	_, err := repo.Update(ctx, "missing", func(*domain.Resource) error { return nil })
	assert.ErrorIs(t, err, domain.ErrResourceNotFound)

	_, err = repo.Update(ctx, "", func(*domain.Resource) error { return nil })
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	rejected := errors.New("rejected")
	_, err = repo.Update(ctx, "res-a", func(r *domain.Resource) error {
		r.PricePerUnit = 99
		return rejected
	})
	assert.ErrorIs(t, err, rejected)

	stored, _ := repo.GetByID(ctx, "res-a")
	assert.Zero(t, stored.PricePerUnit, "a failed change must not be written")
}

func TestResourceRepository_RecordOutcome(t *testing.T) {
	repo := NewResourceRepository()
	ctx := context.Background()
	require.NoError(t, repo.Store(ctx, &domain.Resource{ID: "r1", Active: true, Reputation: 9.5, TotalUsage: time.Hour}))
	require.NoError(t, repo.Reserve(ctx, "r1"))

	require.NoError(t, repo.RecordOutcome(ctx, "r1", 1, 10, 30*time.Minute))
	r, _ := repo.GetByID(ctx, "r1")
	assert.False(t, r.Busy)
	assert.Equal(t, 10.0, r.Reputation)
	assert.Equal(t, 90*time.Minute, r.TotalUsage)

	require.NoError(t, repo.RecordOutcome(ctx, "r1", -20, 10, 0))
	r, _ = repo.GetByID(ctx, "r1")
	assert.Equal(t, 0.0, r.Reputation)

	assert.ErrorIs(t, repo.RecordOutcome(ctx, "missing", 1, 10, 0), domain.ErrResourceNotFound)
}
