package settlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arnabghosh/compute-matcher/internal/domain"
	"github.com/arnabghosh/compute-matcher/internal/mq"
	"github.com/arnabghosh/compute-matcher/internal/scheduler"
	"github.com/arnabghosh/compute-matcher/internal/storage"
	"github.com/arnabghosh/compute-matcher/internal/storage/inmemory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDBDown = errors.New("db down")

// flakyResources fails selected writes of an in-memory repository
type flakyResources struct {
	*inmemory.ResourceRepository
	ReserveErr error
	OutcomeErr error
}

func (f *flakyResources) Reserve(ctx context.Context, id string) error {
	if f.ReserveErr != nil {
		return f.ReserveErr
	}
	return f.ResourceRepository.Reserve(ctx, id)
}

func (f *flakyResources) RecordOutcome(ctx context.Context, id string, delta, maxReputation float64, used time.Duration) error {
	if f.OutcomeErr != nil {
		return f.OutcomeErr
	}
	return f.ResourceRepository.RecordOutcome(ctx, id, delta, maxReputation, used)
}

// flakyDemands fails transitions into the listed statuses
type flakyDemands struct {
	*inmemory.DemandRepository
	FailInto map[domain.DemandStatus]error
}

func (f *flakyDemands) Transition(ctx context.Context, id string, from, to domain.DemandStatus, resourceID string) error {
	if err := f.FailInto[to]; err != nil {
		return err
	}
	return f.DemandRepository.Transition(ctx, id, from, to, resourceID)
}

var (
	_ storage.ResourceRepository = (*flakyResources)(nil)
	_ storage.DemandRepository   = (*flakyDemands)(nil)
)

func TestDirectSettler_ReserveFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resources := &flakyResources{ResourceRepository: f.resources, ReserveErr: errDBDown}

	settler := NewDirectSettler(f.demands, resources, f.escrow, nil)
	_, err := settler.SubmitMatch(ctx, "d1", "r1")
	assert.ErrorIs(t, err, errDBDown)

	d, _ := f.demands.GetByID(ctx, "d1")
	assert.Equal(t, domain.StatusPending, d.Status)
	_, ok := f.escrow.Get("d1")
	assert.False(t, ok)
}

func TestDirectSettler_EscrowFailureKeepsMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.escrow.Create(ctx, "d1", 1))

	settler := NewDirectSettler(f.demands, f.resources, f.escrow, nil)
	_, err := settler.SubmitMatch(ctx, "d1", "r1")
	require.NoError(t, err)

	d, _ := f.demands.GetByID(ctx, "d1")
	assert.Equal(t, domain.StatusMatching, d.Status)
}

func TestLifecycle_CompleteRollsBackWhenResourceWriteFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resources := &flakyResources{ResourceRepository: f.resources, OutcomeErr: errDBDown}

	settler := NewDirectSettler(f.demands, f.resources, f.escrow, nil)
	lifecycle := NewLifecycle(f.demands, resources, f.escrow, 10, nil)

	_, err := settler.SubmitMatch(ctx, "d1", "r1")
	require.NoError(t, err)
	require.NoError(t, lifecycle.Start(ctx, "d1"))

	err = lifecycle.Complete(ctx, "d1", true, time.Hour)
	assert.ErrorIs(t, err, errDBDown)

	d, _ := f.demands.GetByID(ctx, "d1")
	assert.Equal(t, domain.StatusRunning, d.Status, "demand must return to running")
	r, _ := f.resources.GetByID(ctx, "r1")
	assert.True(t, r.Busy)
	assert.Equal(t, 5.0, r.Reputation)
	entry, _ := f.escrow.Get("d1")
	assert.Equal(t, EscrowHeld, entry.State)

	// Once the store recovers the same completion goes through
	resources.OutcomeErr = nil
	require.NoError(t, lifecycle.Complete(ctx, "d1", true, time.Hour))

	d, _ = f.demands.GetByID(ctx, "d1")
	assert.Equal(t, domain.StatusCompleted, d.Status)
	r, _ = f.resources.GetByID(ctx, "r1")
	assert.False(t, r.Busy)
	assert.Equal(t, 6.0, r.Reputation)
	assert.Equal(t, time.Hour, r.TotalUsage)
	entry, _ = f.escrow.Get("d1")
	assert.Equal(t, EscrowReleased, entry.State)
}

func TestLifecycle_CompleteReportsFailedRollback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resources := &flakyResources{ResourceRepository: f.resources, OutcomeErr: errDBDown}
	restoreErr := errors.New("restore refused")
	demands := &flakyDemands{
		DemandRepository: f.demands,
		FailInto:         map[domain.DemandStatus]error{domain.StatusMatching: restoreErr},
	}

	settler := NewDirectSettler(f.demands, f.resources, nil, nil)
	lifecycle := NewLifecycle(demands, resources, nil, 10, nil)

	_, err := settler.SubmitMatch(ctx, "d1", "r1")
	require.NoError(t, err)

	err = lifecycle.Complete(ctx, "d1", false, 0)
	assert.ErrorIs(t, err, errDBDown)
	assert.ErrorIs(t, err, restoreErr)
}

func TestLifecycle_CompleteDemandWriteFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	demands := &flakyDemands{
		DemandRepository: f.demands,
		FailInto:         map[domain.DemandStatus]error{domain.StatusCompleted: errDBDown},
	}

	settler := NewDirectSettler(f.demands, f.resources, f.escrow, nil)
	lifecycle := NewLifecycle(demands, f.resources, f.escrow, 10, nil)

	_, err := settler.SubmitMatch(ctx, "d1", "r1")
	require.NoError(t, err)

	assert.ErrorIs(t, lifecycle.Complete(ctx, "d1", true, time.Hour), errDBDown)

	r, _ := f.resources.GetByID(ctx, "r1")
	assert.True(t, r.Busy, "resource is untouched when the demand cannot move")
	assert.Zero(t, r.TotalUsage)
	entry, _ := f.escrow.Get("d1")
	assert.Equal(t, EscrowHeld, entry.State)
}

func TestQueueSettler_PublishFailureReleasesClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Never started, so every publish fails
	queue := mq.NewInMemoryQueue(mq.DefaultInMemoryQueueConfig(), nil)
	settler := NewQueueSettler(queue, NewDirectSettler(f.demands, f.resources, nil, nil), "", 100, 5)

	_, err := settler.SubmitMatch(ctx, "d1", "r1")
	assert.ErrorIs(t, err, domain.ErrQueueError)

	d, _ := f.demands.GetByID(ctx, "d1")
	assert.Equal(t, domain.StatusPending, d.Status)
	r, _ := f.resources.GetByID(ctx, "r1")
	assert.True(t, r.Available())
}

func TestQueueSettler_ClaimConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.resources.Reserve(ctx, "r1"))

	queue := mq.NewInMemoryQueue(mq.DefaultInMemoryQueueConfig(), nil)
	require.NoError(t, queue.Start(ctx))
	defer queue.Stop()

	settler := NewQueueSettler(queue, NewDirectSettler(f.demands, f.resources, nil, nil), "", 100, 5)
	_, err := settler.SubmitMatch(ctx, "d1", "r1")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	assert.Zero(t, queue.Stats().TotalPublished)
}

func TestQueueSettler_RepeatedCyclesPublishOnce(t *testing.T) {
	ctx := context.Background()
	demands := inmemory.NewDemandRepository()
	resources := inmemory.NewResourceRepository()
	require.NoError(t, demands.Store(ctx, &domain.Demand{
		ID:              "d1",
		RequiredPower:   100,
		RequiredMemory:  16,
		MaxPricePerUnit: 2,
		Status:          domain.StatusPending,
		CreatedAt:       time.Now(),
	}))
	require.NoError(t, resources.Store(ctx, &domain.Resource{
		ID:               "r1",
		ComputationPower: 150,
		AvailableMemory:  32,
		PricePerUnit:     1,
		Reputation:       9,
		EnergyClass:      domain.EnergyGreen,
		Active:           true,
	}))

	// Started but nothing consumes the topic
	queue := mq.NewInMemoryQueue(mq.DefaultInMemoryQueueConfig(), nil)
	require.NoError(t, queue.Start(ctx))
	defer queue.Stop()

	settler := NewQueueSettler(queue, NewDirectSettler(demands, resources, nil, nil), "", 100, 5)
	sched, err := scheduler.New(scheduler.DefaultConfig(), storage.NewSource(demands, resources), settler)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := sched.RunCycle(ctx)
		require.NoError(t, err)
	}

	stats := sched.Stats()
	assert.Equal(t, int64(3), stats.CyclesRun)
	assert.Equal(t, int64(1), stats.TotalMatched)
	assert.Zero(t, stats.SubmitFailures)
	assert.Equal(t, int64(1), queue.Stats().TotalPublished)
}
