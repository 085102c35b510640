package audit

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/arnabghosh/compute-matcher/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	log, err := Open(filepath.Join(t.TempDir(), "audit"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func report(id string, at time.Time, matches ...domain.SettledMatch) *domain.CycleReport {
	return &domain.CycleReport{
		CycleID:   id,
		StartedAt: at,
		Matched:   len(matches),
		Matches:   matches,
	}
}

func TestLog_AppendAndRecent(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, log.Append(ctx, report(fmt.Sprintf("c%d", i), base.Add(time.Duration(i)*time.Minute))))
	}

	recent, err := log.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "c4", recent[0].CycleID)
	assert.Equal(t, "c3", recent[1].CycleID)
	assert.Equal(t, "c2", recent[2].CycleID)

	all, err := log.Recent(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	none, err := log.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLog_Get(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()
	require.NoError(t, log.Append(ctx, report("cycle-a", time.Now())))

	got, err := log.Get(ctx, "cycle-a")
	require.NoError(t, err)
	assert.Equal(t, "cycle-a", got.CycleID)

	_, err = log.Get(ctx, "cycle-b")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLog_GetUsesCycleIndex(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	// "node:a" is newer and its key also ends in ":a"
	require.NoError(t, log.Append(ctx, report("a", base)))
	require.NoError(t, log.Append(ctx, report("node:a", base.Add(time.Minute))))

	got, err := log.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.CycleID)
	assert.Equal(t, base, got.StartedAt.UTC())

	key, err := log.db.Get(cycleIDKey("node:a"), nil)
	require.NoError(t, err)
	assert.Equal(t, cycleKey(report("node:a", base.Add(time.Minute))), key)

	// Index entries stay out of the chronological listing
	recent, err := log.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	_, err = log.Get(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLog_MatchIndex(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()
	base := time.Now()

	first := domain.SettledMatch{MatchResult: domain.MatchResult{DemandID: "d1", ResourceID: "r1", Score: 0.8}, TxRef: "tx-1"}
	failed := domain.SettledMatch{MatchResult: domain.MatchResult{DemandID: "d2", ResourceID: "r2", Score: 0.9}, Error: "settlement down"}
	require.NoError(t, log.Append(ctx, report("c1", base, first, failed)))

	m, err := log.MatchFor(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "r1", m.ResourceID)
	assert.Equal(t, "tx-1", m.TxRef)

	_, err = log.MatchFor(ctx, "d2")
	assert.ErrorIs(t, err, domain.ErrNotFound, "failed submissions are not indexed")

	second := domain.SettledMatch{MatchResult: domain.MatchResult{DemandID: "d1", ResourceID: "r9", Score: 0.75}, TxRef: "tx-2"}
	require.NoError(t, log.Append(ctx, report("c2", base.Add(time.Second), second)))

	m, err = log.MatchFor(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "r9", m.ResourceID)
}

func TestLog_Persists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "audit")
	ctx := context.Background()

	log, err := Open(dir, nil)
	require.NoError(t, err)
	log.Publish(ctx, report("c1", time.Now()))
	require.NoError(t, log.Close())
	require.NoError(t, log.Close(), "close is idempotent")

	reopened, err := Open(dir, nil)
	require.NoError(t, err)
	defer reopened.Close()

	recent, err := reopened.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "c1", recent[0].CycleID)
}

func TestLog_AppendInvalid(t *testing.T) {
	log := openTestLog(t)
	assert.ErrorIs(t, log.Append(context.Background(), nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, log.Append(context.Background(), &domain.CycleReport{}), domain.ErrInvalidInput)
}
