package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/arnabghosh/compute-matcher/internal/domain"
	"github.com/arnabghosh/compute-matcher/internal/mq"
	"github.com/arnabghosh/compute-matcher/internal/settlement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demandsJSON = `[
  {"id": "d1", "required_power": 100, "required_memory_gb": 16, "max_price_per_unit": 2, "priority": 1,
   "status": "pending", "created_at": "2026-01-01T00:00:00Z"},
  {"id": "d2", "required_power": 400, "required_memory_gb": 16, "max_price_per_unit": 2, "priority": 2,
   "status": "pending", "created_at": "2026-01-01T00:00:00Z"},
  {"id": "", "required_power": 1, "required_memory_gb": 1, "max_price_per_unit": 1}
]`

const resourcesJSON = `[
  {"id": "r1", "computation_power": 150, "available_memory_gb": 32, "price_per_unit": 1,
   "reputation": 9, "energy_class": "green", "active": true},
  {"id": "r2", "computation_power": 50, "available_memory_gb": 32, "price_per_unit": 1,
   "reputation": 9, "energy_class": "green", "active": true}
]`

func writeInputs(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	demands := filepath.Join(dir, "demands.json")
	resources := filepath.Join(dir, "resources.json")
	require.NoError(t, os.WriteFile(demands, []byte(demandsJSON), 0o644))
	require.NoError(t, os.WriteFile(resources, []byte(resourcesJSON), 0o644))
	return demands, resources
}

func TestLoadInputs(t *testing.T) {
	demandFile, resourceFile := writeInputs(t)

	demands, resources, err := loadInputs(demandFile, resourceFile)
	require.NoError(t, err)
	assert.Len(t, demands, 3)
	assert.Len(t, resources, 2)
	assert.Equal(t, domain.PriorityHigh, demands[1].Priority)

	_, _, err = loadInputs(filepath.Join(t.TempDir(), "missing.json"), resourceFile)
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, _, err = loadInputs(bad, resourceFile)
	assert.Error(t, err)
}

func TestLoadInputs_CSV(t *testing.T) {
	dir := t.TempDir()
	demandFile := filepath.Join(dir, "demands.CSV")
	resourceFile := filepath.Join(dir, "resources.csv")
	require.NoError(t, os.WriteFile(demandFile, []byte(
		"id,required_power,required_memory_gb,max_price_per_unit,priority\nd1,100,16,2,critical\n"), 0o644))
	require.NoError(t, os.WriteFile(resourceFile, []byte(
		"id,computation_power,available_memory_gb,price_per_unit,reputation,energy_class\nr1,150,32,1,9,green\n"), 0o644))

	demands, resources, err := loadInputs(demandFile, resourceFile)
	require.NoError(t, err)
	require.Len(t, demands, 1)
	require.Len(t, resources, 1)
	assert.Equal(t, domain.PriorityCritical, demands[0].Priority)
	assert.True(t, resources[0].Active)

	var out bytes.Buffer
	require.NoError(t, doPlan(&out, demands, resources, 0.3, 0))
	assert.Contains(t, out.String(), `"r1"`)

	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("id,computation_power\nr1,1\n"), 0o644))
	_, _, err = loadInputs(demandFile, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.csv")
}

func TestDoPlan(t *testing.T) {
	demandFile, resourceFile := writeInputs(t)
	demands, resources, err := loadInputs(demandFile, resourceFile)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, doPlan(&buf, demands, resources, 0.7, 0))

	var out struct {
		Matches   []domain.MatchResult `json:"matches"`
		Unmatched []string             `json:"unmatched"`
		Rejected  []json.RawMessage    `json:"rejected"`
		Summary   struct {
			Matched   int `json:"matched"`
			Unmatched int `json:"unmatched"`
			Errors    int `json:"errors"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))

	require.Len(t, out.Matches, 1)
	assert.Equal(t, "d1", out.Matches[0].DemandID)
	assert.Equal(t, "r1", out.Matches[0].ResourceID)
	assert.Equal(t, []string{"d2"}, out.Unmatched)
	assert.Len(t, out.Rejected, 1)
	assert.Equal(t, 1, out.Summary.Matched)
	assert.Equal(t, 1, out.Summary.Unmatched)
	assert.Equal(t, 1, out.Summary.Errors)
}

func TestDoPlan_InvalidThreshold(t *testing.T) {
	var buf bytes.Buffer
	err := doPlan(&buf, nil, nil, -0.1, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestDoExplain(t *testing.T) {
	demandFile, resourceFile := writeInputs(t)
	demands, resources, err := loadInputs(demandFile, resourceFile)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, doExplain(&buf, "d1", demands, resources, 0.7))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "RESOURCE"))
	assert.True(t, strings.HasPrefix(lines[1], "r1"))
	assert.Contains(t, lines[1], "selectable")
	assert.True(t, strings.HasPrefix(lines[2], "r2"))
	assert.Contains(t, lines[2], "insufficient_power")

	err = doExplain(&buf, "nope", demands, resources, 0.7)
	assert.ErrorIs(t, err, domain.ErrDemandNotFound)
}

func TestDoComplete(t *testing.T) {
	ctx := context.Background()
	queue := mq.NewInMemoryQueue(mq.DefaultInMemoryQueueConfig(), nil)

	received := make(chan settlement.CompletionEvent, 1)
	require.NoError(t, queue.Subscribe(ctx, mq.TopicCompletions, func(_ context.Context, msg *mq.Message) error {
		var event settlement.CompletionEvent
		if err := msg.Unmarshal(&event); err != nil {
			return err
		}
		received <- event
		return nil
	}))
	require.NoError(t, queue.Start(ctx))
	defer queue.Stop()

	require.NoError(t, doComplete(ctx, queue, "d1", false, 90*time.Minute))

	select {
	case event := <-received:
		assert.Equal(t, "d1", event.DemandID)
		assert.False(t, event.Success)
		assert.Equal(t, 90*time.Minute, event.ActualDuration)
	case <-time.After(2 * time.Second):
		t.Fatal("completion event not delivered")
	}
}
