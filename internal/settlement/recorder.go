package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/arnabghosh/compute-matcher/internal/mq"
)

// Recorder consumes match and completion events from the queue and applies
// them to the stores
type Recorder struct {
	queue         mq.MessageQueue
	settler       *DirectSettler
	lifecycle     *Lifecycle
	matchTopic    string
	statsInterval time.Duration
	logger        *slog.Logger

	matchesApplied     atomic.Int64
	completionsApplied atomic.Int64
	rejected           atomic.Int64
	malformed          atomic.Int64
}

// NewRecorder creates a recorder. lifecycle may be nil if completions are
// handled elsewhere.
func NewRecorder(queue mq.MessageQueue, settler *DirectSettler, lifecycle *Lifecycle, matchTopic string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if matchTopic == "" {
		matchTopic = mq.TopicMatches
	}
	return &Recorder{
		queue:         queue,
		settler:       settler,
		lifecycle:     lifecycle,
		matchTopic:    matchTopic,
		statsInterval: 10 * time.Second,
		logger:        logger.With("component", "recorder"),
	}
}

// Subscribe registers the recorder's handlers on the queue
func (r *Recorder) Subscribe(ctx context.Context) error {
	if err := r.queue.Subscribe(ctx, r.matchTopic, r.handleMatch); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.matchTopic, err)
	}
	if r.lifecycle != nil {
		if err := r.queue.Subscribe(ctx, mq.TopicCompletions, r.handleCompletion); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", mq.TopicCompletions, err)
		}
	}
	return nil
}

// Run reports statistics until ctx is cancelled
func (r *Recorder) Run(ctx context.Context) {
	ticker := time.NewTicker(r.statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Recorder shutting down",
				"matches_applied", r.matchesApplied.Load(),
				"rejected", r.rejected.Load(),
			)
			return
		case <-ticker.C:
			qs := r.queue.Stats()
			r.logger.Info("Recorder statistics",
				"matches_applied", r.matchesApplied.Load(),
				"completions_applied", r.completionsApplied.Load(),
				"rejected", r.rejected.Load(),
				"malformed", r.malformed.Load(),
				"queue_depth", qs.QueueDepth,
			)
		}
	}
}

func (r *Recorder) handleMatch(ctx context.Context, msg *mq.Message) error {
	var event MatchEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		r.malformed.Add(1)
		r.logger.Warn("Failed to unmarshal match event", "message_id", msg.ID, "error", err)
		// Malformed payloads are acknowledged; retrying cannot fix them
		return nil
	}

	if err := r.settler.confirm(ctx, event.TxRef, event.DemandID, event.ResourceID); err != nil {
		// A stale match (demand completed, cancelled or rematched) is dropped
		r.rejected.Add(1)
		r.logger.Warn("Match rejected by store",
			"tx_ref", event.TxRef,
			"demand_id", event.DemandID,
			"resource_id", event.ResourceID,
			"error", err,
		)
		return nil
	}

	r.matchesApplied.Add(1)
	return nil
}

func (r *Recorder) handleCompletion(ctx context.Context, msg *mq.Message) error {
	var event CompletionEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		r.malformed.Add(1)
		r.logger.Warn("Failed to unmarshal completion event", "message_id", msg.ID, "error", err)
		return nil
	}

	if err := r.lifecycle.Complete(ctx, event.DemandID, event.Success, event.ActualDuration); err != nil {
		r.rejected.Add(1)
		r.logger.Warn("Completion rejected", "demand_id", event.DemandID, "error", err)
		return nil
	}

	r.completionsApplied.Add(1)
	return nil
}

// Stats returns current recorder statistics
func (r *Recorder) Stats() RecorderStats {
	return RecorderStats{
		MatchesApplied:     r.matchesApplied.Load(),
		CompletionsApplied: r.completionsApplied.Load(),
		Rejected:           r.rejected.Load(),
		Malformed:          r.malformed.Load(),
	}
}

// RecorderStats holds recorder statistics
type RecorderStats struct {
	MatchesApplied     int64 `json:"matches_applied"`
	CompletionsApplied int64 `json:"completions_applied"`
	Rejected           int64 `json:"rejected"`
	Malformed          int64 `json:"malformed"`
}
