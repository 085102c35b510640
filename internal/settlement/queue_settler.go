package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/arnabghosh/compute-matcher/internal/domain"
	"github.com/arnabghosh/compute-matcher/internal/mq"
	"golang.org/x/time/rate"
)

// QueueSettler claims matches in the stores and publishes them to a message
// queue, where the recorder settles escrow. Submissions are throttled by a
// token bucket.
type QueueSettler struct {
	queue   mq.MessageQueue
	claims  *DirectSettler
	topic   string
	limiter *rate.Limiter
}

// NewQueueSettler creates a throttled queue settler. claims books each pair
// before it is published, so the next cycle no longer sees it.
func NewQueueSettler(queue mq.MessageQueue, claims *DirectSettler, topic string, perSecond float64, burst int) *QueueSettler {
	if topic == "" {
		topic = mq.TopicMatches
	}
	return &QueueSettler{
		queue:   queue,
		claims:  claims,
		topic:   topic,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// SubmitMatch waits for a submission token, claims the pair and publishes a
// MatchEvent. A failed publish releases the claim.
func (s *QueueSettler) SubmitMatch(ctx context.Context, demandID, resourceID string) (string, error) {
	if demandID == "" || resourceID == "" {
		return "", domain.ErrInvalidInput
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("submission throttled: %w", err)
	}
	if err := s.claims.claim(ctx, demandID, resourceID); err != nil {
		return "", err
	}

	event := MatchEvent{
		TxRef:       NewTxRef(),
		DemandID:    demandID,
		ResourceID:  resourceID,
		SubmittedAt: time.Now().UTC(),
	}
	msg, err := mq.NewMessageWithID(event.TxRef, s.topic, event)
	if err == nil {
		err = s.queue.Publish(ctx, msg)
	}
	if err != nil {
		// The cycle context may be gone; the rollback must still run
		if undoErr := s.claims.unclaim(context.WithoutCancel(ctx), demandID, resourceID); undoErr != nil {
			return "", fmt.Errorf("%w: %v (rollback: %v)", domain.ErrQueueError, err, undoErr)
		}
		return "", fmt.Errorf("%w: %v", domain.ErrQueueError, err)
	}
	return event.TxRef, nil
}

// ReportCompletion publishes a CompletionEvent for the recorder. It is not
// throttled.
func (s *QueueSettler) ReportCompletion(ctx context.Context, demandID string, success bool, actualDuration time.Duration) error {
	return PublishCompletion(ctx, s.queue, demandID, success, actualDuration)
}

// PublishCompletion publishes a CompletionEvent to the completions topic
func PublishCompletion(ctx context.Context, queue mq.MessageQueue, demandID string, success bool, actualDuration time.Duration) error {
	if demandID == "" || actualDuration < 0 {
		return domain.ErrInvalidInput
	}

	event := CompletionEvent{
		DemandID:       demandID,
		Success:        success,
		ActualDuration: actualDuration,
	}
	msg, err := mq.NewMessage(mq.TopicCompletions, event)
	if err != nil {
		return fmt.Errorf("encode completion event: %w", err)
	}
	if err := queue.Publish(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrQueueError, err)
	}
	return nil
}
