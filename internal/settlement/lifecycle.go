package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arnabghosh/compute-matcher/internal/domain"
	"github.com/arnabghosh/compute-matcher/internal/storage"
)

// reputationStep is applied per completed (+) or failed (-) computation
const reputationStep = 1.0

// Lifecycle drives a matched demand through execution to completion and
// feeds the outcome back into the provider's reputation
type Lifecycle struct {
	demands       storage.DemandRepository
	resources     storage.ResourceRepository
	escrow        Escrow
	maxReputation float64
	logger        *slog.Logger
}

// NewLifecycle creates a lifecycle manager. escrow may be nil.
func NewLifecycle(demands storage.DemandRepository, resources storage.ResourceRepository, escrow Escrow, maxReputation float64, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{
		demands:       demands,
		resources:     resources,
		escrow:        escrow,
		maxReputation: maxReputation,
		logger:        logger.With("component", "lifecycle"),
	}
}

// Start marks a matched demand as running
func (l *Lifecycle) Start(ctx context.Context, demandID string) error {
	return l.demands.Transition(ctx, demandID, domain.StatusMatching, domain.StatusRunning, "")
}

// Cancel withdraws a demand that has not been matched yet
func (l *Lifecycle) Cancel(ctx context.Context, demandID string) error {
	return l.demands.Transition(ctx, demandID, domain.StatusPending, domain.StatusCancelled, "")
}

// Complete finishes a matched or running demand. The resource is released,
// its usage accumulated and its reputation moved one step up on success or
// down on failure, saturating within [0, maxReputation].
func (l *Lifecycle) Complete(ctx context.Context, demandID string, success bool, actualDuration time.Duration) error {
	if actualDuration < 0 {
		return fmt.Errorf("%w: negative duration %s", domain.ErrInvalidInput, actualDuration)
	}

	demand, err := l.demands.GetByID(ctx, demandID)
	if err != nil {
		return err
	}
	if demand.Status != domain.StatusMatching && demand.Status != domain.StatusRunning {
		return fmt.Errorf("%w: demand %s is %s", domain.ErrInvalidStatus, demandID, demand.Status)
	}

	to := domain.StatusFailed
	if success {
		to = domain.StatusCompleted
	}
	if err := l.demands.Transition(ctx, demandID, demand.Status, to, ""); err != nil {
		return err
	}

	if demand.MatchedResourceID != "" {
		if err := l.settleResource(ctx, demand.MatchedResourceID, success, actualDuration); err != nil {
			// Back to the previous status so the completion can be retried;
			// escrow stays held until then
			if undoErr := l.demands.Transition(context.WithoutCancel(ctx), demandID, to, demand.Status, ""); undoErr != nil {
				l.logger.Error("Failed to restore demand after resource update failure",
					"demand_id", demandID,
					"status", to,
					"error", undoErr,
				)
				return errors.Join(err, fmt.Errorf("restore demand %s: %w", demandID, undoErr))
			}
			return err
		}
	}

	if l.escrow != nil {
		settle := l.escrow.Cancel
		if success {
			settle = l.escrow.Release
		}
		if err := settle(ctx, demandID); err != nil {
			l.logger.Warn("Failed to settle escrow", "demand_id", demandID, "success", success, "error", err)
		}
	}

	l.logger.Info("Demand completed",
		"demand_id", demandID,
		"resource_id", demand.MatchedResourceID,
		"status", to,
		"duration", actualDuration,
	)
	return nil
}

func (l *Lifecycle) settleResource(ctx context.Context, resourceID string, success bool, used time.Duration) error {
	delta := -reputationStep
	if success {
		delta = reputationStep
	}
	if err := l.resources.RecordOutcome(ctx, resourceID, delta, l.maxReputation, used); err != nil {
		return fmt.Errorf("record outcome on resource %s: %w", resourceID, err)
	}
	return nil
}
