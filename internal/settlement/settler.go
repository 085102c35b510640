package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arnabghosh/compute-matcher/internal/domain"
	"github.com/arnabghosh/compute-matcher/internal/storage"
	"github.com/google/uuid"
)

// NewTxRef returns a fresh settlement transaction reference
func NewTxRef() string {
	return "tx-" + uuid.New().String()
}

// DirectSettler records matches straight into the repositories
type DirectSettler struct {
	demands   storage.DemandRepository
	resources storage.ResourceRepository
	escrow    Escrow
	logger    *slog.Logger
}

// NewDirectSettler creates a settler over the given stores. escrow may be nil.
func NewDirectSettler(demands storage.DemandRepository, resources storage.ResourceRepository, escrow Escrow, logger *slog.Logger) *DirectSettler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectSettler{
		demands:   demands,
		resources: resources,
		escrow:    escrow,
		logger:    logger.With("component", "direct_settler"),
	}
}

// SubmitMatch reserves the resource and moves the demand to matching
func (s *DirectSettler) SubmitMatch(ctx context.Context, demandID, resourceID string) (string, error) {
	if err := s.claim(ctx, demandID, resourceID); err != nil {
		return "", err
	}
	txRef := NewTxRef()
	s.settle(ctx, txRef, demandID, resourceID)
	return txRef, nil
}

// claim books the pair in the stores: the resource is reserved and the
// demand leaves pending, or neither happens
func (s *DirectSettler) claim(ctx context.Context, demandID, resourceID string) error {
	if demandID == "" || resourceID == "" {
		return domain.ErrInvalidInput
	}

	if err := s.resources.Reserve(ctx, resourceID); err != nil {
		return fmt.Errorf("reserve resource %s: %w", resourceID, err)
	}

	if err := s.demands.Transition(ctx, demandID, domain.StatusPending, domain.StatusMatching, resourceID); err != nil {
		if relErr := s.resources.Release(ctx, resourceID); relErr != nil {
			s.logger.Error("Failed to release resource after rejected match",
				"resource_id", resourceID,
				"error", relErr,
			)
		}
		return fmt.Errorf("transition demand %s: %w", demandID, err)
	}
	return nil
}

// unclaim returns a claimed pair to pending and available
func (s *DirectSettler) unclaim(ctx context.Context, demandID, resourceID string) error {
	var errs []error
	if err := s.demands.Transition(ctx, demandID, domain.StatusMatching, domain.StatusPending, ""); err != nil {
		errs = append(errs, fmt.Errorf("restore demand %s: %w", demandID, err))
	}
	if err := s.resources.Release(ctx, resourceID); err != nil {
		errs = append(errs, fmt.Errorf("release resource %s: %w", resourceID, err))
	}
	return errors.Join(errs...)
}

// confirm settles a match that was claimed before it was queued. It is
// rejected if the demand has since moved on or points at another resource.
func (s *DirectSettler) confirm(ctx context.Context, txRef, demandID, resourceID string) error {
	d, err := s.demands.GetByID(ctx, demandID)
	if err != nil {
		return err
	}
	if d.Status != domain.StatusMatching || d.MatchedResourceID != resourceID {
		return fmt.Errorf("%w: demand %s is %s on %q", domain.ErrInvalidStatus, demandID, d.Status, d.MatchedResourceID)
	}
	s.settle(ctx, txRef, demandID, resourceID)
	return nil
}

func (s *DirectSettler) settle(ctx context.Context, txRef, demandID, resourceID string) {
	if s.escrow != nil {
		s.openEscrow(ctx, demandID, resourceID)
	}

	s.logger.Debug("Match recorded",
		"tx_ref", txRef,
		"demand_id", demandID,
		"resource_id", resourceID,
	)
}

// openEscrow is best effort; the match stands even if escrow fails
func (s *DirectSettler) openEscrow(ctx context.Context, demandID, resourceID string) {
	d, err := s.demands.GetByID(ctx, demandID)
	if err != nil {
		s.logger.Warn("Escrow skipped, demand lookup failed", "demand_id", demandID, "error", err)
		return
	}
	r, err := s.resources.GetByID(ctx, resourceID)
	if err != nil {
		s.logger.Warn("Escrow skipped, resource lookup failed", "resource_id", resourceID, "error", err)
		return
	}
	if err := s.escrow.Create(ctx, demandID, escrowAmount(d, r)); err != nil {
		s.logger.Warn("Failed to create escrow", "demand_id", demandID, "error", err)
	}
}
