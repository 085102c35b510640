package settlement

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/arnabghosh/compute-matcher/internal/domain"
)

// Escrow holds payment for a matched demand until the computation finishes
type Escrow interface {
	Create(ctx context.Context, demandID string, amount float64) error
	Release(ctx context.Context, demandID string) error
	Cancel(ctx context.Context, demandID string) error
}

// EscrowState is the lifecycle state of a held payment
type EscrowState string

const (
	EscrowHeld      EscrowState = "held"
	EscrowReleased  EscrowState = "released"
	EscrowCancelled EscrowState = "cancelled"
)

// EscrowEntry is a snapshot of one escrow account
type EscrowEntry struct {
	DemandID string      `json:"demand_id"`
	Amount   float64     `json:"amount"`
	State    EscrowState `json:"state"`
}

// InMemoryEscrow is a process-local Escrow
type InMemoryEscrow struct {
	mu      sync.Mutex
	entries map[string]*EscrowEntry
}

// NewInMemoryEscrow creates an empty escrow book
func NewInMemoryEscrow() *InMemoryEscrow {
	return &InMemoryEscrow{entries: make(map[string]*EscrowEntry)}
}

// Create opens a held escrow for a demand
func (e *InMemoryEscrow) Create(ctx context.Context, demandID string, amount float64) error {
	if demandID == "" || amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("%w: escrow for %q amount %g", domain.ErrInvalidInput, demandID, amount)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.entries[demandID]; ok && existing.State == EscrowHeld {
		return fmt.Errorf("%w: escrow for demand %s", domain.ErrAlreadyExists, demandID)
	}
	e.entries[demandID] = &EscrowEntry{DemandID: demandID, Amount: amount, State: EscrowHeld}
	return nil
}

// Release pays out a held escrow
func (e *InMemoryEscrow) Release(ctx context.Context, demandID string) error {
	return e.settle(demandID, EscrowReleased)
}

// Cancel refunds a held escrow
func (e *InMemoryEscrow) Cancel(ctx context.Context, demandID string) error {
	return e.settle(demandID, EscrowCancelled)
}

func (e *InMemoryEscrow) settle(demandID string, to EscrowState) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.entries[demandID]
	if !ok {
		return fmt.Errorf("%w: escrow for demand %s", domain.ErrNotFound, demandID)
	}
	if entry.State != EscrowHeld {
		return fmt.Errorf("%w: escrow for demand %s is %s", domain.ErrInvalidStatus, demandID, entry.State)
	}
	entry.State = to
	return nil
}

// Get returns a snapshot of the escrow for a demand
func (e *InMemoryEscrow) Get(demandID string) (EscrowEntry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.entries[demandID]
	if !ok {
		return EscrowEntry{}, false
	}
	return *entry, true
}

// escrowAmount prices a match at the resource rate over the estimated duration,
// charging at least one unit
func escrowAmount(d *domain.Demand, r *domain.Resource) float64 {
	hours := d.DurationEstimate.Hours()
	if hours < 1 {
		hours = 1
	}
	return r.PricePerUnit * hours
}
