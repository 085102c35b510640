package engine

import "github.com/arnabghosh/compute-matcher/internal/domain"

// Reason names the first hard constraint a resource failed
type Reason string

const (
	ReasonEligible   Reason = ""
	ReasonInactive   Reason = "inactive"
	ReasonConsumed   Reason = "consumed"
	ReasonPower      Reason = "insufficient_power"
	ReasonMemory     Reason = "insufficient_memory"
	ReasonStorage    Reason = "insufficient_storage"
	ReasonPrice      Reason = "price_too_high"
	ReasonGPU        Reason = "gpu_requirement"
	ReasonReputation Reason = "reputation_below_floor"
)

// Consumed tracks resources already assigned within the current cycle
type Consumed map[string]struct{}

// Has reports whether the resource id was consumed
func (c Consumed) Has(id string) bool {
	_, ok := c[id]
	return ok
}

// Add marks the resource id consumed
func (c Consumed) Add(id string) {
	c[id] = struct{}{}
}

// Check evaluates every hard constraint of d against r.
// consumed may be nil.
func Check(d *domain.Demand, r *domain.Resource, consumed Consumed) Reason {
	if !r.Available() {
		return ReasonInactive
	}
	if consumed.Has(r.ID) {
		return ReasonConsumed
	}
	if r.ComputationPower < d.RequiredPower {
		return ReasonPower
	}
	if r.AvailableMemory < d.RequiredMemory {
		return ReasonMemory
	}
	if d.NeedsStorage() && r.AvailableStorage < d.RequiredStorage {
		return ReasonStorage
	}
	if r.PricePerUnit > d.MaxPricePerUnit {
		return ReasonPrice
	}
	if d.GPURequired && (!r.HasGPU() || r.GPUMemory < d.MinGPUMemory) {
		return ReasonGPU
	}
	if d.MinReputation != nil && r.Reputation < *d.MinReputation {
		return ReasonReputation
	}
	return ReasonEligible
}

// Eligible reports whether r satisfies all hard constraints of d
func Eligible(d *domain.Demand, r *domain.Resource, consumed Consumed) bool {
	return Check(d, r, consumed) == ReasonEligible
}

// Filter returns the resources eligible for d, preserving input order.
// An empty result is a normal outcome.
func Filter(d *domain.Demand, resources []*domain.Resource, consumed Consumed) []*domain.Resource {
	eligible := make([]*domain.Resource, 0, len(resources))
	for _, r := range resources {
		if Eligible(d, r, consumed) {
			eligible = append(eligible, r)
		}
	}
	return eligible
}
