package domain

import (
	"fmt"
	"strings"
	"time"
)

// EnergyClass classifies a resource's energy profile
type EnergyClass string

const (
	EnergyGreen     EnergyClass = "green"
	EnergyEfficient EnergyClass = "efficient"
	EnergyStandard  EnergyClass = "standard"
	EnergyLegacy    EnergyClass = "legacy"
	EnergyUnknown   EnergyClass = "unknown"
)

// ParseEnergyClass maps free-form input to a class; unrecognised values become EnergyUnknown
func ParseEnergyClass(s string) EnergyClass {
	switch EnergyClass(strings.ToLower(strings.TrimSpace(s))) {
	case EnergyGreen:
		return EnergyGreen
	case EnergyEfficient:
		return EnergyEfficient
	case EnergyStandard:
		return EnergyStandard
	case EnergyLegacy:
		return EnergyLegacy
	}
	return EnergyUnknown
}

// Resource is a computational asset advertised by a provider.
// The engine only reads it; consumption within a cycle is tracked outside the struct.
type Resource struct {
	ID         string `json:"id" bson:"id"`
	ProviderID string `json:"provider_id" bson:"provider_id"`

	ComputationPower float64 `json:"computation_power" bson:"computation_power"`
	AvailableMemory  float64 `json:"available_memory_gb" bson:"available_memory_gb"`
	AvailableStorage float64 `json:"available_storage_gb" bson:"available_storage_gb"`

	// GPUType is empty when the resource has no GPU
	GPUType   string  `json:"gpu_type,omitempty" bson:"gpu_type,omitempty"`
	GPUMemory float64 `json:"gpu_memory_gb,omitempty" bson:"gpu_memory_gb,omitempty"`

	PricePerUnit float64     `json:"price_per_unit" bson:"price_per_unit"`
	Location     string      `json:"location" bson:"location"`
	Reputation   float64     `json:"reputation" bson:"reputation"`
	EnergyClass  EnergyClass `json:"energy_class" bson:"energy_class"`

	Active bool `json:"active" bson:"active"`
	Busy   bool `json:"busy" bson:"busy"`

	// TotalUsage accumulates the actual duration of completed work
	TotalUsage time.Duration `json:"total_usage" bson:"total_usage"`
}

// HasGPU reports whether the resource advertises a GPU
func (r *Resource) HasGPU() bool {
	return r.GPUType != ""
}

// Available reports whether the resource can take new work at all
func (r *Resource) Available() bool {
	return r.Active && !r.Busy
}

// Clone returns a copy of the resource
func (r *Resource) Clone() *Resource {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func (r *Resource) String() string {
	return fmt.Sprintf("%s(power=%g mem=%g price=%g loc=%s)", r.ID, r.ComputationPower, r.AvailableMemory, r.PricePerUnit, r.Location)
}
