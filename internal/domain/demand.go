package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Priority orders demands within a matching cycle. Higher values are served first.
// Values outside the named tiers are allowed and order naturally.
type Priority int

const (
	PriorityLow      Priority = 0
	PriorityNormal   Priority = 1
	PriorityHigh     Priority = 2
	PriorityCritical Priority = 3
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	}
	return fmt.Sprintf("rank-%d", int(p))
}

// ParsePriority accepts a tier name or a numeric rank
func ParsePriority(s string) (Priority, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "normal":
		return PriorityNormal, nil
	case "low":
		return PriorityLow, nil
	case "high":
		return PriorityHigh, nil
	case "critical":
		return PriorityCritical, nil
	}
	rank, err := strconv.Atoi(s)
	if err != nil {
		return PriorityNormal, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, s)
	}
	return Priority(rank), nil
}

// DemandStatus is the lifecycle state of a computation demand
type DemandStatus string

const (
	StatusPending   DemandStatus = "pending"
	StatusMatching  DemandStatus = "matching"
	StatusRunning   DemandStatus = "running"
	StatusCompleted DemandStatus = "completed"
	StatusFailed    DemandStatus = "failed"
	StatusCancelled DemandStatus = "cancelled"
)

// Valid reports whether s is a known status
func (s DemandStatus) Valid() bool {
	switch s {
	case StatusPending, StatusMatching, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible
func (s DemandStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Demand is a computation request submitted by a user.
// The engine treats a Demand as read-only for the duration of a cycle.
type Demand struct {
	ID              string `json:"id" bson:"id"`
	RequesterID     string `json:"requester_id,omitempty" bson:"requester_id,omitempty"`
	ComputationType string `json:"computation_type,omitempty" bson:"computation_type,omitempty"`

	// RequiredPower is expressed in the same units as Resource.ComputationPower
	// (core-equivalents or FLOPS, the marketplace picks one)
	RequiredPower   float64 `json:"required_power" bson:"required_power"`
	RequiredMemory  float64 `json:"required_memory_gb" bson:"required_memory_gb"`
	RequiredStorage float64 `json:"required_storage_gb,omitempty" bson:"required_storage_gb,omitempty"`
	MaxPricePerUnit float64 `json:"max_price_per_unit" bson:"max_price_per_unit"`

	// PreferredLocation is empty when the requester has no preference
	PreferredLocation string `json:"preferred_location,omitempty" bson:"preferred_location,omitempty"`

	// MinReputation is nil when no reputation floor applies
	MinReputation *float64 `json:"min_reputation,omitempty" bson:"min_reputation,omitempty"`

	GPURequired  bool    `json:"gpu_required" bson:"gpu_required"`
	MinGPUMemory float64 `json:"min_gpu_memory_gb,omitempty" bson:"min_gpu_memory_gb,omitempty"`

	Priority         Priority      `json:"priority" bson:"priority"`
	DurationEstimate time.Duration `json:"duration_estimate" bson:"duration_estimate"`
	Status           DemandStatus  `json:"status" bson:"status"`
	CreatedAt        time.Time     `json:"created_at" bson:"created_at"`

	MatchedResourceID string `json:"matched_resource_id,omitempty" bson:"matched_resource_id,omitempty"`
}

// NeedsStorage reports whether the demand carries a storage requirement
func (d *Demand) NeedsStorage() bool {
	return d.RequiredStorage > 0
}

// Clone returns a deep copy so a cycle works on a snapshot that cannot change under it
func (d *Demand) Clone() *Demand {
	if d == nil {
		return nil
	}
	c := *d
	if d.MinReputation != nil {
		v := *d.MinReputation
		c.MinReputation = &v
	}
	return &c
}
