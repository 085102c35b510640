package dto

import (
	"fmt"
	"time"

	"github.com/arnabghosh/compute-matcher/internal/domain"
	"github.com/google/uuid"
)

// ToDemandResponse converts domain.Demand to dto.DemandResponse
func ToDemandResponse(d *domain.Demand) *DemandResponse {
	if d == nil {
		return nil
	}

	resp := &DemandResponse{
		ID:                d.ID,
		RequesterID:       d.RequesterID,
		ComputationType:   d.ComputationType,
		RequiredPower:     d.RequiredPower,
		RequiredMemory:    d.RequiredMemory,
		RequiredStorage:   d.RequiredStorage,
		MaxPricePerUnit:   d.MaxPricePerUnit,
		PreferredLocation: d.PreferredLocation,
		MinReputation:     d.MinReputation,
		GPURequired:       d.GPURequired,
		MinGPUMemory:      d.MinGPUMemory,
		Priority:          d.Priority.String(),
		Status:            string(d.Status),
		CreatedAt:         d.CreatedAt,
		MatchedResourceID: d.MatchedResourceID,
	}
	if d.DurationEstimate > 0 {
		resp.DurationEstimate = d.DurationEstimate.String()
	}
	return resp
}

// ToDemandListResponse converts a slice of domain.Demand to dto.DemandListResponse
func ToDemandListResponse(demands []*domain.Demand) *DemandListResponse {
	responses := make([]*DemandResponse, 0, len(demands))
	for _, d := range demands {
		responses = append(responses, ToDemandResponse(d))
	}
	return &DemandListResponse{Demands: responses, Total: len(responses)}
}

// ToDemand builds a pending demand from a create request. A missing ID is
// generated; now stamps CreatedAt.
func (r *CreateDemandRequest) ToDemand(now time.Time) (*domain.Demand, error) {
	priority, err := domain.ParsePriority(r.Priority)
	if err != nil {
		return nil, err
	}

	var estimate time.Duration
	if r.DurationEstimate != "" {
		estimate, err = time.ParseDuration(r.DurationEstimate)
		if err != nil || estimate < 0 {
			return nil, fmt.Errorf("%w: duration_estimate %q", domain.ErrInvalidInput, r.DurationEstimate)
		}
	}

	id := r.ID
	if id == "" {
		id = uuid.New().String()
	}

	d := &domain.Demand{
		ID:                id,
		RequesterID:       r.RequesterID,
		ComputationType:   r.ComputationType,
		RequiredPower:     r.RequiredPower,
		RequiredMemory:    r.RequiredMemory,
		RequiredStorage:   r.RequiredStorage,
		MaxPricePerUnit:   r.MaxPricePerUnit,
		PreferredLocation: r.PreferredLocation,
		MinReputation:     r.MinReputation,
		GPURequired:       r.GPURequired,
		MinGPUMemory:      r.MinGPUMemory,
		Priority:          priority,
		DurationEstimate:  estimate,
		Status:            domain.StatusPending,
		CreatedAt:         now.UTC(),
	}
	if err := domain.ValidateDemand(d); err != nil {
		return nil, err
	}
	return d, nil
}

// ToResourceResponse converts domain.Resource to dto.ResourceResponse
func ToResourceResponse(r *domain.Resource) *ResourceResponse {
	if r == nil {
		return nil
	}

	return &ResourceResponse{
		ID:               r.ID,
		ProviderID:       r.ProviderID,
		ComputationPower: r.ComputationPower,
		AvailableMemory:  r.AvailableMemory,
		AvailableStorage: r.AvailableStorage,
		GPUType:          r.GPUType,
		GPUMemory:        r.GPUMemory,
		PricePerUnit:     r.PricePerUnit,
		Location:         r.Location,
		Reputation:       r.Reputation,
		EnergyClass:      string(r.EnergyClass),
		Active:           r.Active,
		Busy:             r.Busy,
		TotalUsage:       r.TotalUsage.String(),
	}
}

// ToResourceListResponse converts a slice of domain.Resource to dto.ResourceListResponse
func ToResourceListResponse(resources []*domain.Resource) *ResourceListResponse {
	responses := make([]*ResourceResponse, 0, len(resources))
	for _, r := range resources {
		responses = append(responses, ToResourceResponse(r))
	}
	return &ResourceListResponse{Resources: responses, Total: len(responses)}
}

// ToResource builds an active resource from a registration request
func (r *RegisterResourceRequest) ToResource() (*domain.Resource, error) {
	id := r.ID
	if id == "" {
		id = uuid.New().String()
	}

	res := &domain.Resource{
		ID:               id,
		ProviderID:       r.ProviderID,
		ComputationPower: r.ComputationPower,
		AvailableMemory:  r.AvailableMemory,
		AvailableStorage: r.AvailableStorage,
		GPUType:          r.GPUType,
		GPUMemory:        r.GPUMemory,
		PricePerUnit:     r.PricePerUnit,
		Location:         r.Location,
		Reputation:       r.Reputation,
		EnergyClass:      domain.ParseEnergyClass(r.EnergyClass),
		Active:           true,
	}
	if err := domain.ValidateResource(res); err != nil {
		return nil, err
	}
	return res, nil
}

// Apply copies the present fields onto res and revalidates it
func (u *UpdateResourceRequest) Apply(res *domain.Resource) error {
	if u.ComputationPower != nil {
		res.ComputationPower = *u.ComputationPower
	}
	if u.AvailableMemory != nil {
		res.AvailableMemory = *u.AvailableMemory
	}
	if u.AvailableStorage != nil {
		res.AvailableStorage = *u.AvailableStorage
	}
	if u.GPUType != nil {
		res.GPUType = *u.GPUType
	}
	if u.GPUMemory != nil {
		res.GPUMemory = *u.GPUMemory
	}
	if u.PricePerUnit != nil {
		res.PricePerUnit = *u.PricePerUnit
	}
	if u.Location != nil {
		res.Location = *u.Location
	}
	if u.EnergyClass != nil {
		res.EnergyClass = domain.ParseEnergyClass(*u.EnergyClass)
	}
	if u.Active != nil {
		res.Active = *u.Active
	}
	return domain.ValidateResource(res)
}

// ToMatchResponse converts a recorded match
func ToMatchResponse(m *domain.SettledMatch) *MatchResponse {
	if m == nil {
		return nil
	}
	return &MatchResponse{
		DemandID:   m.DemandID,
		ResourceID: m.ResourceID,
		Score:      m.Score,
		TxRef:      m.TxRef,
		Alternates: m.Alternates,
	}
}
