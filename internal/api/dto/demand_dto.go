package dto

import "time"

// CreateDemandRequest is the body of POST /api/v1/demands
type CreateDemandRequest struct {
	ID                string   `json:"id,omitempty" example:"job-42"`
	RequesterID       string   `json:"requester_id" binding:"required" example:"acct-7"`
	ComputationType   string   `json:"computation_type,omitempty" example:"training"`
	RequiredPower     float64  `json:"required_power" binding:"required,gt=0" example:"100"`
	RequiredMemory    float64  `json:"required_memory_gb" binding:"required,gt=0" example:"16"`
	RequiredStorage   float64  `json:"required_storage_gb,omitempty" binding:"gte=0" example:"50"`
	MaxPricePerUnit   float64  `json:"max_price_per_unit" binding:"required,gt=0" example:"2.5"`
	PreferredLocation string   `json:"preferred_location,omitempty" example:"eu-west"`
	MinReputation     *float64 `json:"min_reputation,omitempty" example:"6"`
	GPURequired       bool     `json:"gpu_required" example:"true"`
	MinGPUMemory      float64  `json:"min_gpu_memory_gb,omitempty" binding:"gte=0" example:"24"`
	Priority          string   `json:"priority,omitempty" example:"high"`
	DurationEstimate  string   `json:"duration_estimate,omitempty" example:"2h"`
}

// CompleteDemandRequest is the body of POST /api/v1/demands/{id}/complete
type CompleteDemandRequest struct {
	Success        bool   `json:"success" example:"true"`
	ActualDuration string `json:"actual_duration" example:"1h45m"`
}

// DemandResponse represents a demand in API responses
type DemandResponse struct {
	ID                string    `json:"id" example:"job-42"`
	RequesterID       string    `json:"requester_id" example:"acct-7"`
	ComputationType   string    `json:"computation_type,omitempty" example:"training"`
	RequiredPower     float64   `json:"required_power" example:"100"`
	RequiredMemory    float64   `json:"required_memory_gb" example:"16"`
	RequiredStorage   float64   `json:"required_storage_gb,omitempty" example:"50"`
	MaxPricePerUnit   float64   `json:"max_price_per_unit" example:"2.5"`
	PreferredLocation string    `json:"preferred_location,omitempty" example:"eu-west"`
	MinReputation     *float64  `json:"min_reputation,omitempty" example:"6"`
	GPURequired       bool      `json:"gpu_required" example:"true"`
	MinGPUMemory      float64   `json:"min_gpu_memory_gb,omitempty" example:"24"`
	Priority          string    `json:"priority" example:"high"`
	DurationEstimate  string    `json:"duration_estimate,omitempty" example:"2h0m0s"`
	Status            string    `json:"status" example:"pending"`
	CreatedAt         time.Time `json:"created_at" example:"2026-01-18T12:34:56Z"`
	MatchedResourceID string    `json:"matched_resource_id,omitempty" example:"node-3"`
}

// DemandListResponse wraps a list of demands
type DemandListResponse struct {
	Demands []*DemandResponse `json:"demands"`
	Total   int               `json:"total" example:"2"`
}
