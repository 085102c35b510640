package dto

import "time"

// RegisterResourceRequest is the body of POST /api/v1/resources
type RegisterResourceRequest struct {
	ID               string  `json:"id,omitempty" example:"node-3"`
	ProviderID       string  `json:"provider_id" binding:"required" example:"prov-1"`
	ComputationPower float64 `json:"computation_power" binding:"required,gt=0" example:"150"`
	AvailableMemory  float64 `json:"available_memory_gb" binding:"required,gt=0" example:"64"`
	AvailableStorage float64 `json:"available_storage_gb" binding:"gte=0" example:"500"`
	GPUType          string  `json:"gpu_type,omitempty" example:"A100"`
	GPUMemory        float64 `json:"gpu_memory_gb,omitempty" binding:"gte=0" example:"80"`
	PricePerUnit     float64 `json:"price_per_unit" binding:"gte=0" example:"1.2"`
	Location         string  `json:"location" example:"eu-west"`
	Reputation       float64 `json:"reputation" binding:"gte=0,lte=10" example:"5"`
	EnergyClass      string  `json:"energy_class,omitempty" example:"green"`
	// Verification, when set, must pass before the resource is stored
	Verification string `json:"verification,omitempty" example:"benchmark"`
}

// UpdateResourceRequest is the body of PATCH /api/v1/resources/{id}.
// Absent fields are left unchanged.
type UpdateResourceRequest struct {
	ComputationPower *float64 `json:"computation_power,omitempty" example:"200"`
	AvailableMemory  *float64 `json:"available_memory_gb,omitempty" example:"128"`
	AvailableStorage *float64 `json:"available_storage_gb,omitempty" example:"1000"`
	GPUType          *string  `json:"gpu_type,omitempty" example:"H100"`
	GPUMemory        *float64 `json:"gpu_memory_gb,omitempty" example:"80"`
	PricePerUnit     *float64 `json:"price_per_unit,omitempty" example:"1.5"`
	Location         *string  `json:"location,omitempty" example:"us-east"`
	EnergyClass      *string  `json:"energy_class,omitempty" example:"efficient"`
	Active           *bool    `json:"active,omitempty" example:"true"`
}

// ResourceResponse represents a resource in API responses
type ResourceResponse struct {
	ID               string  `json:"id" example:"node-3"`
	ProviderID       string  `json:"provider_id" example:"prov-1"`
	ComputationPower float64 `json:"computation_power" example:"150"`
	AvailableMemory  float64 `json:"available_memory_gb" example:"64"`
	AvailableStorage float64 `json:"available_storage_gb" example:"500"`
	GPUType          string  `json:"gpu_type,omitempty" example:"A100"`
	GPUMemory        float64 `json:"gpu_memory_gb,omitempty" example:"80"`
	PricePerUnit     float64 `json:"price_per_unit" example:"1.2"`
	Location         string  `json:"location" example:"eu-west"`
	Reputation       float64 `json:"reputation" example:"5"`
	EnergyClass      string  `json:"energy_class" example:"green"`
	Active           bool    `json:"active" example:"true"`
	Busy             bool    `json:"busy" example:"false"`
	TotalUsage       string  `json:"total_usage" example:"12h30m0s"`
}

// ResourceListResponse wraps a list of resources
type ResourceListResponse struct {
	Resources []*ResourceResponse `json:"resources"`
	Total     int                 `json:"total" example:"2"`
}

// VerificationResponse reports a capability check
type VerificationResponse struct {
	ResourceID string    `json:"resource_id" example:"node-3"`
	Method     string    `json:"method" example:"benchmark"`
	Verified   bool      `json:"verified" example:"true"`
	Score      float64   `json:"score" example:"1"`
	Reason     string    `json:"reason,omitempty" example:""`
	CheckedAt  time.Time `json:"checked_at" example:"2026-01-18T12:34:56Z"`
}
