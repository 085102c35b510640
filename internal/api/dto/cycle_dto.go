package dto

import "github.com/arnabghosh/compute-matcher/internal/domain"

// CycleListResponse wraps recent cycle reports, newest first
type CycleListResponse struct {
	Cycles []*domain.CycleReport `json:"cycles"`
	Total  int                   `json:"total" example:"10"`
}

// MatchResponse is the latest recorded assignment of a demand
type MatchResponse struct {
	DemandID   string             `json:"demand_id" example:"job-42"`
	ResourceID string             `json:"resource_id" example:"node-3"`
	Score      float64            `json:"score" example:"0.82"`
	TxRef      string             `json:"tx_ref,omitempty" example:"tx-5b0e"`
	Alternates []domain.Candidate `json:"alternates,omitempty"`
}
