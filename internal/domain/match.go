package domain

// Candidate is a scored resource considered for a demand
type Candidate struct {
	ResourceID string  `json:"resource_id"`
	Score      float64 `json:"score"`
}

// MatchResult is one (demand, resource) assignment produced by a matching cycle.
// Alternates are the runner-up resources kept for audit and fallback.
type MatchResult struct {
	DemandID   string      `json:"demand_id"`
	ResourceID string      `json:"resource_id"`
	Score      float64     `json:"score"`
	Alternates []Candidate `json:"alternates,omitempty"`
}

// RecordKind identifies which input collection a rejected record came from
type RecordKind string

const (
	RecordDemand   RecordKind = "demand"
	RecordResource RecordKind = "resource"
)

// RejectedRecord is an input defect reported by the allocator instead of aborting the cycle
type RejectedRecord struct {
	Kind   RecordKind `json:"kind"`
	ID     string     `json:"id"`
	Reason string     `json:"reason"`
}
