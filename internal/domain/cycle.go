package domain

import "time"

// CycleReport summarizes one allocation cycle
type CycleReport struct {
	CycleID    string        `json:"cycle_id"`
	InstanceID string        `json:"instance_id,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`

	DemandsFetched   int `json:"demands_fetched"`
	ResourcesFetched int `json:"resources_fetched"`

	Matched        int `json:"matched"`
	Unmatched      int `json:"unmatched"`
	Rejected       int `json:"rejected"`
	Submitted      int `json:"submitted"`
	SubmitFailures int `json:"submit_failures"`

	Matches      []SettledMatch `json:"matches,omitempty"`
	UnmatchedIDs []string       `json:"unmatched_ids,omitempty"`
}

// SettledMatch is a match together with the outcome of its submission
type SettledMatch struct {
	MatchResult
	TxRef string `json:"tx_ref,omitempty"`
	Error string `json:"error,omitempty"`
}
