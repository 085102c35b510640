package settlement

import "time"

// MatchEvent is published by QueueSettler and applied by Recorder
type MatchEvent struct {
	TxRef       string    `json:"tx_ref"`
	DemandID    string    `json:"demand_id"`
	ResourceID  string    `json:"resource_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// CompletionEvent reports the outcome of a matched computation
type CompletionEvent struct {
	DemandID       string        `json:"demand_id"`
	Success        bool          `json:"success"`
	ActualDuration time.Duration `json:"actual_duration"`
}
