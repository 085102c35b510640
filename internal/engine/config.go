package engine

import (
	"fmt"
	"math"

	"github.com/arnabghosh/compute-matcher/internal/domain"
)

const (
	// DefaultScoreThreshold is the minimum score a resource needs to be selected
	DefaultScoreThreshold = 0.7

	// DefaultMaxReputation is the ceiling used to normalise reputation scores
	DefaultMaxReputation = 10.0

	// DefaultMaxAlternates is the number of runner-up candidates recorded per match
	DefaultMaxAlternates = 2

	weightSumTolerance = 1e-9
)

// Weights holds the per-factor weights of the scoring model and the
// reputation ceiling used for normalisation. Weights must sum to 1.
type Weights struct {
	Power         float64 `json:"power"`
	Cost          float64 `json:"cost"`
	Reliability   float64 `json:"reliability"`
	Location      float64 `json:"location"`
	Energy        float64 `json:"energy"`
	Response      float64 `json:"response"`
	MaxReputation float64 `json:"max_reputation"`
}

// DefaultWeights returns the canonical weighting
func DefaultWeights() Weights {
	return Weights{
		Power:         0.25,
		Cost:          0.20,
		Reliability:   0.15,
		Location:      0.10,
		Energy:        0.15,
		Response:      0.15,
		MaxReputation: DefaultMaxReputation,
	}
}

// Sum returns the total of all factor weights
func (w Weights) Sum() float64 {
	return w.Power + w.Cost + w.Reliability + w.Location + w.Energy + w.Response
}

// Validate rejects negative weights, weights that do not sum to 1 and a
// non-positive reputation ceiling
func (w Weights) Validate() error {
	named := []struct {
		name  string
		value float64
	}{
		{"power", w.Power},
		{"cost", w.Cost},
		{"reliability", w.Reliability},
		{"location", w.Location},
		{"energy", w.Energy},
		{"response", w.Response},
	}
	for _, n := range named {
		if math.IsNaN(n.value) || n.value < 0 {
			return fmt.Errorf("%w: weight %s must be non-negative, got %g", domain.ErrInvalidConfig, n.name, n.value)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("%w: weights must sum to 1.0, got %g", domain.ErrInvalidConfig, sum)
	}
	if !(w.MaxReputation > 0) {
		return fmt.Errorf("%w: max reputation must be positive, got %g", domain.ErrInvalidConfig, w.MaxReputation)
	}
	return nil
}

// Config configures the allocator
type Config struct {
	Weights        Weights `json:"weights"`
	ScoreThreshold float64 `json:"score_threshold"`
	MaxAlternates  int     `json:"max_alternates"`
}

// DefaultConfig returns the default allocator configuration
func DefaultConfig() Config {
	return Config{
		Weights:        DefaultWeights(),
		ScoreThreshold: DefaultScoreThreshold,
		MaxAlternates:  DefaultMaxAlternates,
	}
}

// Validate validates the configuration
func (c Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if math.IsNaN(c.ScoreThreshold) || c.ScoreThreshold < 0 || c.ScoreThreshold > 1 {
		return fmt.Errorf("%w: score threshold must be within [0, 1], got %g", domain.ErrInvalidConfig, c.ScoreThreshold)
	}
	if c.MaxAlternates < 0 {
		return fmt.Errorf("%w: max alternates must be non-negative, got %d", domain.ErrInvalidConfig, c.MaxAlternates)
	}
	return nil
}
