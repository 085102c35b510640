package capability

import (
	"context"
	"fmt"
	"math"

	"github.com/arnabghosh/compute-matcher/internal/domain"
)

// Verdict is the outcome of a capability check
type Verdict struct {
	Verified bool    `json:"verified"`
	Score    float64 `json:"score"` // confidence in [0, 1]
	Method   string  `json:"method"`
	Reason   string  `json:"reason,omitempty"`
}

// Verifier checks that a resource can deliver what it advertises
type Verifier interface {
	Verify(ctx context.Context, r *domain.Resource, method VerificationMethod) (Verdict, error)
}

// HardwareVerifier is a deterministic plausibility checker over advertised hardware.
// It performs no benchmark execution or cryptographic attestation.
type HardwareVerifier struct {
	// MaxReputation normalizes reputation into a confidence score
	MaxReputation float64
	// MinReputation is the floor for the reputation method
	MinReputation float64
	// MaxPowerPerGB bounds the advertised power relative to memory;
	// anything above is treated as implausible
	MaxPowerPerGB float64
}

// NewHardwareVerifier returns a verifier with permissive defaults
func NewHardwareVerifier(maxReputation float64) *HardwareVerifier {
	return &HardwareVerifier{
		MaxReputation: maxReputation,
		MinReputation: maxReputation * 0.3,
		MaxPowerPerGB: 1000,
	}
}

// Verify applies the check for the given method
func (v *HardwareVerifier) Verify(ctx context.Context, r *domain.Resource, method VerificationMethod) (Verdict, error) {
	if r == nil {
		return Verdict{}, domain.ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Verdict{}, err
	}

	verdict := Verdict{Method: method.String()}
	switch method {
	case VerifyBenchmark:
		verdict.Verified, verdict.Reason = v.plausible(r)
		if verdict.Verified {
			verdict.Score = 1
		}
	case VerifyRedundant:
		// No peer results to compare against: consistency weighted by reputation
		ok, reason := v.plausible(r)
		verdict.Verified, verdict.Reason = ok, reason
		if ok {
			verdict.Score = 0.5 + 0.5*v.normalized(r.Reputation)
		}
	case VerifyReputation:
		verdict.Score = v.normalized(r.Reputation)
		verdict.Verified = r.Reputation >= v.MinReputation
		if !verdict.Verified {
			verdict.Reason = fmt.Sprintf("reputation %.2f below %.2f", r.Reputation, v.MinReputation)
		}
	default:
		return Verdict{}, fmt.Errorf("%w: unsupported verification method %s", domain.ErrInvalidInput, method)
	}
	return verdict, nil
}

func (v *HardwareVerifier) plausible(r *domain.Resource) (bool, string) {
	if err := domain.ValidateResource(r); err != nil {
		return false, err.Error()
	}
	if r.ComputationPower <= 0 {
		return false, "no computation power advertised"
	}
	if r.AvailableMemory <= 0 {
		return false, "no memory advertised"
	}
	if r.ComputationPower/r.AvailableMemory > v.MaxPowerPerGB {
		return false, "computation power implausible for advertised memory"
	}
	if r.HasGPU() && r.GPUMemory <= 0 {
		return false, "GPU advertised without GPU memory"
	}
	return true, ""
}

func (v *HardwareVerifier) normalized(rep float64) float64 {
	if v.MaxReputation <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1, rep/v.MaxReputation))
}
