package capability

import "context"

// Sensitivity grades how much protection a job's data needs
type Sensitivity int

const (
	SensitivityPublic Sensitivity = iota
	SensitivityInternal
	SensitivityConfidential
	SensitivityRegulated
)

// JobDescriptor is what the privacy selector sees of a job
type JobDescriptor struct {
	ComputationType string
	Sensitivity     Sensitivity
	// VerifiableOutput asks for a proof that the result was computed correctly
	VerifiableOutput bool
	// MultiParty marks jobs whose inputs come from mutually distrusting owners
	MultiParty bool
	HasTEE     bool
}

// PrivacySelector chooses the privacy method for a job
type PrivacySelector interface {
	Select(job JobDescriptor) PrivacyMethod
}

// RuleSelector maps job traits to a privacy method with fixed rules
type RuleSelector struct{}

// Select picks the least expensive method that satisfies the job
func (RuleSelector) Select(job JobDescriptor) PrivacyMethod {
	switch {
	case job.MultiParty:
		return PrivacyMPC
	case job.VerifiableOutput:
		return PrivacyZKP
	}

	switch job.Sensitivity {
	case SensitivityRegulated, SensitivityConfidential:
		if job.HasTEE {
			return PrivacyTEE
		}
		return PrivacyHomomorphic
	default:
		return PrivacyNone
	}
}

// Executor runs a matched job under a privacy method. Implementations live
// outside the matcher; the payloads are opaque here.
type Executor interface {
	Prepare(ctx context.Context, data []byte, method PrivacyMethod) ([]byte, error)
	Execute(ctx context.Context, resourceID string, prepared []byte) ([]byte, error)
	Decrypt(ctx context.Context, result []byte, method PrivacyMethod) ([]byte, error)
}
