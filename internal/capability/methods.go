package capability

import (
	"fmt"
	"strings"

	"github.com/arnabghosh/compute-matcher/internal/domain"
)

// VerificationMethod selects how a provider's advertised capability is checked
type VerificationMethod int

const (
	VerifyBenchmark VerificationMethod = iota
	VerifyRedundant
	VerifyReputation
)

func (m VerificationMethod) String() string {
	switch m {
	case VerifyBenchmark:
		return "benchmark"
	case VerifyRedundant:
		return "redundant"
	case VerifyReputation:
		return "reputation"
	default:
		return fmt.Sprintf("verification(%d)", int(m))
	}
}

// ParseVerificationMethod parses a method name, case-insensitively
func ParseVerificationMethod(s string) (VerificationMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "benchmark":
		return VerifyBenchmark, nil
	case "redundant":
		return VerifyRedundant, nil
	case "reputation":
		return VerifyReputation, nil
	default:
		return 0, fmt.Errorf("%w: unknown verification method %q", domain.ErrInvalidInput, s)
	}
}

// PrivacyMethod is the protection applied to a job's data during execution
type PrivacyMethod int

const (
	PrivacyNone PrivacyMethod = iota
	PrivacyHomomorphic
	PrivacyMPC
	PrivacyZKP
	PrivacyTEE
)

func (m PrivacyMethod) String() string {
	switch m {
	case PrivacyNone:
		return "none"
	case PrivacyHomomorphic:
		return "homomorphic"
	case PrivacyMPC:
		return "mpc"
	case PrivacyZKP:
		return "zkp"
	case PrivacyTEE:
		return "tee"
	default:
		return fmt.Sprintf("privacy(%d)", int(m))
	}
}

// ParsePrivacyMethod parses a method name, case-insensitively
func ParsePrivacyMethod(s string) (PrivacyMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return PrivacyNone, nil
	case "homomorphic":
		return PrivacyHomomorphic, nil
	case "mpc":
		return PrivacyMPC, nil
	case "zkp":
		return PrivacyZKP, nil
	case "tee":
		return PrivacyTEE, nil
	default:
		return 0, fmt.Errorf("%w: unknown privacy method %q", domain.ErrInvalidInput, s)
	}
}
