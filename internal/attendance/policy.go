package attendance

import (
	"fmt"
	"strings"

	"github.com/your-org/attend/internal/config"
)

// Policy is the confidence bar a call site requires before marking.
// A detection qualifies only when its recognition confidence strictly
// exceeds MinConfidence.
type Policy struct {
	Name          string
	MinConfidence float64
}

var (
	// RoutinePolicy is used for multi-face classroom frames.
	RoutinePolicy = Policy{Name: "routine", MinConfidence: 50}
	// StrictPolicy is used for single-shot marking.
	StrictPolicy = Policy{Name: "strict", MinConfidence: 85}
)

func (p Policy) Allows(confidence float64) bool {
	return confidence > p.MinConfidence
}

// Policies holds the configured named policies.
type Policies struct {
	Routine Policy
	Strict  Policy
}

// NewPolicies applies configured thresholds over the built-in defaults.
func NewPolicies(cfg config.PolicyConfig) Policies {
	p := Policies{Routine: RoutinePolicy, Strict: StrictPolicy}
	if cfg.Routine > 0 {
		p.Routine.MinConfidence = cfg.Routine
	}
	if cfg.Strict > 0 {
		p.Strict.MinConfidence = cfg.Strict
	}
	return p
}

// ByName resolves "routine" or "strict"; empty selects routine.
func (p Policies) ByName(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", p.Routine.Name:
		return p.Routine, nil
	case p.Strict.Name:
		return p.Strict, nil
	default:
		return Policy{}, fmt.Errorf("unknown policy %q", name)
	}
}

// PolicyByName resolves a built-in policy.
func PolicyByName(name string) (Policy, error) {
	return Policies{Routine: RoutinePolicy, Strict: StrictPolicy}.ByName(name)
}
