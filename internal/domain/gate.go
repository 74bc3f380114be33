package domain

import "context"

// Severity classifies one gate finding.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Finding is one structured message produced by a gate.
type Finding struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// GateResult is the outcome of one quality, security, or test gate.
// A result with Passed=false halts the pipeline before any deployment
// step runs. Results are created once per gate per run and never
// mutated afterwards.
type GateResult struct {
	GateName       string           `json:"gate_name"`
	Passed         bool             `json:"passed"`
	Findings       []Finding        `json:"findings,omitempty"`
	SeverityCounts map[Severity]int `json:"severity_counts,omitempty"`
}

// GatePolicy decides pass/fail from a gate's findings. Thresholds are
// configuration, not code: a nil MaxFindings means no count ceiling,
// an empty ForbidSeverities means no severity class is zero-tolerance.
type GatePolicy struct {
	MaxFindings      *int       `json:"max_findings,omitempty" yaml:"max_findings,omitempty"`
	ForbidSeverities []Severity `json:"forbid_severities,omitempty" yaml:"forbid_severities,omitempty"`
}

// Evaluate applies the policy to the given findings.
func (p GatePolicy) Evaluate(findings []Finding) bool {
	if p.MaxFindings != nil && len(findings) > *p.MaxFindings {
		return false
	}
	if len(p.ForbidSeverities) > 0 {
		forbidden := make(map[Severity]struct{}, len(p.ForbidSeverities))
		for _, s := range p.ForbidSeverities {
			forbidden[s] = struct{}{}
		}
		for _, f := range findings {
			if _, ok := forbidden[f.Severity]; ok {
				return false
			}
		}
	}
	return true
}

// CountSeverities tallies findings by severity level.
func CountSeverities(findings []Finding) map[Severity]int {
	if len(findings) == 0 {
		return nil
	}
	counts := make(map[Severity]int)
	for _, f := range findings {
		counts[f.Severity]++
	}
	return counts
}

// Gate is an automated pass/fail check applied to an artifact before
// any deployment step runs. Check returns an error only when the gate
// could not be executed at all; a policy violation is a GateResult
// with Passed=false, not an error.
type Gate interface {
	Name() string
	Check(ctx context.Context, artifact ArtifactRef) (GateResult, error)
}
