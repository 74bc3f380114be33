package domain_test

import (
	"testing"

	"github.com/tommyanhnguyen/house-price-pipeline/internal/domain"
)

func intp(n int) *int { return &n }

func TestGatePolicy_Evaluate(t *testing.T) {
	critical := domain.Finding{Severity: domain.SeverityCritical, Message: "CVE"}
	low := domain.Finding{Severity: domain.SeverityLow, Message: "style nit"}

	tests := []struct {
		name     string
		policy   domain.GatePolicy
		findings []domain.Finding
		want     bool
	}{
		{
			name:     "empty policy passes everything",
			findings: []domain.Finding{critical, critical, low},
			want:     true,
		},
		{
			name:     "count ceiling respected",
			policy:   domain.GatePolicy{MaxFindings: intp(2)},
			findings: []domain.Finding{low, low},
			want:     true,
		},
		{
			name:     "count ceiling exceeded",
			policy:   domain.GatePolicy{MaxFindings: intp(2)},
			findings: []domain.Finding{low, low, low},
			want:     false,
		},
		{
			name:     "zero tolerance for criticals",
			policy:   domain.GatePolicy{ForbidSeverities: []domain.Severity{domain.SeverityCritical}},
			findings: []domain.Finding{low, critical},
			want:     false,
		},
		{
			name:     "forbidden severity absent",
			policy:   domain.GatePolicy{ForbidSeverities: []domain.Severity{domain.SeverityCritical}},
			findings: []domain.Finding{low, low},
			want:     true,
		},
		{
			name:   "zero findings always pass",
			policy: domain.GatePolicy{MaxFindings: intp(0), ForbidSeverities: []domain.Severity{domain.SeverityCritical}},
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Evaluate(tt.findings); got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCountSeverities(t *testing.T) {
	counts := domain.CountSeverities([]domain.Finding{
		{Severity: domain.SeverityCritical},
		{Severity: domain.SeverityCritical},
		{Severity: domain.SeverityLow},
	})
	if counts[domain.SeverityCritical] != 2 {
		t.Errorf("critical count = %d, want 2", counts[domain.SeverityCritical])
	}
	if counts[domain.SeverityLow] != 1 {
		t.Errorf("low count = %d, want 1", counts[domain.SeverityLow])
	}
	if domain.CountSeverities(nil) != nil {
		t.Error("no findings must yield nil counts")
	}
}
