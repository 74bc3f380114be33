package execgate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tommyanhnguyen/house-price-pipeline/internal/domain"
	"github.com/tommyanhnguyen/house-price-pipeline/internal/infrastructure/execgate"
)

var artifact = domain.ArtifactRef{Name: "house-price", Version: "v3"}

func TestCheck_PassesWithNoFindings(t *testing.T) {
	gate := &execgate.Gate{
		GateName: "tests",
		Command:  []string{"true"},
	}

	result, err := gate.Check(context.Background(), artifact)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !result.Passed {
		t.Errorf("Passed = false, want true")
	}
	if len(result.Findings) != 0 {
		t.Errorf("Findings = %v, want none", result.Findings)
	}
}

func TestCheck_ParsesFindingsAndAppliesPolicy(t *testing.T) {
	gate := &execgate.Gate{
		GateName: "security",
		Command: []string{"sh", "-c",
			`echo '{"severity":"critical","message":"CVE-2026-1234"}'; echo '{"severity":"low","message":"style nit"}'`},
		Policy: domain.GatePolicy{ForbidSeverities: []domain.Severity{domain.SeverityCritical}},
	}

	result, err := gate.Check(context.Background(), artifact)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if result.Passed {
		t.Error("Passed = true, want false for critical finding")
	}
	if len(result.Findings) != 2 {
		t.Fatalf("Findings len = %d, want 2", len(result.Findings))
	}
	if result.SeverityCounts[domain.SeverityCritical] != 1 {
		t.Errorf("critical count = %d, want 1", result.SeverityCounts[domain.SeverityCritical])
	}
}

func TestCheck_FindingsUnderThresholdPass(t *testing.T) {
	three := 3
	gate := &execgate.Gate{
		GateName: "quality",
		Command: []string{"sh", "-c",
			`echo '{"severity":"medium","message":"long function"}'`},
		Policy: domain.GatePolicy{MaxFindings: &three},
	}

	result, err := gate.Check(context.Background(), artifact)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !result.Passed {
		t.Error("Passed = false, want true under threshold")
	}
}

func TestCheck_NonZeroExitWithoutFindings(t *testing.T) {
	gate := &execgate.Gate{
		GateName: "tests",
		Command:  []string{"sh", "-c", "echo 'segfault in test binary' >&2; exit 2"},
	}

	result, err := gate.Check(context.Background(), artifact)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if result.Passed {
		t.Error("Passed = true, want false for crashed gate")
	}
	if len(result.Findings) != 1 || result.Findings[0].Severity != domain.SeverityCritical {
		t.Fatalf("Findings = %+v, want one critical", result.Findings)
	}
	if result.Findings[0].Message != "segfault in test binary" {
		t.Errorf("Message = %q, want stderr content", result.Findings[0].Message)
	}
}

func TestCheck_NonZeroExitFailsDespiteLenientPolicy(t *testing.T) {
	ten := 10
	gate := &execgate.Gate{
		GateName: "tests",
		Command: []string{"sh", "-c",
			`echo '{"severity":"low","message":"flaky case"}'; echo 'unit tests failed' >&2; exit 1`},
		Policy: domain.GatePolicy{MaxFindings: &ten},
	}

	result, err := gate.Check(context.Background(), artifact)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if result.Passed {
		t.Error("Passed = true, want false when the command exits non-zero")
	}
	if len(result.Findings) != 1 || result.Findings[0].Message != "flaky case" {
		t.Fatalf("Findings = %+v, want the command's own finding", result.Findings)
	}
}

func TestCheck_ArtifactEnvironment(t *testing.T) {
	gate := &execgate.Gate{
		GateName: "tests",
		Command: []string{"sh", "-c",
			`test "$ARTIFACT_NAME" = house-price && test "$ARTIFACT_VERSION" = v3`},
	}

	result, err := gate.Check(context.Background(), artifact)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !result.Passed {
		t.Error("gate did not see artifact environment variables")
	}
}

func TestCheck_Timeout(t *testing.T) {
	gate := &execgate.Gate{
		GateName: "tests",
		Command:  []string{"sleep", "10"},
		Timeout:  50 * time.Millisecond,
	}

	_, err := gate.Check(context.Background(), artifact)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Check err = %v, want DeadlineExceeded", err)
	}
}

func TestCheck_MalformedOutput(t *testing.T) {
	gate := &execgate.Gate{
		GateName: "quality",
		Command:  []string{"sh", "-c", "echo 'not json'"},
	}

	if _, err := gate.Check(context.Background(), artifact); err == nil {
		t.Error("Check accepted malformed output, want error")
	}
}
