// Package execgate runs release gates as external commands. A gate
// command receives the artifact identity through environment variables
// and reports findings as JSON lines on stdout; the configured policy
// turns its findings into a verdict.
package execgate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/tommyanhnguyen/house-price-pipeline/internal/domain"
)

// DefaultTimeout bounds one gate command when no per-gate timeout is
// configured.
const DefaultTimeout = 10 * time.Minute

// Gate implements [domain.Gate] by running a command. The command sees
// ARTIFACT_NAME and ARTIFACT_VERSION in its environment and writes
// zero or more findings to stdout, one JSON object per line:
//
//	{"severity":"high","message":"CVE-2026-1234 in libfoo"}
//
// Exit code zero with findings is legal; the policy decides the
// verdict. A non-zero exit always fails the gate regardless of policy,
// and one that produced no findings is reported as a single critical
// finding so the failure is never silent.
type Gate struct {
	GateName string
	Command  []string
	Policy   domain.GatePolicy
	Timeout  time.Duration
	Log      *slog.Logger
}

func (g *Gate) Name() string { return g.GateName }

func (g *Gate) Check(ctx context.Context, artifact domain.ArtifactRef) (domain.GateResult, error) {
	if len(g.Command) == 0 {
		return domain.GateResult{}, fmt.Errorf("%w: gate %q has no command", domain.ErrInvalidArgument, g.GateName)
	}

	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, g.Command[0], g.Command[1:]...)
	cmd.Env = append(os.Environ(),
		"ARTIFACT_NAME="+artifact.Name,
		"ARTIFACT_VERSION="+artifact.Version,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return domain.GateResult{}, fmt.Errorf("gate %q: %w", g.GateName, ctx.Err())
	}

	findings, err := parseFindings(&stdout)
	if err != nil {
		return domain.GateResult{}, fmt.Errorf("gate %q output: %w", g.GateName, err)
	}

	if runErr != nil && len(findings) == 0 {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = runErr.Error()
		}
		findings = []domain.Finding{{Severity: domain.SeverityCritical, Message: msg}}
	}

	// A command that exited non-zero never passes; the policy only
	// grades findings from a command that ran to completion.
	passed := runErr == nil && g.Policy.Evaluate(findings)

	result := domain.GateResult{
		GateName:       g.GateName,
		Passed:         passed,
		Findings:       findings,
		SeverityCounts: domain.CountSeverities(findings),
	}
	g.log().Info("gate checked",
		"gate", g.GateName,
		"artifact", artifact.String(),
		"passed", result.Passed,
		"findings", len(findings))
	return result, nil
}

func parseFindings(r *bytes.Buffer) ([]domain.Finding, error) {
	var findings []domain.Finding
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var f domain.Finding
		if err := json.Unmarshal([]byte(line), &f); err != nil {
			return nil, fmt.Errorf("parse finding %q: %w", line, err)
		}
		findings = append(findings, f)
	}
	return findings, scanner.Err()
}

func (g *Gate) log() *slog.Logger {
	if g.Log != nil {
		return g.Log
	}
	return slog.Default()
}
