package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultProbeTimeout is the readiness budget for one environment.
	DefaultProbeTimeout = 90 * time.Second
	// DefaultProbeInterval is the liveness poll cadence.
	DefaultProbeInterval = time.Second

	defaultStagingEnvironment    = "staging"
	defaultProductionEnvironment = "production"
)

// RolloutConfig carries the per-pipeline settings the workflow needs.
// It is explicit configuration passed in at construction, not ambient
// process-wide state.
type RolloutConfig struct {
	StagingEnvironment    string
	ProductionEnvironment string
	ProbeTimeout          time.Duration
	ProbeInterval         time.Duration
}

// RolloutWorkflow sequences one release end to end: build, gates,
// staging promotion, staging readiness, production promotion,
// production readiness, commit-or-rollback. Each step with a side
// effect runs as a named activity so a durable engine can persist and
// replay the pipeline across orchestrator restarts.
//
// The rollback target is captured in the ledger strictly before the
// production deploy call. Recoverability therefore does not depend on
// the orchestrator surviving to write a post-hoc record.
type RolloutWorkflow struct {
	Builder    ArtifactBuilder
	Gates      []Gate
	Controller EnvironmentController
	Prober     HealthProber
	Ledger     ReleaseLedger
	Runs       RunRepository
	Config     RolloutConfig
	Now        func() time.Time
}

func (wf *RolloutWorkflow) Name() string { return "rollout-pipeline" }

// GateCheckInput identifies one gate invocation. Gates are addressed by
// position in the fixed, deterministic gate order so the input stays
// serializable for durable engines.
type GateCheckInput struct {
	GateIndex int         `json:"gate_index"`
	Artifact  ArtifactRef `json:"artifact"`
}

// DeployInput asks the environment controller for one promotion.
type DeployInput struct {
	Environment string      `json:"environment"`
	Artifact    ArtifactRef `json:"artifact"`
}

// DeployOutput reports a promotion attempt. Failure is part of the
// output, not an activity error, so the workflow's rollback policy
// survives the loss of typed errors across durable engine boundaries.
type DeployOutput struct {
	State  EnvironmentState `json:"state"`
	Failed bool             `json:"failed"`
	Reason string           `json:"reason,omitempty"`
}

// ProbeInput asks the health prober for one bounded readiness check.
type ProbeInput struct {
	Environment string        `json:"environment"`
	Timeout     time.Duration `json:"timeout"`
	Interval    time.Duration `json:"interval"`
}

// CandidateInput asks the ledger for the current production artifact.
type CandidateInput struct {
	Application string `json:"application"`
	Environment string `json:"environment"`
}

// CandidateOutput carries the captured rollback target, nil on a
// first-ever release.
type CandidateOutput struct {
	Prior *ArtifactRef `json:"prior,omitempty"`
}

// LedgerWrite is one append to the release ledger.
type LedgerWrite struct {
	Application string      `json:"application"`
	Environment string      `json:"environment"`
	Artifact    ArtifactRef `json:"artifact"`
}

// BuildArtifact invokes the artifact builder.
func (wf *RolloutWorkflow) BuildArtifact() Activity[RolloutRequest, ArtifactRef] {
	return NewActivity("build-artifact", func(ctx context.Context, req RolloutRequest) (ArtifactRef, error) {
		return wf.Builder.Build(ctx, BuildRequest{
			Application: req.Application,
			SourceRev:   req.SourceRev,
			Version:     req.Version,
		})
	})
}

// RunGate executes one gate against the artifact.
func (wf *RolloutWorkflow) RunGate() Activity[GateCheckInput, GateResult] {
	return NewActivity("run-gate", func(ctx context.Context, in GateCheckInput) (GateResult, error) {
		if in.GateIndex < 0 || in.GateIndex >= len(wf.Gates) {
			return GateResult{}, fmt.Errorf("%w: gate index %d out of range", ErrInvalidArgument, in.GateIndex)
		}
		return wf.Gates[in.GateIndex].Check(ctx, in.Artifact)
	})
}

// CaptureRollbackCandidate reads the environment's latest committed
// artifact and appends a candidate entry for it. On a first-ever
// release there is nothing to capture and the output's Prior is nil.
func (wf *RolloutWorkflow) CaptureRollbackCandidate() Activity[CandidateInput, CandidateOutput] {
	return NewActivity("record-rollback-candidate", func(ctx context.Context, in CandidateInput) (CandidateOutput, error) {
		prior, err := wf.Ledger.LatestCommitted(ctx, in.Application, in.Environment)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return CandidateOutput{}, nil
			}
			return CandidateOutput{}, fmt.Errorf("read rollback candidate: %w", err)
		}
		if err := wf.Ledger.RecordRollbackCandidate(ctx, in.Application, in.Environment, prior); err != nil {
			return CandidateOutput{}, fmt.Errorf("record rollback candidate: %w", err)
		}
		return CandidateOutput{Prior: &prior}, nil
	})
}

// DeployEnvironment promotes the artifact into the environment.
func (wf *RolloutWorkflow) DeployEnvironment() Activity[DeployInput, DeployOutput] {
	return NewActivity("deploy-to-environment", func(ctx context.Context, in DeployInput) (DeployOutput, error) {
		state, err := wf.Controller.Deploy(ctx, in.Environment, in.Artifact)
		if err != nil {
			return DeployOutput{Failed: true, Reason: err.Error()}, nil
		}
		return DeployOutput{State: state}, nil
	})
}

// ProbeEnvironment runs one bounded readiness check.
func (wf *RolloutWorkflow) ProbeEnvironment() Activity[ProbeInput, Health] {
	return NewActivity("probe-environment", func(ctx context.Context, in ProbeInput) (Health, error) {
		return wf.Prober.Probe(ctx, in.Environment, in.Timeout, in.Interval)
	})
}

// CommitRelease appends a committed ledger entry for the artifact.
func (wf *RolloutWorkflow) CommitRelease() Activity[LedgerWrite, struct{}] {
	return NewActivity("commit-release", func(ctx context.Context, in LedgerWrite) (struct{}, error) {
		return struct{}{}, wf.Ledger.Commit(ctx, in.Application, in.Environment, in.Artifact)
	})
}

// RecordRolledBack appends a rolled-back ledger entry for the artifact
// whose promotion was backed out.
func (wf *RolloutWorkflow) RecordRolledBack() Activity[LedgerWrite, struct{}] {
	return NewActivity("record-rolled-back", func(ctx context.Context, in LedgerWrite) (struct{}, error) {
		return struct{}{}, wf.Ledger.RecordRolledBack(ctx, in.Application, in.Environment, in.Artifact)
	})
}

// SaveRun persists a run state transition.
func (wf *RolloutWorkflow) SaveRun() Activity[Run, struct{}] {
	return NewActivity("save-run", func(ctx context.Context, run Run) (struct{}, error) {
		return struct{}{}, wf.Runs.Update(ctx, run)
	})
}

// FinalizeRun stamps the run's finish time and persists the terminal
// state.
func (wf *RolloutWorkflow) FinalizeRun() Activity[Run, Run] {
	return NewActivity("finalize-run", func(ctx context.Context, run Run) (Run, error) {
		finished := wf.now()
		run.FinishedAt = &finished
		if err := wf.Runs.Update(ctx, run); err != nil {
			return Run{}, err
		}
		return run, nil
	})
}

// Run executes the pipeline state machine. Terminal pipeline outcomes
// (Committed, RolledBack, Failed) are reported in the result, not as
// errors; Run only returns an error when the engine or a persistence
// activity fails.
func (wf *RolloutWorkflow) Run(runner DurableRunner, req RolloutRequest) (RolloutResult, error) {
	run := Run{ID: req.RunID, Application: req.Application, Status: RunStatusBuilding}

	artifact, err := RunActivity(runner, wf.BuildArtifact(), req)
	if err != nil {
		return wf.fail(runner, run, fmt.Sprintf("build: %v", err))
	}
	run.Artifact = artifact

	run.Status = RunStatusGating
	if err := wf.save(runner, run); err != nil {
		return RolloutResult{}, err
	}
	for i, gate := range wf.Gates {
		result, err := RunActivity(runner, wf.RunGate(), GateCheckInput{GateIndex: i, Artifact: artifact})
		if err != nil {
			return wf.fail(runner, run, fmt.Sprintf("gate %q: %v", gate.Name(), err))
		}
		run.GateResults = append(run.GateResults, result)
		if !result.Passed {
			// Remaining gates are skipped, not merely reported.
			return wf.fail(runner, run, (&GateFailure{Result: result}).Error())
		}
	}

	run.Status = RunStatusPromotingStaging
	if err := wf.save(runner, run); err != nil {
		return RolloutResult{}, err
	}
	stagingDeploy, err := RunActivity(runner, wf.DeployEnvironment(), DeployInput{Environment: wf.staging(), Artifact: artifact})
	if err != nil {
		return RolloutResult{}, err
	}
	if stagingDeploy.Failed {
		// Staging never carries user traffic; no rollback needed.
		run.StagingOutcome = PromotionDeployFailed
		return wf.fail(runner, run, "staging deploy: "+stagingDeploy.Reason)
	}

	run.Status = RunStatusAwaitingStagingHealth
	if err := wf.save(runner, run); err != nil {
		return RolloutResult{}, err
	}
	stagingHealth, err := RunActivity(runner, wf.ProbeEnvironment(), wf.probeInput(wf.staging()))
	if err != nil {
		return RolloutResult{}, err
	}
	if stagingHealth != HealthReady {
		run.StagingOutcome = PromotionNotReady
		timeout := &ReadinessTimeout{Environment: wf.staging(), Timeout: wf.probeTimeout()}
		return wf.fail(runner, run, timeout.Error())
	}
	run.StagingOutcome = PromotionReady

	run.Status = RunStatusPromotingProduction
	if err := wf.save(runner, run); err != nil {
		return RolloutResult{}, err
	}
	candidate, err := RunActivity(runner, wf.CaptureRollbackCandidate(), CandidateInput{Application: req.Application, Environment: wf.production()})
	if err != nil {
		return RolloutResult{}, err
	}
	productionDeploy, err := RunActivity(runner, wf.DeployEnvironment(), DeployInput{Environment: wf.production(), Artifact: artifact})
	if err != nil {
		return RolloutResult{}, err
	}

	if !productionDeploy.Failed {
		run.Status = RunStatusAwaitingProductionHealth
		if err := wf.save(runner, run); err != nil {
			return RolloutResult{}, err
		}
		productionHealth, err := RunActivity(runner, wf.ProbeEnvironment(), wf.probeInput(wf.production()))
		if err != nil {
			return RolloutResult{}, err
		}
		if productionHealth == HealthReady {
			if _, err := RunActivity(runner, wf.CommitRelease(), LedgerWrite{Application: req.Application, Environment: wf.production(), Artifact: artifact}); err != nil {
				return RolloutResult{}, err
			}
			run.ProductionOutcome = PromotionReady
			run.Status = RunStatusCommitted
			return wf.finish(runner, run)
		}
		run.ProductionOutcome = PromotionNotReady
	} else {
		run.ProductionOutcome = PromotionDeployFailed
	}

	// Production is unhealthy or in an indeterminate state: roll back
	// to the captured candidate if one exists.
	if candidate.Prior == nil {
		return wf.fail(runner, run, ErrRollbackExhausted.Error())
	}

	cause := "production deploy failed"
	if run.ProductionOutcome == PromotionNotReady {
		cause = (&ReadinessTimeout{Environment: wf.production(), Timeout: wf.probeTimeout()}).Error()
	}
	reason := fmt.Sprintf("%s; rolled back to %s", cause, candidate.Prior)
	rollbackDeploy, err := RunActivity(runner, wf.DeployEnvironment(), DeployInput{Environment: wf.production(), Artifact: *candidate.Prior})
	if err != nil {
		return RolloutResult{}, err
	}
	if rollbackDeploy.Failed {
		reason = fmt.Sprintf("%s; rollback to %s also failed: %s", cause, candidate.Prior, rollbackDeploy.Reason)
	} else {
		rollbackHealth, err := RunActivity(runner, wf.ProbeEnvironment(), wf.probeInput(wf.production()))
		if err != nil {
			return RolloutResult{}, err
		}
		if rollbackHealth != HealthReady {
			reason = fmt.Sprintf("%s; rolled back to %s but environment is still unhealthy", cause, candidate.Prior)
		}
	}
	if _, err := RunActivity(runner, wf.RecordRolledBack(), LedgerWrite{Application: req.Application, Environment: wf.production(), Artifact: artifact}); err != nil {
		return RolloutResult{}, err
	}

	// A successful rollback is "safely failed", never "succeeded".
	run.RollbackTarget = candidate.Prior
	run.Status = RunStatusRolledBack
	run.Reason = reason
	return wf.finish(runner, run)
}

func (wf *RolloutWorkflow) fail(runner DurableRunner, run Run, reason string) (RolloutResult, error) {
	run.Status = RunStatusFailed
	run.Reason = reason
	return wf.finish(runner, run)
}

func (wf *RolloutWorkflow) finish(runner DurableRunner, run Run) (RolloutResult, error) {
	final, err := RunActivity(runner, wf.FinalizeRun(), run)
	if err != nil {
		return RolloutResult{}, err
	}
	return RolloutResult{
		RunID:          final.ID,
		Status:         final.Status,
		Reason:         final.Reason,
		Artifact:       final.Artifact,
		RollbackTarget: final.RollbackTarget,
	}, nil
}

func (wf *RolloutWorkflow) save(runner DurableRunner, run Run) error {
	_, err := RunActivity(runner, wf.SaveRun(), run)
	return err
}

func (wf *RolloutWorkflow) probeInput(environment string) ProbeInput {
	return ProbeInput{
		Environment: environment,
		Timeout:     wf.probeTimeout(),
		Interval:    wf.probeInterval(),
	}
}

func (wf *RolloutWorkflow) staging() string {
	if wf.Config.StagingEnvironment != "" {
		return wf.Config.StagingEnvironment
	}
	return defaultStagingEnvironment
}

func (wf *RolloutWorkflow) production() string {
	if wf.Config.ProductionEnvironment != "" {
		return wf.Config.ProductionEnvironment
	}
	return defaultProductionEnvironment
}

func (wf *RolloutWorkflow) probeTimeout() time.Duration {
	if wf.Config.ProbeTimeout > 0 {
		return wf.Config.ProbeTimeout
	}
	return DefaultProbeTimeout
}

func (wf *RolloutWorkflow) probeInterval() time.Duration {
	if wf.Config.ProbeInterval > 0 {
		return wf.Config.ProbeInterval
	}
	return DefaultProbeInterval
}

func (wf *RolloutWorkflow) now() time.Time {
	if wf.Now != nil {
		return wf.Now()
	}
	return time.Now().UTC()
}
