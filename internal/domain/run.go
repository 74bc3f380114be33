package domain

import (
	"context"
	"time"
)

// RunStatus names one state of the rollout pipeline. A run walks the
// states in order and finishes in exactly one of the terminal states.
type RunStatus string

const (
	RunStatusBuilding                 RunStatus = "building"
	RunStatusGating                   RunStatus = "gating"
	RunStatusPromotingStaging         RunStatus = "promoting_staging"
	RunStatusAwaitingStagingHealth    RunStatus = "awaiting_staging_health"
	RunStatusPromotingProduction      RunStatus = "promoting_production"
	RunStatusAwaitingProductionHealth RunStatus = "awaiting_production_health"
	RunStatusCommitted                RunStatus = "committed"
	RunStatusRolledBack               RunStatus = "rolled_back"
	RunStatusFailed                   RunStatus = "failed"
)

// IsTerminal reports whether the status ends a run.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCommitted || s == RunStatusRolledBack || s == RunStatusFailed
}

// PromotionOutcome records how a promotion into one environment ended.
type PromotionOutcome string

const (
	PromotionPending      PromotionOutcome = ""
	PromotionReady        PromotionOutcome = "ready"
	PromotionNotReady     PromotionOutcome = "not_ready"
	PromotionDeployFailed PromotionOutcome = "deploy_failed"
)

// Run is one end-to-end rollout execution, created at pipeline start,
// finalized at a terminal state, and retained for audit.
type Run struct {
	ID                string           `json:"id"`
	Application       string           `json:"application"`
	Artifact          ArtifactRef      `json:"artifact"`
	GateResults       []GateResult     `json:"gate_results,omitempty"`
	StagingOutcome    PromotionOutcome `json:"staging_outcome,omitempty"`
	ProductionOutcome PromotionOutcome `json:"production_outcome,omitempty"`
	Status            RunStatus        `json:"status"`
	Reason            string           `json:"reason,omitempty"`
	RollbackTarget    *ArtifactRef     `json:"rollback_target,omitempty"`
	StartedAt         time.Time        `json:"started_at"`
	FinishedAt        *time.Time       `json:"finished_at,omitempty"`
}

// RunRepository persists rollout runs for audit.
type RunRepository interface {
	Create(ctx context.Context, run Run) error
	Update(ctx context.Context, run Run) error
	Get(ctx context.Context, id string) (Run, error)
	// ListByApplication returns recent runs for one application,
	// newest first.
	ListByApplication(ctx context.Context, application string, limit int) ([]Run, error)
}
