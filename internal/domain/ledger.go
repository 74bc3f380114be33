package domain

import (
	"context"
	"time"
)

// Outcome records what a ledger entry represents.
type Outcome string

const (
	// OutcomeCandidate marks the pre-deploy capture of the artifact
	// that production was running before a promotion. It is written
	// strictly before the risky deploy so that a crash mid-deploy
	// still leaves a recoverable record of what was live.
	OutcomeCandidate Outcome = "candidate"

	// OutcomeCommitted marks an artifact confirmed healthy in its
	// environment. Only committed entries are rollback targets.
	OutcomeCommitted Outcome = "committed"

	// OutcomeRolledBack marks an artifact whose promotion failed and
	// was backed out. Rolled-back entries are never rollback targets
	// unless the same artifact was later re-committed.
	OutcomeRolledBack Outcome = "rolled_back"
)

// LedgerEntry is one durable, append-only record of a promotion event
// for an (application, environment) pair.
type LedgerEntry struct {
	Application string      `json:"application"`
	Environment string      `json:"environment"`
	Artifact    ArtifactRef `json:"artifact"`
	PromotedAt  time.Time   `json:"promoted_at"`
	Outcome     Outcome     `json:"outcome"`
}

// ReleaseLedger is the single source of truth for rollback. Entries
// are append-only and must survive orchestrator restarts; appends must
// be atomic so the ordering LatestCommitted relies on is preserved.
type ReleaseLedger interface {
	// RecordRollbackCandidate appends a candidate entry capturing the
	// artifact currently live in the environment.
	RecordRollbackCandidate(ctx context.Context, application, environment string, artifact ArtifactRef) error

	// Commit appends a committed entry for the artifact.
	Commit(ctx context.Context, application, environment string, artifact ArtifactRef) error

	// RecordRolledBack appends a rolled-back entry for the artifact
	// whose promotion was backed out.
	RecordRolledBack(ctx context.Context, application, environment string, artifact ArtifactRef) error

	// LatestCommitted scans backward for the most recent committed
	// entry, skipping candidates and rolled-back entries. It returns
	// ErrNotFound when the environment has never had a committed
	// release.
	LatestCommitted(ctx context.Context, application, environment string) (ArtifactRef, error)

	// History returns the most recent entries, newest first.
	History(ctx context.Context, application, environment string, limit int) ([]LedgerEntry, error)
}
