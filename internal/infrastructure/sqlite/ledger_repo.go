package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tommyanhnguyen/house-price-pipeline/internal/domain"
)

// LedgerRepo implements [domain.ReleaseLedger] backed by SQLite. The
// table is append-only; SQLite serializes writers, which preserves the
// ordering [domain.ReleaseLedger.LatestCommitted] relies on.
type LedgerRepo struct {
	DB  *sql.DB
	Now func() time.Time
}

func (r *LedgerRepo) RecordRollbackCandidate(ctx context.Context, application, environment string, artifact domain.ArtifactRef) error {
	return r.append(ctx, application, environment, artifact, domain.OutcomeCandidate)
}

func (r *LedgerRepo) Commit(ctx context.Context, application, environment string, artifact domain.ArtifactRef) error {
	return r.append(ctx, application, environment, artifact, domain.OutcomeCommitted)
}

func (r *LedgerRepo) RecordRolledBack(ctx context.Context, application, environment string, artifact domain.ArtifactRef) error {
	return r.append(ctx, application, environment, artifact, domain.OutcomeRolledBack)
}

func (r *LedgerRepo) append(ctx context.Context, application, environment string, artifact domain.ArtifactRef, outcome domain.Outcome) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO release_ledger (application, environment, artifact_name, artifact_version, artifact_created_at, promoted_at, outcome)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		application, environment,
		artifact.Name, artifact.Version, artifact.CreatedAt.UTC().Format(time.RFC3339),
		r.now().UTC().Format(time.RFC3339), string(outcome),
	)
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

func (r *LedgerRepo) LatestCommitted(ctx context.Context, application, environment string) (domain.ArtifactRef, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT artifact_name, artifact_version, artifact_created_at
		 FROM release_ledger
		 WHERE application = ? AND environment = ? AND outcome = ?
		 ORDER BY id DESC LIMIT 1`,
		application, environment, string(domain.OutcomeCommitted),
	)
	var name, version, createdAtStr string
	if err := row.Scan(&name, &version, &createdAtStr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ArtifactRef{}, fmt.Errorf("latest committed for %s/%s: %w", application, environment, domain.ErrNotFound)
		}
		return domain.ArtifactRef{}, fmt.Errorf("scan ledger entry: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return domain.ArtifactRef{}, fmt.Errorf("parse artifact_created_at: %w", err)
	}
	return domain.ArtifactRef{Name: name, Version: version, CreatedAt: createdAt}, nil
}

func (r *LedgerRepo) History(ctx context.Context, application, environment string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT application, environment, artifact_name, artifact_version, artifact_created_at, promoted_at, outcome
		 FROM release_ledger
		 WHERE application = ? AND environment = ?
		 ORDER BY id DESC LIMIT ?`,
		application, environment, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var createdAtStr, promotedAtStr, outcomeStr string
		if err := rows.Scan(&e.Application, &e.Environment, &e.Artifact.Name, &e.Artifact.Version, &createdAtStr, &promotedAtStr, &outcomeStr); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		if e.Artifact.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
			return nil, fmt.Errorf("parse artifact_created_at: %w", err)
		}
		if e.PromotedAt, err = time.Parse(time.RFC3339, promotedAtStr); err != nil {
			return nil, fmt.Errorf("parse promoted_at: %w", err)
		}
		e.Outcome = domain.Outcome(outcomeStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *LedgerRepo) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
