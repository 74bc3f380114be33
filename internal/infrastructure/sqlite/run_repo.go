package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tommyanhnguyen/house-price-pipeline/internal/domain"
)

// RunRepo implements [domain.RunRepository] backed by SQLite.
type RunRepo struct {
	DB *sql.DB
}

func (r *RunRepo) Create(ctx context.Context, run domain.Run) error {
	gates, err := json.Marshal(run.GateResults)
	if err != nil {
		return fmt.Errorf("marshal gate results: %w", err)
	}

	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO rollout_runs (id, application, artifact_name, artifact_version, artifact_created_at,
		   gate_results, staging_outcome, production_outcome, status, reason,
		   rollback_name, rollback_version, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Application,
		nullIfEmpty(run.Artifact.Name), nullIfEmpty(run.Artifact.Version), nullTime(artifactCreated(run.Artifact)),
		string(gates), string(run.StagingOutcome), string(run.ProductionOutcome),
		string(run.Status), run.Reason,
		rollbackName(run.RollbackTarget), rollbackVersion(run.RollbackTarget),
		run.StartedAt.UTC().Format(time.RFC3339), nullTime(run.FinishedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("run %q: %w", run.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Update persists a run transition. The id, application, and start time
// are immutable once written; callers hand Update runs whose StartedAt
// may be zero without clobbering the recorded value.
func (r *RunRepo) Update(ctx context.Context, run domain.Run) error {
	gates, err := json.Marshal(run.GateResults)
	if err != nil {
		return fmt.Errorf("marshal gate results: %w", err)
	}

	res, err := r.DB.ExecContext(ctx,
		`UPDATE rollout_runs
		 SET artifact_name = ?, artifact_version = ?, artifact_created_at = ?,
		     gate_results = ?, staging_outcome = ?, production_outcome = ?,
		     status = ?, reason = ?, rollback_name = ?, rollback_version = ?, finished_at = ?
		 WHERE id = ?`,
		nullIfEmpty(run.Artifact.Name), nullIfEmpty(run.Artifact.Version), nullTime(artifactCreated(run.Artifact)),
		string(gates), string(run.StagingOutcome), string(run.ProductionOutcome),
		string(run.Status), run.Reason,
		rollbackName(run.RollbackTarget), rollbackVersion(run.RollbackTarget),
		nullTime(run.FinishedAt), run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("run %q: %w", run.ID, domain.ErrNotFound)
	}
	return nil
}

func (r *RunRepo) Get(ctx context.Context, id string) (domain.Run, error) {
	row := r.DB.QueryRowContext(ctx, runSelect+` WHERE id = ?`, id)
	return scanRun(row)
}

func (r *RunRepo) ListByApplication(ctx context.Context, application string, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.DB.QueryContext(ctx,
		runSelect+` WHERE application = ? ORDER BY started_at DESC, id DESC LIMIT ?`,
		application, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

const runSelect = `SELECT id, application, artifact_name, artifact_version, artifact_created_at,
  gate_results, staging_outcome, production_outcome, status, reason,
  rollback_name, rollback_version, started_at, finished_at
 FROM rollout_runs`

func scanRun(s scanner) (domain.Run, error) {
	var run domain.Run
	var artifactName, artifactVersion, artifactCreatedAt sql.NullString
	var gatesJSON, stagingOutcome, productionOutcome, statusStr, startedAtStr string
	var rollbackName, rollbackVersion, finishedAtStr sql.NullString

	err := s.Scan(&run.ID, &run.Application, &artifactName, &artifactVersion, &artifactCreatedAt,
		&gatesJSON, &stagingOutcome, &productionOutcome, &statusStr, &run.Reason,
		&rollbackName, &rollbackVersion, &startedAtStr, &finishedAtStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, fmt.Errorf("%w", domain.ErrNotFound)
		}
		return run, fmt.Errorf("scan run: %w", err)
	}

	run.StagingOutcome = domain.PromotionOutcome(stagingOutcome)
	run.ProductionOutcome = domain.PromotionOutcome(productionOutcome)
	run.Status = domain.RunStatus(statusStr)

	if artifactName.Valid {
		run.Artifact.Name = artifactName.String
		run.Artifact.Version = artifactVersion.String
		if artifactCreatedAt.Valid {
			if run.Artifact.CreatedAt, err = time.Parse(time.RFC3339, artifactCreatedAt.String); err != nil {
				return run, fmt.Errorf("parse artifact_created_at: %w", err)
			}
		}
	}
	if rollbackName.Valid {
		run.RollbackTarget = &domain.ArtifactRef{Name: rollbackName.String, Version: rollbackVersion.String}
	}
	if err := json.Unmarshal([]byte(gatesJSON), &run.GateResults); err != nil {
		return run, fmt.Errorf("unmarshal gate results: %w", err)
	}
	if run.StartedAt, err = time.Parse(time.RFC3339, startedAtStr); err != nil {
		return run, fmt.Errorf("parse started_at: %w", err)
	}
	if finishedAtStr.Valid {
		t, err := time.Parse(time.RFC3339, finishedAtStr.String)
		if err != nil {
			return run, fmt.Errorf("parse finished_at: %w", err)
		}
		run.FinishedAt = &t
	}
	return run, nil
}

func artifactCreated(a domain.ArtifactRef) *time.Time {
	if a.IsZero() {
		return nil
	}
	t := a.CreatedAt
	return &t
}

func rollbackName(a *domain.ArtifactRef) sql.NullString {
	if a == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: a.Name, Valid: true}
}

func rollbackVersion(a *domain.ArtifactRef) sql.NullString {
	if a == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: a.Version, Valid: true}
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}
