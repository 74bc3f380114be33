// Package ledgertest provides contract tests for
// [domain.ReleaseLedger] implementations.
package ledgertest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tommyanhnguyen/house-price-pipeline/internal/domain"
)

// Factory creates a fresh [domain.ReleaseLedger] for each test.
type Factory func(t *testing.T) domain.ReleaseLedger

func ref(version string) domain.ArtifactRef {
	return domain.ArtifactRef{
		Name:      "house-price",
		Version:   version,
		CreatedAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

// Run exercises the [domain.ReleaseLedger] contract.
func Run(t *testing.T, factory Factory) {
	t.Run("LatestCommittedEmpty", func(t *testing.T) {
		ledger := factory(t)
		_, err := ledger.LatestCommitted(context.Background(), "app", "production")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("LatestCommitted on empty ledger: got %v, want ErrNotFound", err)
		}
	})

	t.Run("CommitThenLatest", func(t *testing.T) {
		ledger := factory(t)
		ctx := context.Background()
		if err := ledger.Commit(ctx, "app", "production", ref("v1")); err != nil {
			t.Fatalf("Commit: %v", err)
		}
		if err := ledger.Commit(ctx, "app", "production", ref("v2")); err != nil {
			t.Fatalf("Commit: %v", err)
		}
		got, err := ledger.LatestCommitted(ctx, "app", "production")
		if err != nil {
			t.Fatalf("LatestCommitted: %v", err)
		}
		if got.Version != "v2" {
			t.Errorf("LatestCommitted = %q, want v2", got.Version)
		}
	})

	t.Run("LatestCommittedSkipsCandidatesAndRollbacks", func(t *testing.T) {
		ledger := factory(t)
		ctx := context.Background()
		if err := ledger.Commit(ctx, "app", "production", ref("v1")); err != nil {
			t.Fatalf("Commit: %v", err)
		}
		if err := ledger.RecordRollbackCandidate(ctx, "app", "production", ref("v1")); err != nil {
			t.Fatalf("RecordRollbackCandidate: %v", err)
		}
		if err := ledger.RecordRolledBack(ctx, "app", "production", ref("v2")); err != nil {
			t.Fatalf("RecordRolledBack: %v", err)
		}
		got, err := ledger.LatestCommitted(ctx, "app", "production")
		if err != nil {
			t.Fatalf("LatestCommitted: %v", err)
		}
		if got.Version != "v1" {
			t.Errorf("LatestCommitted = %q, want v1 (v2 was rolled back, never committed)", got.Version)
		}
	})

	t.Run("EnvironmentsAreIndependent", func(t *testing.T) {
		ledger := factory(t)
		ctx := context.Background()
		if err := ledger.Commit(ctx, "app", "staging", ref("v3")); err != nil {
			t.Fatalf("Commit: %v", err)
		}
		_, err := ledger.LatestCommitted(ctx, "app", "production")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("staging commit must not leak into production: got %v, want ErrNotFound", err)
		}
	})

	t.Run("ApplicationsAreIndependent", func(t *testing.T) {
		ledger := factory(t)
		ctx := context.Background()
		if err := ledger.Commit(ctx, "other-app", "production", ref("v9")); err != nil {
			t.Fatalf("Commit: %v", err)
		}
		_, err := ledger.LatestCommitted(ctx, "app", "production")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("foreign application commit must not be visible: got %v, want ErrNotFound", err)
		}
	})

	t.Run("HistoryNewestFirst", func(t *testing.T) {
		ledger := factory(t)
		ctx := context.Background()
		if err := ledger.Commit(ctx, "app", "production", ref("v1")); err != nil {
			t.Fatalf("Commit: %v", err)
		}
		if err := ledger.RecordRollbackCandidate(ctx, "app", "production", ref("v1")); err != nil {
			t.Fatalf("RecordRollbackCandidate: %v", err)
		}
		if err := ledger.RecordRolledBack(ctx, "app", "production", ref("v2")); err != nil {
			t.Fatalf("RecordRolledBack: %v", err)
		}
		entries, err := ledger.History(ctx, "app", "production", 10)
		if err != nil {
			t.Fatalf("History: %v", err)
		}
		if len(entries) != 3 {
			t.Fatalf("History: got %d entries, want 3", len(entries))
		}
		if entries[0].Outcome != domain.OutcomeRolledBack {
			t.Errorf("entries[0].Outcome = %q, want most recent first", entries[0].Outcome)
		}
		if entries[2].Outcome != domain.OutcomeCommitted {
			t.Errorf("entries[2].Outcome = %q, want oldest last", entries[2].Outcome)
		}
	})

	t.Run("HistoryLimit", func(t *testing.T) {
		ledger := factory(t)
		ctx := context.Background()
		for _, v := range []string{"v1", "v2", "v3"} {
			if err := ledger.Commit(ctx, "app", "production", ref(v)); err != nil {
				t.Fatalf("Commit: %v", err)
			}
		}
		entries, err := ledger.History(ctx, "app", "production", 2)
		if err != nil {
			t.Fatalf("History: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("History with limit 2: got %d entries", len(entries))
		}
		if entries[0].Artifact.Version != "v3" {
			t.Errorf("entries[0] = %q, want v3", entries[0].Artifact.Version)
		}
	})
}
