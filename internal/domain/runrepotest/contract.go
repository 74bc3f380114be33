// Package runrepotest provides contract tests for
// [domain.RunRepository] implementations.
package runrepotest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tommyanhnguyen/house-price-pipeline/internal/domain"
)

// Factory creates a fresh [domain.RunRepository] for each test.
type Factory func(t *testing.T) domain.RunRepository

// Run exercises the [domain.RunRepository] contract.
func Run(t *testing.T, factory Factory) {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	sampleRun := func(id string) domain.Run {
		return domain.Run{
			ID:          id,
			Application: "house-price",
			Artifact:    domain.ArtifactRef{Name: "house-price", Version: "v5", CreatedAt: started},
			Status:      domain.RunStatusBuilding,
			StartedAt:   started,
		}
	}

	t.Run("CreateAndGet", func(t *testing.T) {
		repo := factory(t)
		ctx := context.Background()
		if err := repo.Create(ctx, sampleRun("r1")); err != nil {
			t.Fatalf("Create: %v", err)
		}
		got, err := repo.Get(ctx, "r1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Application != "house-price" {
			t.Errorf("Application = %q", got.Application)
		}
		if got.Status != domain.RunStatusBuilding {
			t.Errorf("Status = %q, want %q", got.Status, domain.RunStatusBuilding)
		}
		if !got.StartedAt.Equal(started) {
			t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
		}
	})

	t.Run("CreateDuplicate", func(t *testing.T) {
		repo := factory(t)
		ctx := context.Background()
		_ = repo.Create(ctx, sampleRun("r1"))
		err := repo.Create(ctx, sampleRun("r1"))
		if !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("second Create: got %v, want ErrAlreadyExists", err)
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		repo := factory(t)
		_, err := repo.Get(context.Background(), "nonexistent")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("Get: got %v, want ErrNotFound", err)
		}
	})

	t.Run("UpdateTransitions", func(t *testing.T) {
		repo := factory(t)
		ctx := context.Background()
		run := sampleRun("r1")
		_ = repo.Create(ctx, run)

		finished := started.Add(3 * time.Minute)
		run.Status = domain.RunStatusRolledBack
		run.Reason = "production readiness failed; rolled back to house-price@v4"
		run.StagingOutcome = domain.PromotionReady
		run.ProductionOutcome = domain.PromotionNotReady
		run.GateResults = []domain.GateResult{{GateName: "tests", Passed: true}}
		run.RollbackTarget = &domain.ArtifactRef{Name: "house-price", Version: "v4"}
		run.FinishedAt = &finished
		if err := repo.Update(ctx, run); err != nil {
			t.Fatalf("Update: %v", err)
		}

		got, err := repo.Get(ctx, "r1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Status != domain.RunStatusRolledBack {
			t.Errorf("Status = %q, want %q", got.Status, domain.RunStatusRolledBack)
		}
		if got.RollbackTarget == nil || got.RollbackTarget.Version != "v4" {
			t.Errorf("RollbackTarget = %v, want v4", got.RollbackTarget)
		}
		if len(got.GateResults) != 1 || got.GateResults[0].GateName != "tests" {
			t.Errorf("GateResults = %v", got.GateResults)
		}
		if got.FinishedAt == nil || !got.FinishedAt.Equal(finished) {
			t.Errorf("FinishedAt = %v, want %v", got.FinishedAt, finished)
		}
	})

	t.Run("UpdateNotFound", func(t *testing.T) {
		repo := factory(t)
		err := repo.Update(context.Background(), sampleRun("nonexistent"))
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("Update: got %v, want ErrNotFound", err)
		}
	})

	t.Run("ListByApplicationNewestFirst", func(t *testing.T) {
		repo := factory(t)
		ctx := context.Background()
		first := sampleRun("r1")
		second := sampleRun("r2")
		second.StartedAt = started.Add(time.Hour)
		other := sampleRun("r3")
		other.Application = "other-app"
		_ = repo.Create(ctx, first)
		_ = repo.Create(ctx, second)
		_ = repo.Create(ctx, other)

		got, err := repo.ListByApplication(ctx, "house-price", 10)
		if err != nil {
			t.Fatalf("ListByApplication: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("ListByApplication: got %d runs, want 2", len(got))
		}
		if got[0].ID != "r2" {
			t.Errorf("got[0].ID = %q, want the newest run first", got[0].ID)
		}
	})

	t.Run("ListLimit", func(t *testing.T) {
		repo := factory(t)
		ctx := context.Background()
		for i, id := range []string{"r1", "r2", "r3"} {
			run := sampleRun(id)
			run.StartedAt = started.Add(time.Duration(i) * time.Minute)
			_ = repo.Create(ctx, run)
		}
		got, err := repo.ListByApplication(ctx, "house-price", 2)
		if err != nil {
			t.Fatalf("ListByApplication: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("got %d runs, want 2", len(got))
		}
	})
}
