package dbosworkflows_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tommyanhnguyen/house-price-pipeline/internal/application"
	"github.com/tommyanhnguyen/house-price-pipeline/internal/domain"
	"github.com/tommyanhnguyen/house-price-pipeline/internal/infrastructure/dbosworkflows"
	"github.com/tommyanhnguyen/house-price-pipeline/internal/infrastructure/sqlite"
)

func startPostgres(t *testing.T) string {
	t.Helper()

	// Ryuk (the reaper) requires a Docker bridge network that does not
	// exist on Podman. We handle cleanup via t.Cleanup instead.
	t.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("rollout_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get postgres connection string: %v", err)
	}
	return connStr
}

type stubBuilder struct{}

func (stubBuilder) Build(_ context.Context, req domain.BuildRequest) (domain.ArtifactRef, error) {
	return domain.ArtifactRef{
		Name:      req.Application,
		Version:   req.Version,
		CreatedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}, nil
}

type passingGate struct{ name string }

func (g passingGate) Name() string { return g.name }
func (g passingGate) Check(_ context.Context, _ domain.ArtifactRef) (domain.GateResult, error) {
	return domain.GateResult{GateName: g.name, Passed: true}, nil
}

type memController struct {
	mu      sync.Mutex
	current map[string]domain.ArtifactRef
}

func (c *memController) Deploy(_ context.Context, environment string, artifact domain.ArtifactRef) (domain.EnvironmentState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		c.current = make(map[string]domain.ArtifactRef)
	}
	c.current[environment] = artifact
	return domain.EnvironmentState{Environment: environment, CurrentArtifact: &artifact}, nil
}

func (c *memController) CurrentArtifact(_ context.Context, environment string) (domain.ArtifactRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	artifact, ok := c.current[environment]
	if !ok {
		return domain.ArtifactRef{}, domain.ErrNotFound
	}
	return artifact, nil
}

type readyProber struct{}

func (readyProber) Probe(_ context.Context, _ string, _, _ time.Duration) (domain.Health, error) {
	return domain.HealthReady, nil
}

func TestRollout_DBOS(t *testing.T) {
	connStr := startPostgres(t)

	ctx := context.Background()

	dbosCtx, err := dbos.NewDBOSContext(ctx, dbos.Config{
		AppName:     "rollout-dbos-test",
		DatabaseURL: connStr,
	})
	if err != nil {
		t.Fatalf("NewDBOSContext: %v", err)
	}

	db := sqlite.OpenTestDB(t)
	runRepo := &sqlite.RunRepo{DB: db}
	ledger := &sqlite.LedgerRepo{DB: db}
	controller := &memController{}

	wf := &domain.RolloutWorkflow{
		Builder:    stubBuilder{},
		Gates:      []domain.Gate{passingGate{name: "tests"}},
		Controller: controller,
		Prober:     readyProber{},
		Ledger:     ledger,
		Runs:       runRepo,
		Config: domain.RolloutConfig{
			ProbeTimeout:  time.Second,
			ProbeInterval: 10 * time.Millisecond,
		},
	}

	engine := &dbosworkflows.Engine{DBOSCtx: dbosCtx}
	runner, err := engine.RolloutRunner(wf)
	if err != nil {
		t.Fatalf("RolloutRunner: %v", err)
	}

	if err := dbos.Launch(dbosCtx); err != nil {
		t.Fatalf("dbos.Launch: %v", err)
	}
	t.Cleanup(func() { dbos.Shutdown(dbosCtx, 5*time.Second) })

	service := &application.RolloutService{
		Runs:          runRepo,
		Orchestration: &application.OrchestrationService{Workflow: runner},
	}

	result, err := service.Release(ctx, application.ReleaseInput{
		Application: "house-price",
		SourceRev:   "abc123",
		Version:     "v1",
	})
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if result.Status != domain.RunStatusCommitted {
		t.Fatalf("Status = %q, want committed (reason %q)", result.Status, result.Reason)
	}

	current, err := controller.CurrentArtifact(ctx, "production")
	if err != nil {
		t.Fatalf("CurrentArtifact: %v", err)
	}
	if current.Version != "v1" {
		t.Errorf("production runs %q, want v1", current.Version)
	}

	latest, err := ledger.LatestCommitted(ctx, "house-price", "production")
	if err != nil {
		t.Fatalf("LatestCommitted: %v", err)
	}
	if latest.Version != "v1" {
		t.Errorf("latest committed = %q, want v1", latest.Version)
	}
}
