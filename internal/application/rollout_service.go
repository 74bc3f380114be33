package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tommyanhnguyen/house-price-pipeline/internal/domain"
	"github.com/tommyanhnguyen/house-price-pipeline/internal/metrics"
)

// ReleaseInput is the caller-provided input for starting a rollout.
type ReleaseInput struct {
	Application string
	SourceRev   string
	Version     string
}

// RolloutService manages rollout runs: it creates the audit record,
// hands execution to the orchestration workflow, and serializes runs
// per application so two releases of the same application never
// interleave.
type RolloutService struct {
	Runs          domain.RunRepository
	Orchestration *OrchestrationService
	Log           *slog.Logger
	Metrics       *metrics.Metrics
	Now           func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Release runs one rollout end to end and returns the terminal result.
// Concurrent calls for the same application queue behind each other;
// different applications proceed in parallel.
func (s *RolloutService) Release(ctx context.Context, in ReleaseInput) (domain.RolloutResult, error) {
	if in.Application == "" {
		return domain.RolloutResult{}, fmt.Errorf("%w: application is required", domain.ErrInvalidArgument)
	}
	if in.Version == "" {
		return domain.RolloutResult{}, fmt.Errorf("%w: version is required", domain.ErrInvalidArgument)
	}

	lock := s.appLock(in.Application)
	lock.Lock()
	defer lock.Unlock()

	started := s.now()
	run := domain.Run{
		ID:          uuid.NewString(),
		Application: in.Application,
		Status:      domain.RunStatusBuilding,
		StartedAt:   started,
	}
	if err := s.Runs.Create(ctx, run); err != nil {
		return domain.RolloutResult{}, fmt.Errorf("create run: %w", err)
	}

	s.log().Info("rollout started",
		"run_id", run.ID,
		"application", in.Application,
		"version", in.Version,
		"source_rev", in.SourceRev)

	result, err := s.Orchestration.Orchestrate(ctx, domain.RolloutRequest{
		RunID:       run.ID,
		Application: in.Application,
		SourceRev:   in.SourceRev,
		Version:     in.Version,
	})
	if err != nil {
		s.log().Error("rollout aborted", "run_id", run.ID, "error", err)
		return domain.RolloutResult{}, err
	}

	s.observe(ctx, in.Application, result, s.now().Sub(started))
	s.log().Info("rollout finished",
		"run_id", result.RunID,
		"status", string(result.Status),
		"reason", result.Reason)
	return result, nil
}

// GetRun retrieves one run by ID.
func (s *RolloutService) GetRun(ctx context.Context, id string) (domain.Run, error) {
	return s.Runs.Get(ctx, id)
}

// History returns recent runs for an application, newest first.
func (s *RolloutService) History(ctx context.Context, application string, limit int) ([]domain.Run, error) {
	if application == "" {
		return nil, fmt.Errorf("%w: application is required", domain.ErrInvalidArgument)
	}
	return s.Runs.ListByApplication(ctx, application, limit)
}

func (s *RolloutService) observe(ctx context.Context, application string, result domain.RolloutResult, elapsed time.Duration) {
	if s.Metrics == nil {
		return
	}
	if run, err := s.Runs.Get(ctx, result.RunID); err == nil {
		for _, gr := range run.GateResults {
			s.Metrics.ObserveGate(gr.GateName, gr.Passed)
		}
	}
	s.Metrics.ObserveRun(application, string(result.Status), elapsed)
}

func (s *RolloutService) appLock(application string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks == nil {
		s.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := s.locks[application]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[application] = lock
	}
	return lock
}

func (s *RolloutService) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

func (s *RolloutService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
