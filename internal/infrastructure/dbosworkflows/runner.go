// Package dbosworkflows implements [domain.WorkflowEngine] on the
// DBOS Transact Go SDK. Each pipeline activity runs as a DBOS step,
// so an interrupted rollout resumes from the last completed step
// instead of restarting.
package dbosworkflows

import (
	"context"
	"fmt"

	"github.com/dbos-inc/dbos-transact-golang/dbos"

	"github.com/tommyanhnguyen/house-price-pipeline/internal/domain"
)

// stepInvoker wraps one activity as a DBOS step. It is built where
// the activity's concrete output type is still known; RunAsStep needs
// that type to deserialize recorded step output on replay.
type stepInvoker func(ctx dbos.DBOSContext, in any) (any, error)

// Engine implements [domain.WorkflowEngine] backed by DBOS. Callers
// must [dbos.Launch] after building runners and before invoking them.
type Engine struct {
	DBOSCtx dbos.DBOSContext
}

func (e *Engine) RolloutRunner(wf *domain.RolloutWorkflow) (domain.RolloutRunner, error) {
	steps := make(map[string]stepInvoker)
	addStep(steps, wf.BuildArtifact())
	addStep(steps, wf.RunGate())
	addStep(steps, wf.CaptureRollbackCandidate())
	addStep(steps, wf.DeployEnvironment())
	addStep(steps, wf.ProbeEnvironment())
	addStep(steps, wf.CommitRelease())
	addStep(steps, wf.RecordRolledBack())
	addStep(steps, wf.SaveRun())
	addStep(steps, wf.FinalizeRun())

	wfFunc := func(ctx dbos.DBOSContext, req domain.RolloutRequest) (domain.RolloutResult, error) {
		return wf.Run(&stepRunner{ctx: ctx, steps: steps}, req)
	}
	dbos.RegisterWorkflow(e.DBOSCtx, wfFunc, dbos.WithWorkflowName(wf.Name()))

	return &dbosRunner{dbosCtx: e.DBOSCtx, wfFunc: wfFunc}, nil
}

func addStep[I, O any](steps map[string]stepInvoker, activity domain.Activity[I, O]) {
	steps[activity.Name()] = func(ctx dbos.DBOSContext, in any) (any, error) {
		return dbos.RunAsStep(ctx, func(stepCtx context.Context) (O, error) {
			return activity.Run(stepCtx, in.(I))
		}, dbos.WithStepName(activity.Name()))
	}
}

// stepRunner satisfies [domain.DurableRunner] inside a DBOS workflow
// function, dispatching each activity to its registered step.
type stepRunner struct {
	ctx   dbos.DBOSContext
	steps map[string]stepInvoker
}

func (r *stepRunner) ID() string {
	id, _ := dbos.GetWorkflowID(r.ctx)
	return id
}

func (r *stepRunner) Context() context.Context { return r.ctx }

func (r *stepRunner) Run(activity domain.Activity[any, any], in any) (any, error) {
	invoke, ok := r.steps[activity.Name()]
	if !ok {
		return nil, fmt.Errorf("activity %q not registered", activity.Name())
	}
	return invoke(r.ctx, in)
}

type dbosRunner struct {
	dbosCtx dbos.DBOSContext
	wfFunc  dbos.Workflow[domain.RolloutRequest, domain.RolloutResult]
}

func (r *dbosRunner) Run(ctx context.Context, req domain.RolloutRequest) (domain.WorkflowHandle[domain.RolloutResult], error) {
	handle, err := dbos.RunWorkflow(r.dbosCtx, r.wfFunc, req)
	if err != nil {
		return nil, fmt.Errorf("start rollout workflow: %w", err)
	}
	return &dbosHandle{handle: handle}, nil
}

type dbosHandle struct {
	handle dbos.WorkflowHandle[domain.RolloutResult]
}

func (h *dbosHandle) WorkflowID() string { return h.handle.GetWorkflowID() }

func (h *dbosHandle) AwaitResult(_ context.Context) (domain.RolloutResult, error) {
	return h.handle.GetResult()
}
