// Package goworkflows implements [domain.WorkflowEngine] on
// cschleiden/go-workflows. The workflow body is replayed from history
// on recovery, so every side effect goes through a registered
// activity and the body itself stays deterministic.
package goworkflows

import (
	"context"
	"fmt"
	"time"

	"github.com/cschleiden/go-workflows/client"
	"github.com/cschleiden/go-workflows/registry"
	"github.com/cschleiden/go-workflows/worker"
	"github.com/cschleiden/go-workflows/workflow"
	"github.com/google/uuid"

	"github.com/tommyanhnguyen/house-price-pipeline/internal/domain"
)

// activityCall executes one activity from workflow context. Built
// while the activity's generic types are known; ExecuteActivity needs
// the concrete output type to decode history on replay.
type activityCall func(wfCtx workflow.Context, in any) (any, error)

// Engine implements [domain.WorkflowEngine] backed by go-workflows.
// The caller starts the Worker after building runners.
type Engine struct {
	Worker *worker.Worker
	Client *client.Client

	// Timeout bounds AwaitResult. A whole rollout includes probe
	// loops, so the default is generous.
	Timeout time.Duration
}

func (e *Engine) awaitTimeout() time.Duration {
	if e.Timeout > 0 {
		return e.Timeout
	}
	return 5 * time.Minute
}

func (e *Engine) RolloutRunner(wf *domain.RolloutWorkflow) (domain.RolloutRunner, error) {
	calls := make(map[string]activityCall)

	var regErr error
	reg := func(err error) {
		if regErr == nil {
			regErr = err
		}
	}
	reg(bind(e.Worker, calls, wf.BuildArtifact()))
	reg(bind(e.Worker, calls, wf.RunGate()))
	reg(bind(e.Worker, calls, wf.CaptureRollbackCandidate()))
	reg(bind(e.Worker, calls, wf.DeployEnvironment()))
	reg(bind(e.Worker, calls, wf.ProbeEnvironment()))
	reg(bind(e.Worker, calls, wf.CommitRelease()))
	reg(bind(e.Worker, calls, wf.RecordRolledBack()))
	reg(bind(e.Worker, calls, wf.SaveRun()))
	reg(bind(e.Worker, calls, wf.FinalizeRun()))
	if regErr != nil {
		return nil, regErr
	}

	wfFunc := func(ctx workflow.Context, req domain.RolloutRequest) (domain.RolloutResult, error) {
		return wf.Run(&replayRunner{wfCtx: ctx, calls: calls}, req)
	}
	if err := e.Worker.RegisterWorkflow(wfFunc, registry.WithName(wf.Name())); err != nil {
		return nil, fmt.Errorf("register workflow %q: %w", wf.Name(), err)
	}

	return &instanceRunner{
		client:  e.Client,
		wfName:  wf.Name(),
		timeout: e.awaitTimeout(),
	}, nil
}

// bind registers the activity with the worker and records a typed
// call for dispatch from the workflow body.
func bind[I, O any](w *worker.Worker, calls map[string]activityCall, activity domain.Activity[I, O]) error {
	fn := func(ctx context.Context, in I) (O, error) {
		return activity.Run(ctx, in)
	}
	if err := w.RegisterActivity(fn, registry.WithName(activity.Name())); err != nil {
		return fmt.Errorf("register activity %q: %w", activity.Name(), err)
	}

	calls[activity.Name()] = func(wfCtx workflow.Context, in any) (any, error) {
		return workflow.ExecuteActivity[O](
			wfCtx, workflow.DefaultActivityOptions, activity.Name(), in,
		).Get(wfCtx)
	}
	return nil
}

// replayRunner satisfies [domain.DurableRunner] inside the workflow
// body. Activities run out of process from the body's perspective, so
// Context is a plain background context.
type replayRunner struct {
	wfCtx workflow.Context
	calls map[string]activityCall
}

func (r *replayRunner) ID() string {
	return workflow.WorkflowInstance(r.wfCtx).InstanceID
}

func (r *replayRunner) Context() context.Context { return context.Background() }

func (r *replayRunner) Run(activity domain.Activity[any, any], in any) (any, error) {
	call, ok := r.calls[activity.Name()]
	if !ok {
		return nil, fmt.Errorf("activity %q not registered", activity.Name())
	}
	return call(r.wfCtx, in)
}

type instanceRunner struct {
	client  *client.Client
	wfName  string
	timeout time.Duration
}

func (r *instanceRunner) Run(ctx context.Context, req domain.RolloutRequest) (domain.WorkflowHandle[domain.RolloutResult], error) {
	instance, err := r.client.CreateWorkflowInstance(ctx, client.WorkflowInstanceOptions{
		InstanceID: uuid.NewString(),
	}, r.wfName, req)
	if err != nil {
		return nil, fmt.Errorf("start rollout instance: %w", err)
	}
	return &instanceHandle{client: r.client, instance: instance, timeout: r.timeout}, nil
}

type instanceHandle struct {
	client   *client.Client
	instance *workflow.Instance
	timeout  time.Duration
}

func (h *instanceHandle) WorkflowID() string { return h.instance.InstanceID }

func (h *instanceHandle) AwaitResult(ctx context.Context) (domain.RolloutResult, error) {
	return client.GetWorkflowResult[domain.RolloutResult](ctx, h.client, h.instance, h.timeout)
}
