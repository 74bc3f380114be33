// Package syncworkflow runs the rollout pipeline synchronously in the
// calling goroutine. Activities execute inline with the caller's
// context; nothing is persisted, so a crash mid-run loses the run.
package syncworkflow

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/tommyanhnguyen/house-price-pipeline/internal/domain"
)

// Engine implements [domain.WorkflowEngine] with in-process execution.
type Engine struct {
	nextID atomic.Int64
}

func (e *Engine) RolloutRunner(wf *domain.RolloutWorkflow) (domain.RolloutRunner, error) {
	return &pipelineRunner{engine: e, wf: wf}, nil
}

type pipelineRunner struct {
	engine *Engine
	wf     *domain.RolloutWorkflow
}

// Run executes the whole pipeline before returning; the handle it
// returns is already resolved.
func (r *pipelineRunner) Run(ctx context.Context, req domain.RolloutRequest) (domain.WorkflowHandle[domain.RolloutResult], error) {
	id := syncID(r.engine.nextID.Add(1))
	result, err := r.wf.Run(&inlineRunner{id: id, ctx: ctx}, req)
	return &doneHandle{id: id, result: result, err: err}, nil
}

func syncID(n int64) string { return fmt.Sprintf("sync-%d", n) }

// inlineRunner satisfies [domain.DurableRunner] by calling each
// activity directly. Cancelling ctx aborts the run mid-activity.
type inlineRunner struct {
	id  string
	ctx context.Context
}

func (r *inlineRunner) ID() string               { return r.id }
func (r *inlineRunner) Context() context.Context { return r.ctx }
func (r *inlineRunner) Run(activity domain.Activity[any, any], in any) (any, error) {
	return activity.Run(r.ctx, in)
}

type doneHandle struct {
	id     string
	result domain.RolloutResult
	err    error
}

func (h *doneHandle) WorkflowID() string { return h.id }
func (h *doneHandle) AwaitResult(_ context.Context) (domain.RolloutResult, error) {
	return h.result, h.err
}
