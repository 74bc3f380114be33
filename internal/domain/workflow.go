package domain

import "context"

// Activity is one named, typed step of the rollout pipeline. A durable
// engine may re-invoke an activity whose completion was not recorded,
// so implementations must tolerate at-least-once execution.
type Activity[I any, O any] interface {
	Name() string
	Run(ctx context.Context, in I) (O, error)
}

// DurableRunner is what a workflow body runs its activities through.
// The engine behind it decides whether a step executes fresh or is
// replayed from recorded history.
type DurableRunner interface {
	ID() string

	// Context carries cancellation into pure in-body computation. In
	// a durable engine it is the replay context; in the synchronous
	// backend it is the caller's context.
	Context() context.Context

	// Run executes one activity through the engine. Workflow bodies
	// should go through [RunActivity], which restores the types.
	Run(activity Activity[any, any], in any) (any, error)
}

// RunActivity executes an activity through the runner with the
// concrete input and output types intact.
func RunActivity[I any, O any](runner DurableRunner, activity Activity[I, O], in I) (O, error) {
	result, err := runner.Run(&anyActivity[I, O]{inner: activity}, in)
	if err != nil {
		var zero O
		return zero, err
	}
	return result.(O), nil
}

// WorkflowHandle refers to a started pipeline run and yields its
// terminal result.
type WorkflowHandle[O any] interface {
	WorkflowID() string
	AwaitResult(ctx context.Context) (O, error)
}

// RolloutRequest is the input that starts one rollout pipeline run.
type RolloutRequest struct {
	RunID       string `json:"run_id"`
	Application string `json:"application"`
	SourceRev   string `json:"source_rev"`
	Version     string `json:"version"`
}

// RolloutResult is the terminal report of one rollout pipeline run.
type RolloutResult struct {
	RunID          string       `json:"run_id"`
	Status         RunStatus    `json:"status"`
	Reason         string       `json:"reason,omitempty"`
	Artifact       ArtifactRef  `json:"artifact"`
	RollbackTarget *ArtifactRef `json:"rollback_target,omitempty"`
}

// RolloutRunner starts and awaits rollout pipeline workflows.
type RolloutRunner interface {
	Run(ctx context.Context, req RolloutRequest) (WorkflowHandle[RolloutResult], error)
}

// WorkflowEngine binds the rollout workflow to a concrete execution
// backend. Infrastructure packages supply the implementations.
type WorkflowEngine interface {
	RolloutRunner(wf *RolloutWorkflow) (RolloutRunner, error)
}

// NewActivity wraps a function as an [Activity]. The name must stay
// stable across releases: durable engines key recorded step results
// by it.
func NewActivity[I, O any](name string, fn func(context.Context, I) (O, error)) Activity[I, O] {
	return &namedActivity[I, O]{name: name, fn: fn}
}

type namedActivity[I, O any] struct {
	name string
	fn   func(context.Context, I) (O, error)
}

func (a *namedActivity[I, O]) Name() string                             { return a.name }
func (a *namedActivity[I, O]) Run(ctx context.Context, in I) (O, error) { return a.fn(ctx, in) }

// anyActivity erases an activity's types for [DurableRunner.Run].
type anyActivity[I any, O any] struct{ inner Activity[I, O] }

func (a *anyActivity[I, O]) Name() string { return a.inner.Name() }
func (a *anyActivity[I, O]) Run(ctx context.Context, in any) (any, error) {
	return a.inner.Run(ctx, in.(I))
}
