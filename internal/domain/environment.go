package domain

import (
	"context"
	"time"
)

// Health classifies the observed state of an environment instance.
type Health string

const (
	HealthUnknown     Health = "unknown"
	HealthReady       Health = "ready"
	HealthNotReady    Health = "not_ready"
	HealthUnreachable Health = "unreachable"
)

// EnvironmentState is the live state of one named environment. It is
// owned exclusively by the [EnvironmentController] and mutated only
// through its Deploy operation.
type EnvironmentState struct {
	Environment      string       `json:"environment"`
	CurrentArtifact  *ArtifactRef `json:"current_artifact,omitempty"`
	Health           Health       `json:"health"`
	LastTransitionAt time.Time    `json:"last_transition_at"`
}

// EnvironmentController brings a named environment to a desired
// artifact version and reports what is currently running there.
//
// Deploy stops whatever is running in the environment (a no-op when
// nothing is) and starts the given artifact. From the caller's point
// of view it is atomic: either the environment ends up running the new
// artifact, or a [*DeployError] is returned. Partial states are
// surfaced as errors, never hidden. Deploying the artifact that is
// already running is a no-op; the orchestrator re-probes regardless,
// since "already running" does not imply "currently healthy".
//
// Implementations must serialize Deploy per environment name.
type EnvironmentController interface {
	Deploy(ctx context.Context, environment string, artifact ArtifactRef) (EnvironmentState, error)

	// CurrentArtifact returns the artifact running in the environment,
	// or ErrNotFound when nothing is deployed.
	CurrentArtifact(ctx context.Context, environment string) (ArtifactRef, error)
}

// HealthProber polls a running environment instance and classifies it.
//
// Probe issues liveness requests at the given interval until one
// succeeds (HealthReady, returned immediately) or the timeout elapses
// (HealthNotReady). It returns within timeout plus at most one poll
// interval. Ordinary unreachability, including an environment that
// was never deployed, folds into HealthNotReady rather than an error;
// the only error Probe returns is the caller's context cancellation,
// which it honors promptly instead of waiting out the timeout.
type HealthProber interface {
	Probe(ctx context.Context, environment string, timeout, interval time.Duration) (Health, error)
}
