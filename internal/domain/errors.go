package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound indicates that a requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that a resource with the same identity
	// already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidArgument indicates that a caller-provided value violates
	// a precondition.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrRollbackExhausted indicates that production is unhealthy and
	// no prior committed artifact exists to restore. The environment
	// is left on the failed artifact with no automatic recovery.
	ErrRollbackExhausted = errors.New("no prior production artifact; production left in failed-readiness state")
)

// BuildError reports a failed artifact build. No artifact exists when
// it is returned, so neither gates nor deploys may run.
type BuildError struct {
	Stage   string
	Message string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build failed at %s: %s", e.Stage, e.Message)
}

// GateFailure reports a policy violation by a specific gate. It halts
// the pipeline before any deployment step and carries the failing
// gate's full result.
type GateFailure struct {
	Result GateResult
}

func (e *GateFailure) Error() string {
	return fmt.Sprintf("gate %q failed with %d findings", e.Result.GateName, len(e.Result.Findings))
}

// DeployError reports that the environment controller could not bring
// an environment to the desired state. The environment may be in an
// indeterminate state when it is returned.
type DeployError struct {
	Environment string
	Reason      string
	Err         error
}

func (e *DeployError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("deploy to %s: %s: %v", e.Environment, e.Reason, e.Err)
	}
	return fmt.Sprintf("deploy to %s: %s", e.Environment, e.Reason)
}

func (e *DeployError) Unwrap() error { return e.Err }

// ReadinessTimeout reports that an environment never became healthy
// within its probe budget.
type ReadinessTimeout struct {
	Environment string
	Timeout     time.Duration
}

func (e *ReadinessTimeout) Error() string {
	return fmt.Sprintf("%s readiness timeout after %s", e.Environment, e.Timeout)
}
