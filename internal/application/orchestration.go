package application

import (
	"context"
	"fmt"

	"github.com/tommyanhnguyen/house-price-pipeline/internal/domain"
)

// OrchestrationService executes the rollout pipeline as a durable workflow.
type OrchestrationService struct {
	Workflow domain.RolloutRunner
}

// Orchestrate starts the rollout pipeline workflow and waits for it to
// complete.
func (o *OrchestrationService) Orchestrate(ctx context.Context, req domain.RolloutRequest) (domain.RolloutResult, error) {
	handle, err := o.Workflow.Run(ctx, req)
	if err != nil {
		return domain.RolloutResult{}, fmt.Errorf("start rollout workflow: %w", err)
	}
	return handle.AwaitResult(ctx)
}
