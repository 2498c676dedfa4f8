package workflows

import (
	"fmt"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/workflow"

	"github.com/wms-platform/picking-engine/internal/activities"
	"github.com/wms-platform/picking-engine/pkg/temporal"
)

// OrderBatchingInput represents the input for the order batching workflow
type OrderBatchingInput struct {
	MaxOrdersPerBatch int           `json:"maxOrdersPerBatch,omitempty"`
	PickTimeout       time.Duration `json:"pickTimeout,omitempty"`
}

// OrderBatchingResult represents the result of the order batching workflow
type OrderBatchingResult struct {
	BatchIDs []string `json:"batchIds"`
}

// OrderBatchingWorkflow forms batches from the pending orders and starts one
// BatchPickingWorkflow per batch. Children outlive this workflow.
func OrderBatchingWorkflow(ctx workflow.Context, input OrderBatchingInput) (*OrderBatchingResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting order batching workflow", "maxOrdersPerBatch", input.MaxOrdersPerBatch)

	ao := pickingActivityOptions()
	// the order service may be slow to page through a large backlog
	ao.StartToCloseTimeout = 2 * time.Minute
	ctx = workflow.WithActivityOptions(ctx, ao)

	var batchIDs []string
	err := workflow.ExecuteActivity(ctx, temporal.ActivityNames.FormBatches, activities.FormBatchesInput{
		MaxOrdersPerBatch: input.MaxOrdersPerBatch,
	}).Get(ctx, &batchIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to form batches: %w", err)
	}

	for _, batchID := range batchIDs {
		childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
			WorkflowID:        temporal.BatchWorkflowID(batchID),
			ParentClosePolicy: enumspb.PARENT_CLOSE_POLICY_ABANDON,
		})

		child := workflow.ExecuteChildWorkflow(childCtx, temporal.WorkflowNames.BatchPicking, BatchPickingInput{
			BatchID: batchID,
			Timeout: input.PickTimeout,
		})
		if err := child.GetChildWorkflowExecution().Get(ctx, nil); err != nil {
			return nil, fmt.Errorf("failed to start picking workflow for batch %s: %w", batchID, err)
		}
	}

	logger.Info("Order batching workflow finished", "batchCount", len(batchIDs))
	return &OrderBatchingResult{BatchIDs: batchIDs}, nil
}
