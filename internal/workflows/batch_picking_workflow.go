package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/wms-platform/picking-engine/internal/activities"
	"github.com/wms-platform/picking-engine/pkg/temporal"
)

// DefaultPickTimeout bounds how long a batch may wait for its next picks
const DefaultPickTimeout = 2 * time.Hour

// BatchPickingInput represents the input for the batch picking workflow
type BatchPickingInput struct {
	BatchID  string        `json:"batchId"`
	PickerID string        `json:"pickerId,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty"`
}

// BatchPickingResult represents the result of the batch picking workflow
type BatchPickingResult struct {
	BatchID     string `json:"batchId"`
	Status      string `json:"status"`
	PickedUnits int    `json:"pickedUnits"`
	TotalUnits  int    `json:"totalUnits"`
	TimedOut    bool   `json:"timedOut"`
}

func pickingActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         temporal.DefaultRetryPolicy(),
	}
}

// BatchPickingWorkflow drives one batch from start to completion.
// Picks arrive as itemPicked signals; the workflow ends when the batch completes or
// when the overall timeout elapses. The latest progress is served by the progress query.
func BatchPickingWorkflow(ctx workflow.Context, input BatchPickingInput) (*BatchPickingResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting batch picking workflow", "batchId", input.BatchID, "pickerId", input.PickerID)

	ctx = workflow.WithActivityOptions(ctx, pickingActivityOptions())

	progress := activities.BatchProgress{BatchID: input.BatchID, Status: "pending"}
	err := workflow.SetQueryHandler(ctx, temporal.QueryProgress, func() (activities.BatchProgress, error) {
		return progress, nil
	})
	if err != nil {
		return nil, err
	}

	if input.PickerID != "" {
		var assigned activities.BatchProgress
		err := workflow.ExecuteActivity(ctx, temporal.ActivityNames.AssignBatch, activities.AssignBatchInput{
			BatchID:  input.BatchID,
			PickerID: input.PickerID,
		}).Get(ctx, &assigned)
		if err != nil {
			return nil, fmt.Errorf("failed to assign batch %s: %w", input.BatchID, err)
		}
		progress = assigned
	}

	var started activities.BatchProgress
	if err := workflow.ExecuteActivity(ctx, temporal.ActivityNames.StartBatch, input.BatchID).Get(ctx, &started); err != nil {
		return nil, fmt.Errorf("failed to start batch %s: %w", input.BatchID, err)
	}
	progress = started

	timeout := input.Timeout
	if timeout <= 0 {
		timeout = DefaultPickTimeout
	}
	timerCtx, cancelTimer := workflow.WithCancel(ctx)
	defer cancelTimer()
	deadline := workflow.NewTimer(timerCtx, timeout)

	pickSignal := workflow.GetSignalChannel(ctx, temporal.SignalItemPicked)
	timedOut := false

	for !progress.IsCompleted() && !timedOut {
		var signal temporal.ItemPickedSignal
		received := false

		selector := workflow.NewSelector(ctx)
		selector.AddReceive(pickSignal, func(c workflow.ReceiveChannel, more bool) {
			c.Receive(ctx, &signal)
			received = true
		})
		selector.AddFuture(deadline, func(f workflow.Future) {
			timedOut = true
			logger.Warn("Batch picking timed out", "batchId", input.BatchID)
		})
		selector.Select(ctx)

		if !received {
			continue
		}

		var updated activities.BatchProgress
		err := workflow.ExecuteActivity(ctx, temporal.ActivityNames.MarkItemPicked, activities.MarkItemPickedInput{
			BatchID:   input.BatchID,
			ProductID: signal.ProductID,
		}).Get(ctx, &updated)
		if err != nil {
			// a bad scan must not end the batch
			logger.Warn("Pick rejected", "batchId", input.BatchID, "productId", signal.ProductID, "error", err)
			continue
		}
		progress = updated
	}

	logger.Info("Batch picking workflow finished", "batchId", input.BatchID, "status", progress.Status, "timedOut", timedOut)

	return &BatchPickingResult{
		BatchID:     input.BatchID,
		Status:      progress.Status,
		PickedUnits: progress.PickedUnits,
		TotalUnits:  progress.TotalUnits,
		TimedOut:    timedOut,
	}, nil
}
