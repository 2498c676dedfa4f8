package activities

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/wms-platform/picking-engine/internal/application"
	"github.com/wms-platform/picking-engine/internal/domain"
	"github.com/wms-platform/picking-engine/pkg/errors"
	"github.com/wms-platform/picking-engine/pkg/metrics"
)

// BatchService is the part of the picking service the activities drive
type BatchService interface {
	FormBatches(ctx context.Context, cmd application.FormBatchesCommand) (*application.FormBatchesResult, error)
	AssignBatch(ctx context.Context, cmd application.AssignBatchCommand) (*application.BatchDTO, error)
	StartBatch(ctx context.Context, cmd application.StartBatchCommand) (*application.BatchDTO, error)
	MarkItemPicked(ctx context.Context, cmd application.MarkItemPickedCommand) (*application.MarkItemPickedResult, error)
}

// PickingActivities contains activities for the batching and picking workflows
type PickingActivities struct {
	service BatchService
	metrics *metrics.Metrics
}

// NewPickingActivities creates a new PickingActivities instance. m may be nil.
func NewPickingActivities(service BatchService, m *metrics.Metrics) *PickingActivities {
	return &PickingActivities{service: service, metrics: m}
}

// FormBatchesInput represents input for forming batches from the order source
type FormBatchesInput struct {
	MaxOrdersPerBatch int `json:"maxOrdersPerBatch"`
}

// AssignBatchInput represents input for assigning a batch
type AssignBatchInput struct {
	BatchID  string `json:"batchId"`
	PickerID string `json:"pickerId"`
}

// MarkItemPickedInput represents input for confirming a pick
type MarkItemPickedInput struct {
	BatchID   string `json:"batchId"`
	ProductID string `json:"productId"`
}

// BatchProgress is the state a workflow tracks between activities
type BatchProgress struct {
	BatchID     string `json:"batchId"`
	Status      string `json:"status"`
	AssignedTo  string `json:"assignedTo,omitempty"`
	PickedUnits int    `json:"pickedUnits"`
	TotalUnits  int    `json:"totalUnits"`
	Changed     bool   `json:"changed"`
}

// IsCompleted reports whether the batch is fully picked
func (p BatchProgress) IsCompleted() bool {
	return p.Status == string(domain.BatchStatusCompleted)
}

func progressOf(batch *application.BatchDTO) *BatchProgress {
	return &BatchProgress{
		BatchID:     batch.BatchID,
		Status:      batch.Status,
		AssignedTo:  batch.AssignedTo,
		PickedUnits: batch.Progress.PickedUnits,
		TotalUnits:  batch.Progress.TotalUnits,
	}
}

// FormBatches groups the pending orders into batches and returns their ids
func (a *PickingActivities) FormBatches(ctx context.Context, input FormBatchesInput) ([]string, error) {
	logger := activity.GetLogger(ctx)
	start := time.Now()

	result, err := a.service.FormBatches(ctx, application.FormBatchesCommand{MaxOrdersPerBatch: input.MaxOrdersPerBatch})
	a.record("FormBatches", start, err)
	if err != nil {
		logger.Error("Failed to form batches", "error", err)
		return nil, classify(err)
	}

	ids := make([]string, 0, len(result.Batches))
	for _, batch := range result.Batches {
		ids = append(ids, batch.BatchID)
	}

	logger.Info("Formed batches", "batchCount", len(ids), "orderCount", result.OrderCount)
	return ids, nil
}

// AssignBatch assigns a batch to a picker
func (a *PickingActivities) AssignBatch(ctx context.Context, input AssignBatchInput) (*BatchProgress, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Assigning batch", "batchId", input.BatchID, "pickerId", input.PickerID)
	start := time.Now()

	batch, err := a.service.AssignBatch(ctx, application.AssignBatchCommand{BatchID: input.BatchID, PickerID: input.PickerID})
	a.record("AssignBatch", start, err)
	if err != nil {
		return nil, classify(err)
	}
	return progressOf(batch), nil
}

// StartBatch starts or resumes a batch
func (a *PickingActivities) StartBatch(ctx context.Context, batchID string) (*BatchProgress, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Starting batch", "batchId", batchID)
	start := time.Now()

	batch, err := a.service.StartBatch(ctx, application.StartBatchCommand{BatchID: batchID})
	a.record("StartBatch", start, err)
	if err != nil {
		return nil, classify(err)
	}
	return progressOf(batch), nil
}

// MarkItemPicked confirms a product of the batch was picked
func (a *PickingActivities) MarkItemPicked(ctx context.Context, input MarkItemPickedInput) (*BatchProgress, error) {
	logger := activity.GetLogger(ctx)
	start := time.Now()

	result, err := a.service.MarkItemPicked(ctx, application.MarkItemPickedCommand{BatchID: input.BatchID, ProductID: input.ProductID})
	a.record("MarkItemPicked", start, err)
	if err != nil {
		logger.Warn("Failed to mark item picked", "batchId", input.BatchID, "productId", input.ProductID, "error", err)
		return nil, classify(err)
	}

	progress := progressOf(result.Batch)
	progress.Changed = result.Changed
	logger.Info("Item picked", "batchId", input.BatchID, "productId", input.ProductID, "status", progress.Status)
	return progress, nil
}

func (a *PickingActivities) record(activityType string, start time.Time, err error) {
	if a.metrics != nil {
		a.metrics.RecordActivityCompleted(activityType, err == nil, time.Since(start))
	}
}

// classify stops Temporal from retrying errors a retry cannot fix. Lost concurrency
// races and infrastructure failures stay retryable.
func classify(err error) error {
	if stderrors.Is(err, domain.ErrConcurrentModification) {
		return err
	}
	appErr := errors.MapDomainError(err)
	if appErr.HTTPStatus >= http.StatusBadRequest && appErr.HTTPStatus < http.StatusInternalServerError {
		return temporal.NewNonRetryableApplicationError(appErr.Message, appErr.Code, err)
	}
	return err
}
