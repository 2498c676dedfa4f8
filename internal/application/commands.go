package application

import "github.com/wms-platform/picking-engine/internal/domain"

// FormBatchesCommand represents the command to group orders into batches.
// With no orders the pending orders are fetched from the order source.
type FormBatchesCommand struct {
	Orders            []domain.Order
	MaxOrdersPerBatch int
}

// StartBatchCommand represents the command to start or resume a batch
type StartBatchCommand struct {
	BatchID string
}

// AssignBatchCommand represents the command to assign a batch to a picker
type AssignBatchCommand struct {
	BatchID  string
	PickerID string
}

// MarkItemPickedCommand represents the command to confirm an item was picked
type MarkItemPickedCommand struct {
	BatchID   string
	ProductID string
}

// ArchiveBatchCommand represents the command to remove a completed batch
type ArchiveBatchCommand struct {
	BatchID string
}

// GetBatchQuery represents the query to get a batch by ID
type GetBatchQuery struct {
	BatchID string
}

// GetRouteQuery represents the query for a batch's walking route
type GetRouteQuery struct {
	BatchID string
}

// PreviewRouteQuery represents the query to sequence free-standing location codes
type PreviewRouteQuery struct {
	Locations []string
}

// ListBatchesQuery represents the query to list batches with optional filters
type ListBatchesQuery struct {
	Status string
	Search string
	Limit  int
	Offset int
}
