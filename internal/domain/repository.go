package domain

import "context"

// BatchFilter narrows a batch listing
type BatchFilter struct {
	Status BatchStatus
	Search string
	Limit  int
	Offset int
}

// BatchRepository persists picking batches.
//
// Save is a compare-and-swap on Version: a batch loaded at version N can only be
// written while the stored copy is still at N, after which the stored version is N+1.
// A stale write returns ErrConcurrentModification.
type BatchRepository interface {
	Save(ctx context.Context, batch *PickingBatch) error
	FindByID(ctx context.Context, batchID string) (*PickingBatch, error)
	FindByStatus(ctx context.Context, status BatchStatus) ([]*PickingBatch, error)
	Find(ctx context.Context, filter BatchFilter) ([]*PickingBatch, error)
	// FindByOrderIDs returns the stored batches holding any of orderIDs
	FindByOrderIDs(ctx context.Context, orderIDs []string) ([]*PickingBatch, error)
	Delete(ctx context.Context, batchID string) error
}

// OrderSource supplies orders from the order collaborator
type OrderSource interface {
	ListPendingOrders(ctx context.Context) ([]Order, error)
}
