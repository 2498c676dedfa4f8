package application

import "time"

// BatchDTO represents a picking batch in responses
type BatchDTO struct {
	BatchID     string           `json:"batchId"`
	OrderIDs    []string         `json:"orderIds"`
	Items       []PickingItemDTO `json:"items"`
	Status      string           `json:"status"`
	AssignedTo  string           `json:"assignedTo,omitempty"`
	Progress    ProgressDTO      `json:"progress"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
	StartedAt   *time.Time       `json:"startedAt,omitempty"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
	Version     int64            `json:"version"`
}

// PickingItemDTO represents a consolidated pick requirement
type PickingItemDTO struct {
	ProductID     string             `json:"productId"`
	ProductName   string             `json:"productName"`
	LocationCode  string             `json:"locationCode"`
	TotalQuantity int                `json:"totalQuantity"`
	Orders        []OrderQuantityDTO `json:"orders"`
	Picked        int                `json:"picked"`
	IsPicked      bool               `json:"isPicked"`
}

// OrderQuantityDTO represents one order's share of an item
type OrderQuantityDTO struct {
	OrderID  string `json:"orderId"`
	Quantity int    `json:"quantity"`
}

// ProgressDTO represents picked units against the batch total
type ProgressDTO struct {
	PickedUnits int     `json:"pickedUnits"`
	TotalUnits  int     `json:"totalUnits"`
	Percent     float64 `json:"percent"`
}

// BatchListDTO represents a page of batches
type BatchListDTO struct {
	Batches []BatchDTO `json:"batches"`
	Count   int        `json:"count"`
	Limit   int        `json:"limit"`
	Offset  int        `json:"offset"`
}

// FormBatchesResult represents the outcome of a batch formation run
type FormBatchesResult struct {
	Batches    []BatchDTO `json:"batches"`
	OrderCount int        `json:"orderCount"`

	// SkippedOrderIDs were already held by a stored batch
	SkippedOrderIDs []string `json:"skippedOrderIds,omitempty"`
}

// RouteDTO represents a batch's walking route with items in walking order
type RouteDTO struct {
	BatchID          string           `json:"batchId"`
	OrderedLocations []string         `json:"orderedLocations"`
	TotalDistance    int              `json:"totalDistance"`
	Items            []PickingItemDTO `json:"items"`
}

// PickingRouteDTO represents a route over free-standing locations
type PickingRouteDTO struct {
	OrderedLocations []string `json:"orderedLocations"`
	TotalDistance    int      `json:"totalDistance"`
}

// MarkItemPickedResult represents the batch after a pick confirmation
type MarkItemPickedResult struct {
	Batch   *BatchDTO `json:"batch"`
	Changed bool      `json:"changed"`
}
