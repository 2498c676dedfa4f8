package domain

import (
	"errors"
	"strings"
	"time"
)

// Errors
var (
	ErrBatchNotFound          = errors.New("picking batch not found")
	ErrBatchHasNoOrders       = errors.New("picking batch requires at least one order")
	ErrBatchIDRequired        = errors.New("picking batch id is required")
	ErrBatchCompleted         = errors.New("picking batch is already completed")
	ErrBatchNotCompleted      = errors.New("picking batch is not completed")
	ErrItemNotInBatch         = errors.New("product not found in picking batch")
	ErrPickerIDRequired       = errors.New("picker id is required")
	ErrConcurrentModification = errors.New("picking batch was modified concurrently")
)

// BatchStatus represents the status of a picking batch
type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "pending"
	BatchStatusInProgress BatchStatus = "in_progress"
	BatchStatusCompleted  BatchStatus = "completed"
)

// IsValid reports whether s is a known batch status
func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusPending, BatchStatusInProgress, BatchStatusCompleted:
		return true
	}
	return false
}

// OrderQuantity is one order's share of a consolidated item
type OrderQuantity struct {
	OrderID  string `bson:"orderId" json:"orderId"`
	Quantity int    `bson:"quantity" json:"quantity"`
}

// PickingItem is the consolidated pick requirement for one product within a batch
type PickingItem struct {
	ProductID     string          `bson:"productId" json:"productId"`
	ProductName   string          `bson:"productName" json:"productName"`
	LocationCode  string          `bson:"locationCode" json:"locationCode"`
	TotalQuantity int             `bson:"totalQuantity" json:"totalQuantity"`
	PerOrder      []OrderQuantity `bson:"perOrder" json:"perOrder"`
	Picked        int             `bson:"picked" json:"picked"`
}

// IsPicked reports whether the full quantity has been picked
func (i PickingItem) IsPicked() bool {
	return i.Picked >= i.TotalQuantity
}

// Remaining returns the units still to pick
func (i PickingItem) Remaining() int {
	if i.Picked >= i.TotalQuantity {
		return 0
	}
	return i.TotalQuantity - i.Picked
}

// PickingBatch is the aggregate root for a group of orders picked together.
//
// Status only moves to completed when a pick is recorded. A batch whose orders had no
// pickable lines has no items, so it can be started but never completes.
type PickingBatch struct {
	BatchID      string        `bson:"batchId"`
	OrderIDs     []string      `bson:"orderIds"`
	Items        []PickingItem `bson:"items"`
	Status       BatchStatus   `bson:"status"`
	AssignedTo   string        `bson:"assignedTo,omitempty"`
	CreatedAt    time.Time     `bson:"createdAt"`
	UpdatedAt    time.Time     `bson:"updatedAt"`
	StartedAt    *time.Time    `bson:"startedAt,omitempty"`
	CompletedAt  *time.Time    `bson:"completedAt,omitempty"`
	Version      int64         `bson:"version"`
	DomainEvents []DomainEvent `bson:"-"`
}

// NewPickingBatch creates a pending batch whose items are consolidated from orders
func NewPickingBatch(batchID string, orders []Order) (*PickingBatch, error) {
	if batchID == "" {
		return nil, ErrBatchIDRequired
	}
	if len(orders) == 0 {
		return nil, ErrBatchHasNoOrders
	}

	orderIDs := make([]string, 0, len(orders))
	for _, o := range orders {
		orderIDs = append(orderIDs, o.ID)
	}

	now := time.Now().UTC()
	batch := &PickingBatch{
		BatchID:   batchID,
		OrderIDs:  orderIDs,
		Items:     ConsolidateItems(orders),
		Status:    BatchStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	batch.AddDomainEvent(&BatchCreatedEvent{
		BatchID:    batchID,
		OrderIDs:   orderIDs,
		ItemCount:  len(batch.Items),
		TotalUnits: batch.TotalUnits(),
		CreatedAt:  now,
	})

	return batch, nil
}

// StartOrResume moves a pending batch to in_progress. Any other status is left untouched.
// It reports whether the status changed.
func (b *PickingBatch) StartOrResume() bool {
	if b.Status != BatchStatusPending {
		return false
	}

	now := time.Now().UTC()
	b.Status = BatchStatusInProgress
	b.StartedAt = &now
	b.UpdatedAt = now

	b.AddDomainEvent(&BatchStartedEvent{
		BatchID:    b.BatchID,
		AssignedTo: b.AssignedTo,
		StartedAt:  now,
	})
	return true
}

// MarkItemPicked records the full quantity of a product as picked and re-derives the batch
// status. Marking an item that is already fully picked changes nothing. It reports whether
// the item changed; an unknown product yields ErrItemNotInBatch without touching the batch.
func (b *PickingBatch) MarkItemPicked(productID string) (bool, error) {
	idx := b.itemIndex(productID)
	if idx < 0 {
		return false, ErrItemNotInBatch
	}

	item := &b.Items[idx]
	changed := false
	now := time.Now().UTC()

	if item.Picked < item.TotalQuantity {
		units := item.TotalQuantity - item.Picked
		item.Picked = item.TotalQuantity
		changed = true
		b.UpdatedAt = now

		b.AddDomainEvent(&ItemPickedEvent{
			BatchID:      b.BatchID,
			ProductID:    item.ProductID,
			LocationCode: item.LocationCode,
			Quantity:     units,
			PickedBy:     b.AssignedTo,
			PickedAt:     now,
		})
	}

	b.refreshStatus(now)
	return changed, nil
}

// refreshStatus derives the status from item progress. Status only moves forward.
func (b *PickingBatch) refreshStatus(now time.Time) {
	if b.Status == BatchStatusCompleted {
		return
	}

	// picking without an explicit start implies one
	b.StartOrResume()

	if !b.AllItemsPicked() {
		return
	}

	b.Status = BatchStatusCompleted
	b.CompletedAt = &now
	b.UpdatedAt = now

	b.AddDomainEvent(&BatchCompletedEvent{
		BatchID:     b.BatchID,
		OrderIDs:    b.OrderIDs,
		PickedBy:    b.AssignedTo,
		TotalUnits:  b.TotalUnits(),
		CompletedAt: now,
	})
}

// Assign records the picker working the batch. Reassignment is allowed until completion.
func (b *PickingBatch) Assign(pickerID string) error {
	pickerID = strings.TrimSpace(pickerID)
	if pickerID == "" {
		return ErrPickerIDRequired
	}
	if b.Status == BatchStatusCompleted {
		return ErrBatchCompleted
	}
	if b.AssignedTo == pickerID {
		return nil
	}

	now := time.Now().UTC()
	previous := b.AssignedTo
	b.AssignedTo = pickerID
	b.UpdatedAt = now

	b.AddDomainEvent(&BatchAssignedEvent{
		BatchID:          b.BatchID,
		PickerID:         pickerID,
		PreviousPickerID: previous,
		AssignedAt:       now,
	})
	return nil
}

// EnsureArchivable rejects removal of a batch that is still being picked
func (b *PickingBatch) EnsureArchivable() error {
	if b.Status != BatchStatusCompleted {
		return ErrBatchNotCompleted
	}
	return nil
}

// AllItemsPicked reports whether every item has its full quantity picked
func (b *PickingBatch) AllItemsPicked() bool {
	for _, item := range b.Items {
		if !item.IsPicked() {
			return false
		}
	}
	return true
}

// Item returns the item for productID
func (b *PickingBatch) Item(productID string) (PickingItem, bool) {
	idx := b.itemIndex(productID)
	if idx < 0 {
		return PickingItem{}, false
	}
	return b.Items[idx], true
}

func (b *PickingBatch) itemIndex(productID string) int {
	for i := range b.Items {
		if b.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// TotalUnits returns the sum of all item quantities
func (b *PickingBatch) TotalUnits() int {
	total := 0
	for _, item := range b.Items {
		total += item.TotalQuantity
	}
	return total
}

// GetProgress returns picked and total units
func (b *PickingBatch) GetProgress() (picked, total int) {
	for _, item := range b.Items {
		picked += item.Picked
		total += item.TotalQuantity
	}
	return picked, total
}

// Matches reports whether the batch matches a free-text search on its id,
// order ids or product names. An empty search matches everything.
func (b *PickingBatch) Matches(search string) bool {
	term := strings.ToLower(strings.TrimSpace(search))
	if term == "" {
		return true
	}
	if strings.Contains(strings.ToLower(b.BatchID), term) {
		return true
	}
	for _, id := range b.OrderIDs {
		if strings.Contains(strings.ToLower(id), term) {
			return true
		}
	}
	for _, item := range b.Items {
		if strings.Contains(strings.ToLower(item.ProductName), term) {
			return true
		}
	}
	return false
}

// AddDomainEvent adds a domain event
func (b *PickingBatch) AddDomainEvent(event DomainEvent) {
	b.DomainEvents = append(b.DomainEvents, event)
}

// ClearDomainEvents clears all domain events
func (b *PickingBatch) ClearDomainEvents() {
	b.DomainEvents = nil
}

// GetDomainEvents returns all domain events
func (b *PickingBatch) GetDomainEvents() []DomainEvent {
	return b.DomainEvents
}
