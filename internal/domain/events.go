package domain

import "time"

// Event types
const (
	EventTypeBatchCreated   = "wms.picking.batch-created"
	EventTypeBatchAssigned  = "wms.picking.batch-assigned"
	EventTypeBatchStarted   = "wms.picking.batch-started"
	EventTypeItemPicked     = "wms.picking.item-picked"
	EventTypeBatchCompleted = "wms.picking.batch-completed"
)

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// BatchCreatedEvent is raised when orders are grouped into a new batch
type BatchCreatedEvent struct {
	BatchID    string    `json:"batchId"`
	OrderIDs   []string  `json:"orderIds"`
	ItemCount  int       `json:"itemCount"`
	TotalUnits int       `json:"totalUnits"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (e *BatchCreatedEvent) EventType() string    { return EventTypeBatchCreated }
func (e *BatchCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }

// BatchAssignedEvent is raised when a picker takes a batch
type BatchAssignedEvent struct {
	BatchID          string    `json:"batchId"`
	PickerID         string    `json:"pickerId"`
	PreviousPickerID string    `json:"previousPickerId,omitempty"`
	AssignedAt       time.Time `json:"assignedAt"`
}

func (e *BatchAssignedEvent) EventType() string    { return EventTypeBatchAssigned }
func (e *BatchAssignedEvent) OccurredAt() time.Time { return e.AssignedAt }

// BatchStartedEvent is raised when a batch leaves pending
type BatchStartedEvent struct {
	BatchID    string    `json:"batchId"`
	AssignedTo string    `json:"assignedTo,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
}

func (e *BatchStartedEvent) EventType() string    { return EventTypeBatchStarted }
func (e *BatchStartedEvent) OccurredAt() time.Time { return e.StartedAt }

// ItemPickedEvent is raised when an item's full quantity is picked
type ItemPickedEvent struct {
	BatchID      string    `json:"batchId"`
	ProductID    string    `json:"productId"`
	LocationCode string    `json:"locationCode"`
	Quantity     int       `json:"quantity"`
	PickedBy     string    `json:"pickedBy,omitempty"`
	PickedAt     time.Time `json:"pickedAt"`
}

func (e *ItemPickedEvent) EventType() string    { return EventTypeItemPicked }
func (e *ItemPickedEvent) OccurredAt() time.Time { return e.PickedAt }

// BatchCompletedEvent is raised when every item of a batch is picked
type BatchCompletedEvent struct {
	BatchID     string    `json:"batchId"`
	OrderIDs    []string  `json:"orderIds"`
	PickedBy    string    `json:"pickedBy,omitempty"`
	TotalUnits  int       `json:"totalUnits"`
	CompletedAt time.Time `json:"completedAt"`
}

func (e *BatchCompletedEvent) EventType() string    { return EventTypeBatchCompleted }
func (e *BatchCompletedEvent) OccurredAt() time.Time { return e.CompletedAt }
