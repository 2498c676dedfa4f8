package outbox

import "context"

// Repository persists outbox events
type Repository interface {
	// Save stores a single event
	Save(ctx context.Context, event *OutboxEvent) error

	// SaveAll stores events in one write
	SaveAll(ctx context.Context, events []*OutboxEvent) error

	// FindUnpublished returns the oldest retryable events, up to limit
	FindUnpublished(ctx context.Context, limit int) ([]*OutboxEvent, error)

	// MarkPublished stamps the event as delivered
	MarkPublished(ctx context.Context, eventID string) error

	// MarkDeadLettered stamps the event as delivered to the dead letter topic
	MarkDeadLettered(ctx context.Context, eventID string, errorMsg string) error

	// IncrementRetry bumps the retry count and records the last error
	IncrementRetry(ctx context.Context, eventID string, errorMsg string) error

	// CountPending returns the number of events still waiting for delivery
	CountPending(ctx context.Context) (int64, error)

	// FindByAggregateID returns every event of one aggregate, oldest first
	FindByAggregateID(ctx context.Context, aggregateID string) ([]*OutboxEvent, error)
}
