package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/picking-engine/internal/domain"
	"github.com/wms-platform/picking-engine/pkg/cloudevents"
	"github.com/wms-platform/picking-engine/pkg/kafka"
	"github.com/wms-platform/picking-engine/pkg/mongodb"
	"github.com/wms-platform/picking-engine/pkg/outbox"
	outboxMongo "github.com/wms-platform/picking-engine/pkg/outbox/mongodb"
)

// CollectionName is the collection holding picking batches
const CollectionName = "picking_batches"

// AggregateType tags outbox events written by this repository
const AggregateType = "PickingBatch"

// BatchRepository implements domain.BatchRepository on MongoDB.
// Every save writes the batch and its pending domain events in one transaction.
type BatchRepository struct {
	client       *mongodb.Client
	collection   *mongo.Collection
	outboxRepo   *outboxMongo.OutboxRepository
	eventFactory *cloudevents.EventFactory
	instr        *mongodb.Instrumentation
}

// NewBatchRepository creates the repository. instr may be nil.
func NewBatchRepository(client *mongodb.Client, eventFactory *cloudevents.EventFactory, instr *mongodb.Instrumentation) *BatchRepository {
	if instr == nil {
		instr = mongodb.NewInstrumentation(client.DatabaseName(), nil, nil)
	}
	db := client.Database()
	return &BatchRepository{
		client:       client,
		collection:   db.Collection(CollectionName),
		outboxRepo:   outboxMongo.NewOutboxRepository(db),
		eventFactory: eventFactory,
		instr:        instr,
	}
}

// OutboxRepository exposes the outbox the repository writes to, for the relay
func (r *BatchRepository) OutboxRepository() *outboxMongo.OutboxRepository {
	return r.outboxRepo
}

// EnsureIndexes creates the batch and outbox indexes
func (r *BatchRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "batchId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "orderIds", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create batch indexes: %w", err)
	}
	return r.outboxRepo.EnsureIndexes(ctx)
}

// Save inserts a new batch (Version 0) or replaces the stored copy if it is still at
// batch.Version. The batch leaves with the new version and no pending events.
func (r *BatchRepository) Save(ctx context.Context, batch *domain.PickingBatch) error {
	next := batch.Version + 1

	return r.instr.Observe(ctx, CollectionName, "save", func(ctx context.Context) error {
		err := r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			doc := *batch
			doc.Version = next

			if batch.Version == 0 {
				if _, err := r.collection.InsertOne(sessCtx, &doc); err != nil {
					if mongo.IsDuplicateKeyError(err) {
						return domain.ErrConcurrentModification
					}
					return fmt.Errorf("failed to insert batch: %w", err)
				}
			} else {
				filter := bson.M{"batchId": batch.BatchID, "version": batch.Version}
				result, err := r.collection.ReplaceOne(sessCtx, filter, &doc)
				if err != nil {
					return fmt.Errorf("failed to replace batch: %w", err)
				}
				if result.MatchedCount == 0 {
					return domain.ErrConcurrentModification
				}
			}

			return r.stageEvents(sessCtx, batch)
		})
		if err != nil {
			return err
		}

		batch.Version = next
		batch.ClearDomainEvents()
		return nil
	})
}

func (r *BatchRepository) stageEvents(ctx context.Context, batch *domain.PickingBatch) error {
	events := batch.GetDomainEvents()
	if len(events) == 0 {
		return nil
	}

	staged := make([]*outbox.OutboxEvent, 0, len(events))
	for _, event := range events {
		cloudEvent := r.eventFactory.CreateBatchEvent(ctx, event.EventType(), batch.BatchID, event)
		outboxEvent, err := outbox.NewOutboxEventFromCloudEvent(batch.BatchID, AggregateType, kafka.Topics.PickingBatches, cloudEvent)
		if err != nil {
			return fmt.Errorf("failed to create outbox event: %w", err)
		}
		staged = append(staged, outboxEvent)
	}
	return r.outboxRepo.SaveAll(ctx, staged)
}

// FindByID returns the batch, or nil when it does not exist
func (r *BatchRepository) FindByID(ctx context.Context, batchID string) (*domain.PickingBatch, error) {
	var batch domain.PickingBatch
	err := r.instr.Observe(ctx, CollectionName, "find_one", func(ctx context.Context) error {
		return r.collection.FindOne(ctx, bson.M{"batchId": batchID}).Decode(&batch)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find batch %s: %w", batchID, err)
	}
	return &batch, nil
}

// FindByStatus returns every batch in status, newest first
func (r *BatchRepository) FindByStatus(ctx context.Context, status domain.BatchStatus) ([]*domain.PickingBatch, error) {
	return r.Find(ctx, domain.BatchFilter{Status: status})
}

// Find lists batches matching filter, newest first
func (r *BatchRepository) Find(ctx context.Context, filter domain.BatchFilter) ([]*domain.PickingBatch, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "batchId", Value: -1}})
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	batches := []*domain.PickingBatch{}
	err := r.instr.Observe(ctx, CollectionName, "find", func(ctx context.Context) error {
		cursor, err := r.collection.Find(ctx, buildFilter(filter), opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &batches)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	return batches, nil
}

// FindByOrderIDs returns the batches whose orderIds intersect orderIDs
func (r *BatchRepository) FindByOrderIDs(ctx context.Context, orderIDs []string) ([]*domain.PickingBatch, error) {
	batches := []*domain.PickingBatch{}
	if len(orderIDs) == 0 {
		return batches, nil
	}
	err := r.instr.Observe(ctx, CollectionName, "find_by_order_ids", func(ctx context.Context) error {
		cursor, err := r.collection.Find(ctx, bson.M{"orderIds": bson.M{"$in": orderIDs}})
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &batches)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find batches by order ids: %w", err)
	}
	return batches, nil
}

// buildFilter mirrors PickingBatch.Matches: a case-insensitive substring of the
// batch id, an order id or a product name
func buildFilter(filter domain.BatchFilter) bson.M {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		pattern := containsPattern(term)
		query["$or"] = bson.A{
			bson.M{"batchId": pattern},
			bson.M{"orderIds": pattern},
			bson.M{"items.productName": pattern},
		}
	}
	return query
}

func containsPattern(term string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(term), "$options": "i"}
}

// Delete removes a batch. Its outbox history is kept.
func (r *BatchRepository) Delete(ctx context.Context, batchID string) error {
	var deleted int64
	err := r.instr.Observe(ctx, CollectionName, "delete", func(ctx context.Context) error {
		result, err := r.collection.DeleteOne(ctx, bson.M{"batchId": batchID})
		if err != nil {
			return err
		}
		deleted = result.DeletedCount
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete batch %s: %w", batchID, err)
	}
	if deleted == 0 {
		return domain.ErrBatchNotFound
	}
	return nil
}
