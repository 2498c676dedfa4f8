package application

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wms-platform/picking-engine/internal/domain"
	"github.com/wms-platform/picking-engine/pkg/errors"
	"github.com/wms-platform/picking-engine/pkg/logging"
	"github.com/wms-platform/picking-engine/pkg/metrics"
	"github.com/wms-platform/picking-engine/pkg/resilience"
	"github.com/wms-platform/picking-engine/pkg/tracing"
)

// Listing bounds
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ServiceConfig tunes the picking service
type ServiceConfig struct {
	MaxOrdersPerBatch int
	// IDGenerator names new batches. Nil uses domain.NewBatchID.
	IDGenerator domain.IDGenerator
	// ConflictRetry bounds reload-and-reapply attempts after a concurrent write
	ConflictRetry *resilience.RetryConfig
}

// DefaultServiceConfig returns sensible defaults
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxOrdersPerBatch: domain.DefaultMaxOrdersPerBatch,
		ConflictRetry:     resilience.DefaultRetryConfig(),
	}
}

// PickingService handles batch formation, routing and pick progress use cases
type PickingService struct {
	repo    domain.BatchRepository
	orders  domain.OrderSource
	config  ServiceConfig
	logger  *logging.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// NewPickingService creates a new PickingService. orders and m may be nil.
func NewPickingService(
	repo domain.BatchRepository,
	orders domain.OrderSource,
	logger *logging.Logger,
	m *metrics.Metrics,
	config ServiceConfig,
) *PickingService {
	if config.MaxOrdersPerBatch <= 0 {
		config.MaxOrdersPerBatch = domain.DefaultMaxOrdersPerBatch
	}
	if config.ConflictRetry == nil {
		config.ConflictRetry = resilience.DefaultRetryConfig()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &PickingService{
		repo:    repo,
		orders:  orders,
		config:  config,
		logger:  logger.WithComponent("picking-service"),
		metrics: m,
		tracer:  otel.Tracer("picking-service"),
	}
}

// FormBatches groups pending orders into new batches and persists them.
// Orders already held by a stored batch are skipped, so rebuilding the queue
// or retrying after a partial save never puts an order in two batches.
func (s *PickingService) FormBatches(ctx context.Context, cmd FormBatchesCommand) (*FormBatchesResult, error) {
	return tracing.Traced(ctx, s.tracer, "PickingService.FormBatches", func(ctx context.Context) (*FormBatchesResult, error) {
		orders := cmd.Orders
		if len(orders) == 0 && s.orders != nil {
			fetched, err := s.orders.ListPendingOrders(ctx)
			if err != nil {
				s.logger.WithContext(ctx).WithError(err).Error("Failed to fetch pending orders")
				return nil, errors.ErrServiceUnavailable("order service").Wrap(err)
			}
			orders = fetched
		}

		maxOrders := cmd.MaxOrdersPerBatch
		if maxOrders <= 0 {
			maxOrders = s.config.MaxOrdersPerBatch
		}

		orders, skipped, err := s.withoutBatchedOrders(ctx, orders)
		if err != nil {
			return nil, err
		}

		batches := domain.NewBatchFormer(maxOrders, s.config.IDGenerator).FormBatches(orders)

		orderCount := 0
		for _, batch := range batches {
			if err := s.repo.Save(ctx, batch); err != nil {
				s.logger.WithContext(ctx).WithError(err).Error("Failed to save picking batch", "batchId", batch.BatchID)
				return nil, fmt.Errorf("failed to save picking batch %s: %w", batch.BatchID, err)
			}
			orderCount += len(batch.OrderIDs)
			if s.metrics != nil {
				s.metrics.RecordBatchFormed(len(batch.OrderIDs))
			}
		}

		s.logger.Event(ctx, "batches.formed", map[string]any{
			"batchCount":        len(batches),
			"orderCount":        orderCount,
			"maxOrdersPerBatch": maxOrders,
			"skippedOrders":     len(skipped),
		})

		return &FormBatchesResult{Batches: ToBatchDTOs(batches), OrderCount: orderCount, SkippedOrderIDs: skipped}, nil
	}, attribute.Int("wms.order_count", len(cmd.Orders)))
}

// withoutBatchedOrders drops orders whose id already belongs to a stored batch
func (s *PickingService) withoutBatchedOrders(ctx context.Context, orders []domain.Order) ([]domain.Order, []string, error) {
	if len(orders) == 0 {
		return orders, nil, nil
	}
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}

	held, err := s.repo.FindByOrderIDs(ctx, ids)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to look up batched orders")
		return nil, nil, fmt.Errorf("failed to look up batched orders: %w", err)
	}
	if len(held) == 0 {
		return orders, nil, nil
	}

	batched := make(map[string]bool)
	for _, batch := range held {
		for _, id := range batch.OrderIDs {
			batched[id] = true
		}
	}

	remaining := make([]domain.Order, 0, len(orders))
	var skipped []string
	for _, o := range orders {
		if batched[o.ID] {
			if !slices.Contains(skipped, o.ID) {
				skipped = append(skipped, o.ID)
			}
			continue
		}
		remaining = append(remaining, o)
	}
	return remaining, skipped, nil
}

// GetBatch retrieves a batch by ID
func (s *PickingService) GetBatch(ctx context.Context, query GetBatchQuery) (*BatchDTO, error) {
	batch, err := s.loadBatch(ctx, query.BatchID)
	if err != nil {
		return nil, err
	}
	return ToBatchDTO(batch), nil
}

// ListBatches lists batches newest first, filtered by status and a free-text search
func (s *PickingService) ListBatches(ctx context.Context, query ListBatchesQuery) (*BatchListDTO, error) {
	status := domain.BatchStatus(strings.TrimSpace(query.Status))
	if status != "" && !status.IsValid() {
		return nil, errors.ErrValidationWithFields("invalid batch status", map[string]string{
			"status": "must be one of pending, in_progress, completed",
		})
	}

	limit := query.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := query.Offset
	if offset < 0 {
		offset = 0
	}

	batches, err := s.repo.Find(ctx, domain.BatchFilter{
		Status: status,
		Search: query.Search,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to list picking batches")
		return nil, fmt.Errorf("failed to list picking batches: %w", err)
	}

	dtos := ToBatchDTOs(batches)
	return &BatchListDTO{Batches: dtos, Count: len(dtos), Limit: limit, Offset: offset}, nil
}

// GetRoute sequences a batch's locations and returns its items in walking order
func (s *PickingService) GetRoute(ctx context.Context, query GetRouteQuery) (*RouteDTO, error) {
	return tracing.Traced(ctx, s.tracer, "PickingService.GetRoute", func(ctx context.Context) (*RouteDTO, error) {
		batch, err := s.loadBatch(ctx, query.BatchID)
		if err != nil {
			return nil, err
		}

		route, err := domain.OptimizeRoute(batch)
		if err != nil {
			if s.metrics != nil {
				s.metrics.RecordRouteFailure("invalid_location")
			}
			s.logger.WithContext(ctx).WithError(err).Warn("Route rejected", "batchId", batch.BatchID)
			return nil, err
		}

		if s.metrics != nil {
			s.metrics.RecordRouteDistance(route.TotalDistance)
		}
		return ToRouteDTO(batch, route), nil
	}, tracing.BatchAttributes(query.BatchID)...)
}

// PreviewRoute sequences free-standing location codes without a batch.
// Repeated and blank codes are dropped before sequencing.
func (s *PickingService) PreviewRoute(ctx context.Context, query PreviewRouteQuery) (*PickingRouteDTO, error) {
	locations := domain.DistinctLocationCodes(query.Locations)
	if len(locations) == 0 {
		return nil, errors.ErrValidationWithFields("at least one location is required", map[string]string{
			"locations": "must contain at least one location code",
		})
	}

	route, err := domain.OptimizeLocations(locations)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordRouteFailure("invalid_location")
		}
		return nil, err
	}
	return &PickingRouteDTO{OrderedLocations: route.OrderedLocations, TotalDistance: route.TotalDistance}, nil
}

// StartBatch starts a pending batch; other statuses are returned unchanged
func (s *PickingService) StartBatch(ctx context.Context, cmd StartBatchCommand) (*BatchDTO, error) {
	batch, err := s.mutate(ctx, "start", cmd.BatchID, func(b *domain.PickingBatch) error {
		b.StartOrResume()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).Info("Started picking batch", "batchId", cmd.BatchID, "status", batch.Status)
	return ToBatchDTO(batch), nil
}

// AssignBatch assigns a batch to a picker
func (s *PickingService) AssignBatch(ctx context.Context, cmd AssignBatchCommand) (*BatchDTO, error) {
	batch, err := s.mutate(ctx, "assign", cmd.BatchID, func(b *domain.PickingBatch) error {
		return b.Assign(cmd.PickerID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Event(ctx, "batch.assigned", map[string]any{
		"batchId":  cmd.BatchID,
		"pickerId": batch.AssignedTo,
	})
	return ToBatchDTO(batch), nil
}

// MarkItemPicked confirms a product's full quantity was picked. Concurrent confirmations on
// the same batch are reapplied to the latest stored copy so none is lost.
func (s *PickingService) MarkItemPicked(ctx context.Context, cmd MarkItemPickedCommand) (*MarkItemPickedResult, error) {
	return tracing.Traced(ctx, s.tracer, "PickingService.MarkItemPicked", func(ctx context.Context) (*MarkItemPickedResult, error) {
		var (
			changed   bool
			units     int
			completed bool
		)

		batch, err := s.mutate(ctx, "mark_item_picked", cmd.BatchID, func(b *domain.PickingBatch) error {
			item, ok := b.Item(cmd.ProductID)
			if !ok {
				return fmt.Errorf("%w: %s", domain.ErrItemNotInBatch, cmd.ProductID)
			}
			wasCompleted := b.Status == domain.BatchStatusCompleted

			var err error
			changed, err = b.MarkItemPicked(cmd.ProductID)
			if err != nil {
				return err
			}
			units = item.Remaining()
			completed = !wasCompleted && b.Status == domain.BatchStatusCompleted
			return nil
		})
		if err != nil {
			return nil, err
		}

		if changed {
			if s.metrics != nil {
				s.metrics.RecordItemPicked(units)
				if completed {
					s.metrics.RecordBatchCompleted()
				}
			}
			s.logger.Event(ctx, "item.picked", map[string]any{
				"batchId":   cmd.BatchID,
				"productId": cmd.ProductID,
				"units":     units,
				"status":    string(batch.Status),
			})
		}

		return &MarkItemPickedResult{Batch: ToBatchDTO(batch), Changed: changed}, nil
	}, append(tracing.BatchAttributes(cmd.BatchID), attribute.String("wms.product_id", cmd.ProductID))...)
}

// ArchiveBatch removes a completed batch from the store
func (s *PickingService) ArchiveBatch(ctx context.Context, cmd ArchiveBatchCommand) error {
	batch, err := s.loadBatch(ctx, cmd.BatchID)
	if err != nil {
		return err
	}
	if err := batch.EnsureArchivable(); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, cmd.BatchID); err != nil {
		return fmt.Errorf("failed to archive picking batch %s: %w", cmd.BatchID, err)
	}

	s.logger.WithContext(ctx).WithBatch(cmd.BatchID).Info("Archived picking batch")
	return nil
}

func (s *PickingService) loadBatch(ctx context.Context, batchID string) (*domain.PickingBatch, error) {
	batch, err := s.repo.FindByID(ctx, batchID)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to get picking batch", "batchId", batchID)
		return nil, fmt.Errorf("failed to get picking batch: %w", err)
	}
	if batch == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrBatchNotFound, batchID)
	}
	return batch, nil
}

// mutate loads the batch, applies change and saves it. A lost compare-and-swap reloads
// and reapplies change up to the configured attempts. A change that raises no domain
// event is not written.
func (s *PickingService) mutate(ctx context.Context, operation, batchID string, change func(*domain.PickingBatch) error) (*domain.PickingBatch, error) {
	retry := *s.config.ConflictRetry
	retry.Retryable = func(err error) bool {
		return stderrors.Is(err, domain.ErrConcurrentModification)
	}

	return resilience.Retry(ctx, &retry, func(ctx context.Context) (*domain.PickingBatch, error) {
		batch, err := s.loadBatch(ctx, batchID)
		if err != nil {
			return nil, err
		}
		if err := change(batch); err != nil {
			return nil, err
		}
		if len(batch.GetDomainEvents()) == 0 {
			return batch, nil
		}

		if err := s.repo.Save(ctx, batch); err != nil {
			if stderrors.Is(err, domain.ErrConcurrentModification) {
				if s.metrics != nil {
					s.metrics.RecordConcurrencyConflict(operation)
				}
				s.logger.WithContext(ctx).Warn("Concurrent batch update, reapplying", "batchId", batchID, "operation", operation)
				return nil, err
			}
			s.logger.WithContext(ctx).WithError(err).Error("Failed to save picking batch", "batchId", batchID)
			return nil, fmt.Errorf("failed to save picking batch: %w", err)
		}
		return batch, nil
	})
}
