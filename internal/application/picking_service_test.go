package application

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/picking-engine/internal/domain"
	"github.com/wms-platform/picking-engine/pkg/errors"
	"github.com/wms-platform/picking-engine/pkg/logging"
	"github.com/wms-platform/picking-engine/pkg/metrics"
	"github.com/wms-platform/picking-engine/pkg/resilience"
)

// memoryRepo is a BatchRepository with the same compare-and-swap contract as the Mongo store
type memoryRepo struct {
	mu      sync.Mutex
	batches map[string]*domain.PickingBatch
	order   []string
	saves   int
	saveErr error

	// beforeSave runs under the lock ahead of the version check
	beforeSave func(stored *domain.PickingBatch)
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{batches: make(map[string]*domain.PickingBatch)}
}

func cloneBatch(b *domain.PickingBatch) *domain.PickingBatch {
	c := *b
	c.OrderIDs = append([]string{}, b.OrderIDs...)
	c.Items = make([]domain.PickingItem, len(b.Items))
	for i, item := range b.Items {
		item.PerOrder = append([]domain.OrderQuantity{}, item.PerOrder...)
		c.Items[i] = item
	}
	c.DomainEvents = nil
	return &c
}

func (r *memoryRepo) Save(_ context.Context, batch *domain.PickingBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.saveErr != nil {
		return r.saveErr
	}

	stored, exists := r.batches[batch.BatchID]
	if exists && r.beforeSave != nil {
		hook := r.beforeSave
		r.beforeSave = nil
		hook(stored)
	}

	switch {
	case batch.Version == 0 && exists:
		return domain.ErrConcurrentModification
	case batch.Version > 0 && (!exists || stored.Version != batch.Version):
		return domain.ErrConcurrentModification
	}

	batch.Version++
	batch.ClearDomainEvents()
	if !exists {
		r.order = append(r.order, batch.BatchID)
	}
	r.batches[batch.BatchID] = cloneBatch(batch)
	r.saves++
	return nil
}

func (r *memoryRepo) FindByID(_ context.Context, batchID string) (*domain.PickingBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.batches[batchID]; ok {
		return cloneBatch(b), nil
	}
	return nil, nil
}

func (r *memoryRepo) FindByStatus(ctx context.Context, status domain.BatchStatus) ([]*domain.PickingBatch, error) {
	return r.Find(ctx, domain.BatchFilter{Status: status})
}

func (r *memoryRepo) Find(_ context.Context, filter domain.BatchFilter) ([]*domain.PickingBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := []*domain.PickingBatch{}
	for i := len(r.order) - 1; i >= 0; i-- {
		b, ok := r.batches[r.order[i]]
		if !ok {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if !b.Matches(filter.Search) {
			continue
		}
		result = append(result, cloneBatch(b))
	}
	if filter.Offset >= len(result) {
		return []*domain.PickingBatch{}, nil
	}
	result = result[filter.Offset:]
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r *memoryRepo) FindByOrderIDs(_ context.Context, orderIDs []string) ([]*domain.PickingBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := []*domain.PickingBatch{}
	for _, id := range r.order {
		b, ok := r.batches[id]
		if !ok {
			continue
		}
		for _, orderID := range b.OrderIDs {
			if slices.Contains(orderIDs, orderID) {
				result = append(result, cloneBatch(b))
				break
			}
		}
	}
	return result, nil
}

func (r *memoryRepo) Delete(_ context.Context, batchID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.batches[batchID]; !ok {
		return domain.ErrBatchNotFound
	}
	delete(r.batches, batchID)
	return nil
}

type mockOrderSource struct {
	mock.Mock
}

func (m *mockOrderSource) ListPendingOrders(ctx context.Context) ([]domain.Order, error) {
	args := m.Called(ctx)
	orders, _ := args.Get(0).([]domain.Order)
	return orders, args.Error(1)
}

func testLogger() *logging.Logger {
	cfg := logging.DefaultConfig("picking-engine-test")
	cfg.Level = logging.LogLevel("error")
	return logging.New(cfg)
}

func sequentialIDs() domain.IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("batch-%d", n)
	}
}

func newTestService(repo domain.BatchRepository, orders domain.OrderSource) *PickingService {
	config := DefaultServiceConfig()
	config.IDGenerator = sequentialIDs()
	config.ConflictRetry = &resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}
	return NewPickingService(repo, orders, testLogger(), metrics.New(metrics.DefaultConfig("picking-engine-test")), config)
}

func order(id string, lines ...domain.OrderLine) domain.Order {
	return domain.Order{ID: id, Status: domain.OrderStatusPending, Lines: lines}
}

func line(productID string, qty int, location string) domain.OrderLine {
	return domain.OrderLine{ProductID: productID, ProductName: "Product " + productID, Quantity: qty, LocationCode: location}
}

func seedBatch(t *testing.T, repo *memoryRepo, id string, orders ...domain.Order) {
	t.Helper()
	batch, err := domain.NewPickingBatch(id, orders)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), batch))
}

func appErrorCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	return errors.MapDomainError(err).Code
}

func TestFormBatches_FromCommand(t *testing.T) {
	repo := newMemoryRepo()
	service := newTestService(repo, nil)

	result, err := service.FormBatches(context.Background(), FormBatchesCommand{
		Orders: []domain.Order{
			order("O1", line("p1", 2, "A1-B2")),
			order("O2", line("p1", 1, "A1-B2")),
			order("O3", line("p9", 1, "C4-D1")),
			{ID: "O4", Status: domain.OrderStatusShipped, Lines: []domain.OrderLine{line("p1", 1, "A1-B2")}},
		},
	})

	require.NoError(t, err)
	require.Len(t, result.Batches, 2)
	assert.Equal(t, 3, result.OrderCount)

	first := result.Batches[0]
	assert.Equal(t, "batch-1", first.BatchID)
	assert.Equal(t, []string{"O1", "O2"}, first.OrderIDs)
	require.Len(t, first.Items, 1)
	assert.Equal(t, 3, first.Items[0].TotalQuantity)
	assert.Equal(t, []OrderQuantityDTO{{"O1", 2}, {"O2", 1}}, first.Items[0].Orders)
	assert.Equal(t, "pending", first.Status)
	assert.Equal(t, int64(1), first.Version)

	assert.Equal(t, 2, repo.saves)
}

func TestFormBatches_RespectsMaxOrdersPerBatch(t *testing.T) {
	repo := newMemoryRepo()
	service := newTestService(repo, nil)

	orders := []domain.Order{}
	for _, id := range []string{"O1", "O2", "O3", "O4", "O5", "O6", "O7"} {
		orders = append(orders, order(id, line("p1", 1, "A1-B1")))
	}

	result, err := service.FormBatches(context.Background(), FormBatchesCommand{Orders: orders, MaxOrdersPerBatch: 3})

	require.NoError(t, err)
	require.Len(t, result.Batches, 3)
	for _, b := range result.Batches {
		assert.LessOrEqual(t, len(b.OrderIDs), 3)
	}
}

func TestFormBatches_FromOrderSource(t *testing.T) {
	tests := []struct {
		name        string
		orders      []domain.Order
		sourceErr   error
		wantBatches int
		wantCode    string
	}{
		{
			name:        "fetches pending orders",
			orders:      []domain.Order{order("O1", line("p1", 1, "A1-B1")), order("O2", line("p2", 1, "A2-B1"))},
			wantBatches: 2,
		},
		{
			name:        "no pending orders",
			orders:      []domain.Order{},
			wantBatches: 0,
		},
		{
			name:      "order service down",
			sourceErr: stderrors.New("connection refused"),
			wantCode:  errors.CodeServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &mockOrderSource{}
			source.On("ListPendingOrders", mock.Anything).Return(tt.orders, tt.sourceErr).Once()
			service := newTestService(newMemoryRepo(), source)

			result, err := service.FormBatches(context.Background(), FormBatchesCommand{})

			source.AssertExpectations(t)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, appErrorCode(t, err))
				return
			}
			require.NoError(t, err)
			assert.Len(t, result.Batches, tt.wantBatches)
		})
	}
}

func TestFormBatches_RebuildSkipsBatchedOrders(t *testing.T) {
	repo := newMemoryRepo()
	service := newTestService(repo, nil)
	ctx := context.Background()

	first, err := service.FormBatches(ctx, FormBatchesCommand{
		Orders: []domain.Order{order("O1", line("p1", 2, "A1-B2"))},
	})
	require.NoError(t, err)
	require.Len(t, first.Batches, 1)

	second, err := service.FormBatches(ctx, FormBatchesCommand{
		Orders: []domain.Order{
			order("O1", line("p1", 2, "A1-B2")),
			order("O2", line("p1", 1, "A1-B2")),
		},
	})
	require.NoError(t, err)
	require.Len(t, second.Batches, 1)
	assert.Equal(t, []string{"O2"}, second.Batches[0].OrderIDs)
	assert.Equal(t, 1, second.OrderCount)
	assert.Equal(t, []string{"O1"}, second.SkippedOrderIDs)

	holding, err := repo.FindByOrderIDs(ctx, []string{"O1"})
	require.NoError(t, err)
	assert.Len(t, holding, 1)

	third, err := service.FormBatches(ctx, FormBatchesCommand{
		Orders: []domain.Order{order("O1", line("p1", 2, "A1-B2")), order("O2", line("p1", 1, "A1-B2"))},
	})
	require.NoError(t, err)
	assert.Empty(t, third.Batches)
	assert.Equal(t, []string{"O1", "O2"}, third.SkippedOrderIDs)
	assert.Len(t, repo.batches, 2)
}

func TestFormBatches_SaveFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.saveErr = stderrors.New("disk full")
	service := newTestService(repo, nil)

	_, err := service.FormBatches(context.Background(), FormBatchesCommand{
		Orders: []domain.Order{order("O1", line("p1", 1, "A1-B1"))},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestGetBatch(t *testing.T) {
	repo := newMemoryRepo()
	seedBatch(t, repo, "batch-1", order("O1", line("p1", 4, "A1-B1")))
	service := newTestService(repo, nil)

	dto, err := service.GetBatch(context.Background(), GetBatchQuery{BatchID: "batch-1"})
	require.NoError(t, err)
	assert.Equal(t, ProgressDTO{PickedUnits: 0, TotalUnits: 4, Percent: 0}, dto.Progress)

	_, err = service.GetBatch(context.Background(), GetBatchQuery{BatchID: "missing"})
	assert.Equal(t, errors.CodeNotFound, appErrorCode(t, err))
}

func TestListBatches(t *testing.T) {
	repo := newMemoryRepo()
	seedBatch(t, repo, "batch-1", order("O1", line("p1", 1, "A1-B1")))
	seedBatch(t, repo, "batch-2", order("O2", domain.OrderLine{ProductID: "p2", ProductName: "Red Gadget", Quantity: 1, LocationCode: "A2-B1"}))
	seedBatch(t, repo, "batch-3", order("O3", line("p3", 1, "A3-B1")))
	service := newTestService(repo, nil)

	_, err := service.StartBatch(context.Background(), StartBatchCommand{BatchID: "batch-3"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		query    ListBatchesQuery
		wantIDs  []string
		wantCode string
	}{
		{name: "all newest first", query: ListBatchesQuery{}, wantIDs: []string{"batch-3", "batch-2", "batch-1"}},
		{name: "status filter", query: ListBatchesQuery{Status: "in_progress"}, wantIDs: []string{"batch-3"}},
		{name: "search by product name", query: ListBatchesQuery{Search: "gadget"}, wantIDs: []string{"batch-2"}},
		{name: "search by order id", query: ListBatchesQuery{Search: "o1"}, wantIDs: []string{"batch-1"}},
		{name: "paged", query: ListBatchesQuery{Limit: 1, Offset: 1}, wantIDs: []string{"batch-2"}},
		{name: "unknown status", query: ListBatchesQuery{Status: "cancelled"}, wantCode: errors.CodeValidationError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := service.ListBatches(context.Background(), tt.query)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, appErrorCode(t, err))
				return
			}
			require.NoError(t, err)
			ids := []string{}
			for _, b := range list.Batches {
				ids = append(ids, b.BatchID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, len(ids), list.Count)
		})
	}
}

func TestListBatches_ClampsLimit(t *testing.T) {
	service := newTestService(newMemoryRepo(), nil)

	list, err := service.ListBatches(context.Background(), ListBatchesQuery{Limit: 1000, Offset: -5})

	require.NoError(t, err)
	assert.Equal(t, MaxListLimit, list.Limit)
	assert.Equal(t, 0, list.Offset)
	assert.NotNil(t, list.Batches)
}

func TestGetRoute(t *testing.T) {
	repo := newMemoryRepo()
	seedBatch(t, repo, "batch-1",
		order("O1", line("p1", 1, "A1-B1"), line("p2", 1, "A5-B5")),
		order("O2", line("p1", 1, "A1-B1"), line("p3", 1, "A2-B1")),
	)
	service := newTestService(repo, nil)

	route, err := service.GetRoute(context.Background(), GetRouteQuery{BatchID: "batch-1"})

	require.NoError(t, err)
	assert.Equal(t, []string{"A1-B1", "A2-B1", "A5-B5"}, route.OrderedLocations)
	assert.Equal(t, 1+7, route.TotalDistance)
	require.Len(t, route.Items, 3)
	assert.Equal(t, "p1", route.Items[0].ProductID)
	assert.Equal(t, "p3", route.Items[1].ProductID)
	assert.Equal(t, "p2", route.Items[2].ProductID)
}

func TestGetRoute_InvalidLocation(t *testing.T) {
	repo := newMemoryRepo()
	seedBatch(t, repo, "batch-1", order("O1", line("p1", 1, "A1-B1"), line("p2", 1, "DOCK")))
	service := newTestService(repo, nil)

	_, err := service.GetRoute(context.Background(), GetRouteQuery{BatchID: "batch-1"})

	assert.ErrorIs(t, err, domain.ErrInvalidLocationCode)
	assert.Equal(t, errors.CodeValidationError, appErrorCode(t, err))
	assert.Contains(t, err.Error(), "DOCK")
}

func TestPreviewRoute(t *testing.T) {
	service := newTestService(newMemoryRepo(), nil)

	tests := []struct {
		name      string
		locations []string
		wantPath  []string
		wantDist  int
		wantCode  string
	}{
		{name: "single location", locations: []string{"A1-B1"}, wantPath: []string{"A1-B1"}, wantDist: 0},
		{name: "duplicates dropped", locations: []string{"A1-B1", "A3-B1", "A1-B1", " A2-B1 "}, wantPath: []string{"A1-B1", "A2-B1", "A3-B1"}, wantDist: 2},
		{name: "empty", locations: []string{" "}, wantCode: errors.CodeValidationError},
		{name: "malformed", locations: []string{"A1-B1", "X-Y"}, wantCode: errors.CodeValidationError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route, err := service.PreviewRoute(context.Background(), PreviewRouteQuery{Locations: tt.locations})
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, appErrorCode(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, route.OrderedLocations)
			assert.Equal(t, tt.wantDist, route.TotalDistance)
		})
	}
}

func TestStartBatch(t *testing.T) {
	repo := newMemoryRepo()
	seedBatch(t, repo, "batch-1", order("O1", line("p1", 1, "A1-B1")))
	service := newTestService(repo, nil)

	dto, err := service.StartBatch(context.Background(), StartBatchCommand{BatchID: "batch-1"})
	require.NoError(t, err)
	assert.Equal(t, "in_progress", dto.Status)
	assert.NotNil(t, dto.StartedAt)
	assert.Equal(t, int64(2), dto.Version)

	// resuming writes nothing
	dto, err = service.StartBatch(context.Background(), StartBatchCommand{BatchID: "batch-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), dto.Version)
	assert.Equal(t, 2, repo.saves)
}

func TestAssignBatch(t *testing.T) {
	repo := newMemoryRepo()
	seedBatch(t, repo, "batch-1", order("O1", line("p1", 1, "A1-B1")))
	service := newTestService(repo, nil)

	tests := []struct {
		name     string
		batchID  string
		pickerID string
		wantCode string
	}{
		{name: "assigns", batchID: "batch-1", pickerID: "picker-7"},
		{name: "blank picker", batchID: "batch-1", pickerID: "  ", wantCode: errors.CodeValidationError},
		{name: "unknown batch", batchID: "batch-x", pickerID: "picker-7", wantCode: errors.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dto, err := service.AssignBatch(context.Background(), AssignBatchCommand{BatchID: tt.batchID, PickerID: tt.pickerID})
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, appErrorCode(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.pickerID, dto.AssignedTo)
		})
	}
}

func TestMarkItemPicked(t *testing.T) {
	repo := newMemoryRepo()
	seedBatch(t, repo, "batch-1", order("O1", line("p1", 2, "A1-B1"), line("p2", 1, "A2-B1")))
	service := newTestService(repo, nil)
	ctx := context.Background()

	result, err := service.MarkItemPicked(ctx, MarkItemPickedCommand{BatchID: "batch-1", ProductID: "p1"})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, "in_progress", result.Batch.Status)
	assert.Equal(t, ProgressDTO{PickedUnits: 2, TotalUnits: 3, Percent: 66.7}, result.Batch.Progress)

	result, err = service.MarkItemPicked(ctx, MarkItemPickedCommand{BatchID: "batch-1", ProductID: "p1"})
	require.NoError(t, err)
	assert.False(t, result.Changed)

	result, err = service.MarkItemPicked(ctx, MarkItemPickedCommand{BatchID: "batch-1", ProductID: "p2"})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, "completed", result.Batch.Status)
	assert.NotNil(t, result.Batch.CompletedAt)

	_, err = service.MarkItemPicked(ctx, MarkItemPickedCommand{BatchID: "batch-1", ProductID: "p404"})
	assert.ErrorIs(t, err, domain.ErrItemNotInBatch)
	assert.Equal(t, errors.CodeNotFound, appErrorCode(t, err))
}

func TestMarkItemPicked_ReappliesAfterConcurrentWrite(t *testing.T) {
	repo := newMemoryRepo()
	seedBatch(t, repo, "batch-1", order("O1", line("p1", 1, "A1-B1"), line("p2", 1, "A2-B1")))
	service := newTestService(repo, nil)

	// another picker lands p2 between our load and our save
	repo.beforeSave = func(stored *domain.PickingBatch) {
		_, err := stored.MarkItemPicked("p2")
		require.NoError(t, err)
		stored.Version++
	}

	result, err := service.MarkItemPicked(context.Background(), MarkItemPickedCommand{BatchID: "batch-1", ProductID: "p1"})

	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, "completed", result.Batch.Status)
	for _, item := range result.Batch.Items {
		assert.True(t, item.IsPicked, item.ProductID)
	}
}

func TestMarkItemPicked_ConcurrentPickersLoseNothing(t *testing.T) {
	repo := newMemoryRepo()
	seedBatch(t, repo, "batch-1", order("O1", line("p1", 1, "A1-B1"), line("p2", 1, "A2-B1")))
	service := newTestService(repo, nil)

	var wg sync.WaitGroup
	for _, productID := range []string{"p1", "p2"} {
		wg.Add(1)
		go func(productID string) {
			defer wg.Done()
			_, err := service.MarkItemPicked(context.Background(), MarkItemPickedCommand{BatchID: "batch-1", ProductID: productID})
			assert.NoError(t, err)
		}(productID)
	}
	wg.Wait()

	stored, err := repo.FindByID(context.Background(), "batch-1")
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusCompleted, stored.Status)
	assert.True(t, stored.AllItemsPicked())
}

func TestMarkItemPicked_GivesUpAfterRetries(t *testing.T) {
	repo := newMemoryRepo()
	seedBatch(t, repo, "batch-1", order("O1", line("p1", 1, "A1-B1")))
	service := newTestService(repo, nil)

	conflicts := &alwaysConflicting{memoryRepo: repo}
	service.repo = conflicts

	_, err := service.MarkItemPicked(context.Background(), MarkItemPickedCommand{BatchID: "batch-1", ProductID: "p1"})

	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
	assert.Equal(t, errors.CodeConflict, appErrorCode(t, err))
	assert.Equal(t, 3, conflicts.attempts)
}

type alwaysConflicting struct {
	*memoryRepo
	attempts int
}

func (r *alwaysConflicting) Save(context.Context, *domain.PickingBatch) error {
	r.attempts++
	return domain.ErrConcurrentModification
}

func TestArchiveBatch(t *testing.T) {
	repo := newMemoryRepo()
	seedBatch(t, repo, "batch-1", order("O1", line("p1", 1, "A1-B1")))
	service := newTestService(repo, nil)
	ctx := context.Background()

	err := service.ArchiveBatch(ctx, ArchiveBatchCommand{BatchID: "batch-1"})
	assert.Equal(t, errors.CodeConflict, appErrorCode(t, err))

	_, err = service.MarkItemPicked(ctx, MarkItemPickedCommand{BatchID: "batch-1", ProductID: "p1"})
	require.NoError(t, err)

	require.NoError(t, service.ArchiveBatch(ctx, ArchiveBatchCommand{BatchID: "batch-1"}))
	_, err = service.GetBatch(ctx, GetBatchQuery{BatchID: "batch-1"})
	assert.True(t, strings.Contains(err.Error(), "not found"))
}
