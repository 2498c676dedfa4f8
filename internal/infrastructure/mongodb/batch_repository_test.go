package mongodb

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/picking-engine/internal/domain"
	"github.com/wms-platform/picking-engine/pkg/cloudevents"
	pkgtesting "github.com/wms-platform/picking-engine/pkg/testing"
)

func newTestRepository(t *testing.T) *BatchRepository {
	t.Helper()
	client := pkgtesting.StartMongo(t)
	repo := NewBatchRepository(client, cloudevents.NewEventFactory("/picking-engine"), nil)
	require.NoError(t, repo.EnsureIndexes(context.Background()))
	return repo
}

func testOrders() []domain.Order {
	return []domain.Order{
		{ID: "order-1", Status: domain.OrderStatusPending, Lines: []domain.OrderLine{
			{ProductID: "p1", ProductName: "Blue Widget", Quantity: 2, LocationCode: "A-1-1"},
		}},
		{ID: "order-2", Status: domain.OrderStatusPending, Lines: []domain.OrderLine{
			{ProductID: "p1", ProductName: "Blue Widget", Quantity: 1, LocationCode: "A-1-1"},
			{ProductID: "p2", ProductName: "Red Gadget", Quantity: 1, LocationCode: "B-3-2"},
		}},
	}
}

func TestBatchRepository_SaveAndFind(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	batch, err := domain.NewPickingBatch("batch-1", testOrders())
	require.NoError(t, err)

	require.NoError(t, repo.Save(ctx, batch))
	assert.Equal(t, int64(1), batch.Version)
	assert.Empty(t, batch.GetDomainEvents())

	found, err := repo.FindByID(ctx, "batch-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, []string{"order-1", "order-2"}, found.OrderIDs)
	assert.Len(t, found.Items, 2)
	assert.Equal(t, int64(1), found.Version)

	missing, err := repo.FindByID(ctx, "batch-unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)

	staged, err := repo.OutboxRepository().FindByAggregateID(ctx, "batch-1")
	require.NoError(t, err)
	require.Len(t, staged, 1)
	assert.Equal(t, domain.EventTypeBatchCreated, staged[0].EventType)
}

func TestBatchRepository_StaleWriteRejected(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	batch, err := domain.NewPickingBatch("batch-1", testOrders())
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, batch))

	first, err := repo.FindByID(ctx, "batch-1")
	require.NoError(t, err)
	second, err := repo.FindByID(ctx, "batch-1")
	require.NoError(t, err)

	_, err = first.MarkItemPicked("p1")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, first))

	_, err = second.MarkItemPicked("p2")
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Save(ctx, second), domain.ErrConcurrentModification)

	stored, err := repo.FindByID(ctx, "batch-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
	item, _ := stored.Item("p1")
	assert.Equal(t, 1, item.Picked)
}

func TestBatchRepository_ConcurrentSavesOneWins(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	batch, err := domain.NewPickingBatch("batch-1", testOrders())
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, batch))

	const writers = 5
	var wg sync.WaitGroup
	results := make(chan error, writers)
	for i := 0; i < writers; i++ {
		loaded, err := repo.FindByID(ctx, "batch-1")
		require.NoError(t, err)
		wg.Add(1)
		go func(b *domain.PickingBatch) {
			defer wg.Done()
			_, _ = b.MarkItemPicked("p1")
			results <- repo.Save(ctx, b)
		}(loaded)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrConcurrentModification)
	}
	assert.Equal(t, 1, succeeded)
}

func TestBatchRepository_Find(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	orders := testOrders()
	first, err := domain.NewPickingBatch("batch-1", orders[:1])
	require.NoError(t, err)
	second, err := domain.NewPickingBatch("batch-2", orders[1:])
	require.NoError(t, err)
	second.StartOrResume()
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))

	tests := []struct {
		name     string
		filter   domain.BatchFilter
		expected []string
	}{
		{"all", domain.BatchFilter{}, []string{"batch-2", "batch-1"}},
		{"by status", domain.BatchFilter{Status: domain.BatchStatusInProgress}, []string{"batch-2"}},
		{"by product name", domain.BatchFilter{Search: "red gad"}, []string{"batch-2"}},
		{"by order id", domain.BatchFilter{Search: "ORDER-1"}, []string{"batch-1"}},
		{"regex characters are literal", domain.BatchFilter{Search: "order.*"}, []string{}},
		{"paged", domain.BatchFilter{Limit: 1, Offset: 1}, []string{"batch-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches, err := repo.Find(ctx, tt.filter)
			require.NoError(t, err)

			ids := []string{}
			for _, b := range batches {
				ids = append(ids, b.BatchID)
			}
			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestBatchRepository_FindByOrderIDs(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	batch, err := domain.NewPickingBatch("batch-1", testOrders())
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, batch))

	held, err := repo.FindByOrderIDs(ctx, []string{"order-2", "order-9"})
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, "batch-1", held[0].BatchID)

	none, err := repo.FindByOrderIDs(ctx, []string{"order-9"})
	require.NoError(t, err)
	assert.Empty(t, none)

	empty, err := repo.FindByOrderIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestBatchRepository_Delete(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	batch, err := domain.NewPickingBatch("batch-1", testOrders())
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, batch))

	require.NoError(t, repo.Delete(ctx, "batch-1"))
	assert.ErrorIs(t, repo.Delete(ctx, "batch-1"), domain.ErrBatchNotFound)
}

func TestBuildFilter(t *testing.T) {
	filter := buildFilter(domain.BatchFilter{Status: domain.BatchStatusPending, Search: " a+b "})

	assert.Equal(t, domain.BatchStatusPending, filter["status"])
	require.Contains(t, filter, "$or")
	assert.Len(t, filter["$or"], 3)
	assert.Equal(t, `a\+b`, containsPattern("a+b")["$regex"])
}
