package domain

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("batch-%d", n)
	}
}

func TestFormBatches_SharedProductConsolidates(t *testing.T) {
	orders := []Order{
		pendingOrder("O1", line("p1", 2, "A1-B2")),
		pendingOrder("O2", line("p1", 1, "A1-B2")),
	}

	batches := NewBatchFormer(5, sequentialIDs()).FormBatches(orders)

	require.Len(t, batches, 1)
	batch := batches[0]
	assert.Equal(t, "batch-1", batch.BatchID)
	assert.Equal(t, BatchStatusPending, batch.Status)
	assert.Equal(t, []string{"O1", "O2"}, batch.OrderIDs)
	require.Len(t, batch.Items, 1)
	assert.Equal(t, 3, batch.Items[0].TotalQuantity)
	assert.Equal(t, []OrderQuantity{{OrderID: "O1", Quantity: 2}, {OrderID: "O2", Quantity: 1}}, batch.Items[0].PerOrder)
}

func TestFormBatches_DisjointOrdersRespectBatchLimit(t *testing.T) {
	orders := make([]Order, 0, 6)
	for i := 1; i <= 6; i++ {
		orders = append(orders, pendingOrder(fmt.Sprintf("O%d", i), line(fmt.Sprintf("p%d", i), 1, "A1-B1")))
	}

	batches := FormBatches(orders, 5)

	assert.GreaterOrEqual(t, len(batches), 2)
	for _, b := range batches {
		assert.LessOrEqual(t, len(b.OrderIDs), 5)
	}
}

func TestGroupOrders(t *testing.T) {
	tests := []struct {
		name     string
		orders   []Order
		max      int
		expected [][]string
	}{
		{
			name:     "no orders",
			orders:   nil,
			max:      5,
			expected: [][]string{},
		},
		{
			name: "non-pending orders are ignored",
			orders: []Order{
				{ID: "O1", Status: OrderStatusProcessing, Lines: []OrderLine{line("p1", 1, "A1-B1")}},
				pendingOrder("O2", line("p1", 1, "A1-B1")),
				{ID: "O3", Status: OrderStatusShipped, Lines: []OrderLine{line("p1", 1, "A1-B1")}},
			},
			max:      5,
			expected: [][]string{{"O2"}},
		},
		{
			name: "joins first matching group not the best one",
			orders: []Order{
				pendingOrder("O1", line("p1", 1, "A1-B1")),
				pendingOrder("O2", line("p2", 1, "A1-B1")),
				pendingOrder("O3", line("p2", 1, "A1-B1"), line("p1", 1, "A1-B1")),
			},
			max:      5,
			expected: [][]string{{"O1", "O3"}, {"O2"}},
		},
		{
			name: "affinity uses the union of the group",
			orders: []Order{
				pendingOrder("O1", line("p1", 1, "A1-B1")),
				pendingOrder("O2", line("p1", 1, "A1-B1"), line("p2", 1, "A1-B1")),
				pendingOrder("O3", line("p2", 1, "A1-B1")),
			},
			max:      5,
			expected: [][]string{{"O1", "O2", "O3"}},
		},
		{
			name: "full group forces a new one",
			orders: []Order{
				pendingOrder("O1", line("p1", 1, "A1-B1")),
				pendingOrder("O2", line("p1", 1, "A1-B1")),
				pendingOrder("O3", line("p1", 1, "A1-B1")),
			},
			max:      2,
			expected: [][]string{{"O1", "O2"}, {"O3"}},
		},
		{
			name: "order without valid lines gets its own group",
			orders: []Order{
				pendingOrder("O1", line("p1", 1, "A1-B1")),
				pendingOrder("O2", line("", 1, "A1-B1")),
				pendingOrder("O3", line("", 2, "A1-B1")),
			},
			max:      5,
			expected: [][]string{{"O1"}, {"O2"}, {"O3"}},
		},
		{
			name: "duplicate order ids keep first occurrence",
			orders: []Order{
				pendingOrder("O1", line("p1", 1, "A1-B1")),
				pendingOrder("O1", line("p1", 7, "A1-B1")),
			},
			max:      5,
			expected: [][]string{{"O1"}},
		},
		{
			name: "non-positive limit falls back to default",
			orders: []Order{
				pendingOrder("O1", line("p1", 1, "A1-B1")),
				pendingOrder("O2", line("p1", 1, "A1-B1")),
				pendingOrder("O3", line("p1", 1, "A1-B1")),
				pendingOrder("O4", line("p1", 1, "A1-B1")),
				pendingOrder("O5", line("p1", 1, "A1-B1")),
				pendingOrder("O6", line("p1", 1, "A1-B1")),
			},
			max:      0,
			expected: [][]string{{"O1", "O2", "O3", "O4", "O5"}, {"O6"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := GroupOrders(tt.orders, tt.max)

			ids := make([][]string, 0, len(groups))
			for _, g := range groups {
				groupIDs := make([]string, 0, len(g))
				for _, o := range g {
					groupIDs = append(groupIDs, o.ID)
				}
				ids = append(ids, groupIDs)
			}
			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestFormBatches_EmptyItemsBatch(t *testing.T) {
	batches := FormBatches([]Order{pendingOrder("O1", line("", 1, "A1-B1"))}, 5)

	require.Len(t, batches, 1)
	assert.Equal(t, []string{"O1"}, batches[0].OrderIDs)
	assert.Empty(t, batches[0].Items)
	assert.Equal(t, BatchStatusPending, batches[0].Status)
}

func TestFormBatches_FreshIDs(t *testing.T) {
	orders := []Order{
		pendingOrder("O1", line("p1", 1, "A1-B1")),
		pendingOrder("O2", line("p2", 1, "A1-B1")),
	}

	first := FormBatches(orders, 5)
	second := FormBatches(orders, 5)

	ids := map[string]bool{}
	for _, b := range append(first, second...) {
		assert.False(t, ids[b.BatchID], "duplicate batch id %s", b.BatchID)
		ids[b.BatchID] = true
	}
}

func TestFormBatches_RaisesCreatedEvents(t *testing.T) {
	batches := FormBatches([]Order{pendingOrder("O1", line("p1", 4, "A1-B1"))}, 5)

	require.Len(t, batches, 1)
	events := batches[0].GetDomainEvents()
	require.Len(t, events, 1)
	created, ok := events[0].(*BatchCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, 4, created.TotalUnits)
	assert.Equal(t, EventTypeBatchCreated, created.EventType())
}

// randomOrders builds a reproducible mixed pool of orders for property checks
func randomOrders(r *rand.Rand, n int) []Order {
	statuses := []OrderStatus{OrderStatusPending, OrderStatusPending, OrderStatusPending, OrderStatusProcessing}
	orders := make([]Order, 0, n)
	for i := 0; i < n; i++ {
		lineCount := r.Intn(4) + 1
		lines := make([]OrderLine, 0, lineCount)
		for j := 0; j < lineCount; j++ {
			qty := r.Intn(5) - 1
			lines = append(lines, line(fmt.Sprintf("p%d", r.Intn(8)), qty, fmt.Sprintf("A%d-B%d", r.Intn(6)+1, r.Intn(6)+1)))
		}
		orders = append(orders, Order{ID: fmt.Sprintf("O%d", i), Status: statuses[r.Intn(len(statuses))], Lines: lines})
	}
	return orders
}

func TestFormBatches_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		orders := randomOrders(r, r.Intn(30))
		byID := make(map[string]Order, len(orders))
		for _, o := range orders {
			byID[o.ID] = o
		}

		batches := FormBatches(orders, DefaultMaxOrdersPerBatch)

		placed := make(map[string]bool)
		for _, b := range batches {
			assert.LessOrEqual(t, len(b.OrderIDs), DefaultMaxOrdersPerBatch, "batch size bound")

			// conservation: units per product equal the sum over the batch's orders
			expected := make(map[string]int)
			for _, id := range b.OrderIDs {
				assert.False(t, placed[id], "order %s placed twice", id)
				placed[id] = true
				for _, l := range byID[id].Lines {
					if l.IsPickable() {
						expected[l.ProductID] += l.Quantity
					}
				}
			}

			got := make(map[string]int)
			for _, item := range b.Items {
				assertPerOrderConsistent(t, item)
				got[item.ProductID] = item.TotalQuantity
			}
			assert.Equal(t, expected, got)
		}

		for _, o := range orders {
			assert.Equal(t, o.IsPending(), placed[o.ID], "pending orders are batched exactly once: %s", o.ID)
		}
	}
}
