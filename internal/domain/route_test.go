package domain

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batchWithLocations(locations ...string) *PickingBatch {
	items := make([]PickingItem, 0, len(locations))
	for i, loc := range locations {
		items = append(items, PickingItem{
			ProductID:     fmt.Sprintf("p%d", i+1),
			ProductName:   fmt.Sprintf("Product %d", i+1),
			LocationCode:  loc,
			TotalQuantity: i + 1,
			PerOrder:      []OrderQuantity{{OrderID: "O1", Quantity: i + 1}},
		})
	}
	return &PickingBatch{BatchID: "batch-1", OrderIDs: []string{"O1"}, Items: items, Status: BatchStatusPending}
}

func TestOptimizeRoute_NearestNeighbour(t *testing.T) {
	batch := batchWithLocations("A1-B2", "A3-B4", "A1-B3")

	route, err := OptimizeRoute(batch)

	require.NoError(t, err)
	assert.Equal(t, []string{"A1-B2", "A1-B3", "A3-B4"}, route.OrderedLocations)
	assert.Equal(t, 5, route.TotalDistance)
}

func TestOptimizeRoute(t *testing.T) {
	tests := []struct {
		name         string
		locations    []string
		expectedPath []string
		expectedDist int
	}{
		{"empty batch", nil, []string{}, 0},
		{"single location", []string{"A4-B4"}, []string{"A4-B4"}, 0},
		{"repeated location collapses", []string{"A1-B1", "A1-B1", "A1-B1"}, []string{"A1-B1"}, 0},
		{
			name:         "tie goes to earliest extracted",
			locations:    []string{"A5-B5", "A6-B5", "A4-B5"},
			expectedPath: []string{"A5-B5", "A6-B5", "A4-B5"},
			expectedDist: 1 + 2,
		},
		{
			name:         "starts at first location even if not optimal",
			locations:    []string{"A5-B1", "A1-B1", "A9-B1"},
			expectedPath: []string{"A5-B1", "A1-B1", "A9-B1"},
			expectedDist: 4 + 8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route, err := OptimizeRoute(batchWithLocations(tt.locations...))
			require.NoError(t, err)
			assert.Equal(t, tt.expectedPath, route.OrderedLocations)
			assert.Equal(t, tt.expectedDist, route.TotalDistance)
		})
	}
}

func TestOptimizeRoute_InvalidLocation(t *testing.T) {
	tests := []struct {
		name      string
		locations []string
	}{
		{"digitless token among many", []string{"A1-B2", "DOCK-B", "A3-B4"}},
		{"single malformed location", []string{"STAGING"}},
		{"missing location", []string{"A1-B2", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route, err := OptimizeRoute(batchWithLocations(tt.locations...))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidLocationCode)
			assert.Empty(t, route.OrderedLocations)
			assert.Zero(t, route.TotalDistance)
		})
	}
}

func TestOptimizeRoute_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	for round := 0; round < 100; round++ {
		n := r.Intn(12)
		locations := make([]string, 0, n)
		for i := 0; i < n; i++ {
			locations = append(locations, fmt.Sprintf("A%d-B%d-C%d", r.Intn(10), r.Intn(10), r.Intn(3)))
		}
		batch := batchWithLocations(locations...)

		route, err := OptimizeRoute(batch)
		require.NoError(t, err)

		// permutation of the distinct locations
		assert.ElementsMatch(t, DistinctLocations(batch.Items), route.OrderedLocations)

		// distance matches the path
		dist, err := PathDistance(route.OrderedLocations)
		require.NoError(t, err)
		assert.Equal(t, dist, route.TotalDistance)
		assert.GreaterOrEqual(t, route.TotalDistance, 0)

		// deterministic
		again, err := OptimizeRoute(batch)
		require.NoError(t, err)
		assert.Equal(t, route, again)
	}
}

func TestReorderItems(t *testing.T) {
	batch := &PickingBatch{
		BatchID: "batch-1",
		Items: []PickingItem{
			{ProductID: "p1", LocationCode: "A3-B4", TotalQuantity: 1},
			{ProductID: "p2", LocationCode: "A1-B2", TotalQuantity: 2},
			{ProductID: "p3", LocationCode: "A3-B4", TotalQuantity: 3},
			{ProductID: "p4", LocationCode: "A1-B3", TotalQuantity: 4},
		},
	}

	route, err := OptimizeRoute(batch)
	require.NoError(t, err)
	assert.Equal(t, []string{"A3-B4", "A1-B3", "A1-B2"}, route.OrderedLocations)

	items := ReorderItems(batch, route)

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	assert.Equal(t, []string{"p1", "p3", "p4", "p2"}, ids)

	// original order and quantities untouched
	assert.Equal(t, "p1", batch.Items[0].ProductID)
	assert.Equal(t, "p2", batch.Items[1].ProductID)
	assert.Equal(t, batch.TotalUnits(), sumUnits(items))
}

func TestReorderItems_ShorterRouteKeepsUnknownLast(t *testing.T) {
	batch := batchWithLocations("A1-B1", "A2-B2")
	items := ReorderItems(batch, PickingRoute{OrderedLocations: []string{"A2-B2"}})

	require.Len(t, items, 2)
	assert.Equal(t, "A2-B2", items[0].LocationCode)
	assert.Equal(t, "A1-B1", items[1].LocationCode)
}

func sumUnits(items []PickingItem) int {
	total := 0
	for _, item := range items {
		total += item.TotalQuantity
	}
	return total
}

func TestDistinctLocationCodes(t *testing.T) {
	tests := []struct {
		name     string
		codes    []string
		expected []string
	}{
		{"keeps first encounter order", []string{"B2-S1", "A1-S1", "B2-S1"}, []string{"B2-S1", "A1-S1"}},
		{"trims and drops blanks", []string{" A1-S1 ", "", "  ", "A1-S1"}, []string{"A1-S1"}},
		{"nothing left", []string{"", " "}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DistinctLocationCodes(tt.codes))
		})
	}
}
