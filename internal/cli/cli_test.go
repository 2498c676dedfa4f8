package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/picking-engine/internal/activities"
	"github.com/wms-platform/picking-engine/internal/application"
	"github.com/wms-platform/picking-engine/internal/workflows"
	"github.com/wms-platform/picking-engine/pkg/temporal"
)

const ordersJSON = `[
  {"id": "o1", "status": "pending", "lines": [{"productId": "p1", "productName": "Mug", "quantity": 2, "locationCode": "A1-S1"}]},
  {"id": "o2", "status": "pending", "lines": [
    {"productId": "p1", "productName": "Mug", "quantity": 1, "locationCode": "A1-S1"},
    {"productId": "p2", "productName": "Lid", "quantity": 1, "locationCode": "A3-S2"}
  ]},
  {"id": "o3", "status": "shipped", "lines": [{"productId": "p3", "quantity": 1, "locationCode": "C1-S1"}]},
  {"id": "o4", "status": "pending", "lines": [{"productId": "p4", "productName": "Tray", "quantity": 4, "locationCode": "B9-S9"}]}
]`

type fakeWorkflowClient struct {
	started  []workflows.OrderBatchingInput
	signals  [][2]string
	progress activities.BatchProgress
	queryErr error
	closed   bool
}

func (f *fakeWorkflowClient) StartOrderBatching(_ context.Context, input workflows.OrderBatchingInput) (string, string, error) {
	f.started = append(f.started, input)
	return "order-batching-1", "run-1", nil
}

func (f *fakeWorkflowClient) SignalItemPicked(_ context.Context, batchID, productID string) error {
	f.signals = append(f.signals, [2]string{batchID, productID})
	return nil
}

func (f *fakeWorkflowClient) QueryBatchProgress(_ context.Context, _ string, out interface{}) error {
	if f.queryErr != nil {
		return f.queryErr
	}
	*out.(*activities.BatchProgress) = f.progress
	return nil
}

func (f *fakeWorkflowClient) Close() { f.closed = true }

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, fake *fakeWorkflowClient, args ...string) (string, error) {
	t.Helper()
	var gotConfig *temporal.Config
	root := NewRootCommand(func(config *temporal.Config) (WorkflowClient, error) {
		gotConfig = config
		return fake, nil
	})
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	if gotConfig != nil {
		assert.Equal(t, "pickctl", gotConfig.Identity)
	}
	return buf.String(), err
}

func TestBatchesCommand(t *testing.T) {
	ordersFile := writeFile(t, "orders.json", ordersJSON)

	tests := []struct {
		name         string
		args         []string
		wantOrderIDs [][]string
	}{
		{
			name:         "shared products are batched together",
			args:         []string{"batches", "--orders", ordersFile},
			wantOrderIDs: [][]string{{"o1", "o2"}, {"o4"}},
		},
		{
			name:         "max one order per batch",
			args:         []string{"batches", "--orders", ordersFile, "--max", "1"},
			wantOrderIDs: [][]string{{"o1"}, {"o2"}, {"o4"}},
		},
		{
			name:         "limit from config file",
			args:         []string{"batches", "--orders", ordersFile, "--config", writeFile(t, "pickctl.yaml", "picking:\n  max_orders_per_batch: 1\n")},
			wantOrderIDs: [][]string{{"o1"}, {"o2"}, {"o4"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, &fakeWorkflowClient{}, tt.args...)
			require.NoError(t, err)

			var batches []application.BatchDTO
			require.NoError(t, json.Unmarshal([]byte(out), &batches))

			got := make([][]string, 0, len(batches))
			for _, b := range batches {
				got = append(got, b.OrderIDs)
				assert.Equal(t, "pending", b.Status)
			}
			assert.Equal(t, tt.wantOrderIDs, got)
		})
	}
}

func TestBatchesCommand_Errors(t *testing.T) {
	_, err := execute(t, &fakeWorkflowClient{}, "batches")
	assert.Error(t, err)

	_, err = execute(t, &fakeWorkflowClient{}, "batches", "--orders", writeFile(t, "bad.json", `{"id":`))
	assert.ErrorContains(t, err, "failed to parse orders")
}

func TestRouteCommand_FromOrders(t *testing.T) {
	ordersFile := writeFile(t, "orders.json", ordersJSON)

	out, err := execute(t, &fakeWorkflowClient{}, "route", "--orders", ordersFile)
	require.NoError(t, err)

	var routes []application.RouteDTO
	require.NoError(t, json.Unmarshal([]byte(out), &routes))
	require.Len(t, routes, 2)

	assert.Equal(t, []string{"A1-S1", "A3-S2"}, routes[0].OrderedLocations)
	assert.Equal(t, 3, routes[0].TotalDistance)
	require.Len(t, routes[0].Items, 2)
	assert.Equal(t, "p1", routes[0].Items[0].ProductID)
	assert.Equal(t, 3, routes[0].Items[0].TotalQuantity)

	assert.Equal(t, []string{"B9-S9"}, routes[1].OrderedLocations)
	assert.Zero(t, routes[1].TotalDistance)
}

func TestRouteCommand_FromLocations(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		wantPath     []string
		wantDistance int
		wantErr      string
	}{
		{
			name:         "nearest neighbour walk",
			args:         []string{"route", "A1-S1", "A9-S1", "A2-S1"},
			wantPath:     []string{"A1-S1", "A2-S1", "A9-S1"},
			wantDistance: 8,
		},
		{
			name:         "repeated and blank codes",
			args:         []string{"route", "A1-B1", "A1-B1", " ", "A3-B1"},
			wantPath:     []string{"A1-B1", "A3-B1"},
			wantDistance: 2,
		},
		{
			name:    "only blanks",
			args:    []string{"route", " ", ""},
			wantErr: "give location codes",
		},
		{
			name:    "malformed code",
			args:    []string{"route", "A1-S1", "Dock"},
			wantErr: "invalid location code",
		},
		{
			name:    "nothing to route",
			args:    []string{"route"},
			wantErr: "give location codes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, &fakeWorkflowClient{}, tt.args...)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			var route application.PickingRouteDTO
			require.NoError(t, json.Unmarshal([]byte(out), &route))
			assert.Equal(t, tt.wantPath, route.OrderedLocations)
			assert.Equal(t, tt.wantDistance, route.TotalDistance)
		})
	}
}

func TestRunCommand(t *testing.T) {
	fake := &fakeWorkflowClient{}

	out, err := execute(t, fake, "run", "--max", "3")
	require.NoError(t, err)

	require.Len(t, fake.started, 1)
	assert.Equal(t, 3, fake.started[0].MaxOrdersPerBatch)
	assert.Equal(t, 4*time.Hour, fake.started[0].PickTimeout)
	assert.True(t, fake.closed)
	assert.Contains(t, out, "order-batching-1")
}

func TestPickAndProgressCommands(t *testing.T) {
	fake := &fakeWorkflowClient{progress: activities.BatchProgress{
		BatchID:     "batch-1",
		Status:      "in_progress",
		PickedUnits: 2,
		TotalUnits:  5,
	}}

	out, err := execute(t, fake, "pick", "batch-1", "p1")
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"batch-1", "p1"}}, fake.signals)
	assert.Contains(t, out, "batch-1")

	out, err = execute(t, fake, "progress", "batch-1")
	require.NoError(t, err)
	var progress activities.BatchProgress
	require.NoError(t, json.Unmarshal([]byte(out), &progress))
	assert.Equal(t, fake.progress, progress)

	fake.queryErr = errors.New("workflow not found")
	_, err = execute(t, fake, "progress", "batch-1")
	assert.ErrorContains(t, err, "workflow not found")

	_, err = execute(t, fake, "pick", "batch-1")
	assert.Error(t, err)
}
