package testing

import (
	"context"
	"fmt"
	"testing"
	"time"

	tcmongodb "github.com/testcontainers/testcontainers-go/modules/mongodb"

	"github.com/wms-platform/picking-engine/pkg/mongodb"
)

// MongoDBContainer is a single-node replica set, so multi-document transactions work
type MongoDBContainer struct {
	Container *tcmongodb.MongoDBContainer
	URI       string
}

// NewMongoDBContainer starts mongo:7 as replica set rs0
func NewMongoDBContainer(ctx context.Context) (*MongoDBContainer, error) {
	container, err := tcmongodb.Run(ctx, "mongo:7", tcmongodb.WithReplicaSet("rs0"))
	if err != nil {
		return nil, fmt.Errorf("failed to start mongodb container: %w", err)
	}

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}
	return &MongoDBContainer{Container: container, URI: uri}, nil
}

// Close terminates the container
func (m *MongoDBContainer) Close(ctx context.Context) error {
	if m.Container != nil {
		return m.Container.Terminate(ctx)
	}
	return nil
}

// StartMongo runs a container for the test and returns a connected client on a fresh database.
// It skips under -short.
func StartMongo(t *testing.T) *mongodb.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx, cancel := CreateTestContext(2 * time.Minute)
	defer cancel()

	container, err := NewMongoDBContainer(ctx)
	if err != nil {
		t.Fatalf("start mongodb: %v", err)
	}
	t.Cleanup(func() { _ = container.Close(context.Background()) })

	config := mongodb.DefaultConfig()
	config.URI = container.URI
	config.Database = "picking_test"
	config.MinPoolSize = 0

	client, err := mongodb.NewClient(ctx, config)
	if err != nil {
		t.Fatalf("connect mongodb: %v", err)
	}
	t.Cleanup(func() { _ = client.Close(context.Background()) })
	return client
}

// CreateTestContext creates a context with a timeout for tests
func CreateTestContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
