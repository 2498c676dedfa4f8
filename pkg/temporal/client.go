package temporal

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
)

// TaskQueue is the queue every picking workflow and activity runs on
const TaskQueue = "picking-engine"

// Config holds Temporal client configuration
type Config struct {
	HostPort  string `yaml:"hostPort"`
	Namespace string `yaml:"namespace"`
	Identity  string `yaml:"identity"`
	TaskQueue string `yaml:"taskQueue"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		HostPort:  "localhost:7233",
		Namespace: "default",
		Identity:  "picking-worker",
		TaskQueue: TaskQueue,
	}
}

// WorkflowNames contains the registered workflow type names
var WorkflowNames = struct {
	OrderBatching string
	BatchPicking  string
}{
	OrderBatching: "OrderBatchingWorkflow",
	BatchPicking:  "BatchPickingWorkflow",
}

// ActivityNames contains the registered activity names
var ActivityNames = struct {
	FormBatches    string
	AssignBatch    string
	StartBatch     string
	MarkItemPicked string
}{
	FormBatches:    "FormBatches",
	AssignBatch:    "AssignBatch",
	StartBatch:     "StartBatch",
	MarkItemPicked: "MarkItemPicked",
}

// SignalItemPicked is the signal a picker's device sends per picked product
const SignalItemPicked = "itemPicked"

// QueryProgress returns the batch progress of a running BatchPickingWorkflow
const QueryProgress = "progress"

// Client wraps the Temporal SDK client
type Client struct {
	client client.Client
	config *Config
}

// NewClient dials the Temporal frontend
func NewClient(config *Config) (*Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  config.HostPort,
		Namespace: config.Namespace,
		Identity:  config.Identity,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Temporal client: %w", err)
	}
	return &Client{client: c, config: config}, nil
}

// Client returns the underlying SDK client
func (c *Client) Client() client.Client {
	return c.client
}

// Close closes the client connection
func (c *Client) Close() {
	c.client.Close()
}

// StartWorkflow starts workflowName on the configured task queue
func (c *Client) StartWorkflow(ctx context.Context, workflowID, workflowName string, args ...interface{}) (client.WorkflowRun, error) {
	return c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: c.config.TaskQueue,
	}, workflowName, args...)
}

// SignalItemPicked forwards a pick to the batch's picking workflow
func (c *Client) SignalItemPicked(ctx context.Context, batchID, productID string) error {
	return c.client.SignalWorkflow(ctx, BatchWorkflowID(batchID), "", SignalItemPicked, ItemPickedSignal{ProductID: productID})
}

// QueryBatchProgress reads the progress query of the batch's picking workflow into out
func (c *Client) QueryBatchProgress(ctx context.Context, batchID string, out interface{}) error {
	value, err := c.client.QueryWorkflow(ctx, BatchWorkflowID(batchID), "", QueryProgress)
	if err != nil {
		return fmt.Errorf("failed to query batch %s: %w", batchID, err)
	}
	return value.Get(out)
}

// NewWorker creates a worker on the configured task queue
func (c *Client) NewWorker() worker.Worker {
	return worker.New(c.client, c.config.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     100,
		MaxConcurrentWorkflowTaskExecutionSize: 100,
	})
}

// ItemPickedSignal is the payload of SignalItemPicked
type ItemPickedSignal struct {
	ProductID string `json:"productId"`
}

// BatchWorkflowID is the workflow id of the picking workflow for batchID
func BatchWorkflowID(batchID string) string {
	return "batch-picking-" + batchID
}

// DefaultRetryPolicy retries activities three times with exponential backoff
func DefaultRetryPolicy() *temporal.RetryPolicy {
	return &temporal.RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    time.Minute,
		MaximumAttempts:    3,
	}
}
