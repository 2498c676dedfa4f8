package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wms-platform/picking-engine/internal/activities"
	"github.com/wms-platform/picking-engine/internal/workflows"
	"github.com/wms-platform/picking-engine/pkg/temporal"
)

const commandTimeout = 30 * time.Second

// WorkflowClient is what the workflow commands need from Temporal
type WorkflowClient interface {
	StartOrderBatching(ctx context.Context, input workflows.OrderBatchingInput) (workflowID, runID string, err error)
	SignalItemPicked(ctx context.Context, batchID, productID string) error
	QueryBatchProgress(ctx context.Context, batchID string, out interface{}) error
	Close()
}

type temporalWorkflowClient struct {
	*temporal.Client
}

// DialTemporal connects to the Temporal frontend described by config
func DialTemporal(config *temporal.Config) (WorkflowClient, error) {
	c, err := temporal.NewClient(config)
	if err != nil {
		return nil, err
	}
	return temporalWorkflowClient{Client: c}, nil
}

func (c temporalWorkflowClient) StartOrderBatching(ctx context.Context, input workflows.OrderBatchingInput) (string, string, error) {
	run, err := c.StartWorkflow(ctx, "order-batching-"+uuid.NewString(), temporal.WorkflowNames.OrderBatching, input)
	if err != nil {
		return "", "", err
	}
	return run.GetID(), run.GetRunID(), nil
}

func (a *app) withClient(cmd *cobra.Command, fn func(ctx context.Context, c WorkflowClient) error) error {
	c, err := a.dial(a.temporalConfig())
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()
	return fn(ctx, c)
}

func (a *app) newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the order batching workflow",
		Long: `Starts OrderBatchingWorkflow, which forms batches from the pending orders
and starts one picking workflow per batch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c WorkflowClient) error {
				workflowID, runID, err := c.StartOrderBatching(ctx, workflows.OrderBatchingInput{
					MaxOrdersPerBatch: a.maxOrdersPerBatch(),
					PickTimeout:       a.v.GetDuration("picking.pick_timeout"),
				})
				if err != nil {
					return fmt.Errorf("failed to start order batching: %w", err)
				}
				return writeJSON(cmd.OutOrStdout(), map[string]string{"workflowId": workflowID, "runId": runID})
			})
		},
	}
}

func (a *app) newPickCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pick <batch-id> <product-id>",
		Short: "Confirm a product of a running batch was picked",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c WorkflowClient) error {
				if err := c.SignalItemPicked(ctx, args[0], args[1]); err != nil {
					return fmt.Errorf("failed to signal pick: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pick of %s sent to batch %s\n", args[1], args[0])
				return nil
			})
		},
	}
}

func (a *app) newProgressCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "progress <batch-id>",
		Short: "Show the progress of a running batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c WorkflowClient) error {
				var progress activities.BatchProgress
				if err := c.QueryBatchProgress(ctx, args[0], &progress); err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), progress)
			})
		},
	}
}
