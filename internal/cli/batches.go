package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wms-platform/picking-engine/internal/application"
	"github.com/wms-platform/picking-engine/internal/domain"
)

func (a *app) newBatchesCommand() *cobra.Command {
	var ordersFile string

	cmd := &cobra.Command{
		Use:   "batches",
		Short: "Group orders from a file into picking batches",
		Long: `Reads a JSON array of orders and prints the batches they would form.
Only pending orders are batched; nothing is persisted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			orders, err := readOrders(ordersFile)
			if err != nil {
				return err
			}
			batches := domain.NewBatchFormer(a.maxOrdersPerBatch(), nil).FormBatches(orders)
			return writeJSON(cmd.OutOrStdout(), application.ToBatchDTOs(batches))
		},
	}

	cmd.Flags().StringVarP(&ordersFile, "orders", "o", "", "JSON file with the orders to batch")
	_ = cmd.MarkFlagRequired("orders")
	return cmd
}

func readOrders(path string) ([]domain.Order, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}
	var orders []domain.Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, fmt.Errorf("failed to parse orders in %s: %w", path, err)
	}
	return orders, nil
}
