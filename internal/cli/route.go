package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wms-platform/picking-engine/internal/application"
	"github.com/wms-platform/picking-engine/internal/domain"
)

func (a *app) newRouteCommand() *cobra.Command {
	var ordersFile string

	cmd := &cobra.Command{
		Use:   "route [location...]",
		Short: "Sequence a pick route",
		Long: `With --orders, forms batches from the file and prints each batch's route
with its items in walking order. Otherwise sequences the given location codes.`,
		Example: `  pickctl route --orders orders.json --max 3
  pickctl route A1-S3 B2-S1 A4-S2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ordersFile == "" {
				return routeLocations(cmd, args)
			}
			if len(args) > 0 {
				return fmt.Errorf("location codes cannot be combined with --orders")
			}

			orders, err := readOrders(ordersFile)
			if err != nil {
				return err
			}
			batches := domain.NewBatchFormer(a.maxOrdersPerBatch(), nil).FormBatches(orders)

			routes := make([]*application.RouteDTO, 0, len(batches))
			for _, batch := range batches {
				route, err := domain.OptimizeRoute(batch)
				if err != nil {
					return fmt.Errorf("batch with orders %v: %w", batch.OrderIDs, err)
				}
				routes = append(routes, application.ToRouteDTO(batch, route))
			}
			return writeJSON(cmd.OutOrStdout(), routes)
		},
	}

	cmd.Flags().StringVarP(&ordersFile, "orders", "o", "", "JSON file with the orders to batch and route")
	return cmd
}

func routeLocations(cmd *cobra.Command, args []string) error {
	codes := domain.DistinctLocationCodes(args)
	if len(codes) == 0 {
		return fmt.Errorf("give location codes or --orders")
	}
	route, err := domain.OptimizeLocations(codes)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), application.PickingRouteDTO{
		OrderedLocations: route.OrderedLocations,
		TotalDistance:    route.TotalDistance,
	})
}
