package application

import (
	"math"

	"github.com/wms-platform/picking-engine/internal/domain"
)

// ToBatchDTO converts a domain PickingBatch to BatchDTO
func ToBatchDTO(batch *domain.PickingBatch) *BatchDTO {
	if batch == nil {
		return nil
	}

	picked, total := batch.GetProgress()
	orderIDs := append([]string{}, batch.OrderIDs...)

	return &BatchDTO{
		BatchID:     batch.BatchID,
		OrderIDs:    orderIDs,
		Items:       ToPickingItemDTOs(batch.Items),
		Status:      string(batch.Status),
		AssignedTo:  batch.AssignedTo,
		Progress:    toProgressDTO(picked, total),
		CreatedAt:   batch.CreatedAt,
		UpdatedAt:   batch.UpdatedAt,
		StartedAt:   batch.StartedAt,
		CompletedAt: batch.CompletedAt,
		Version:     batch.Version,
	}
}

// ToBatchDTOs converts a slice of batches
func ToBatchDTOs(batches []*domain.PickingBatch) []BatchDTO {
	dtos := make([]BatchDTO, 0, len(batches))
	for _, batch := range batches {
		dtos = append(dtos, *ToBatchDTO(batch))
	}
	return dtos
}

// ToPickingItemDTOs converts items, preserving their order
func ToPickingItemDTOs(items []domain.PickingItem) []PickingItemDTO {
	dtos := make([]PickingItemDTO, 0, len(items))
	for _, item := range items {
		orders := make([]OrderQuantityDTO, 0, len(item.PerOrder))
		for _, oq := range item.PerOrder {
			orders = append(orders, OrderQuantityDTO{OrderID: oq.OrderID, Quantity: oq.Quantity})
		}
		dtos = append(dtos, PickingItemDTO{
			ProductID:     item.ProductID,
			ProductName:   item.ProductName,
			LocationCode:  item.LocationCode,
			TotalQuantity: item.TotalQuantity,
			Orders:        orders,
			Picked:        item.Picked,
			IsPicked:      item.IsPicked(),
		})
	}
	return dtos
}

// ToRouteDTO combines a route with the batch items reordered along it
func ToRouteDTO(batch *domain.PickingBatch, route domain.PickingRoute) *RouteDTO {
	return &RouteDTO{
		BatchID:          batch.BatchID,
		OrderedLocations: append([]string{}, route.OrderedLocations...),
		TotalDistance:    route.TotalDistance,
		Items:            ToPickingItemDTOs(domain.ReorderItems(batch, route)),
	}
}

func toProgressDTO(picked, total int) ProgressDTO {
	percent := 0.0
	if total > 0 {
		percent = math.Round(float64(picked)/float64(total)*1000) / 10
	}
	return ProgressDTO{PickedUnits: picked, TotalUnits: total, Percent: percent}
}
