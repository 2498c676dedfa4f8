package domain

// ConsolidateItems merges the lines of a group of orders into one pick requirement per product.
//
// Orders and lines are visited in the order supplied. The first line seen for a product fixes
// its name and location; later lines only add quantity. Lines without a product id or with a
// non-positive quantity are skipped. The result keeps products in first-encounter order.
func ConsolidateItems(orders []Order) []PickingItem {
	items := make([]PickingItem, 0)
	byProduct := make(map[string]int)
	// per product: orderId -> index into perOrder
	orderSlots := make(map[string]map[string]int)

	for _, order := range orders {
		for _, line := range order.Lines {
			if !line.IsPickable() {
				continue
			}

			idx, ok := byProduct[line.ProductID]
			if !ok {
				items = append(items, PickingItem{
					ProductID:    line.ProductID,
					ProductName:  line.ProductName,
					LocationCode: line.LocationCode,
					PerOrder:     make([]OrderQuantity, 0, 1),
				})
				idx = len(items) - 1
				byProduct[line.ProductID] = idx
				orderSlots[line.ProductID] = make(map[string]int)
			}

			item := &items[idx]
			item.TotalQuantity += line.Quantity

			slots := orderSlots[line.ProductID]
			if slot, seen := slots[order.ID]; seen {
				item.PerOrder[slot].Quantity += line.Quantity
				continue
			}
			slots[order.ID] = len(item.PerOrder)
			item.PerOrder = append(item.PerOrder, OrderQuantity{OrderID: order.ID, Quantity: line.Quantity})
		}
	}

	return items
}
