package domain

// OrderStatus is the lifecycle status of a customer order as reported by the order source
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderLine is one product line of an order. Read-only input to batching.
type OrderLine struct {
	ProductID    string  `json:"productId" bson:"productId"`
	ProductName  string  `json:"productName" bson:"productName"`
	Quantity     int     `json:"quantity" bson:"quantity"`
	LocationCode string  `json:"locationCode" bson:"locationCode"`
	UnitPrice    float64 `json:"unitPrice" bson:"unitPrice"`
}

// IsPickable reports whether the line can contribute to a pick list
func (l OrderLine) IsPickable() bool {
	return l.ProductID != "" && l.Quantity > 0
}

// Order is a customer order supplied by the order collaborator
type Order struct {
	ID     string      `json:"id" bson:"id"`
	Status OrderStatus `json:"status" bson:"status"`
	Lines  []OrderLine `json:"lines" bson:"lines"`
}

// IsPending reports whether the order is eligible for batching
func (o Order) IsPending() bool {
	return o.Status == OrderStatusPending
}

// ProductIDs returns the distinct product ids of the order's pickable lines
func (o Order) ProductIDs() []string {
	seen := make(map[string]struct{}, len(o.Lines))
	ids := make([]string, 0, len(o.Lines))
	for _, line := range o.Lines {
		if !line.IsPickable() {
			continue
		}
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	return ids
}
