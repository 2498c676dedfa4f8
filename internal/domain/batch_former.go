package domain

import "github.com/google/uuid"

// DefaultMaxOrdersPerBatch bounds how many orders one batch may hold
const DefaultMaxOrdersPerBatch = 5

// IDGenerator produces batch identifiers
type IDGenerator func() string

// NewBatchID returns a fresh, collision-free batch identifier
func NewBatchID() string {
	return "batch-" + uuid.NewString()
}

// BatchFormer groups pending orders into picking batches by shared-product affinity
type BatchFormer struct {
	maxOrdersPerBatch int
	newID             IDGenerator
}

// NewBatchFormer creates a former. A non-positive limit falls back to
// DefaultMaxOrdersPerBatch and a nil generator to NewBatchID.
func NewBatchFormer(maxOrdersPerBatch int, newID IDGenerator) *BatchFormer {
	if maxOrdersPerBatch <= 0 {
		maxOrdersPerBatch = DefaultMaxOrdersPerBatch
	}
	if newID == nil {
		newID = NewBatchID
	}
	return &BatchFormer{maxOrdersPerBatch: maxOrdersPerBatch, newID: newID}
}

// MaxOrdersPerBatch returns the configured batch size bound
func (f *BatchFormer) MaxOrdersPerBatch() int {
	return f.maxOrdersPerBatch
}

// FormBatches groups the pending orders and wraps each group into a pending batch.
// It never fails: no eligible orders simply yields no batches.
func (f *BatchFormer) FormBatches(orders []Order) []*PickingBatch {
	groups := GroupOrders(orders, f.maxOrdersPerBatch)
	batches := make([]*PickingBatch, 0, len(groups))
	for _, group := range groups {
		// groups are never empty and ids are never blank, so this cannot fail
		batch, err := NewPickingBatch(f.newID(), group)
		if err != nil {
			continue
		}
		batches = append(batches, batch)
	}
	return batches
}

// FormBatches groups orders with the default id generator
func FormBatches(orders []Order, maxOrdersPerBatch int) []*PickingBatch {
	return NewBatchFormer(maxOrdersPerBatch, nil).FormBatches(orders)
}

type orderGroup struct {
	orders   []Order
	products map[string]struct{}
}

func (g *orderGroup) sharesProductWith(productIDs []string) bool {
	for _, id := range productIDs {
		if _, ok := g.products[id]; ok {
			return true
		}
	}
	return false
}

func (g *orderGroup) add(order Order, productIDs []string) {
	g.orders = append(g.orders, order)
	for _, id := range productIDs {
		g.products[id] = struct{}{}
	}
}

// GroupOrders runs single-pass first-fit clustering over the pending orders.
//
// Each order joins the first open group, in creation order, that still has room and
// already contains one of its products; otherwise it opens a new group. Repeated order
// ids are kept only on first sight.
func GroupOrders(orders []Order, maxOrdersPerBatch int) [][]Order {
	if maxOrdersPerBatch <= 0 {
		maxOrdersPerBatch = DefaultMaxOrdersPerBatch
	}

	var groups []*orderGroup
	seen := make(map[string]struct{}, len(orders))

	for _, order := range orders {
		if !order.IsPending() {
			continue
		}
		if _, dup := seen[order.ID]; dup {
			continue
		}
		seen[order.ID] = struct{}{}

		productIDs := order.ProductIDs()
		placed := false
		for _, g := range groups {
			if len(g.orders) >= maxOrdersPerBatch {
				continue
			}
			if g.sharesProductWith(productIDs) {
				g.add(order, productIDs)
				placed = true
				break
			}
		}

		if !placed {
			g := &orderGroup{products: make(map[string]struct{})}
			g.add(order, productIDs)
			groups = append(groups, g)
		}
	}

	result := make([][]Order, 0, len(groups))
	for _, g := range groups {
		result = append(result, g.orders)
	}
	return result
}
