package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wms-platform/picking-engine/internal/domain"
	"github.com/wms-platform/picking-engine/pkg/logging"
	"github.com/wms-platform/picking-engine/pkg/resilience"
)

const (
	defaultPageSize = 100
	// maxPages bounds a single listing so a misbehaving order service cannot loop us forever
	maxPages = 50
)

// PagedOrdersResponse is a page of orders from the order service
type PagedOrdersResponse struct {
	Data       []domain.Order `json:"data"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalItems int            `json:"totalItems"`
	TotalPages int            `json:"totalPages"`
}

// OrderServiceClient reads pending orders from the order service.
// Implements domain.OrderSource.
type OrderServiceClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	logger     *logging.Logger
	pageSize   int
}

// NewOrderServiceClient creates a client. breaker may be nil.
func NewOrderServiceClient(baseURL string, timeout time.Duration, breaker *resilience.CircuitBreaker, logger *logging.Logger) *OrderServiceClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &OrderServiceClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		logger:     logger.WithComponent("order-client"),
		pageSize:   defaultPageSize,
	}
}

// ListPendingOrders fetches every pending order, following pagination
func (c *OrderServiceClient) ListPendingOrders(ctx context.Context) ([]domain.Order, error) {
	start := time.Now()
	orders := []domain.Order{}

	for page := 1; page <= maxPages; page++ {
		resp, err := c.fetchPage(ctx, page)
		if err != nil {
			c.logger.Performance(ctx, "list_pending_orders", time.Since(start), false, map[string]any{"page": page})
			return nil, err
		}

		for _, order := range resp.Data {
			// the order service filter is advisory; only pending orders may be batched
			if order.IsPending() {
				orders = append(orders, order)
			}
		}

		if len(resp.Data) == 0 || resp.TotalPages <= page {
			break
		}
	}

	c.logger.Performance(ctx, "list_pending_orders", time.Since(start), true, map[string]any{"count": len(orders)})
	return orders, nil
}

func (c *OrderServiceClient) fetchPage(ctx context.Context, page int) (*PagedOrdersResponse, error) {
	if c.breaker == nil {
		return c.doFetchPage(ctx, page)
	}
	return resilience.Execute(ctx, c.breaker, func(ctx context.Context) (*PagedOrdersResponse, error) {
		return c.doFetchPage(ctx, page)
	})
}

func (c *OrderServiceClient) doFetchPage(ctx context.Context, page int) (*PagedOrdersResponse, error) {
	url := fmt.Sprintf("%s/api/v1/orders", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	q := req.URL.Query()
	q.Add("status", string(domain.OrderStatusPending))
	q.Add("page", strconv.Itoa(page))
	q.Add("pageSize", strconv.Itoa(c.pageSize))
	req.URL.RawQuery = q.Encode()

	req.Header.Set("Accept", "application/json")
	if correlationID := logging.CorrelationIDFromContext(ctx); correlationID != "" {
		req.Header.Set("X-Correlation-ID", correlationID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending orders: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("order service returned status %d", resp.StatusCode)
	}

	var paged PagedOrdersResponse
	if err := json.NewDecoder(resp.Body).Decode(&paged); err != nil {
		return nil, fmt.Errorf("failed to decode orders response: %w", err)
	}
	return &paged, nil
}
