package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/picking-engine/internal/application"
	"github.com/wms-platform/picking-engine/internal/domain"
	"github.com/wms-platform/picking-engine/pkg/logging"
	"github.com/wms-platform/picking-engine/pkg/middleware"
)

// BatchService is the slice of the application service the HTTP layer calls
type BatchService interface {
	FormBatches(ctx context.Context, cmd application.FormBatchesCommand) (*application.FormBatchesResult, error)
	GetBatch(ctx context.Context, query application.GetBatchQuery) (*application.BatchDTO, error)
	ListBatches(ctx context.Context, query application.ListBatchesQuery) (*application.BatchListDTO, error)
	GetRoute(ctx context.Context, query application.GetRouteQuery) (*application.RouteDTO, error)
	PreviewRoute(ctx context.Context, query application.PreviewRouteQuery) (*application.PickingRouteDTO, error)
	StartBatch(ctx context.Context, cmd application.StartBatchCommand) (*application.BatchDTO, error)
	AssignBatch(ctx context.Context, cmd application.AssignBatchCommand) (*application.BatchDTO, error)
	MarkItemPicked(ctx context.Context, cmd application.MarkItemPickedCommand) (*application.MarkItemPickedResult, error)
	ArchiveBatch(ctx context.Context, cmd application.ArchiveBatchCommand) error
}

type orderLineRequest struct {
	ProductID    string  `json:"productId"`
	ProductName  string  `json:"productName"`
	Quantity     int     `json:"quantity"`
	LocationCode string  `json:"locationCode"`
	UnitPrice    float64 `json:"unitPrice"`
}

type orderRequest struct {
	ID     string             `json:"id" binding:"required"`
	Status string             `json:"status" binding:"omitempty,oneof=pending processing shipped delivered cancelled"`
	Lines  []orderLineRequest `json:"lines" binding:"dive"`
}

type formBatchesRequest struct {
	Orders            []orderRequest `json:"orders" binding:"dive"`
	MaxOrdersPerBatch int            `json:"maxOrdersPerBatch" binding:"omitempty,min=1,max=100"`
}

// toOrders treats orders posted without a status as pending
func (r formBatchesRequest) toOrders() []domain.Order {
	orders := make([]domain.Order, 0, len(r.Orders))
	for _, o := range r.Orders {
		status := domain.OrderStatus(o.Status)
		if status == "" {
			status = domain.OrderStatusPending
		}
		lines := make([]domain.OrderLine, 0, len(o.Lines))
		for _, l := range o.Lines {
			lines = append(lines, domain.OrderLine{
				ProductID:    l.ProductID,
				ProductName:  l.ProductName,
				Quantity:     l.Quantity,
				LocationCode: l.LocationCode,
				UnitPrice:    l.UnitPrice,
			})
		}
		orders = append(orders, domain.Order{ID: o.ID, Status: status, Lines: lines})
	}
	return orders
}

type batchURI struct {
	BatchID string `uri:"batchId" binding:"required,safe_id"`
}

type pickURI struct {
	BatchID   string `uri:"batchId" binding:"required,safe_id"`
	ProductID string `uri:"productId" binding:"required"`
}

type listBatchesRequest struct {
	Status string `form:"status" binding:"omitempty,oneof=pending in_progress completed"`
	Search string `form:"search" binding:"omitempty,max=100"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}

type assignBatchRequest struct {
	PickerID string `json:"pickerId" binding:"required,safe_id"`
}

type previewRouteRequest struct {
	Locations []string `json:"locations" binding:"required,min=1,dive,required,locationcode"`
}

func registerRoutes(api *gin.RouterGroup, service BatchService, logger *logging.Logger) {
	batches := api.Group("/batches")
	{
		batches.POST("", formBatchesHandler(service, logger))
		batches.GET("", listBatchesHandler(service, logger))
		batches.GET("/:batchId", getBatchHandler(service, logger))
		batches.DELETE("/:batchId", archiveBatchHandler(service, logger))
		batches.GET("/:batchId/route", getRouteHandler(service, logger))
		batches.POST("/:batchId/start", startBatchHandler(service, logger))
		batches.POST("/:batchId/assign", assignBatchHandler(service, logger))
		batches.POST("/:batchId/items/:productId/pick", markItemPickedHandler(service, logger))
	}
	api.POST("/routes/preview", previewRouteHandler(service, logger))
}

func formBatchesHandler(service BatchService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		var req formBatchesRequest
		// the body is optional; without one the pending orders are fetched
		if c.Request.ContentLength != 0 {
			if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
				responder.RespondWithAppError(appErr)
				return
			}
		}

		result, err := service.FormBatches(c.Request.Context(), application.FormBatchesCommand{
			Orders:            req.toOrders(),
			MaxOrdersPerBatch: req.MaxOrdersPerBatch,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, result)
	}
}

func listBatchesHandler(service BatchService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		var req listBatchesRequest
		if appErr := middleware.BindQueryAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		list, err := service.ListBatches(c.Request.Context(), application.ListBatchesQuery{
			Status: req.Status,
			Search: req.Search,
			Limit:  req.Limit,
			Offset: req.Offset,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, list)
	}
}

func getBatchHandler(service BatchService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		var uri batchURI
		if appErr := middleware.BindURIAndValidate(c, &uri); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		batch, err := service.GetBatch(c.Request.Context(), application.GetBatchQuery{BatchID: uri.BatchID})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, batch)
	}
}

func archiveBatchHandler(service BatchService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		var uri batchURI
		if appErr := middleware.BindURIAndValidate(c, &uri); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		if err := service.ArchiveBatch(c.Request.Context(), application.ArchiveBatchCommand{BatchID: uri.BatchID}); err != nil {
			responder.RespondWithError(err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

func getRouteHandler(service BatchService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		var uri batchURI
		if appErr := middleware.BindURIAndValidate(c, &uri); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		route, err := service.GetRoute(c.Request.Context(), application.GetRouteQuery{BatchID: uri.BatchID})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, route)
	}
}

func startBatchHandler(service BatchService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		var uri batchURI
		if appErr := middleware.BindURIAndValidate(c, &uri); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		batch, err := service.StartBatch(c.Request.Context(), application.StartBatchCommand{BatchID: uri.BatchID})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, batch)
	}
}

func assignBatchHandler(service BatchService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		var uri batchURI
		if appErr := middleware.BindURIAndValidate(c, &uri); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}
		var req assignBatchRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		batch, err := service.AssignBatch(c.Request.Context(), application.AssignBatchCommand{
			BatchID:  uri.BatchID,
			PickerID: req.PickerID,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, batch)
	}
}

func markItemPickedHandler(service BatchService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		var uri pickURI
		if appErr := middleware.BindURIAndValidate(c, &uri); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		result, err := service.MarkItemPicked(c.Request.Context(), application.MarkItemPickedCommand{
			BatchID:   uri.BatchID,
			ProductID: uri.ProductID,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func previewRouteHandler(service BatchService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		var req previewRouteRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		route, err := service.PreviewRoute(c.Request.Context(), application.PreviewRouteQuery{Locations: req.Locations})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, route)
	}
}
