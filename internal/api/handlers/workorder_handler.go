package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"example.com/backstage/services/fulfillment/internal/services"
	"example.com/backstage/services/fulfillment/internal/tracing"
)

// WorkOrderHandler handles work-order and delivery related HTTP requests
type WorkOrderHandler struct {
	workOrderService *services.WorkOrderService
	deliveryService  *services.DeliveryService
	tracer           tracing.Tracer
}

// NewWorkOrderHandler creates a new work order handler
func NewWorkOrderHandler(
	workOrderService *services.WorkOrderService,
	deliveryService *services.DeliveryService,
	tracer tracing.Tracer,
) *WorkOrderHandler {
	return &WorkOrderHandler{
		workOrderService: workOrderService,
		deliveryService:  deliveryService,
		tracer:           tracer,
	}
}

// CreateWorkOrderRequest represents an incoming work order creation request
type CreateWorkOrderRequest struct {
	OrderID uuid.UUID `json:"order_id" binding:"required"`
	Notes   string    `json:"notes"`
}

// UpdateStatusRequest represents a status transition request
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CreateDeliveryOrderRequest represents an incoming delivery order request
type CreateDeliveryOrderRequest struct {
	PlannedDeliveryDate *time.Time                   `json:"planned_delivery_date"`
	Items               []services.DeliveryItemInput `json:"items" binding:"required"`
}

// HandleCreateWorkOrder opens a work order for a confirmed order
func (h *WorkOrderHandler) HandleCreateWorkOrder(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-create-work-order")
	defer h.tracer.EndTransaction(txn)

	var req CreateWorkOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	workOrder, err := h.workOrderService.CreateWorkOrder(c.Request.Context(), req.OrderID, req.Notes)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	respondCreated(c, "Work order created", workOrder)
}

// HandleGetWorkOrder returns a work order with its deliveries
func (h *WorkOrderHandler) HandleGetWorkOrder(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	workOrder, err := h.workOrderService.GetWorkOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Work order retrieved", workOrder)
}

// HandleListWorkOrders lists work orders, optionally by status
func (h *WorkOrderHandler) HandleListWorkOrders(c *gin.Context) {
	workOrders, err := h.workOrderService.ListWorkOrders(c.Request.Context(), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Work orders retrieved", workOrders)
}

// HandleUpdateWorkOrderStatus applies a manual status transition
func (h *WorkOrderHandler) HandleUpdateWorkOrderStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	workOrder, err := h.workOrderService.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Work order status updated", workOrder)
}

// HandleGetDeliverySummary reports fulfillment progress per product
func (h *WorkOrderHandler) HandleGetDeliverySummary(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	summary, err := h.deliveryService.Summary(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Delivery summary retrieved", summary)
}

// HandleListDeliveryOrders lists a work order's delivery orders
func (h *WorkOrderHandler) HandleListDeliveryOrders(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	deliveryOrders, err := h.deliveryService.ListByWorkOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Delivery orders retrieved", deliveryOrders)
}

// HandleCreateDeliveryOrder opens a delivery order against a work order
func (h *WorkOrderHandler) HandleCreateDeliveryOrder(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-create-delivery-order")
	defer h.tracer.EndTransaction(txn)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	h.tracer.AddAttribute(txn, "work_order_id", id.String())

	var req CreateDeliveryOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	deliveryOrder, err := h.deliveryService.CreateDeliveryOrder(c.Request.Context(), services.CreateDeliveryInput{
		WorkOrderID:         id,
		PlannedDeliveryDate: req.PlannedDeliveryDate,
		Items:               req.Items,
	})
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	respondCreated(c, "Delivery order created", deliveryOrder)
}

// RegisterRoutes registers the handler's routes
func (h *WorkOrderHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/work-orders", h.HandleCreateWorkOrder)
	router.GET("/work-orders", h.HandleListWorkOrders)
	router.GET("/work-orders/:id", h.HandleGetWorkOrder)
	router.PATCH("/work-orders/:id/status", h.HandleUpdateWorkOrderStatus)
	router.GET("/work-orders/:id/delivery-summary", h.HandleGetDeliverySummary)
	router.GET("/work-orders/:id/delivery-orders", h.HandleListDeliveryOrders)
	router.POST("/work-orders/:id/delivery-orders", h.HandleCreateDeliveryOrder)
}
