package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"example.com/backstage/services/fulfillment/internal/services"
	"example.com/backstage/services/fulfillment/internal/tracing"
)

// OrderHandler handles order-related HTTP requests
type OrderHandler struct {
	orderService *services.OrderService
	tracer       tracing.Tracer
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orderService *services.OrderService, tracer tracing.Tracer) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		tracer:       tracer,
	}
}

// CreateOrderRequest represents an incoming order creation request
type CreateOrderRequest struct {
	CustomerName    string                    `json:"customer_name" binding:"required"`
	CustomerEmail   string                    `json:"customer_email"`
	CustomerPhone   string                    `json:"customer_phone"`
	CustomerAddress string                    `json:"customer_address"`
	Items           []services.OrderItemInput `json:"items"`
}

// UpdateOrderItemsRequest represents a request to replace an order's items
type UpdateOrderItemsRequest struct {
	Items []services.OrderItemInput `json:"items" binding:"required"`
}

// HandleCreateOrder creates a draft order
func (h *OrderHandler) HandleCreateOrder(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-create-order")
	defer h.tracer.EndTransaction(txn)

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), services.CreateOrderInput{
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		CustomerAddress: req.CustomerAddress,
		Items:           req.Items,
	})
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	respondCreated(c, "Order created", order)
}

// HandleGetOrder returns an order with its items
func (h *OrderHandler) HandleGetOrder(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Order retrieved", order)
}

// HandleUpdateOrderItems replaces the items of a draft order
func (h *OrderHandler) HandleUpdateOrderItems(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	var req UpdateOrderItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	order, err := h.orderService.UpdateOrderItems(c.Request.Context(), id, req.Items)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Order items updated", order)
}

// HandleConfirmOrder confirms an order, deducting raw materials
func (h *OrderHandler) HandleConfirmOrder(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-confirm-order")
	defer h.tracer.EndTransaction(txn)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	h.tracer.AddAttribute(txn, "order_id", id.String())

	order, err := h.orderService.ConfirmOrder(c.Request.Context(), id)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	respondOK(c, "Order confirmed", order)
}

// HandleSearchOrders searches indexed order confirmations by customer name
func (h *OrderHandler) HandleSearchOrders(c *gin.Context) {
	results, err := h.orderService.SearchConfirmations(c.Request.Context(), c.Query("customer"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Orders retrieved", results)
}

// RegisterRoutes registers the handler's routes
func (h *OrderHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/orders", h.HandleCreateOrder)
	router.GET("/orders/:id", h.HandleGetOrder)
	router.PUT("/orders/:id/items", h.HandleUpdateOrderItems)
	router.POST("/orders/:id/confirm", h.HandleConfirmOrder)
	router.GET("/search/orders", h.HandleSearchOrders)
}
