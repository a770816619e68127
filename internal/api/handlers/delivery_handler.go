package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"example.com/backstage/services/fulfillment/internal/services"
	"example.com/backstage/services/fulfillment/internal/tracing"
)

// DeliveryHandler handles delivery-order HTTP requests
type DeliveryHandler struct {
	deliveryService *services.DeliveryService
	tracer          tracing.Tracer
}

// NewDeliveryHandler creates a new delivery handler
func NewDeliveryHandler(deliveryService *services.DeliveryService, tracer tracing.Tracer) *DeliveryHandler {
	return &DeliveryHandler{
		deliveryService: deliveryService,
		tracer:          tracer,
	}
}

// UpdateDeliveryStatusRequest represents a delivery status transition
type UpdateDeliveryStatusRequest struct {
	Status      string     `json:"status" binding:"required"`
	DeliveredAt *time.Time `json:"delivered_at"`
}

// HandleGetDeliveryOrder returns a delivery order with its items
func (h *DeliveryHandler) HandleGetDeliveryOrder(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	deliveryOrder, err := h.deliveryService.GetDeliveryOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Delivery order retrieved", deliveryOrder)
}

// HandleUpdateDeliveryStatus applies a status transition with its timestamp
// rules
func (h *DeliveryHandler) HandleUpdateDeliveryStatus(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-update-delivery-status")
	defer h.tracer.EndTransaction(txn)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	var req UpdateDeliveryStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	deliveryOrder, err := h.deliveryService.UpdateStatus(c.Request.Context(), id, req.Status, req.DeliveredAt)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	respondOK(c, "Delivery order status updated", deliveryOrder)
}

// HandleDeleteDeliveryOrder deletes a pending delivery order
func (h *DeliveryHandler) HandleDeleteDeliveryOrder(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.deliveryService.DeleteDeliveryOrder(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Message: "Delivery order deleted"})
}

// RegisterRoutes registers the handler's routes
func (h *DeliveryHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/delivery-orders/:id", h.HandleGetDeliveryOrder)
	router.PATCH("/delivery-orders/:id/status", h.HandleUpdateDeliveryStatus)
	router.DELETE("/delivery-orders/:id", h.HandleDeleteDeliveryOrder)
}
