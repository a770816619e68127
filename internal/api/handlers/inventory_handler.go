package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"example.com/backstage/services/fulfillment/internal/models"
	"example.com/backstage/services/fulfillment/internal/services"
	"example.com/backstage/services/fulfillment/internal/tracing"
)

// InventoryHandler handles raw-material and usage ledger HTTP requests
type InventoryHandler struct {
	inventoryService *services.InventoryService
	tracer           tracing.Tracer
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(inventoryService *services.InventoryService, tracer tracing.Tracer) *InventoryHandler {
	return &InventoryHandler{
		inventoryService: inventoryService,
		tracer:           tracer,
	}
}

// CreateRawMaterialRequest represents an incoming raw material registration
type CreateRawMaterialRequest struct {
	Name       string  `json:"name" binding:"required"`
	Unit       string  `json:"unit"`
	Stock      float64 `json:"stock"`
	LowerLimit float64 `json:"lower_limit"`
}

// RecordUsageRequest represents a manual usage ledger entry
type RecordUsageRequest struct {
	RawMaterialID uuid.UUID `json:"raw_material_id" binding:"required"`
	Quantity      float64   `json:"quantity" binding:"required"`
	Notes         string    `json:"notes"`
	CreatedBy     string    `json:"created_by"`
}

// HandleCreateRawMaterial registers a raw material
func (h *InventoryHandler) HandleCreateRawMaterial(c *gin.Context) {
	var req CreateRawMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	material := &models.RawMaterial{
		Name:       req.Name,
		Unit:       req.Unit,
		Stock:      req.Stock,
		LowerLimit: req.LowerLimit,
	}
	if err := h.inventoryService.CreateRawMaterial(c.Request.Context(), material); err != nil {
		respondError(c, err)
		return
	}

	respondCreated(c, "Raw material created", material)
}

// HandleListRawMaterials lists all raw materials
func (h *InventoryHandler) HandleListRawMaterials(c *gin.Context) {
	materials, err := h.inventoryService.ListRawMaterials(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Raw materials retrieved", materials)
}

// HandleGetRawMaterial gets a raw material by ID
func (h *InventoryHandler) HandleGetRawMaterial(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	material, err := h.inventoryService.GetRawMaterial(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Raw material retrieved", material)
}

// HandleCheckAvailability reports whether a material covers a required
// quantity passed as the "required" query parameter
func (h *InventoryHandler) HandleCheckAvailability(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	required, err := strconv.ParseFloat(c.DefaultQuery("required", "0"), 64)
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	availability, err := h.inventoryService.CheckAvailability(c.Request.Context(), id, required)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Availability checked", availability)
}

// HandleRecordUsage appends a manual usage ledger entry
func (h *InventoryHandler) HandleRecordUsage(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-record-usage")
	defer h.tracer.EndTransaction(txn)

	var req RecordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	usage, err := h.inventoryService.RecordUsage(c.Request.Context(), services.UsageInput{
		RawMaterialID: req.RawMaterialID,
		Quantity:      req.Quantity,
		Notes:         req.Notes,
		CreatedBy:     req.CreatedBy,
	})
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	respondCreated(c, "Usage recorded", usage)
}

// HandleListUsage lists ledger rows, optionally filtered by order_id
func (h *InventoryHandler) HandleListUsage(c *gin.Context) {
	var orderID *uuid.UUID
	if raw := c.Query("order_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondBadRequest(c, err)
			return
		}
		orderID = &id
	}

	usages, err := h.inventoryService.ListUsage(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Usage records retrieved", usages)
}

// HandleDeleteUsage deletes a ledger row, restoring the deducted stock
func (h *InventoryHandler) HandleDeleteUsage(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.inventoryService.DeleteUsage(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Message: "Usage deleted, stock restored"})
}

// RegisterRoutes registers the handler's routes
func (h *InventoryHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/raw-materials", h.HandleCreateRawMaterial)
	router.GET("/raw-materials", h.HandleListRawMaterials)
	router.GET("/raw-materials/:id", h.HandleGetRawMaterial)
	router.GET("/raw-materials/:id/availability", h.HandleCheckAvailability)
	router.POST("/usage", h.HandleRecordUsage)
	router.GET("/usage", h.HandleListUsage)
	router.DELETE("/usage/:id", h.HandleDeleteUsage)
}
