package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"example.com/backstage/services/fulfillment/internal/models"
	"example.com/backstage/services/fulfillment/internal/services"
	"example.com/backstage/services/fulfillment/internal/tracing"
)

// ProductHandler handles product and recipe HTTP requests
type ProductHandler struct {
	recipeService *services.RecipeService
	tracer        tracing.Tracer
}

// NewProductHandler creates a new product handler
func NewProductHandler(recipeService *services.RecipeService, tracer tracing.Tracer) *ProductHandler {
	return &ProductHandler{
		recipeService: recipeService,
		tracer:        tracer,
	}
}

// ProductIngredientRequest is one recipe line of a product
type ProductIngredientRequest struct {
	RawMaterialID   uuid.UUID `json:"raw_material_id" binding:"required"`
	QuantityPerUnit float64   `json:"quantity_per_unit" binding:"required"`
}

// CreateProductRequest represents an incoming product registration
type CreateProductRequest struct {
	Name        string                     `json:"name" binding:"required"`
	Description string                     `json:"description"`
	Unit        string                     `json:"unit"`
	Ingredients []ProductIngredientRequest `json:"ingredients"`
}

// HandleCreateProduct registers a product with its recipe
func (h *ProductHandler) HandleCreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	product := &models.Product{
		Name:        req.Name,
		Description: req.Description,
		Unit:        req.Unit,
	}
	for _, ingredient := range req.Ingredients {
		product.Ingredients = append(product.Ingredients, models.ProductIngredient{
			RawMaterialID:   ingredient.RawMaterialID,
			QuantityPerUnit: ingredient.QuantityPerUnit,
		})
	}

	if err := h.recipeService.CreateProduct(c.Request.Context(), product); err != nil {
		respondError(c, err)
		return
	}

	respondCreated(c, "Product created", product)
}

// HandleGetProduct returns a product with its recipe
func (h *ProductHandler) HandleGetProduct(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	product, err := h.recipeService.GetProductWithIngredients(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Product retrieved", product)
}

// HandleListProducts lists all products
func (h *ProductHandler) HandleListProducts(c *gin.Context) {
	products, err := h.recipeService.ListProducts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Products retrieved", products)
}

// RegisterRoutes registers the handler's routes
func (h *ProductHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/products", h.HandleCreateProduct)
	router.GET("/products", h.HandleListProducts)
	router.GET("/products/:id", h.HandleGetProduct)
}
