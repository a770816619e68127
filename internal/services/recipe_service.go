package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/fulfillment/internal/cache"
	"example.com/backstage/services/fulfillment/internal/models"
)

// productCacheTTL bounds how stale a cached recipe can get.
const productCacheTTL = 10 * time.Minute

// RecipeService owns products and their raw-material recipes.
type RecipeService struct {
	products ProductStore
	cache    *cache.RedisCache
}

// NewRecipeService creates a new recipe service
func NewRecipeService(products ProductStore, redisCache *cache.RedisCache) *RecipeService {
	return &RecipeService{
		products: products,
		cache:    redisCache,
	}
}

// CreateProduct registers a new product with its recipe
func (s *RecipeService) CreateProduct(ctx context.Context, product *models.Product) error {
	if product.Name == "" {
		return NewValidationError("product name is required")
	}
	for _, ingredient := range product.Ingredients {
		if ingredient.QuantityPerUnit <= 0 {
			return NewValidationError("ingredient quantity per unit must be positive")
		}
	}

	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	if product.Unit == "" {
		product.Unit = "pcs"
	}
	for i := range product.Ingredients {
		if product.Ingredients[i].ID == uuid.Nil {
			product.Ingredients[i].ID = uuid.New()
		}
		product.Ingredients[i].ProductID = product.ID
	}

	if err := s.products.Create(ctx, product); err != nil {
		return errors.Wrap(err, "failed to create product")
	}

	log.Info().
		Str("product_id", product.ID.String()).
		Str("name", product.Name).
		Int("ingredients", len(product.Ingredients)).
		Msg("Product created")

	return nil
}

// GetProductWithIngredients returns a product with its recipe, read through
// the cache when one is configured.
func (s *RecipeService) GetProductWithIngredients(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	cacheKey := cache.GetProductCacheKey(id)

	var cached models.Product
	if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
		return &cached, nil
	}

	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, NewNotFoundError("product", id.String())
		}
		return nil, err
	}

	if err := s.cache.Set(ctx, cacheKey, product, productCacheTTL); err != nil {
		log.Debug().Err(err).Str("product_id", id.String()).Msg("Failed to cache product")
	}

	return product, nil
}

// ListProducts lists all products with their recipes
func (s *RecipeService) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.products.List(ctx)
}
