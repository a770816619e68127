package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"example.com/backstage/services/fulfillment/internal/database"
	"example.com/backstage/services/fulfillment/internal/metrics"
	"example.com/backstage/services/fulfillment/internal/models"
	"example.com/backstage/services/fulfillment/internal/tracing"
)

// Availability reports whether a raw material can cover a required quantity.
type Availability struct {
	RawMaterialID string  `json:"raw_material_id"`
	Name          string  `json:"name"`
	Required      float64 `json:"required"`
	Available     float64 `json:"available"`
	Sufficient    bool    `json:"sufficient"`
	Shortage      float64 `json:"shortage"`
}

// UsageInput describes a manual usage ledger entry.
type UsageInput struct {
	RawMaterialID uuid.UUID `json:"raw_material_id"`
	Quantity      float64   `json:"quantity"`
	Notes         string    `json:"notes"`
	CreatedBy     string    `json:"created_by"`
}

// InventoryService owns raw-material stock and the usage ledger. All stock
// mutations go through it so the non-negative invariant stays in one place.
type InventoryService struct {
	materials RawMaterialStore
	usages    UsageStore
	txManager database.TxManager
	metrics   *metrics.Metrics
	tracer    tracing.Tracer
}

// NewInventoryService creates a new inventory service
func NewInventoryService(
	materials RawMaterialStore,
	usages UsageStore,
	txManager database.TxManager,
	metricsCollector *metrics.Metrics,
	tracer tracing.Tracer,
) *InventoryService {
	return &InventoryService{
		materials: materials,
		usages:    usages,
		txManager: txManager,
		metrics:   metricsCollector,
		tracer:    tracer,
	}
}

// CreateRawMaterial registers a new raw material
func (s *InventoryService) CreateRawMaterial(ctx context.Context, material *models.RawMaterial) error {
	if material.Name == "" {
		return NewValidationError("raw material name is required")
	}
	if material.Stock < 0 {
		return NewValidationError("raw material stock cannot be negative")
	}
	if material.ID == uuid.Nil {
		material.ID = uuid.New()
	}
	if material.Unit == "" {
		material.Unit = "pcs"
	}

	if err := s.materials.Create(ctx, material); err != nil {
		return errors.Wrap(err, "failed to create raw material")
	}

	log.Info().
		Str("raw_material_id", material.ID.String()).
		Str("name", material.Name).
		Float64("stock", material.Stock).
		Msg("Raw material created")

	return nil
}

// GetRawMaterial gets a raw material by ID
func (s *InventoryService) GetRawMaterial(ctx context.Context, id uuid.UUID) (*models.RawMaterial, error) {
	material, err := s.materials.GetByID(ctx, id)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, NewNotFoundError("raw material", id.String())
		}
		return nil, err
	}
	return material, nil
}

// ListRawMaterials lists all raw materials
func (s *InventoryService) ListRawMaterials(ctx context.Context) ([]models.RawMaterial, error) {
	return s.materials.List(ctx)
}

// CheckAvailability reports whether a raw material can cover the required
// quantity, without locking or mutating anything.
func (s *InventoryService) CheckAvailability(ctx context.Context, materialID uuid.UUID, required float64) (*Availability, error) {
	material, err := s.materials.GetByID(ctx, materialID)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, NewNotFoundError("raw material", materialID.String())
		}
		return nil, err
	}

	availability := &Availability{
		RawMaterialID: material.ID.String(),
		Name:          material.Name,
		Required:      required,
		Available:     material.Stock,
		Sufficient:    material.Stock >= required,
	}
	if !availability.Sufficient {
		availability.Shortage = required - material.Stock
	}

	return availability, nil
}

// Deduct lowers a raw material's stock by qty, clamped at zero. The caller
// must hold the row lock and have validated sufficiency when a shortfall is
// not acceptable.
func (s *InventoryService) Deduct(ctx context.Context, material *models.RawMaterial, qty float64) error {
	newStock := material.Stock - qty
	if newStock < 0 {
		newStock = 0
	}

	if err := s.materials.UpdateStock(ctx, material.ID, newStock); err != nil {
		return errors.Wrap(err, "failed to deduct raw material stock")
	}

	material.Stock = newStock
	return nil
}

// Restore raises a raw material's stock by qty. Used as the compensating
// action when a usage ledger row is deleted.
func (s *InventoryService) Restore(ctx context.Context, materialID uuid.UUID, qty float64) error {
	material, err := s.materials.GetByIDForUpdate(ctx, materialID)
	if err != nil {
		if isRecordNotFound(err) {
			return NewNotFoundError("raw material", materialID.String())
		}
		return err
	}

	if err := s.materials.UpdateStock(ctx, materialID, material.Stock+qty); err != nil {
		return errors.Wrap(err, "failed to restore raw material stock")
	}

	return nil
}

// RecordUsage appends a manual entry to the usage ledger and deducts the
// quantity from stock in the same transaction.
func (s *InventoryService) RecordUsage(ctx context.Context, input UsageInput) (*models.RawMaterialUsage, error) {
	if input.Quantity <= 0 {
		return nil, NewValidationError("usage quantity must be positive")
	}

	usage := &models.RawMaterialUsage{
		ID:            uuid.New(),
		RawMaterialID: input.RawMaterialID,
		QuantityUsed:  input.Quantity,
		Notes:         input.Notes,
		CreatedBy:     input.CreatedBy,
	}

	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		material, err := s.materials.GetByIDForUpdate(ctx, input.RawMaterialID)
		if err != nil {
			if isRecordNotFound(err) {
				return NewNotFoundError("raw material", input.RawMaterialID.String())
			}
			return err
		}

		if err := s.Deduct(ctx, material, input.Quantity); err != nil {
			return err
		}

		return s.usages.Create(ctx, usage)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementCounter("inventory.usage_recorded")
	}

	log.Info().
		Str("usage_id", usage.ID.String()).
		Str("raw_material_id", input.RawMaterialID.String()).
		Float64("quantity", input.Quantity).
		Msg("Raw material usage recorded")

	return usage, nil
}

// DeleteUsage removes a ledger row and restores the deducted quantity to
// stock in the same transaction.
func (s *InventoryService) DeleteUsage(ctx context.Context, id uuid.UUID) error {
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		usage, err := s.usages.GetByID(ctx, id)
		if err != nil {
			if isRecordNotFound(err) {
				return NewNotFoundError("usage record", id.String())
			}
			return err
		}

		if err := s.Restore(ctx, usage.RawMaterialID, usage.QuantityUsed); err != nil {
			return err
		}

		return s.usages.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.IncrementCounter("inventory.usage_deleted")
	}

	log.Info().Str("usage_id", id.String()).Msg("Raw material usage deleted, stock restored")
	return nil
}

// ListUsage lists ledger rows, optionally filtered by order
func (s *InventoryService) ListUsage(ctx context.Context, orderID *uuid.UUID) ([]models.RawMaterialUsage, error) {
	return s.usages.List(ctx, orderID)
}

// LowStockAlerts returns every raw material below its configured threshold
// and records a gauge for the worker's periodic scan.
func (s *InventoryService) LowStockAlerts(ctx context.Context) ([]models.RawMaterial, error) {
	materials, err := s.materials.ListBelowLowerLimit(ctx)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.SetGauge("inventory.low_stock_materials", int64(len(materials)))
	}

	for _, material := range materials {
		log.Warn().
			Str("raw_material_id", material.ID.String()).
			Str("name", material.Name).
			Float64("stock", material.Stock).
			Float64("lower_limit", material.LowerLimit).
			Msg("Raw material below lower limit")
	}

	return materials, nil
}

// isRecordNotFound unwraps infrastructure errors down to gorm's sentinel.
func isRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
