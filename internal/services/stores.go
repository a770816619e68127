package services

import (
	"context"

	"github.com/google/uuid"

	"example.com/backstage/services/fulfillment/internal/models"
)

// The services consume narrow store interfaces rather than concrete
// repositories so the workflow logic can be exercised without a database.
// The gorm implementations live in internal/repositories.

// RawMaterialStore provides access to raw material stock
type RawMaterialStore interface {
	Create(ctx context.Context, material *models.RawMaterial) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.RawMaterial, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.RawMaterial, error)
	UpdateStock(ctx context.Context, id uuid.UUID, stock float64) error
	List(ctx context.Context) ([]models.RawMaterial, error)
	ListBelowLowerLimit(ctx context.Context) ([]models.RawMaterial, error)
}

// ProductStore provides access to products and their recipes
type ProductStore interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context) ([]models.Product, error)
}

// OrderStore provides access to orders
type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	ReplaceItems(ctx context.Context, orderID uuid.UUID, items []models.OrderItem) error
}

// UsageStore provides access to the raw material usage ledger
type UsageStore interface {
	Create(ctx context.Context, usage *models.RawMaterialUsage) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.RawMaterialUsage, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, orderID *uuid.UUID) ([]models.RawMaterialUsage, error)
}

// WorkOrderStore provides access to work orders
type WorkOrderStore interface {
	Create(ctx context.Context, workOrder *models.WorkOrder) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	List(ctx context.Context, status string) ([]models.WorkOrder, error)
	ListIDsForReconciliation(ctx context.Context) ([]uuid.UUID, error)
}

// DeliveryOrderStore provides access to delivery orders
type DeliveryOrderStore interface {
	Create(ctx context.Context, deliveryOrder *models.DeliveryOrder) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.DeliveryOrder, error)
	Save(ctx context.Context, deliveryOrder *models.DeliveryOrder) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByWorkOrder(ctx context.Context, workOrderID uuid.UUID) ([]models.DeliveryOrder, error)
}

// EventPublisher publishes fulfillment lifecycle events to the message bus
type EventPublisher interface {
	PublishWorkOrderCompleted(ctx context.Context, workOrder *models.WorkOrder) error
}
