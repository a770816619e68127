package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Order statuses. Only draft and confirm are driven by the confirmation
// workflow; the remaining values exist for externally managed orders.
const (
	OrderStatusDraft      = "draft"
	OrderStatusConfirm    = "confirm"
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Work order statuses. The completed<->pending edge is driven automatically
// from delivery state; the rest are manual transitions.
const (
	WorkOrderStatusPending    = "pending"
	WorkOrderStatusInProgress = "in_progress"
	WorkOrderStatusCompleted  = "completed"
	WorkOrderStatusCancelled  = "cancelled"
)

// Delivery order statuses.
const (
	DeliveryStatusPending   = "pending"
	DeliveryStatusShipped   = "shipped"
	DeliveryStatusDelivered = "delivered"
	DeliveryStatusCancelled = "cancelled"
)

// RawMaterial holds the current stock level for one raw material.
// Stock is never written directly outside the inventory service; every
// mutation goes through deduct/restore so the non-negative invariant
// stays in one place.
type RawMaterial struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
	Name       string         `gorm:"not null" json:"name"`
	Unit       string         `gorm:"not null;default:pcs" json:"unit"`
	Stock      float64        `gorm:"type:decimal(12,4);not null;default:0" json:"stock"`
	LowerLimit float64        `gorm:"type:decimal(12,4);not null;default:0" json:"lower_limit"`
}

// Product is a finished good producible from raw materials.
type Product struct {
	ID          uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt      `gorm:"index" json:"-"`
	Name        string              `gorm:"not null" json:"name"`
	Description string              `json:"description"`
	Unit        string              `gorm:"not null;default:pcs" json:"unit"`
	Ingredients []ProductIngredient `gorm:"foreignKey:ProductID" json:"ingredients,omitempty"`
}

// ProductIngredient is one line of a product's recipe: the quantity of a
// raw material consumed per unit of product.
type ProductIngredient struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
	ProductID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"product_id"`
	RawMaterialID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"raw_material_id"`
	QuantityPerUnit float64        `gorm:"type:decimal(12,4);not null" json:"quantity_per_unit"`
	RawMaterial     RawMaterial    `gorm:"foreignKey:RawMaterialID" json:"-"`
}

// Order is a customer's request for products. It is created in draft and
// moves to confirm once raw materials have been deducted.
type Order struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
	CustomerName    string         `gorm:"not null" json:"customer_name"`
	CustomerEmail   string         `json:"customer_email"`
	CustomerPhone   string         `json:"customer_phone"`
	CustomerAddress string         `json:"customer_address"`
	Status          string         `gorm:"not null;default:draft" json:"status"`
	Items           []OrderItem    `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

// OrderItem is one (product, quantity) line of an order. Items are mutable
// only while the order is still draft.
type OrderItem struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	OrderID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID uuid.UUID      `gorm:"type:uuid;not null" json:"product_id"`
	Quantity  float64        `gorm:"type:decimal(12,4);not null" json:"quantity"`
	Product   Product        `gorm:"foreignKey:ProductID" json:"-"`
}

// RawMaterialUsage is an append-only ledger row recording one deduction of
// raw-material stock. Confirmation writes one row per (order item x
// ingredient) pair; manual entries carry no order reference. Deleting a
// row restores the deducted stock.
type RawMaterialUsage struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	OrderID       *uuid.UUID `gorm:"type:uuid;index" json:"order_id"`
	OrderItemID   *uuid.UUID `gorm:"type:uuid" json:"order_item_id"`
	ProductID     *uuid.UUID `gorm:"type:uuid" json:"product_id"`
	RawMaterialID uuid.UUID  `gorm:"type:uuid;not null;index" json:"raw_material_id"`
	QuantityUsed  float64    `gorm:"type:decimal(12,4);not null" json:"quantity_used"`
	Notes         string     `json:"notes"`
	CreatedBy     string     `json:"created_by"`
}

// WorkOrder tracks production and fulfillment of one confirmed order.
type WorkOrder struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt  `gorm:"index" json:"-"`
	OrderID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	WOCode         string          `gorm:"not null;uniqueIndex" json:"wo_code"`
	Status         string          `gorm:"not null;default:pending" json:"status"`
	Notes          string          `json:"notes"`
	Order          Order           `gorm:"foreignKey:OrderID" json:"-"`
	DeliveryOrders []DeliveryOrder `gorm:"foreignKey:WorkOrderID" json:"delivery_orders,omitempty"`
}

// DeliveryOrder is one shipment, possibly partial, against a work order.
type DeliveryOrder struct {
	ID                  uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt           time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt           gorm.DeletedAt      `gorm:"index" json:"-"`
	WorkOrderID         uuid.UUID           `gorm:"type:uuid;not null;index" json:"work_order_id"`
	OrderID             uuid.UUID           `gorm:"type:uuid;not null;index" json:"order_id"`
	DOCode              string              `gorm:"not null;uniqueIndex" json:"do_code"`
	Status              string              `gorm:"not null;default:pending" json:"status"`
	PlannedDeliveryDate *time.Time          `json:"planned_delivery_date"`
	ShippedAt           *time.Time          `json:"shipped_at"`
	DeliveredAt         *time.Time          `json:"delivered_at"`
	Items               []DeliveryOrderItem `gorm:"foreignKey:DeliveryOrderID" json:"items,omitempty"`
}

// DeliveryOrderItem snapshots the product name and unit at creation time;
// it does not follow later product edits.
type DeliveryOrderItem struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
	DeliveryOrderID uuid.UUID      `gorm:"type:uuid;not null;index" json:"delivery_order_id"`
	ProductID       uuid.UUID      `gorm:"type:uuid;not null" json:"product_id"`
	ProductName     string         `gorm:"not null" json:"product_name"`
	Quantity        float64        `gorm:"type:decimal(12,4);not null" json:"quantity"`
	Unit            string         `gorm:"not null;default:pcs" json:"unit"`
}

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	// Apply all migrations
	err := db.AutoMigrate(
		&RawMaterial{},
		&Product{},
		&ProductIngredient{},
		&Order{},
		&OrderItem{},
		&RawMaterialUsage{},
		&WorkOrder{},
		&DeliveryOrder{},
		&DeliveryOrderItem{},
	)

	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
