package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/backstage/services/fulfillment/internal/database"
	"example.com/backstage/services/fulfillment/internal/models"
)

// write resolves the connection for a write: the transaction carried by the
// context when inside a workflow step, the write database otherwise.
func write(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx := database.TxFromContext(ctx); tx != nil {
		return tx
	}
	return db.WithContext(ctx)
}

// read resolves the connection for a read. Reads issued inside a transaction
// must go through it so they observe the transaction's own writes and locks.
func read(ctx context.Context, db, readOnlyDB *gorm.DB) *gorm.DB {
	if tx := database.TxFromContext(ctx); tx != nil {
		return tx
	}
	return readOnlyDB.WithContext(ctx)
}

// RawMaterialRepository provides access to raw material stock
type RawMaterialRepository struct {
	db         *gorm.DB // Write database
	readOnlyDB *gorm.DB // Read-only database
}

// NewRawMaterialRepository creates a new raw material repository
func NewRawMaterialRepository(db *gorm.DB, readOnlyDB *gorm.DB) *RawMaterialRepository {
	return &RawMaterialRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// Create creates a new raw material
func (r *RawMaterialRepository) Create(ctx context.Context, material *models.RawMaterial) error {
	return write(ctx, r.db).Create(material).Error
}

// GetByID gets a raw material by ID
func (r *RawMaterialRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.RawMaterial, error) {
	var material models.RawMaterial
	err := read(ctx, r.db, r.readOnlyDB).First(&material, "id = ?", id).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get raw material by ID")
	}
	return &material, nil
}

// GetByIDForUpdate gets a raw material by ID holding a row-level lock for the
// remainder of the enclosing transaction. Callers lock materials in a stable
// order to avoid deadlocks between concurrent confirmations.
func (r *RawMaterialRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.RawMaterial, error) {
	var material models.RawMaterial
	err := write(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&material, "id = ?", id).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to lock raw material row")
	}
	return &material, nil
}

// UpdateStock sets the stock level of a raw material
func (r *RawMaterialRepository) UpdateStock(ctx context.Context, id uuid.UUID, stock float64) error {
	result := write(ctx, r.db).
		Model(&models.RawMaterial{}).
		Where("id = ?", id).
		Update("stock", stock)

	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update raw material stock")
	}

	if result.RowsAffected == 0 {
		return errors.Wrap(gorm.ErrRecordNotFound, "no raw material updated")
	}

	return nil
}

// List lists all raw materials
func (r *RawMaterialRepository) List(ctx context.Context) ([]models.RawMaterial, error) {
	var materials []models.RawMaterial
	err := read(ctx, r.db, r.readOnlyDB).Order("name").Find(&materials).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list raw materials")
	}
	return materials, nil
}

// ListBelowLowerLimit lists materials whose stock has dropped below their
// configured threshold
func (r *RawMaterialRepository) ListBelowLowerLimit(ctx context.Context) ([]models.RawMaterial, error) {
	var materials []models.RawMaterial
	err := read(ctx, r.db, r.readOnlyDB).
		Where("stock < lower_limit AND lower_limit > 0").
		Find(&materials).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list low-stock raw materials")
	}
	return materials, nil
}

// ProductRepository provides access to product and recipe data
type ProductRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *gorm.DB, readOnlyDB *gorm.DB) *ProductRepository {
	return &ProductRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// Create creates a new product with its ingredients
func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	return write(ctx, r.db).Create(product).Error
}

// GetByID gets a product with its ingredients preloaded
func (r *ProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := read(ctx, r.db, r.readOnlyDB).
		Preload("Ingredients").
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get product by ID")
	}
	return &product, nil
}

// List lists all products with ingredients preloaded
func (r *ProductRepository) List(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := read(ctx, r.db, r.readOnlyDB).
		Preload("Ingredients").
		Order("name").
		Find(&products).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list products")
	}
	return products, nil
}

// OrderRepository provides access to order data
type OrderRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *gorm.DB, readOnlyDB *gorm.DB) *OrderRepository {
	return &OrderRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// Create creates a new order with its items
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	return write(ctx, r.db).Create(order).Error
}

// GetByID gets an order with its items preloaded
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := read(ctx, r.db, r.readOnlyDB).
		Preload("Items").
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get order by ID")
	}
	return &order, nil
}

// UpdateStatus sets the status of an order
func (r *OrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	result := write(ctx, r.db).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("status", status)

	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update order status")
	}

	if result.RowsAffected == 0 {
		return errors.Wrap(gorm.ErrRecordNotFound, "no order updated")
	}

	return nil
}

// ReplaceItems replaces the item lines of a draft order
func (r *OrderRepository) ReplaceItems(ctx context.Context, orderID uuid.UUID, items []models.OrderItem) error {
	conn := write(ctx, r.db)

	if err := conn.Where("order_id = ?", orderID).Delete(&models.OrderItem{}).Error; err != nil {
		return errors.Wrap(err, "failed to clear order items")
	}

	if len(items) == 0 {
		return nil
	}

	if err := conn.Create(&items).Error; err != nil {
		return errors.Wrap(err, "failed to create order items")
	}

	return nil
}

// UsageRepository provides access to the raw material usage ledger
type UsageRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db *gorm.DB, readOnlyDB *gorm.DB) *UsageRepository {
	return &UsageRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// Create appends a usage row to the ledger
func (r *UsageRepository) Create(ctx context.Context, usage *models.RawMaterialUsage) error {
	return write(ctx, r.db).Create(usage).Error
}

// GetByID gets a usage row by ID
func (r *UsageRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.RawMaterialUsage, error) {
	var usage models.RawMaterialUsage
	err := read(ctx, r.db, r.readOnlyDB).First(&usage, "id = ?", id).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get usage record by ID")
	}
	return &usage, nil
}

// Delete removes a usage row. The caller is responsible for restoring the
// deducted stock in the same transaction.
func (r *UsageRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := write(ctx, r.db).Delete(&models.RawMaterialUsage{}, "id = ?", id)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to delete usage record")
	}
	if result.RowsAffected == 0 {
		return errors.Wrap(gorm.ErrRecordNotFound, "no usage record deleted")
	}
	return nil
}

// List lists usage rows, optionally filtered by order
func (r *UsageRepository) List(ctx context.Context, orderID *uuid.UUID) ([]models.RawMaterialUsage, error) {
	query := read(ctx, r.db, r.readOnlyDB).Model(&models.RawMaterialUsage{})
	if orderID != nil {
		query = query.Where("order_id = ?", *orderID)
	}

	var usages []models.RawMaterialUsage
	err := query.Order("created_at DESC").Find(&usages).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list usage records")
	}
	return usages, nil
}

// WorkOrderRepository provides access to work order data
type WorkOrderRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewWorkOrderRepository creates a new work order repository
func NewWorkOrderRepository(db *gorm.DB, readOnlyDB *gorm.DB) *WorkOrderRepository {
	return &WorkOrderRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// Create creates a new work order
func (r *WorkOrderRepository) Create(ctx context.Context, workOrder *models.WorkOrder) error {
	return write(ctx, r.db).Create(workOrder).Error
}

// GetByID gets a work order with its order items and delivery orders
// preloaded
func (r *WorkOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error) {
	var workOrder models.WorkOrder
	err := read(ctx, r.db, r.readOnlyDB).
		Preload("Order.Items.Product").
		Preload("DeliveryOrders.Items").
		First(&workOrder, "id = ?", id).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get work order by ID")
	}
	return &workOrder, nil
}

// UpdateStatus sets the status of a work order
func (r *WorkOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	result := write(ctx, r.db).
		Model(&models.WorkOrder{}).
		Where("id = ?", id).
		Update("status", status)

	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update work order status")
	}

	if result.RowsAffected == 0 {
		return errors.Wrap(gorm.ErrRecordNotFound, "no work order updated")
	}

	return nil
}

// List lists work orders, optionally filtered by status
func (r *WorkOrderRepository) List(ctx context.Context, status string) ([]models.WorkOrder, error) {
	query := read(ctx, r.db, r.readOnlyDB).Model(&models.WorkOrder{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var workOrders []models.WorkOrder
	err := query.Order("created_at DESC").Find(&workOrders).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list work orders")
	}
	return workOrders, nil
}

// ListIDsForReconciliation returns the IDs of work orders whose status can
// still change automatically
func (r *WorkOrderRepository) ListIDsForReconciliation(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := read(ctx, r.db, r.readOnlyDB).
		Model(&models.WorkOrder{}).
		Where("status IN ?", []string{
			models.WorkOrderStatusPending,
			models.WorkOrderStatusInProgress,
			models.WorkOrderStatusCompleted,
		}).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list work orders for reconciliation")
	}
	return ids, nil
}

// DeliveryOrderRepository provides access to delivery order data
type DeliveryOrderRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewDeliveryOrderRepository creates a new delivery order repository
func NewDeliveryOrderRepository(db *gorm.DB, readOnlyDB *gorm.DB) *DeliveryOrderRepository {
	return &DeliveryOrderRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// Create creates a new delivery order with its items
func (r *DeliveryOrderRepository) Create(ctx context.Context, deliveryOrder *models.DeliveryOrder) error {
	return write(ctx, r.db).Create(deliveryOrder).Error
}

// GetByID gets a delivery order with its items preloaded
func (r *DeliveryOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DeliveryOrder, error) {
	var deliveryOrder models.DeliveryOrder
	err := read(ctx, r.db, r.readOnlyDB).
		Preload("Items").
		First(&deliveryOrder, "id = ?", id).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get delivery order by ID")
	}
	return &deliveryOrder, nil
}

// Save persists status and timestamp changes to a delivery order
func (r *DeliveryOrderRepository) Save(ctx context.Context, deliveryOrder *models.DeliveryOrder) error {
	return write(ctx, r.db).
		Model(&models.DeliveryOrder{}).
		Where("id = ?", deliveryOrder.ID).
		Select("status", "shipped_at", "delivered_at").
		Updates(map[string]interface{}{
			"status":       deliveryOrder.Status,
			"shipped_at":   deliveryOrder.ShippedAt,
			"delivered_at": deliveryOrder.DeliveredAt,
		}).Error
}

// Delete removes a delivery order and its items
func (r *DeliveryOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	conn := write(ctx, r.db)

	if err := conn.Where("delivery_order_id = ?", id).Delete(&models.DeliveryOrderItem{}).Error; err != nil {
		return errors.Wrap(err, "failed to delete delivery order items")
	}

	result := conn.Delete(&models.DeliveryOrder{}, "id = ?", id)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to delete delivery order")
	}
	if result.RowsAffected == 0 {
		return errors.Wrap(gorm.ErrRecordNotFound, "no delivery order deleted")
	}
	return nil
}

// ListByWorkOrder lists all delivery orders of a work order with items
// preloaded, regardless of status
func (r *DeliveryOrderRepository) ListByWorkOrder(ctx context.Context, workOrderID uuid.UUID) ([]models.DeliveryOrder, error) {
	var deliveryOrders []models.DeliveryOrder
	err := read(ctx, r.db, r.readOnlyDB).
		Preload("Items").
		Where("work_order_id = ?", workOrderID).
		Order("created_at").
		Find(&deliveryOrders).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list delivery orders")
	}
	return deliveryOrders, nil
}
