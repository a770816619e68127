package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"example.com/backstage/services/fulfillment/internal/models"
)

// passthroughTxManager runs the function directly. The stores are mocked, so
// tests exercise the workflow logic without a database.
type passthroughTxManager struct{}

func (passthroughTxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type MockRawMaterialStore struct {
	mock.Mock
}

func (m *MockRawMaterialStore) Create(ctx context.Context, material *models.RawMaterial) error {
	args := m.Called(ctx, material)
	return args.Error(0)
}

func (m *MockRawMaterialStore) GetByID(ctx context.Context, id uuid.UUID) (*models.RawMaterial, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RawMaterial), args.Error(1)
}

func (m *MockRawMaterialStore) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.RawMaterial, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RawMaterial), args.Error(1)
}

func (m *MockRawMaterialStore) UpdateStock(ctx context.Context, id uuid.UUID, stock float64) error {
	args := m.Called(ctx, id, stock)
	return args.Error(0)
}

func (m *MockRawMaterialStore) List(ctx context.Context) ([]models.RawMaterial, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.RawMaterial), args.Error(1)
}

func (m *MockRawMaterialStore) ListBelowLowerLimit(ctx context.Context) ([]models.RawMaterial, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.RawMaterial), args.Error(1)
}

type MockProductStore struct {
	mock.Mock
}

func (m *MockProductStore) Create(ctx context.Context, product *models.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductStore) List(ctx context.Context) ([]models.Product, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Product), args.Error(1)
}

type MockOrderStore struct {
	mock.Mock
}

func (m *MockOrderStore) Create(ctx context.Context, order *models.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOrderStore) ReplaceItems(ctx context.Context, orderID uuid.UUID, items []models.OrderItem) error {
	args := m.Called(ctx, orderID, items)
	return args.Error(0)
}

type MockUsageStore struct {
	mock.Mock
}

func (m *MockUsageStore) Create(ctx context.Context, usage *models.RawMaterialUsage) error {
	args := m.Called(ctx, usage)
	return args.Error(0)
}

func (m *MockUsageStore) GetByID(ctx context.Context, id uuid.UUID) (*models.RawMaterialUsage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RawMaterialUsage), args.Error(1)
}

func (m *MockUsageStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUsageStore) List(ctx context.Context, orderID *uuid.UUID) ([]models.RawMaterialUsage, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).([]models.RawMaterialUsage), args.Error(1)
}

type MockWorkOrderStore struct {
	mock.Mock
}

func (m *MockWorkOrderStore) Create(ctx context.Context, workOrder *models.WorkOrder) error {
	args := m.Called(ctx, workOrder)
	return args.Error(0)
}

func (m *MockWorkOrderStore) GetByID(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WorkOrder), args.Error(1)
}

func (m *MockWorkOrderStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockWorkOrderStore) List(ctx context.Context, status string) ([]models.WorkOrder, error) {
	args := m.Called(ctx, status)
	return args.Get(0).([]models.WorkOrder), args.Error(1)
}

func (m *MockWorkOrderStore) ListIDsForReconciliation(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

type MockDeliveryOrderStore struct {
	mock.Mock
}

func (m *MockDeliveryOrderStore) Create(ctx context.Context, deliveryOrder *models.DeliveryOrder) error {
	args := m.Called(ctx, deliveryOrder)
	return args.Error(0)
}

func (m *MockDeliveryOrderStore) GetByID(ctx context.Context, id uuid.UUID) (*models.DeliveryOrder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DeliveryOrder), args.Error(1)
}

func (m *MockDeliveryOrderStore) Save(ctx context.Context, deliveryOrder *models.DeliveryOrder) error {
	args := m.Called(ctx, deliveryOrder)
	return args.Error(0)
}

func (m *MockDeliveryOrderStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDeliveryOrderStore) ListByWorkOrder(ctx context.Context, workOrderID uuid.UUID) ([]models.DeliveryOrder, error) {
	args := m.Called(ctx, workOrderID)
	return args.Get(0).([]models.DeliveryOrder), args.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishWorkOrderCompleted(ctx context.Context, workOrder *models.WorkOrder) error {
	args := m.Called(ctx, workOrder)
	return args.Error(0)
}
