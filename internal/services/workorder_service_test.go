package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"example.com/backstage/services/fulfillment/internal/models"
)

func newWorkOrderService(workOrders *MockWorkOrderStore, orders *MockOrderStore) *WorkOrderService {
	return &WorkOrderService{workOrders: workOrders, orders: orders}
}

func TestCreateWorkOrderRequiresConfirmedOrder(t *testing.T) {
	workOrders := new(MockWorkOrderStore)
	orders := new(MockOrderStore)
	service := newWorkOrderService(workOrders, orders)

	orderID := uuid.New()
	orders.On("GetByID", mock.Anything, orderID).Return(&models.Order{
		ID:     orderID,
		Status: models.OrderStatusDraft,
	}, nil)

	_, err := service.CreateWorkOrder(context.Background(), orderID, "")

	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
	workOrders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateWorkOrderUnknownOrder(t *testing.T) {
	orders := new(MockOrderStore)
	service := newWorkOrderService(new(MockWorkOrderStore), orders)

	orderID := uuid.New()
	orders.On("GetByID", mock.Anything, orderID).Return(nil, gorm.ErrRecordNotFound)

	_, err := service.CreateWorkOrder(context.Background(), orderID, "")

	var notFoundErr *NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
}

func TestCreateWorkOrderAssignsCode(t *testing.T) {
	workOrders := new(MockWorkOrderStore)
	orders := new(MockOrderStore)
	service := newWorkOrderService(workOrders, orders)

	orderID := uuid.New()
	orders.On("GetByID", mock.Anything, orderID).Return(&models.Order{
		ID:     orderID,
		Status: models.OrderStatusConfirm,
	}, nil)
	workOrders.On("Create", mock.Anything, mock.AnythingOfType("*models.WorkOrder")).Return(nil)

	workOrder, err := service.CreateWorkOrder(context.Background(), orderID, "rush job")

	require.NoError(t, err)
	require.Equal(t, models.WorkOrderStatusPending, workOrder.Status)
	require.Equal(t, "rush job", workOrder.Notes)
	require.True(t, strings.HasPrefix(workOrder.WOCode, "WO-"+time.Now().Format("20060102")))
}

func TestUpdateWorkOrderStatusRejectsManualCompletion(t *testing.T) {
	workOrders := new(MockWorkOrderStore)
	service := newWorkOrderService(workOrders, new(MockOrderStore))

	_, err := service.UpdateStatus(context.Background(), uuid.New(), models.WorkOrderStatusCompleted)

	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
	workOrders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateWorkOrderStatusCancelledIsFinal(t *testing.T) {
	workOrders := new(MockWorkOrderStore)
	service := newWorkOrderService(workOrders, new(MockOrderStore))

	workOrderID := uuid.New()
	workOrders.On("GetByID", mock.Anything, workOrderID).Return(&models.WorkOrder{
		ID:     workOrderID,
		Status: models.WorkOrderStatusCancelled,
	}, nil)

	_, err := service.UpdateStatus(context.Background(), workOrderID, models.WorkOrderStatusPending)

	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
	workOrders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateWorkOrderStatusRejectsUnknownStatus(t *testing.T) {
	service := newWorkOrderService(new(MockWorkOrderStore), new(MockOrderStore))

	_, err := service.UpdateStatus(context.Background(), uuid.New(), "paused")

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestUpdateWorkOrderStatusManualTransition(t *testing.T) {
	workOrders := new(MockWorkOrderStore)
	service := newWorkOrderService(workOrders, new(MockOrderStore))

	workOrderID := uuid.New()
	workOrders.On("GetByID", mock.Anything, workOrderID).Return(&models.WorkOrder{
		ID:     workOrderID,
		Status: models.WorkOrderStatusPending,
	}, nil)
	workOrders.On("UpdateStatus", mock.Anything, workOrderID, models.WorkOrderStatusInProgress).Return(nil)

	updated, err := service.UpdateStatus(context.Background(), workOrderID, models.WorkOrderStatusInProgress)

	require.NoError(t, err)
	require.Equal(t, models.WorkOrderStatusInProgress, updated.Status)
	workOrders.AssertExpectations(t)
}

func TestListWorkOrdersValidatesStatusFilter(t *testing.T) {
	service := newWorkOrderService(new(MockWorkOrderStore), new(MockOrderStore))

	_, err := service.ListWorkOrders(context.Background(), "bogus")

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}
