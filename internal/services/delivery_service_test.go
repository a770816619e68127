package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/fulfillment/internal/models"
)

func newDeliveryService(workOrders *MockWorkOrderStore, deliveries *MockDeliveryOrderStore, events *MockEventPublisher) *DeliveryService {
	service := &DeliveryService{
		workOrders: workOrders,
		deliveries: deliveries,
		txManager:  passthroughTxManager{},
	}
	if events != nil {
		service.events = events
	}
	return service
}

// deliveryFixture is a work order for 10 widgets with 6 already delivered.
func deliveryFixture() *models.WorkOrder {
	productID := uuid.New()
	workOrderID := uuid.New()
	orderID := uuid.New()

	return &models.WorkOrder{
		ID:      workOrderID,
		OrderID: orderID,
		WOCode:  "WO-202608310001",
		Status:  models.WorkOrderStatusInProgress,
		Order: models.Order{
			ID:     orderID,
			Status: models.OrderStatusConfirm,
			Items: []models.OrderItem{
				{
					ID:        uuid.New(),
					ProductID: productID,
					Quantity:  10,
					Product:   models.Product{ID: productID, Name: "widget", Unit: "pcs"},
				},
			},
		},
		DeliveryOrders: []models.DeliveryOrder{
			{
				ID:          uuid.New(),
				WorkOrderID: workOrderID,
				Status:      models.DeliveryStatusDelivered,
				Items: []models.DeliveryOrderItem{
					{ProductID: productID, Quantity: 6},
				},
			},
		},
	}
}

func TestCreateDeliveryOrderRejectsOverDelivery(t *testing.T) {
	workOrders := new(MockWorkOrderStore)
	deliveries := new(MockDeliveryOrderStore)
	service := newDeliveryService(workOrders, deliveries, nil)

	workOrder := deliveryFixture()
	productID := workOrder.Order.Items[0].ProductID
	workOrders.On("GetByID", mock.Anything, workOrder.ID).Return(workOrder, nil)

	// 6 of 10 delivered, so only 4 remain
	_, err := service.CreateDeliveryOrder(context.Background(), CreateDeliveryInput{
		WorkOrderID: workOrder.ID,
		Items:       []DeliveryItemInput{{ProductID: productID, Quantity: 5}},
	})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	itemErrors, ok := validationErr.Details.([]DeliveryItemError)
	require.True(t, ok)
	require.Len(t, itemErrors, 1)
	require.Equal(t, 5.0, itemErrors[0].Requested)
	require.Equal(t, 4.0, itemErrors[0].Remaining)

	deliveries.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	workOrders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateDeliveryOrderRejectsDuplicateLinesExceedingRemaining(t *testing.T) {
	workOrders := new(MockWorkOrderStore)
	deliveries := new(MockDeliveryOrderStore)
	service := newDeliveryService(workOrders, deliveries, nil)

	workOrder := deliveryFixture()
	productID := workOrder.Order.Items[0].ProductID
	workOrders.On("GetByID", mock.Anything, workOrder.ID).Return(workOrder, nil)

	// Each line fits on its own but together they exceed the remaining 4
	_, err := service.CreateDeliveryOrder(context.Background(), CreateDeliveryInput{
		WorkOrderID: workOrder.ID,
		Items: []DeliveryItemInput{
			{ProductID: productID, Quantity: 3},
			{ProductID: productID, Quantity: 3},
		},
	})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	deliveries.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateDeliveryOrderRejectsProductNotOnOrder(t *testing.T) {
	workOrders := new(MockWorkOrderStore)
	deliveries := new(MockDeliveryOrderStore)
	service := newDeliveryService(workOrders, deliveries, nil)

	workOrder := deliveryFixture()
	workOrders.On("GetByID", mock.Anything, workOrder.ID).Return(workOrder, nil)

	_, err := service.CreateDeliveryOrder(context.Background(), CreateDeliveryInput{
		WorkOrderID: workOrder.ID,
		Items:       []DeliveryItemInput{{ProductID: uuid.New(), Quantity: 1}},
	})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	itemErrors, ok := validationErr.Details.([]DeliveryItemError)
	require.True(t, ok)
	require.Len(t, itemErrors, 1)
	require.Equal(t, "product is not on the order", itemErrors[0].Reason)
}

func TestCreateDeliveryOrderRejectsCancelledWorkOrder(t *testing.T) {
	workOrders := new(MockWorkOrderStore)
	service := newDeliveryService(workOrders, new(MockDeliveryOrderStore), nil)

	workOrder := deliveryFixture()
	workOrder.Status = models.WorkOrderStatusCancelled
	workOrders.On("GetByID", mock.Anything, workOrder.ID).Return(workOrder, nil)

	productID := workOrder.Order.Items[0].ProductID
	_, err := service.CreateDeliveryOrder(context.Background(), CreateDeliveryInput{
		WorkOrderID: workOrder.ID,
		Items:       []DeliveryItemInput{{ProductID: productID, Quantity: 1}},
	})

	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
}

func TestCreateDeliveryOrderPartialKeepsWorkOrderOpen(t *testing.T) {
	workOrders := new(MockWorkOrderStore)
	deliveries := new(MockDeliveryOrderStore)
	events := new(MockEventPublisher)
	service := newDeliveryService(workOrders, deliveries, events)

	workOrder := deliveryFixture()
	productID := workOrder.Order.Items[0].ProductID
	workOrders.On("GetByID", mock.Anything, workOrder.ID).Return(workOrder, nil)
	deliveries.On("Create", mock.Anything, mock.AnythingOfType("*models.DeliveryOrder")).Return(nil)

	created, err := service.CreateDeliveryOrder(context.Background(), CreateDeliveryInput{
		WorkOrderID: workOrder.ID,
		Items:       []DeliveryItemInput{{ProductID: productID, Quantity: 2}},
	})

	require.NoError(t, err)
	require.Equal(t, models.DeliveryStatusPending, created.Status)
	require.NotEmpty(t, created.DOCode)
	// Product name and unit are snapshotted onto the delivery line
	require.Len(t, created.Items, 1)
	require.Equal(t, "widget", created.Items[0].ProductName)
	require.Equal(t, "pcs", created.Items[0].Unit)

	workOrders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	events.AssertNotCalled(t, "PublishWorkOrderCompleted", mock.Anything, mock.Anything)
}

func TestCreateDeliveryOrderCompletesWorkOrder(t *testing.T) {
	workOrders := new(MockWorkOrderStore)
	deliveries := new(MockDeliveryOrderStore)
	events := new(MockEventPublisher)
	service := newDeliveryService(workOrders, deliveries, events)

	workOrder := deliveryFixture()
	productID := workOrder.Order.Items[0].ProductID
	workOrders.On("GetByID", mock.Anything, workOrder.ID).Return(workOrder, nil)
	deliveries.On("Create", mock.Anything, mock.AnythingOfType("*models.DeliveryOrder")).Return(nil)
	workOrders.On("UpdateStatus", mock.Anything, workOrder.ID, models.WorkOrderStatusCompleted).Return(nil)
	events.On("PublishWorkOrderCompleted", mock.Anything, mock.AnythingOfType("*models.WorkOrder")).Return(nil)

	// The last remaining 4 of 10
	_, err := service.CreateDeliveryOrder(context.Background(), CreateDeliveryInput{
		WorkOrderID: workOrder.ID,
		Items:       []DeliveryItemInput{{ProductID: productID, Quantity: 4}},
	})

	require.NoError(t, err)
	workOrders.AssertExpectations(t)
	events.AssertExpectations(t)
}

func TestDeleteDeliveryOrderRequiresPending(t *testing.T) {
	workOrders := new(MockWorkOrderStore)
	deliveries := new(MockDeliveryOrderStore)
	service := newDeliveryService(workOrders, deliveries, nil)

	deliveryID := uuid.New()
	deliveries.On("GetByID", mock.Anything, deliveryID).Return(&models.DeliveryOrder{
		ID:     deliveryID,
		Status: models.DeliveryStatusShipped,
	}, nil)

	err := service.DeleteDeliveryOrder(context.Background(), deliveryID)

	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
	deliveries.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDeleteDeliveryOrderRevertsCompletedWorkOrder(t *testing.T) {
	workOrders := new(MockWorkOrderStore)
	deliveries := new(MockDeliveryOrderStore)
	service := newDeliveryService(workOrders, deliveries, nil)

	workOrder := deliveryFixture()
	productID := workOrder.Order.Items[0].ProductID

	// A pending delivery of 4 completed the work order
	pendingDelivery := models.DeliveryOrder{
		ID:          uuid.New(),
		WorkOrderID: workOrder.ID,
		Status:      models.DeliveryStatusPending,
		Items:       []models.DeliveryOrderItem{{ProductID: productID, Quantity: 4}},
	}
	workOrder.Status = models.WorkOrderStatusCompleted
	workOrder.DeliveryOrders = append(workOrder.DeliveryOrders, pendingDelivery)

	deliveries.On("GetByID", mock.Anything, pendingDelivery.ID).Return(&pendingDelivery, nil)
	workOrders.On("GetByID", mock.Anything, workOrder.ID).Return(workOrder, nil)
	deliveries.On("Delete", mock.Anything, pendingDelivery.ID).Return(nil)
	workOrders.On("UpdateStatus", mock.Anything, workOrder.ID, models.WorkOrderStatusPending).Return(nil)

	require.NoError(t, service.DeleteDeliveryOrder(context.Background(), pendingDelivery.ID))
	workOrders.AssertExpectations(t)
	deliveries.AssertExpectations(t)
}

func TestApplyDeliveryStatusTimestamps(t *testing.T) {
	deliveryOrder := &models.DeliveryOrder{Status: models.DeliveryStatusPending}

	ApplyDeliveryStatus(deliveryOrder, models.DeliveryStatusShipped, nil)
	require.Equal(t, models.DeliveryStatusShipped, deliveryOrder.Status)
	require.NotNil(t, deliveryOrder.ShippedAt)
	require.Nil(t, deliveryOrder.DeliveredAt)

	// Re-shipping does not move the original timestamp
	firstShipped := *deliveryOrder.ShippedAt
	ApplyDeliveryStatus(deliveryOrder, models.DeliveryStatusShipped, nil)
	require.Equal(t, firstShipped, *deliveryOrder.ShippedAt)

	deliveredAt := time.Date(2026, 8, 30, 15, 0, 0, 0, time.UTC)
	ApplyDeliveryStatus(deliveryOrder, models.DeliveryStatusDelivered, &deliveredAt)
	require.Equal(t, deliveredAt, *deliveryOrder.DeliveredAt)
	require.Equal(t, firstShipped, *deliveryOrder.ShippedAt)

	// Cancellation keeps both timestamps
	ApplyDeliveryStatus(deliveryOrder, models.DeliveryStatusCancelled, nil)
	require.Equal(t, models.DeliveryStatusCancelled, deliveryOrder.Status)
	require.NotNil(t, deliveryOrder.ShippedAt)
	require.NotNil(t, deliveryOrder.DeliveredAt)

	// Back to pending clears both
	ApplyDeliveryStatus(deliveryOrder, models.DeliveryStatusPending, nil)
	require.Nil(t, deliveryOrder.ShippedAt)
	require.Nil(t, deliveryOrder.DeliveredAt)
}

func TestApplyDeliveryStatusDeliveredBackfillsShippedAt(t *testing.T) {
	deliveryOrder := &models.DeliveryOrder{Status: models.DeliveryStatusPending}

	deliveredAt := time.Date(2026, 8, 30, 15, 0, 0, 0, time.UTC)
	ApplyDeliveryStatus(deliveryOrder, models.DeliveryStatusDelivered, &deliveredAt)

	require.Equal(t, deliveredAt, *deliveryOrder.DeliveredAt)
	require.Equal(t, deliveredAt, *deliveryOrder.ShippedAt)
}

func TestSummaryReportsRemainingPerProduct(t *testing.T) {
	workOrders := new(MockWorkOrderStore)
	service := newDeliveryService(workOrders, new(MockDeliveryOrderStore), nil)

	workOrder := deliveryFixture()
	workOrders.On("GetByID", mock.Anything, workOrder.ID).Return(workOrder, nil)

	summary, err := service.Summary(context.Background(), workOrder.ID)

	require.NoError(t, err)
	require.Equal(t, workOrder.WOCode, summary.WOCode)
	require.False(t, summary.FullyDelivered)
	require.Len(t, summary.Lines, 1)
	require.Equal(t, "widget", summary.Lines[0].ProductName)
	require.Equal(t, 10.0, summary.Lines[0].Ordered)
	require.Equal(t, 6.0, summary.Lines[0].Delivered)
	require.Equal(t, 4.0, summary.Lines[0].Remaining)
}

func TestReconcileRepairsBothDirections(t *testing.T) {
	workOrders := new(MockWorkOrderStore)
	events := new(MockEventPublisher)
	service := newDeliveryService(workOrders, new(MockDeliveryOrderStore), events)

	// Fully delivered but still in progress: should complete and publish.
	behind := deliveryFixture()
	behind.DeliveryOrders[0].Items[0].Quantity = 10

	// Completed but under-delivered: should revert to pending.
	ahead := deliveryFixture()
	ahead.Status = models.WorkOrderStatusCompleted

	workOrders.On("ListIDsForReconciliation", mock.Anything).Return([]uuid.UUID{behind.ID, ahead.ID}, nil)
	workOrders.On("GetByID", mock.Anything, behind.ID).Return(behind, nil)
	workOrders.On("GetByID", mock.Anything, ahead.ID).Return(ahead, nil)
	workOrders.On("UpdateStatus", mock.Anything, behind.ID, models.WorkOrderStatusCompleted).Return(nil)
	workOrders.On("UpdateStatus", mock.Anything, ahead.ID, models.WorkOrderStatusPending).Return(nil)
	events.On("PublishWorkOrderCompleted", mock.Anything, mock.AnythingOfType("*models.WorkOrder")).Return(nil)

	require.NoError(t, service.Reconcile(context.Background()))
	workOrders.AssertExpectations(t)
	events.AssertNumberOfCalls(t, "PublishWorkOrderCompleted", 1)
}
