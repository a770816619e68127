package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/fulfillment/internal/metrics"
	"example.com/backstage/services/fulfillment/internal/models"
)

// WorkOrderService owns the production work order lifecycle. The completed
// status is reserved for the delivery tracker; manual transitions only move
// between pending, in_progress and cancelled.
type WorkOrderService struct {
	workOrders WorkOrderStore
	orders     OrderStore
	metrics    *metrics.Metrics
}

// NewWorkOrderService creates a new work order service
func NewWorkOrderService(workOrders WorkOrderStore, orders OrderStore, metricsCollector *metrics.Metrics) *WorkOrderService {
	return &WorkOrderService{
		workOrders: workOrders,
		orders:     orders,
		metrics:    metricsCollector,
	}
}

// GenerateWOCode builds a work order code of the form WO-YYYYMMDDnnnn.
func GenerateWOCode() string {
	now := time.Now()
	return fmt.Sprintf("WO-%s%04d", now.Format("20060102"), now.UnixNano()%10000)
}

// GenerateDOCode builds a delivery order code of the form DO-YYYYMMDDnnnn.
func GenerateDOCode() string {
	now := time.Now()
	return fmt.Sprintf("DO-%s%04d", now.Format("20060102"), now.UnixNano()%10000)
}

// CreateWorkOrder opens a work order for a confirmed order.
func (s *WorkOrderService) CreateWorkOrder(ctx context.Context, orderID uuid.UUID, notes string) (*models.WorkOrder, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, NewNotFoundError("order", orderID.String())
		}
		return nil, err
	}

	if order.Status != models.OrderStatusConfirm {
		return nil, NewConflictError(fmt.Sprintf("work orders require a confirmed order, got status %s", order.Status))
	}

	workOrder := &models.WorkOrder{
		ID:      uuid.New(),
		OrderID: orderID,
		WOCode:  GenerateWOCode(),
		Status:  models.WorkOrderStatusPending,
		Notes:   notes,
	}

	if err := s.workOrders.Create(ctx, workOrder); err != nil {
		return nil, errors.Wrap(err, "failed to create work order")
	}

	if s.metrics != nil {
		s.metrics.IncrementCounter("work_orders.created")
	}

	log.Info().
		Str("work_order_id", workOrder.ID.String()).
		Str("wo_code", workOrder.WOCode).
		Str("order_id", orderID.String()).
		Msg("Work order created")

	return workOrder, nil
}

// GetWorkOrder gets a work order with its order items and delivery orders
func (s *WorkOrderService) GetWorkOrder(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error) {
	workOrder, err := s.workOrders.GetByID(ctx, id)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, NewNotFoundError("work order", id.String())
		}
		return nil, err
	}
	return workOrder, nil
}

// ListWorkOrders lists work orders, optionally filtered by status
func (s *WorkOrderService) ListWorkOrders(ctx context.Context, status string) ([]models.WorkOrder, error) {
	if status != "" && !validWorkOrderStatus(status) {
		return nil, NewValidationError(fmt.Sprintf("unknown work order status %s", status))
	}
	return s.workOrders.List(ctx, status)
}

// UpdateStatus applies a manual status transition. Completed cannot be set
// manually and cancelled work orders are final.
func (s *WorkOrderService) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.WorkOrder, error) {
	if !validWorkOrderStatus(status) {
		return nil, NewValidationError(fmt.Sprintf("unknown work order status %s", status))
	}
	if status == models.WorkOrderStatusCompleted {
		return nil, NewConflictError("work orders complete automatically when every item is delivered")
	}

	workOrder, err := s.workOrders.GetByID(ctx, id)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, NewNotFoundError("work order", id.String())
		}
		return nil, err
	}

	if workOrder.Status == models.WorkOrderStatusCancelled {
		return nil, NewConflictError("cancelled work orders cannot change status")
	}

	if err := s.workOrders.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}

	log.Info().
		Str("work_order_id", id.String()).
		Str("from", workOrder.Status).
		Str("to", status).
		Msg("Work order status updated")

	workOrder.Status = status
	return workOrder, nil
}

func validWorkOrderStatus(status string) bool {
	switch status {
	case models.WorkOrderStatusPending,
		models.WorkOrderStatusInProgress,
		models.WorkOrderStatusCompleted,
		models.WorkOrderStatusCancelled:
		return true
	}
	return false
}
