package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/fulfillment/internal/cache"
	"example.com/backstage/services/fulfillment/internal/database"
	"example.com/backstage/services/fulfillment/internal/metrics"
	"example.com/backstage/services/fulfillment/internal/models"
	"example.com/backstage/services/fulfillment/internal/search"
	"example.com/backstage/services/fulfillment/internal/tracing"
)

// deliverySummaryTTL bounds how stale a cached fulfillment summary can get.
const deliverySummaryTTL = 5 * time.Minute

// DeliveryItemInput is one requested delivery line.
type DeliveryItemInput struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  float64   `json:"quantity"`
}

// CreateDeliveryInput carries the fields needed to open a delivery order.
type CreateDeliveryInput struct {
	WorkOrderID         uuid.UUID           `json:"work_order_id"`
	PlannedDeliveryDate *time.Time          `json:"planned_delivery_date"`
	Items               []DeliveryItemInput `json:"items"`
}

// DeliverySummaryLine reports fulfillment progress for one product.
type DeliverySummaryLine struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Ordered     float64   `json:"ordered"`
	Delivered   float64   `json:"delivered"`
	Remaining   float64   `json:"remaining"`
}

// DeliverySummary reports fulfillment progress for a work order.
type DeliverySummary struct {
	WorkOrderID    uuid.UUID             `json:"work_order_id"`
	WOCode         string                `json:"wo_code"`
	Status         string                `json:"status"`
	FullyDelivered bool                  `json:"fully_delivered"`
	Lines          []DeliverySummaryLine `json:"lines"`
}

// DeliveryService owns delivery orders and the fulfillment tracker that
// drives the automatic completed and pending transitions of work orders.
type DeliveryService struct {
	workOrders WorkOrderStore
	deliveries DeliveryOrderStore
	txManager  database.TxManager
	cache      *cache.RedisCache
	elastic    *search.ElasticClient
	metrics    *metrics.Metrics
	tracer     tracing.Tracer
	events     EventPublisher
}

// NewDeliveryService creates a new delivery service
func NewDeliveryService(
	workOrders WorkOrderStore,
	deliveries DeliveryOrderStore,
	txManager database.TxManager,
	redisCache *cache.RedisCache,
	elasticClient *search.ElasticClient,
	metricsCollector *metrics.Metrics,
	tracer tracing.Tracer,
	events EventPublisher,
) *DeliveryService {
	return &DeliveryService{
		workOrders: workOrders,
		deliveries: deliveries,
		txManager:  txManager,
		cache:      redisCache,
		elastic:    elasticClient,
		metrics:    metricsCollector,
		tracer:     tracer,
		events:     events,
	}
}

// CreateDeliveryOrder opens a delivery order against a work order. Every
// requested line is validated against the remaining undelivered quantity;
// a single invalid line rejects the whole request with the full error list.
// When the new delivery covers the last remaining quantity the work order
// completes automatically.
func (s *DeliveryService) CreateDeliveryOrder(ctx context.Context, input CreateDeliveryInput) (*models.DeliveryOrder, error) {
	if len(input.Items) == 0 {
		return nil, NewValidationError("delivery order has no items")
	}

	var created *models.DeliveryOrder
	var completed *models.WorkOrder

	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		workOrder, err := s.workOrders.GetByID(ctx, input.WorkOrderID)
		if err != nil {
			if isRecordNotFound(err) {
				return NewNotFoundError("work order", input.WorkOrderID.String())
			}
			return err
		}

		if workOrder.Status == models.WorkOrderStatusCancelled {
			return NewConflictError("cancelled work orders cannot receive deliveries")
		}

		ordered := OrderedQuantities(workOrder.Order.Items)
		delivered := DeliveredQuantities(workOrder.DeliveryOrders)

		productsByID := make(map[uuid.UUID]*models.Product, len(workOrder.Order.Items))
		for i := range workOrder.Order.Items {
			item := &workOrder.Order.Items[i]
			productsByID[item.ProductID] = &item.Product
		}

		var itemErrors []DeliveryItemError
		requested := make(map[uuid.UUID]float64)
		for _, item := range input.Items {
			requested[item.ProductID] += item.Quantity

			if item.Quantity <= 0 {
				itemErrors = append(itemErrors, DeliveryItemError{
					ProductID: item.ProductID.String(),
					Requested: item.Quantity,
					Reason:    "quantity must be positive",
				})
				continue
			}

			if _, ok := ordered[item.ProductID]; !ok {
				itemErrors = append(itemErrors, DeliveryItemError{
					ProductID: item.ProductID.String(),
					Requested: item.Quantity,
					Reason:    "product is not on the order",
				})
				continue
			}

			remaining := RemainingQuantity(ordered, delivered, item.ProductID)
			if requested[item.ProductID] > remaining {
				itemErrors = append(itemErrors, DeliveryItemError{
					ProductID: item.ProductID.String(),
					Requested: requested[item.ProductID],
					Remaining: remaining,
					Reason:    "requested quantity exceeds remaining",
				})
			}
		}
		if len(itemErrors) > 0 {
			return &ValidationError{
				Message: "delivery order validation failed",
				Details: itemErrors,
			}
		}

		deliveryOrder := &models.DeliveryOrder{
			ID:                  uuid.New(),
			WorkOrderID:         workOrder.ID,
			OrderID:             workOrder.OrderID,
			DOCode:              GenerateDOCode(),
			Status:              models.DeliveryStatusPending,
			PlannedDeliveryDate: input.PlannedDeliveryDate,
		}
		for _, item := range input.Items {
			product := productsByID[item.ProductID]
			deliveryOrder.Items = append(deliveryOrder.Items, models.DeliveryOrderItem{
				ID:              uuid.New(),
				DeliveryOrderID: deliveryOrder.ID,
				ProductID:       item.ProductID,
				ProductName:     product.Name,
				Quantity:        item.Quantity,
				Unit:            product.Unit,
			})
		}

		if err := s.deliveries.Create(ctx, deliveryOrder); err != nil {
			return errors.Wrap(err, "failed to create delivery order")
		}

		for productID, qty := range requested {
			delivered[productID] += qty
		}
		if IsFullyDelivered(ordered, delivered) && workOrder.Status != models.WorkOrderStatusCompleted {
			if err := s.workOrders.UpdateStatus(ctx, workOrder.ID, models.WorkOrderStatusCompleted); err != nil {
				return err
			}
			workOrder.Status = models.WorkOrderStatusCompleted
			completed = workOrder
		}

		created = deliveryOrder
		return nil
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordError("delivery-order-creation")
		}
		return nil, err
	}

	s.afterDeliveryMutation(ctx, created.WorkOrderID)
	if s.metrics != nil {
		s.metrics.RecordSuccess("delivery-order-creation")
		s.metrics.IncrementCounter("delivery_orders.created")
	}
	if s.elastic != nil {
		if err := s.elastic.IndexDeliveryOrder(ctx, created); err != nil {
			log.Warn().Err(err).Str("delivery_order_id", created.ID.String()).Msg("Failed to index delivery order")
		}
	}

	log.Info().
		Str("delivery_order_id", created.ID.String()).
		Str("do_code", created.DOCode).
		Str("work_order_id", created.WorkOrderID.String()).
		Int("items", len(created.Items)).
		Msg("Delivery order created")

	s.publishCompleted(ctx, completed)

	return created, nil
}

// GetDeliveryOrder gets a delivery order with its items
func (s *DeliveryService) GetDeliveryOrder(ctx context.Context, id uuid.UUID) (*models.DeliveryOrder, error) {
	deliveryOrder, err := s.deliveries.GetByID(ctx, id)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, NewNotFoundError("delivery order", id.String())
		}
		return nil, err
	}
	return deliveryOrder, nil
}

// UpdateStatus applies a delivery status transition with its timestamp
// rules: shipped stamps ShippedAt once and clears DeliveredAt, delivered
// stamps DeliveredAt and backfills ShippedAt, pending clears both, and
// cancelled keeps whatever was already recorded.
func (s *DeliveryService) UpdateStatus(ctx context.Context, id uuid.UUID, status string, deliveredAt *time.Time) (*models.DeliveryOrder, error) {
	if !validDeliveryStatus(status) {
		return nil, NewValidationError(fmt.Sprintf("unknown delivery status %s", status))
	}

	var updated *models.DeliveryOrder
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		deliveryOrder, err := s.deliveries.GetByID(ctx, id)
		if err != nil {
			if isRecordNotFound(err) {
				return NewNotFoundError("delivery order", id.String())
			}
			return err
		}

		ApplyDeliveryStatus(deliveryOrder, status, deliveredAt)

		if err := s.deliveries.Save(ctx, deliveryOrder); err != nil {
			return errors.Wrap(err, "failed to save delivery order")
		}

		updated = deliveryOrder
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterDeliveryMutation(ctx, updated.WorkOrderID)

	log.Info().
		Str("delivery_order_id", id.String()).
		Str("status", status).
		Msg("Delivery order status updated")

	return updated, nil
}

// ApplyDeliveryStatus mutates a delivery order's status and timestamps
// according to the transition rules. Factored out so the rules are testable
// without storage.
func ApplyDeliveryStatus(deliveryOrder *models.DeliveryOrder, status string, deliveredAt *time.Time) {
	now := time.Now()

	switch status {
	case models.DeliveryStatusShipped:
		if deliveryOrder.ShippedAt == nil {
			deliveryOrder.ShippedAt = &now
		}
		deliveryOrder.DeliveredAt = nil
	case models.DeliveryStatusDelivered:
		when := now
		if deliveredAt != nil {
			when = *deliveredAt
		}
		deliveryOrder.DeliveredAt = &when
		if deliveryOrder.ShippedAt == nil {
			deliveryOrder.ShippedAt = &when
		}
	case models.DeliveryStatusPending:
		deliveryOrder.ShippedAt = nil
		deliveryOrder.DeliveredAt = nil
	case models.DeliveryStatusCancelled:
		// Timestamps are preserved as a record of what happened before
		// the cancellation.
	}

	deliveryOrder.Status = status
}

// DeleteDeliveryOrder removes a pending delivery order and recomputes the
// work order's status. A completed work order whose quantities are no longer
// covered reverts to pending.
func (s *DeliveryService) DeleteDeliveryOrder(ctx context.Context, id uuid.UUID) error {
	var workOrderID uuid.UUID

	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		deliveryOrder, err := s.deliveries.GetByID(ctx, id)
		if err != nil {
			if isRecordNotFound(err) {
				return NewNotFoundError("delivery order", id.String())
			}
			return err
		}

		if deliveryOrder.Status != models.DeliveryStatusPending {
			return NewConflictError(fmt.Sprintf("delivery orders can only be deleted while pending, got status %s", deliveryOrder.Status))
		}

		workOrder, err := s.workOrders.GetByID(ctx, deliveryOrder.WorkOrderID)
		if err != nil {
			return err
		}

		if err := s.deliveries.Delete(ctx, id); err != nil {
			return err
		}

		remaining := make([]models.DeliveryOrder, 0, len(workOrder.DeliveryOrders))
		for _, existing := range workOrder.DeliveryOrders {
			if existing.ID != id {
				remaining = append(remaining, existing)
			}
		}

		ordered := OrderedQuantities(workOrder.Order.Items)
		delivered := DeliveredQuantities(remaining)
		if workOrder.Status == models.WorkOrderStatusCompleted && !IsFullyDelivered(ordered, delivered) {
			if err := s.workOrders.UpdateStatus(ctx, workOrder.ID, models.WorkOrderStatusPending); err != nil {
				return err
			}
		}

		workOrderID = workOrder.ID
		return nil
	})
	if err != nil {
		return err
	}

	s.afterDeliveryMutation(ctx, workOrderID)
	if s.metrics != nil {
		s.metrics.IncrementCounter("delivery_orders.deleted")
	}

	log.Info().
		Str("delivery_order_id", id.String()).
		Str("work_order_id", workOrderID.String()).
		Msg("Delivery order deleted")

	return nil
}

// ListByWorkOrder lists a work order's delivery orders
func (s *DeliveryService) ListByWorkOrder(ctx context.Context, workOrderID uuid.UUID) ([]models.DeliveryOrder, error) {
	return s.deliveries.ListByWorkOrder(ctx, workOrderID)
}

// Summary reports ordered, delivered and remaining quantities per product
// for a work order, read through the cache when one is configured.
func (s *DeliveryService) Summary(ctx context.Context, workOrderID uuid.UUID) (*DeliverySummary, error) {
	cacheKey := cache.GetDeliverySummaryCacheKey(workOrderID)

	var cached DeliverySummary
	if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
		return &cached, nil
	}

	workOrder, err := s.workOrders.GetByID(ctx, workOrderID)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, NewNotFoundError("work order", workOrderID.String())
		}
		return nil, err
	}

	summary := buildSummary(workOrder)

	if err := s.cache.Set(ctx, cacheKey, summary, deliverySummaryTTL); err != nil {
		log.Debug().Err(err).Str("work_order_id", workOrderID.String()).Msg("Failed to cache delivery summary")
	}

	return summary, nil
}

func buildSummary(workOrder *models.WorkOrder) *DeliverySummary {
	ordered := OrderedQuantities(workOrder.Order.Items)
	delivered := DeliveredQuantities(workOrder.DeliveryOrders)

	summary := &DeliverySummary{
		WorkOrderID:    workOrder.ID,
		WOCode:         workOrder.WOCode,
		Status:         workOrder.Status,
		FullyDelivered: IsFullyDelivered(ordered, delivered),
	}

	seen := make(map[uuid.UUID]bool)
	for i := range workOrder.Order.Items {
		item := &workOrder.Order.Items[i]
		if seen[item.ProductID] {
			continue
		}
		seen[item.ProductID] = true

		summary.Lines = append(summary.Lines, DeliverySummaryLine{
			ProductID:   item.ProductID,
			ProductName: item.Product.Name,
			Ordered:     ordered[item.ProductID],
			Delivered:   delivered[item.ProductID],
			Remaining:   RemainingQuantity(ordered, delivered, item.ProductID),
		})
	}

	return summary
}

// Reconcile recomputes the automatic status of every active work order from
// its delivery state. It is the worker's drift-repair sweep behind the
// synchronous transitions.
func (s *DeliveryService) Reconcile(ctx context.Context) error {
	ids, err := s.workOrders.ListIDsForReconciliation(ctx)
	if err != nil {
		return err
	}

	var reconciled int
	for _, id := range ids {
		var completed *models.WorkOrder

		err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
			workOrder, err := s.workOrders.GetByID(ctx, id)
			if err != nil {
				return err
			}
			if workOrder.Status == models.WorkOrderStatusCancelled {
				return nil
			}

			ordered := OrderedQuantities(workOrder.Order.Items)
			delivered := DeliveredQuantities(workOrder.DeliveryOrders)
			fully := IsFullyDelivered(ordered, delivered)

			switch {
			case fully && workOrder.Status != models.WorkOrderStatusCompleted:
				if err := s.workOrders.UpdateStatus(ctx, id, models.WorkOrderStatusCompleted); err != nil {
					return err
				}
				workOrder.Status = models.WorkOrderStatusCompleted
				completed = workOrder
				reconciled++
			case !fully && workOrder.Status == models.WorkOrderStatusCompleted:
				if err := s.workOrders.UpdateStatus(ctx, id, models.WorkOrderStatusPending); err != nil {
					return err
				}
				reconciled++
			}
			return nil
		})
		if err != nil {
			log.Error().Err(err).Str("work_order_id", id.String()).Msg("Failed to reconcile work order")
			continue
		}

		if completed != nil {
			s.afterDeliveryMutation(ctx, id)
			s.publishCompleted(ctx, completed)
		}
	}

	if s.metrics != nil {
		s.metrics.IncrementCounterBy("work_orders.reconciled", int64(reconciled))
	}
	if reconciled > 0 {
		log.Info().Int("count", reconciled).Msg("Work order statuses reconciled")
	}

	return nil
}

// afterDeliveryMutation drops the cached summary for a work order.
func (s *DeliveryService) afterDeliveryMutation(ctx context.Context, workOrderID uuid.UUID) {
	if err := s.cache.Delete(ctx, cache.GetDeliverySummaryCacheKey(workOrderID)); err != nil {
		log.Debug().Err(err).Str("work_order_id", workOrderID.String()).Msg("Failed to invalidate delivery summary cache")
	}
}

// publishCompleted emits a work_order.completed event after the transaction
// has committed. Failures are logged, never surfaced.
func (s *DeliveryService) publishCompleted(ctx context.Context, workOrder *models.WorkOrder) {
	if workOrder == nil || s.events == nil {
		return
	}
	if err := s.events.PublishWorkOrderCompleted(ctx, workOrder); err != nil {
		log.Warn().
			Err(err).
			Str("work_order_id", workOrder.ID.String()).
			Msg("Failed to publish work order completion event")
		return
	}
	if s.metrics != nil {
		s.metrics.IncrementCounter("work_orders.completed_events")
	}
}

func validDeliveryStatus(status string) bool {
	switch status {
	case models.DeliveryStatusPending,
		models.DeliveryStatusShipped,
		models.DeliveryStatusDelivered,
		models.DeliveryStatusCancelled:
		return true
	}
	return false
}
