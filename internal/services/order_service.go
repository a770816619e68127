package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/fulfillment/internal/database"
	"example.com/backstage/services/fulfillment/internal/messaging"
	"example.com/backstage/services/fulfillment/internal/metrics"
	"example.com/backstage/services/fulfillment/internal/models"
	"example.com/backstage/services/fulfillment/internal/search"
	"example.com/backstage/services/fulfillment/internal/tracing"
)

// OrderItemInput is one requested (product, quantity) line.
type OrderItemInput struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  float64   `json:"quantity"`
}

// CreateOrderInput carries the fields needed to open a draft order.
type CreateOrderInput struct {
	CustomerName    string           `json:"customer_name"`
	CustomerEmail   string           `json:"customer_email"`
	CustomerPhone   string           `json:"customer_phone"`
	CustomerAddress string           `json:"customer_address"`
	Items           []OrderItemInput `json:"items"`
}

// OrderService owns the order lifecycle, most importantly the draft to
// confirm transition that deducts raw materials and writes the usage ledger.
type OrderService struct {
	orders    OrderStore
	products  ProductStore
	materials RawMaterialStore
	usages    UsageStore
	inventory *InventoryService
	txManager database.TxManager
	elastic   *search.ElasticClient
	metrics   *metrics.Metrics
	tracer    tracing.Tracer
}

// NewOrderService creates a new order service
func NewOrderService(
	orders OrderStore,
	products ProductStore,
	materials RawMaterialStore,
	usages UsageStore,
	inventory *InventoryService,
	txManager database.TxManager,
	elasticClient *search.ElasticClient,
	metricsCollector *metrics.Metrics,
	tracer tracing.Tracer,
) *OrderService {
	return &OrderService{
		orders:    orders,
		products:  products,
		materials: materials,
		usages:    usages,
		inventory: inventory,
		txManager: txManager,
		elastic:   elasticClient,
		metrics:   metricsCollector,
		tracer:    tracer,
	}
}

// CreateOrder opens a new order in draft status.
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.CustomerName == "" {
		return nil, NewValidationError("customer name is required")
	}

	items, err := s.buildItems(ctx, input.Items)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:              uuid.New(),
		CustomerName:    input.CustomerName,
		CustomerEmail:   input.CustomerEmail,
		CustomerPhone:   input.CustomerPhone,
		CustomerAddress: input.CustomerAddress,
		Status:          models.OrderStatusDraft,
		Items:           items,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, errors.Wrap(err, "failed to create order")
	}

	if s.metrics != nil {
		s.metrics.IncrementCounter("orders.created")
	}

	log.Info().
		Str("order_id", order.ID.String()).
		Str("customer", order.CustomerName).
		Int("items", len(order.Items)).
		Msg("Order created")

	return order, nil
}

// GetOrder gets an order with its items
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, NewNotFoundError("order", id.String())
		}
		return nil, err
	}
	return order, nil
}

// UpdateOrderItems replaces the item lines of an order. Only draft orders
// are mutable; anything else already has materials committed against it.
func (s *OrderService) UpdateOrderItems(ctx context.Context, orderID uuid.UUID, inputs []OrderItemInput) (*models.Order, error) {
	items, err := s.buildItems(ctx, inputs)
	if err != nil {
		return nil, err
	}

	err = s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			if isRecordNotFound(err) {
				return NewNotFoundError("order", orderID.String())
			}
			return err
		}

		if order.Status != models.OrderStatusDraft {
			return NewConflictError(fmt.Sprintf("order items cannot be changed in status %s", order.Status))
		}

		for i := range items {
			items[i].OrderID = orderID
		}
		return s.orders.ReplaceItems(ctx, orderID, items)
	})
	if err != nil {
		return nil, err
	}

	return s.GetOrder(ctx, orderID)
}

// ConfirmOrder moves a draft order to confirm: it checks every required raw
// material under row locks, deducts stock, and appends one usage ledger row
// per order item and ingredient. The whole transition is one transaction;
// confirming an already confirmed order is a no-op.
func (s *OrderService) ConfirmOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var txn *newrelic.Transaction
	if s.tracer != nil {
		txn = s.tracer.StartTransaction("confirm-order")
		defer s.tracer.EndTransaction(txn)
		s.tracer.AddAttribute(txn, "order_id", orderID.String())
	}

	start := time.Now()
	var confirmed *models.Order
	var usages []models.RawMaterialUsage

	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		if s.tracer != nil {
			defer s.tracer.StartSpan("confirm-order-tx", txn).End()
		}

		order, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			if isRecordNotFound(err) {
				return NewNotFoundError("order", orderID.String())
			}
			return err
		}

		if order.Status == models.OrderStatusConfirm {
			confirmed = order
			return nil
		}
		if order.Status != models.OrderStatusDraft {
			return NewConflictError(fmt.Sprintf("order cannot be confirmed from status %s", order.Status))
		}
		if len(order.Items) == 0 {
			return NewValidationError("order has no items")
		}

		products, err := s.loadProducts(ctx, order.Items)
		if err != nil {
			return err
		}

		required := RequiredMaterials(order.Items, products)

		// Lock every required material row in stable ID order, then
		// validate all of them so the caller sees the full shortage list.
		locked := make(map[uuid.UUID]*models.RawMaterial, len(required))
		var insufficient []InsufficientMaterial
		for _, materialID := range SortedMaterialIDs(required) {
			material, err := s.materials.GetByIDForUpdate(ctx, materialID)
			if err != nil {
				if isRecordNotFound(err) {
					return NewNotFoundError("raw material", materialID.String())
				}
				return err
			}
			locked[materialID] = material

			if material.Stock < required[materialID] {
				insufficient = append(insufficient, InsufficientMaterial{
					RawMaterialID: materialID.String(),
					Name:          material.Name,
					Required:      required[materialID],
					Available:     material.Stock,
					Shortage:      required[materialID] - material.Stock,
				})
			}
		}
		if len(insufficient) > 0 {
			return &ValidationError{
				Message: "insufficient raw materials",
				Details: insufficient,
			}
		}

		// One ledger row per order item and ingredient pair.
		for i := range order.Items {
			item := &order.Items[i]
			for _, ingredient := range products[item.ProductID].Ingredients {
				usage := models.RawMaterialUsage{
					ID:            uuid.New(),
					OrderID:       &order.ID,
					OrderItemID:   &item.ID,
					ProductID:     &item.ProductID,
					RawMaterialID: ingredient.RawMaterialID,
					QuantityUsed:  ingredient.QuantityPerUnit * item.Quantity,
					Notes:         "order confirmation",
					CreatedBy:     "system",
				}
				if err := s.usages.Create(ctx, &usage); err != nil {
					return errors.Wrap(err, "failed to create usage record")
				}
				usages = append(usages, usage)
			}
		}

		for _, materialID := range SortedMaterialIDs(required) {
			if err := s.inventory.Deduct(ctx, locked[materialID], required[materialID]); err != nil {
				return err
			}
		}

		if err := s.orders.UpdateStatus(ctx, order.ID, models.OrderStatusConfirm); err != nil {
			return err
		}

		order.Status = models.OrderStatusConfirm
		confirmed = order
		return nil
	})
	if err != nil {
		if s.tracer != nil {
			s.tracer.RecordError(txn, err)
		}
		if s.metrics != nil {
			s.metrics.RecordError("order-confirmation")
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordSuccess("order-confirmation")
		s.metrics.RecordTimer("order-confirmation", time.Since(start).Milliseconds())
	}

	if len(usages) > 0 {
		s.indexConfirmation(ctx, confirmed, usages)

		if s.metrics != nil {
			s.metrics.IncrementCounter("orders.confirmed")
		}

		log.Info().
			Str("order_id", confirmed.ID.String()).
			Int("usage_records", len(usages)).
			Msg("Order confirmed, raw materials deducted")
	}

	return confirmed, nil
}

// SearchConfirmations searches indexed order confirmations by customer name.
func (s *OrderService) SearchConfirmations(ctx context.Context, customer string) ([]map[string]interface{}, error) {
	if s.elastic == nil {
		return nil, NewValidationError("order search is not available")
	}
	if customer == "" {
		return nil, NewValidationError("customer query is required")
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"match": map[string]interface{}{
				"customer_name": customer,
			},
		},
	}
	return s.elastic.SearchOrders(ctx, query)
}

// indexConfirmation pushes the confirmed order to Elasticsearch after the
// database transaction has committed. Failures are logged, never surfaced.
func (s *OrderService) indexConfirmation(ctx context.Context, order *models.Order, usages []models.RawMaterialUsage) {
	if s.elastic == nil {
		return
	}
	if err := s.elastic.IndexOrderConfirmation(ctx, order, usages); err != nil {
		log.Warn().
			Err(err).
			Str("order_id", order.ID.String()).
			Msg("Failed to index order confirmation")
	}
}

// buildItems validates item inputs and resolves them into order item rows.
func (s *OrderService) buildItems(ctx context.Context, inputs []OrderItemInput) ([]models.OrderItem, error) {
	items := make([]models.OrderItem, 0, len(inputs))
	for _, input := range inputs {
		if input.Quantity <= 0 {
			return nil, NewValidationError("order item quantity must be positive")
		}
		if _, err := s.products.GetByID(ctx, input.ProductID); err != nil {
			if isRecordNotFound(err) {
				return nil, NewValidationError(fmt.Sprintf("unknown product %s", input.ProductID))
			}
			return nil, err
		}
		items = append(items, models.OrderItem{
			ID:        uuid.New(),
			ProductID: input.ProductID,
			Quantity:  input.Quantity,
		})
	}
	return items, nil
}

// loadProducts resolves the distinct products of an order's items with their
// ingredients.
func (s *OrderService) loadProducts(ctx context.Context, items []models.OrderItem) (map[uuid.UUID]*models.Product, error) {
	products := make(map[uuid.UUID]*models.Product)
	for _, item := range items {
		if _, ok := products[item.ProductID]; ok {
			continue
		}
		product, err := s.products.GetByID(ctx, item.ProductID)
		if err != nil {
			if isRecordNotFound(err) {
				return nil, NewValidationError(fmt.Sprintf("unknown product %s", item.ProductID))
			}
			return nil, err
		}
		products[item.ProductID] = product
	}
	return products, nil
}

// orderPlacedEvent is the payload of an order.placed message.
type orderPlacedEvent struct {
	CustomerName    string           `json:"customer_name"`
	CustomerEmail   string           `json:"customer_email"`
	CustomerPhone   string           `json:"customer_phone"`
	CustomerAddress string           `json:"customer_address"`
	Items           []OrderItemInput `json:"items"`
	Confirm         bool             `json:"confirm"`
}

// orderConfirmRequestedEvent is the payload of an order.confirm_requested
// message.
type orderConfirmRequestedEvent struct {
	OrderID uuid.UUID `json:"order_id"`
}

// ProcessOrderEvent handles one inbound Service Bus message. Domain
// rejections are logged and swallowed so the queue does not redeliver them;
// infrastructure errors propagate so the message is retried.
func (s *OrderService) ProcessOrderEvent(ctx context.Context, message *azservicebus.ReceivedMessage, txn *newrelic.Transaction) error {
	var event messaging.Event
	if err := json.Unmarshal(message.Body, &event); err != nil {
		log.Error().Err(err).Str("messageId", message.MessageID).Msg("Discarding malformed message")
		return nil
	}

	if s.tracer != nil {
		s.tracer.AddAttribute(txn, "event_type", event.EventType)
	}

	switch event.EventType {
	case messaging.EventOrderPlaced:
		var payload orderPlacedEvent
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			log.Error().Err(err).Str("messageId", message.MessageID).Msg("Discarding malformed order.placed payload")
			return nil
		}

		order, err := s.CreateOrder(ctx, CreateOrderInput{
			CustomerName:    payload.CustomerName,
			CustomerEmail:   payload.CustomerEmail,
			CustomerPhone:   payload.CustomerPhone,
			CustomerAddress: payload.CustomerAddress,
			Items:           payload.Items,
		})
		if err != nil {
			return s.swallowDomainError(err, message.MessageID)
		}
		if payload.Confirm {
			if _, err := s.ConfirmOrder(ctx, order.ID); err != nil {
				return s.swallowDomainError(err, message.MessageID)
			}
		}
		return nil

	case messaging.EventOrderConfirmRequested:
		var payload orderConfirmRequestedEvent
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			log.Error().Err(err).Str("messageId", message.MessageID).Msg("Discarding malformed order.confirm_requested payload")
			return nil
		}
		if _, err := s.ConfirmOrder(ctx, payload.OrderID); err != nil {
			return s.swallowDomainError(err, message.MessageID)
		}
		return nil

	default:
		log.Warn().Str("eventType", event.EventType).Str("messageId", message.MessageID).Msg("Ignoring unsupported event type")
		return nil
	}
}

// swallowDomainError keeps rejected business input off the retry path.
func (s *OrderService) swallowDomainError(err error, messageID string) error {
	var validationErr *ValidationError
	var notFoundErr *NotFoundError
	var conflictErr *ConflictError
	if errors.As(err, &validationErr) || errors.As(err, &notFoundErr) || errors.As(err, &conflictErr) {
		log.Warn().Err(err).Str("messageId", messageID).Msg("Rejected order event")
		return nil
	}
	return err
}
