package messaging

import (
	"context"
	"encoding/json"
	"time"

	"example.com/backstage/services/fulfillment/internal/models"
)

// Event type definitions
const (
	EventOrderPlaced           = "order.placed"
	EventOrderConfirmRequested = "order.confirm_requested"
	EventWorkOrderCompleted    = "work_order.completed"
)

// Event is the common message envelope used on both queues.
type Event struct {
	EventType string          `json:"eventType"`
	Data      json.RawMessage `json:"data"`
}

// WorkOrderCompletedEvent is published when every item on a work order has
// been fully delivered.
type WorkOrderCompletedEvent struct {
	WorkOrderID string    `json:"work_order_id"`
	WOCode      string    `json:"wo_code"`
	OrderID     string    `json:"order_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// PublishWorkOrderCompleted publishes a work_order.completed event to the
// outbound queue.
func (b *AzureServiceBus) PublishWorkOrderCompleted(ctx context.Context, workOrder *models.WorkOrder) error {
	data, err := json.Marshal(WorkOrderCompletedEvent{
		WorkOrderID: workOrder.ID.String(),
		WOCode:      workOrder.WOCode,
		OrderID:     workOrder.OrderID.String(),
		CompletedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	return b.SendMessage(ctx, Event{
		EventType: EventWorkOrderCompleted,
		Data:      data,
	})
}
