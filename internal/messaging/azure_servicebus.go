package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"example.com/backstage/services/fulfillment/config"
	"example.com/backstage/services/fulfillment/internal/tracing"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog/log"
)

// MessageHandler processes a single received message inside an optional
// tracing transaction.
type MessageHandler func(ctx context.Context, message *azservicebus.ReceivedMessage, txn *newrelic.Transaction) error

// AzureServiceBus wraps an Azure Service Bus client with a receiver for the
// inbound order-event queue and a sender for outbound fulfillment events.
type AzureServiceBus struct {
	client         *azservicebus.Client
	sender         *azservicebus.Sender
	queueName      string
	eventQueueName string
	tracer         tracing.Tracer
}

// NewAzureServiceBus creates a Service Bus client from the configured
// connection string.
func NewAzureServiceBus(cfg config.AzureConfig, tracer tracing.Tracer) (*AzureServiceBus, error) {
	if cfg.QueueConnStr == "" {
		return nil, fmt.Errorf("Azure Service Bus connection string is empty")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Service Bus client: %w", err)
	}

	sender, err := client.NewSender(cfg.EventQueueName, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Service Bus sender: %w", err)
	}

	return &AzureServiceBus{
		client:         client,
		sender:         sender,
		queueName:      cfg.QueueName,
		eventQueueName: cfg.EventQueueName,
		tracer:         tracer,
	}, nil
}

// ProcessMessages receives messages from the inbound queue in batches and
// dispatches each one to the handler until the context is cancelled. Failed
// messages are abandoned so the queue redelivers them.
func (b *AzureServiceBus) ProcessMessages(ctx context.Context, handler MessageHandler) error {
	receiver, err := b.client.NewReceiverForQueue(b.queueName, nil)
	if err != nil {
		return fmt.Errorf("failed to create Service Bus receiver: %w", err)
	}
	defer func() {
		if err := receiver.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("Error closing Service Bus receiver")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		messages, err := receiver.ReceiveMessages(ctx, 10, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("Error receiving messages, retrying")
			time.Sleep(2 * time.Second)
			continue
		}

		for _, message := range messages {
			var txn *newrelic.Transaction
			if b.tracer != nil {
				txn = b.tracer.StartTransaction("message-processing")
			}

			err := handler(ctx, message, txn)

			if b.tracer != nil {
				if err != nil {
					b.tracer.RecordError(txn, err)
				}
				b.tracer.EndTransaction(txn)
			}

			if err != nil {
				log.Error().Err(err).Str("messageId", message.MessageID).Msg("Error processing message")
				if abandonErr := receiver.AbandonMessage(ctx, message, nil); abandonErr != nil {
					log.Error().Err(abandonErr).Str("messageId", message.MessageID).Msg("Error abandoning message")
				}
				continue
			}

			if err := receiver.CompleteMessage(ctx, message, nil); err != nil {
				log.Error().Err(err).Str("messageId", message.MessageID).Msg("Error completing message")
			}
		}
	}
}

// SendMessage publishes a JSON payload to the outbound event queue.
func (b *AzureServiceBus) SendMessage(ctx context.Context, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal message body: %w", err)
	}

	msg := &azservicebus.Message{
		Body: data,
		ApplicationProperties: map[string]interface{}{
			"source": "fulfillment",
			"time":   time.Now().UTC().Format(time.RFC3339),
		},
	}

	return b.sender.SendMessage(ctx, msg, nil)
}

// Close closes the sender and the underlying client.
func (b *AzureServiceBus) Close() error {
	if b.sender != nil {
		if err := b.sender.Close(context.Background()); err != nil {
			return err
		}
	}
	if b.client != nil {
		return b.client.Close(context.Background())
	}
	return nil
}
