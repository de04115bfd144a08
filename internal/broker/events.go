package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"kitstore/internal/models"
	"kitstore/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher writes a keyed event to the log
type Publisher interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher handles publishing order lifecycle events.
// A nil publisher turns every call into a no-op.
type EventPublisher struct {
	producer Publisher
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer Publisher) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func (ep *EventPublisher) publish(ctx context.Context, orderID uuid.UUID, event interface{}) error {
	if ep == nil || ep.producer == nil {
		return nil
	}
	return ep.producer.PublishEvent(ctx, orderKey(orderID), event)
}

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ep.publish(ctx, event.OrderID, event)
}

// PublishCheckoutSessionCreated publishes CheckoutSessionCreated event
func (ep *EventPublisher) PublishCheckoutSessionCreated(ctx context.Context, event *models.CheckoutSessionCreatedEvent) error {
	return ep.publish(ctx, event.OrderID, event)
}

// PublishOrderPaid publishes OrderPaid event
func (ep *EventPublisher) PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error {
	return ep.publish(ctx, event.OrderID, event)
}

// PublishOrderFailed publishes OrderFailed event
func (ep *EventPublisher) PublishOrderFailed(ctx context.Context, event *models.OrderFailedEvent) error {
	return ep.publish(ctx, event.OrderID, event)
}

func orderKey(orderID uuid.UUID) string {
	return fmt.Sprintf("order-%s", orderID)
}

// EventHandler routes incoming lifecycle events to registered callbacks
type EventHandler struct {
	onOrderCreated    func(context.Context, *models.OrderCreatedEvent) error
	onCheckoutSession func(context.Context, *models.CheckoutSessionCreatedEvent) error
	onOrderPaid       func(context.Context, *models.OrderPaidEvent) error
	onOrderFailed     func(context.Context, *models.OrderFailedEvent) error
	logger            *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnOrderCreated registers a handler for OrderCreated events
func (eh *EventHandler) OnOrderCreated(handler func(context.Context, *models.OrderCreatedEvent) error) {
	eh.onOrderCreated = handler
}

// OnCheckoutSessionCreated registers a handler for CheckoutSessionCreated events
func (eh *EventHandler) OnCheckoutSessionCreated(handler func(context.Context, *models.CheckoutSessionCreatedEvent) error) {
	eh.onCheckoutSession = handler
}

// OnOrderPaid registers a handler for OrderPaid events
func (eh *EventHandler) OnOrderPaid(handler func(context.Context, *models.OrderPaidEvent) error) {
	eh.onOrderPaid = handler
}

// OnOrderFailed registers a handler for OrderFailed events
func (eh *EventHandler) OnOrderFailed(handler func(context.Context, *models.OrderFailedEvent) error) {
	eh.onOrderFailed = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		// Poison message: log and skip so the partition keeps moving.
		eh.logger.Error("Failed to unmarshal base event", zap.Error(err))
		return nil
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeOrderCreated:
		return dispatch(ctx, msg.Value, eh.onOrderCreated)
	case models.EventTypeCheckoutSessionCreated:
		return dispatch(ctx, msg.Value, eh.onCheckoutSession)
	case models.EventTypeOrderPaid:
		return dispatch(ctx, msg.Value, eh.onOrderPaid)
	case models.EventTypeOrderFailed:
		return dispatch(ctx, msg.Value, eh.onOrderFailed)
	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}

func dispatch[T any](ctx context.Context, payload []byte, handler func(context.Context, *T) error) error {
	if handler == nil {
		return nil
	}
	var event T
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal %T: %w", event, err)
	}
	return handler(ctx, &event)
}
