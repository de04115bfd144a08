package broker

import (
	"context"
	"encoding/json"
	"testing"

	"kitstore/internal/models"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProducer struct {
	keys   []string
	events []interface{}
}

func (p *recordingProducer) PublishEvent(ctx context.Context, key string, event interface{}) error {
	p.keys = append(p.keys, key)
	p.events = append(p.events, event)
	return nil
}

func TestEventPublisherKeysByOrder(t *testing.T) {
	producer := &recordingProducer{}
	ep := NewEventPublisher(producer)
	orderID := uuid.New()

	err := ep.PublishOrderPaid(context.Background(), &models.OrderPaidEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderPaid),
		OrderID:   orderID,
		PaymentID: "pay_1",
	})
	require.NoError(t, err)

	require.Len(t, producer.keys, 1)
	assert.Equal(t, "order-"+orderID.String(), producer.keys[0])
}

func TestNilEventPublisherIsNoop(t *testing.T) {
	var ep *EventPublisher
	assert.NoError(t, ep.PublishOrderFailed(context.Background(), &models.OrderFailedEvent{OrderID: uuid.New()}))

	ep = NewEventPublisher(nil)
	assert.NoError(t, ep.PublishOrderCreated(context.Background(), &models.OrderCreatedEvent{OrderID: uuid.New()}))
}

func TestEventHandlerRoutesByType(t *testing.T) {
	orderID := uuid.New()

	var paid *models.OrderPaidEvent
	var failedCalls int

	eh := NewEventHandler()
	eh.OnOrderPaid(func(ctx context.Context, e *models.OrderPaidEvent) error {
		paid = e
		return nil
	})
	eh.OnOrderFailed(func(ctx context.Context, e *models.OrderFailedEvent) error {
		failedCalls++
		return nil
	})

	payload, err := json.Marshal(models.OrderPaidEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderPaid),
		OrderID:   orderID,
		PaymentID: "pay_9",
	})
	require.NoError(t, err)

	require.NoError(t, eh.HandleMessage(context.Background(), kafka.Message{Value: payload}))
	require.NotNil(t, paid)
	assert.Equal(t, orderID, paid.OrderID)
	assert.Equal(t, "pay_9", paid.PaymentID)
	assert.Zero(t, failedCalls)
}

func TestEventHandlerSkipsGarbageAndUnknown(t *testing.T) {
	eh := NewEventHandler()

	assert.NoError(t, eh.HandleMessage(context.Background(), kafka.Message{Value: []byte("not json")}))
	assert.NoError(t, eh.HandleMessage(context.Background(), kafka.Message{Value: []byte(`{"event_type":"SOMETHING_ELSE"}`)}))
	// Registered types without a callback are ignored too.
	assert.NoError(t, eh.HandleMessage(context.Background(), kafka.Message{Value: []byte(`{"event_type":"ORDER_CREATED"}`)}))
}
