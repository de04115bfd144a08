package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"kitstore/internal/broker"
	"kitstore/internal/models"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRecorder struct {
	mu      sync.Mutex
	seen    map[string]bool
	entries []models.OrderStatusHistory
	err     error
}

func (r *memRecorder) RecordOrderEvent(ctx context.Context, entry *models.OrderStatusHistory) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	if r.seen[entry.EventID] {
		return false, nil
	}
	r.seen[entry.EventID] = true
	r.entries = append(r.entries, *entry)
	return true, nil
}

// sliceConsumer replays a fixed set of messages, then stops
type sliceConsumer struct {
	msgs   []kafka.Message
	errs   []error
	closed bool
}

func (c *sliceConsumer) StartConsuming(ctx context.Context, handler broker.MessageHandler) error {
	for _, m := range c.msgs {
		c.errs = append(c.errs, handler(ctx, m))
	}
	return nil
}

func (c *sliceConsumer) Close() error {
	c.closed = true
	return nil
}

func message(t *testing.T, event interface{}) kafka.Message {
	t.Helper()
	b, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: b}
}

func TestHistoryWorkerRecordsLifecycle(t *testing.T) {
	orderID := uuid.New()
	paid := models.OrderPaidEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderPaid),
		OrderID:   orderID,
		PaymentID: "pay_1",
		Source:    "webhook",
	}

	consumer := &sliceConsumer{msgs: []kafka.Message{
		message(t, models.OrderCreatedEvent{
			BaseEvent:   models.NewBaseEvent(models.EventTypeOrderCreated),
			OrderID:     orderID,
			OrderNumber: "ORD-2024-12345",
			Total:       decimal.RequireFromString("107"),
		}),
		message(t, models.CheckoutSessionCreatedEvent{
			BaseEvent: models.NewBaseEvent(models.EventTypeCheckoutSessionCreated),
			OrderID:   orderID,
			SessionID: "direct_1",
			Fallback:  true,
		}),
		message(t, paid),
		message(t, paid), // redelivery
	}}
	recorder := &memRecorder{seen: map[string]bool{}}

	w := NewOrderHistoryWorker(consumer, recorder)
	require.NoError(t, w.Start(context.Background()))

	for _, err := range consumer.errs {
		assert.NoError(t, err)
	}
	require.Len(t, recorder.entries, 3)

	assert.Equal(t, models.OrderStatusPending, recorder.entries[0].Status)
	assert.Equal(t, "order ORD-2024-12345 placed, total 107.00", recorder.entries[0].Detail)
	assert.Equal(t, "checkout session direct_1 (simulation fallback)", recorder.entries[1].Detail)
	assert.Equal(t, models.OrderStatusPaid, recorder.entries[2].Status)
	assert.Equal(t, paid.EventID, recorder.entries[2].EventID)
	assert.Equal(t, models.EventTypeOrderPaid, recorder.entries[2].EventType)

	require.NoError(t, w.Stop())
	assert.True(t, consumer.closed)
}

func TestHistoryWorkerSurfacesStoreErrors(t *testing.T) {
	consumer := &sliceConsumer{msgs: []kafka.Message{
		message(t, models.OrderFailedEvent{
			BaseEvent: models.NewBaseEvent(models.EventTypeOrderFailed),
			OrderID:   uuid.New(),
			Reason:    "Payment was declined",
			Source:    "simulation",
		}),
	}}
	boom := errors.New("db down")
	recorder := &memRecorder{seen: map[string]bool{}, err: boom}

	w := NewOrderHistoryWorker(consumer, recorder)
	require.NoError(t, w.Start(context.Background()))

	require.Len(t, consumer.errs, 1)
	assert.ErrorIs(t, consumer.errs[0], boom)
}
