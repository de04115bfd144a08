package worker

import (
	"context"
	"fmt"

	"kitstore/internal/broker"
	"kitstore/internal/models"
	"kitstore/internal/util"

	"go.uber.org/zap"
)

// Consumer feeds messages to a handler until ctx is done
type Consumer interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// HistoryRecorder persists one lifecycle step; it reports false for an event id already recorded.
type HistoryRecorder interface {
	RecordOrderEvent(ctx context.Context, entry *models.OrderStatusHistory) (bool, error)
}

// OrderHistoryWorker turns order lifecycle events into order_status_history rows
type OrderHistoryWorker struct {
	consumer     Consumer
	recorder     HistoryRecorder
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewOrderHistoryWorker creates a new history worker
func NewOrderHistoryWorker(consumer Consumer, recorder HistoryRecorder) *OrderHistoryWorker {
	w := &OrderHistoryWorker{
		consumer:     consumer,
		recorder:     recorder,
		eventHandler: broker.NewEventHandler(),
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnOrderCreated(w.handleOrderCreated)
	w.eventHandler.OnCheckoutSessionCreated(w.handleCheckoutSessionCreated)
	w.eventHandler.OnOrderPaid(w.handleOrderPaid)
	w.eventHandler.OnOrderFailed(w.handleOrderFailed)

	return w
}

// Start starts the worker
func (w *OrderHistoryWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting order history worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *OrderHistoryWorker) Stop() error {
	w.logger.Info("Stopping order history worker")
	return w.consumer.Close()
}

func (w *OrderHistoryWorker) handleOrderCreated(ctx context.Context, e *models.OrderCreatedEvent) error {
	return w.record(ctx, e.BaseEvent, &models.OrderStatusHistory{
		OrderID: e.OrderID,
		Status:  models.OrderStatusPending,
		Detail:  fmt.Sprintf("order %s placed, total %s", e.OrderNumber, e.Total.StringFixed(2)),
	})
}

func (w *OrderHistoryWorker) handleCheckoutSessionCreated(ctx context.Context, e *models.CheckoutSessionCreatedEvent) error {
	detail := "checkout session " + e.SessionID
	if e.Fallback {
		detail += " (simulation fallback)"
	}
	return w.record(ctx, e.BaseEvent, &models.OrderStatusHistory{
		OrderID: e.OrderID,
		Status:  models.OrderStatusPending,
		Detail:  detail,
	})
}

func (w *OrderHistoryWorker) handleOrderPaid(ctx context.Context, e *models.OrderPaidEvent) error {
	return w.record(ctx, e.BaseEvent, &models.OrderStatusHistory{
		OrderID: e.OrderID,
		Status:  models.OrderStatusPaid,
		Detail:  fmt.Sprintf("payment %s via %s", e.PaymentID, e.Source),
	})
}

func (w *OrderHistoryWorker) handleOrderFailed(ctx context.Context, e *models.OrderFailedEvent) error {
	return w.record(ctx, e.BaseEvent, &models.OrderStatusHistory{
		OrderID: e.OrderID,
		Status:  models.OrderStatusFailed,
		Detail:  fmt.Sprintf("%s (via %s)", e.Reason, e.Source),
	})
}

func (w *OrderHistoryWorker) record(ctx context.Context, base models.BaseEvent, entry *models.OrderStatusHistory) error {
	ctx, span := util.StartSpan(ctx, "OrderHistoryWorker.record")
	defer span.End()

	entry.EventID = base.EventID
	entry.EventType = base.EventType

	written, err := w.recorder.RecordOrderEvent(ctx, entry)
	if err != nil {
		util.HistoryEventsRecorded.WithLabelValues("error").Inc()
		util.SpanError(span, err)
		return fmt.Errorf("failed to record %s for order %s: %w", base.EventType, entry.OrderID, err)
	}
	if !written {
		util.HistoryEventsRecorded.WithLabelValues("duplicate").Inc()
		w.logger.Debug("Event already recorded", zap.String("event_id", base.EventID))
		return nil
	}

	util.HistoryEventsRecorded.WithLabelValues("recorded").Inc()
	w.logger.Info("Order history recorded",
		zap.String("order_id", entry.OrderID.String()),
		zap.String("event_type", base.EventType),
		zap.String("status", string(entry.Status)))
	return nil
}
