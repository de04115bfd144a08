package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"kitstore/config"
	"kitstore/internal/models"
	"kitstore/internal/payment"
	"kitstore/internal/store"
	"kitstore/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sources of a status transition, recorded on lifecycle events
const (
	SourceWebhook    = "webhook"
	SourceSimulation = "simulation"
)

// DefaultDeclineReason is used by the failure simulation when none is given
const DefaultDeclineReason = "Payment was declined"

// ErrInvalidSignature is returned in enforce mode for unsigned or mis-signed webhooks
var ErrInvalidSignature = &Error{Kind: ErrUnauthenticated, Msg: "Invalid webhook signature"}

// WebhookConfig controls signature checking and de-duplication
type WebhookConfig struct {
	Secret        string
	SignatureMode string
	DedupeTTL     time.Duration
}

type eventHandler func(ctx context.Context, ev *payment.Event) error

// PaymentEventService applies provider notifications and simulations to orders
type PaymentEventService struct {
	orders         OrderRepository
	dedupe         WebhookDeduper
	eventPublisher LifecyclePublisher
	cfg            WebhookConfig
	logger         *zap.Logger

	handlers map[payment.EventKind]eventHandler
}

// NewPaymentEventService creates the webhook processor. dedupe may be nil.
func NewPaymentEventService(orders OrderRepository, dedupe WebhookDeduper, eventPublisher LifecyclePublisher, cfg WebhookConfig) *PaymentEventService {
	s := &PaymentEventService{
		orders:         orders,
		dedupe:         dedupe,
		eventPublisher: orNoop(eventPublisher),
		cfg:            cfg,
		logger:         util.GetLogger(),
	}
	s.handlers = map[payment.EventKind]eventHandler{
		payment.KindPaymentSucceeded: s.onPaymentSucceeded,
		payment.KindPaymentFailed:    s.onPaymentFailed,
	}
	return s
}

// HandleWebhook processes one raw webhook delivery.
// payment.ErrInvalidPayload and ErrInvalidSignature mean the delivery was rejected;
// any other error means it was accepted but could not be applied.
func (s *PaymentEventService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	ctx, span := util.StartSpan(ctx, "PaymentEventService.HandleWebhook")
	defer span.End()

	ev, err := payment.ParseEvent(body)
	if err != nil {
		return err
	}

	if err := s.checkSignature(body, signature); err != nil {
		return err
	}

	digest, marked := "", false
	if s.dedupe != nil {
		sum := sha256.Sum256(body)
		digest = hex.EncodeToString(sum[:])
		first, err := s.dedupe.MarkWebhookSeen(ctx, digest, s.cfg.DedupeTTL)
		if err != nil {
			s.logger.Warn("Webhook de-dup unavailable", zap.Error(err))
		} else if !first {
			util.WebhookEventsTotal.WithLabelValues(ev.Kind.String(), "duplicate").Inc()
			s.logger.Info("Duplicate webhook delivery ignored", zap.String("type", ev.Type))
			return nil
		}
		marked = err == nil
	}

	handler, ok := s.handlers[ev.Kind]
	if !ok {
		util.WebhookEventsTotal.WithLabelValues(ev.Kind.String(), "ignored").Inc()
		s.logger.Info("Unhandled webhook type", zap.String("type", ev.Type))
		return nil
	}

	if err := handler(ctx, ev); err != nil {
		util.WebhookEventsTotal.WithLabelValues(ev.Kind.String(), "error").Inc()
		util.SpanError(span, err)
		if marked {
			s.forget(digest)
		}
		return err
	}
	util.WebhookEventsTotal.WithLabelValues(ev.Kind.String(), "processed").Inc()
	return nil
}

// forget releases a delivery digest so the provider's replay is processed again
func (s *PaymentEventService) forget(digest string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.dedupe.ForgetWebhook(ctx, digest); err != nil {
		s.logger.Warn("Failed to release webhook digest", zap.Error(err))
	}
}

func (s *PaymentEventService) checkSignature(body []byte, signature string) error {
	if s.cfg.Secret == "" {
		if s.cfg.SignatureMode == config.SignatureModeEnforce {
			return ErrInvalidSignature
		}
		return nil
	}
	if payment.Verify(s.cfg.Secret, body, signature) {
		return nil
	}

	util.WebhookSignatureFailures.Inc()
	if s.cfg.SignatureMode == config.SignatureModeEnforce {
		s.logger.Warn("Rejected webhook with invalid signature")
		return ErrInvalidSignature
	}
	s.logger.Warn("Failed to verify webhook signature, accepting in advisory mode",
		zap.Bool("header_present", signature != ""))
	return nil
}

func (s *PaymentEventService) onPaymentSucceeded(ctx context.Context, ev *payment.Event) error {
	orderID, ok := s.webhookOrderID(ev)
	if !ok {
		return nil
	}
	_, err := s.markPaid(ctx, orderID, ev.PaymentID, SourceWebhook)
	return s.ignoreClientErrors(orderID, err)
}

func (s *PaymentEventService) onPaymentFailed(ctx context.Context, ev *payment.Event) error {
	orderID, ok := s.webhookOrderID(ev)
	if !ok {
		return nil
	}
	_, err := s.markFailed(ctx, orderID, ev.Reason, SourceWebhook)
	return s.ignoreClientErrors(orderID, err)
}

func (s *PaymentEventService) webhookOrderID(ev *payment.Event) (uuid.UUID, bool) {
	if ev.OrderID == "" {
		s.logger.Error("No orderId found in webhook metadata", zap.String("type", ev.Type))
		return uuid.Nil, false
	}
	id, err := uuid.Parse(ev.OrderID)
	if err != nil {
		s.logger.Error("Webhook references malformed order id", zap.String("order_id", ev.OrderID))
		return uuid.Nil, false
	}
	return id, true
}

// ignoreClientErrors drops not-found and already-terminal outcomes: the provider
// cannot fix them by retrying, so they are only logged.
func (s *PaymentEventService) ignoreClientErrors(orderID uuid.UUID, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		s.logger.Error("Order not found for payment update", zap.String("order_id", orderID.String()))
		return nil
	case errors.Is(err, ErrInvalidState):
		s.logger.Warn("Ignoring payment update for non-pending order", zap.String("order_id", orderID.String()))
		return nil
	}
	return err
}

// SimulatePaymentSuccess marks a PENDING order paid without the provider
func (s *PaymentEventService) SimulatePaymentSuccess(ctx context.Context, rawOrderID string) (*models.Order, error) {
	orderID, err := parseOrderID(rawOrderID)
	if err != nil {
		return nil, err
	}
	paymentID := fmt.Sprintf("simulated_payment_%d", time.Now().UnixMilli())
	return s.markPaid(ctx, orderID, paymentID, SourceSimulation)
}

// SimulatePaymentFailure marks a PENDING order failed without the provider
func (s *PaymentEventService) SimulatePaymentFailure(ctx context.Context, rawOrderID, reason string) (*models.Order, error) {
	orderID, err := parseOrderID(rawOrderID)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = DefaultDeclineReason
	}
	return s.markFailed(ctx, orderID, reason, SourceSimulation)
}

func (s *PaymentEventService) markPaid(ctx context.Context, orderID uuid.UUID, paymentID, source string) (*models.Order, error) {
	order, err := s.transition(ctx, orderID, models.StatusTransition{
		Status:    models.OrderStatusPaid,
		PaymentID: paymentID,
	})
	if err != nil {
		return nil, err
	}

	util.OrdersPaidTotal.WithLabelValues(source).Inc()
	s.logger.Info("Order marked as PAID",
		zap.String("order_id", order.ID.String()),
		zap.String("payment_id", paymentID),
		zap.String("source", source))

	event := &models.OrderPaidEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderPaid),
		OrderID:   order.ID,
		PaymentID: paymentID,
		Source:    source,
	}
	if err := s.eventPublisher.PublishOrderPaid(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPaid event", zap.Error(err))
	}
	return order, nil
}

func (s *PaymentEventService) markFailed(ctx context.Context, orderID uuid.UUID, reason, source string) (*models.Order, error) {
	order, err := s.transition(ctx, orderID, models.StatusTransition{
		Status:        models.OrderStatusFailed,
		FailureReason: reason,
	})
	if err != nil {
		return nil, err
	}

	util.OrdersFailedTotal.WithLabelValues(source).Inc()
	s.logger.Info("Order marked as FAILED",
		zap.String("order_id", order.ID.String()),
		zap.String("reason", reason),
		zap.String("source", source))

	event := &models.OrderFailedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderFailed),
		OrderID:   order.ID,
		Reason:    reason,
		Source:    source,
	}
	if err := s.eventPublisher.PublishOrderFailed(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderFailed event", zap.Error(err))
	}
	return order, nil
}

func (s *PaymentEventService) transition(ctx context.Context, orderID uuid.UUID, t models.StatusTransition) (*models.Order, error) {
	order, err := s.orders.TransitionOrderStatus(ctx, orderID, t)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, newError(ErrNotFound, "Order not found")
	case errors.Is(err, store.ErrNotPending):
		util.OrderTransitionsRejected.Inc()
		return nil, newError(ErrInvalidState, "Order is not in PENDING status")
	case err != nil:
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	return order, nil
}

func parseOrderID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, newError(ErrValidation, "Order ID is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, newError(ErrNotFound, "Order not found")
	}
	return id, nil
}
