package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"kitstore/internal/models"
	"kitstore/internal/payment"
	"kitstore/internal/store"
	"kitstore/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutConfig holds the provider-facing settings of a checkout
type CheckoutConfig struct {
	FrontendURL string
	Currency    string
	Country     string
	LockTTL     time.Duration
}

// CheckoutRequest starts payment for an order
type CheckoutRequest struct {
	OrderID       string `json:"orderId"`
	CustomerEmail string `json:"customerEmail"`
}

// CheckoutResponse is either a provider session or, in fallback mode, a
// simulation page URL.
type CheckoutResponse struct {
	SessionToken string `json:"sessionToken,omitempty"`
	SessionID    string `json:"sessionId"`
	ShortLink    string `json:"shortLink,omitempty"`
	CheckoutURL  string `json:"checkoutUrl,omitempty"`
	FallbackMode bool   `json:"fallbackMode,omitempty"`
}

// CheckoutService opens payment sessions for pending orders
type CheckoutService struct {
	orders         OrderRepository
	provider       CheckoutProvider
	locker         Locker
	eventPublisher LifecyclePublisher
	cfg            CheckoutConfig
	logger         *zap.Logger
}

// NewCheckoutService creates a checkout service. provider and locker may be nil;
// without a provider every checkout takes the simulation fallback.
func NewCheckoutService(orders OrderRepository, provider CheckoutProvider, locker Locker, eventPublisher LifecyclePublisher, cfg CheckoutConfig) *CheckoutService {
	return &CheckoutService{
		orders:         orders,
		provider:       provider,
		locker:         locker,
		eventPublisher: orNoop(eventPublisher),
		cfg:            cfg,
		logger:         util.GetLogger(),
	}
}

// CreateCheckoutSession validates the order and asks the provider for a hosted checkout
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, user *models.User, req CheckoutRequest) (*CheckoutResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.CreateCheckoutSession")
	defer span.End()

	if req.OrderID == "" {
		return nil, newError(ErrValidation, "Order ID is required")
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return nil, newError(ErrNotFound, "Order not found")
	}

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(ErrNotFound, "Order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order.UserID != user.ID {
		return nil, newError(ErrForbidden, "Not authorized to access this order")
	}
	if order.Status != models.OrderStatusPending {
		return nil, newError(ErrInvalidState, "Order is not in PENDING status")
	}

	release, err := s.lock(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	resp, err := s.providerSession(ctx, user, order, req.CustomerEmail)
	if err != nil {
		s.logger.Warn("Payment provider unavailable, falling back to simulation",
			zap.String("order_id", order.ID.String()),
			zap.Error(err))
		resp = s.fallbackSession(order)
	}

	if err := s.orders.SetPaymentSession(ctx, order.ID, resp.SessionID); err != nil {
		util.SpanError(span, err)
		return nil, fmt.Errorf("failed to store payment session: %w", err)
	}

	mode := "provider"
	if resp.FallbackMode {
		mode = "fallback"
	}
	util.CheckoutSessionsTotal.WithLabelValues(mode).Inc()
	s.logger.Info("Checkout session created",
		zap.String("order_id", order.ID.String()),
		zap.String("session_id", resp.SessionID),
		zap.String("mode", mode))

	event := &models.CheckoutSessionCreatedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeCheckoutSessionCreated),
		OrderID:   order.ID,
		SessionID: resp.SessionID,
		Fallback:  resp.FallbackMode,
	}
	if err := s.eventPublisher.PublishCheckoutSessionCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish CheckoutSessionCreated event", zap.Error(err))
	}

	return resp, nil
}

// lock takes the per-order checkout lock. A Redis failure is logged and the
// checkout proceeds unguarded.
func (s *CheckoutService) lock(ctx context.Context, orderID uuid.UUID) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}

	key := "checkout:" + orderID.String()
	token, ok, err := s.locker.AcquireLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		s.logger.Warn("Checkout lock unavailable", zap.Error(err))
		return noop, nil
	}
	if !ok {
		return nil, newError(ErrConflict, "Checkout already in progress for this order")
	}

	return func() {
		// The request context may already be cancelled; release on a fresh one.
		relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.locker.ReleaseLock(relCtx, key, token); err != nil {
			s.logger.Warn("Failed to release checkout lock", zap.Error(err))
		}
	}, nil
}

func (s *CheckoutService) providerSession(ctx context.Context, user *models.User, order *models.Order, emailOverride string) (*CheckoutResponse, error) {
	if s.provider == nil {
		return nil, payment.ErrNotConfigured
	}

	email := emailOverride
	if email == "" {
		email = user.Email
	}
	name := user.Name
	if name == "" {
		name = "Customer"
	}

	session, err := s.provider.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		Amount:      order.Total,
		Currency:    s.cfg.Currency,
		Country:     s.cfg.Country,
		Reference:   order.OrderNumber,
		Email:       email,
		Description: "Order " + order.OrderNumber,
		SuccessURL:  fmt.Sprintf("%s/order-confirmation/%s", s.cfg.FrontendURL, order.ID),
		CancelURL:   s.cfg.FrontendURL + "/cart",
		Consumer:    payment.Consumer{Name: name, Reference: user.ID.String()},
		Metadata:    map[string]string{"orderId": order.ID.String()},
	})
	if err != nil {
		return nil, err
	}

	return &CheckoutResponse{
		SessionToken: session.SessionToken,
		SessionID:    session.ID,
		ShortLink:    session.ShortLink,
	}, nil
}

func (s *CheckoutService) fallbackSession(order *models.Order) *CheckoutResponse {
	checkoutURL := fmt.Sprintf("%s/payment-simulation?orderId=%s&amount=%s&reference=%s",
		s.cfg.FrontendURL,
		url.QueryEscape(order.ID.String()),
		order.Total.StringFixed(2),
		url.QueryEscape(order.OrderNumber))

	return &CheckoutResponse{
		SessionID:    fmt.Sprintf("direct_%d", time.Now().UnixMilli()),
		CheckoutURL:  checkoutURL,
		FallbackMode: true,
	}
}

// ProviderStatus is the result of probing the payment provider
type ProviderStatus struct {
	Message  string `json:"message"`
	Status   int    `json:"status"`
	Endpoint string `json:"endpoint"`
}

// TestProvider reports whether the provider base URL answers
func (s *CheckoutService) TestProvider(ctx context.Context) (*ProviderStatus, error) {
	if s.provider == nil {
		return nil, payment.ErrNotConfigured
	}
	status, err := s.provider.Ping(ctx)
	if err != nil {
		return nil, err
	}
	return &ProviderStatus{
		Message:  "Successfully tested connection to payment provider",
		Status:   status,
		Endpoint: s.provider.BaseURL(),
	}, nil
}
