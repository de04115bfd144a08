package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderCreated           = "ORDER_CREATED"
	EventTypeCheckoutSessionCreated = "CHECKOUT_SESSION_CREATED"
	EventTypeOrderPaid              = "ORDER_PAID"
	EventTypeOrderFailed            = "ORDER_FAILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBaseEvent stamps a fresh event id and time
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// OrderCreatedEvent published when order is created
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      uuid.UUID       `json:"user_id"`
	Total       decimal.Decimal `json:"total"`
	Items       []OrderItemData `json:"items"`
}

// CheckoutSessionCreatedEvent published when a payment session is attached
type CheckoutSessionCreatedEvent struct {
	BaseEvent
	OrderID   uuid.UUID `json:"order_id"`
	SessionID string    `json:"session_id"`
	Fallback  bool      `json:"fallback"`
}

// OrderPaidEvent published when payment succeeds
type OrderPaidEvent struct {
	BaseEvent
	OrderID   uuid.UUID `json:"order_id"`
	PaymentID string    `json:"payment_id"`
	Source    string    `json:"source"`
}

// OrderFailedEvent published when payment fails
type OrderFailedEvent struct {
	BaseEvent
	OrderID uuid.UUID `json:"order_id"`
	Reason  string    `json:"reason"`
	Source  string    `json:"source"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ItemNumber int64           `json:"item_number"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}
