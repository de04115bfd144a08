package service

import (
	"context"
	"time"

	"kitstore/internal/broker"
	"kitstore/internal/models"
	"kitstore/internal/payment"

	"github.com/google/uuid"
)

// ItemRepository is the catalog persistence used by ItemService and OrderService.
type ItemRepository interface {
	CreateItem(ctx context.Context, item *models.Item) error
	GetItemByNumber(ctx context.Context, number int64) (*models.Item, error)
	ListItems(ctx context.Context, filter models.ItemFilter) ([]models.Item, error)
	GetItemsByNumbers(ctx context.Context, numbers []int64) ([]models.Item, error)
	UpdateItem(ctx context.Context, item *models.Item) error
	DeleteItem(ctx context.Context, number int64) error
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error)
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	SetPaymentSession(ctx context.Context, orderID uuid.UUID, sessionID string) error
	TransitionOrderStatus(ctx context.Context, orderID uuid.UUID, t models.StatusTransition) (*models.Order, error)
	ListOrderHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error)
}

// Cache holds serialized catalog listings. Optional.
type Cache interface {
	GetCache(ctx context.Context, key string) ([]byte, bool, error)
	SetCache(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteCache(ctx context.Context, keys ...string) error
}

// Locker guards concurrent checkouts of the same order. Optional.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// WebhookDeduper remembers webhook deliveries already processed. Optional.
// ForgetWebhook releases a digest whose processing failed so a replay is applied.
type WebhookDeduper interface {
	MarkWebhookSeen(ctx context.Context, digest string, ttl time.Duration) (bool, error)
	ForgetWebhook(ctx context.Context, digest string) error
}

// CheckoutProvider is the hosted checkout API
type CheckoutProvider interface {
	CreateCheckoutSession(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error)
	Ping(ctx context.Context) (int, error)
	BaseURL() string
}

// LifecyclePublisher emits order lifecycle events; *broker.EventPublisher implements it.
type LifecyclePublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishCheckoutSessionCreated(ctx context.Context, event *models.CheckoutSessionCreatedEvent) error
	PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error
	PublishOrderFailed(ctx context.Context, event *models.OrderFailedEvent) error
}

func orNoop(p LifecyclePublisher) LifecyclePublisher {
	if p == nil {
		return broker.NewEventPublisher(nil)
	}
	return p
}
