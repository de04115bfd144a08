package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"kitstore/internal/models"
	"kitstore/internal/payment"
	"kitstore/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory stand-in for *store.Store
type memStore struct {
	mu      sync.Mutex
	items   map[int64]models.Item
	users   map[uuid.UUID]models.User
	orders  map[uuid.UUID]models.Order
	history map[uuid.UUID][]models.OrderStatusHistory

	failTransition error
}

func newMemStore() *memStore {
	return &memStore{
		items:   map[int64]models.Item{},
		users:   map[uuid.UUID]models.User{},
		orders:  map[uuid.UUID]models.Order{},
		history: map[uuid.UUID][]models.OrderStatusHistory{},
	}
}

func (m *memStore) addItem(number int64, name, price string) models.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := models.Item{
		ID:         number,
		ItemNumber: number,
		Name:       name,
		Price:      decimal.RequireFromString(price),
		Country:    models.CountryEngland,
		KitType:    models.KitTypeHome,
		Season:     "2024/25",
	}
	m.items[number] = item
	return item
}

func (m *memStore) addUser(email string) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := models.User{ID: uuid.New(), ExternalID: "auth0|" + email, Email: email}
	m.users[u.ID] = u
	return &u
}

func (m *memStore) addOrder(userID uuid.UUID, status models.OrderStatus, total string) *models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := models.Order{
		ID:          uuid.New(),
		OrderNumber: fmt.Sprintf("ORD-2024-%05d", len(m.orders)+10000),
		UserID:      userID,
		Status:      status,
		Total:       decimal.RequireFromString(total),
	}
	m.orders[o.ID] = o
	return &o
}

func (m *memStore) order(id uuid.UUID) models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

func (m *memStore) CreateItem(ctx context.Context, item *models.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var max int64
	for n := range m.items {
		if n > max {
			max = n
		}
	}
	item.ItemNumber = max + 1
	item.ID = item.ItemNumber
	m.items[item.ItemNumber] = *item
	return nil
}

func (m *memStore) GetItemByNumber(ctx context.Context, number int64) (*models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[number]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (m *memStore) ListItems(ctx context.Context, filter models.ItemFilter) ([]models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := []models.Item{}
	for _, it := range m.items {
		if filter.Country != "" && it.Country != filter.Country {
			continue
		}
		if filter.KitType != "" && it.KitType != filter.KitType {
			continue
		}
		if filter.Season != "" && it.Season != filter.Season {
			continue
		}
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ItemNumber < items[j].ItemNumber })
	return items, nil
}

func (m *memStore) GetItemsByNumbers(ctx context.Context, numbers []int64) ([]models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []models.Item
	for _, n := range numbers {
		if it, ok := m.items[n]; ok {
			items = append(items, it)
		}
	}
	return items, nil
}

func (m *memStore) UpdateItem(ctx context.Context, item *models.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ItemNumber]; !ok {
		return store.ErrNotFound
	}
	m.items[item.ItemNumber] = *item
	return nil
}

func (m *memStore) DeleteItem(ctx context.Context, number int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[number]; !ok {
		return fmt.Errorf("item %d: %w", number, store.ErrNotFound)
	}
	delete(m.items, number)
	return nil
}

func (m *memStore) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ExternalID == user.ExternalID {
			return store.ErrDuplicate
		}
	}
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	m.users[user.ID] = *user
	return nil
}

func (m *memStore) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ExternalID == externalID {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) CreateOrder(ctx context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.OrderNumber == order.OrderNumber {
			return fmt.Errorf("order number %s: %w", order.OrderNumber, store.ErrDuplicate)
		}
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	m.orders[order.ID] = *order
	return nil
}

func (m *memStore) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &o, nil
}

func (m *memStore) ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	orders := []models.Order{}
	for _, o := range m.orders {
		if o.UserID == userID {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

func (m *memStore) SetPaymentSession(ctx context.Context, orderID uuid.UUID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return store.ErrNotFound
	}
	o.PaymentSessionID = sessionID
	m.orders[orderID] = o
	return nil
}

func (m *memStore) TransitionOrderStatus(ctx context.Context, orderID uuid.UUID, t models.StatusTransition) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTransition != nil {
		return nil, m.failTransition
	}
	o, ok := m.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, store.ErrNotFound)
	}
	if o.Status != models.OrderStatusPending {
		return nil, fmt.Errorf("order %s is %s: %w", orderID, o.Status, store.ErrNotPending)
	}
	o.Status = t.Status
	if t.PaymentID != "" {
		o.PaymentID = t.PaymentID
	}
	if t.FailureReason != "" {
		o.FailureReason = t.FailureReason
	}
	o.UpdatedAt = time.Now()
	m.orders[orderID] = o
	return &o, nil
}

func (m *memStore) ListOrderHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.OrderStatusHistory{}, m.history[orderID]...), nil
}

// memRedis fakes the cache, lock and de-dup operations of the Redis client
type memRedis struct {
	mu      sync.Mutex
	cache   map[string][]byte
	locks   map[string]string
	seen    map[string]bool
	failAll error

	cacheReads int
}

func newMemRedis() *memRedis {
	return &memRedis{cache: map[string][]byte{}, locks: map[string]string{}, seen: map[string]bool{}}
}

func (r *memRedis) GetCache(ctx context.Context, key string) ([]byte, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cacheReads++
	if r.failAll != nil {
		return nil, false, r.failAll
	}
	v, ok := r.cache[key]
	return v, ok, nil
}

func (r *memRedis) SetCache(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[key] = value
	return r.failAll
}

func (r *memRedis) DeleteCache(ctx context.Context, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		delete(r.cache, k)
	}
	return r.failAll
}

func (r *memRedis) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll != nil {
		return "", false, r.failAll
	}
	if _, held := r.locks[key]; held {
		return "", false, nil
	}
	token := uuid.NewString()
	r.locks[key] = token
	return token, true, nil
}

func (r *memRedis) ReleaseLock(ctx context.Context, key, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locks[key] == token {
		delete(r.locks, key)
	}
	return nil
}

func (r *memRedis) MarkWebhookSeen(ctx context.Context, digest string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll != nil {
		return false, r.failAll
	}
	if r.seen[digest] {
		return false, nil
	}
	r.seen[digest] = true
	return true, nil
}

func (r *memRedis) ForgetWebhook(ctx context.Context, digest string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.seen, digest)
	return r.failAll
}

// fakeProvider records checkout requests
type fakeProvider struct {
	session *payment.CheckoutSession
	err     error
	got     []payment.CheckoutRequest
}

func (p *fakeProvider) CreateCheckoutSession(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	p.got = append(p.got, req)
	if p.err != nil {
		return nil, p.err
	}
	return p.session, nil
}

func (p *fakeProvider) Ping(ctx context.Context) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	return 200, nil
}

func (p *fakeProvider) BaseURL() string { return "https://sandbox.example.com" }

// recordingPublisher captures lifecycle events
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (p *recordingPublisher) record(t string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, t)
	return p.err
}

func (p *recordingPublisher) PublishOrderCreated(ctx context.Context, e *models.OrderCreatedEvent) error {
	return p.record(e.EventType)
}

func (p *recordingPublisher) PublishCheckoutSessionCreated(ctx context.Context, e *models.CheckoutSessionCreatedEvent) error {
	return p.record(e.EventType)
}

func (p *recordingPublisher) PublishOrderPaid(ctx context.Context, e *models.OrderPaidEvent) error {
	return p.record(e.EventType)
}

func (p *recordingPublisher) PublishOrderFailed(ctx context.Context, e *models.OrderFailedEvent) error {
	return p.record(e.EventType)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.events...)
}

var errBoom = errors.New("boom")
