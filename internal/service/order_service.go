package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"kitstore/internal/models"
	"kitstore/internal/store"
	"kitstore/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxOrderNumberAttempts = 5

// TaxRate applied to every order subtotal
var TaxRate = decimal.RequireFromString("0.07")

// OrderService handles order business logic
type OrderService struct {
	items          ItemRepository
	orders         OrderRepository
	eventPublisher LifecyclePublisher
	logger         *zap.Logger

	newOrderNumber func() string
}

// NewOrderService creates a new order service
func NewOrderService(items ItemRepository, orders OrderRepository, eventPublisher LifecyclePublisher) *OrderService {
	return &OrderService{
		items:          items,
		orders:         orders,
		eventPublisher: orNoop(eventPublisher),
		logger:         util.GetLogger(),
		newOrderNumber: generateOrderNumber,
	}
}

// CreateOrderRequest is the cart submitted by the SPA
type CreateOrderRequest struct {
	Items []OrderItemRequest `json:"items"`
}

// OrderItemRequest is one cart line
type OrderItemRequest struct {
	ItemNumber models.ItemNumber `json:"itemNumber"`
	Quantity   int               `json:"quantity"`
}

// CreateOrder snapshots the referenced items and stores a PENDING order
func (s *OrderService) CreateOrder(ctx context.Context, userID uuid.UUID, req *CreateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if req == nil || len(req.Items) == 0 {
		return nil, newError(ErrValidation, "Order must include at least one item")
	}
	for _, line := range req.Items {
		if line.Quantity < 1 {
			return nil, newError(ErrValidation, "Quantity for item %d must be at least 1", line.ItemNumber)
		}
	}

	catalog, err := s.lookupItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		UserID: userID,
		Status: models.OrderStatusPending,
		Items:  make([]models.OrderItem, 0, len(req.Items)),
	}
	for _, line := range req.Items {
		item := catalog[int64(line.ItemNumber)]
		order.Items = append(order.Items, models.OrderItem{
			ItemNumber: item.ItemNumber,
			Name:       item.Name,
			Price:      item.Price,
			Country:    item.Country,
			KitType:    item.KitType,
			Season:     item.Season,
			Quantity:   line.Quantity,
		})
	}
	order.Subtotal, order.Tax, order.Total = CalculateTotals(order.Items)

	if err := s.insertWithNumber(ctx, order); err != nil {
		util.SpanError(span, err)
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("total", order.Total.StringFixed(2)))

	s.publishCreated(ctx, order)
	return order, nil
}

// lookupItems loads every distinct item in the cart; a missing one is a validation error
func (s *OrderService) lookupItems(ctx context.Context, lines []OrderItemRequest) (map[int64]models.Item, error) {
	seen := make(map[int64]struct{}, len(lines))
	numbers := make([]int64, 0, len(lines))
	for _, line := range lines {
		n := int64(line.ItemNumber)
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		numbers = append(numbers, n)
	}

	found, err := s.items.GetItemsByNumbers(ctx, numbers)
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}

	catalog := make(map[int64]models.Item, len(found))
	for _, item := range found {
		catalog[item.ItemNumber] = item
	}
	for _, n := range numbers {
		if _, ok := catalog[n]; !ok {
			return nil, newError(ErrValidation, "One or more items not found")
		}
	}
	return catalog, nil
}

func (s *OrderService) insertWithNumber(ctx context.Context, order *models.Order) error {
	for attempt := 0; attempt < maxOrderNumberAttempts; attempt++ {
		order.OrderNumber = s.newOrderNumber()
		err := s.orders.CreateOrder(ctx, order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return fmt.Errorf("failed to create order: %w", err)
		}
		s.logger.Debug("Order number collision, retrying", zap.String("order_number", order.OrderNumber))
	}
	return fmt.Errorf("failed to allocate order number after %d attempts", maxOrderNumberAttempts)
}

func (s *OrderService) publishCreated(ctx context.Context, order *models.Order) {
	items := make([]models.OrderItemData, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, models.OrderItemData{
			ItemNumber: it.ItemNumber,
			Quantity:   it.Quantity,
			UnitPrice:  it.Price,
		})
	}

	event := &models.OrderCreatedEvent{
		BaseEvent:   models.NewBaseEvent(models.EventTypeOrderCreated),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Total:       order.Total,
		Items:       items,
	}
	if err := s.eventPublisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}
}

// GetOrder returns an order owned by userID
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(ErrNotFound, "Order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order.UserID != userID {
		return nil, newError(ErrForbidden, "Not authorized to access this order")
	}
	return order, nil
}

// ListOrders returns the caller's orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	orders, err := s.orders.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// GetOrderHistory returns the recorded lifecycle of an order owned by userID
func (s *OrderService) GetOrderHistory(ctx context.Context, userID, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	if _, err := s.GetOrder(ctx, userID, orderID); err != nil {
		return nil, err
	}
	history, err := s.orders.ListOrderHistory(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order history: %w", err)
	}
	return history, nil
}

// CalculateTotals returns subtotal, tax (rounded to cents) and total
func CalculateTotals(items []models.OrderItem) (subtotal, tax, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.LineTotal())
	}
	tax = subtotal.Mul(TaxRate).Round(2)
	total = subtotal.Add(tax)
	return subtotal, tax, total
}

func generateOrderNumber() string {
	return fmt.Sprintf("ORD-%d-%d", time.Now().Year(), 10000+rand.Intn(90000))
}
