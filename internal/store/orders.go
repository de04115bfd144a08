package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kitstore/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// CreateOrder inserts an order together with its item snapshot
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (id, order_number, user_id, status, subtotal, tax, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	row := tx.QueryRowxContext(ctx, query,
		order.ID, order.OrderNumber, order.UserID, order.Status, order.Subtotal, order.Tax, order.Total)
	if err := row.Scan(&order.CreatedAt, &order.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("order number %s: %w", order.OrderNumber, ErrDuplicate)
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := tx.GetContext(ctx, &item.ID, `
			INSERT INTO order_items (order_id, item_number, name, price, country, kit_type, season, quantity)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`,
			item.OrderID, item.ItemNumber, item.Name, item.Price, item.Country, item.KitType, item.Season, item.Quantity)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order and its items
func (s *Store) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id); err != nil {
		return nil, notFound(err, "order", id)
	}

	items, err := s.getOrderItems(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	order.Items = items[id]
	return &order, nil
}

// ListOrdersByUser retrieves a user's orders, newest first
func (s *Store) ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]uuid.UUID, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	items, err := s.getOrderItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (s *Store) getOrderItems(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]models.OrderItem, error) {
	query, args, err := sqlx.In("SELECT * FROM order_items WHERE order_id IN (?) ORDER BY id", orderIDs)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var rows []models.OrderItem
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	byOrder := make(map[uuid.UUID][]models.OrderItem, len(orderIDs))
	for _, r := range rows {
		byOrder[r.OrderID] = append(byOrder[r.OrderID], r)
	}
	return byOrder, nil
}

// SetPaymentSession records the payment session attached to an order
func (s *Store) SetPaymentSession(ctx context.Context, orderID uuid.UUID, sessionID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET payment_session_id = $1, updated_at = NOW() WHERE id = $2",
		sessionID, orderID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	return nil
}

// TransitionOrderStatus moves a PENDING order to a terminal status.
// Orders that already left PENDING are never touched.
func (s *Store) TransitionOrderStatus(ctx context.Context, orderID uuid.UUID, t models.StatusTransition) (*models.Order, error) {
	query := `
		UPDATE orders
		SET status = $1,
		    payment_id = CASE WHEN $2 <> '' THEN $2 ELSE payment_id END,
		    failure_reason = CASE WHEN $3 <> '' THEN $3 ELSE failure_reason END,
		    updated_at = NOW()
		WHERE id = $4 AND status = $5
		RETURNING *`

	var order models.Order
	err := s.db.GetContext(ctx, &order, query,
		t.Status, t.PaymentID, t.FailureReason, orderID, models.OrderStatusPending)
	if err == nil {
		return &order, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	var status models.OrderStatus
	err = s.db.GetContext(ctx, &status, "SELECT status FROM orders WHERE id = $1", orderID)
	if err != nil {
		return nil, notFound(err, "order", orderID)
	}
	return nil, fmt.Errorf("order %s is %s: %w", orderID, status, ErrNotPending)
}

// RecordOrderEvent appends a history entry unless the event was already processed.
// It reports whether the entry was written.
func (s *Store) RecordOrderEvent(ctx context.Context, entry *models.OrderStatusHistory) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		entry.EventID, entry.EventType)
	if err != nil {
		return false, fmt.Errorf("failed to mark event processed: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return false, err
	}

	err = tx.GetContext(ctx, entry, `
		INSERT INTO order_status_history (order_id, event_id, event_type, status, detail)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		entry.OrderID, entry.EventID, entry.EventType, entry.Status, entry.Detail)
	if err != nil {
		return false, fmt.Errorf("failed to insert history: %w", err)
	}

	return true, tx.Commit()
}

// ListOrderHistory retrieves the recorded lifecycle of an order
func (s *Store) ListOrderHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	history := []models.OrderStatusHistory{}
	err := s.db.SelectContext(ctx, &history,
		"SELECT * FROM order_status_history WHERE order_id = $1 ORDER BY created_at, id", orderID)
	return history, err
}
