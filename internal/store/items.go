package store

import (
	"context"
	"fmt"
	"strings"

	"kitstore/internal/models"

	"github.com/jmoiron/sqlx"
)

const maxItemNumberAttempts = 3

// CreateItem inserts an item and assigns it the next free item number
func (s *Store) CreateItem(ctx context.Context, item *models.Item) error {
	query := `
		INSERT INTO items (item_number, name, price, description, country, kit_type, season)
		VALUES ((SELECT COALESCE(MAX(item_number), 0) + 1 FROM items), $1, $2, $3, $4, $5, $6)
		RETURNING id, item_number, created_at, updated_at`

	var err error
	for attempt := 0; attempt < maxItemNumberAttempts; attempt++ {
		err = s.db.GetContext(ctx, item, query,
			item.Name, item.Price, item.Description, item.Country, item.KitType, item.Season)
		if err == nil {
			return nil
		}
		// Two concurrent inserts computed the same MAX()+1.
		if !isUniqueViolation(err) {
			return err
		}
	}
	return fmt.Errorf("assign item number: %w", ErrDuplicate)
}

// GetItemByNumber retrieves an item by its public number
func (s *Store) GetItemByNumber(ctx context.Context, number int64) (*models.Item, error) {
	var item models.Item
	err := s.db.GetContext(ctx, &item, "SELECT * FROM items WHERE item_number = $1", number)
	if err != nil {
		return nil, notFound(err, "item", number)
	}
	return &item, nil
}

// ListItems retrieves catalog items ordered by item number
func (s *Store) ListItems(ctx context.Context, filter models.ItemFilter) ([]models.Item, error) {
	query, args := buildItemListQuery(filter)

	items := []models.Item{}
	err := s.db.SelectContext(ctx, &items, query, args...)
	return items, err
}

func buildItemListQuery(filter models.ItemFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.Country != "" {
		args = append(args, filter.Country)
		conds = append(conds, fmt.Sprintf("country = $%d", len(args)))
	}
	if filter.KitType != "" {
		args = append(args, filter.KitType)
		conds = append(conds, fmt.Sprintf("kit_type = $%d", len(args)))
	}
	if filter.Season != "" {
		args = append(args, filter.Season)
		conds = append(conds, fmt.Sprintf("season = $%d", len(args)))
	}

	query := "SELECT * FROM items"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	return query + " ORDER BY item_number", args
}

// GetItemsByNumbers retrieves every item whose number is in numbers
func (s *Store) GetItemsByNumbers(ctx context.Context, numbers []int64) ([]models.Item, error) {
	if len(numbers) == 0 {
		return []models.Item{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM items WHERE item_number IN (?)", numbers)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var items []models.Item
	err = s.db.SelectContext(ctx, &items, query, args...)
	return items, err
}

// UpdateItem overwrites the mutable fields of an item; item_number never changes
func (s *Store) UpdateItem(ctx context.Context, item *models.Item) error {
	query := `
		UPDATE items
		SET name = $1, price = $2, description = $3, country = $4, kit_type = $5, season = $6, updated_at = NOW()
		WHERE item_number = $7
		RETURNING id, created_at, updated_at`

	err := s.db.GetContext(ctx, item, query,
		item.Name, item.Price, item.Description, item.Country, item.KitType, item.Season, item.ItemNumber)
	return notFound(err, "item", item.ItemNumber)
}

// DeleteItem removes an item from the catalog
func (s *Store) DeleteItem(ctx context.Context, number int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM items WHERE item_number = $1", number)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("item %d: %w", number, ErrNotFound)
	}
	return nil
}
