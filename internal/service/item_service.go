package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"kitstore/internal/models"
	"kitstore/internal/store"
	"kitstore/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const itemListCacheKey = "items:all"

// ItemInput carries catalog fields from the API. Nil fields are left untouched
// on update and are required (except Description) on create.
type ItemInput struct {
	Name        *string          `json:"name"`
	Price       *decimal.Decimal `json:"price"`
	Description *string          `json:"description"`
	Country     *models.Country  `json:"country"`
	KitType     *models.KitType  `json:"kitType"`
	Season      *string          `json:"season"`
}

// ItemService manages the kit catalog
type ItemService struct {
	items    ItemRepository
	cache    Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewItemService creates a catalog service. cache may be nil.
func NewItemService(items ItemRepository, cache Cache, cacheTTL time.Duration) *ItemService {
	return &ItemService{
		items:    items,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   util.GetLogger(),
	}
}

// ListItems returns the catalog ordered by item number. The unfiltered list is served from cache.
func (s *ItemService) ListItems(ctx context.Context, filter models.ItemFilter) ([]models.Item, error) {
	ctx, span := util.StartSpan(ctx, "ItemService.ListItems")
	defer span.End()

	if filter.Country != "" && !filter.Country.Valid() {
		return nil, newError(ErrValidation, "Unknown country %q", filter.Country)
	}
	if filter.KitType != "" && !filter.KitType.Valid() {
		return nil, newError(ErrValidation, "Unknown kit type %q", filter.KitType)
	}

	cacheable := filter.IsZero() && s.cache != nil
	if cacheable {
		if items, ok := s.cachedList(ctx); ok {
			return items, nil
		}
	}

	items, err := s.items.ListItems(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	if cacheable {
		if raw, err := json.Marshal(items); err == nil {
			if err := s.cache.SetCache(ctx, itemListCacheKey, raw, s.cacheTTL); err != nil {
				s.logger.Warn("Failed to cache item list", zap.Error(err))
			}
		}
	}

	return items, nil
}

func (s *ItemService) cachedList(ctx context.Context) ([]models.Item, bool) {
	raw, ok, err := s.cache.GetCache(ctx, itemListCacheKey)
	if err != nil {
		s.logger.Warn("Item cache read failed", zap.Error(err))
		return nil, false
	}
	if !ok {
		util.CatalogCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}

	var items []models.Item
	if err := json.Unmarshal(raw, &items); err != nil {
		s.logger.Warn("Dropping unreadable item cache entry", zap.Error(err))
		return nil, false
	}
	util.CatalogCacheTotal.WithLabelValues("hit").Inc()
	return items, true
}

// GetItem returns one item by its public number
func (s *ItemService) GetItem(ctx context.Context, number int64) (*models.Item, error) {
	item, err := s.items.GetItemByNumber(ctx, number)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(ErrNotFound, "Item not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// CreateItem validates in and inserts it under the next item number
func (s *ItemService) CreateItem(ctx context.Context, in ItemInput) (*models.Item, error) {
	ctx, span := util.StartSpan(ctx, "ItemService.CreateItem")
	defer span.End()

	if in.Name == nil || in.Price == nil || in.Country == nil || in.KitType == nil || in.Season == nil {
		return nil, newError(ErrValidation, "name, price, country, kitType and season are required")
	}

	item := &models.Item{}
	apply(item, in)
	if err := validateItem(item); err != nil {
		return nil, err
	}

	if err := s.items.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	s.invalidate(ctx)
	s.logger.Info("Item created", zap.Int64("item_number", item.ItemNumber), zap.String("name", item.Name))
	return item, nil
}

// UpdateItem applies the non-nil fields of in; the item number never changes
func (s *ItemService) UpdateItem(ctx context.Context, number int64, in ItemInput) (*models.Item, error) {
	ctx, span := util.StartSpan(ctx, "ItemService.UpdateItem")
	defer span.End()

	item, err := s.GetItem(ctx, number)
	if err != nil {
		return nil, err
	}

	apply(item, in)
	if err := validateItem(item); err != nil {
		return nil, err
	}

	if err := s.items.UpdateItem(ctx, item); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, newError(ErrNotFound, "Item not found")
		}
		return nil, fmt.Errorf("failed to update item: %w", err)
	}

	s.invalidate(ctx)
	return item, nil
}

// DeleteItem removes an item. Orders keep their snapshot.
func (s *ItemService) DeleteItem(ctx context.Context, number int64) error {
	err := s.items.DeleteItem(ctx, number)
	if errors.Is(err, store.ErrNotFound) {
		return newError(ErrNotFound, "Item not found")
	}
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}

	s.invalidate(ctx)
	s.logger.Info("Item deleted", zap.Int64("item_number", number))
	return nil
}

func (s *ItemService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteCache(ctx, itemListCacheKey); err != nil {
		s.logger.Warn("Failed to invalidate item cache", zap.Error(err))
	}
}

func apply(item *models.Item, in ItemInput) {
	if in.Name != nil {
		item.Name = strings.TrimSpace(*in.Name)
	}
	if in.Price != nil {
		item.Price = *in.Price
	}
	if in.Description != nil {
		item.Description = *in.Description
	}
	if in.Country != nil {
		item.Country = *in.Country
	}
	if in.KitType != nil {
		item.KitType = *in.KitType
	}
	if in.Season != nil {
		item.Season = strings.TrimSpace(*in.Season)
	}
}

func validateItem(item *models.Item) error {
	switch {
	case item.Name == "":
		return newError(ErrValidation, "name is required")
	case !item.Price.IsPositive():
		return newError(ErrValidation, "price must be greater than 0")
	case !item.Price.Equal(item.Price.Round(2)):
		return newError(ErrValidation, "price must have at most 2 decimal places")
	case !item.Country.Valid():
		return newError(ErrValidation, "Unknown country %q", item.Country)
	case !item.KitType.Valid():
		return newError(ErrValidation, "Unknown kit type %q", item.KitType)
	case item.Season == "":
		return newError(ErrValidation, "season is required")
	}
	return nil
}
