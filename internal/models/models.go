package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// Prices travel to the SPA as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Country a kit belongs to
type Country string

const (
	CountryEngland     Country = "England"
	CountrySpain       Country = "Spain"
	CountryGermany     Country = "Germany"
	CountryItaly       Country = "Italy"
	CountryBrazil      Country = "Brazil"
	CountryArgentina   Country = "Argentina"
	CountryFrance      Country = "France"
	CountryPortugal    Country = "Portugal"
	CountryNetherlands Country = "Netherlands"
	CountryBelgium     Country = "Belgium"
	CountryIsrael      Country = "Israel"
)

var countries = map[Country]struct{}{
	CountryEngland: {}, CountrySpain: {}, CountryGermany: {}, CountryItaly: {},
	CountryBrazil: {}, CountryArgentina: {}, CountryFrance: {}, CountryPortugal: {},
	CountryNetherlands: {}, CountryBelgium: {}, CountryIsrael: {},
}

// Valid reports whether c is one of the known countries
func (c Country) Valid() bool {
	_, ok := countries[c]
	return ok
}

// KitType of a shirt
type KitType string

const (
	KitTypeHome  KitType = "Home"
	KitTypeAway  KitType = "Away"
	KitTypeThird KitType = "Third"
)

// Valid reports whether k is one of the known kit types
func (k KitType) Valid() bool {
	switch k {
	case KitTypeHome, KitTypeAway, KitTypeThird:
		return true
	}
	return false
}

// ItemNumber is the public catalog number of an item.
// It decodes from either a JSON number or a numeric string.
type ItemNumber int64

func (n *ItemNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid item number %q", string(data))
	}
	*n = ItemNumber(v)
	return nil
}

// Item represents a kit in the catalog
type Item struct {
	ID          int64           `db:"id" json:"-"`
	ItemNumber  int64           `db:"item_number" json:"itemNumber"`
	Name        string          `db:"name" json:"name"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Description string          `db:"description" json:"description,omitempty"`
	Country     Country         `db:"country" json:"country"`
	KitType     KitType         `db:"kit_type" json:"kitType"`
	Season      string          `db:"season" json:"season"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
}

// ItemFilter narrows a catalog listing; empty fields match everything
type ItemFilter struct {
	Country Country
	KitType KitType
	Season  string
}

// IsZero reports whether the filter matches every item
func (f ItemFilter) IsZero() bool {
	return f.Country == "" && f.KitType == "" && f.Season == ""
}

// User mirrors the identity provider profile of a shopper
type User struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ExternalID string    `db:"external_id" json:"externalId"`
	Email      string    `db:"email" json:"email"`
	Name       string    `db:"name" json:"name,omitempty"`
	IsAdmin    bool      `db:"is_admin" json:"isAdmin"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// Order represents a customer order
type Order struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	OrderNumber      string          `db:"order_number" json:"orderNumber"`
	UserID           uuid.UUID       `db:"user_id" json:"user"`
	Status           OrderStatus     `db:"status" json:"status"`
	Subtotal         decimal.Decimal `db:"subtotal" json:"subtotal"`
	Tax              decimal.Decimal `db:"tax" json:"tax"`
	Total            decimal.Decimal `db:"total" json:"total"`
	PaymentID        string          `db:"payment_id" json:"paymentId,omitempty"`
	PaymentSessionID string          `db:"payment_session_id" json:"paymentSessionId,omitempty"`
	FailureReason    string          `db:"failure_reason" json:"failureReason,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updatedAt"`

	Items []OrderItem `db:"-" json:"items"`
}

// OrderItem is a snapshot of a catalog item taken when the order was placed
type OrderItem struct {
	ID         int64           `db:"id" json:"-"`
	OrderID    uuid.UUID       `db:"order_id" json:"-"`
	ItemNumber int64           `db:"item_number" json:"itemNumber"`
	Name       string          `db:"name" json:"name"`
	Price      decimal.Decimal `db:"price" json:"price"`
	Country    Country         `db:"country" json:"country"`
	KitType    KitType         `db:"kit_type" json:"kitType"`
	Season     string          `db:"season" json:"season"`
	Quantity   int             `db:"quantity" json:"quantity"`
}

// LineTotal is price times quantity
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderStatus is the payment state of an order
type OrderStatus string

// Order statuses
const (
	OrderStatusPending OrderStatus = "PENDING"
	OrderStatusPaid    OrderStatus = "PAID"
	OrderStatusFailed  OrderStatus = "FAILED"
)

// Terminal reports whether no further transition is allowed from s
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusPaid || s == OrderStatusFailed
}

// StatusTransition describes a PENDING -> PAID/FAILED move
type StatusTransition struct {
	Status        OrderStatus
	PaymentID     string
	FailureReason string
}

// OrderStatusHistory is one recorded lifecycle step of an order
type OrderStatusHistory struct {
	ID        int64       `db:"id" json:"-"`
	OrderID   uuid.UUID   `db:"order_id" json:"orderId"`
	EventID   string      `db:"event_id" json:"eventId"`
	EventType string      `db:"event_type" json:"eventType"`
	Status    OrderStatus `db:"status" json:"status"`
	Detail    string      `db:"detail" json:"detail,omitempty"`
	CreatedAt time.Time   `db:"created_at" json:"createdAt"`
}
