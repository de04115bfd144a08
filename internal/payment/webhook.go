package payment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidPayload means the webhook body is not a JSON object
var ErrInvalidPayload = errors.New("invalid webhook payload")

// EventKind classifies a webhook event type string
type EventKind int

const (
	KindUnknown EventKind = iota
	KindPaymentSucceeded
	KindPaymentFailed
)

func (k EventKind) String() string {
	switch k {
	case KindPaymentSucceeded:
		return "payment_succeeded"
	case KindPaymentFailed:
		return "payment_failed"
	default:
		return "unknown"
	}
}

// The provider has shipped several spellings of the same event over time.
var eventAliases = map[string]EventKind{
	"payment/succeeded": KindPaymentSucceeded,
	"payment.succeeded": KindPaymentSucceeded,
	"Charge":            KindPaymentSucceeded,
	"payment/failed":    KindPaymentFailed,
	"payment.failed":    KindPaymentFailed,
}

// KindOf maps a raw event type to its kind
func KindOf(eventType string) EventKind {
	return eventAliases[eventType]
}

// DefaultFailureReason is used when a failure event carries no reason
const DefaultFailureReason = "Payment processing failed"

// Event is the normalized view of a webhook delivery
type Event struct {
	Type      string
	Kind      EventKind
	OrderID   string
	PaymentID string
	Reason    string
}

// object is one level of a webhook document. Values stay raw so a field of an
// unexpected type only blanks that field instead of rejecting the delivery.
type object map[string]json.RawMessage

// obj returns the nested object under key, or nil when absent or not an object
func (o object) obj(key string) object {
	raw, ok := o[key]
	if !ok {
		return nil
	}
	var nested object
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil
	}
	return nested
}

// str returns a string or scalar field as text; objects, arrays and null read as ""
func (o object) str(key string) string {
	raw := bytes.TrimSpace(o[key])
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case '{', '[', 'n':
		return ""
	default:
		// numbers and booleans keep their literal form
		return string(raw)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ParseEvent decodes a webhook body. Fields are looked up at the top level first
// and then under data; a missing payment id is synthesized from the clock.
// Only a body that is not a JSON object is rejected.
func ParseEvent(body []byte) (*Event, error) {
	var root object
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if root == nil {
		return nil, fmt.Errorf("%w: body is not an object", ErrInvalidPayload)
	}
	data := root.obj("data")

	ev := &Event{Type: firstNonEmpty(root.str("type"), root.str("event"))}
	ev.Kind = KindOf(ev.Type)

	ev.OrderID = firstNonEmpty(
		root.obj("metadata").str("orderId"),
		data.obj("metadata").str("orderId"),
	)

	ev.PaymentID = firstNonEmpty(root.str("payment_id"), data.str("id"))
	if ev.PaymentID == "" {
		ev.PaymentID = fmt.Sprintf("webhook_%d", time.Now().UnixMilli())
	}

	ev.Reason = firstNonEmpty(root.str("reason"), data.str("reason"), DefaultFailureReason)

	return ev, nil
}
