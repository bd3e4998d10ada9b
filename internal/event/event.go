package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types carried on the bus.
const (
	TypeOrderPlaced       = "OrderPlaced"
	TypeInventoryReserved = "InventoryReserved"
	TypeInventoryFailed   = "InventoryFailed"
)

var (
	ErrMalformed        = errors.New("malformed event")
	ErrMissingEventID   = errors.New("missing event_id")
	ErrMissingOrderID   = errors.New("missing order_id")
	ErrUnknownEventType = errors.New("unknown event_type")
)

// Envelope is the wire schema for every message on the bus. The broker may
// redeliver the same envelope bytes any number of times; EventID equality is
// the sole dedup key, assigned once by the producer and never regenerated on
// retry.
type Envelope struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	OrderID   string    `json:"order_id"`
	Timestamp time.Time `json:"timestamp"`

	// Type-specific payload fields, flat on the wire.
	UserID    string `json:"user_id,omitempty"`
	Item      string `json:"item,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
	Remaining *int   `json:"remaining,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func NewOrderPlaced(orderID, userID, item string, quantity int) Envelope {
	return Envelope{
		EventID:   uuid.NewString(),
		EventType: TypeOrderPlaced,
		OrderID:   orderID,
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		Item:      item,
		Quantity:  quantity,
	}
}

func NewInventoryReserved(orderID, userID, item string, quantity, remaining int) Envelope {
	return Envelope{
		EventID:   uuid.NewString(),
		EventType: TypeInventoryReserved,
		OrderID:   orderID,
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		Item:      item,
		Quantity:  quantity,
		Remaining: &remaining,
	}
}

func NewInventoryFailed(orderID, userID, item string, quantity int, reason string) Envelope {
	return Envelope{
		EventID:   uuid.NewString(),
		EventType: TypeInventoryFailed,
		OrderID:   orderID,
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		Item:      item,
		Quantity:  quantity,
		Reason:    reason,
	}
}

// Validate checks the correlation fields every consumer requires before any
// business logic may run.
func (e Envelope) Validate() error {
	if e.EventID == "" {
		return ErrMissingEventID
	}
	if e.OrderID == "" {
		return ErrMissingOrderID
	}
	switch e.EventType {
	case TypeOrderPlaced, TypeInventoryReserved, TypeInventoryFailed:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEventType, e.EventType)
	}
}

// Decode parses and validates envelope bytes pulled off a queue. Any error
// means the message is malformed and belongs in quarantine, never retried.
func Decode(body []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(body, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := e.Validate(); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return e, nil
}
