package inventory

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/jamespham03/cmpe273-comm-models-lab/internal/event"
	"github.com/jamespham03/cmpe273-comm-models-lab/internal/rabbit"
	"github.com/jamespham03/cmpe273-comm-models-lab/internal/topology"
)

type Handler struct {
	ledger *Ledger
	log    zerolog.Logger
}

func NewHandler(ledger *Ledger, log zerolog.Logger) *Handler {
	return &Handler{ledger: ledger, log: log}
}

// Handle reserves stock for an OrderPlaced event. Both outcomes are
// successful processing: sufficient stock derives InventoryReserved with the
// remaining count, insufficient stock derives InventoryFailed. The queue
// binding already filters to order.placed; anything else is skipped.
func (h *Handler) Handle(ctx context.Context, env event.Envelope) ([]rabbit.Outbound, error) {
	if env.EventType != event.TypeOrderPlaced {
		h.log.Debug().Str("event_type", env.EventType).Msg("skipping event type")
		return nil, nil
	}

	quantity := env.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	remaining, err := h.ledger.Reserve(env.Item, quantity)
	if errors.Is(err, ErrInsufficientStock) {
		h.log.Warn().
			Str("order_id", env.OrderID).
			Str("item", env.Item).
			Int("quantity", quantity).
			Msg("reservation failed")
		failed := event.NewInventoryFailed(env.OrderID, env.UserID, env.Item, quantity, ErrInsufficientStock.Error())
		return []rabbit.Outbound{{
			Exchange:   topology.ExchangeInventory,
			RoutingKey: topology.KeyInventoryFailed,
			Event:      failed,
		}}, nil
	}
	if err != nil {
		return nil, err
	}

	h.log.Info().
		Str("order_id", env.OrderID).
		Str("item", env.Item).
		Int("quantity", quantity).
		Int("remaining", remaining).
		Msg("inventory reserved")
	reserved := event.NewInventoryReserved(env.OrderID, env.UserID, env.Item, quantity, remaining)
	return []rabbit.Outbound{{
		Exchange:   topology.ExchangeInventory,
		RoutingKey: topology.KeyInventoryReserved,
		Event:      reserved,
	}}, nil
}
