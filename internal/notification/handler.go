// Package notification dispatches user notifications for reserved orders.
package notification

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/jamespham03/cmpe273-comm-models-lab/internal/event"
	"github.com/jamespham03/cmpe273-comm-models-lab/internal/rabbit"
)

// Notifier is the delivery capability (email, SMS, push). It is separated
// from the handler so a real provider's failure flows into the consumer
// runtime's retry decision instead of being swallowed here.
type Notifier interface {
	Notify(ctx context.Context, userID, orderID, item string, quantity int) error
}

// LogNotifier writes the notification to the log, standing in for a real
// provider.
type LogNotifier struct {
	log  zerolog.Logger
	sent atomic.Int64
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, userID, orderID, item string, quantity int) error {
	n.log.Info().
		Str("order_id", orderID).
		Str("user_id", userID).
		Msgf("notification sent: dear %s, your order #%s for %dx %s has been confirmed and inventory has been reserved",
			userID, orderID, quantity, item)
	n.sent.Add(1)
	return nil
}

// Sent reports how many notifications went out, for observability.
func (n *LogNotifier) Sent() int64 { return n.sent.Load() }

type Handler struct {
	notifier Notifier
	log      zerolog.Logger
}

func NewHandler(notifier Notifier, log zerolog.Logger) *Handler {
	return &Handler{notifier: notifier, log: log}
}

// Handle notifies the user for InventoryReserved events and skips everything
// else. It derives no further events.
func (h *Handler) Handle(ctx context.Context, env event.Envelope) ([]rabbit.Outbound, error) {
	if env.EventType != event.TypeInventoryReserved {
		h.log.Debug().Str("event_type", env.EventType).Msg("skipping event type")
		return nil, nil
	}
	if err := h.notifier.Notify(ctx, env.UserID, env.OrderID, env.Item, env.Quantity); err != nil {
		return nil, fmt.Errorf("notify order %s: %w", env.OrderID, err)
	}
	return nil, nil
}
