// Package topology declares the broker wiring the pipeline depends on:
// exchanges, queues, bindings and dead-letter routing, in dependency order.
package topology

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Names fixed by the pipeline contract. The HTTP front door and any external
// tooling address the broker by these.
const (
	ExchangeOrders    = "orders"
	ExchangeInventory = "inventory"
	ExchangeDLX       = "dlx"

	QueueOrderEvents        = "order-events"
	QueueOrderEventsDLQ     = "order-events-dlq"
	QueueInventoryEvents    = "inventory-events"
	QueueInventoryEventsDLQ = "inventory-events-dlq"

	KeyOrderPlaced       = "order.placed"
	KeyInventoryReserved = "inventory.reserved"
	KeyInventoryFailed   = "inventory.failed"
)

type Exchange struct {
	Name    string
	Kind    string // "topic" or "fanout"
	Durable bool
}

type Binding struct {
	Exchange   string
	RoutingKey string
}

// DeadLetter names the quarantine target for a primary queue. Declare creates
// the quarantine queue and its binding before the primary queue exists, so a
// rejected message always has somewhere to land.
type DeadLetter struct {
	Exchange   string
	RoutingKey string
	Queue      string
}

type Queue struct {
	Name       string
	Durable    bool
	Bindings   []Binding
	DeadLetter *DeadLetter
}

type Descriptor struct {
	Exchanges []Exchange
	Queues    []Queue
}

// Error is a fatal topology fault: either the descriptor is inconsistent or
// the broker rejected a declaration (typically a parameter mismatch against
// existing state, which amqp surfaces as PRECONDITION_FAILED).
type Error struct {
	Kind string // "exchange", "queue", "binding", "descriptor"
	Name string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("topology: declare %s %q: %v", e.Kind, e.Name, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Channel is the slice of amqp091.Channel that declaration needs.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// OrderPipeline is the wiring for the order event pipeline: OrderPlaced fans
// from the orders exchange into order-events, the inventory results fan from
// the inventory exchange into inventory-events, and each primary queue
// dead-letters into its own quarantine queue on the dlx exchange.
func OrderPipeline() Descriptor {
	return Descriptor{
		Exchanges: []Exchange{
			{Name: ExchangeOrders, Kind: "topic", Durable: true},
			{Name: ExchangeInventory, Kind: "topic", Durable: true},
			{Name: ExchangeDLX, Kind: "topic", Durable: true},
		},
		Queues: []Queue{
			{
				Name:    QueueOrderEvents,
				Durable: true,
				Bindings: []Binding{
					{Exchange: ExchangeOrders, RoutingKey: KeyOrderPlaced},
				},
				DeadLetter: &DeadLetter{
					Exchange:   ExchangeDLX,
					RoutingKey: QueueOrderEventsDLQ,
					Queue:      QueueOrderEventsDLQ,
				},
			},
			{
				Name:    QueueInventoryEvents,
				Durable: true,
				Bindings: []Binding{
					{Exchange: ExchangeInventory, RoutingKey: KeyInventoryReserved},
				},
				DeadLetter: &DeadLetter{
					Exchange:   ExchangeDLX,
					RoutingKey: QueueInventoryEventsDLQ,
					Queue:      QueueInventoryEventsDLQ,
				},
			},
		},
	}
}

// Declare creates the descriptor's broker state: exchanges first, then for
// each queue its quarantine queue and binding, then the queue itself with its
// dead-letter arguments, then its bindings. Re-running with an unchanged
// descriptor is a no-op; a mismatched re-declaration fails with *Error and
// the process must not start.
func Declare(ch Channel, d Descriptor) error {
	if err := d.validate(); err != nil {
		return err
	}

	for _, ex := range d.Exchanges {
		if err := ch.ExchangeDeclare(ex.Name, ex.Kind, ex.Durable, false, false, false, nil); err != nil {
			return &Error{Kind: "exchange", Name: ex.Name, Err: err}
		}
	}

	for _, q := range d.Queues {
		var args amqp.Table
		if dl := q.DeadLetter; dl != nil {
			if _, err := ch.QueueDeclare(dl.Queue, true, false, false, false, nil); err != nil {
				return &Error{Kind: "queue", Name: dl.Queue, Err: err}
			}
			if err := ch.QueueBind(dl.Queue, dl.RoutingKey, dl.Exchange, false, nil); err != nil {
				return &Error{Kind: "binding", Name: dl.Queue, Err: err}
			}
			args = amqp.Table{
				"x-dead-letter-exchange":    dl.Exchange,
				"x-dead-letter-routing-key": dl.RoutingKey,
			}
		}

		if _, err := ch.QueueDeclare(q.Name, q.Durable, false, false, false, args); err != nil {
			return &Error{Kind: "queue", Name: q.Name, Err: err}
		}
		for _, b := range q.Bindings {
			if err := ch.QueueBind(q.Name, b.RoutingKey, b.Exchange, false, nil); err != nil {
				return &Error{Kind: "binding", Name: q.Name, Err: err}
			}
		}
	}
	return nil
}

func (d Descriptor) validate() error {
	known := make(map[string]bool, len(d.Exchanges))
	for _, ex := range d.Exchanges {
		if ex.Kind != "topic" && ex.Kind != "fanout" {
			return &Error{Kind: "descriptor", Name: ex.Name, Err: fmt.Errorf("unsupported exchange kind %q", ex.Kind)}
		}
		known[ex.Name] = true
	}
	for _, q := range d.Queues {
		for _, b := range q.Bindings {
			if !known[b.Exchange] {
				return &Error{Kind: "descriptor", Name: q.Name, Err: fmt.Errorf("binding references undeclared exchange %q", b.Exchange)}
			}
		}
		if dl := q.DeadLetter; dl != nil && !known[dl.Exchange] {
			return &Error{Kind: "descriptor", Name: q.Name, Err: fmt.Errorf("dead-letter references undeclared exchange %q", dl.Exchange)}
		}
	}
	return nil
}
