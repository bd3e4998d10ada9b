package topology

import (
	"errors"
	"fmt"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
)

type declaredQueue struct {
	name string
	args amqp.Table
}

type recordingChannel struct {
	ops       []string
	exchanges []string
	queues    []declaredQueue
	failOn    string
	failErr   error
}

func (c *recordingChannel) ExchangeDeclare(name, kind string, durable, _, _, _ bool, _ amqp.Table) error {
	if c.failOn == "exchange:"+name {
		return c.failErr
	}
	c.ops = append(c.ops, "exchange:"+name)
	c.exchanges = append(c.exchanges, fmt.Sprintf("%s/%s/durable=%v", name, kind, durable))
	return nil
}

func (c *recordingChannel) QueueDeclare(name string, _, _, _, _ bool, args amqp.Table) (amqp.Queue, error) {
	if c.failOn == "queue:"+name {
		return amqp.Queue{}, c.failErr
	}
	c.ops = append(c.ops, "queue:"+name)
	c.queues = append(c.queues, declaredQueue{name: name, args: args})
	return amqp.Queue{Name: name}, nil
}

func (c *recordingChannel) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	c.ops = append(c.ops, fmt.Sprintf("bind:%s->%s/%s", exchange, name, key))
	return nil
}

func (c *recordingChannel) indexOf(op string) int {
	for i, o := range c.ops {
		if o == op {
			return i
		}
	}
	return -1
}

func TestDeclareOrderPipeline(t *testing.T) {
	ch := &recordingChannel{}
	require.NoError(t, Declare(ch, OrderPipeline()))

	// Exchanges come before any queue.
	require.Equal(t, []string{
		"orders/topic/durable=true",
		"inventory/topic/durable=true",
		"dlx/topic/durable=true",
	}, ch.exchanges)
	for _, q := range ch.queues {
		for _, ex := range []string{"orders", "inventory", "dlx"} {
			require.Less(t, ch.indexOf("exchange:"+ex), ch.indexOf("queue:"+q.name))
		}
	}

	// Each quarantine queue exists and is bound before its primary queue is
	// declared, so a rejected message always has a destination.
	require.Less(t, ch.indexOf("queue:order-events-dlq"), ch.indexOf("queue:order-events"))
	require.Less(t, ch.indexOf("bind:dlx->order-events-dlq/order-events-dlq"), ch.indexOf("queue:order-events"))
	require.Less(t, ch.indexOf("queue:inventory-events-dlq"), ch.indexOf("queue:inventory-events"))

	// Primary queues carry the dead-letter arguments.
	for _, q := range ch.queues {
		switch q.name {
		case QueueOrderEvents:
			require.Equal(t, ExchangeDLX, q.args["x-dead-letter-exchange"])
			require.Equal(t, QueueOrderEventsDLQ, q.args["x-dead-letter-routing-key"])
		case QueueInventoryEvents:
			require.Equal(t, ExchangeDLX, q.args["x-dead-letter-exchange"])
			require.Equal(t, QueueInventoryEventsDLQ, q.args["x-dead-letter-routing-key"])
		}
	}

	// Primary bindings per the pipeline contract.
	require.NotEqual(t, -1, ch.indexOf("bind:orders->order-events/order.placed"))
	require.NotEqual(t, -1, ch.indexOf("bind:inventory->inventory-events/inventory.reserved"))
}

func TestDeclareIsRepeatable(t *testing.T) {
	ch := &recordingChannel{}
	require.NoError(t, Declare(ch, OrderPipeline()))
	first := len(ch.ops)
	require.NoError(t, Declare(ch, OrderPipeline()))
	require.Equal(t, first*2, len(ch.ops), "re-declaration issues the same idempotent calls")
}

func TestDeclareSurfacesBrokerMismatch(t *testing.T) {
	brokerErr := errors.New("PRECONDITION_FAILED - inequivalent arg 'type'")
	ch := &recordingChannel{failOn: "exchange:inventory", failErr: brokerErr}

	err := Declare(ch, OrderPipeline())
	require.Error(t, err)

	var topoErr *Error
	require.ErrorAs(t, err, &topoErr)
	require.Equal(t, "exchange", topoErr.Kind)
	require.Equal(t, "inventory", topoErr.Name)
	require.ErrorIs(t, err, brokerErr)
}

func TestDeclareRejectsInconsistentDescriptor(t *testing.T) {
	tCases := []struct {
		name string
		d    Descriptor
	}{
		{
			name: "binding_to_unknown_exchange",
			d: Descriptor{
				Exchanges: []Exchange{{Name: "orders", Kind: "topic", Durable: true}},
				Queues: []Queue{{
					Name:     "order-events",
					Durable:  true,
					Bindings: []Binding{{Exchange: "missing", RoutingKey: "k"}},
				}},
			},
		},
		{
			name: "dead_letter_to_unknown_exchange",
			d: Descriptor{
				Exchanges: []Exchange{{Name: "orders", Kind: "topic", Durable: true}},
				Queues: []Queue{{
					Name:       "order-events",
					Durable:    true,
					DeadLetter: &DeadLetter{Exchange: "missing", RoutingKey: "q-dlq", Queue: "q-dlq"},
				}},
			},
		},
		{
			name: "unsupported_exchange_kind",
			d: Descriptor{
				Exchanges: []Exchange{{Name: "orders", Kind: "headers", Durable: true}},
			},
		},
	}

	for _, tCase := range tCases {
		t.Run(tCase.name, func(t *testing.T) {
			ch := &recordingChannel{}
			err := Declare(ch, tCase.d)
			require.Error(t, err)
			var topoErr *Error
			require.ErrorAs(t, err, &topoErr)
			require.Equal(t, "descriptor", topoErr.Kind)
			require.Empty(t, ch.ops, "nothing is declared against an inconsistent descriptor")
		})
	}
}
