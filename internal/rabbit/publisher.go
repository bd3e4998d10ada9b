package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/jamespham03/cmpe273-comm-models-lab/internal/event"
	"github.com/jamespham03/cmpe273-comm-models-lab/internal/topology"
)

const (
	reconnectAttempts = 3
	reconnectWait     = 2 * time.Second
)

// PublishError surfaces after the bounded reconnect-and-resend has been
// exhausted; nothing was dropped silently.
type PublishError struct {
	Exchange   string
	RoutingKey string
	EventID    string
	Err        error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %q to %q (event %s): %v", e.RoutingKey, e.Exchange, e.EventID, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Publisher sends envelopes to an exchange with persistence flags set. It
// owns its connection; on a broken channel it redials, re-declares the
// topology and resends before giving up.
type Publisher struct {
	mu   sync.Mutex
	url  string
	topo topology.Descriptor
	conn *amqp.Connection
	ch   *amqp.Channel
	log  zerolog.Logger
}

func NewPublisher(url string, topo topology.Descriptor, dialAttempts int, dialWait time.Duration, log zerolog.Logger) (*Publisher, error) {
	p := &Publisher{url: url, topo: topo, log: log}
	if err := p.connect(dialAttempts, dialWait); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connect(attempts int, wait time.Duration) error {
	conn, err := Dial(p.url, attempts, wait, p.log)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbit: open channel: %w", err)
	}
	if err := topology.Declare(ch, p.topo); err != nil {
		_ = conn.Close()
		return err
	}
	p.conn = conn
	p.ch = ch
	return nil
}

// Publish marshals the envelope and sends it persistent. One successful call
// puts exactly one message on the exchange; duplicate publishes of the same
// event_id are legal and handled by downstream dedup, not here.
func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, env event.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return &PublishError{Exchange: exchange, RoutingKey: routingKey, EventID: env.EventID, Err: err}
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.EventID,
		Timestamp:    env.Timestamp,
		Body:         body,
	}
	if err := p.send(ctx, exchange, routingKey, pub); err != nil {
		return &PublishError{Exchange: exchange, RoutingKey: routingKey, EventID: env.EventID, Err: err}
	}
	return nil
}

// PublishRaw sends pre-marshalled bytes with the given headers, used by the
// consumer runtime to requeue a delivery with its attempt counter bumped.
// The body is forwarded untouched so the envelope's event_id survives.
func (p *Publisher) PublishRaw(ctx context.Context, exchange, routingKey string, body []byte, headers amqp.Table) error {
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      headers,
		Body:         body,
	}
	if err := p.send(ctx, exchange, routingKey, pub); err != nil {
		return &PublishError{Exchange: exchange, RoutingKey: routingKey, Err: err}
	}
	return nil
}

func (p *Publisher) send(ctx context.Context, exchange, routingKey string, pub amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.PublishWithContext(ctx, exchange, routingKey, false, false, pub)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}

	p.log.Warn().Err(err).Str("exchange", exchange).Msg("publish failed, reconnecting")
	p.closeLocked()
	if rerr := p.connect(reconnectAttempts, reconnectWait); rerr != nil {
		return rerr
	}
	return p.ch.PublishWithContext(ctx, exchange, routingKey, false, false, pub)
}

func (p *Publisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
}
