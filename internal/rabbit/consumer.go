package rabbit

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jamespham03/cmpe273-comm-models-lab/internal/event"
	"github.com/jamespham03/cmpe273-comm-models-lab/internal/idempotency"
)

// attemptsHeader carries how many times a delivery has been retried after a
// transient failure. Plain nack-requeue cannot mutate headers, so the runtime
// republishes with the counter bumped and acks the original instead.
const attemptsHeader = "x-delivery-attempts"

// Outbound is a derived event a handler wants published once its input is
// successfully processed.
type Outbound struct {
	Exchange   string
	RoutingKey string
	Event      event.Envelope
}

// Handler applies business logic to one envelope. A domain failure (e.g.
// insufficient stock) is a successful processing outcome expressed as an
// Outbound; returning an error means a transient fault and asks the runtime
// to retry. Handlers never touch acknowledgements.
type Handler func(ctx context.Context, env event.Envelope) ([]Outbound, error)

// EventPublisher is what the runtime needs to emit derived events and retry
// republishes. *Publisher satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, env event.Envelope) error
	PublishRaw(ctx context.Context, exchange, routingKey string, body []byte, headers amqp.Table) error
}

// Channel is the slice of amqp091.Channel the consumer runtime uses.
type Channel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Cancel(consumer string, noWait bool) error
}

type ConsumerConfig struct {
	Queue string
	Name  string // consumer tag
	// Prefetch bounds unacknowledged deliveries per worker; it is the
	// backpressure control.
	Prefetch int
	// Workers in the pool draining the delivery stream. All share one
	// Tracker.
	Workers int
	// MaxAttempts bounds deliveries of one message before it is
	// quarantined instead of retried, closing the poison-loop gap.
	MaxAttempts int
}

func (c ConsumerConfig) withDefaults() ConsumerConfig {
	if c.Prefetch <= 0 {
		c.Prefetch = 10
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	return c
}

// Consumer pulls deliveries from one queue and drives each through the
// ack/nack/requeue state machine. Acknowledgement is the sole authority that
// removes a message from the queue; a crash before ack leaves it for
// redelivery.
type Consumer struct {
	ch      Channel
	pub     EventPublisher
	tracker idempotency.Tracker
	handler Handler
	cfg     ConsumerConfig
	log     zerolog.Logger
}

func NewConsumer(ch Channel, pub EventPublisher, tracker idempotency.Tracker, handler Handler, cfg ConsumerConfig, log zerolog.Logger) *Consumer {
	cfg = cfg.withDefaults()
	return &Consumer{
		ch:      ch,
		pub:     pub,
		tracker: tracker,
		handler: handler,
		cfg:     cfg,
		log:     log.With().Str("queue", cfg.Queue).Logger(),
	}
}

// Run consumes until ctx is cancelled. Cancellation stops new deliveries but
// lets in-flight handlers finish and ack or reject before returning, so a
// shutdown never converts an in-flight success into a spurious redelivery.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("rabbit: set qos: %w", err)
	}
	deliveries, err := c.ch.Consume(c.cfg.Queue, c.cfg.Name, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbit: consume %s: %w", c.cfg.Queue, err)
	}
	c.log.Info().Int("prefetch", c.cfg.Prefetch).Int("workers", c.cfg.Workers).Msg("consuming")

	// The watcher stops intake on cancellation and exits with Run either
	// way, even when the broker closed the stream first.
	consumeCtx, stopConsuming := context.WithCancel(ctx)
	defer stopConsuming()
	go func() {
		<-consumeCtx.Done()
		_ = c.ch.Cancel(c.cfg.Name, false)
	}()

	// Draining runs detached from the run context: cancellation stops new
	// deliveries, but an in-flight delivery must still complete its handler
	// work and derived publishes and be acked, or a finished side effect
	// would come back as a redelivery and be applied twice.
	drainCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	for i := 0; i < c.cfg.Workers; i++ {
		g.Go(func() error {
			for d := range deliveries {
				c.handle(drainCtx, d)
			}
			return nil
		})
	}
	err = g.Wait()
	c.log.Info().Int("processed", c.tracker.Count()).Msg("consumer stopped")
	return err
}

// handle runs one delivery through:
// Received -> {Malformed, Duplicate, Processing} -> {Acked, Rejected-NoRequeue, Rejected-Requeue}.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	env, err := event.Decode(d.Body)
	if err != nil {
		// Malformed is terminal: reject without requeue and let the
		// broker route the bytes to the quarantine queue.
		c.log.Error().Err(err).Msg("malformed message, quarantining")
		_ = d.Nack(false, false)
		return
	}

	log := c.log.With().Str("event_id", env.EventID).Str("order_id", env.OrderID).Logger()
	log.Info().Str("event_type", env.EventType).Msg("received")

	if !c.tracker.Claim(env.EventID) {
		if c.tracker.IsProcessed(env.EventID) {
			// Duplicate: the no-op path that makes redelivery safe.
			// No handler call, no derived publish.
			log.Info().Msg("duplicate event, acking without processing")
			_ = d.Ack(false)
			return
		}
		// Another worker holds this event mid-flight; hand the copy
		// back for a later delivery.
		_ = d.Nack(false, true)
		return
	}

	outs, err := c.handler(ctx, env)
	if err != nil {
		c.tracker.Release(env.EventID)
		log.Warn().Err(err).Msg("handler failed")
		c.retry(ctx, d, log)
		return
	}
	for _, out := range outs {
		if err := c.pub.Publish(ctx, out.Exchange, out.RoutingKey, out.Event); err != nil {
			c.tracker.Release(env.EventID)
			log.Warn().Err(err).Msg("derived publish failed")
			c.retry(ctx, d, log)
			return
		}
	}

	// Marking happens only after effects and derived publishes succeeded;
	// a crash in between redelivers and dedup catches it.
	c.tracker.MarkProcessed(env.EventID)
	_ = d.Ack(false)
}

// retry decides between another attempt and quarantine for a transient
// failure. Below the bound it republishes the identical body with the attempt
// header bumped and acks the original; at the bound it rejects without
// requeue so the broker dead-letters the message.
func (c *Consumer) retry(ctx context.Context, d amqp.Delivery, log zerolog.Logger) {
	attempt := deliveryAttempts(d.Headers) + 1
	if attempt >= c.cfg.MaxAttempts {
		log.Error().Int("attempts", attempt).Msg("retry budget exhausted, quarantining")
		_ = d.Nack(false, false)
		return
	}

	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[attemptsHeader] = int64(attempt)

	// Route through the default exchange straight back onto our queue.
	if err := c.pub.PublishRaw(ctx, "", c.cfg.Queue, d.Body, headers); err != nil {
		// Could not republish (broker hiccup): fall back to a plain
		// requeue so the delivery is never lost.
		log.Warn().Err(err).Msg("retry republish failed, requeueing")
		_ = d.Nack(false, true)
		return
	}
	log.Info().Int("attempt", attempt).Msg("requeued for retry")
	_ = d.Ack(false)
}

func deliveryAttempts(headers amqp.Table) int {
	v, ok := headers[attemptsHeader]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int64:
		return int(n)
	case int32:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
