// Package rabbit is the AMQP layer: connection bootstrap, persistent
// publishing and the consumer runtime.
package rabbit

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Dial connects to the broker, retrying up to attempts times. The broker is
// routinely the last thing up in a compose stack, so services wait for it
// rather than crash-loop.
func Dial(url string, attempts int, wait time.Duration, log zerolog.Logger) (*amqp.Connection, error) {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 1; i <= attempts; i++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", i).Int("max", attempts).Msg("rabbit dial failed, retrying")
		time.Sleep(wait)
	}
	return nil, fmt.Errorf("rabbit: dial after %d attempts: %w", attempts, lastErr)
}
