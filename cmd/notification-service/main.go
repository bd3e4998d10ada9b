package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/jamespham03/cmpe273-comm-models-lab/internal/config"
	"github.com/jamespham03/cmpe273-comm-models-lab/internal/idempotency"
	"github.com/jamespham03/cmpe273-comm-models-lab/internal/notification"
	"github.com/jamespham03/cmpe273-comm-models-lab/internal/rabbit"
	"github.com/jamespham03/cmpe273-comm-models-lab/internal/topology"
	"github.com/jamespham03/cmpe273-comm-models-lab/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	log := logger.New(os.Getenv("APP_ENV"), "notification-service")
	cfg, err := config.LoadNotificationService()
	must(log, err)
	log.Info().Str("rabbit", cfg.AMQP.URL).Int("prefetch", cfg.Prefetch).Msg("starting notification service")

	conn, err := rabbit.Dial(cfg.AMQP.URL, cfg.AMQP.DialAttempts, cfg.AMQP.DialWait, log)
	must(log, err)
	defer conn.Close()
	ch, err := conn.Channel()
	must(log, err)

	must(log, topology.Declare(ch, topology.OrderPipeline()))

	pub, err := rabbit.NewPublisher(cfg.AMQP.URL, topology.OrderPipeline(), cfg.AMQP.DialAttempts, cfg.AMQP.DialWait, log)
	must(log, err)
	defer pub.Close()

	notifier := notification.NewLogNotifier(log)
	handler := notification.NewHandler(notifier, log)
	consumer := rabbit.NewConsumer(ch, pub, idempotency.NewMemory(), handler.Handle, rabbit.ConsumerConfig{
		Queue:       topology.QueueInventoryEvents,
		Name:        "notification-service",
		Prefetch:    cfg.Prefetch,
		Workers:     cfg.Workers,
		MaxAttempts: cfg.MaxAttempts,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	must(log, consumer.Run(ctx))
	log.Info().Int64("notifications_sent", notifier.Sent()).Msg("notification service stopped")
}

func must(log zerolog.Logger, err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}
