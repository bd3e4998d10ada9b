package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jamespham03/cmpe273-comm-models-lab/internal/config"
	"github.com/jamespham03/cmpe273-comm-models-lab/internal/order"
	"github.com/jamespham03/cmpe273-comm-models-lab/internal/rabbit"
	"github.com/jamespham03/cmpe273-comm-models-lab/internal/topology"
	"github.com/jamespham03/cmpe273-comm-models-lab/pkg/logger"
)

const shutdownGrace = 10 * time.Second

func main() {
	_ = godotenv.Load()

	log := logger.New(os.Getenv("APP_ENV"), "order-service")
	cfg, err := config.LoadOrderService()
	must(log, err)
	log.Info().Str("addr", cfg.HTTPAddr).Str("db", cfg.DBPath).Str("rabbit", cfg.AMQP.URL).Msg("starting order service")

	repo, err := order.NewRepository(cfg.DBPath)
	must(log, err)
	defer repo.Close()

	pub, err := rabbit.NewPublisher(cfg.AMQP.URL, topology.OrderPipeline(), cfg.AMQP.DialAttempts, cfg.AMQP.DialWait, log)
	must(log, err)
	defer pub.Close()

	srv := order.NewServer(repo, pub, cfg.CacheTTL, log)
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Router()}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Msg("http listening")
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Warn().Msg("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	must(log, g.Wait())
	log.Info().Msg("order service stopped")
}

func must(log zerolog.Logger, err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}
