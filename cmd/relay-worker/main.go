package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/sqs-webhook-relay/internal/config"
	"github.com/example/sqs-webhook-relay/internal/logger"
	"github.com/example/sqs-webhook-relay/internal/relay"
	"github.com/example/sqs-webhook-relay/internal/sqs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fail("config load", err)
	}

	baseLogger, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		fail("logger init", err)
	}
	log := baseLogger.With().Str("service", "relay-worker").Logger()

	client, err := sqs.NewClient(ctx, cfg.Queue.Region)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create sqs client")
	}

	consumer, err := sqs.New(cfg.Queue, client, log.With().Str("component", "sqs-consumer").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create sqs consumer")
	}

	forwarder, err := relay.NewForwarder(cfg.Target, log.With().Str("component", "forwarder").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create forwarder")
	}

	engine, err := relay.NewEngine(relay.Config{
		PollBackoff:       time.Duration(cfg.Queue.PollBackoffSeconds) * time.Second,
		WorkerConcurrency: cfg.Target.WorkerConcurrency,
	}, relay.Dependencies{
		Receiver:     consumer,
		Sender:       forwarder,
		Acknowledger: consumer,
		Logger:       log,
		Now:          time.Now,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise relay engine")
	}

	errCh := make(chan error, 1)
	go func() {
		if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
		close(errCh)
	}()

	log.Info().
		Str("queue_url", cfg.Queue.URL).
		Str("target_url", cfg.Target.URL).
		Msg("relay worker started")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("relay engine terminated with error")
		}
	}
}

func fail(stage string, err error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger.Fatal().Err(err).Str("stage", stage).Msg("relay worker init failed")
}
