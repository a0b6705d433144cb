package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ghuser/eshop-ordering/pkg/app"
	"github.com/ghuser/eshop-ordering/pkg/cache"
	"github.com/ghuser/eshop-ordering/pkg/config"
	"github.com/ghuser/eshop-ordering/pkg/database"
	"github.com/ghuser/eshop-ordering/pkg/eventlog"
	"github.com/ghuser/eshop-ordering/pkg/events"
	"github.com/ghuser/eshop-ordering/pkg/logger"
	"github.com/ghuser/eshop-ordering/pkg/telemetry"
	"github.com/ghuser/eshop-ordering/services/ordering/application/subscribers"
	orderEvents "github.com/ghuser/eshop-ordering/services/ordering/domain/events"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := config.ValidateForProduction(cfg); err != nil {
		slog.Error("production config validation failed", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg)
	if err := run(cfg, log); err != nil {
		log.Error("worker exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, _, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("setup otel: %w", err)
	}
	defer otelShutdown(context.Background()) //nolint:errcheck

	if err := telemetry.SetupSentry(cfg); err != nil {
		log.Warn("failed to setup sentry, continuing without crash reporting", "error", err)
	}
	defer telemetry.SentryFlush()

	pool, err := database.NewPool(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	newBus := events.NewEventBus
	if cfg.EventsUseForwarder {
		newBus = events.NewEventBusWithForwarder
	}
	bus, err := newBus(cfg, log)
	if err != nil {
		return fmt.Errorf("setup event bus: %w", err)
	}
	// Close waits for in-flight handlers before returning.
	defer bus.Close() //nolint:errcheck

	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close() //nolint:errcheck

	a := &app.Application{
		Config:   cfg,
		Db:       pool,
		Logger:   log,
		EventBus: bus,
		Redis:    redisClient,
	}

	// Subscribing creates the topic tables the relay publishes into, so it
	// has to happen before the relay starts.
	if err := registerSubscribers(ctx, a); err != nil {
		return fmt.Errorf("register subscribers: %w", err)
	}
	if cfg.EventsUseForwarder {
		if err := bus.StartForwarder(ctx); err != nil {
			return fmt.Errorf("start forwarder: %w", err)
		}
	}

	relay := eventlog.NewRelay(pool.DB(), bus, eventlog.RelayConfig{
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
		MaxAttempts:  cfg.OutboxMaxAttempts,
	}, log)

	log.Info("worker started", "forwarder", cfg.EventsUseForwarder)
	if err := relay.Run(ctx); err != nil {
		return fmt.Errorf("event log relay: %w", err)
	}
	log.Info("worker stopped")
	return nil
}

// registerSubscribers wires the integration event handlers this service consumes.
func registerSubscribers(ctx context.Context, a *app.Application) error {
	baskets := cache.NewBasketCache(a.Redis, a.Config.BasketKeyPrefix)
	errCh, err := a.EventBus.Subscribe(ctx, orderEvents.TopicOrderStarted, subscribers.HandleOrderStarted(baskets, a.Logger))
	if err != nil {
		return err
	}

	go func() {
		for err := range errCh {
			a.Logger.ErrorContext(ctx, "subscriber error", "topic", orderEvents.TopicOrderStarted, "error", err)
		}
	}()

	a.Logger.Info("event subscribers registered", "topics", []string{orderEvents.TopicOrderStarted})
	return nil
}
