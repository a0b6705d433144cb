package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	_ "github.com/ghuser/eshop-ordering/docs/swagger"
	"github.com/ghuser/eshop-ordering/pkg/app"
	"github.com/ghuser/eshop-ordering/pkg/auth"
	"github.com/ghuser/eshop-ordering/pkg/cache"
	"github.com/ghuser/eshop-ordering/pkg/config"
	"github.com/ghuser/eshop-ordering/pkg/database"
	"github.com/ghuser/eshop-ordering/pkg/httpx"
	"github.com/ghuser/eshop-ordering/pkg/logger"
	"github.com/ghuser/eshop-ordering/pkg/telemetry"
	orderApi "github.com/ghuser/eshop-ordering/services/ordering/application/api"
)

const shutdownGrace = 30 * time.Second

// @title					eShop Ordering API
// @version				1.0
// @description			Order placement with request deduplication and an integration event log.
// @license.name			MIT
// @license.url			https://opensource.org/licenses/MIT
// @host					localhost:8080
// @BasePath				/api
// @schemes				http https
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
		log.Error("api exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, metricsHandler, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("setup otel: %w", err)
	}
	defer otelShutdown(context.Background()) //nolint:errcheck

	// Sentry is optional.
	if err := telemetry.SetupSentry(cfg); err != nil {
		log.Warn("failed to setup sentry, continuing without crash reporting", "error", err)
	}
	defer telemetry.SentryFlush()

	pool, err := database.NewPool(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	log.Info("database pool connected")

	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close() //nolint:errcheck
	log.Info("redis connected")

	a := &app.Application{
		Config: cfg,
		Db:     pool,
		Logger: log,
		Redis:  redisClient,
		SessionStore: auth.NewSessionStore(
			redisClient.Client(),
			[]byte(cfg.SessionAuthKey),
			[]byte(cfg.SessionEncryptionKey),
			cfg.Environment == config.EnvProduction,
		),
	}

	handler, err := newRouter(a, metricsHandler)
	if err != nil {
		return err
	}
	srv := httpx.NewServer(cfg.HTTPAddr, handler)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func newRouter(a *app.Application, metricsHandler http.Handler) (http.Handler, error) {
	cfg := a.Config
	r := httpx.NewRouter(
		httpx.ServerConfig{
			ServiceName:        cfg.ServiceName,
			IsDevelopment:      cfg.Environment == config.EnvDevelopment,
			CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		},
		logger.Middleware(a.Logger),
		logger.Recovery(a.Logger),
		telemetry.SentryMiddleware(),
		otelhttp.NewMiddleware(cfg.ServiceName),
	)

	// The worker owns the event bus; the api only writes to the event log.
	r.Get("/health", httpx.HealthHandler(httpx.HealthChecks{
		Database: a.Db,
		Redis:    a.Redis,
	}))
	r.Get("/metrics", metricsHandler.ServeHTTP)
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	var routeErr error
	r.Route("/api", func(r chi.Router) {
		routeErr = registerRoutes(r, a)
	})
	if routeErr != nil {
		return nil, fmt.Errorf("register routes: %w", routeErr)
	}
	return r, nil
}

// registerRoutes mounts every service's routes under /api.
func registerRoutes(r chi.Router, a *app.Application) error {
	if err := orderApi.OrderRoutes(r, a); err != nil {
		return fmt.Errorf("ordering: %w", err)
	}
	return nil
}
