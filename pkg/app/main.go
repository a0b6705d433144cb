package app

import (
	"github.com/gorilla/sessions"

	"github.com/ghuser/eshop-ordering/pkg/cache"
	"github.com/ghuser/eshop-ordering/pkg/config"
	"github.com/ghuser/eshop-ordering/pkg/database"
	"github.com/ghuser/eshop-ordering/pkg/events"
	"github.com/ghuser/eshop-ordering/pkg/logger"
)

// Application holds shared infrastructure dependencies for all services.
// Pass to every service's route registration during server initialization.
//
// Logging: app.Logger is backed by a trace-aware handler. Use slog's context methods
// and trace_id, span_id, and request_id are injected automatically:
//
//	app.Logger.InfoContext(ctx, "order placed", "order_id", id)
//	app.Logger.ErrorContext(ctx, "failed to save", "error", err)
//
// Use app.Logger.Info/Error (no context) only for startup and shutdown messages.
type Application struct {
	Config       *config.Config
	Db           *database.Database
	Logger       logger.Logger
	EventBus     *events.EventBus // nil in api process; events leave through the integration event log
	Redis        *cache.RedisClient
	SessionStore sessions.Store // Redis-backed session store; nil in worker process
}
