package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/ghuser/eshop-ordering/migrations/ordering"
	"github.com/ghuser/eshop-ordering/pkg/config"
	"github.com/ghuser/eshop-ordering/pkg/logger"
	"github.com/ghuser/eshop-ordering/pkg/migrator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg)
	applied, err := migrator.RunMigrations(context.Background(), cfg.DatabaseURL, ordering.FS)
	if err != nil {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied", "count", len(applied), "versions", applied)
}
