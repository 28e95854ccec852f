package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ninja-merchant/payments-reconciler/core/config"
	"github.com/ninja-merchant/payments-reconciler/core/entities"
	"github.com/ninja-merchant/payments-reconciler/core/logger"
	"github.com/ninja-merchant/payments-reconciler/internal/adminhttp/docs"
	"github.com/ninja-merchant/payments-reconciler/internal/store"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// InitAndRun verifies the database is reachable, runs schema migration,
// fills in the swagger host/scheme, and records a STARTUP/SHUTDOWN row in
// service_runtime_log so an operator can see process restarts in the same
// table the loops heartbeat into.
func InitAndRun() fx.Option {
	return fx.Invoke(func(lc fx.Lifecycle, cfg *config.AppConfig, repo *store.Repository, log logger.Logger, db *gorm.DB) {
		host, _ := os.Hostname()
		if host == "" {
			host = "unknown"
		}

		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				config.SentryConfig()

				sqlDB, err := db.DB()
				if err != nil {
					log.Error(ctx, "📊 Failed to get database instance", map[string]interface{}{"error": err.Error()})
					return fmt.Errorf("failed to get database instance: %w", err)
				}
				if err := sqlDB.Ping(); err != nil {
					log.Error(ctx, "📊 Database ping failed", map[string]interface{}{"error": err.Error()})
					return fmt.Errorf("database not accessible: %w", err)
				}
				log.Info(ctx, "📊 Database connection verified")

				log.Info(ctx, "Running migrations...")
				if err := store.Migrate(db); err != nil {
					log.Error(ctx, "migration failed", map[string]interface{}{"error": err.Error()})
					return fmt.Errorf("migrate: %w", err)
				}
				log.Info(ctx, "Migrations done")

				if cfg.Environment == entities.Environment.Development {
					docs.SwaggerInfo.Host = "localhost:" + cfg.Port
					docs.SwaggerInfo.Schemes = []string{"http", "https"}
				} else {
					docs.SwaggerInfo.Schemes = []string{"https"}
				}
				docs.SwaggerInfo.BasePath = "/"

				payload, _ := json.Marshal(map[string]interface{}{"environment": cfg.Environment})
				if err := repo.LogServiceRuntimeEventNoTx(ctx, host, host, os.Getpid(), "STARTUP", payload); err != nil {
					log.Error(ctx, "failed to record startup runtime log", map[string]interface{}{"error": err.Error()})
				}

				return nil
			},
			OnStop: func(ctx context.Context) error {
				log.Info(ctx, "🛑 Shutting down gracefully")
				payload, _ := json.Marshal(map[string]interface{}{"environment": cfg.Environment})
				if err := repo.LogServiceRuntimeEventNoTx(ctx, host, host, os.Getpid(), "SHUTDOWN", payload); err != nil {
					log.Error(ctx, "failed to record shutdown runtime log", map[string]interface{}{"error": err.Error()})
				}
				return nil
			},
		})
	})
}
