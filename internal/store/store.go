// Package store is the persistent-store access layer: connection setup,
// schema migration, and the row-locked queries the poller and sender loops
// coordinate through.
package store

import (
	"database/sql"
	"fmt"

	"github.com/ninja-merchant/payments-reconciler/core/config"
	"github.com/ninja-merchant/payments-reconciler/internal/store/models"

	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"go.uber.org/fx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open builds the GORM handle used for schema management, backed by a
// lib/pq-registered *sql.DB wrapped with otelsql for query tracing. Raw,
// locking-sensitive queries run against the *sql.DB directly (see repo.go).
func Open(cfg *config.AppConfig) (*gorm.DB, error) {
	dsn := cfg.DatabaseDSN
	if dsn == "" {
		dsn = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName,
		)
	}

	sqlDB, err := otelsql.Open("postgres", dsn, otelsql.WithDBName(cfg.DBName))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.DatabasePoolMax)
	sqlDB.SetMaxIdleConns(cfg.DatabasePoolMin)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("gorm open: %w", err)
	}
	return gormDB, nil
}

// Migrate ensures the payments schema and every managed table exist.
func Migrate(db *gorm.DB) error {
	if err := db.Exec(`CREATE SCHEMA IF NOT EXISTS payments`).Error; err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).Error; err != nil {
		return fmt.Errorf("create pgcrypto extension: %w", err)
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}

// SQLDB extracts the underlying *sql.DB for the raw-SQL repository.
func SQLDB(db *gorm.DB) (*sql.DB, error) {
	return db.DB()
}

// Module wires the gorm.DB, the raw *sql.DB, and the Repository for fx.
var Module = fx.Module("store",
	fx.Provide(Open),
	fx.Provide(SQLDB),
	fx.Provide(NewRepository),
)
