package db

import (
	"errors"
	"fmt"
	"time"

	"type-royale/internal/config"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to Postgres using cfg.DatabaseURL and applies the pool limits.
func Open(cfg config.Config) (*gorm.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	gormLog := logger.Default.LogMode(logger.Warn)
	if !cfg.Development() {
		gormLog = logger.Default.LogMode(logger.Error)
	}
	conn, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetimeSeconds) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.DBConnMaxIdleTimeSeconds) * time.Second)
	return conn, nil
}

// Migrate runs GORM auto-migrations for the race tables. cmd/migrate applies the
// SQL files under db/migrations for deployed databases.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("db connection is nil")
	}
	if err := conn.AutoMigrate(
		&RaceSession{},
		&Event{},
	); err != nil {
		return err
	}
	log.Info().Msg("database migration complete")
	return nil
}
