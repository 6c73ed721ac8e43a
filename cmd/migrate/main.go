package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"type-royale/internal/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const migrationsDir = "db/migrations"

var rootCmd = &cobra.Command{
	Use:          "migrate",
	Short:        "Manage database schema migrations",
	RunE:         runUp,
	SilenceUsage: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE:  runUp,
}

var downSteps int

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newMigrate()
		if err != nil {
			return err
		}
		defer m.Close()
		if downSteps <= 0 {
			err = m.Down()
		} else {
			err = m.Steps(-downSteps)
		}
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("roll back: %w", err)
		}
		log.Info().Int("steps", downSteps).Msg("database migrations rolled back")
		return nil
	},
}

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an empty up/down migration pair",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if strings.ContainsAny(name, " ") {
			return errors.New("migration name must not contain spaces")
		}
		version := time.Now().UTC().Format("20060102150405")
		base := fmt.Sprintf("%s_%s", version, name)
		upPath := filepath.Join(migrationsDir, base+".up.sql")
		downPath := filepath.Join(migrationsDir, base+".down.sql")

		if err := os.MkdirAll(migrationsDir, 0o755); err != nil {
			return fmt.Errorf("create migrations dir: %w", err)
		}
		if err := writeFile(upPath, "-- up migration\n"); err != nil {
			return fmt.Errorf("create up migration: %w", err)
		}
		if err := writeFile(downPath, "-- down migration\n"); err != nil {
			return fmt.Errorf("create down migration: %w", err)
		}
		log.Info().Str("up", upPath).Str("down", downPath).Msg("migration created")
		return nil
	},
}

func init() {
	downCmd.Flags().IntVar(&downSteps, "steps", 1, "number of migrations to roll back, 0 for all")
	rootCmd.AddCommand(upCmd, downCmd, createCmd)
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Warn().Err(err).Msg("failed to load .env")
	}
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("migrate failed")
		os.Exit(1)
	}
}

func runUp(cmd *cobra.Command, args []string) error {
	m, err := newMigrate()
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("database migration failed: %w", err)
	}
	log.Info().Msg("database migrations applied")
	return nil
}

func newMigrate() (*migrate.Migrate, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	m, err := migrate.New("file://"+migrationsDir, dsn)
	if err != nil {
		return nil, fmt.Errorf("migration setup failed: %w", err)
	}
	return m, nil
}

func writeFile(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("file already exists: %s", path)
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
