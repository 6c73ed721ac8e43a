package main

import (
	"os"

	"type-royale/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "type-royale",
	Short:        "Multiplayer typing race server",
	Long:         `HTTP + WebSocket API for typing races. Commands: serve (default), sweep.`,
	RunE:         runServe,
	SilenceUsage: true,
}

var addrFlag string

func init() {
	rootCmd.PersistentFlags().StringVar(&addrFlag, "addr", "", "listen address, overrides PORT")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
}

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Warn().Err(err).Msg("failed to load .env")
	}
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func loadConfig() config.Config {
	cfg := config.Load()
	if addrFlag != "" {
		cfg.Addr = addrFlag
	}
	setupLogging(cfg)
	return cfg
}

func setupLogging(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Development() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
