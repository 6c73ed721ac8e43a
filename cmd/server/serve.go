package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"type-royale/internal/password"
	"type-royale/internal/server"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	clock := clockwork.NewRealClock()
	d, err := buildDeps(cfg, clock)
	if err != nil {
		return err
	}
	defer d.Close()

	srv := server.New(cfg, server.Options{
		Store:    d.store,
		Clock:    clock,
		Snippets: d.snippets,
		Hasher:   password.NewDefault(),
		Events:   d.events,
	})
	defer srv.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := srv.RestoreCountdowns(ctx); err != nil {
		log.Warn().Err(err).Msg("restore countdowns failed")
	}
	go srv.Run(ctx)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("env", cfg.Env).Msg("type-royale server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
