package main

import (
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired sessions once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		d, err := buildDeps(cfg, clockwork.NewRealClock())
		if err != nil {
			return err
		}
		defer d.Close()
		defer d.events.Close()

		removed, err := d.store.Sweep(cmd.Context())
		if err != nil {
			return err
		}
		log.Info().Int("removed", removed).Msg("sweep complete")
		return nil
	},
}
