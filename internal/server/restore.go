package server

import (
	"context"

	"type-royale/internal/game"
	"type-royale/internal/store"

	"github.com/rs/zerolog/log"
)

// RestoreCountdowns re-arms timers for rooms that were counting down when a
// previous process stopped. Overdue rooms start their race immediately.
func (s *Server) RestoreCountdowns(ctx context.Context) (int, error) {
	pending, err := s.store.List(ctx, store.ListFilter{State: game.StateCountdown})
	if err != nil {
		return 0, err
	}
	now := s.clock.Now().UTC()
	restored := 0
	for _, sess := range pending {
		if sess.CountdownEndsAt == nil {
			continue
		}
		delay := sess.CountdownEndsAt.Sub(now)
		if delay <= 0 {
			if _, err := s.loadSession(ctx, sess.ID); err != nil {
				log.Warn().Err(err).Str("room_id", sess.ID).Msg("overdue countdown catch-up failed")
			}
			continue
		}
		s.scheduleCountdown(sess.ID, sess.Round, delay)
		restored++
	}
	if restored > 0 {
		log.Info().Int("rooms", restored).Msg("countdowns restored")
	}
	return restored, nil
}
