package server

import (
	"context"
	"errors"
	"time"

	"type-royale/internal/events"
	"type-royale/internal/game"

	"github.com/rs/zerolog/log"
)

const timerWriteTimeout = 5 * time.Second

func (s *Server) scheduleCountdown(roomID string, round int, delay time.Duration) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if existing, ok := s.timers[roomID]; ok {
		existing.Stop()
	}
	s.timers[roomID] = s.clock.AfterFunc(delay, func() {
		s.fireCountdown(roomID, round)
	})
}

func (s *Server) cancelCountdown(roomID string) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if timer, ok := s.timers[roomID]; ok {
		timer.Stop()
		delete(s.timers, roomID)
	}
}

func (s *Server) pendingCountdowns() int {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	return len(s.timers)
}

// fireCountdown moves the room into the race unless it was reset, restarted or
// caught up by another request in the meantime.
func (s *Server) fireCountdown(roomID string, round int) {
	ctx, cancel := context.WithTimeout(context.Background(), timerWriteTimeout)
	defer cancel()
	u, err := s.mutate(ctx, roomID, func(u *update) error {
		if u.began {
			return nil
		}
		if u.sess.State != game.StateCountdown || u.sess.Round != round {
			return errStaleCountdown
		}
		u.began = u.sess.BeginRace(round, u.now)
		return nil
	})
	if err != nil {
		if !errors.Is(err, errStaleCountdown) && !errors.Is(err, game.ErrNotFound) {
			log.Error().Err(err).Str("room_id", roomID).Int("round", round).Msg("countdown transition failed")
		}
		s.forgetCountdown(roomID, round)
		return
	}
	log.Info().Str("room_id", roomID).Int("round", round).Msg("race started")
	s.commit(ctx, u)
}

// forgetCountdown drops the timer entry unless a newer round replaced it.
func (s *Server) forgetCountdown(roomID string, round int) {
	ctx, cancel := context.WithTimeout(context.Background(), timerWriteTimeout)
	defer cancel()
	sess, err := s.store.Get(ctx, roomID)
	if err == nil && sess.State == game.StateCountdown && sess.Round != round {
		return
	}
	s.cancelCountdown(roomID)
}

// runJanitor sweeps expired rooms until ctx is done.
func (s *Server) runJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.sweep(ctx)
		}
	}
}

func (s *Server) sweep(ctx context.Context) int {
	removed, err := s.store.Sweep(ctx)
	if err != nil {
		log.Error().Err(err).Msg("session sweep failed")
		return 0
	}
	if removed == 0 {
		return 0
	}
	log.Info().Int("removed", removed).Msg("expired sessions swept")
	now := s.clock.Now().UTC()
	if err := s.events.Publish(ctx, events.New(events.SessionsExpired, "", "", 0, now, events.Payload{Count: removed})); err != nil {
		log.Warn().Err(err).Msg("event publish failed")
	}
	s.broadcastLobbyUpdate()
	return removed
}
