package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"type-royale/internal/events"
	"type-royale/internal/game"
	"type-royale/internal/store"

	"github.com/rs/zerolog/log"
)

const (
	maxSwapAttempts   = 10
	maxCreateAttempts = 8
	lobbyListLimit    = 50
)

var errStaleCountdown = errors.New("countdown no longer pending")

// update is one attempt at changing a room. A fresh one is built for every
// retry so events from a lost attempt are never published.
type update struct {
	sess   *game.Session
	now    time.Time
	began  bool
	events []events.Event
}

func (u *update) emit(eventType events.Type, playerID string, payload events.Payload) {
	u.events = append(u.events, events.New(eventType, u.sess.ID, playerID, u.sess.Round, u.now, payload))
}

// mutate reads the room, applies any overdue countdown, runs fn and writes the
// result back with a version check. Conflicts are retried against a fresh copy.
func (s *Server) mutate(ctx context.Context, roomID string, fn func(u *update) error) (*update, error) {
	for attempt := 1; attempt <= maxSwapAttempts; attempt++ {
		sess, err := s.store.Get(ctx, roomID)
		if err != nil {
			return nil, err
		}
		prev := sess.Version
		u := &update{sess: sess, now: s.clock.Now().UTC()}
		u.began = sess.CatchUp(u.now)
		if err := fn(u); err != nil {
			return nil, err
		}
		if err := s.store.Swap(ctx, sess, prev); err != nil {
			if errors.Is(err, store.ErrConflict) {
				log.Debug().Str("room_id", roomID).Int("attempt", attempt).Msg("version conflict, retrying")
				continue
			}
			return nil, err
		}
		return u, nil
	}
	return nil, fmt.Errorf("room %s: %w after %d attempts", roomID, store.ErrConflict, maxSwapAttempts)
}

// commit publishes what an accepted update produced.
func (s *Server) commit(ctx context.Context, u *update) {
	if u.began {
		s.cancelCountdown(u.sess.ID)
		u.events = append([]events.Event{
			events.New(events.RaceStarted, u.sess.ID, "", u.sess.Round, u.now, events.Payload{State: string(game.StatePlaying)}),
		}, u.events...)
	}
	for _, event := range u.events {
		if err := s.events.Publish(ctx, event); err != nil {
			log.Warn().Err(err).Str("room_id", event.RoomID).Str("event", string(event.Type)).Msg("event publish failed")
		}
	}
	s.broadcastGameUpdate(u.sess)
}

// loadSession returns the room with any overdue countdown applied. The catch-up
// is written back so the transition is only announced once.
func (s *Server) loadSession(ctx context.Context, roomID string) (*game.Session, error) {
	sess, err := s.store.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !sess.CatchUp(s.clock.Now().UTC()) {
		return sess, nil
	}
	u, err := s.mutate(ctx, roomID, func(u *update) error { return nil })
	if err != nil {
		return nil, err
	}
	s.commit(ctx, u)
	return u.sess, nil
}

type createParams struct {
	PlayerName string
	Password   string
	Visibility game.Visibility
	MaxPlayers int
}

func (s *Server) createSession(ctx context.Context, params createParams) (*game.Session, string, error) {
	name, err := game.ValidateName(params.PlayerName)
	if err != nil {
		return nil, "", err
	}
	if err := game.ValidatePassword(params.Password); err != nil {
		return nil, "", err
	}
	maxPlayers := params.MaxPlayers
	if maxPlayers == 0 {
		maxPlayers = s.cfg.MaxPlayers
	}
	if maxPlayers < 1 || maxPlayers > s.cfg.MaxPlayers {
		return nil, "", fmt.Errorf("%w: max players must be between 1 and %d", game.ErrInvalidInput, s.cfg.MaxPlayers)
	}
	visibility := params.Visibility
	if visibility == "" {
		visibility = game.VisibilityPublic
	}
	if !visibility.Valid() {
		return nil, "", fmt.Errorf("%w: unknown visibility %q", game.ErrInvalidInput, visibility)
	}
	var hash string
	if params.Password != "" {
		if hash, err = s.hasher.Hash(params.Password); err != nil {
			return nil, "", fmt.Errorf("hash room password: %w", err)
		}
	}

	hostID := game.NewPlayerID()
	now := s.clock.Now().UTC()
	opts := game.Options{MaxPlayers: maxPlayers, Visibility: visibility, PasswordHash: hash}
	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		code, err := game.NewRoomCode()
		if err != nil {
			return nil, "", fmt.Errorf("generate room code: %w", err)
		}
		sess := game.NewSession(code, hostID, name, opts, now, s.cfg.SessionTTL())
		err = s.store.Create(ctx, sess)
		if errors.Is(err, store.ErrExists) {
			log.Debug().Str("room_id", code).Int("attempt", attempt).Msg("room code collision")
			continue
		}
		if err != nil {
			return nil, "", err
		}
		log.Info().Str("room_id", code).Str("host", name).Msg("game created")
		s.commit(ctx, &update{sess: sess, now: now, events: []events.Event{
			events.New(events.SessionCreated, code, hostID, 0, now, events.Payload{
				PlayerName: name,
				MaxPlayers: maxPlayers,
				Visibility: string(visibility),
			}),
		}})
		return sess, hostID, nil
	}
	return nil, "", fmt.Errorf("allocate room code: %w after %d attempts", store.ErrExists, maxCreateAttempts)
}

func (s *Server) listSessions(ctx context.Context) ([]game.Summary, error) {
	sessions, err := s.store.List(ctx, store.ListFilter{
		State:      game.StateWaiting,
		Visibility: game.VisibilityPublic,
		Limit:      lobbyListLimit,
	})
	if err != nil {
		return nil, err
	}
	summaries := make([]game.Summary, 0, len(sessions))
	for _, sess := range sessions {
		summaries = append(summaries, sess.Summary())
	}
	return summaries, nil
}

func (s *Server) joinSession(ctx context.Context, roomID, name, password string) (*game.Session, string, error) {
	playerID := game.NewPlayerID()
	u, err := s.mutate(ctx, roomID, func(u *update) error {
		player, err := u.sess.Join(playerID, name, password, s.hasher, u.now)
		if err != nil {
			return err
		}
		u.emit(events.PlayerJoined, playerID, events.Payload{PlayerName: player.Name})
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	log.Info().Str("room_id", roomID).Str("player_id", playerID).Int("players", len(u.sess.Players)).Msg("player joined")
	s.commit(ctx, u)
	return u.sess, playerID, nil
}

func (s *Server) requireHost(sess *game.Session, playerID string) error {
	if !s.cfg.EnforceHost {
		return nil
	}
	return sess.RequireHost(playerID)
}

func (s *Server) startSession(ctx context.Context, roomID, playerID string) (*game.Session, error) {
	countdown := s.cfg.Countdown()
	var round int
	u, err := s.mutate(ctx, roomID, func(u *update) error {
		if err := s.requireHost(u.sess, playerID); err != nil {
			return err
		}
		var err error
		round, err = u.sess.Start(s.snippets.Pick(), u.now, countdown)
		if err != nil {
			return err
		}
		u.emit(events.CountdownStarted, playerID, events.Payload{State: string(game.StateCountdown)})
		if countdown <= 0 {
			u.began = u.sess.BeginRace(round, u.now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("room_id", roomID).Int("round", round).Dur("countdown", countdown).Msg("game starting")
	if !u.began {
		s.scheduleCountdown(roomID, round, countdown)
	}
	s.commit(ctx, u)
	return u.sess, nil
}

type settingsParams struct {
	PlayerID   string
	MaxPlayers *int
	Visibility *game.Visibility
	Password   *string
}

func (s *Server) updateSettings(ctx context.Context, roomID string, params settingsParams) (*game.Session, error) {
	u, err := s.mutate(ctx, roomID, func(u *update) error {
		if err := s.requireHost(u.sess, params.PlayerID); err != nil {
			return err
		}
		if err := u.sess.UpdateSettings(game.SettingsUpdate{
			MaxPlayers: params.MaxPlayers,
			Visibility: params.Visibility,
			Password:   params.Password,
		}, s.cfg.MaxPlayers, s.hasher); err != nil {
			return err
		}
		u.emit(events.SettingsUpdated, params.PlayerID, events.Payload{
			MaxPlayers: u.sess.MaxPlayers,
			Visibility: string(u.sess.Visibility),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.commit(ctx, u)
	return u.sess, nil
}

func (s *Server) updatePlayer(ctx context.Context, roomID, playerID string, change game.PlayerUpdate) (*game.Session, error) {
	u, err := s.mutate(ctx, roomID, func(u *update) error {
		ended, err := u.sess.ApplyPlayerUpdate(playerID, change, s.validate, u.now)
		if err != nil {
			return err
		}
		if change.Surrendered != nil && *change.Surrendered {
			u.emit(events.PlayerSurrendered, playerID, events.Payload{})
		} else {
			player := u.sess.Players[playerID]
			progress, wpm := player.Progress, player.WPM
			u.emit(events.ProgressUpdated, playerID, events.Payload{Progress: &progress, WPM: &wpm})
		}
		if ended {
			u.emit(events.RaceFinished, "", events.Payload{State: string(u.sess.State), WinnerID: u.sess.WinnerID})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if hasEvent(u, events.RaceFinished) {
		log.Info().Str("room_id", roomID).Str("winner_id", u.sess.WinnerID).Msg("race finished")
	}
	s.commit(ctx, u)
	return u.sess, nil
}

func (s *Server) surrender(ctx context.Context, roomID, playerID string) (*game.Session, error) {
	u, err := s.mutate(ctx, roomID, func(u *update) error {
		ended, err := u.sess.Surrender(playerID, u.now)
		if err != nil {
			return err
		}
		u.emit(events.PlayerSurrendered, playerID, events.Payload{})
		if ended {
			u.emit(events.RaceFinished, "", events.Payload{State: string(u.sess.State), WinnerID: u.sess.WinnerID})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.commit(ctx, u)
	return u.sess, nil
}

func (s *Server) voteRematch(ctx context.Context, roomID, playerID string, vote bool) (*game.Session, error) {
	u, err := s.mutate(ctx, roomID, func(u *update) error {
		reset, err := u.sess.VoteRematch(playerID, vote)
		if err != nil {
			return err
		}
		u.emit(events.RematchVoted, playerID, events.Payload{Vote: &vote})
		if reset {
			u.emit(events.SessionReset, "", events.Payload{State: string(game.StateWaiting), Reason: "rematch"})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.commit(ctx, u)
	return u.sess, nil
}

func (s *Server) leaveSession(ctx context.Context, roomID, playerID string) (*game.Session, error) {
	u, err := s.mutate(ctx, roomID, func(u *update) error {
		reset, err := u.sess.Leave(playerID)
		if err != nil {
			return err
		}
		u.emit(events.PlayerLeft, playerID, events.Payload{})
		if reset {
			u.emit(events.SessionReset, "", events.Payload{State: string(game.StateWaiting), Reason: "rematch"})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("room_id", roomID).Str("player_id", playerID).Msg("player left")
	s.commit(ctx, u)
	return u.sess, nil
}

func (s *Server) resetSession(ctx context.Context, roomID, playerID string) (*game.Session, error) {
	u, err := s.mutate(ctx, roomID, func(u *update) error {
		if err := s.requireHost(u.sess, playerID); err != nil {
			return err
		}
		from := u.sess.State
		u.sess.Reset()
		u.began = false
		u.emit(events.SessionReset, playerID, events.Payload{State: string(game.StateWaiting), Reason: "host reset from " + string(from)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cancelCountdown(roomID)
	log.Info().Str("room_id", roomID).Msg("game reset")
	s.commit(ctx, u)
	return u.sess, nil
}

// deleteSession disbands a room. Deleting a room that is already gone succeeds.
func (s *Server) deleteSession(ctx context.Context, roomID, playerID string) error {
	sess, err := s.store.Get(ctx, roomID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.requireHost(sess, playerID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, roomID); err != nil {
		return err
	}
	s.cancelCountdown(roomID)
	now := s.clock.Now().UTC()
	if err := s.events.Publish(ctx, events.New(events.SessionDeleted, roomID, playerID, sess.Round, now, events.Payload{})); err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("event publish failed")
	}
	log.Info().Str("room_id", roomID).Msg("game deleted")
	s.ws.CloseRoom(roomID)
	s.broadcastLobbyUpdate()
	return nil
}

func hasEvent(u *update, eventType events.Type) bool {
	for _, event := range u.events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
