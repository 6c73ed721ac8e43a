// Package events carries room lifecycle notifications to the log, the event
// table and NATS.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	SessionCreated    Type = "session_created"
	PlayerJoined      Type = "player_joined"
	SettingsUpdated   Type = "settings_updated"
	CountdownStarted  Type = "countdown_started"
	RaceStarted       Type = "race_started"
	ProgressUpdated   Type = "progress_updated"
	PlayerSurrendered Type = "player_surrendered"
	RaceFinished      Type = "race_finished"
	RematchVoted      Type = "rematch_voted"
	SessionReset      Type = "session_reset"
	PlayerLeft        Type = "player_left"
	SessionDeleted    Type = "session_deleted"
	SessionsExpired   Type = "sessions_expired"
)

type Payload struct {
	PlayerName string   `json:"player,omitempty"`
	State      string   `json:"state,omitempty"`
	WinnerID   string   `json:"winner_id,omitempty"`
	Progress   *float64 `json:"progress,omitempty"`
	WPM        *float64 `json:"wpm,omitempty"`
	Vote       *bool    `json:"vote,omitempty"`
	MaxPlayers int      `json:"max_players,omitempty"`
	Visibility string   `json:"visibility,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Count      int      `json:"count,omitempty"`
}

type Event struct {
	ID       string    `json:"eventId"`
	Type     Type      `json:"eventType"`
	RoomID   string    `json:"roomId"`
	PlayerID string    `json:"playerId,omitempty"`
	Round    int       `json:"round"`
	At       time.Time `json:"timestamp"`
	Payload  Payload   `json:"payload"`
}

func New(eventType Type, roomID, playerID string, round int, at time.Time, payload Payload) Event {
	return Event{
		ID:       uuid.NewString(),
		Type:     eventType,
		RoomID:   roomID,
		PlayerID: playerID,
		Round:    round,
		At:       at.UTC(),
		Payload:  payload,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Multi fans an event out to every publisher and reports all failures.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
