package events

import (
	"context"

	"github.com/rs/zerolog"
)

// LogPublisher writes events to a zerolog logger at debug level.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	entry := p.logger.Debug().
		Str("event", string(event.Type)).
		Str("room", event.RoomID).
		Int("round", event.Round)
	if event.PlayerID != "" {
		entry = entry.Str("player", event.PlayerID)
	}
	if event.Payload.State != "" {
		entry = entry.Str("state", event.Payload.State)
	}
	if event.Payload.WinnerID != "" {
		entry = entry.Str("winner", event.Payload.WinnerID)
	}
	entry.Msg("room event")
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
