package events

import (
	"context"
	"encoding/json"
	"fmt"

	"type-royale/internal/db"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// StorePublisher appends events to the events table.
type StorePublisher struct {
	conn *gorm.DB
}

func NewStorePublisher(conn *gorm.DB) *StorePublisher {
	return &StorePublisher{conn: conn}
}

func (p *StorePublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event.Type, err)
	}
	record := db.Event{
		RoomID:    event.RoomID,
		Type:      string(event.Type),
		Round:     event.Round,
		Payload:   datatypes.JSON(data),
		CreatedAt: event.At,
	}
	if event.PlayerID != "" {
		playerID := event.PlayerID
		record.PlayerID = &playerID
	}
	if err := p.conn.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("store %s event: %w", event.Type, err)
	}
	return nil
}

func (p *StorePublisher) Close() error {
	return nil
}
