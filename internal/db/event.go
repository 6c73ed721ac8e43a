package db

import (
	"time"

	"gorm.io/datatypes"
)

type Event struct {
	ID        uint           `gorm:"primaryKey"`
	RoomID    string         `gorm:"size:12;index;not null"`
	PlayerID  *string        `gorm:"size:64;index"`
	Type      string         `gorm:"size:64;not null"`
	Round     int            `gorm:"not null;default:0"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null"`
}
