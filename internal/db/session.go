package db

import (
	"time"

	"gorm.io/datatypes"
)

// RaceSession stores one room. Data holds the full session document; the other
// columns exist for filtering and for the version check on update.
type RaceSession struct {
	ID         string         `gorm:"primaryKey;size:12"`
	Version    int64          `gorm:"not null;default:0"`
	State      string         `gorm:"size:16;not null;index:idx_race_sessions_lobby,priority:1"`
	Visibility string         `gorm:"size:16;not null;index:idx_race_sessions_lobby,priority:2"`
	Data       datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt  time.Time      `gorm:"not null"`
	UpdatedAt  time.Time      `gorm:"not null"`
	ExpiresAt  time.Time      `gorm:"not null;index"`
}
