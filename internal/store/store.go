// Package store persists race sessions. Every backend stores whole sessions and
// guards writes with the session version so concurrent handlers cannot lose
// each other's updates.
package store

import (
	"context"
	"errors"
	"fmt"

	"type-royale/internal/game"
)

var (
	ErrNotFound = fmt.Errorf("session %w", game.ErrNotFound)
	ErrExists   = errors.New("session already exists")
	ErrConflict = errors.New("session changed concurrently")
)

// ListFilter narrows List. Zero values match everything.
type ListFilter struct {
	State      game.State
	Visibility game.Visibility
	Limit      int
}

func (f ListFilter) match(s *game.Session) bool {
	if f.State != "" && s.State != f.State {
		return false
	}
	if f.Visibility != "" && s.Visibility != f.Visibility {
		return false
	}
	return true
}

type Store interface {
	// Get returns a copy of the session, or ErrNotFound when it is absent or expired.
	Get(ctx context.Context, id string) (*game.Session, error)
	// Create inserts s and fails with ErrExists when a live session owns the id.
	Create(ctx context.Context, s *game.Session) error
	// Put writes s unconditionally.
	Put(ctx context.Context, s *game.Session) error
	// Swap writes s only if the stored version still equals prevVersion. On
	// success s.Version is prevVersion+1.
	Swap(ctx context.Context, s *game.Session, prevVersion int64) error
	Delete(ctx context.Context, id string) error
	// List returns live sessions, oldest first.
	List(ctx context.Context, filter ListFilter) ([]*game.Session, error)
	// Sweep removes expired sessions and reports how many were dropped.
	Sweep(ctx context.Context) (int, error)
	Count(ctx context.Context) (int, error)
}
