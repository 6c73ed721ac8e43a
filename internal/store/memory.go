package store

import (
	"context"
	"sort"
	"sync"

	"type-royale/internal/game"

	"github.com/jonboulle/clockwork"
)

// Memory is the single-process backend. Sessions are cloned on the way in and
// out so callers never share state with the map.
type Memory struct {
	mu       sync.RWMutex
	clock    clockwork.Clock
	sessions map[string]*game.Session
}

func NewMemory(clock clockwork.Clock) *Memory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Memory{
		clock:    clock,
		sessions: make(map[string]*game.Session),
	}
}

func (m *Memory) live(s *game.Session) bool {
	return s != nil && m.clock.Now().Before(s.ExpiresAt)
}

func (m *Memory) Get(_ context.Context, id string) (*game.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok || !m.live(s) {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *Memory) Create(_ context.Context, s *game.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[s.ID]; ok && m.live(existing) {
		return ErrExists
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *Memory) Put(_ context.Context, s *game.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Version++
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *Memory) Swap(_ context.Context, s *game.Session, prevVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.sessions[s.ID]
	if !ok || !m.live(current) {
		return ErrNotFound
	}
	if current.Version != prevVersion {
		return ErrConflict
	}
	s.Version = prevVersion + 1
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *Memory) List(_ context.Context, filter ListFilter) ([]*game.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]*game.Session, 0)
	for _, s := range m.sessions {
		if m.live(s) && filter.match(s) {
			list = append(list, s.Clone())
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	if filter.Limit > 0 && len(list) > filter.Limit {
		list = list[:filter.Limit]
	}
	return list, nil
}

func (m *Memory) Sweep(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if !m.live(s) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.sessions {
		if m.live(s) {
			count++
		}
	}
	return count, nil
}
