package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "plain:" + password, nil
}

func (plainHasher) Compare(hash, password string) (bool, error) {
	return hash == "plain:"+password, nil
}

func newRoom(t *testing.T, names ...string) (*Session, []string) {
	t.Helper()
	require.NotEmpty(t, names)
	ids := []string{"p0"}
	s := NewSession("ROOM42", "p0", names[0], Options{MaxPlayers: 20}, testNow, 24*time.Hour)
	for i, name := range names[1:] {
		id := "p" + string(rune('1'+i))
		_, err := s.Join(id, name, "", nil, testNow)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return s, ids
}

func playingRoom(t *testing.T, names ...string) (*Session, []string) {
	t.Helper()
	s, ids := newRoom(t, names...)
	round, err := s.Start("type this", testNow, 4*time.Second)
	require.NoError(t, err)
	require.True(t, s.BeginRace(round, testNow.Add(4*time.Second)))
	return s, ids
}

func f(v float64) *float64 { return &v }

func b(v bool) *bool { return &v }
