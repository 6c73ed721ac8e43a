package game

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore(t *testing.T) {
	assert.InDelta(t, 72.2, Score(80, 95), 1e-9)
	assert.Zero(t, Score(120, 0))
	assert.Equal(t, 60.0, Score(60, 100))
}

func TestApplyPlayerUpdate(t *testing.T) {
	t.Run("merges only supplied fields", func(t *testing.T) {
		s, ids := playingRoom(t, "Alice", "Bob")
		_, err := s.ApplyPlayerUpdate(ids[1], PlayerUpdate{Progress: f(30), WPM: f(50), Accuracy: f(90)}, nil, testNow.Add(10*time.Second))
		require.NoError(t, err)
		_, err = s.ApplyPlayerUpdate(ids[1], PlayerUpdate{Progress: f(45)}, nil, testNow.Add(12*time.Second))
		require.NoError(t, err)

		bob := s.Players[ids[1]]
		assert.Equal(t, 45.0, bob.Progress)
		assert.Equal(t, 50.0, bob.WPM)
		assert.Equal(t, 90.0, bob.Accuracy)
		assert.InDelta(t, 40.5, bob.Score, 1e-9)
		assert.Nil(t, bob.FinishTime)
	})

	t.Run("progress is clamped and never decreases", func(t *testing.T) {
		s, ids := playingRoom(t, "Alice", "Bob")
		_, err := s.ApplyPlayerUpdate(ids[1], PlayerUpdate{Progress: f(60)}, nil, testNow)
		require.NoError(t, err)
		_, err = s.ApplyPlayerUpdate(ids[1], PlayerUpdate{Progress: f(20)}, nil, testNow)
		require.NoError(t, err)
		assert.Equal(t, 60.0, s.Players[ids[1]].Progress)

		_, err = s.ApplyPlayerUpdate(ids[0], PlayerUpdate{Progress: f(-5), Accuracy: f(140)}, nil, testNow)
		require.NoError(t, err)
		assert.Zero(t, s.Players[ids[0]].Progress)
		assert.Equal(t, 100.0, s.Players[ids[0]].Accuracy)
	})

	t.Run("supplied score is trusted", func(t *testing.T) {
		s, ids := playingRoom(t, "Alice", "Bob")
		_, err := s.ApplyPlayerUpdate(ids[1], PlayerUpdate{WPM: f(50), Accuracy: f(100), Score: f(999)}, nil, testNow)
		require.NoError(t, err)
		assert.Equal(t, 999.0, s.Players[ids[1]].Score)
	})

	t.Run("unknown player", func(t *testing.T) {
		s, _ := playingRoom(t, "Alice")
		_, err := s.ApplyPlayerUpdate("ghost", PlayerUpdate{Progress: f(10)}, nil, testNow)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("rejected outside playing", func(t *testing.T) {
		s, ids := newRoom(t, "Alice")
		_, err := s.ApplyPlayerUpdate(ids[0], PlayerUpdate{Progress: f(10)}, nil, testNow)
		assert.ErrorIs(t, err, ErrWrongState)
	})

	t.Run("validator can reject", func(t *testing.T) {
		s, ids := playingRoom(t, "Alice", "Bob")
		reject := func(current Player, update PlayerUpdate) error {
			if update.WPM != nil && *update.WPM > 300 {
				return errors.New("implausible wpm")
			}
			return nil
		}
		_, err := s.ApplyPlayerUpdate(ids[1], PlayerUpdate{WPM: f(400)}, reject, testNow)
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Zero(t, s.Players[ids[1]].WPM)
	})
}

func TestFirstFinisherEndsRace(t *testing.T) {
	s, ids := playingRoom(t, "Alice", "Bob", "Carol")
	_, err := s.ApplyPlayerUpdate(ids[1], PlayerUpdate{Progress: f(80), WPM: f(110), Accuracy: f(99)}, nil, testNow.Add(20*time.Second))
	require.NoError(t, err)

	ended, err := s.ApplyPlayerUpdate(ids[0], PlayerUpdate{Progress: f(100), WPM: f(90), Accuracy: f(98)}, nil, testNow.Add(34*time.Second))
	require.NoError(t, err)

	assert.True(t, ended)
	assert.Equal(t, StateFinished, s.State)
	// Bob is still mid-race but holds the highest score at the instant the race ends.
	assert.Equal(t, ids[1], s.WinnerID)
	require.NotNil(t, s.Players[ids[0]].FinishTime)
	assert.Equal(t, 30.0, *s.Players[ids[0]].FinishTime)
}

func TestFinishThresholdAbsorbsRounding(t *testing.T) {
	s, ids := playingRoom(t, "Alice", "Bob")
	ended, err := s.ApplyPlayerUpdate(ids[0], PlayerUpdate{Progress: f(99.4), WPM: f(70), Accuracy: f(97)}, nil, testNow.Add(40*time.Second))
	require.NoError(t, err)
	assert.True(t, ended)
	assert.Equal(t, ids[0], s.WinnerID)
	require.NotNil(t, s.Players[ids[0]].FinishTime)
	assert.Equal(t, 40.0, *s.Players[ids[0]].FinishTime)
}

func TestFinishedPlayerIsFrozen(t *testing.T) {
	s, ids := playingRoom(t, "Alice")
	_, err := s.ApplyPlayerUpdate(ids[0], PlayerUpdate{Progress: f(100), WPM: f(60), Accuracy: f(100)}, nil, testNow.Add(10*time.Second))
	require.NoError(t, err)
	require.Equal(t, StateFinished, s.State)

	s.State = StatePlaying
	_, err = s.ApplyPlayerUpdate(ids[0], PlayerUpdate{WPM: f(200), FinishTime: f(1)}, nil, testNow.Add(20*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 60.0, s.Players[ids[0]].WPM)
	assert.Equal(t, 6.0, *s.Players[ids[0]].FinishTime)
}

func TestSurrender(t *testing.T) {
	t.Run("race continues while someone races", func(t *testing.T) {
		s, ids := playingRoom(t, "Alice", "Bob")
		_, err := s.ApplyPlayerUpdate(ids[1], PlayerUpdate{Progress: f(40), WPM: f(60), Accuracy: f(100)}, nil, testNow.Add(10*time.Second))
		require.NoError(t, err)

		ended, err := s.Surrender(ids[1], testNow.Add(14*time.Second))
		require.NoError(t, err)
		assert.False(t, ended)
		bob := s.Players[ids[1]]
		assert.True(t, bob.Surrendered)
		assert.Equal(t, 40.0, bob.Progress)
		assert.Zero(t, bob.Score)
		assert.Equal(t, 10.0, *bob.FinishTime)
		assert.Equal(t, StatePlaying, s.State)
	})

	t.Run("last active surrender ends without winner", func(t *testing.T) {
		s, ids := playingRoom(t, "Alice", "Bob")
		_, err := s.Surrender(ids[0], testNow.Add(5*time.Second))
		require.NoError(t, err)
		ended, err := s.Surrender(ids[1], testNow.Add(6*time.Second))
		require.NoError(t, err)
		assert.True(t, ended)
		assert.Equal(t, StateFinished, s.State)
		assert.Empty(t, s.WinnerID)
	})

	t.Run("surrendered player cannot win", func(t *testing.T) {
		s, ids := playingRoom(t, "Alice", "Bob")
		_, err := s.ApplyPlayerUpdate(ids[1], PlayerUpdate{Progress: f(90), WPM: f(150), Accuracy: f(100)}, nil, testNow)
		require.NoError(t, err)
		_, err = s.ApplyPlayerUpdate(ids[1], PlayerUpdate{Surrendered: b(true)}, nil, testNow)
		require.NoError(t, err)
		_, err = s.ApplyPlayerUpdate(ids[0], PlayerUpdate{Progress: f(100), WPM: f(20), Accuracy: f(50)}, nil, testNow)
		require.NoError(t, err)
		assert.Equal(t, ids[0], s.WinnerID)
	})

	t.Run("only while playing", func(t *testing.T) {
		s, ids := newRoom(t, "Alice")
		_, err := s.Surrender(ids[0], testNow)
		assert.ErrorIs(t, err, ErrWrongState)
	})
}

func TestWinnerTieBreak(t *testing.T) {
	s, ids := playingRoom(t, "Alice", "Bob")
	s.Players[ids[0]].Score = 50
	s.Players[ids[1]].Score = 50
	s.Players[ids[1]].FinishTime = f(20)

	assert.Equal(t, ids[1], s.pickWinner())

	s.Players[ids[0]].FinishTime = f(20)
	assert.Equal(t, ids[0], s.pickWinner())
}
