package game

import (
	"fmt"
	"math"
	"time"
)

// FinishThreshold absorbs rounding in client-computed percentages.
const FinishThreshold = 99.0

// PlayerUpdate is a partial player change; nil fields are left untouched. The
// values are client telemetry and only bounds-checked.
type PlayerUpdate struct {
	Progress    *float64 `json:"progress,omitempty"`
	WPM         *float64 `json:"wpm,omitempty"`
	Accuracy    *float64 `json:"accuracy,omitempty"`
	Score       *float64 `json:"score,omitempty"`
	FinishTime  *float64 `json:"finishTime,omitempty"`
	Surrendered *bool    `json:"surrendered,omitempty"`
}

// UpdateValidator may reject an update before it is merged. Returning an error
// aborts the whole operation.
type UpdateValidator func(current Player, update PlayerUpdate) error

// Score rewards speed and penalizes inaccuracy quadratically.
func Score(wpm, accuracy float64) float64 {
	ratio := accuracy / 100
	return wpm * ratio * ratio
}

// ApplyPlayerUpdate merges update into the player's record and evaluates race
// completion. It reports whether the race ended.
func (s *Session) ApplyPlayerUpdate(playerID string, update PlayerUpdate, validate UpdateValidator, now time.Time) (bool, error) {
	player, err := s.Player(playerID)
	if err != nil {
		return false, err
	}
	if s.State != StatePlaying {
		return false, fmt.Errorf("%w: progress is only accepted while playing", ErrWrongState)
	}
	if validate != nil {
		if err := validate(*player, update); err != nil {
			return false, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	if update.Surrendered != nil && *update.Surrendered {
		s.surrender(player, now)
		return s.checkCompletion(), nil
	}
	if player.Surrendered || player.Progress >= FinishThreshold {
		return s.checkCompletion(), nil
	}

	metricsChanged := false
	if update.WPM != nil {
		player.WPM = nonNegative(*update.WPM)
		metricsChanged = true
	}
	if update.Accuracy != nil {
		player.Accuracy = clamp(*update.Accuracy, 0, 100)
		metricsChanged = true
	}
	if update.Progress != nil {
		player.Progress = math.Max(player.Progress, clamp(*update.Progress, 0, 100))
	}
	if update.Score != nil {
		player.Score = nonNegative(*update.Score)
	} else if metricsChanged {
		player.Score = Score(player.WPM, player.Accuracy)
	}
	if update.FinishTime != nil {
		finish := nonNegative(*update.FinishTime)
		player.FinishTime = &finish
	} else if player.Progress >= FinishThreshold && player.FinishTime == nil {
		finish := s.elapsed(now)
		player.FinishTime = &finish
	}
	return s.checkCompletion(), nil
}

// Surrender withdraws a player from the running race. Repeated calls are no-ops.
func (s *Session) Surrender(playerID string, now time.Time) (bool, error) {
	player, err := s.Player(playerID)
	if err != nil {
		return false, err
	}
	if s.State != StatePlaying {
		return false, fmt.Errorf("%w: can only surrender while playing", ErrWrongState)
	}
	if !player.Surrendered {
		s.surrender(player, now)
	}
	return s.checkCompletion(), nil
}

func (s *Session) surrender(player *Player, now time.Time) {
	if player.Surrendered {
		return
	}
	player.Surrendered = true
	player.Score = 0
	if player.FinishTime == nil {
		finish := s.elapsed(now)
		player.FinishTime = &finish
	}
}

// checkCompletion ends the race when the first active player crosses the line or
// when nobody is left racing.
func (s *Session) checkCompletion() bool {
	if s.State != StatePlaying {
		return false
	}
	finishedActive := 0
	done := 0
	for _, player := range s.Players {
		if player.Surrendered {
			done++
			continue
		}
		if player.Progress >= FinishThreshold {
			finishedActive++
			done++
		}
	}
	if finishedActive == 0 && done < len(s.Players) {
		return false
	}
	return s.Finish()
}

// Finish ends a running race and freezes the winner.
func (s *Session) Finish() bool {
	if s.State != StatePlaying {
		return false
	}
	s.State = StateFinished
	s.WinnerID = s.pickWinner()
	s.CountdownEndsAt = nil
	return true
}

// pickWinner returns the highest scoring non-surrendered player. Ties go to the
// earlier finish time, then to the earlier joiner. Empty when everyone gave up.
func (s *Session) pickWinner() string {
	var best *Player
	for _, player := range s.OrderedPlayers() {
		if player.Surrendered {
			continue
		}
		if best == nil || beats(player, best) {
			best = player
		}
	}
	if best == nil {
		return ""
	}
	return best.ID
}

func beats(candidate, current *Player) bool {
	if candidate.Score != current.Score {
		return candidate.Score > current.Score
	}
	return finishOrInf(candidate) < finishOrInf(current)
}

func finishOrInf(player *Player) float64 {
	if player.FinishTime == nil {
		return math.Inf(1)
	}
	return *player.FinishTime
}

func (s *Session) elapsed(now time.Time) float64 {
	if s.StartTime == nil {
		return 0
	}
	seconds := now.Sub(*s.StartTime).Seconds()
	if seconds < 0 {
		return 0
	}
	return math.Round(seconds*1000) / 1000
}

func nonNegative(value float64) float64 {
	return clamp(value, 0, math.MaxFloat64)
}

func clamp(value, lo, hi float64) float64 {
	if math.IsNaN(value) {
		return lo
	}
	return math.Min(hi, math.Max(lo, value))
}
