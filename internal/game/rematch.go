package game

import "fmt"

// VoteRematch records a player's rematch vote. The first vote is final; repeats
// are ignored. It reports whether the vote completed a unanimous consensus, in
// which case the room has already been reset.
func (s *Session) VoteRematch(playerID string, vote bool) (bool, error) {
	if _, err := s.Player(playerID); err != nil {
		return false, err
	}
	if s.State != StateFinished {
		return false, fmt.Errorf("%w: rematch votes open after the race", ErrWrongState)
	}
	if _, voted := s.RematchVotes[playerID]; voted {
		return false, nil
	}
	if s.RematchVotes == nil {
		s.RematchVotes = make(map[string]bool)
	}
	s.RematchVotes[playerID] = vote
	return s.checkConsensus(), nil
}

func (s *Session) checkConsensus() bool {
	if s.State != StateFinished || len(s.Players) == 0 {
		return false
	}
	yes := 0
	for id, vote := range s.RematchVotes {
		if _, ok := s.Players[id]; ok && vote {
			yes++
		}
	}
	if yes != len(s.Players) {
		return false
	}
	s.Reset()
	return true
}
