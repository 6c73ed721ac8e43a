package game

import (
	"fmt"
	"sort"
	"time"
)

// NewSession builds a waiting room with hostName as its only player.
func NewSession(id, hostID, hostName string, opts Options, now time.Time, ttl time.Duration) *Session {
	visibility := opts.Visibility
	if !visibility.Valid() {
		visibility = VisibilityPublic
	}
	s := &Session{
		ID:           id,
		State:        StateWaiting,
		HostID:       hostID,
		Players:      make(map[string]*Player),
		TextSnippet:  DefaultSnippet,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
		RematchVotes: make(map[string]bool),
		MaxPlayers:   opts.MaxPlayers,
		Visibility:   visibility,
		PasswordHash: opts.PasswordHash,
	}
	s.addPlayer(hostID, hostName, true, now)
	return s
}

func (s *Session) addPlayer(id, name string, isHost bool, now time.Time) *Player {
	player := &Player{
		ID:       id,
		Name:     name,
		IsHost:   isHost,
		JoinedAt: now,
		Seq:      s.NextSeq,
	}
	s.NextSeq++
	s.Players[id] = player
	return player
}

// Join admits a new non-host player. The password is only consulted when the room
// has one.
func (s *Session) Join(playerID, name, password string, hasher PasswordHasher, now time.Time) (*Player, error) {
	name, err := ValidateName(name)
	if err != nil {
		return nil, err
	}
	if s.PasswordHash != "" {
		if hasher == nil {
			return nil, ErrForbidden
		}
		ok, err := hasher.Compare(s.PasswordHash, password)
		if err != nil {
			return nil, fmt.Errorf("check room password: %w", err)
		}
		if !ok {
			return nil, ErrForbidden
		}
	}
	if len(s.Players) >= s.MaxPlayers {
		return nil, fmt.Errorf("%w: at most %d players", ErrFull, s.MaxPlayers)
	}
	if s.State != StateWaiting {
		return nil, ErrAlreadyStarted
	}
	if _, exists := s.Players[playerID]; exists {
		return nil, fmt.Errorf("%w: duplicate player id", ErrInvalidInput)
	}
	return s.addPlayer(playerID, name, false, now), nil
}

// RequireHost fails unless playerID is the room's host.
func (s *Session) RequireHost(playerID string) error {
	if playerID == "" || playerID != s.HostID {
		return ErrNotHost
	}
	return nil
}

// Player returns the named player or ErrNotFound.
func (s *Session) Player(playerID string) (*Player, error) {
	player, ok := s.Players[playerID]
	if !ok {
		return nil, fmt.Errorf("player %s: %w", playerID, ErrNotFound)
	}
	return player, nil
}

// Start moves a waiting room into the countdown with the given snippet. The race
// itself begins when BeginRace is called for the returned round.
func (s *Session) Start(snippet string, now time.Time, countdown time.Duration) (int, error) {
	if s.State != StateWaiting {
		return 0, fmt.Errorf("%w: cannot start from %s", ErrWrongState, s.State)
	}
	if snippet == "" {
		return 0, fmt.Errorf("%w: empty snippet", ErrInvalidInput)
	}
	s.resetPlayers()
	s.TextSnippet = snippet
	s.State = StateCountdown
	startedAt := now
	endsAt := now.Add(countdown)
	s.StartTime = &startedAt
	s.CountdownEndsAt = &endsAt
	s.WinnerID = ""
	s.RematchVotes = make(map[string]bool)
	s.Round++
	return s.Round, nil
}

// BeginRace performs countdown -> playing for the given round. It reports false
// when the room has moved on (reset, restarted or already playing).
func (s *Session) BeginRace(round int, now time.Time) bool {
	if s.State != StateCountdown || s.Round != round {
		return false
	}
	startedAt := now
	s.State = StatePlaying
	s.StartTime = &startedAt
	s.CountdownEndsAt = nil
	return true
}

// CatchUp applies an overdue countdown transition. Readers call it so a lost timer
// can never stall a room.
func (s *Session) CatchUp(now time.Time) bool {
	if s.State != StateCountdown || s.CountdownEndsAt == nil {
		return false
	}
	if now.Before(*s.CountdownEndsAt) {
		return false
	}
	return s.BeginRace(s.Round, *s.CountdownEndsAt)
}

// Reset returns the room to the lobby and clears every race result.
func (s *Session) Reset() {
	s.resetPlayers()
	s.State = StateWaiting
	s.WinnerID = ""
	s.RematchVotes = make(map[string]bool)
	s.StartTime = nil
	s.CountdownEndsAt = nil
}

func (s *Session) resetPlayers() {
	for _, player := range s.Players {
		player.Progress = 0
		player.WPM = 0
		player.Accuracy = 0
		player.Score = 0
		player.FinishTime = nil
		player.Surrendered = false
	}
}

// SettingsUpdate is a partial change to lobby settings. Nil fields are untouched;
// an empty Password removes the room password.
type SettingsUpdate struct {
	MaxPlayers *int
	Visibility *Visibility
	Password   *string
}

// UpdateSettings applies lobby settings. capacity is the configured upper bound
// for MaxPlayers.
func (s *Session) UpdateSettings(update SettingsUpdate, capacity int, hasher PasswordHasher) error {
	if s.State != StateWaiting {
		return fmt.Errorf("%w: settings can only change in the lobby", ErrWrongState)
	}
	if update.MaxPlayers != nil {
		value := *update.MaxPlayers
		if value < len(s.Players) || value < 1 || value > capacity {
			return fmt.Errorf("%w: max players must be between %d and %d", ErrInvalidInput, max(1, len(s.Players)), capacity)
		}
	}
	if update.Visibility != nil && !update.Visibility.Valid() {
		return fmt.Errorf("%w: unknown visibility %q", ErrInvalidInput, *update.Visibility)
	}
	hash := s.PasswordHash
	if update.Password != nil {
		if err := ValidatePassword(*update.Password); err != nil {
			return err
		}
		hash = ""
		if *update.Password != "" {
			if hasher == nil {
				return fmt.Errorf("%w: passwords are not supported", ErrInvalidInput)
			}
			hashed, err := hasher.Hash(*update.Password)
			if err != nil {
				return fmt.Errorf("hash room password: %w", err)
			}
			hash = hashed
		}
	}
	if update.MaxPlayers != nil {
		s.MaxPlayers = *update.MaxPlayers
	}
	if update.Visibility != nil {
		s.Visibility = *update.Visibility
	}
	s.PasswordHash = hash
	return nil
}

// Leave removes a non-host player between races. The winner of a finished race
// stays listed until the room is reset. It reports whether the departure completed
// a rematch consensus.
func (s *Session) Leave(playerID string) (bool, error) {
	player, err := s.Player(playerID)
	if err != nil {
		return false, err
	}
	if player.IsHost {
		return false, fmt.Errorf("%w: the host must disband the room", ErrNotHost)
	}
	if s.State == StateCountdown || s.State == StatePlaying {
		return false, fmt.Errorf("%w: surrender instead of leaving a race", ErrWrongState)
	}
	if s.State == StateFinished && s.WinnerID == playerID {
		return false, fmt.Errorf("%w: the winner stays until the room is reset", ErrWrongState)
	}
	delete(s.Players, playerID)
	delete(s.RematchVotes, playerID)
	return s.checkConsensus(), nil
}

// OrderedPlayers returns players in join order.
func (s *Session) OrderedPlayers() []*Player {
	players := make([]*Player, 0, len(s.Players))
	for _, player := range s.Players {
		players = append(players, player)
	}
	sort.Slice(players, func(i, j int) bool {
		return players[i].Seq < players[j].Seq
	})
	return players
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Players = make(map[string]*Player, len(s.Players))
	for id, player := range s.Players {
		copied := *player
		if player.FinishTime != nil {
			finish := *player.FinishTime
			copied.FinishTime = &finish
		}
		clone.Players[id] = &copied
	}
	clone.RematchVotes = make(map[string]bool, len(s.RematchVotes))
	for id, vote := range s.RematchVotes {
		clone.RematchVotes[id] = vote
	}
	if s.StartTime != nil {
		startedAt := *s.StartTime
		clone.StartTime = &startedAt
	}
	if s.CountdownEndsAt != nil {
		endsAt := *s.CountdownEndsAt
		clone.CountdownEndsAt = &endsAt
	}
	return &clone
}

func (s *Session) Snapshot() Snapshot {
	ordered := s.OrderedPlayers()
	snap := Snapshot{
		ID:              s.ID,
		State:           s.State,
		HostID:          s.HostID,
		Players:         make(map[string]Player, len(ordered)),
		PlayerOrder:     make([]string, 0, len(ordered)),
		TextSnippet:     s.TextSnippet,
		CreatedAt:       s.CreatedAt,
		StartTime:       s.StartTime,
		CountdownEndsAt: s.CountdownEndsAt,
		WinnerID:        s.WinnerID,
		RematchVotes:    make(map[string]bool, len(s.RematchVotes)),
		MaxPlayers:      s.MaxPlayers,
		Visibility:      s.Visibility,
		HasPassword:     s.PasswordHash != "",
		Round:           s.Round,
		Version:         s.Version,
	}
	for _, player := range ordered {
		snap.Players[player.ID] = *player
		snap.PlayerOrder = append(snap.PlayerOrder, player.ID)
	}
	for id, vote := range s.RematchVotes {
		snap.RematchVotes[id] = vote
	}
	return snap
}

func (s *Session) Summary() Summary {
	summary := Summary{
		ID:          s.ID,
		Players:     len(s.Players),
		MaxPlayers:  s.MaxPlayers,
		Visibility:  s.Visibility,
		HasPassword: s.PasswordHash != "",
		CreatedAt:   s.CreatedAt,
	}
	if host, ok := s.Players[s.HostID]; ok {
		summary.HostName = host.Name
	}
	return summary
}
