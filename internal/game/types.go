package game

import "time"

type State string

const (
	StateWaiting   State = "waiting"
	StateCountdown State = "countdown"
	StatePlaying   State = "playing"
	StateFinished  State = "finished"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// DefaultSnippet is the placeholder text a room holds until its first start.
const DefaultSnippet = "The quick brown fox jumps over the lazy dog."

// Session is the persisted record of one room. It is the unit of storage and of
// compare-and-swap: every mutation works on a Clone and is written back whole.
type Session struct {
	ID              string             `json:"id"`
	State           State              `json:"state"`
	HostID          string             `json:"hostId"`
	Players         map[string]*Player `json:"players"`
	TextSnippet     string             `json:"textSnippet"`
	CreatedAt       time.Time          `json:"createdAt"`
	ExpiresAt       time.Time          `json:"expiresAt"`
	StartTime       *time.Time         `json:"startTime"`
	CountdownEndsAt *time.Time         `json:"countdownEndsAt,omitempty"`
	WinnerID        string             `json:"winnerId,omitempty"`
	RematchVotes    map[string]bool    `json:"rematchVotes"`
	MaxPlayers      int                `json:"maxPlayers"`
	Visibility      Visibility         `json:"visibility"`
	PasswordHash    string             `json:"passwordHash,omitempty"`
	Round           int                `json:"round"`
	NextSeq         int                `json:"nextSeq"`
	Version         int64              `json:"version"`
}

type Player struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	IsHost      bool      `json:"isHost"`
	Progress    float64   `json:"progress"`
	WPM         float64   `json:"wpm"`
	Accuracy    float64   `json:"accuracy"`
	Score       float64   `json:"score"`
	FinishTime  *float64  `json:"finishTime"`
	Surrendered bool      `json:"surrendered"`
	JoinedAt    time.Time `json:"joinedAt"`
	Seq         int       `json:"seq"`
}

// Options are the creator-supplied room settings.
type Options struct {
	MaxPlayers   int
	Visibility   Visibility
	PasswordHash string
}

// PasswordHasher hashes and checks room passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) (bool, error)
}

// Snapshot is the client-facing view of a Session. It never carries the password hash.
type Snapshot struct {
	ID              string            `json:"id"`
	State           State             `json:"state"`
	HostID          string            `json:"hostId"`
	Players         map[string]Player `json:"players"`
	PlayerOrder     []string          `json:"playerOrder"`
	TextSnippet     string            `json:"textSnippet"`
	CreatedAt       time.Time         `json:"createdAt"`
	StartTime       *time.Time        `json:"startTime"`
	CountdownEndsAt *time.Time        `json:"countdownEndsAt,omitempty"`
	WinnerID        string            `json:"winnerId,omitempty"`
	RematchVotes    map[string]bool   `json:"rematchVotes"`
	MaxPlayers      int               `json:"maxPlayers"`
	Visibility      Visibility        `json:"visibility"`
	HasPassword     bool              `json:"hasPassword"`
	Round           int               `json:"round"`
	Version         int64             `json:"version"`
}

// Summary is the lobby-list view of a room.
type Summary struct {
	ID          string     `json:"id"`
	HostName    string     `json:"hostName"`
	Players     int        `json:"players"`
	MaxPlayers  int        `json:"maxPlayers"`
	Visibility  Visibility `json:"visibility"`
	HasPassword bool       `json:"hasPassword"`
	CreatedAt   time.Time  `json:"createdAt"`
}
