package game

import (
	"crypto/rand"
	"strings"

	"github.com/google/uuid"
)

const (
	roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	RoomCodeLength   = 6
)

// NewRoomCode returns a short human-typable code. Uniqueness among live rooms is
// enforced by the store on insert, not here.
func NewRoomCode() (string, error) {
	buf := make([]byte, RoomCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i := range buf {
		// 256 is a multiple of the alphabet size, so the modulo is unbiased.
		buf[i] = roomCodeAlphabet[int(buf[i])%len(roomCodeAlphabet)]
	}
	return string(buf), nil
}

func NewPlayerID() string {
	return uuid.NewString()
}

// NormalizeRoomCode upper-cases and trims a code typed by a person.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidRoomCode reports whether code could have come from NewRoomCode.
func ValidRoomCode(code string) bool {
	if len(code) != RoomCodeLength {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(roomCodeAlphabet, r) {
			return false
		}
	}
	return true
}
