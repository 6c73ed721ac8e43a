package game

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxNameLength     = 20
	MaxPasswordLength = 64
)

// ValidateName normalizes a display name and checks it.
func ValidateName(name string) (string, error) {
	trimmed := normalizeText(name)
	if trimmed == "" {
		return "", fmt.Errorf("%w: player name required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(trimmed) > MaxNameLength {
		return "", fmt.Errorf("%w: player name must be %d characters or fewer", ErrInvalidInput, MaxNameLength)
	}
	if !isSafeText(trimmed) {
		return "", fmt.Errorf("%w: player name contains unsupported characters", ErrInvalidInput)
	}
	return trimmed, nil
}

func ValidatePassword(password string) error {
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("%w: password must be %d characters or fewer", ErrInvalidInput, MaxPasswordLength)
	}
	return nil
}

func normalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func isSafeText(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		switch r {
		case ' ', '-', '_', '\'', '.', '!', '?', '&', '(', ')':
			continue
		default:
			return false
		}
	}
	return true
}
