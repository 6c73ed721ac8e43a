// Package password hashes room passwords.
package password

import (
	"fmt"

	"github.com/alexedwards/argon2id"
)

type Argon2idHasher struct {
	params *argon2id.Params
}

// NewArgon2idHasher builds a hasher with the given cost. memory is in KiB.
func NewArgon2idHasher(iterations, memory, keyLength, saltLength uint32, parallelism uint8) *Argon2idHasher {
	return &Argon2idHasher{
		params: &argon2id.Params{
			Memory:      memory,
			Iterations:  iterations,
			Parallelism: parallelism,
			SaltLength:  saltLength,
			KeyLength:   keyLength,
		},
	}
}

// NewDefault is tuned for short room passwords checked once per join.
func NewDefault() *Argon2idHasher {
	return NewArgon2idHasher(2, 12*1024, 32, 16, 2)
}

func (h *Argon2idHasher) Hash(password string) (string, error) {
	hash, err := argon2id.CreateHash(password, h.params)
	if err != nil {
		return "", fmt.Errorf("argon2id hash: %w", err)
	}
	return hash, nil
}

func (h *Argon2idHasher) Compare(hash, password string) (bool, error) {
	match, err := argon2id.ComparePasswordAndHash(password, hash)
	if err != nil {
		return false, fmt.Errorf("argon2id compare: %w", err)
	}
	return match, nil
}
