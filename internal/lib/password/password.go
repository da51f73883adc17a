// Package password hashes and verifies user passwords with bcrypt.
package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MaxLength is the longest input bcrypt accepts, in bytes.
const MaxLength = 72

var (
	ErrMismatch = errors.New("password does not match")
	ErrTooLong  = errors.New("password is longer than 72 bytes")
)

// Hash returns the bcrypt hash of password. A cost outside bcrypt's accepted
// range falls back to bcrypt.DefaultCost.
func Hash(password string, cost int) ([]byte, error) {
	if len(password) > MaxLength {
		return nil, ErrTooLong
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return bcrypt.GenerateFromPassword([]byte(password), cost)
}

// Compare reports whether password matches hash. A wrong password yields
// ErrMismatch; any other error means the hash itself is unusable.
func Compare(hash []byte, password string) error {
	// nothing longer than MaxLength was ever hashed
	if len(password) > MaxLength {
		return ErrMismatch
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatch
		}
		return err
	}
	return nil
}
