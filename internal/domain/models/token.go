package models

import "time"

// RefreshToken is the single active refresh token of a user. Saving a new one
// for the same username replaces the previous row.
type RefreshToken struct {
	Username  string
	Token     string
	ExpiresAt time.Time
}

// TokenPair is returned by a successful login.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
