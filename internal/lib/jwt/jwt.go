package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Signer issues and validates HS256 tokens that carry a username as subject.
type Signer struct {
	keys       KeyProvider
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewSigner returns a Signer. Non-positive TTLs fall back to the defaults.
func NewSigner(keys KeyProvider, accessTTL, refreshTTL time.Duration) *Signer {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}

	return &Signer{
		keys:       keys,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// IssueAccessToken creates a short-lived token for subject.
func (s *Signer) IssueAccessToken(subject string) (string, error) {
	return s.issue(subject, s.accessTTL)
}

// IssueRefreshToken creates a long-lived token for subject, signed with the
// same key as access tokens.
func (s *Signer) IssueRefreshToken(subject string) (string, error) {
	return s.issue(subject, s.refreshTTL)
}

func (s *Signer) issue(subject string, ttl time.Duration) (string, error) {
	const op = "jwt.issue"

	now := s.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.keys.SigningKey())
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

// Validate checks the signature and expiry of token and returns its subject.
// Every failure (malformed input, wrong key or algorithm, expired, missing
// subject) is reported as ok == false.
func (s *Signer) Validate(token string) (subject string, ok bool) {
	if token == "" {
		return "", false
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.keys.SigningKey(), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return "", false
	}

	if claims.Subject == "" {
		return "", false
	}

	return claims.Subject, true
}
