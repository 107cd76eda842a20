package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims represents the JWT claims the backend issues. Roles use the
// ROLE_<NAME> form.
type Claims struct {
	Username string   `json:"username,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Inspector reads tokens without verifying their signature. The client
// cannot hold the signing key; it only needs the claims to decide whether a
// token is worth sending.
type Inspector struct {
	parser *jwt.Parser
	now    func() time.Time
}

// NewInspector creates a token inspector
func NewInspector() *Inspector {
	return &Inspector{
		parser: jwt.NewParser(),
		now:    time.Now,
	}
}

// WithClock returns a copy of the inspector using now as the current time
func (i *Inspector) WithClock(now func() time.Time) *Inspector {
	return &Inspector{parser: i.parser, now: now}
}

// Parse decodes the token claims
func (i *Inspector) Parse(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	if _, _, err := i.parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ExpiresAt returns the exp claim, or the zero time when the token has none
func (i *Inspector) ExpiresAt(tokenString string) (time.Time, error) {
	claims, err := i.Parse(tokenString)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}

// CheckNotExpired fails with ErrExpiredToken when the exp claim has passed.
// Tokens without exp are left for the server to judge.
func (i *Inspector) CheckNotExpired(tokenString string) error {
	exp, err := i.ExpiresAt(tokenString)
	if err != nil {
		return err
	}
	if !exp.IsZero() && !i.now().Before(exp) {
		return ErrExpiredToken
	}
	return nil
}
