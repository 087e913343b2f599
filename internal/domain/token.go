package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTokenInvalid = errors.New("token is invalid or expired")
	ErrTokenRevoked = errors.New("token has been revoked")
)

type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

// TokenClaims is what a verified token says about its holder.
type TokenClaims struct {
	ID        string
	Type      TokenType
	UserID    int64
	Username  string
	Email     string
	ExpiresAt time.Time
}

// TokenPair is a freshly issued access and refresh token.
type TokenPair struct {
	Access           string
	AccessExpiresAt  time.Time
	Refresh          string
	RefreshExpiresAt time.Time
}

// RevocationStore remembers refresh tokens that may no longer be used.
type RevocationStore interface {
	// Revoke marks id as used until ttl passes. It reports false if id was
	// already revoked.
	Revoke(ctx context.Context, id string, ttl time.Duration) (bool, error)
	IsRevoked(ctx context.Context, id string) (bool, error)
}
