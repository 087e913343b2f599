package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"carprice/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "carprice"

// TokenConfig configures a TokenManager.
type TokenConfig struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Leeway     time.Duration
}

// TokenManager issues and verifies HS256 access and refresh tokens.
type TokenManager struct {
	cfg TokenConfig
	now func() time.Time
}

type claims struct {
	UID      string           `json:"uid"`
	Username string           `json:"username"`
	Email    string           `json:"email"`
	Type     domain.TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// NewTokenManager validates cfg and returns a TokenManager.
func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &TokenManager{cfg: cfg, now: time.Now}, nil
}

// AccessTTL is the lifetime of issued access tokens.
func (m *TokenManager) AccessTTL() time.Duration { return m.cfg.AccessTTL }

// RefreshTTL is the lifetime of issued refresh tokens.
func (m *TokenManager) RefreshTTL() time.Duration { return m.cfg.RefreshTTL }

// Issue creates a new access and refresh token for user.
func (m *TokenManager) Issue(user *domain.User) (*domain.TokenPair, error) {
	now := m.now()

	access, accessExp, err := m.sign(user, domain.AccessToken, now, m.cfg.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, refreshExp, err := m.sign(user, domain.RefreshToken, now, m.cfg.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	return &domain.TokenPair{
		Access:           access,
		AccessExpiresAt:  accessExp,
		Refresh:          refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (m *TokenManager) sign(user *domain.User, typ domain.TokenType, now time.Time, ttl time.Duration) (string, time.Time, error) {
	exp := now.Add(ttl)
	c := claims{
		UID:      strconv.FormatInt(user.ID, 10),
		Username: user.Username,
		Email:    user.Email,
		Type:     typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.cfg.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse verifies tokenStr and checks that it is of type want.
// Every failure is reported as domain.ErrTokenInvalid.
func (m *TokenManager) Parse(tokenStr string, want domain.TokenType) (*domain.TokenClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.cfg.Leeway))
	}

	var c claims
	token, err := jwt.ParseWithClaims(tokenStr, &c, func(t *jwt.Token) (any, error) {
		return m.cfg.Secret, nil
	}, options...)
	if err != nil || !token.Valid {
		return nil, domain.ErrTokenInvalid
	}
	if c.Type != want || c.ID == "" {
		return nil, domain.ErrTokenInvalid
	}
	uid, err := strconv.ParseInt(c.UID, 10, 64)
	if err != nil || uid <= 0 {
		return nil, domain.ErrTokenInvalid
	}

	return &domain.TokenClaims{
		ID:        c.ID,
		Type:      c.Type,
		UserID:    uid,
		Username:  c.Username,
		Email:     c.Email,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}
