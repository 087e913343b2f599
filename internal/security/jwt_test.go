package security

import (
	"errors"
	"testing"
	"time"

	"carprice/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUser = &domain.User{ID: 42, Username: "alice", Email: "alice@example.com"}

func newTestManager(t *testing.T) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(TokenConfig{
		Secret:     []byte("test-secret-with-enough-length-123456"),
		AccessTTL:  5 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	})
	require.NoError(t, err)
	return m
}

func TestNewTokenManager_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  TokenConfig
	}{
		{"no_secret", TokenConfig{AccessTTL: time.Minute, RefreshTTL: time.Hour}},
		{"zero_access_ttl", TokenConfig{Secret: []byte("s"), RefreshTTL: time.Hour}},
		{"zero_refresh_ttl", TokenConfig{Secret: []byte("s"), AccessTTL: time.Minute}},
		{"huge_leeway", TokenConfig{Secret: []byte("s"), AccessTTL: time.Minute, RefreshTTL: time.Hour, Leeway: time.Hour}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewTokenManager(tt.cfg)
			assert.Error(t, err)
			assert.Nil(t, m)
		})
	}
}

func TestTokenManager_IssueAndParse(t *testing.T) {
	m := newTestManager(t)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	pair, err := m.Issue(testUser)
	require.NoError(t, err)
	assert.Equal(t, now.Add(5*time.Minute), pair.AccessExpiresAt)
	assert.Equal(t, now.Add(24*time.Hour), pair.RefreshExpiresAt)

	access, err := m.Parse(pair.Access, domain.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(42), access.UserID)
	assert.Equal(t, "alice", access.Username)
	assert.Equal(t, "alice@example.com", access.Email)
	assert.Equal(t, domain.AccessToken, access.Type)
	assert.NotEmpty(t, access.ID)

	refresh, err := m.Parse(pair.Refresh, domain.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, domain.RefreshToken, refresh.Type)
	assert.NotEqual(t, access.ID, refresh.ID)
}

func TestTokenManager_Parse_WrongType(t *testing.T) {
	m := newTestManager(t)
	pair, err := m.Issue(testUser)
	require.NoError(t, err)

	_, err = m.Parse(pair.Access, domain.RefreshToken)
	assert.True(t, errors.Is(err, domain.ErrTokenInvalid))

	_, err = m.Parse(pair.Refresh, domain.AccessToken)
	assert.True(t, errors.Is(err, domain.ErrTokenInvalid))
}

func TestTokenManager_Parse_Expired(t *testing.T) {
	m := newTestManager(t)
	issued := time.Now().Add(-time.Hour)
	m.now = func() time.Time { return issued }
	pair, err := m.Issue(testUser)
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Parse(pair.Access, domain.AccessToken)
	assert.True(t, errors.Is(err, domain.ErrTokenInvalid))

	_, err = m.Parse(pair.Refresh, domain.RefreshToken)
	assert.NoError(t, err)
}

func TestTokenManager_Parse_WrongSecret(t *testing.T) {
	m := newTestManager(t)
	pair, err := m.Issue(testUser)
	require.NoError(t, err)

	other, err := NewTokenManager(TokenConfig{
		Secret:     []byte("some-other-secret-value-000000000000"),
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	})
	require.NoError(t, err)

	_, err = other.Parse(pair.Access, domain.AccessToken)
	assert.True(t, errors.Is(err, domain.ErrTokenInvalid))
}

func TestTokenManager_Parse_RejectsOtherAlgorithms(t *testing.T) {
	m := newTestManager(t)
	c := claims{
		UID:  "42",
		Type: domain.AccessToken,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "x",
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, c).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Parse(none, domain.AccessToken)
	assert.True(t, errors.Is(err, domain.ErrTokenInvalid))
}

func TestTokenManager_Parse_Garbage(t *testing.T) {
	m := newTestManager(t)
	for _, s := range []string{"", "abc", "a.b.c"} {
		_, err := m.Parse(s, domain.AccessToken)
		assert.True(t, errors.Is(err, domain.ErrTokenInvalid), "input %q", s)
	}
}
