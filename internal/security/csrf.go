package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
)

var ErrInvalidCSRFToken = errors.New("invalid CSRF token")

// GenerateCSRFToken creates a cryptographically secure random CSRF token
// (256 bits) returned as a 64-character hex string. Tokens are not stored
// server-side: the cookie and the header must carry the same value.
func GenerateCSRFToken() (string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(randomBytes), nil
}

// VerifyCSRFToken compares the cookie and header values in constant time.
func VerifyCSRFToken(cookieValue, headerValue string) error {
	if cookieValue == "" || headerValue == "" {
		return ErrInvalidCSRFToken
	}
	if subtle.ConstantTimeCompare([]byte(cookieValue), []byte(headerValue)) != 1 {
		return ErrInvalidCSRFToken
	}
	return nil
}
