package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"carprice/internal/domain"
	"carprice/internal/observability"
)

type contextKey string

const (
	ClaimsKey contextKey = "claims"
	CSRFKey   contextKey = "csrf_token"
)

const (
	AccessCookieName  = "access_token"
	RefreshCookieName = "refresh_token"
)

// TokenVerifier checks signed tokens.
type TokenVerifier interface {
	Parse(token string, want domain.TokenType) (*domain.TokenClaims, error)
}

// Auth rejects requests without a valid access token cookie.
func Auth(tokens TokenVerifier) func(http.Handler) http.Handler {
	return authenticate(tokens, true)
}

// OptionalAuth lets anonymous requests through but still rejects an access
// cookie that is present and invalid, so clients can refresh it.
func OptionalAuth(tokens TokenVerifier) func(http.Handler) http.Handler {
	return authenticate(tokens, false)
}

func authenticate(tokens TokenVerifier, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(AccessCookieName)
			if err != nil || cookie.Value == "" {
				if required {
					writeError(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			claims, err := tokens.Parse(cookie.Value, domain.AccessToken)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Given token not valid for any token type")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func GetClaims(ctx context.Context) (*domain.TokenClaims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*domain.TokenClaims)
	return claims, ok
}

// GetUserID returns the authenticated user's ID, if any.
func GetUserID(ctx context.Context) (int64, bool) {
	claims, ok := GetClaims(ctx)
	if !ok {
		return 0, false
	}
	return claims.UserID, true
}

func WithClaims(ctx context.Context, claims *domain.TokenClaims) context.Context {
	ctx = context.WithValue(ctx, ClaimsKey, claims)
	return observability.WithUserID(ctx, claims.UserID)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
