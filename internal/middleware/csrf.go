package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"carprice/internal/observability"
	"carprice/internal/security"
)

const (
	CSRFCookieName = "csrftoken"
	CSRFHeaderName = "X-CSRFToken"

	csrfCookieMaxAge = 365 * 24 * time.Hour
)

// CSRF implements the double-submit cookie pattern. Every response carries
// a CSRF cookie; unsafe requests that carry a session cookie must echo it in
// the X-CSRFToken header. Anonymous requests have no session to ride on and
// are not checked.
func CSRF(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if c, err := r.Cookie(CSRFCookieName); err == nil {
				token = c.Value
			}

			if !isSafeMethod(r.Method) && !isExemptPath(r.URL.Path) && hasSessionCookie(r) {
				if err := security.VerifyCSRFToken(token, r.Header.Get(CSRFHeaderName)); err != nil {
					logCSRFFailure(r, err.Error())
					writeError(w, http.StatusForbidden, "CSRF Failed: CSRF token missing or incorrect.")
					return
				}
			}

			if token == "" {
				fresh, err := security.GenerateCSRFToken()
				if err != nil {
					slog.Error("failed to generate csrf token", slog.String("error", err.Error()))
					writeError(w, http.StatusInternalServerError, "Internal server error")
					return
				}
				token = fresh
				http.SetCookie(w, &http.Cookie{
					Name:     CSRFCookieName,
					Value:    token,
					Path:     "/",
					MaxAge:   int(csrfCookieMaxAge.Seconds()),
					Secure:   secure,
					HttpOnly: false,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), CSRFKey, token)))
		})
	}
}

// GetCSRFToken returns the token in force for this request.
func GetCSRFToken(ctx context.Context) string {
	token, _ := ctx.Value(CSRFKey).(string)
	return token
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet ||
		method == http.MethodHead ||
		method == http.MethodOptions ||
		method == http.MethodTrace
}

func isExemptPath(path string) bool {
	return strings.HasPrefix(path, "/health") || path == "/metrics"
}

func hasSessionCookie(r *http.Request) bool {
	for _, name := range []string{AccessCookieName, RefreshCookieName} {
		if c, err := r.Cookie(name); err == nil && c.Value != "" {
			return true
		}
	}
	return false
}

func logCSRFFailure(r *http.Request, reason string) {
	observability.FromContext(r.Context()).Warn("CSRF validation failed",
		slog.String("reason", reason),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
	)
}
