package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"carprice/internal/api"
	"carprice/internal/authstate"
	"carprice/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = api.UserIdentity{ID: 1, Username: "alice", Email: "alice@example.com"}

// sessionBackend signs alice in with fixed cookies and fails every logout.
type sessionBackend struct {
	*httptest.Server
	logoutCalls atomic.Int32
}

func newSessionBackend(t *testing.T) *sessionBackend {
	t.Helper()
	b := &sessionBackend{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "access_token", Value: "a", Path: "/", HttpOnly: true})
		http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "r", Path: "/", HttpOnly: true, MaxAge: 86400})
		writeTestJSON(w, http.StatusOK, api.LoginResponse{User: alice})
	})
	mux.HandleFunc("POST /api/logout/", func(w http.ResponseWriter, r *http.Request) {
		b.logoutCalls.Add(1)
		writeTestJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "unavailable"})
	})
	mux.HandleFunc("GET /api/users/me/", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("access_token"); err != nil || c.Value != "a" {
			writeTestJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
			return
		}
		writeTestJSON(w, http.StatusOK, alice)
	})
	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

func writeTestJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func testClientConfig(t *testing.T, apiURL string) *config.ClientConfig {
	t.Helper()
	return &config.ClientConfig{
		APIURL:         apiURL,
		Timeout:        5 * time.Second,
		CSRFCookieName: "csrftoken",
		CSRFHeaderName: "X-CSRFToken",
		CookieFile:     filepath.Join(t.TempDir(), "cookies.json"),
	}
}

// run starts a session the way one CLI invocation does and closes it,
// saving the cookie file, when fn returns.
func run(t *testing.T, cfg *config.ClientConfig, fn func(s *session)) {
	t.Helper()
	s := &session{}
	require.NoError(t, s.start(cfg, slog.New(slog.NewTextHandler(io.Discard, nil))))
	fn(s)
	require.NoError(t, s.close())
}

func signIn(t *testing.T, s *session) {
	t.Helper()
	user, err := s.client.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	s.store.Login(*user)
}

func TestSession_SignInSurvivesBetweenRuns(t *testing.T) {
	b := newSessionBackend(t)
	cfg := testClientConfig(t, b.URL)

	run(t, cfg, func(s *session) { signIn(t, s) })

	run(t, cfg, func(s *session) {
		sess := s.store.Init(context.Background())
		require.True(t, sess.Authenticated())
		assert.Equal(t, alice.Username, sess.User.Username)
	})
}

func TestSession_LogoutClearsSavedSessionWhenBackendFails(t *testing.T) {
	b := newSessionBackend(t)
	cfg := testClientConfig(t, b.URL)

	run(t, cfg, func(s *session) {
		signIn(t, s)
		sess := s.logout(context.Background())
		assert.Equal(t, authstate.StatusAnonymous, sess.Status)
	})
	assert.Equal(t, int32(1), b.logoutCalls.Load())

	run(t, cfg, func(s *session) {
		sess := s.store.Init(context.Background())
		assert.Equal(t, authstate.StatusAnonymous, sess.Status)
		assert.Nil(t, sess.User)
	})
}
