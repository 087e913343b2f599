package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"carprice/internal/api"
	"carprice/internal/domain"
	"carprice/internal/middleware"
	"carprice/internal/security"
	"carprice/internal/service"
	"carprice/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "correct-horse-battery"

type authFixture struct {
	handler     *AuthHandler
	users       *testutil.MockUserRepository
	tokens      *security.TokenManager
	revocations *testutil.MockRevocationStore
}

func newTokenManager(t *testing.T) *security.TokenManager {
	t.Helper()
	tm, err := security.NewTokenManager(security.TokenConfig{
		Secret:     []byte("handler-test-secret-with-32-chars!!"),
		AccessTTL:  5 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	})
	require.NoError(t, err)
	return tm
}

func newAuthFixture(t *testing.T, users ...*domain.User) *authFixture {
	t.Helper()
	f := &authFixture{
		users:       testutil.NewMockUserRepository(users...),
		tokens:      newTokenManager(t),
		revocations: testutil.NewMockRevocationStore(),
	}
	authService := service.NewAuthService(f.users, f.tokens, f.revocations, service.WithBcryptCost(bcrypt.MinCost))
	f.handler = NewAuthHandler(authService, false)
	return f
}

func validRegistration() api.RegisterRequest {
	return api.RegisterRequest{
		Username:  "alice",
		Email:     "alice@example.com",
		Password:  testPassword,
		Password2: testPassword,
		FirstName: "Alice",
		LastName:  "Liddell",
	}
}

func TestAuthHandler_Register_Success(t *testing.T) {
	f := newAuthFixture(t)

	w := httptest.NewRecorder()
	f.handler.Register(w, testutil.NewJSONRequest(t, http.MethodPost, "/api/register/", validRegistration()))

	testutil.AssertStatusCode(t, w, http.StatusCreated)
	resp := testutil.DecodeJSON[api.RegisterResponse](t, w)
	assert.Equal(t, api.RegisterResponse{
		Username:  "alice",
		Email:     "alice@example.com",
		FirstName: "Alice",
		LastName:  "Liddell",
	}, resp)
	assert.NotContains(t, w.Body.String(), "password")
	assert.Len(t, f.users.Users, 1)
	testutil.AssertNoCookie(t, w, middleware.AccessCookieName)
}

func TestAuthHandler_Register_InvalidJSON(t *testing.T) {
	f := newAuthFixture(t)

	w := httptest.NewRecorder()
	f.handler.Register(w, testutil.NewJSONRequest(t, http.MethodPost, "/api/register/", `invalid json`))

	testutil.AssertStatusCode(t, w, http.StatusBadRequest)
	assert.Contains(t, w.Body.String(), "Invalid request body")
}

func TestAuthHandler_Register_ValidationErrors(t *testing.T) {
	existing := testutil.NewTestUser(testutil.WithUsername("taken"), testutil.WithEmail("taken@example.com"))

	tests := []struct {
		name   string
		mutate func(r *api.RegisterRequest)
		fields []string
	}{
		{"short username", func(r *api.RegisterRequest) { r.Username = "ab" }, []string{"username"}},
		{"invalid email", func(r *api.RegisterRequest) { r.Email = "notanemail" }, []string{"email"}},
		{"numeric password", func(r *api.RegisterRequest) { r.Password, r.Password2 = "12345678", "12345678" }, []string{"password"}},
		{"mismatched passwords", func(r *api.RegisterRequest) { r.Password2 = "something-else" }, []string{"password"}},
		{"missing names", func(r *api.RegisterRequest) { r.FirstName, r.LastName = "", "" }, []string{"first_name", "last_name"}},
		{"username exists", func(r *api.RegisterRequest) { r.Username = "taken" }, []string{"username"}},
		{"email exists", func(r *api.RegisterRequest) { r.Email = "taken@example.com" }, []string{"email"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t, existing)
			req := validRegistration()
			tt.mutate(&req)

			w := httptest.NewRecorder()
			f.handler.Register(w, testutil.NewJSONRequest(t, http.MethodPost, "/api/register/", req))

			testutil.AssertFieldErrors(t, w, tt.fields...)
		})
	}
}

func TestAuthHandler_Register_InternalError(t *testing.T) {
	f := newAuthFixture(t)
	f.users.CreateFunc = func(ctx context.Context, user *domain.User) error {
		return errors.New("database error")
	}

	w := httptest.NewRecorder()
	f.handler.Register(w, testutil.NewJSONRequest(t, http.MethodPost, "/api/register/", validRegistration()))

	testutil.AssertStatusCode(t, w, http.StatusInternalServerError)
	assert.NotContains(t, w.Body.String(), "database error")
}

func TestAuthHandler_Login(t *testing.T) {
	user := testutil.NewTestUser(testutil.WithUsername("bob"), testutil.WithPassword(testPassword))

	t.Run("success sets session cookies", func(t *testing.T) {
		f := newAuthFixture(t, user)

		w := httptest.NewRecorder()
		f.handler.Login(w, testutil.NewJSONRequest(t, http.MethodPost, "/api/login/",
			api.LoginRequest{Username: "bob", Password: testPassword}))

		testutil.AssertStatusCode(t, w, http.StatusOK)
		resp := testutil.DecodeJSON[api.LoginResponse](t, w)
		assert.Equal(t, api.UserIdentity{ID: user.ID, Username: "bob", Email: user.Email}, resp.User)

		for _, name := range []string{middleware.AccessCookieName, middleware.RefreshCookieName} {
			c := testutil.AssertCookie(t, w, name)
			require.NotNil(t, c)
			assert.True(t, c.HttpOnly, "%s must be HttpOnly", name)
			assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
			assert.Equal(t, "/", c.Path)
			assert.Positive(t, c.MaxAge)
		}

		access := testutil.AssertCookie(t, w, middleware.AccessCookieName)
		claims, err := f.tokens.Parse(access.Value, domain.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, user.ID, claims.UserID)
		assert.NotContains(t, w.Body.String(), access.Value)
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newAuthFixture(t, user)

		w := httptest.NewRecorder()
		f.handler.Login(w, testutil.NewJSONRequest(t, http.MethodPost, "/api/login/",
			api.LoginRequest{Username: "bob", Password: "wrong-password"}))

		testutil.AssertStatusCode(t, w, http.StatusUnauthorized)
		testutil.AssertNoCookie(t, w, middleware.AccessCookieName)
		testutil.AssertNoCookie(t, w, middleware.RefreshCookieName)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newAuthFixture(t)

		w := httptest.NewRecorder()
		f.handler.Login(w, testutil.NewJSONRequest(t, http.MethodPost, "/api/login/",
			api.LoginRequest{Username: "nobody", Password: testPassword}))

		testutil.AssertStatusCode(t, w, http.StatusUnauthorized)
	})

	t.Run("invalid body", func(t *testing.T) {
		f := newAuthFixture(t)

		w := httptest.NewRecorder()
		f.handler.Login(w, testutil.NewJSONRequest(t, http.MethodPost, "/api/login/", `{"username":`))

		testutil.AssertStatusCode(t, w, http.StatusBadRequest)
	})
}

func TestAuthHandler_Refresh(t *testing.T) {
	user := testutil.NewTestUser()

	t.Run("rotates cookies", func(t *testing.T) {
		f := newAuthFixture(t, user)
		pair, err := f.tokens.Issue(user)
		require.NoError(t, err)

		req := testutil.WithCookies(httptest.NewRequest(http.MethodPost, "/api/token/refresh/", nil),
			&http.Cookie{Name: middleware.RefreshCookieName, Value: pair.Refresh})
		w := httptest.NewRecorder()
		f.handler.Refresh(w, req)

		testutil.AssertStatusCode(t, w, http.StatusOK)
		refresh := testutil.AssertCookie(t, w, middleware.RefreshCookieName)
		require.NotNil(t, refresh)
		assert.NotEqual(t, pair.Refresh, refresh.Value)
		testutil.AssertCookie(t, w, middleware.AccessCookieName)
		assert.Equal(t, 1, f.revocations.Count())

		resp := testutil.DecodeJSON[api.LoginResponse](t, w)
		assert.Equal(t, user.ID, resp.User.ID)
	})

	t.Run("reused token is rejected", func(t *testing.T) {
		f := newAuthFixture(t, user)
		pair, err := f.tokens.Issue(user)
		require.NoError(t, err)
		cookie := &http.Cookie{Name: middleware.RefreshCookieName, Value: pair.Refresh}

		w := httptest.NewRecorder()
		f.handler.Refresh(w, testutil.WithCookies(httptest.NewRequest(http.MethodPost, "/api/token/refresh/", nil), cookie))
		testutil.AssertStatusCode(t, w, http.StatusOK)

		w = httptest.NewRecorder()
		f.handler.Refresh(w, testutil.WithCookies(httptest.NewRequest(http.MethodPost, "/api/token/refresh/", nil), cookie))
		testutil.AssertStatusCode(t, w, http.StatusUnauthorized)
		testutil.AssertClearedCookie(t, w, middleware.AccessCookieName)
		testutil.AssertClearedCookie(t, w, middleware.RefreshCookieName)
	})

	t.Run("missing cookie", func(t *testing.T) {
		f := newAuthFixture(t, user)

		w := httptest.NewRecorder()
		f.handler.Refresh(w, httptest.NewRequest(http.MethodPost, "/api/token/refresh/", nil))

		testutil.AssertStatusCode(t, w, http.StatusUnauthorized)
		testutil.AssertNoCookie(t, w, middleware.AccessCookieName)
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		f := newAuthFixture(t, user)
		pair, err := f.tokens.Issue(user)
		require.NoError(t, err)

		req := testutil.WithCookies(httptest.NewRequest(http.MethodPost, "/api/token/refresh/", nil),
			&http.Cookie{Name: middleware.RefreshCookieName, Value: pair.Access})
		w := httptest.NewRecorder()
		f.handler.Refresh(w, req)

		testutil.AssertStatusCode(t, w, http.StatusUnauthorized)
		assert.Zero(t, f.revocations.Count())
	})

	t.Run("revocation store down", func(t *testing.T) {
		f := newAuthFixture(t, user)
		f.revocations.RevokeFunc = func(ctx context.Context, id string, ttl time.Duration) (bool, error) {
			return false, testutil.ErrMockUnavailable
		}
		pair, err := f.tokens.Issue(user)
		require.NoError(t, err)

		req := testutil.WithCookies(httptest.NewRequest(http.MethodPost, "/api/token/refresh/", nil),
			&http.Cookie{Name: middleware.RefreshCookieName, Value: pair.Refresh})
		w := httptest.NewRecorder()
		f.handler.Refresh(w, req)

		testutil.AssertStatusCode(t, w, http.StatusInternalServerError)
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	user := testutil.NewTestUser()

	t.Run("revokes refresh token", func(t *testing.T) {
		f := newAuthFixture(t, user)
		pair, err := f.tokens.Issue(user)
		require.NoError(t, err)

		req := testutil.WithCookies(httptest.NewRequest(http.MethodPost, "/api/logout/", nil),
			&http.Cookie{Name: middleware.RefreshCookieName, Value: pair.Refresh})
		w := httptest.NewRecorder()
		f.handler.Logout(w, req)

		testutil.AssertStatusCode(t, w, http.StatusOK)
		assert.JSONEq(t, `{"success":true}`, w.Body.String())
		testutil.AssertClearedCookie(t, w, middleware.AccessCookieName)
		testutil.AssertClearedCookie(t, w, middleware.RefreshCookieName)
		assert.Equal(t, 1, f.revocations.Count())
	})

	t.Run("anonymous", func(t *testing.T) {
		f := newAuthFixture(t)

		w := httptest.NewRecorder()
		f.handler.Logout(w, httptest.NewRequest(http.MethodPost, "/api/logout/", nil))

		testutil.AssertStatusCode(t, w, http.StatusOK)
		testutil.AssertClearedCookie(t, w, middleware.RefreshCookieName)
		assert.Zero(t, f.revocations.Count())
	})

	t.Run("revocation failure still clears cookies", func(t *testing.T) {
		f := newAuthFixture(t, user)
		f.revocations.RevokeFunc = func(ctx context.Context, id string, ttl time.Duration) (bool, error) {
			return false, testutil.ErrMockUnavailable
		}
		pair, err := f.tokens.Issue(user)
		require.NoError(t, err)

		req := testutil.WithCookies(httptest.NewRequest(http.MethodPost, "/api/logout/", nil),
			&http.Cookie{Name: middleware.RefreshCookieName, Value: pair.Refresh})
		w := httptest.NewRecorder()
		f.handler.Logout(w, req)

		testutil.AssertStatusCode(t, w, http.StatusOK)
		testutil.AssertClearedCookie(t, w, middleware.AccessCookieName)
	})
}

func TestAuthHandler_Me(t *testing.T) {
	user := testutil.NewTestUser()

	t.Run("authenticated", func(t *testing.T) {
		f := newAuthFixture(t, user)
		req := httptest.NewRequest(http.MethodGet, "/api/users/me/", nil)
		req = req.WithContext(middleware.WithClaims(req.Context(), &domain.TokenClaims{UserID: user.ID}))

		w := httptest.NewRecorder()
		f.handler.Me(w, req)

		testutil.AssertStatusCode(t, w, http.StatusOK)
		assert.Equal(t, api.UserIdentity{ID: user.ID, Username: user.Username, Email: user.Email},
			testutil.DecodeJSON[api.UserIdentity](t, w))
	})

	t.Run("deleted user", func(t *testing.T) {
		f := newAuthFixture(t)
		req := httptest.NewRequest(http.MethodGet, "/api/users/me/", nil)
		req = req.WithContext(middleware.WithClaims(req.Context(), &domain.TokenClaims{UserID: 999}))

		w := httptest.NewRecorder()
		f.handler.Me(w, req)

		testutil.AssertStatusCode(t, w, http.StatusUnauthorized)
	})

	t.Run("no claims", func(t *testing.T) {
		f := newAuthFixture(t, user)

		w := httptest.NewRecorder()
		f.handler.Me(w, httptest.NewRequest(http.MethodGet, "/api/users/me/", nil))

		testutil.AssertStatusCode(t, w, http.StatusUnauthorized)
	})
}

func TestAuthHandler_CSRF(t *testing.T) {
	f := newAuthFixture(t)
	h := middleware.CSRF(false)(http.HandlerFunc(f.handler.CSRF))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf/", nil))

	testutil.AssertStatusCode(t, w, http.StatusOK)
	cookie := testutil.AssertCookie(t, w, middleware.CSRFCookieName)
	require.NotNil(t, cookie)
	assert.Equal(t, cookie.Value, testutil.DecodeJSON[api.CSRFResponse](t, w).CSRFToken)
}
