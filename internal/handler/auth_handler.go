package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"carprice/internal/api"
	"carprice/internal/domain"
	"carprice/internal/middleware"
	"carprice/internal/observability"
	"carprice/internal/service"
)

// AuthHandler handles authentication endpoints. Sessions are carried in two
// HttpOnly cookies; the response bodies never contain tokens.
type AuthHandler struct {
	authService   *service.AuthService
	secureCookies bool
	now           func() time.Time
}

// NewAuthHandler creates a new authentication handler. secureCookies should
// be true whenever the API is served over HTTPS.
func NewAuthHandler(authService *service.AuthService, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		secureCookies: secureCookies,
		now:           time.Now,
	}
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.authService.Register(r.Context(), req)
	if err != nil {
		var fe api.FieldErrors
		if errors.As(err, &fe) {
			writeFieldErrors(w, fe)
			return
		}
		writeInternalError(w, r, "registration failed", err)
		return
	}

	writeJSON(w, http.StatusCreated, api.RegisterResponse{
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	})
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, pair, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		writeInternalError(w, r, "login failed", err)
		return
	}

	h.setSessionCookies(w, pair)
	writeJSON(w, http.StatusOK, api.LoginResponse{User: identity(user)})
}

// Refresh rotates the session cookies using the refresh cookie.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.RefreshCookieName)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "Refresh token not found")
		return
	}

	user, pair, err := h.authService.Refresh(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, domain.ErrTokenInvalid) || errors.Is(err, domain.ErrTokenRevoked) {
			h.clearSessionCookies(w)
			writeError(w, http.StatusUnauthorized, "Token is invalid or expired")
			return
		}
		writeInternalError(w, r, "token refresh failed", err)
		return
	}

	h.setSessionCookies(w, pair)
	writeJSON(w, http.StatusOK, api.LoginResponse{User: identity(user)})
}

// Logout revokes the refresh token, if any, and clears both cookies. It
// succeeds for anonymous callers too.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.RefreshCookieName); err == nil {
		if err := h.authService.Logout(r.Context(), cookie.Value); err != nil {
			observability.FromContext(r.Context()).Error("failed to revoke refresh token",
				slog.String("error", err.Error()))
		}
	}

	h.clearSessionCookies(w)
	writeJSON(w, http.StatusOK, api.SuccessResponse{Success: true})
}

// Me returns the current user
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
		return
	}

	user, err := h.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, "User not found")
			return
		}
		writeInternalError(w, r, "failed to load current user", err)
		return
	}

	writeJSON(w, http.StatusOK, identity(user))
}

// CSRF returns the token the CSRF middleware put in force for this request.
func (h *AuthHandler) CSRF(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.CSRFResponse{CSRFToken: middleware.GetCSRFToken(r.Context())})
}

func (h *AuthHandler) setSessionCookies(w http.ResponseWriter, pair *domain.TokenPair) {
	now := h.now()
	http.SetCookie(w, h.cookie(middleware.AccessCookieName, pair.Access, pair.AccessExpiresAt.Sub(now)))
	http.SetCookie(w, h.cookie(middleware.RefreshCookieName, pair.Refresh, pair.RefreshExpiresAt.Sub(now)))
}

func (h *AuthHandler) clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, h.cookie(middleware.AccessCookieName, "", -1))
	http.SetCookie(w, h.cookie(middleware.RefreshCookieName, "", -1))
}

func (h *AuthHandler) cookie(name, value string, ttl time.Duration) *http.Cookie {
	maxAge := -1
	if ttl > 0 {
		maxAge = max(1, int(ttl.Seconds()))
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

func identity(u *domain.User) api.UserIdentity {
	return api.UserIdentity{ID: u.ID, Username: u.Username, Email: u.Email}
}
