package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"carprice/internal/api"
	"carprice/internal/domain"
	"carprice/internal/observability"

	"golang.org/x/crypto/bcrypt"
)

const defaultBcryptCost = 12

// TokenIssuer issues and verifies access and refresh tokens.
type TokenIssuer interface {
	Issue(user *domain.User) (*domain.TokenPair, error)
	Parse(token string, want domain.TokenType) (*domain.TokenClaims, error)
}

type AuthService struct {
	userRepo    domain.UserRepository
	tokens      TokenIssuer
	revocations domain.RevocationStore
	bcryptCost  int
	now         func() time.Time
}

type AuthOption func(*AuthService)

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) AuthOption {
	return func(s *AuthService) { s.bcryptCost = cost }
}

func NewAuthService(userRepo domain.UserRepository, tokens TokenIssuer, revocations domain.RevocationStore, opts ...AuthOption) *AuthService {
	s := &AuthService{
		userRepo:    userRepo,
		tokens:      tokens,
		revocations: revocations,
		bcryptCost:  defaultBcryptCost,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register validates req and creates the account. Validation and
// uniqueness problems are returned as api.FieldErrors.
func (s *AuthService) Register(ctx context.Context, req api.RegisterRequest) (*domain.User, error) {
	fe := req.Validate()
	if fe.Has() {
		return nil, fe
	}

	if _, err := s.userRepo.GetByUsername(ctx, req.Username); err == nil {
		fe.Add("username", "A user with that username already exists.")
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	if _, err := s.userRepo.GetByEmail(ctx, req.Email); err == nil {
		fe.Add("email", "A user with that email already exists.")
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	if fe.Has() {
		return nil, fe
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Username:     req.Username,
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: string(hashedPassword),
	}

	// A concurrent registration can still win the race past the lookups above.
	switch err := s.userRepo.Create(ctx, user); {
	case errors.Is(err, domain.ErrUsernameExists):
		fe.Add("username", "A user with that username already exists.")
		return nil, fe
	case errors.Is(err, domain.ErrEmailExists):
		fe.Add("email", "A user with that email already exists.")
		return nil, fe
	case err != nil:
		return nil, err
	}

	observability.FromContext(ctx).Info("user registered",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username))
	return user, nil
}

// Login verifies credentials and issues a token pair.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, *domain.TokenPair, error) {
	if username == "" || password == "" {
		return nil, nil, domain.ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, nil, domain.ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword(
		[]byte(user.PasswordHash), []byte(password),
	); err != nil {
		return nil, nil, domain.ErrInvalidCredentials
	}

	pair, err := s.tokens.Issue(user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// revoked first, so of several concurrent refreshes with the same token only
// one succeeds.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (user *domain.User, pair *domain.TokenPair, err error) {
	outcome := "ok"
	defer func() {
		observability.TokenRefreshTotal.WithLabelValues(outcome).Inc()
	}()

	claims, err := s.tokens.Parse(refreshToken, domain.RefreshToken)
	if err != nil {
		outcome = "invalid"
		return nil, nil, err
	}

	won, err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Sub(s.now()))
	if err != nil {
		outcome = "error"
		return nil, nil, fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	if !won {
		outcome = "revoked"
		observability.FromContext(ctx).Warn("refresh token reused",
			slog.Int64("user_id", claims.UserID),
			slog.String("jti", claims.ID))
		return nil, nil, domain.ErrTokenRevoked
	}

	user, err = s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			outcome = "invalid"
			return nil, nil, domain.ErrTokenInvalid
		}
		outcome = "error"
		return nil, nil, err
	}

	pair, err = s.tokens.Issue(user)
	if err != nil {
		outcome = "error"
		return nil, nil, err
	}
	return user, pair, nil
}

// Logout revokes refreshToken if it is still valid. Invalid or absent
// tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	claims, err := s.tokens.Parse(refreshToken, domain.RefreshToken)
	if err != nil {
		return nil
	}
	if _, err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Sub(s.now())); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

func (s *AuthService) GetUserByID(ctx context.Context, userID int64) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}
