// Package authstate tracks whether the process has a signed-in user.
//
// A Store is created once at startup, next to the API client it observes,
// and lives for the rest of the process. Close exists so tests can detach a
// store from a shared client.
package authstate

import (
	"context"
	"log/slog"
	"sync"

	"carprice/internal/api"
	"carprice/internal/client"
)

// Status is the coarse authentication state.
type Status int

const (
	StatusLoading Status = iota
	StatusAuthenticated
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	}
	return "unknown"
}

// Session is a point-in-time copy of the store's state. User is nil unless
// Status is StatusAuthenticated.
type Session struct {
	Status Status
	User   *api.UserIdentity
}

func (s Session) Authenticated() bool { return s.Status == StatusAuthenticated }
func (s Session) Loading() bool       { return s.Status == StatusLoading }

// Backend is the part of the API client the store needs.
type Backend interface {
	CurrentUser(ctx context.Context) (*api.UserIdentity, error)
	Logout(ctx context.Context) error
	Subscribe(o client.LogoutObserver) (unsubscribe func())
}

// Store holds the session and notifies listeners on every transition.
type Store struct {
	backend Backend
	logger  *slog.Logger

	mu        sync.RWMutex
	session   Session
	listeners map[int]func(Session)
	nextID    int

	unsubscribe func()
}

// New creates a store in the loading state and subscribes it to the
// backend's forced-logout notifications.
func New(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		backend:   backend,
		logger:    logger,
		session:   Session{Status: StatusLoading},
		listeners: make(map[int]func(Session)),
	}
	s.unsubscribe = backend.Subscribe(s)
	return s
}

// Init runs the identity check. Any failure, including a transport error,
// resolves to anonymous.
func (s *Store) Init(ctx context.Context) Session {
	s.set(Session{Status: StatusLoading})

	user, err := s.backend.CurrentUser(ctx)
	if err != nil {
		s.logger.Debug("identity check failed", slog.String("error", err.Error()))
		return s.set(Session{Status: StatusAnonymous})
	}
	return s.set(Session{Status: StatusAuthenticated, User: user})
}

// Login records an identity the backend already returned. It makes no
// network call.
func (s *Store) Login(user api.UserIdentity) Session {
	return s.set(Session{Status: StatusAuthenticated, User: &user})
}

// Logout asks the backend to end the session and then clears local state
// whatever the backend answered.
func (s *Store) Logout(ctx context.Context) Session {
	if err := s.backend.Logout(ctx); err != nil {
		s.logger.Warn("logout request failed", slog.String("error", err.Error()))
	}
	return s.set(Session{Status: StatusAnonymous})
}

// ForcedLogout implements client.LogoutObserver.
func (s *Store) ForcedLogout(err error) {
	s.logger.Info("session ended by failed refresh", slog.String("error", err.Error()))
	s.set(Session{Status: StatusAnonymous})
}

// Snapshot returns the current session.
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.clone()
}

// OnChange registers fn to be called after every transition. fn runs on
// the goroutine that caused the transition.
func (s *Store) OnChange(fn func(Session)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Close detaches the store from the backend.
func (s *Store) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *Store) set(next Session) Session {
	s.mu.Lock()
	s.session = next.clone()
	listeners := make([]func(Session), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(next.clone())
	}
	return next.clone()
}

func (s Session) clone() Session {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}
