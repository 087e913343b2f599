// Package testutil provides shared test utilities, mocks, and fixtures
// for testing the carprice application.
package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"carprice/internal/api"
	"carprice/internal/domain"
)

// Common test errors
var (
	ErrMockNotImplemented = errors.New("mock function not implemented")
	ErrMockUnavailable    = errors.New("mock: unavailable")
)

// MockUserRepository implements domain.UserRepository for testing
type MockUserRepository struct {
	mu     sync.RWMutex
	nextID int64

	// Function overrides - set these to customize behavior
	CreateFunc        func(ctx context.Context, user *domain.User) error
	GetByIDFunc       func(ctx context.Context, id int64) (*domain.User, error)
	GetByUsernameFunc func(ctx context.Context, username string) (*domain.User, error)
	GetByEmailFunc    func(ctx context.Context, email string) (*domain.User, error)

	// In-memory storage for simple tests
	Users map[int64]*domain.User
}

// NewMockUserRepository creates a new MockUserRepository with initialized maps
func NewMockUserRepository(users ...*domain.User) *MockUserRepository {
	m := &MockUserRepository{Users: make(map[int64]*domain.User)}
	for _, u := range users {
		m.Users[u.ID] = u
		m.nextID = max(m.nextID, u.ID)
	}
	return m
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Users == nil {
		m.Users = make(map[int64]*domain.User)
	}

	for _, u := range m.Users {
		if u.Username == user.Username {
			return domain.ErrUsernameExists
		}
		if u.Email == user.Email {
			return domain.ErrEmailExists
		}
	}

	m.nextID++
	user.ID = m.nextID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	m.Users[user.ID] = user
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if user, ok := m.Users[id]; ok {
		return user, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.Users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.Users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// MockPredictionRepository implements domain.PredictionRepository for testing.
// The in-memory List honours user, brand, sort and paging only.
type MockPredictionRepository struct {
	mu     sync.Mutex
	nextID int64

	// Function overrides
	CreateFunc func(ctx context.Context, p *domain.Prediction) error
	ListFunc   func(ctx context.Context, f domain.PredictionFilter) ([]*domain.Prediction, int, error)

	Predictions []*domain.Prediction
	Filters     []domain.PredictionFilter
}

func NewMockPredictionRepository() *MockPredictionRepository {
	return &MockPredictionRepository{}
}

func (m *MockPredictionRepository) Create(ctx context.Context, p *domain.Prediction) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	p.ID = m.nextID
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m.Predictions = append(m.Predictions, p)
	return nil
}

func (m *MockPredictionRepository) List(ctx context.Context, f domain.PredictionFilter) ([]*domain.Prediction, int, error) {
	m.mu.Lock()
	m.Filters = append(m.Filters, f)
	m.mu.Unlock()

	if m.ListFunc != nil {
		return m.ListFunc(ctx, f)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*domain.Prediction
	for _, p := range m.Predictions {
		if p.UserID != f.UserID {
			continue
		}
		if f.Brand != "" && p.Attributes.Brand != f.Brand {
			continue
		}
		matched = append(matched, p)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch f.Sort {
		case api.SortTimestampAsc:
			return a.CreatedAt.Before(b.CreatedAt)
		case api.SortPriceAsc:
			return a.PredictedPrice < b.PredictedPrice
		case api.SortPriceDesc:
			return a.PredictedPrice > b.PredictedPrice
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	})

	total := len(matched)
	start := min(f.Offset, total)
	end := min(start+f.Limit, total)
	return append([]*domain.Prediction{}, matched[start:end]...), total, nil
}

// LastFilter returns the most recent filter passed to List.
func (m *MockPredictionRepository) LastFilter() domain.PredictionFilter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Filters) == 0 {
		return domain.PredictionFilter{}
	}
	return m.Filters[len(m.Filters)-1]
}

// MockPredictor implements domain.PricePredictor for testing
type MockPredictor struct {
	PredictFunc func(ctx context.Context, attrs api.CarAttributes) (float64, error)
	Price       float64

	mu    sync.Mutex
	Calls []api.CarAttributes
}

func (m *MockPredictor) Predict(ctx context.Context, attrs api.CarAttributes) (float64, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, attrs)
	m.mu.Unlock()

	if m.PredictFunc != nil {
		return m.PredictFunc(ctx, attrs)
	}
	return m.Price, nil
}

// MockPredictionPublisher implements domain.PredictionPublisher for testing
type MockPredictionPublisher struct {
	mu sync.Mutex

	PublishFunc func(ctx context.Context, p *domain.Prediction) error
	Published   []*domain.Prediction
}

func NewMockPredictionPublisher() *MockPredictionPublisher {
	return &MockPredictionPublisher{}
}

func (m *MockPredictionPublisher) PublishPrediction(ctx context.Context, p *domain.Prediction) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = append(m.Published, p)
	return nil
}

// GetPublished returns a copy of the published predictions
func (m *MockPredictionPublisher) GetPublished() []*domain.Prediction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Prediction(nil), m.Published...)
}

// MockRevocationStore implements domain.RevocationStore in memory
type MockRevocationStore struct {
	mu sync.Mutex

	RevokeFunc    func(ctx context.Context, id string, ttl time.Duration) (bool, error)
	IsRevokedFunc func(ctx context.Context, id string) (bool, error)

	Revoked map[string]time.Duration
}

func NewMockRevocationStore() *MockRevocationStore {
	return &MockRevocationStore{Revoked: make(map[string]time.Duration)}
}

func (m *MockRevocationStore) Revoke(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if m.RevokeFunc != nil {
		return m.RevokeFunc(ctx, id, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.Revoked[id]; ok {
		return false, nil
	}
	m.Revoked[id] = ttl
	return true, nil
}

func (m *MockRevocationStore) IsRevoked(ctx context.Context, id string) (bool, error) {
	if m.IsRevokedFunc != nil {
		return m.IsRevokedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.Revoked[id]
	return ok, nil
}

// Count returns how many ids have been revoked
func (m *MockRevocationStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Revoked)
}

// MockCache implements domain.Cache by storing values as-is
type MockCache struct {
	mu sync.Mutex

	GetFunc func(ctx context.Context, key string, dst any) (bool, error)
	SetFunc func(ctx context.Context, key string, value any, ttl time.Duration) error

	Values map[string]any
	TTLs   map[string]time.Duration
}

func NewMockCache() *MockCache {
	return &MockCache{Values: make(map[string]any), TTLs: make(map[string]time.Duration)}
}

func (m *MockCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key, dst)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.Values[key]
	if !ok {
		return false, nil
	}
	switch d := dst.(type) {
	case *api.DropdownOptions:
		*d = v.(api.DropdownOptions)
	case *api.BrandModelMapping:
		*d = v.(api.BrandModelMapping)
	default:
		return false, ErrMockNotImplemented
	}
	return true, nil
}

func (m *MockCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Values[key] = value
	m.TTLs[key] = ttl
	return nil
}
