package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"carprice/internal/api"
	"carprice/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

// Counter for generating unique IDs
var idCounter atomic.Int64

// UserOptions allows customizing user fixture creation
type UserOptions struct {
	ID        int64
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
	CreatedAt time.Time
}

// NewTestUser creates a test user with sensible defaults.
// Pass options to override specific fields.
func NewTestUser(opts ...func(*UserOptions)) *domain.User {
	id := idCounter.Add(1)
	o := &UserOptions{
		ID:        id,
		Username:  fmt.Sprintf("testuser%d", id),
		FirstName: "Test",
		LastName:  "User",
	}

	for _, opt := range opts {
		opt(o)
	}

	// Set email based on username if not provided
	if o.Email == "" {
		o.Email = o.Username + "@example.com"
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}

	hash := "$2a$10$test.hash.for.testing.purposes.only"
	if o.Password != "" {
		b, err := bcrypt.GenerateFromPassword([]byte(o.Password), bcrypt.MinCost)
		if err != nil {
			panic(err)
		}
		hash = string(b)
	}

	return &domain.User{
		ID:           o.ID,
		Username:     o.Username,
		Email:        o.Email,
		FirstName:    o.FirstName,
		LastName:     o.LastName,
		PasswordHash: hash,
		CreatedAt:    o.CreatedAt,
	}
}

// WithUserID sets the user ID
func WithUserID(id int64) func(*UserOptions) {
	return func(o *UserOptions) {
		o.ID = id
	}
}

// WithUsername sets the username
func WithUsername(username string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.Username = username
	}
}

// WithEmail sets the email
func WithEmail(email string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.Email = email
	}
}

// WithPassword stores a real bcrypt hash of password
func WithPassword(password string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.Password = password
	}
}

// NewTestAttributes returns a complete, valid set of car attributes
func NewTestAttributes() api.CarAttributes {
	return api.CarAttributes{
		Brand:            "Volkswagen",
		CarModel:         "Golf",
		YearOfProduction: 2016,
		Mileage:          98000,
		FuelType:         "Petrol",
		Transmission:     "Manual",
		Body:             "Hatchback",
		EngineCapacity:   1.4,
		Power:            125,
		NumberOfDoors:    5,
		Color:            "Blue",
	}
}

// PredictionOptions allows customizing prediction fixture creation
type PredictionOptions struct {
	UserID    int64
	Brand     string
	Price     float64
	CreatedAt time.Time
}

// NewTestPrediction creates an unsaved prediction for a user
func NewTestPrediction(opts ...func(*PredictionOptions)) *domain.Prediction {
	o := &PredictionOptions{
		UserID:    1,
		Price:     44000,
		CreatedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(o)
	}

	attrs := NewTestAttributes()
	if o.Brand != "" {
		attrs.Brand = o.Brand
	}
	return &domain.Prediction{
		UserID:         o.UserID,
		Attributes:     attrs,
		PredictedPrice: o.Price,
		CreatedAt:      o.CreatedAt,
	}
}

func WithPredictionUserID(id int64) func(*PredictionOptions) {
	return func(o *PredictionOptions) {
		o.UserID = id
	}
}

func WithBrand(brand string) func(*PredictionOptions) {
	return func(o *PredictionOptions) {
		o.Brand = brand
	}
}

func WithPrice(price float64) func(*PredictionOptions) {
	return func(o *PredictionOptions) {
		o.Price = price
	}
}

func WithCreatedAt(t time.Time) func(*PredictionOptions) {
	return func(o *PredictionOptions) {
		o.CreatedAt = t
	}
}
