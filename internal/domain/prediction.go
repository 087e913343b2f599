package domain

import (
	"context"
	"errors"
	"time"

	"carprice/internal/api"
)

var (
	ErrModelUnavailable     = errors.New("model unavailable")
	ErrInvalidModelResponse = errors.New("invalid model response")
)

// Prediction is a stored price estimate for one car.
type Prediction struct {
	ID             int64             `json:"id"`
	UserID         int64             `json:"user_id"`
	Attributes     api.CarAttributes `json:"attributes"`
	PredictedPrice float64           `json:"predicted_price"`
	CreatedAt      time.Time         `json:"created_at"`
}

// PredictionFilter selects a page of one user's history. Zero values
// disable the corresponding filter.
type PredictionFilter struct {
	UserID   int64
	From     time.Time // inclusive
	Until    time.Time // exclusive
	MinPrice *float64
	MaxPrice *float64
	Brand    string
	CarModel string
	Sort     string
	Limit    int
	Offset   int
}

// PredictionRepository defines the interface for prediction data access
type PredictionRepository interface {
	Create(ctx context.Context, p *Prediction) error
	// List returns the matching page and the total number of matches.
	List(ctx context.Context, f PredictionFilter) ([]*Prediction, int, error)
}

// PricePredictor turns car attributes into a price.
type PricePredictor interface {
	Predict(ctx context.Context, attrs api.CarAttributes) (float64, error)
}

// PredictionPublisher announces stored predictions.
type PredictionPublisher interface {
	PublishPrediction(ctx context.Context, p *Prediction) error
}
