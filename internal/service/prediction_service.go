package service

import (
	"context"
	"log/slog"
	"math"
	"time"

	"carprice/internal/api"
	"carprice/internal/domain"
	"carprice/internal/observability"
)

const publishTimeout = 5 * time.Second

type PredictionService struct {
	repo      domain.PredictionRepository
	model     domain.PricePredictor
	publisher domain.PredictionPublisher
	now       func() time.Time
}

// NewPredictionService wires the model and storage. publisher may be nil.
func NewPredictionService(repo domain.PredictionRepository, model domain.PricePredictor, publisher domain.PredictionPublisher) *PredictionService {
	return &PredictionService{
		repo:      repo,
		model:     model,
		publisher: publisher,
		now:       time.Now,
	}
}

// Predict prices attrs and stores the result in userID's history.
func (s *PredictionService) Predict(ctx context.Context, userID int64, attrs api.CarAttributes) (*domain.Prediction, error) {
	price, err := s.model.Predict(ctx, attrs)
	if err != nil {
		return nil, err
	}

	p := &domain.Prediction{
		UserID:         userID,
		Attributes:     attrs,
		PredictedPrice: price,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	observability.PredictionsTotal.WithLabelValues("stored").Inc()

	s.publish(ctx, p)
	return p, nil
}

// publish announces p without failing the request: the prediction is
// already stored.
func (s *PredictionService) publish(ctx context.Context, p *domain.Prediction) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.PublishPrediction(ctx, p); err != nil {
		observability.FromContext(ctx).Warn("failed to publish prediction event",
			slog.Int64("prediction_id", p.ID),
			slog.String("error", err.Error()))
	}
}

// PredictGuest prices attrs without storing anything.
func (s *PredictionService) PredictGuest(ctx context.Context, attrs api.CarAttributes) (*api.GuestPredictionResponse, error) {
	price, err := s.model.Predict(ctx, attrs)
	if err != nil {
		return nil, err
	}
	observability.PredictionsTotal.WithLabelValues("guest").Inc()

	return &api.GuestPredictionResponse{
		CarAttributes:  attrs,
		PredictedPrice: price,
		Timestamp:      s.now().UTC(),
	}, nil
}

// History returns one page of userID's predictions. A page past the end is
// answered with the first page.
func (s *PredictionService) History(ctx context.Context, userID int64, q api.HistoryQuery) (*api.HistoryPage, error) {
	if q.PageSize <= 0 {
		q.PageSize = api.DefaultPageSize
	}
	q.PageSize = min(q.PageSize, api.MaxPageSize)
	// a page whose offset would overflow is past any real end
	if q.Page <= 0 || q.Page > math.MaxInt/q.PageSize {
		q.Page = 1
	}

	f := historyFilter(userID, q)
	results, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}

	if q.Page > 1 && q.Page > totalPages(total, q.PageSize) {
		q.Page = 1
		f.Offset = 0
		if results, total, err = s.repo.List(ctx, f); err != nil {
			return nil, err
		}
	}

	page := &api.HistoryPage{
		Count:       total,
		TotalPages:  totalPages(total, q.PageSize),
		CurrentPage: q.Page,
		PageSize:    q.PageSize,
		Results:     make([]api.PredictionResponse, 0, len(results)),
		Sort:        q.Sort,
		Filters:     map[string]string{},
	}
	for _, p := range results {
		page.Results = append(page.Results, ToPredictionResponse(p))
	}
	return page, nil
}

// historyFilter converts inclusive calendar dates into a half-open UTC range.
func historyFilter(userID int64, q api.HistoryQuery) domain.PredictionFilter {
	f := domain.PredictionFilter{
		UserID:   userID,
		MinPrice: q.MinPrice,
		MaxPrice: q.MaxPrice,
		Brand:    q.Brand,
		CarModel: q.CarModel,
		Sort:     q.Sort,
		Limit:    q.PageSize,
		Offset:   (q.Page - 1) * q.PageSize,
	}
	if f.Sort == "" {
		f.Sort = api.SortTimestampDesc
	}
	if !q.StartDate.IsZero() {
		f.From = utcDay(q.StartDate)
	}
	if !q.EndDate.IsZero() {
		f.Until = utcDay(q.EndDate).AddDate(0, 0, 1)
	}
	return f
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func totalPages(total, pageSize int) int {
	if total <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

// ToPredictionResponse renders a stored prediction.
func ToPredictionResponse(p *domain.Prediction) api.PredictionResponse {
	return api.PredictionResponse{
		ID:             p.ID,
		UserID:         p.UserID,
		CarAttributes:  p.Attributes,
		PredictedPrice: p.PredictedPrice,
		Timestamp:      p.CreatedAt,
	}
}
