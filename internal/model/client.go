// Package model calls the external price model server.
package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"carprice/internal/api"
	"carprice/internal/domain"
	"carprice/internal/observability"
)

const (
	defaultAttempts = 3
	maxBodyBytes    = 1 << 20
)

type predictRequest struct {
	Instances []api.CarAttributes `json:"instances"`
}

type predictResponse struct {
	Predictions []float64 `json:"predictions"`
}

// Client implements domain.PricePredictor against a model server that
// predicts log1p(price).
type Client struct {
	baseURL    string
	httpClient *http.Client
	attempts   int
	backoff    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBackoff sets the base delay between attempts. Attempt n waits n*d.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new model server client
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		attempts:   defaultAttempts,
		backoff:    time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Predict returns the estimated price of the car, rounded down to a whole
// currency unit.
func (c *Client) Predict(ctx context.Context, attrs api.CarAttributes) (float64, error) {
	start := time.Now()
	price, err := c.predict(ctx, attrs)

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	observability.ModelRequestDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return price, err
}

func (c *Client) predict(ctx context.Context, attrs api.CarAttributes) (float64, error) {
	body, err := json.Marshal(predictRequest{Instances: []api.CarAttributes{attrs}})
	if err != nil {
		return 0, fmt.Errorf("failed to encode request: %w", err)
	}

	// Retry with linear backoff on network errors and 5xx
	var (
		lastErr error
		tried   int
	)
	for attempt := 1; attempt <= c.attempts; attempt++ {
		tried = attempt
		raw, retry, err := c.do(ctx, body)
		if err == nil {
			return parsePrediction(raw)
		}
		lastErr = err
		if !retry || attempt == c.attempts {
			break
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(time.Duration(attempt) * c.backoff):
		}
	}

	return 0, fmt.Errorf("%w: failed after %d attempts: %v", domain.ErrModelUnavailable, tried, lastErr)
}

// do performs one request. retry reports whether a failure is transient.
func (c *Client) do(ctx context.Context, body []byte) (raw []byte, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/predict", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	raw, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return raw, false, nil
}

// parsePrediction converts log1p(price) back to a price.
func parsePrediction(raw []byte) (float64, error) {
	var resp predictResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidModelResponse, err)
	}
	if len(resp.Predictions) == 0 {
		return 0, fmt.Errorf("%w: no predictions", domain.ErrInvalidModelResponse)
	}

	p := resp.Predictions[0]
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, fmt.Errorf("%w: non-finite prediction", domain.ErrInvalidModelResponse)
	}
	price := math.Floor(math.Expm1(p))
	if math.IsInf(price, 0) || price < 0 {
		return 0, fmt.Errorf("%w: price out of range", domain.ErrInvalidModelResponse)
	}
	return price, nil
}

// IsModelError reports whether err came from the model server.
func IsModelError(err error) bool {
	return errors.Is(err, domain.ErrModelUnavailable) || errors.Is(err, domain.ErrInvalidModelResponse)
}
