package client

import (
	"context"
	"net/http"

	"carprice/internal/api"
)

// Login exchanges credentials for session cookies and returns the user.
func (c *Client) Login(ctx context.Context, username, password string) (*api.UserIdentity, error) {
	var resp api.LoginResponse
	err := c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   c.paths.Login,
		Body:   api.LoginRequest{Username: username, Password: password},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) error {
	if fe := req.Validate(); fe.Has() {
		return &APIError{
			StatusCode: http.StatusBadRequest,
			Method:     http.MethodPost,
			Path:       c.paths.Register,
			Fields:     fe,
		}
	}
	return c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   c.paths.Register,
		Body:   req,
	}, nil)
}

// Logout asks the backend to end the session and clear its cookies.
func (c *Client) Logout(ctx context.Context) error {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: c.paths.Logout}, nil)
}

// CurrentUser is the identity check. It never triggers a refresh so an
// anonymous caller gets a plain 401.
func (c *Client) CurrentUser(ctx context.Context) (*api.UserIdentity, error) {
	var user api.UserIdentity
	err := c.Do(ctx, &Request{
		Method:      http.MethodGet,
		Path:        c.paths.Me,
		SkipRefresh: true,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CSRFToken fetches a CSRF token; the backend also sets it as a cookie.
func (c *Client) CSRFToken(ctx context.Context) (string, error) {
	var resp api.CSRFResponse
	if err := c.Do(ctx, &Request{Method: http.MethodGet, Path: "/api/csrf/"}, &resp); err != nil {
		return "", err
	}
	return resp.CSRFToken, nil
}

// Predict asks for a price. Signed-in users get a stored prediction;
// guests get the price only and a zero ID.
func (c *Client) Predict(ctx context.Context, attrs api.CarAttributes) (*api.PredictionResponse, error) {
	if fe := attrs.Validate(); fe.Has() {
		return nil, &APIError{StatusCode: http.StatusBadRequest, Method: http.MethodPost, Path: "/api/predict/", Fields: fe}
	}
	var resp api.PredictionResponse
	err := c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   "/api/predict/",
		Body:   attrs,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// PredictGuest asks for a price without storing it.
func (c *Client) PredictGuest(ctx context.Context, attrs api.CarAttributes) (*api.GuestPredictionResponse, error) {
	if fe := attrs.Validate(); fe.Has() {
		return nil, &APIError{StatusCode: http.StatusBadRequest, Method: http.MethodPost, Path: "/api/predict/guest/", Fields: fe}
	}
	var resp api.GuestPredictionResponse
	err := c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   "/api/predict/guest/",
		Body:   attrs,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// History returns one page of the caller's predictions.
func (c *Client) History(ctx context.Context, q api.HistoryQuery) (*api.HistoryPage, error) {
	var page api.HistoryPage
	err := c.Do(ctx, &Request{
		Method: http.MethodGet,
		Path:   "/api/predictions/",
		Query:  q.Values(),
	}, &page)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// DropdownOptions returns the values the prediction form offers.
func (c *Client) DropdownOptions(ctx context.Context) (*api.DropdownOptions, error) {
	var opts api.DropdownOptions
	if err := c.Do(ctx, &Request{Method: http.MethodGet, Path: "/api/dropdown_options/"}, &opts); err != nil {
		return nil, err
	}
	return &opts, nil
}

// BrandModelMapping returns the models known for each brand.
func (c *Client) BrandModelMapping(ctx context.Context) (api.BrandModelMapping, error) {
	var mapping api.BrandModelMapping
	if err := c.Do(ctx, &Request{Method: http.MethodGet, Path: "/api/brand_model_mapping/"}, &mapping); err != nil {
		return nil, err
	}
	return mapping, nil
}
