// Package api holds the request and response schemas exchanged between the
// prediction backend and its clients. Both sides decode into these types so
// the wire contract is checked by the compiler instead of by convention.
package api

import "time"

// UserIdentity is the user record returned on login and identity checks.
type UserIdentity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// LoginRequest represents login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned by login and token refresh.
type LoginResponse struct {
	User UserIdentity `json:"user"`
}

// RegisterRequest represents registration request
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// RegisterResponse represents registration response
type RegisterResponse struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// CSRFResponse is the response for GET /api/csrf/.
type CSRFResponse struct {
	CSRFToken string `json:"csrf_token"`
}

// SuccessResponse is the body of endpoints that only acknowledge.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse is the body of non-validation failures.
type ErrorResponse struct {
	Error string `json:"error"`
	// RequestID is set on internal errors so callers can quote it.
	RequestID string `json:"request_id,omitempty"`
}

// CarAttributes are the inputs the price model is trained on.
type CarAttributes struct {
	Brand            string  `json:"brand"`
	CarModel         string  `json:"car_model"`
	YearOfProduction int     `json:"year_of_production"`
	Mileage          int     `json:"mileage"` // km
	FuelType         string  `json:"fuel_type"`
	Transmission     string  `json:"transmission"`
	Body             string  `json:"body"`
	EngineCapacity   float64 `json:"engine_capacity"` // dm3
	Power            int     `json:"power"`           // hp
	NumberOfDoors    int     `json:"number_of_doors"`
	Color            string  `json:"color"`
}

// PredictionResponse is a persisted prediction.
type PredictionResponse struct {
	ID     int64 `json:"id"`
	UserID int64 `json:"user"`
	CarAttributes
	PredictedPrice float64   `json:"predicted_price"`
	Timestamp      time.Time `json:"timestamp"`
}

// GuestPredictionResponse is a prediction that was not stored.
type GuestPredictionResponse struct {
	CarAttributes
	PredictedPrice float64   `json:"predicted_price"`
	Timestamp      time.Time `json:"timestamp"`
}

// IntRange is a closed range; nil bounds mean the dataset had no rows.
type IntRange struct {
	Min *int `json:"min"`
	Max *int `json:"max"`
}

// DropdownOptions lists the values the prediction form may offer.
type DropdownOptions struct {
	Brand            []string `json:"brand"`
	CarModel         []string `json:"car_model"`
	YearOfProduction IntRange `json:"year_of_production"`
	FuelType         []string `json:"fuel_type"`
	Transmission     []string `json:"transmission"`
	Body             []string `json:"body"`
	NumberOfDoors    IntRange `json:"number_of_doors"`
	Color            []string `json:"color"`
}

// BrandModelMapping maps a brand to its sorted models.
type BrandModelMapping map[string][]string

// HistoryPage is one page of a user's prediction history.
type HistoryPage struct {
	Count       int                  `json:"count"`
	TotalPages  int                  `json:"total_pages"`
	CurrentPage int                  `json:"current_page"`
	PageSize    int                  `json:"page_size"`
	Results     []PredictionResponse `json:"results"`
	Sort        string               `json:"sort,omitempty"`
	Filters     map[string]string    `json:"filters"`
}

// RootResponse is the API index.
type RootResponse struct {
	Status    string            `json:"status"`
	Message   string            `json:"message"`
	Endpoints map[string]string `json:"endpoints"`
}
