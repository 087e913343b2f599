package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"carprice/internal/api"
)

var (
	// ErrUnauthorized matches any APIError with status 401.
	ErrUnauthorized = errors.New("not authenticated")
	// ErrRefreshFailed wraps the failure of the session refresh call.
	ErrRefreshFailed = errors.New("session refresh failed")
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
	// Fields is set for validation failures.
	Fields api.FieldErrors
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" && e.Fields.Has() {
		msg = e.Fields.Error()
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, msg)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// IsValidation reports whether the backend rejected the input field by field.
func (e *APIError) IsValidation() bool {
	return e.StatusCode == http.StatusBadRequest && e.Fields.Has()
}

// RefreshError is returned to every request that was waiting on a refresh
// that failed.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("%s: %v", ErrRefreshFailed, e.Err)
}

func (e *RefreshError) Unwrap() []error {
	return []error{ErrRefreshFailed, e.Err}
}

// parseAPIError builds an APIError from a response body. Bodies are either
// {"error": "..."} or a field error map.
func parseAPIError(method, path string, status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Method: method, Path: path}
	if len(body) == 0 {
		return apiErr
	}

	var generic map[string]json.RawMessage
	if err := json.Unmarshal(body, &generic); err != nil {
		apiErr.Message = string(body)
		return apiErr
	}

	if raw, ok := generic["error"]; ok {
		_ = json.Unmarshal(raw, &apiErr.Message)
		return apiErr
	}

	fields := api.FieldErrors{}
	for name, raw := range generic {
		var msgs []string
		if err := json.Unmarshal(raw, &msgs); err == nil {
			fields[name] = msgs
			continue
		}
		var msg string
		if err := json.Unmarshal(raw, &msg); err == nil {
			fields[name] = []string{msg}
		}
	}
	if fields.Has() {
		apiErr.Fields = fields
	}
	return apiErr
}
