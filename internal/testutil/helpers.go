package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"carprice/internal/api"
)

// AssertStatusCode fails if the response status code doesn't match expected
func AssertStatusCode(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertCookie fails if the response doesn't set a cookie with the given name
func AssertCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Errorf("expected cookie %q not found", name)
	return nil
}

// AssertClearedCookie fails unless the response expires the named cookie
func AssertClearedCookie(t *testing.T, w *httptest.ResponseRecorder, name string) {
	t.Helper()
	c := AssertCookie(t, w, name)
	if c != nil && (c.Value != "" || c.MaxAge >= 0) {
		t.Errorf("cookie %q not cleared: value=%q max-age=%d", name, c.Value, c.MaxAge)
	}
}

// AssertNoCookie fails if the response sets the named cookie at all
func AssertNoCookie(t *testing.T, w *httptest.ResponseRecorder, name string) {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			t.Errorf("unexpected cookie %q with value %q", name, c.Value)
		}
	}
}

// AssertFieldErrors fails unless the body is a field error map with
// exactly the given fields.
func AssertFieldErrors(t *testing.T, w *httptest.ResponseRecorder, fields ...string) api.FieldErrors {
	t.Helper()
	AssertStatusCode(t, w, http.StatusBadRequest)

	var fe api.FieldErrors
	if err := json.Unmarshal(w.Body.Bytes(), &fe); err != nil {
		t.Fatalf("failed to decode field errors: %v. Body: %s", err, w.Body.String())
	}
	if len(fe) != len(fields) {
		t.Errorf("expected fields %v, got %v", fields, fe.Fields())
	}
	for _, f := range fields {
		if len(fe[f]) == 0 {
			t.Errorf("expected an error for field %q, got %v", f, fe)
		}
	}
	return fe
}

// NewJSONRequest creates a new HTTP request with JSON body
func NewJSONRequest(t *testing.T, method, url string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			if err := json.NewEncoder(&buf).Encode(body); err != nil {
				t.Fatalf("failed to marshal request body: %v", err)
			}
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithCookies adds cookies to req and returns it
func WithCookies(req *http.Request, cookies ...*http.Cookie) *http.Request {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

// DecodeJSON decodes JSON response body into the given type
func DecodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var result T
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode JSON response: %v. Body: %s", err, w.Body.String())
	}
	return result
}
