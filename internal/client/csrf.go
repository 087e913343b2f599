package client

import (
	"net/http"
)

// csrfTransport echoes the CSRF cookie back as a header on state-changing
// requests. It never fails: without the cookie the request goes out as is.
type csrfTransport struct {
	next       http.RoundTripper
	jar        http.CookieJar
	cookieName string
	headerName string
}

func (t *csrfTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !isUnsafeMethod(req.Method) {
		return t.next.RoundTrip(req)
	}

	token := t.token(req)
	if token == "" {
		return t.next.RoundTrip(req)
	}

	// RoundTrip must not modify the caller's request
	r := req.Clone(req.Context())
	r.Header.Set(t.headerName, token)
	return t.next.RoundTrip(r)
}

func (t *csrfTransport) token(req *http.Request) string {
	if t.jar == nil {
		return ""
	}
	for _, c := range t.jar.Cookies(req.URL) {
		if c.Name == t.cookieName {
			return c.Value
		}
	}
	return ""
}

func isUnsafeMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
