// Package client is the authenticated HTTP client for the prediction API.
//
// Session credentials are two HttpOnly cookies (access and refresh token)
// that the backend sets and rotates; the client never reads them and only
// carries them in its cookie jar. On state-changing requests the CSRF cookie
// is echoed back as a header.
//
// When a request fails with 401 the client refreshes the session and
// replays the request once. Concurrent 401s share a single refresh call:
// the first caller runs it and the others wait for its outcome. If the
// refresh fails every waiting request fails with a *RefreshError and the
// registered LogoutObservers are notified once.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

const (
	DefaultCSRFCookieName = "csrftoken"
	DefaultCSRFHeaderName = "X-CSRFToken"
	DefaultTimeout        = 15 * time.Second

	maxResponseBytes = 4 << 20
)

// Paths are the backend endpoints the client treats specially.
type Paths struct {
	Login    string
	Register string
	Refresh  string
	Logout   string
	Me       string
}

// DefaultPaths returns the backend's standard endpoint paths.
func DefaultPaths() Paths {
	return Paths{
		Login:    "/api/login/",
		Register: "/api/register/",
		Refresh:  "/api/token/refresh/",
		Logout:   "/api/logout/",
		Me:       "/api/users/me/",
	}
}

// Config holds client configuration. Only BaseURL is required.
type Config struct {
	BaseURL        string
	CSRFCookieName string
	CSRFHeaderName string
	// Timeout bounds every single HTTP exchange, including the refresh call.
	Timeout time.Duration
	// Jar stores session cookies. Defaults to an in-memory jar.
	Jar http.CookieJar
	// Transport defaults to http.DefaultTransport.
	Transport http.RoundTripper
	Paths     Paths
	Logger    *slog.Logger
}

// LogoutObserver is told when a failed refresh has ended the session.
type LogoutObserver interface {
	ForcedLogout(err error)
}

// Client sends requests to the prediction API. A Client is safe for
// concurrent use and is meant to be created once per process.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	paths   Paths
	logger  *slog.Logger

	refresh refreshGate

	mu           sync.Mutex
	observers    map[int]LogoutObserver
	nextObserver int
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("client: base URL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("client: invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("client: unsupported scheme %q", base.Scheme)
	}

	if cfg.CSRFCookieName == "" {
		cfg.CSRFCookieName = DefaultCSRFCookieName
	}
	if cfg.CSRFHeaderName == "" {
		cfg.CSRFHeaderName = DefaultCSRFHeaderName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	if cfg.Paths == (Paths{}) {
		cfg.Paths = DefaultPaths()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("client: create cookie jar: %w", err)
		}
		cfg.Jar = jar
	}

	return &Client{
		baseURL: base,
		http: &http.Client{
			Jar:     cfg.Jar,
			Timeout: cfg.Timeout,
			Transport: &csrfTransport{
				next:       cfg.Transport,
				jar:        cfg.Jar,
				cookieName: cfg.CSRFCookieName,
				headerName: cfg.CSRFHeaderName,
			},
		},
		paths:     cfg.Paths,
		logger:    cfg.Logger,
		observers: make(map[int]LogoutObserver),
	}, nil
}

// Request describes one API call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	// Body is encoded as JSON when non-nil.
	Body any
	// SkipRefresh keeps a 401 on this request from starting a refresh.
	SkipRefresh bool

	// retried is set once the request has been replayed after a refresh.
	retried bool
}

// Jar returns the cookie jar holding the session.
func (c *Client) Jar() http.CookieJar {
	return c.http.Jar
}

// Subscribe registers o for forced-logout notifications. The returned
// function removes it.
func (c *Client) Subscribe(o LogoutObserver) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextObserver
	c.nextObserver++
	c.observers[id] = o
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.observers, id)
			c.mu.Unlock()
		})
	}
}

// Do sends req and decodes a successful JSON response into out, which may
// be nil. Failures are returned as *APIError, *RefreshError or a wrapped
// transport error.
func (c *Client) Do(ctx context.Context, req *Request, out any) error {
	r := *req

	var body []byte
	if r.Body != nil {
		b, err := json.Marshal(r.Body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", r.Method, r.Path, err)
		}
		body = b
	}

	status, respBody, err := c.send(ctx, &r, body)
	if err != nil {
		return err
	}
	if isSuccess(status) {
		return decode(&r, respBody, out)
	}

	apiErr := parseAPIError(r.Method, r.Path, status, respBody)
	if !c.shouldRefresh(&r, status) {
		return apiErr
	}
	r.retried = true

	if err := c.refreshSession(ctx); err != nil {
		return err
	}

	c.logger.Debug("replaying request after refresh",
		slog.String("method", r.Method),
		slog.String("path", r.Path))

	status, respBody, err = c.send(ctx, &r, body)
	if err != nil {
		return err
	}
	if isSuccess(status) {
		return decode(&r, respBody, out)
	}
	return parseAPIError(r.Method, r.Path, status, respBody)
}

func (c *Client) shouldRefresh(r *Request, status int) bool {
	if status != http.StatusUnauthorized || r.retried || r.SkipRefresh {
		return false
	}
	return !c.isAuthPath(r.Path)
}

func (c *Client) isAuthPath(p string) bool {
	return p == c.paths.Login || p == c.paths.Register || p == c.paths.Refresh
}

// refreshSession runs the refresh call or waits for the one in flight.
func (c *Client) refreshSession(ctx context.Context) error {
	// the refresh outlives the leader's ctx so a cancelled leader does not
	// fail everyone parked behind it; the client timeout still bounds it
	refreshCtx := context.WithoutCancel(ctx)

	leader, err := c.refresh.do(ctx, func() error {
		c.logger.Debug("refreshing session")
		return c.Do(refreshCtx, &Request{
			Method:      http.MethodPost,
			Path:        c.paths.Refresh,
			SkipRefresh: true,
		}, nil)
	})
	if err == nil {
		return nil
	}
	if !leader && ctx.Err() != nil {
		return ctx.Err()
	}

	if leader {
		c.logger.Warn("session refresh failed, logging out",
			slog.String("error", err.Error()))
		c.notifyLogout(err)
	}
	return &RefreshError{Err: err}
}

func (c *Client) notifyLogout(err error) {
	c.mu.Lock()
	observers := make([]LogoutObserver, 0, len(c.observers))
	for _, o := range c.observers {
		observers = append(observers, o)
	}
	c.mu.Unlock()

	for _, o := range observers {
		o.ForcedLogout(err)
	}
}

func (c *Client) send(ctx context.Context, r *Request, body []byte) (int, []byte, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + r.Path
	u.RawQuery = ""
	if len(r.Query) > 0 {
		u.RawQuery = r.Query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, r.Method, u.String(), reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", r.Method, r.Path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: read response: %w", r.Method, r.Path, err)
	}
	return resp.StatusCode, respBody, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func decode(r *Request, body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", r.Method, r.Path, err)
	}
	return nil
}
