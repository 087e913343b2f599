package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

type storedCookie struct {
	URL      string    `json:"url"`
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitzero"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

func (s storedCookie) expired(now time.Time) bool {
	return !s.Expires.IsZero() && !s.Expires.After(now)
}

// FileJar is a cookie jar that can be saved to and restored from a file,
// so a session survives between process runs. Only cookies set through
// the jar are persisted.
type FileJar struct {
	path string
	jar  *cookiejar.Jar
	now  func() time.Time

	mu      sync.Mutex
	cookies map[string]storedCookie
}

// OpenFileJar loads the jar stored at path. A missing file yields an
// empty jar; expired cookies are dropped.
func OpenFileJar(path string) (*FileJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	j := &FileJar{
		path:    path,
		jar:     jar,
		now:     time.Now,
		cookies: make(map[string]storedCookie),
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return j, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cookie file: %w", err)
	}

	var stored []storedCookie
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decode cookie file %s: %w", path, err)
	}
	now := j.now()
	for _, s := range stored {
		if s.expired(now) {
			continue
		}
		u, err := url.Parse(s.URL)
		if err != nil {
			continue
		}
		j.cookies[cookieKey(u, s.Name, s.Path)] = s
		j.jar.SetCookies(u, []*http.Cookie{{
			Name:     s.Name,
			Value:    s.Value,
			Path:     s.Path,
			Domain:   s.Domain,
			Expires:  s.Expires,
			Secure:   s.Secure,
			HttpOnly: s.HttpOnly,
		}})
	}
	return j, nil
}

func cookieKey(u *url.URL, name, path string) string {
	return u.Host + "|" + path + "|" + name
}

// SetCookies implements http.CookieJar.
func (j *FileJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.jar.SetCookies(u, cookies)

	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	origin := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}).String()
	for _, c := range cookies {
		key := cookieKey(u, c.Name, c.Path)
		s := storedCookie{
			URL:      origin,
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		switch {
		case c.MaxAge < 0:
			delete(j.cookies, key)
			continue
		case c.MaxAge > 0:
			s.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		if s.expired(now) {
			delete(j.cookies, key)
			continue
		}
		j.cookies[key] = s
	}
}

// Clear drops every cookie held for u's host, in memory and in the next
// Save.
func (j *FileJar) Clear(u *url.URL) {
	j.mu.Lock()
	var expired []*http.Cookie
	for key, s := range j.cookies {
		if !strings.HasPrefix(key, u.Host+"|") {
			continue
		}
		expired = append(expired, &http.Cookie{Name: s.Name, Path: s.Path, Domain: s.Domain, MaxAge: -1})
		delete(j.cookies, key)
	}
	j.mu.Unlock()

	if len(expired) > 0 {
		j.jar.SetCookies(u, expired)
	}
}

// Cookies implements http.CookieJar.
func (j *FileJar) Cookies(u *url.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}

// Save writes the unexpired cookies to the jar's file, readable by the
// owner only.
func (j *FileJar) Save() error {
	j.mu.Lock()
	now := j.now()
	stored := make([]storedCookie, 0, len(j.cookies))
	for _, s := range j.cookies {
		if !s.expired(now) {
			stored = append(stored, s)
		}
	}
	j.mu.Unlock()

	raw, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0o700); err != nil {
		return fmt.Errorf("create cookie dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(j.path), ".cookies-*")
	if err != nil {
		return fmt.Errorf("create cookie file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write cookie file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write cookie file: %w", err)
	}
	if err := os.Rename(tmp.Name(), j.path); err != nil {
		return fmt.Errorf("replace cookie file: %w", err)
	}
	return nil
}
