package client

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cookieNames(cookies []*http.Cookie) map[string]string {
	out := make(map[string]string, len(cookies))
	for _, c := range cookies {
		out[c.Name] = c.Value
	}
	return out
}

func TestFileJar_MissingFileIsEmpty(t *testing.T) {
	jar, err := OpenFileJar(filepath.Join(t.TempDir(), "nested", "cookies.json"))
	require.NoError(t, err)

	u, _ := url.Parse("http://localhost:8080/")
	assert.Empty(t, jar.Cookies(u))
}

func TestFileJar_SaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cookies.json")
	u, _ := url.Parse("http://localhost:8080/api/login/")

	jar, err := OpenFileJar(path)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{
		{Name: "access_token", Value: "a", Path: "/", HttpOnly: true, MaxAge: 300},
		{Name: "refresh_token", Value: "r", Path: "/", HttpOnly: true, MaxAge: 86400},
		{Name: "csrftoken", Value: "c", Path: "/"},
	})
	require.NoError(t, jar.Save())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reloaded, err := OpenFileJar(path)
	require.NoError(t, err)

	root, _ := url.Parse("http://localhost:8080/api/predict/")
	assert.Equal(t, map[string]string{
		"access_token":  "a",
		"refresh_token": "r",
		"csrftoken":     "c",
	}, cookieNames(reloaded.Cookies(root)))
}

func TestFileJar_ClearedCookiesAreNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	u, _ := url.Parse("http://localhost:8080/api/logout/")

	jar, err := OpenFileJar(path)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{{Name: "access_token", Value: "a", Path: "/"}})
	jar.SetCookies(u, []*http.Cookie{{Name: "access_token", Value: "", Path: "/", MaxAge: -1}})
	require.NoError(t, jar.Save())

	reloaded, err := OpenFileJar(path)
	require.NoError(t, err)
	assert.Empty(t, reloaded.Cookies(u))
}

func TestFileJar_ClearDropsHostCookies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	backend, _ := url.Parse("http://localhost:8080/api/logout/")
	other, _ := url.Parse("http://example.com/")

	jar, err := OpenFileJar(path)
	require.NoError(t, err)
	jar.SetCookies(backend, []*http.Cookie{
		{Name: "access_token", Value: "a", Path: "/", HttpOnly: true},
		{Name: "refresh_token", Value: "r", Path: "/", HttpOnly: true, MaxAge: 86400},
	})
	jar.SetCookies(other, []*http.Cookie{{Name: "keep", Value: "k", Path: "/"}})

	jar.Clear(backend)
	assert.Empty(t, jar.Cookies(backend))
	require.NoError(t, jar.Save())

	reloaded, err := OpenFileJar(path)
	require.NoError(t, err)
	assert.Empty(t, reloaded.Cookies(backend))
	assert.Equal(t, map[string]string{"keep": "k"}, cookieNames(reloaded.Cookies(other)))
}

func TestFileJar_ExpiredCookiesAreDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	u, _ := url.Parse("http://localhost:8080/")

	jar, err := OpenFileJar(path)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{{Name: "access_token", Value: "a", Path: "/", MaxAge: 60}})

	jar.now = func() time.Time { return time.Now().Add(time.Hour) }
	require.NoError(t, jar.Save())

	reloaded, err := OpenFileJar(path)
	require.NoError(t, err)
	assert.Empty(t, reloaded.Cookies(u))
}

func TestFileJar_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := OpenFileJar(path)
	assert.Error(t, err)
}

func TestFileJar_KeepsRotatedSession(t *testing.T) {
	b := newFakeBackend(t)
	path := filepath.Join(t.TempDir(), "cookies.json")
	u, _ := url.Parse(b.server.URL)

	jar, err := OpenFileJar(path)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{{Name: "access_token", Value: "stale", Path: "/"}})

	c, err := New(Config{BaseURL: b.server.URL, Timeout: 5 * time.Second, Jar: jar})
	require.NoError(t, err)
	require.NoError(t, c.Do(context.Background(), historyRequest("jar"), nil))
	require.NoError(t, jar.Save())

	reloaded, err := OpenFileJar(path)
	require.NoError(t, err)
	assert.Equal(t, "fresh", cookieNames(reloaded.Cookies(u))["access_token"])
}
