package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quayside-labs/quayscrape/internal/config"
)

func testHTTPConfig() config.HTTPConfig {
	return config.HTTPConfig{
		Timeout:      5 * time.Second,
		MaxRedirects: 10,
		UserAgent:    "quayscrape-test",
	}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(baseURL, testHTTPConfig(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>ok</html>")
	}))
	t.Cleanup(server.Close)

	c := newTestClient(t, server.URL)
	body, err := c.Get(context.Background(), "/default.do")
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", body)
}

func TestCookiesPersistAcrossCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/set":
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "abc123", Path: "/"})
			fmt.Fprint(w, "set")
		case "/check":
			cookie, err := r.Cookie("JSESSIONID")
			if err != nil || cookie.Value != "abc123" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			fmt.Fprint(w, "authenticated")
		}
	}))
	t.Cleanup(server.Close)

	c := newTestClient(t, server.URL)
	ctx := context.Background()

	_, err := c.Get(ctx, "/set")
	require.NoError(t, err)

	body, err := c.Get(ctx, "/check")
	require.NoError(t, err)
	assert.Equal(t, "authenticated", body)
}

func TestHTTPErrorCarriesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	c := newTestClient(t, server.URL)
	_, err := c.Get(context.Background(), "/secret")
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.Status)
}

func TestTimeoutIsDistinctFromHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	t.Cleanup(server.Close)

	cfg := testHTTPConfig()
	cfg.Timeout = 50 * time.Millisecond
	c, err := NewClient(server.URL, cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(c.Close)

	_, err = c.Get(context.Background(), "/slow")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)

	var httpErr *HTTPError
	assert.False(t, errors.As(err, &httpErr))
}

func TestPostForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		fmt.Fprintf(w, "user=%s;token=%s", r.PostForm.Get("j_username"), r.PostForm.Get("csrf"))
	}))
	t.Cleanup(server.Close)

	c := newTestClient(t, server.URL)
	body, err := c.PostForm(context.Background(), "/j_security_check", map[string]string{
		"j_username": "captain",
		"csrf":       "tok-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "user=captain;token=tok-1", body)
}

func TestPostFormFollowsRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/home", http.StatusFound)
	})
	mux.HandleFunc("/home", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "welcome")
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	c := newTestClient(t, server.URL)
	body, err := c.PostForm(context.Background(), "/login", map[string]string{"a": "b"})
	require.NoError(t, err)
	assert.Equal(t, "welcome", body)
}

func TestPostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")
		fmt.Fprint(w, `{"status":"ok"}`)
	}))
	t.Cleanup(server.Close)

	c := newTestClient(t, server.URL)
	var out struct {
		Status string `json:"status"`
	}
	err := c.PostJSON(context.Background(), "/api", map[string]string{"q": "x"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Status)
}

func TestAbsoluteURL(t *testing.T) {
	c := newTestClient(t, "https://site.example/app")

	cases := []struct {
		href string
		want string
	}{
		{"/about", "https://site.example/app/about"},
		{"about", "https://site.example/app/about"},
		{"https://other.example/x", "https://other.example/x"},
		{"http://other.example/x", "http://other.example/x"},
		{"//cdn.example/lib.js", "https://cdn.example/lib.js"},
		{"", "https://site.example/app"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, c.AbsoluteURL(tc.href), "href=%q", tc.href)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	c, err := NewClient("https://site.example", testHTTPConfig(), zap.NewNop())
	require.NoError(t, err)
	c.Close()
	c.Close()
}
