package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quayside-labs/quayscrape/internal/config"
	"github.com/quayside-labs/quayscrape/internal/session"
)

const testLoginPage = `<html><body>
<form action="j_security_check" method="post">
  <input type="hidden" name="csrf" value="tok-42">
  <input type="text" name="j_username">
  <input type="password" name="j_password">
</form>
</body></html>`

const dashboardPage = `<html><body><h1>Vessel Schedule</h1><table><tr><td>x</td></tr></table></body></html>`

func newSessionClient(t *testing.T, baseURL string) *session.Client {
	t.Helper()
	c, err := session.NewClient(baseURL, config.HTTPConfig{
		Timeout:      5 * time.Second,
		MaxRedirects: 10,
		UserAgent:    "quayscrape-test",
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestFormLoginSuccess(t *testing.T) {
	var postedFields map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/app/default.do", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testLoginPage)
	})
	mux.HandleFunc("/app/j_security_check", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		postedFields = map[string]string{}
		for k := range r.PostForm {
			postedFields[k] = r.PostForm.Get(k)
		}
		fmt.Fprint(w, dashboardPage)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := newSessionClient(t, server.URL+"/app")
	a := NewFormAuthenticator(client, "default.do", zap.NewNop())

	result, err := a.Login(context.Background(), Credentials{Username: "captain", Password: "hook"})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)

	// Credentials land in the resolved field names and the hidden CSRF
	// token is resubmitted unmodified.
	assert.Equal(t, "captain", postedFields["j_username"])
	assert.Equal(t, "hook", postedFields["j_password"])
	assert.Equal(t, "tok-42", postedFields["csrf"])
}

func TestFormLoginFailureWithErrorElement(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/default.do", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testLoginPage)
	})
	mux.HandleFunc("/j_security_check", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div class="login-error">Invalid user ID or password</div></body></html>`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := newSessionClient(t, server.URL)
	a := NewFormAuthenticator(client, "default.do", zap.NewNop())

	result, err := a.Login(context.Background(), Credentials{Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailure, result.Status)
	assert.Equal(t, "Invalid user ID or password", result.Reason)
}

func TestFormLoginFailureWhenPasswordInputRemains(t *testing.T) {
	// Regression for the permissive-success heuristic: a response that
	// still shows a password input is a rejection even without any
	// explicit error element.
	mux := http.NewServeMux()
	mux.HandleFunc("/default.do", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testLoginPage)
	})
	mux.HandleFunc("/j_security_check", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testLoginPage)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := newSessionClient(t, server.URL)
	a := NewFormAuthenticator(client, "default.do", zap.NewNop())

	result, err := a.Login(context.Background(), Credentials{Username: "u", Password: "wrong"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailure, result.Status)
	assert.NotEmpty(t, result.Reason)
}

func TestFormLoginFallsBackToFixedFieldsWithoutForm(t *testing.T) {
	var postedAction string
	var postedFields map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/default.do", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>no form here</body></html>`)
	})
	mux.HandleFunc("/j_security_check", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		postedAction = r.URL.Path
		postedFields = map[string]string{}
		for k := range r.PostForm {
			postedFields[k] = r.PostForm.Get(k)
		}
		fmt.Fprint(w, dashboardPage)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := newSessionClient(t, server.URL)
	a := NewFormAuthenticator(client, "default.do", zap.NewNop())

	result, err := a.Login(context.Background(), Credentials{Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, "/j_security_check", postedAction)
	assert.Equal(t, "u", postedFields["j_username"])
}

func TestFormLoginNoResponse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/default.do", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testLoginPage)
	})
	mux.HandleFunc("/j_security_check", func(w http.ResponseWriter, r *http.Request) {
		// 200 with an empty body.
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := newSessionClient(t, server.URL)
	a := NewFormAuthenticator(client, "default.do", zap.NewNop())

	_, err := a.Login(context.Background(), Credentials{Username: "u", Password: "p"})
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestFormLoginPropagatesNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	client := newSessionClient(t, server.URL)
	a := NewFormAuthenticator(client, "default.do", zap.NewNop())

	_, err := a.Login(context.Background(), Credentials{Username: "u", Password: "p"})
	var httpErr *session.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadGateway, httpErr.Status)
}

func TestClassifyLoginResponse(t *testing.T) {
	t.Run("clean page is success", func(t *testing.T) {
		r := classifyLoginResponse(dashboardPage)
		assert.Equal(t, StatusSuccess, r.Status)
	})

	t.Run("error element beats permissive success", func(t *testing.T) {
		r := classifyLoginResponse(`<div id="login_error">Account locked</div>`)
		assert.Equal(t, StatusFailure, r.Status)
		assert.Equal(t, "Account locked", r.Reason)
	})

	t.Run("password input alone is failure", func(t *testing.T) {
		r := classifyLoginResponse(`<form><input type="password" name="pw"></form>`)
		assert.Equal(t, StatusFailure, r.Status)
	})

	t.Run("alert div is a rejection signal", func(t *testing.T) {
		r := classifyLoginResponse(`<div class="alert">Session expired</div>`)
		assert.Equal(t, StatusFailure, r.Status)
		assert.Equal(t, "Session expired", r.Reason)
	})
}
