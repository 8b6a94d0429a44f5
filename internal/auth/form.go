package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/quayside-labs/quayscrape/internal/session"
)

// ErrNoResponse reports that the login POST returned an empty page, so
// the outcome could not be classified.
var ErrNoResponse = errors.New("auth: no response from server after login")

// Default Tideworks field names, used when the login page carries no
// discoverable form.
const (
	defaultAction        = "j_security_check"
	defaultUsernameField = "j_username"
	defaultPasswordField = "j_password"
)

// errorSelectors is the ordered list of places a failure message may
// live. The first match with non-empty text wins.
var errorSelectors = []string{
	"[class*='error']",
	"[id*='error']",
	"div.alert",
	"span.error",
	"p.error",
}

// FormAuthenticator logs in by resolving and submitting the site's login
// form over the HTTP session.
type FormAuthenticator struct {
	client *session.Client
	logger *zap.Logger

	// LoginPath is the page holding the login form.
	LoginPath string
	// UsernameField and PasswordField override the form field names;
	// they default to the Tideworks conventions.
	UsernameField string
	PasswordField string
}

var _ Authenticator = (*FormAuthenticator)(nil)

// NewFormAuthenticator creates a form-submit authenticator on top of an
// existing session client.
func NewFormAuthenticator(client *session.Client, loginPath string, logger *zap.Logger) *FormAuthenticator {
	return &FormAuthenticator{
		client:        client,
		logger:        logger.Named("form_auth"),
		LoginPath:     loginPath,
		UsernameField: defaultUsernameField,
		PasswordField: defaultPasswordField,
	}
}

// Login resolves the login form, submits the credentials together with
// any hidden token fields, and classifies the response page.
func (a *FormAuthenticator) Login(ctx context.Context, creds Credentials) (Result, error) {
	desc, err := a.client.ResolveLoginForm(ctx, a.LoginPath)
	if err != nil {
		return Result{}, err
	}

	action := defaultAction
	fields := map[string]string{
		a.UsernameField: creds.Username,
		a.PasswordField: creds.Password,
	}
	if desc != nil {
		if desc.Action != "" {
			action = desc.Action
		}
		// Hidden values are per-session tokens; resubmit them verbatim.
		for name, value := range desc.HiddenFields {
			fields[name] = value
		}
	} else {
		a.logger.Info("No login form found; falling back to fixed field names",
			zap.String("action", action))
	}

	body, err := a.client.PostForm(ctx, action, fields)
	if err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(body) == "" {
		return Result{}, ErrNoResponse
	}

	result := classifyLoginResponse(body)
	a.logger.Info("Login attempt classified",
		zap.String("status", result.Status.String()))
	return result, nil
}

// classifyLoginResponse applies the rejection heuristics to the page
// returned after the login POST. Success is the absence of both a
// password input and an error-styled element; there is no positive
// success marker.
func classifyLoginResponse(body string) Result {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		// An unparseable body gives us nothing to reject on.
		return Result{Status: StatusSuccess}
	}

	var errMsg string
	for _, sel := range errorSelectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if text != "" {
			errMsg = text
			break
		}
	}

	hasPasswordInput := doc.Find("input[type='password']").Length() > 0

	if !hasPasswordInput && errMsg == "" {
		return Result{Status: StatusSuccess}
	}
	if errMsg == "" {
		errMsg = "Login failed - invalid credentials or session error"
	}
	return Result{Status: StatusFailure, Reason: errMsg}
}
