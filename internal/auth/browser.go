package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/quayside-labs/quayscrape/internal/config"
)

// ErrChallengeTimeout reports that a verification challenge was detected
// but was not resolved within the configured ceiling.
var ErrChallengeTimeout = errors.New("auth: verification challenge was not resolved in time")

const passwordTypeSelector = `input[type="password"]`

// Selector candidate chains for the ExtJS login surface. Evaluated in
// order; the first visible match wins.
var (
	usernameSelectors = []string{
		`input[name="PI_LOGIN_ID"]`,
		`input[id="PI_LOGIN_ID"]`,
		`#PI_LOGIN_ID-inputEl`,
		`input[id*="LOGIN"]`,
		`input[name="username"]`,
		`input[type="text"]`,
	}
	passwordSelectors = []string{
		`input[name="PI_PASSWORD"]`,
		`input[id="PI_PASSWORD"]`,
		`#PI_PASSWORD-inputEl`,
		passwordTypeSelector,
	}
	loginButtonSelectors = []string{
		`#loginBtn`,
		`a[id*="login"]`,
		`.x-btn`,
		`button[type="submit"]`,
		`input[type="submit"]`,
	}
	verifySelectors = []string{
		`input[name="PI_VERIFY_CODE"]`,
		`input[id*="VERIFY"]`,
	}
	pageErrorSelectors = []string{
		`.error`,
		`.alert-danger`,
		`[class*="error"]`,
	}
)

// BrowserAuthenticator drives a scripted browser through a
// JavaScript-rendered login UI. It owns the browser tab for its lifetime;
// after a successful login the same tab is handed to the live extractor
// via Context.
type BrowserAuthenticator struct {
	origin string
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

var _ Authenticator = (*BrowserAuthenticator)(nil)

// NewBrowserAuthenticator creates an authenticator for the given origin.
// Start must be called before Login.
func NewBrowserAuthenticator(origin string, cfg config.BrowserConfig, logger *zap.Logger) *BrowserAuthenticator {
	return &BrowserAuthenticator{
		origin: origin,
		cfg:    cfg,
		logger: logger.Named("browser_auth"),
	}
}

// Start launches the browser process and opens the tab used for the
// whole run. Headed mode is the default so a human can resolve a
// verification challenge when one appears.
func (a *BrowserAuthenticator) Start(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", a.cfg.Headless),
		chromedp.DisableGPU,
		chromedp.NoSandbox,
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Force the browser process to start now so Start reports launch
	// failures instead of the first Login call.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("auth: failed to launch browser: %w", err)
	}

	a.allocCancel = allocCancel
	a.browserCtx = browserCtx
	a.browserCancel = browserCancel
	return nil
}

// Context returns the browser tab context. Valid between Start and Close.
func (a *BrowserAuthenticator) Context() context.Context {
	return a.browserCtx
}

// Close tears down the tab and the browser process. Safe to call more
// than once, and safe to call when Start failed.
func (a *BrowserAuthenticator) Close() {
	if a.browserCancel != nil {
		a.browserCancel()
		a.browserCancel = nil
	}
	if a.allocCancel != nil {
		a.allocCancel()
		a.allocCancel = nil
	}
}

// Login navigates to the origin, fills the login widget through the
// selector candidate chains, submits, and classifies the result. When a
// verification challenge appears it returns ChallengeRequired after
// polling for human resolution up to the configured ceiling. Session
// cookies are persisted on every outcome so a later run can reuse them.
func (a *BrowserAuthenticator) Login(ctx context.Context, creds Credentials) (Result, error) {
	if a.browserCtx == nil {
		return Result{}, errors.New("auth: browser not started")
	}
	tab := a.browserCtx

	a.logger.Info("Navigating to login page", zap.String("origin", a.origin))
	err := chromedp.Run(tab,
		chromedp.Navigate(a.origin),
		chromedp.WaitReady("body"),
		// Fixed settle delay for the client-side widget framework to
		// finish building the login form.
		chromedp.Sleep(a.cfg.SettleDelay),
	)
	if err != nil {
		return Result{}, fmt.Errorf("auth: navigation failed: %w", err)
	}

	if ok := a.fillFirstVisible(tab, usernameSelectors, creds.Username); !ok {
		return Result{Status: StatusFailure, Reason: "could not locate username input"}, nil
	}
	if ok := a.fillFirstVisible(tab, passwordSelectors, creds.Password); !ok {
		return Result{Status: StatusFailure, Reason: "could not locate password input"}, nil
	}

	if !a.clickFirstVisible(tab, loginButtonSelectors) {
		// No clickable login control; a submit key-press usually works.
		a.logger.Debug("No login button found, sending Enter")
		_ = chromedp.Run(tab, chromedp.SendKeys(passwordTypeSelector, kb.Enter))
	}

	_ = chromedp.Run(tab, chromedp.Sleep(a.cfg.SubmitWait))

	defer a.persistCookies(tab)

	if a.anyVisible(tab, verifySelectors) {
		a.logger.Warn("Verification challenge detected; waiting for human resolution")
		if err := a.pollForAuthenticatedURL(tab); err != nil {
			return Result{Status: StatusChallengeRequired, ChallengeKind: "verification"}, err
		}
		return Result{Status: StatusSuccess}, nil
	}

	_ = chromedp.Run(tab, chromedp.Sleep(a.cfg.SettleDelay))

	var currentURL string
	if err := chromedp.Run(tab, chromedp.Location(&currentURL)); err != nil {
		return Result{}, fmt.Errorf("auth: failed to read location: %w", err)
	}
	if isAuthenticatedURL(currentURL) {
		return Result{Status: StatusSuccess}, nil
	}

	// Rejection signals, in order of specificity.
	if msg, ok := a.firstVisibleText(tab, pageErrorSelectors); ok {
		return Result{Status: StatusFailure, Reason: msg}, nil
	}
	if a.anyVisible(tab, []string{passwordTypeSelector}) {
		return Result{Status: StatusFailure, Reason: "login failed - invalid credentials or verification required"}, nil
	}

	// No rejection signal found; assume success.
	return Result{Status: StatusSuccess}, nil
}

// pollForAuthenticatedURL waits for the page URL to reach a known
// authenticated pattern, checking at a fixed interval up to the
// configured ceiling. The transition is externally triggered (a human
// solving the challenge), so polling is the only composable shape.
func (a *BrowserAuthenticator) pollForAuthenticatedURL(tab context.Context) error {
	deadline := time.Now().Add(a.cfg.ChallengeTimeout)
	for time.Now().Before(deadline) {
		var currentURL string
		if err := chromedp.Run(tab, chromedp.Location(&currentURL)); err != nil {
			return err
		}
		if isAuthenticatedURL(currentURL) {
			a.logger.Info("Challenge resolved")
			return nil
		}
		select {
		case <-tab.Done():
			return tab.Err()
		case <-time.After(a.cfg.ChallengeInterval):
		}
	}
	return ErrChallengeTimeout
}

// isAuthenticatedURL reports whether the URL matches the post-login
// pattern of the portal.
func isAuthenticatedURL(u string) bool {
	lower := strings.ToLower(u)
	return strings.Contains(lower, "main") || strings.Contains(lower, "home")
}

// visibleJS builds a snippet that reports whether the first match of the
// selector exists and is visible.
func visibleJS(selector string) string {
	sel, _ := json.Marshal(selector)
	return fmt.Sprintf(`(function() {
		const el = document.querySelector(%s);
		if (!el) return false;
		const style = window.getComputedStyle(el);
		return style.display !== 'none' && style.visibility !== 'hidden' && el.offsetParent !== null;
	})()`, sel)
}

// firstVisible walks the candidate chain and returns the first selector
// whose element exists and is visible.
func (a *BrowserAuthenticator) firstVisible(tab context.Context, selectors []string) (string, bool) {
	for _, sel := range selectors {
		checkCtx, cancel := context.WithTimeout(tab, 2*time.Second)
		var visible bool
		err := chromedp.Run(checkCtx, chromedp.Evaluate(visibleJS(sel), &visible))
		cancel()
		if err == nil && visible {
			return sel, true
		}
	}
	return "", false
}

func (a *BrowserAuthenticator) anyVisible(tab context.Context, selectors []string) bool {
	_, ok := a.firstVisible(tab, selectors)
	return ok
}

func (a *BrowserAuthenticator) fillFirstVisible(tab context.Context, selectors []string, value string) bool {
	sel, ok := a.firstVisible(tab, selectors)
	if !ok {
		return false
	}
	err := chromedp.Run(tab,
		chromedp.Clear(sel),
		chromedp.SendKeys(sel, value),
	)
	if err != nil {
		a.logger.Debug("Failed to fill input", zap.String("selector", sel), zap.Error(err))
		return false
	}
	return true
}

func (a *BrowserAuthenticator) clickFirstVisible(tab context.Context, selectors []string) bool {
	sel, ok := a.firstVisible(tab, selectors)
	if !ok {
		return false
	}
	clickCtx, cancel := context.WithTimeout(tab, 5*time.Second)
	defer cancel()
	if err := chromedp.Run(clickCtx, chromedp.Click(sel)); err != nil {
		a.logger.Debug("Click failed", zap.String("selector", sel), zap.Error(err))
		return false
	}
	return true
}

// firstVisibleText returns the trimmed text of the first visible match
// across the candidate chain.
func (a *BrowserAuthenticator) firstVisibleText(tab context.Context, selectors []string) (string, bool) {
	sel, ok := a.firstVisible(tab, selectors)
	if !ok {
		return "", false
	}
	var text string
	if err := chromedp.Run(tab, chromedp.Text(sel, &text)); err != nil {
		return "", false
	}
	text = strings.TrimSpace(text)
	return text, text != ""
}

// persistCookies saves the tab's cookies so a future run can try to
// reuse the session. Failures are logged, not fatal: cookie reuse is an
// optimization.
func (a *BrowserAuthenticator) persistCookies(tab context.Context) {
	if a.cfg.CookieFile == "" {
		return
	}
	err := chromedp.Run(tab, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		return SaveCookies(a.cfg.CookieFile, cookies)
	}))
	if err != nil {
		a.logger.Warn("Failed to persist session cookies", zap.Error(err))
	}
}
