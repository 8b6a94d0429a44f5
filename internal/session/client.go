// Package session provides the cookie-persisting HTTP layer used to talk
// to a single authenticated portal, plus login-form discovery on top of
// it. One Client owns one cookie jar scoped to one base origin.
package session

import (
	"context"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/quayside-labs/quayscrape/internal/config"
)

// Client is a session-scoped HTTP client. Cookies set by the site are
// carried across calls transparently; redirects are followed up to the
// configured bound. Callers must Close the client to release the
// underlying connection pool.
type Client struct {
	baseURL string
	http    *resty.Client
	logger  *zap.Logger
}

// NewClient creates a Client rooted at baseURL.
func NewClient(baseURL string, cfg config.HTTPConfig, logger *zap.Logger) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	httpClient := resty.New()
	httpClient.SetCookieJar(jar)
	httpClient.SetTimeout(cfg.Timeout)
	httpClient.SetRedirectPolicy(resty.FlexibleRedirectPolicy(cfg.MaxRedirects))
	httpClient.SetHeader("User-Agent", cfg.UserAgent)

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger.Named("session"),
	}, nil
}

// BaseURL returns the origin this session is scoped to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// AbsoluteURL rewrites a relative target against the session base.
// Already-absolute targets are returned unchanged; protocol-relative
// targets are upgraded to https.
func (c *Client) AbsoluteURL(href string) string {
	href = strings.TrimSpace(href)
	switch {
	case strings.HasPrefix(href, "http://"), strings.HasPrefix(href, "https://"):
		return href
	case strings.HasPrefix(href, "//"):
		return "https:" + href
	case href == "":
		return c.baseURL
	default:
		return c.baseURL + "/" + strings.TrimLeft(href, "/")
	}
}

// Get fetches a path relative to the session base and returns the body.
func (c *Client) Get(ctx context.Context, path string) (string, error) {
	fullURL := c.AbsoluteURL(path)
	res, err := c.http.R().SetContext(ctx).Get(fullURL)
	if err != nil {
		return "", classifyTransportError(fullURL, err)
	}
	if res.IsError() {
		return "", &HTTPError{Status: res.StatusCode(), URL: fullURL}
	}
	return res.String(), nil
}

// PostForm submits URL-encoded form fields and returns the response body
// after following redirects.
func (c *Client) PostForm(ctx context.Context, path string, fields map[string]string) (string, error) {
	fullURL := c.AbsoluteURL(path)
	res, err := c.http.R().
		SetContext(ctx).
		SetFormData(fields).
		Post(fullURL)
	if err != nil {
		return "", classifyTransportError(fullURL, err)
	}
	if res.IsError() {
		return "", &HTTPError{Status: res.StatusCode(), URL: fullURL}
	}
	return res.String(), nil
}

// PostJSON posts a JSON body and unmarshals the JSON response into out.
// out may be nil when the response body is irrelevant.
func (c *Client) PostJSON(ctx context.Context, path string, body any, out any) error {
	fullURL := c.AbsoluteURL(path)
	req := c.http.R().SetContext(ctx).SetBody(body)
	if out != nil {
		req.SetResult(out)
	}
	res, err := req.Post(fullURL)
	if err != nil {
		return classifyTransportError(fullURL, err)
	}
	if res.IsError() {
		return &HTTPError{Status: res.StatusCode(), URL: fullURL}
	}
	return nil
}

// Close releases the underlying connection pool. Safe to call more than
// once.
func (c *Client) Close() {
	c.http.GetClient().CloseIdleConnections()
}
