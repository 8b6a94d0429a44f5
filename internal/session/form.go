package session

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// FormField describes one visible input of a login form.
type FormField struct {
	Type  string
	Value string
}

// LoginFormDescriptor captures the structure of a discovered login form:
// where to post, and which fields to fill or carry through.
type LoginFormDescriptor struct {
	// Action is the form's declared action path, possibly empty.
	Action string
	// Method is the declared method, defaulting to POST.
	Method string
	// Fields holds the visible inputs by name. These are the candidate
	// injection points for username and password.
	Fields map[string]FormField
	// HiddenFields holds hidden inputs by name. Their values carry
	// per-session tokens (CSRF and friends) and must be resubmitted
	// unmodified.
	HiddenFields map[string]string
}

// ResolveLoginForm fetches pagePath and inspects the first form on it.
// It returns (nil, nil) when the page has no form at all; callers must
// treat that as "cannot auto-login" rather than a hard failure, since
// some deployments only accept fixed field names.
func (c *Client) ResolveLoginForm(ctx context.Context, pagePath string) (*LoginFormDescriptor, error) {
	html, err := c.Get(ctx, pagePath)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	form := doc.Find("form").First()
	if form.Length() == 0 {
		c.logger.Debug("No form found on login page", zap.String("path", pagePath))
		return nil, nil
	}

	desc := &LoginFormDescriptor{
		Action:       form.AttrOr("action", ""),
		Method:       strings.ToUpper(form.AttrOr("method", "POST")),
		Fields:       make(map[string]FormField),
		HiddenFields: make(map[string]string),
	}

	form.Find("input").Each(func(_ int, input *goquery.Selection) {
		name, ok := input.Attr("name")
		if !ok || name == "" {
			return
		}
		inputType := strings.ToLower(input.AttrOr("type", "text"))
		value := input.AttrOr("value", "")

		if inputType == "hidden" {
			desc.HiddenFields[name] = value
		} else {
			desc.Fields[name] = FormField{Type: inputType, Value: value}
		}
	})

	c.logger.Debug("Resolved login form",
		zap.String("action", desc.Action),
		zap.Int("visible_fields", len(desc.Fields)),
		zap.Int("hidden_fields", len(desc.HiddenFields)))
	return desc, nil
}
