package scrape

import (
	"strings"

	"github.com/quayside-labs/quayscrape/internal/config"
)

// Target is one named site or logical location to scrape.
type Target struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	BaseURL   string `json:"-"`
	Kind      string `json:"-"`
	LoginPath string `json:"-"`
}

// Registry is the static table of known targets, loaded once at process
// start. It is immutable after construction.
type Registry struct {
	targets []Target
	byCode  map[string]Target
}

// NewRegistry builds a registry from configuration, preserving the
// configured order.
func NewRegistry(cfgs []config.TargetConfig) *Registry {
	r := &Registry{byCode: make(map[string]Target, len(cfgs))}
	for _, tc := range cfgs {
		t := Target{
			Code:      strings.ToUpper(tc.Code),
			Name:      tc.Name,
			BaseURL:   tc.BaseURL,
			Kind:      tc.Kind,
			LoginPath: tc.LoginPath,
		}
		r.targets = append(r.targets, t)
		r.byCode[t.Code] = t
	}
	return r
}

// List returns all known targets in their stable configured order.
func (r *Registry) List() []Target {
	out := make([]Target, len(r.targets))
	copy(out, r.targets)
	return out
}

// Lookup finds a target by code, case-insensitively.
func (r *Registry) Lookup(code string) (Target, bool) {
	t, ok := r.byCode[strings.ToUpper(strings.TrimSpace(code))]
	return t, ok
}
