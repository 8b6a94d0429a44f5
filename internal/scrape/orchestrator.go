package scrape

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quayside-labs/quayscrape/internal/auth"
	"github.com/quayside-labs/quayscrape/internal/config"
	"github.com/quayside-labs/quayscrape/internal/extract"
	"github.com/quayside-labs/quayscrape/internal/ratelimit"
	"github.com/quayside-labs/quayscrape/internal/session"
)

// State tracks the orchestrator's position in one invocation.
type State int

const (
	StateIdle State = iota
	StateAuthenticating
	StateFailed
	StateAuthenticated
	StateExtracting
	StateAggregated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAuthenticating:
		return "authenticating"
	case StateFailed:
		return "failed"
	case StateAuthenticated:
		return "authenticated"
	case StateExtracting:
		return "extracting"
	case StateAggregated:
		return "aggregated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// engine couples one authenticated session with the extractor matching
// its target kind. Targets sharing a base origin share one engine, and
// an engine authenticates exactly once.
type engine interface {
	login(ctx context.Context, creds auth.Credentials) (auth.Result, error)
	extract(ctx context.Context, target Target) (*TargetResult, error)
	close()
}

// engineFactory builds the engine for a target group. Swappable in
// tests.
type engineFactory func(t Target) (engine, error)

// Orchestrator sequences authenticate, fetch, extract and aggregate
// across one or more named targets. One Orchestrator may serve many
// runs; each run owns its own sessions.
type Orchestrator struct {
	cfg       *config.Config
	registry  *Registry
	logger    *zap.Logger
	newEngine engineFactory
}

// NewOrchestrator creates an orchestrator over the configured target
// registry.
func NewOrchestrator(cfg *config.Config, registry *Registry, logger *zap.Logger) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		registry: registry,
		logger:   logger.Named("orchestrator"),
	}
	o.newEngine = o.buildEngine
	return o
}

// ListTargets returns the known targets in stable order.
func (o *Orchestrator) ListTargets() []Target {
	return o.registry.List()
}

// Run executes one scrape invocation. codes selects and orders the
// targets; empty means all known targets. Authentication failure aborts
// the run with Success=false; a single target's extraction failure is
// recorded under its key and does not abort siblings or fail the run.
func (o *Orchestrator) Run(ctx context.Context, creds auth.Credentials, codes []string) *RunResult {
	result := &RunResult{
		RunID:   uuid.New().String(),
		Targets: make(map[string]*TargetResult),
	}
	state := StateIdle
	logger := o.logger.With(zap.String("run_id", result.RunID))

	// Config errors are caught before any network activity.
	targets, cfgErr := o.resolveTargets(creds, codes)
	if cfgErr != nil {
		result.Log.errorf("%s", cfgErr.Reason)
		logger.Error("Run rejected", zap.String("reason", cfgErr.Reason))
		return result
	}

	limiter, err := ratelimit.New(o.cfg.Scrape.RequestsPerSecond, o.cfg.Scrape.Burst)
	if err != nil {
		result.Log.errorf("invalid rate limit configuration: %v", err)
		return result
	}

	// Engines are created per target group and must all be released no
	// matter where the run stops.
	var engines []engine
	defer func() {
		for _, e := range engines {
			e.close()
		}
		state = StateClosed
		logger.Debug("Run closed", zap.String("state", state.String()))
	}()

	authenticated := make(map[string]engine)
	allSucceeded := true

	for i, target := range targets {
		key := engineKey(target)
		eng, ok := authenticated[key]
		if !ok {
			state = StateAuthenticating
			result.Log.infof("Connecting to %s...", target.BaseURL)
			logger.Info("Authenticating", zap.String("target", target.Code))

			eng, err = o.newEngine(target)
			if err != nil {
				state = StateFailed
				result.Log.errorf("Failed to initialize session: %v", err)
				return result
			}
			engines = append(engines, eng)

			authResult, err := eng.login(ctx, creds)
			if err != nil {
				state = StateFailed
				result.Log.errorf("Login failed: %v", err)
				logger.Error("Authentication error", zap.Error(err))
				return result
			}
			switch authResult.Status {
			case auth.StatusSuccess:
				state = StateAuthenticated
				result.Log.successf("Login successful!")
			case auth.StatusChallengeRequired:
				state = StateFailed
				result.Log.errorf("Login interrupted by a verification challenge (%s)", authResult.ChallengeKind)
				return result
			default:
				state = StateFailed
				reason := authResult.Reason
				if reason == "" {
					reason = "Login failed. Check credentials."
				}
				result.Log.errorf("%s", reason)
				return result
			}
			authenticated[key] = eng
		}

		state = StateExtracting
		result.Log.infof("Scraping %s (%d/%d)...", target.Code, i+1, len(targets))

		if err := limiter.Acquire(ctx); err != nil {
			result.Targets[target.Code] = &TargetResult{Code: target.Code, Name: target.Name, Err: err.Error()}
			allSucceeded = false
			continue
		}

		tr, err := eng.extract(ctx, target)
		if err != nil {
			// Extraction failures are per-target, never run-fatal.
			result.Targets[target.Code] = &TargetResult{Code: target.Code, Name: target.Name, Err: err.Error()}
			result.Log.errorf("  %s: %v", target.Code, err)
			allSucceeded = false
			logger.Warn("Target extraction failed", zap.String("target", target.Code), zap.Error(err))
			continue
		}
		result.Targets[target.Code] = tr
		result.Log.successf("  %s: extracted %s", target.Code, tr.summary())
	}

	state = StateAggregated
	result.Success = true
	if allSucceeded {
		result.Log.successf("Scraping complete!")
	} else {
		result.Log.infof("Scraping complete with per-target errors.")
	}
	return result
}

// resolveTargets validates credentials and target codes up front.
func (o *Orchestrator) resolveTargets(creds auth.Credentials, codes []string) ([]Target, *ConfigError) {
	if creds.Username == "" || creds.Password == "" {
		return nil, &ConfigError{Reason: "username and password are required"}
	}
	if len(codes) == 0 {
		targets := o.registry.List()
		if len(targets) == 0 {
			return nil, &ConfigError{Reason: "no targets configured"}
		}
		return targets, nil
	}
	targets := make([]Target, 0, len(codes))
	for _, code := range codes {
		t, ok := o.registry.Lookup(code)
		if !ok {
			return nil, &ConfigError{Reason: fmt.Sprintf("unknown target: %s", code)}
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// engineKey groups targets that can share one authenticated session.
func engineKey(t Target) string {
	return t.Kind + "|" + t.BaseURL
}

// buildEngine is the production engine factory.
func (o *Orchestrator) buildEngine(t Target) (engine, error) {
	switch t.Kind {
	case config.TargetKindBrowser:
		return newBrowserEngine(t, o.cfg.Browser, o.logger)
	default:
		return newFormEngine(t, o.cfg.HTTP, o.logger)
	}
}

func (r *TargetResult) summary() string {
	switch {
	case r.Live != nil:
		return fmt.Sprintf("%d grids, %d tables", len(r.Live.Grids), len(r.Live.Tables))
	case r.Record != nil:
		return fmt.Sprintf("%d links, %d tables", len(r.Record.Links), len(r.Record.Tables))
	default:
		return "nothing"
	}
}

// formEngine authenticates with a plain form POST and extracts static
// documents over the same cookie-bearing session.
type formEngine struct {
	target        Target
	client        *session.Client
	authenticator *auth.FormAuthenticator
}

func newFormEngine(t Target, cfg config.HTTPConfig, logger *zap.Logger) (engine, error) {
	client, err := session.NewClient(t.BaseURL, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &formEngine{
		target:        t,
		client:        client,
		authenticator: auth.NewFormAuthenticator(client, t.LoginPath, logger),
	}, nil
}

func (e *formEngine) login(ctx context.Context, creds auth.Credentials) (auth.Result, error) {
	return e.authenticator.Login(ctx, creds)
}

func (e *formEngine) extract(ctx context.Context, target Target) (*TargetResult, error) {
	body, err := e.client.Get(ctx, target.LoginPath)
	if err != nil {
		return nil, err
	}
	record, err := extract.Parse(body, e.client)
	if record == nil && err != nil {
		return nil, err
	}
	// A partial record is still a result; the parse error is informational.
	return &TargetResult{Code: target.Code, Name: target.Name, Record: record}, nil
}

func (e *formEngine) close() {
	e.client.Close()
}

// browserEngine authenticates through the scripted browser and extracts
// live frame/grid state from the same tab.
type browserEngine struct {
	target        Target
	authenticator *auth.BrowserAuthenticator
	extractor     *extract.LiveExtractor
}

func newBrowserEngine(t Target, cfg config.BrowserConfig, logger *zap.Logger) (engine, error) {
	return &browserEngine{
		target:        t,
		authenticator: auth.NewBrowserAuthenticator(t.BaseURL, cfg, logger),
		extractor:     extract.NewLiveExtractor(cfg, logger),
	}, nil
}

func (e *browserEngine) login(ctx context.Context, creds auth.Credentials) (auth.Result, error) {
	if err := e.authenticator.Start(ctx); err != nil {
		return auth.Result{}, err
	}
	return e.authenticator.Login(ctx, creds)
}

func (e *browserEngine) extract(_ context.Context, target Target) (*TargetResult, error) {
	// The browser tab has its own context rooted at the allocator; frame
	// walking must run on it rather than the caller's context.
	live, err := e.extractor.Extract(e.authenticator.Context(), target.Code)
	if err != nil {
		return nil, err
	}
	return &TargetResult{Code: target.Code, Name: target.Name, Live: live}, nil
}

func (e *browserEngine) close() {
	e.authenticator.Close()
}
