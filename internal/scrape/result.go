package scrape

import (
	"fmt"

	"github.com/quayside-labs/quayscrape/internal/extract"
)

// ConfigError reports a problem with the requested run that was caught
// before any network activity: an unknown target code or missing
// credentials.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("scrape: %s", e.Reason)
}

// TargetResult is the per-target slot of a run: exactly one of Record,
// Live or Err is set.
type TargetResult struct {
	Code string `json:"code"`
	Name string `json:"name,omitempty"`
	// Record holds the static-document extraction for form targets.
	Record *extract.Record `json:"record,omitempty"`
	// Live holds the frame/grid extraction for browser targets.
	Live *extract.LiveResult `json:"live,omitempty"`
	// Err tags the target as failed without failing the run.
	Err string `json:"error,omitempty"`
}

// Failed reports whether this target's extraction failed.
func (r *TargetResult) Failed() bool {
	return r.Err != ""
}

// RunResult is the aggregate outcome of one orchestrator invocation.
// The caller owns it fully after return; the engine keeps no reference.
type RunResult struct {
	RunID   string                   `json:"run_id"`
	Success bool                     `json:"success"`
	Log     RunLog                   `json:"logs"`
	Targets map[string]*TargetResult `json:"targets"`
}
