package scrape

import (
	"fmt"
	"time"
)

// Severity classifies a run-log entry.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Entry is one line of the human-readable run trail.
type Entry struct {
	Severity  Severity  `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// RunLog is the ordered, append-only trail of one orchestrator run. It
// is owned by the orchestrator while the run is active and immutable
// once the RunResult is returned.
type RunLog []Entry

func (l *RunLog) append(sev Severity, format string, args ...any) {
	*l = append(*l, Entry{
		Severity:  sev,
		Message:   fmt.Sprintf(format, args...),
		Timestamp: time.Now(),
	})
}

func (l *RunLog) infof(format string, args ...any)    { l.append(SeverityInfo, format, args...) }
func (l *RunLog) successf(format string, args ...any) { l.append(SeveritySuccess, format, args...) }
func (l *RunLog) errorf(format string, args ...any)   { l.append(SeverityError, format, args...) }
