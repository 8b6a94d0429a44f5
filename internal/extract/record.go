// Package extract turns raw markup or live DOM state into normalized
// records: links, heading hierarchy, tables and client-side grids.
package extract

import (
	"regexp"
	"strings"
)

// URLResolver rewrites a relative href to an absolute one against the
// session's base origin. *session.Client satisfies this.
type URLResolver interface {
	AbsoluteURL(href string) string
}

// Link is one anchor with visible text.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// Table is a positional tabular structure. Headers may be empty when the
// source table declared no header row.
type Table struct {
	ID      string     `json:"id"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
	// RowCount counts data rows only; a detected header row is never
	// included.
	RowCount int `json:"rowCount"`
	// SourceFrame is set in live-DOM mode to the originating frame.
	SourceFrame string `json:"source_frame,omitempty"`
}

// Grid is a client-rendered tabular widget whose data lives in an
// in-memory store. Column identity is explicit rather than positional,
// which is why it is a separate type from Table.
type Grid struct {
	SourceFrame string              `json:"source_frame"`
	Title       string              `json:"title"`
	Columns     []string            `json:"columns"`
	Records     []map[string]string `json:"records"`
}

// Record is the normalized result of extracting one static page.
type Record struct {
	Title           string              `json:"title"`
	MetaDescription string              `json:"meta_description,omitempty"`
	Headings        map[string][]string `json:"headings"`
	Links           []Link              `json:"links"`
	Tables          []Table             `json:"tables"`
}

// LiveResult is the normalized result of extracting a frame-based page.
// Grids, marker-class rows and plain tables are unioned across frames,
// each tagged with its originating frame; a single frame's failure is
// recorded in FrameErrors without discarding the rest.
type LiveResult struct {
	URL         string            `json:"url"`
	Title       string            `json:"title"`
	Grids       []Grid            `json:"grids"`
	Tables      []Table           `json:"tables"`
	FrameErrors map[string]string `json:"frame_errors,omitempty"`
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// cleanText collapses runs of whitespace and trims the result.
func cleanText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
