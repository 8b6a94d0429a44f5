// Package auth establishes authenticated sessions against terminal
// portals. Two interchangeable strategies share one contract: a plain
// form POST for server-rendered login pages, and a scripted browser for
// login UIs that only exist after client-side rendering.
package auth

import "context"

// Credentials carries one identifier/secret pair. Values are held only
// for the duration of a login attempt and are never logged or persisted.
type Credentials struct {
	Username string
	Password string
}

// Status enumerates the outcome variants of a login attempt.
type Status int

const (
	// StatusSuccess means no rejection signal was found on the
	// post-login page. There is no guaranteed positive marker; see the
	// package tests covering the permissive-success heuristic.
	StatusSuccess Status = iota
	// StatusFailure means the credentials were rejected.
	StatusFailure
	// StatusChallengeRequired means a verification step (CAPTCHA-like)
	// interrupted the login and needs external resolution.
	StatusChallengeRequired
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusChallengeRequired:
		return "challenge-required"
	default:
		return "unknown"
	}
}

// Result is the outcome of one login attempt.
type Result struct {
	Status Status
	// Reason holds the failure message when Status is StatusFailure,
	// taken from the page's error element when one exists.
	Reason string
	// ChallengeKind names the challenge when Status is
	// StatusChallengeRequired (currently always "verification").
	ChallengeKind string
}

// Authenticator is the shared login contract.
type Authenticator interface {
	Login(ctx context.Context, creds Credentials) (Result, error)
}
