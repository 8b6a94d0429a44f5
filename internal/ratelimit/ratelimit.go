// Package ratelimit paces outbound requests with a token bucket and an
// optional concurrency cap for batch fetches.
package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limiter is a token-bucket pacer. Tokens refill continuously at the
// configured rate up to the burst size; Acquire blocks until one is
// available. Waiters are not served first-come-first-served.
type Limiter struct {
	bucket *rate.Limiter
}

// New creates a Limiter allowing rps requests per second with the given
// burst. A non-positive rate or a burst below one is a configuration
// error: it would make Acquire block forever, so it is rejected up front.
func New(rps float64, burst int) (*Limiter, error) {
	if rps <= 0 {
		return nil, fmt.Errorf("ratelimit: rate must be > 0, got %v", rps)
	}
	if burst < 1 {
		return nil, fmt.Errorf("ratelimit: burst must be >= 1, got %d", burst)
	}
	return &Limiter{bucket: rate.NewLimiter(rate.Limit(rps), burst)}, nil
}

// Acquire consumes one token, blocking until one is available or the
// context is done. It cannot fail for any other reason.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.bucket.Wait(ctx)
}

// Gate combines the token bucket with a cap on concurrently in-flight
// requests, for fetching a batch of independent URLs.
type Gate struct {
	limiter *Limiter
	slots   chan struct{}
}

// NewGate creates a Gate with the given pacing and at most maxConcurrent
// requests in flight at once.
func NewGate(rps float64, burst, maxConcurrent int) (*Gate, error) {
	if maxConcurrent < 1 {
		return nil, fmt.Errorf("ratelimit: max concurrent must be >= 1, got %d", maxConcurrent)
	}
	l, err := New(rps, burst)
	if err != nil {
		return nil, err
	}
	return &Gate{limiter: l, slots: make(chan struct{}, maxConcurrent)}, nil
}

// Enter blocks until both a concurrency slot and a rate token are held.
// The caller must call the returned release function on every exit path.
func (g *Gate) Enter(ctx context.Context) (release func(), err error) {
	select {
	case g.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := g.limiter.Acquire(ctx); err != nil {
		<-g.slots
		return nil, err
	}
	return func() { <-g.slots }, nil
}
