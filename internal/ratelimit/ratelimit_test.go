package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsMisconfiguration(t *testing.T) {
	_, err := New(0, 1)
	assert.Error(t, err)

	_, err = New(-1, 1)
	assert.Error(t, err)

	_, err = New(1, 0)
	assert.Error(t, err)
}

func TestAcquirePacing(t *testing.T) {
	// rate=2/s, burst=1: two back-to-back acquires must be separated by
	// roughly half a second.
	l, err := New(2, 1)
	require.NoError(t, err)

	ctx := context.Background()
	start := time.Now()
	require.NoError(t, l.Acquire(ctx))
	require.NoError(t, l.Acquire(ctx))
	elapsed := time.Since(start)

	// Generous lower bound to absorb scheduling jitter.
	assert.GreaterOrEqual(t, elapsed, 400*time.Millisecond,
		"second acquire should have waited for a token refill")
}

func TestAcquireBurst(t *testing.T) {
	// A fresh bucket with burst=3 should hand out three tokens without
	// any meaningful delay.
	l, err := New(1, 3)
	require.NoError(t, err)

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(ctx))
	}
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestAcquireHonorsContext(t *testing.T) {
	l, err := New(0.001, 1)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx)) // consume the only token

	cancelCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Acquire(cancelCtx), "acquire should fail once the context expires")
}

func TestGateCapsConcurrency(t *testing.T) {
	g, err := NewGate(1000, 1000, 2)
	require.NoError(t, err)

	ctx := context.Background()

	var mu sync.Mutex
	inFlight := 0
	peak := 0

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := g.Enter(ctx)
			require.NoError(t, err)
			defer release()

			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()

			time.Sleep(20 * time.Millisecond)

			mu.Lock()
			inFlight--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, 2, "no more than two requests should be in flight")
	assert.Greater(t, peak, 0)
}

func TestGateReleasesSlotOnContextError(t *testing.T) {
	g, err := NewGate(0.001, 1, 1)
	require.NoError(t, err)

	// Drain the single token so the next Enter blocks in the limiter.
	release, err := g.Enter(context.Background())
	require.NoError(t, err)
	release()

	cancelCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = g.Enter(cancelCtx)
	require.Error(t, err)

	// The slot taken before the limiter wait must have been returned,
	// otherwise this second Enter would deadlock on the semaphore.
	cancelCtx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	_, err = g.Enter(cancelCtx2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
