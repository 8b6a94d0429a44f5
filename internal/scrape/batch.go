package scrape

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/quayside-labs/quayscrape/internal/ratelimit"
)

// Fetcher retrieves one path relative to an established session.
type Fetcher interface {
	Get(ctx context.Context, path string) (string, error)
}

// PageResult is one slot of a batch fetch. Err is set when that page
// failed; the rest of the batch is unaffected.
type PageResult struct {
	Path string
	Body string
	Err  error
}

// BatchFetch retrieves the given paths concurrently through the shared
// gate, which bounds both in-flight requests and request rate. Results
// are returned in the same order as paths. Individual failures are
// recorded per slot; only a cancelled context aborts the batch.
func BatchFetch(ctx context.Context, fetcher Fetcher, gate *ratelimit.Gate, paths []string) ([]PageResult, error) {
	results := make([]PageResult, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			results[i].Path = path
			release, err := gate.Enter(ctx)
			if err != nil {
				results[i].Err = err
				return err
			}
			defer release()

			body, err := fetcher.Get(ctx, path)
			if err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Body = body
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
