package scraper

import (
	"context"
	"time"
)

type retryFetcher struct {
	Fetcher
	attempts int
	backoff  time.Duration
}

// WithRetry wraps f so that retryable failures are attempted up to attempts
// times in total, sleeping backoff, 2*backoff, 4*backoff... in between.
// With attempts <= 1 f is returned unchanged.
func WithRetry(f Fetcher, attempts int, backoff time.Duration) Fetcher {
	if attempts <= 1 {
		return f
	}
	return &retryFetcher{Fetcher: f, attempts: attempts, backoff: backoff}
}

func (r *retryFetcher) Fetch(ctx context.Context, url string, timeout time.Duration) (*PageResult, error) {
	var lastErr error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			if err := Sleep(ctx, r.backoff<<(attempt-1)); err != nil {
				return nil, err
			}
		}
		res, err := r.Fetcher.Fetch(ctx, url, timeout)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !Retryable(err) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}
