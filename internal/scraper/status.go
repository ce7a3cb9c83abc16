package scraper

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultRetryAfter is used when a 429 response carries no usable Retry-After.
const DefaultRetryAfter = 30 * time.Second

// CheckStatus returns a *FetchError for statuses outside 2xx.
// A zero status means the engine could not observe it and is accepted.
func CheckStatus(url string, status int) error {
	if status == 0 || (status >= 200 && status < 300) || status == http.StatusNotModified {
		return nil
	}
	return &FetchError{URL: url, Status: status}
}

// RetryAfter parses a Retry-After header value given either as seconds or
// as an HTTP date. It falls back to DefaultRetryAfter and clamps the result
// to [0, max] when max is positive.
func RetryAfter(value string, now time.Time, max time.Duration) time.Duration {
	d := DefaultRetryAfter
	value = strings.TrimSpace(value)
	if secs, err := strconv.Atoi(value); err == nil {
		d = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(value); err == nil {
		d = at.Sub(now)
	}
	if d < 0 {
		d = 0
	}
	if max > 0 && d > max {
		d = max
	}
	return d
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
