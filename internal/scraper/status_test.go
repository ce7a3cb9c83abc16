package scraper

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckStatus(t *testing.T) {
	for _, status := range []int{0, 200, 204, 304} {
		assert.NoError(t, CheckStatus("u", status), status)
	}
	for _, status := range []int{301, 403, 404, 429, 500, 503} {
		err := CheckStatus("u", status)
		var fetchErr *FetchError
		if assert.True(t, errors.As(err, &fetchErr), status) {
			assert.Equal(t, status, fetchErr.Status)
		}
	}
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	assert.Equal(t, 7*time.Second, RetryAfter("7", now, 0))
	assert.Equal(t, DefaultRetryAfter, RetryAfter("", now, 0))
	assert.Equal(t, DefaultRetryAfter, RetryAfter("soon", now, 0))
	assert.Equal(t, time.Duration(0), RetryAfter("-4", now, 0))
	assert.Equal(t, 10*time.Second, RetryAfter("120", now, 10*time.Second))

	date := now.Add(90 * time.Second).Format(http.TimeFormat)
	assert.Equal(t, 90*time.Second, RetryAfter(date, now, 0))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(&TimeoutError{URL: "u"}))
	assert.True(t, Retryable(&FetchError{URL: "u", Err: errors.New("net::ERR_CONNECTION_REFUSED")}))
	assert.True(t, Retryable(&FetchError{URL: "u", Status: 502}))
	assert.False(t, Retryable(&FetchError{URL: "u", Status: 404}))
	assert.False(t, Retryable(&FatalError{Op: "open page", Err: errors.New("gone")}))
	assert.False(t, Retryable(nil))
}

func TestSleep_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}
