package scraper

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// TimeoutError reports a page that did not stabilize within the fetch timeout.
type TimeoutError struct {
	URL     string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("fetch %s: timed out after %s", e.URL, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// FetchError reports a navigation or network failure, or a non-2xx status.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("fetch %s: HTTP %d: %v", e.URL, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("fetch %s: HTTP %d %s", e.URL, e.Status, http.StatusText(e.Status))
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// ConversionError is reserved for converters that cannot degrade gracefully.
type ConversionError struct {
	URL string
	Err error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s: %v", e.URL, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// WriteError reports a failure persisting a document.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// FatalError aborts the whole run: the browser cannot start, it died
// mid-run, or the configuration is unusable.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err must abort the run.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// Retryable reports whether a fetch error may succeed on another attempt:
// timeouts, network failures and 5xx responses.
func Retryable(err error) bool {
	if err == nil || IsFatal(err) {
		return false
	}
	var timeout *TimeoutError
	if errors.As(err, &timeout) {
		return true
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Status == 0 || fetchErr.Status >= 500
	}
	return false
}
