// Package httpfetch is a fetch engine for pages that render without
// JavaScript. It issues a plain GET and returns the response body.
package httpfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"pagemd/internal/scraper"
)

// maxBody caps how much of a response is read.
const maxBody = 32 << 20

func init() {
	scraper.Register("http", Open)
}

// Open returns a Fetcher with its own transport, honoring opts.ProxyURL.
func Open(_ context.Context, opts scraper.Options) (scraper.Fetcher, error) {
	client, err := NewClient(opts.ProxyURL, 0)
	if err != nil {
		return nil, err
	}
	return New(client, opts), nil
}

// NewClient returns a client with its own transport that routes through
// proxyURL when it is set. A zero timeout leaves requests unbounded.
func NewClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		proxy, err := url.Parse(proxyURL)
		if err != nil {
			return nil, &scraper.FatalError{Op: "parse proxy URL", Err: err}
		}
		transport.Proxy = http.ProxyURL(proxy)
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

// Fetcher fetches raw HTML over HTTP.
type Fetcher struct {
	client *http.Client
	opts   scraper.Options
}

// New creates a Fetcher using client.
func New(client *http.Client, opts scraper.Options) *Fetcher {
	return &Fetcher{client: client, opts: opts}
}

// Close releases idle connections.
func (f *Fetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// Fetch GETs url. A 429 response is retried once after its Retry-After.
func (f *Fetcher) Fetch(ctx context.Context, url string, timeout time.Duration) (*scraper.PageResult, error) {
	res, retryAfter, err := f.get(ctx, url, timeout)
	if err != nil {
		return nil, err
	}
	if res.Status == http.StatusTooManyRequests {
		if err := scraper.Sleep(ctx, retryAfter); err != nil {
			return nil, &scraper.FetchError{URL: url, Status: res.Status, Err: err}
		}
		if res, _, err = f.get(ctx, url, timeout); err != nil {
			return nil, err
		}
	}
	if err := scraper.CheckStatus(url, res.Status); err != nil {
		return nil, err
	}
	return res, nil
}

func (f *Fetcher) get(ctx context.Context, url string, timeout time.Duration) (*scraper.PageResult, time.Duration, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, &scraper.FetchError{URL: url, Err: err}
	}
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, classify(url, timeout, err)
	}
	defer resp.Body.Close()

	res := &scraper.PageResult{URL: url, FinalURL: resp.Request.URL.String(), Status: resp.StatusCode}
	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		return res, scraper.RetryAfter(resp.Header.Get("Retry-After"), time.Now(), f.opts.MaxRetryAfter), nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, 0, classify(url, timeout, fmt.Errorf("failed to read body: %w", err))
	}
	res.HTML = string(body)
	res.LoadTime = time.Since(start)
	return res, 0, nil
}

func classify(url string, timeout time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &scraper.TimeoutError{URL: url, Timeout: timeout, Err: err}
	}
	return &scraper.FetchError{URL: url, Err: err}
}
