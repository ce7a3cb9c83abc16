package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pagemd/internal/browser"
	"pagemd/internal/scraper"

	"github.com/go-rod/rod/lib/proto"
)

const (
	// idleWindow is how long the network must stay quiet before the page
	// counts as rendered.
	idleWindow = 500 * time.Millisecond
	// extractTimeout bounds DOM reads after the page has settled.
	extractTimeout = 10 * time.Second
	// maxIdleWait caps the network-idle wait after load.
	maxIdleWait = 5 * time.Second
)

// idleExcluded are resource types ignored by the network-idle heuristic.
var idleExcluded = []proto.NetworkResourceType{
	proto.NetworkResourceTypeImage,
	proto.NetworkResourceTypeMedia,
	proto.NetworkResourceTypeFont,
}

func init() {
	scraper.Register("browser", Open)
}

// Open launches a browser and returns a Fetcher that owns it.
func Open(_ context.Context, opts scraper.Options) (scraper.Fetcher, error) {
	b, err := browser.New(browser.Config{
		Headless: opts.Headless,
		ProxyURL: opts.ProxyURL,
		Bin:      opts.BrowserBin,
	})
	if err != nil {
		return nil, &scraper.FatalError{Op: "start browser", Err: err}
	}
	return NewFetcher(b, opts), nil
}

// Fetcher renders pages in a shared browser. Each fetch gets its own tab.
type Fetcher struct {
	browser *browser.Browser
	opts    scraper.Options
}

// NewFetcher creates a Fetcher over an already launched browser.
func NewFetcher(b *browser.Browser, opts scraper.Options) *Fetcher {
	if opts.Level == "" {
		opts.Level = scraper.LevelBody
	}
	return &Fetcher{
		browser: b,
		opts:    opts,
	}
}

// Close shuts the browser down.
func (f *Fetcher) Close() error {
	return f.browser.Close()
}

// Fetch navigates to url, waits for the page to settle and returns the
// rendered HTML. A 429 response is retried once after its Retry-After.
func (f *Fetcher) Fetch(ctx context.Context, url string, timeout time.Duration) (*scraper.PageResult, error) {
	res, retryAfter, err := f.load(ctx, url, timeout)
	if err != nil {
		return nil, err
	}

	if res.Status == http.StatusTooManyRequests {
		if err := scraper.Sleep(ctx, retryAfter); err != nil {
			return nil, &scraper.FetchError{URL: url, Status: res.Status, Err: err}
		}
		if res, _, err = f.load(ctx, url, timeout); err != nil {
			return nil, err
		}
	}

	if err := scraper.CheckStatus(url, res.Status); err != nil {
		return nil, err
	}
	return res, nil
}

func (f *Fetcher) load(ctx context.Context, url string, timeout time.Duration) (*scraper.PageResult, time.Duration, error) {
	startTime := time.Now()

	page, err := f.browser.NewPage()
	if err != nil {
		return nil, 0, &scraper.FatalError{Op: "open page", Err: err}
	}
	defer page.Close()

	if f.opts.UserAgent != "" {
		err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: f.opts.UserAgent})
		if err != nil {
			return nil, 0, &scraper.FetchError{URL: url, Err: fmt.Errorf("failed to set user agent: %w", err)}
		}
	}

	p := page.Context(ctx).Timeout(timeout)
	defer p.CancelTimeout()

	// Subscribe before navigating so the main document response is not missed.
	docs := make(chan *proto.NetworkResponse, 1)
	go p.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument {
			return false
		}
		docs <- e.Response
		return true
	})()

	if err := p.Navigate(url); err != nil {
		return nil, 0, classify(url, timeout, err)
	}
	if err := p.WaitLoad(); err != nil {
		return nil, 0, classify(url, timeout, err)
	}
	// Idle is best effort: pages that poll forever are still extracted.
	ip := p.Timeout(idleBudget(timeout))
	ip.WaitRequestIdle(idleWindow, nil, nil, idleExcluded)()
	ip.CancelTimeout()

	res := &scraper.PageResult{URL: url, FinalURL: url}
	var retryAfter time.Duration
	select {
	case doc := <-docs:
		res.Status = doc.Status
		retryAfter = scraper.RetryAfter(headerValue(doc.Headers, "Retry-After"), time.Now(), f.opts.MaxRetryAfter)
	default:
	}
	if res.Status == http.StatusTooManyRequests {
		return res, retryAfter, nil
	}

	ep := page.Context(ctx).Timeout(extractTimeout)
	defer ep.CancelTimeout()

	if info, err := ep.Info(); err == nil {
		res.Title = info.Title
		res.FinalURL = info.URL
	}

	html, err := NewExtractor(ep).Extract(f.opts.Level, f.opts.Selector)
	if err != nil {
		return nil, 0, classify(url, extractTimeout, err)
	}
	res.HTML = html
	res.LoadTime = time.Since(startTime)

	return res, 0, nil
}

// idleBudget is how long to wait for network idle once the page has
// loaded: a third of the fetch timeout, at most maxIdleWait.
func idleBudget(timeout time.Duration) time.Duration {
	return min(timeout/3, maxIdleWait)
}

// classify maps rod errors onto the fetch error taxonomy.
func classify(url string, timeout time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &scraper.TimeoutError{URL: url, Timeout: timeout, Err: err}
	}
	return &scraper.FetchError{URL: url, Err: err}
}

func headerValue(h proto.NetworkHeaders, name string) string {
	for k, v := range h {
		if strings.EqualFold(k, name) {
			return v.Str()
		}
	}
	return ""
}
