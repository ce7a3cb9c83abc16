package scraper

import (
	"context"
	"time"
)

// Fetcher loads a page and returns its rendered HTML.
// Implementations own their underlying resources until Close is called.
type Fetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) (*PageResult, error)
	Close() error
}

// Options configures a fetch engine when it is opened.
type Options struct {
	UserAgent     string
	Headless      bool
	ProxyURL      string        // --proxy flag or PAGEMD_PROXY env var
	BrowserBin    string        // browser executable, empty to let rod find one
	Level         string        // full/body/content/css/xpath
	Selector      string        // only for css and xpath levels
	MaxRetryAfter time.Duration // upper bound on a honored Retry-After wait
}

// PageResult is the outcome of a successful fetch.
type PageResult struct {
	URL      string // requested URL
	FinalURL string // URL after redirects
	Title    string
	Status   int // HTTP status of the main document, 0 when unknown
	HTML     string
	LoadTime time.Duration
}

// Document is converted page content bound to its destination path.
type Document struct {
	SourceURL string
	Title     string
	Markdown  string
	Path      string
	FetchedAt time.Time
	LoadTime  time.Duration
}

// Extraction levels understood by the browser engine.
const (
	LevelFull    = "full"    // whole document including head
	LevelBody    = "body"    // body innerHTML
	LevelContent = "content" // main content heuristics, falling back to body
	LevelCSS     = "css"     // elements matching a CSS selector
	LevelXPath   = "xpath"   // elements matching an XPath expression
)

// Levels lists the supported extraction levels.
var Levels = []string{LevelFull, LevelBody, LevelContent, LevelCSS, LevelXPath}
