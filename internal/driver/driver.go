// Package driver runs targets through fetch, convert and write, one at a
// time, pacing requests and recording an outcome per target.
package driver

import (
	"context"
	"net/url"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pagemd/internal/converter"
	"pagemd/internal/formatter"
	"pagemd/internal/output"
	"pagemd/internal/robots"
	"pagemd/internal/scraper"
)

// Writer persists formatted documents.
type Writer interface {
	Write(path string, data []byte) error
}

// Policy decides whether a URL may be fetched.
type Policy interface {
	Allowed(url string) bool
}

// Options configures a run.
type Options struct {
	OutputDir   string
	Timeout     time.Duration
	Delay       time.Duration // pause between the end of one fetch and the next
	Format      string
	FrontMatter bool
	Follow      bool // enqueue same-site links found on fetched pages
	MaxPages    int  // cap on the queue in follow mode, 0 for none
}

// Option customizes a Driver.
type Option func(*Driver)

// WithWriter replaces the file writer.
func WithWriter(w Writer) Option {
	return func(d *Driver) { d.writer = w }
}

// WithPolicy sets the robots policy. The default allows everything.
func WithPolicy(p Policy) Option {
	return func(d *Driver) { d.policy = p }
}

// WithClock overrides the time source for document timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) { d.now = now }
}

// Driver sequences targets through the pipeline. The fetcher is owned by
// the caller and must stay open for the duration of Run.
type Driver struct {
	fetcher   scraper.Fetcher
	converter *converter.Converter
	writer    Writer
	policy    Policy
	pacer     *pacer
	base      *url.URL
	opts      Options
	log       zerolog.Logger
	now       func() time.Time
}

// New creates a Driver for targets under base.
func New(fetcher scraper.Fetcher, base *url.URL, opts Options, log zerolog.Logger, options ...Option) *Driver {
	if opts.Format == "" {
		opts.Format = formatter.Markdown
	}
	d := &Driver{
		fetcher:   fetcher,
		converter: converter.New(),
		writer:    output.NewWriter(),
		policy:    robots.AllowAll(),
		pacer:     newPacer(opts.Delay),
		base:      base,
		opts:      opts,
		log:       log,
		now:       time.Now,
	}
	for _, o := range options {
		o(d)
	}
	return d
}

// Run processes targets in order. A failing target is recorded and the run
// moves on; a *scraper.FatalError or a cancelled ctx stops the run and is
// returned together with the report so far.
func (d *Driver) Run(ctx context.Context, targets []scraper.Target) (*Report, error) {
	report := &Report{StartedAt: d.now()}
	defer func() { report.FinishedAt = d.now() }()

	queue := slices.Clone(targets)
	seen := make(map[string]bool, len(queue))
	for _, t := range queue {
		seen[t.Key()] = true
	}

	for i := 0; i < len(queue); i++ {
		if err := ctx.Err(); err != nil {
			report.Aborted = true
			return report, err
		}

		outcome, links, err := d.process(ctx, queue[i])
		report.add(outcome)
		d.logOutcome(outcome)
		if err != nil {
			report.Aborted = true
			d.log.Error().Err(err).Str("url", outcome.URL).Msg("aborting run")
			return report, err
		}

		for _, link := range links {
			if d.opts.MaxPages > 0 && len(queue) >= d.opts.MaxPages {
				break
			}
			t, ok := d.discovered(link)
			if !ok || seen[t.Key()] {
				continue
			}
			seen[t.Key()] = true
			queue = append(queue, t)
			d.log.Debug().Str("url", t.String()).Msg("queued link")
		}
	}

	if err := ctx.Err(); err != nil {
		report.Aborted = true
		return report, err
	}
	return report, nil
}

// process runs one target. The returned error is non-nil only when the run
// must stop.
func (d *Driver) process(ctx context.Context, t scraper.Target) (Outcome, []string, error) {
	start := time.Now()
	o := Outcome{Target: t.Path, URL: t.String(), State: StatePending}
	finish := func(o Outcome) Outcome {
		o.DurationMS = time.Since(start).Milliseconds()
		return o
	}

	if !d.policy.Allowed(o.URL) {
		o.State = StateSkipped
		o.Error = "disallowed by robots.txt"
		return finish(o), nil, nil
	}

	if err := d.pacer.wait(ctx); err != nil {
		return finish(fail(o, err)), nil, err
	}

	o.State = StateFetching
	page, err := d.fetcher.Fetch(ctx, o.URL, d.opts.Timeout)
	d.pacer.done(time.Now())
	if err != nil {
		o = finish(fail(o, err))
		if scraper.IsFatal(err) {
			return o, nil, err
		}
		return o, nil, nil
	}

	o.State = StateConverting
	pageURL := pageURL(t, page)
	doc := d.document(t, page, pageURL)
	data, err := formatter.Format(doc, d.opts.Format, formatter.Options{FrontMatter: d.opts.FrontMatter})
	if err != nil {
		return finish(fail(o, &scraper.ConversionError{URL: o.URL, Err: err})), nil, nil
	}

	o.State = StateWriting
	o.Path = doc.Path
	if err := d.writer.Write(doc.Path, data); err != nil {
		return finish(fail(o, err)), nil, nil
	}

	o.State = StateDone
	o.Bytes = len(data)

	var links []string
	if d.opts.Follow {
		links = converter.Links(page.HTML, pageURL)
	}
	return finish(o), links, nil
}

func fail(o Outcome, err error) Outcome {
	o.FailedAt = o.State
	o.State = StateFailed
	o.Error = err.Error()
	o.err = err
	return o
}

func (d *Driver) document(t scraper.Target, page *scraper.PageResult, pageURL *url.URL) *scraper.Document {
	title := page.Title
	if title == "" {
		title = converter.Title(page.HTML)
	}
	return &scraper.Document{
		SourceURL: t.String(),
		Title:     title,
		Markdown:  d.converter.ConvertPage(page.HTML, pageURL),
		Path:      output.PathFor(d.opts.OutputDir, t.URL, formatter.Extension(d.opts.Format)),
		FetchedAt: d.now(),
		LoadTime:  page.LoadTime,
	}
}

// pageURL is where the page ended up, used to resolve its relative links.
func pageURL(t scraper.Target, page *scraper.PageResult) *url.URL {
	if page.FinalURL != "" {
		if u, err := url.Parse(page.FinalURL); err == nil && u.IsAbs() {
			return u
		}
	}
	return t.URL
}

// discovered turns a link into a target when it is on the base site and
// under the base directory.
func (d *Driver) discovered(link string) (scraper.Target, bool) {
	t, err := scraper.NewTarget(d.base, link)
	if err != nil {
		return scraper.Target{}, false
	}
	base := d.base.Path
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	dir := path.Dir(base + "x")
	if dir != "/" {
		dir += "/"
	}
	if !strings.HasPrefix(t.URL.Path, dir) {
		return scraper.Target{}, false
	}
	return t, true
}

func (d *Driver) logOutcome(o Outcome) {
	var ev *zerolog.Event
	switch o.State {
	case StateDone:
		ev = d.log.Info()
	case StateSkipped:
		ev = d.log.Warn().Str("reason", o.Error)
	default:
		ev = d.log.Warn().Err(o.err).Str("stage", string(o.FailedAt))
	}
	ev.Str("url", o.URL).
		Str("state", string(o.State)).
		Str("path", o.Path).
		Int("bytes", o.Bytes).
		Int64("duration_ms", o.DurationMS).
		Msg(outcomeMessage(o.State))
}

func outcomeMessage(s State) string {
	switch s {
	case StateDone:
		return "converted"
	case StateSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// EffectiveDelay is the larger of the configured delay and the site's
// Crawl-delay.
func EffectiveDelay(configured time.Duration, policy *robots.Policy) time.Duration {
	return max(configured, policy.CrawlDelay())
}
