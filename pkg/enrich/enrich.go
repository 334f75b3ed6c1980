// Package enrich annotates result urls with a display title and a favicon
// url fetched from the live page.
//
// Both values are best effort and always set: a failed fetch or a page
// without the expected markup degrades to the url itself (title) or to
// scheme://host/favicon.ico (favicon). Title and favicon are resolved with
// two independent fetches.
package enrich

import (
	"context"
	"errors"
	"time"

	"github.com/rubiojr/sift/pkg/fallback"
	"github.com/rubiojr/sift/pkg/log"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrency  = 8
	DefaultFetchTimeout = 10 * time.Second
)

var errNoFetcher = errors.New("no fetcher configured")

// Fetcher returns the body of the page at url as text. fetch.Client
// implements it.
type Fetcher interface {
	Get(ctx context.Context, url string) (string, error)
}

// Result is one enriched search hit.
type Result struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Favicon string `json:"favicon"`
}

type Enricher struct {
	fetcher     Fetcher
	concurrency int
	timeout     time.Duration
	logger      *log.Logger
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithConcurrency bounds how many urls are enriched at the same time.
func WithConcurrency(n int) Option {
	return func(e *Enricher) {
		if n < 1 {
			n = 1
		}
		e.concurrency = n
	}
}

// WithFetchTimeout bounds every single fetch. Zero disables the timeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(e *Enricher) {
		e.timeout = d
	}
}

func New(fetcher Fetcher, opts ...Option) *Enricher {
	e := &Enricher{
		fetcher:     fetcher,
		concurrency: DefaultConcurrency,
		timeout:     DefaultFetchTimeout,
		logger:      log.ForService("enrich"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich resolves every url and returns the results in input order. At most
// the configured number of urls are in flight; cancelling ctx makes pending
// fetches fail fast into their fallback values.
func (e *Enricher) Enrich(ctx context.Context, urls []string) []Result {
	results := make([]Result, len(urls))
	if len(urls) == 0 {
		return results
	}

	start := time.Now()
	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, u := range urls {
		g.Go(func() error {
			results[i] = e.Resolve(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	e.logger.Debugf("enriched %d urls in %s", len(urls), time.Since(start).Round(time.Millisecond))
	return results
}

// Resolve enriches a single url.
func (e *Enricher) Resolve(ctx context.Context, u string) Result {
	return Result{
		URL:     u,
		Title:   e.Title(ctx, u),
		Favicon: e.Favicon(ctx, u),
	}
}

// Title fetches u and returns its <title>, or u when there is none.
func (e *Enricher) Title(ctx context.Context, u string) string {
	return fallback.Resolve(ctx, "fetch.title", func(ctx context.Context) (string, error) {
		body, err := e.fetch(ctx, u)
		if err != nil {
			return "", err
		}
		if title, ok := ExtractTitle(body); ok {
			return title, nil
		}
		return u, nil
	}, u)
}

// Favicon fetches u and returns the absolute url of its declared icon, or
// the default /favicon.ico of its origin.
func (e *Enricher) Favicon(ctx context.Context, u string) string {
	def := DefaultFavicon(u)
	return fallback.Resolve(ctx, "fetch.favicon", func(ctx context.Context) (string, error) {
		body, err := e.fetch(ctx, u)
		if err != nil {
			return "", err
		}
		if href, ok := ExtractFaviconHref(body); ok {
			return ResolveFavicon(u, href), nil
		}
		return def, nil
	}, def)
}

func (e *Enricher) fetch(ctx context.Context, u string) (string, error) {
	if e.fetcher == nil {
		return "", errNoFetcher
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	return e.fetcher.Get(ctx, u)
}
