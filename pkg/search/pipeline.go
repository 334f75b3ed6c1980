package search

import (
	"context"
	"time"

	"github.com/rubiojr/sift/pkg/enrich"
	"github.com/rubiojr/sift/pkg/index"
	"github.com/rubiojr/sift/pkg/log"
	"github.com/rubiojr/sift/pkg/render"
	"github.com/rubiojr/sift/pkg/tokenize"
	"golang.org/x/sync/errgroup"
)

// Pipeline answers keyword queries. It is safe for concurrent use; all of
// its collaborators are read only once constructed.
type Pipeline struct {
	lookup   *index.Lookup
	enricher *enrich.Enricher
	renderer render.PageRenderer
	logger   *log.Logger

	concurrency  int
	fetchTimeout time.Duration
}

// Option configures a Pipeline at construction time.
type Option func(*Pipeline)

// WithConcurrency bounds the number of urls enriched at the same time.
//
// Parameters:
//   - n: maximum urls in flight, values below 1 are treated as 1
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		p.concurrency = n
	}
}

// WithFetchTimeout bounds each individual page fetch.
//
// Parameters:
//   - d: per fetch timeout, zero disables it
func WithFetchTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.fetchTimeout = d
	}
}

// NewPipeline creates a pipeline over the given index, fetcher and page
// renderer.
//
// Parameters:
//   - reader: word index, usually a *storage.Store
//   - fetcher: page fetcher, usually a *fetch.Client
//   - renderer: results page builder, usually a *render.Builder
//   - opts: enrichment tuning
//
// Returns:
//   - *Pipeline: ready to serve queries
//
// Example:
//
//	p := search.NewPipeline(store, client, builder, search.WithConcurrency(4))
func NewPipeline(reader index.Reader, fetcher enrich.Fetcher, renderer render.PageRenderer, opts ...Option) *Pipeline {
	p := &Pipeline{
		lookup:       index.NewLookup(reader),
		renderer:     renderer,
		logger:       log.ForService("search"),
		concurrency:  enrich.DefaultConcurrency,
		fetchTimeout: enrich.DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.enricher = enrich.New(fetcher,
		enrich.WithConcurrency(p.concurrency),
		enrich.WithFetchTimeout(p.fetchTimeout),
	)
	return p
}

// Tokens returns the normalized tokens of query.
func (p *Pipeline) Tokens(query string) []string {
	return tokenize.Tokenize(query)
}

// URLs returns the aggregated index hits for query, without enrichment.
func (p *Pipeline) URLs(ctx context.Context, query string) []string {
	return p.lookup.Resolve(ctx, p.Tokens(query))
}

// Results runs tokenize, lookup and enrichment for query.
//
// Returns:
//   - []enrich.Result: one entry per aggregated url, in aggregation order;
//     never nil
func (p *Pipeline) Results(ctx context.Context, query string) []enrich.Result {
	start := time.Now()
	tokens := p.Tokens(query)
	urls := p.lookup.Resolve(ctx, tokens)
	results := p.enricher.Enrich(ctx, urls)

	p.logger.Debugf("query %q: %d tokens, %d results in %s", query, len(tokens), len(results), time.Since(start).Round(time.Millisecond))
	return results
}

// Stream behaves like Results but hands every result to emit as soon as it
// and all results before it are ready, so callers can forward them
// incrementally while keeping aggregation order. emit returning false stops
// the stream.
func (p *Pipeline) Stream(ctx context.Context, query string, emit func(enrich.Result) bool) int {
	urls := p.URLs(ctx, query)
	if len(urls) == 0 {
		return 0
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ready := make([]chan enrich.Result, len(urls))
	for i := range ready {
		ready[i] = make(chan enrich.Result, 1)
	}
	go func() {
		var g errgroup.Group
		g.SetLimit(max(1, p.concurrency))
		for i, u := range urls {
			g.Go(func() error {
				ready[i] <- p.enricher.Resolve(ctx, u)
				return nil
			})
		}
		_ = g.Wait()
	}()

	sent := 0
	for _, ch := range ready {
		r := <-ch
		if !emit(r) {
			break
		}
		sent++
	}
	return sent
}

// Page runs the full pipeline and returns the rendered results page.
func (p *Pipeline) Page(ctx context.Context, query string) string {
	return p.renderer.Build(p.Results(ctx, query))
}
