// Package search wires the query pipeline of sift together.
//
// # Overview
//
// A query flows through four stages, each owned by its own package:
//
//   - tokenize: the raw query is split into normalized tokens
//   - index: every token is looked up in the word index, hits are concatenated
//   - enrich: every url gets a live title and favicon
//   - render: the enriched results are injected into the page template
//
// The pipeline never fails. Store reads, page fetches and template loads
// degrade to fallback values through pkg/fallback, so the worst case for a
// query is an empty page or a page of bare urls.
//
// # Usage
//
//	store, _ := storage.Open(cfg.DatabasePath)
//	client := fetch.New(fetch.Options{UserAgent: cfg.Enrich.UserAgent})
//	builder := render.NewBuilder(cfg.TemplatePath, cfg.Placeholder)
//
//	p := search.NewPipeline(store, client, builder,
//		search.WithConcurrency(8),
//		search.WithFetchTimeout(10*time.Second),
//	)
//	html := p.Page(ctx, "golang concurrency")
//
// # Determinism
//
// Given the same query, the same index contents and the same fetched bodies,
// Page returns byte-identical output. Results are always in aggregation
// order: token order first, then the stored order of each token's urls.
package search
