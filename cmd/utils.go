package cmd

import (
	"fmt"

	"github.com/rubiojr/sift/pkg/config"
	"github.com/rubiojr/sift/pkg/fetch"
	"github.com/rubiojr/sift/pkg/render"
	"github.com/rubiojr/sift/pkg/search"
	"github.com/rubiojr/sift/pkg/storage"
)

// openIndex loads the configuration and opens the index it points to
func openIndex(configPath string) (*config.Config, *storage.Store, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening index %s: %w", cfg.DatabasePath, err)
	}
	return cfg, store, nil
}

// newPipeline builds the query pipeline described by cfg on top of store
func newPipeline(cfg *config.Config, store *storage.Store) *search.Pipeline {
	client := fetch.New(fetch.Options{
		MaxBodyBytes:      cfg.Enrich.MaxBodyBytes,
		MaxRedirects:      cfg.Enrich.MaxRedirects,
		UserAgent:         cfg.Enrich.UserAgent,
		RequestsPerSecond: cfg.Enrich.RequestsPerSecond,
	})
	builder := render.NewBuilder(cfg.TemplatePath, cfg.Placeholder)

	return search.NewPipeline(store, client, builder,
		search.WithConcurrency(cfg.Enrich.Concurrency),
		search.WithFetchTimeout(cfg.Enrich.FetchTimeout.Duration),
	)
}

// closeStore closes store, printing instead of failing
func closeStore(store *storage.Store) {
	if err := store.Close(); err != nil {
		fmt.Printf("Warning: failed to close index: %v\n", err)
	}
}
