package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/rxintel-group/exposure-cli/internal/fetcher"
	"github.com/rxintel-group/exposure-cli/internal/pipeline"
	"github.com/rxintel-group/exposure-cli/internal/refdata"
	"github.com/rxintel-group/exposure-cli/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	dsn := cfg.Store.DatabaseURL
	if cfg.Store.Driver == "" || cfg.Store.Driver == "sqlite" {
		dsn = cfg.Store.SQLitePath
		if dsn == "" {
			dsn = "exposure.db"
		}
	}
	return store.Open(ctx, cfg.Store.Driver, dsn)
}

// initPipeline wires the fetchers, cache, and registry into one pipeline.
// The caller closes the returned store.
func initPipeline(ctx context.Context, force bool) (*pipeline.Pipeline, store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, nil, eris.Wrap(err, "migrate store")
	}

	timeout := time.Duration(cfg.Refdata.TimeoutSecs) * time.Second
	httpF := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  cfg.Refdata.UserAgent,
		Timeout:    timeout,
		MaxRetries: cfg.Refdata.MaxRetries,
	})
	ftpF := fetcher.NewFTPFetcher(timeout)
	cache := refdata.NewCache(cfg.Paths.ReferenceDir, httpF, ftpF, force)

	return pipeline.New(cfg, st, cache), st, nil
}
