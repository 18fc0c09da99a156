// Package store persists the run registry and fetch-cache metadata, with a
// SQLite default for single-machine use and a Postgres backend for shared
// deployments.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/rxintel-group/exposure-cli/internal/model"
)

// FetchRecord is one cached reference-file download.
type FetchRecord struct {
	Name      string
	URL       string
	Bytes     int64
	FetchedAt time.Time
}

// Store is the persistence interface for the pipeline.
type Store interface {
	// Run registry.
	StartRun(ctx context.Context, command string) (*model.RunSummary, error)
	CompleteRun(ctx context.Context, run *model.RunSummary) error
	FailRun(ctx context.Context, runID, reason string) error
	GetRun(ctx context.Context, runID string) (*model.RunSummary, error)
	ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error)

	// Scored snapshot. Re-saving the same NPIs replaces the prior rows.
	SaveScored(ctx context.Context, pharmacies []*model.Pharmacy) (int64, error)

	// Fetch-cache metadata.
	RecordFetch(ctx context.Context, name, url string, bytes int64) error
	LastFetch(ctx context.Context, name string) (*FetchRecord, error)

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}

// Open selects a backend by driver name: "sqlite" (default) or "postgres".
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
