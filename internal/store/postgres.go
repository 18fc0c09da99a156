package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/rxintel-group/exposure-cli/internal/db"
	"github.com/rxintel-group/exposure-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	command     TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	pharmacies  INTEGER NOT NULL DEFAULT 0,
	states      INTEGER NOT NULL DEFAULT 0,
	output_path TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS fetches (
	name       TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	bytes      BIGINT NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS scored_pharmacies (
	npi           TEXT PRIMARY KEY,
	state         TEXT NOT NULL,
	zip           TEXT NOT NULL,
	county_fips   TEXT NOT NULL DEFAULT '',
	nearby_claims DOUBLE PRECISION NOT NULL DEFAULT 0,
	score         DOUBLE PRECISION NOT NULL DEFAULT 0,
	monthly_fills INTEGER NOT NULL DEFAULT 0,
	annual_loss   INTEGER NOT NULL DEFAULT 0,
	grade         TEXT NOT NULL DEFAULT '',
	scored_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_scored_state ON scored_pharmacies(state);
CREATE INDEX IF NOT EXISTS idx_scored_grade ON scored_pharmacies(grade);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) StartRun(ctx context.Context, command string) (*model.RunSummary, error) {
	run := &model.RunSummary{
		ID:        uuid.New().String(),
		Command:   command,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, command, status, started_at) VALUES ($1, $2, $3, $4)`,
		run.ID, run.Command, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return run, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, run *model.RunSummary) error {
	run.Status = model.RunStatusCompleted
	run.FinishedAt = time.Now().UTC()

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, pharmacies = $2, states = $3, output_path = $4, finished_at = $5 WHERE id = $6`,
		run.Status, run.Pharmacies, run.States, run.OutputPath, run.FinishedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", run.ID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, finished_at = $3 WHERE id = $4`,
		model.RunStatusFailed, reason, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.RunSummary, error) {
	var run model.RunSummary
	var finished *time.Time

	err := s.pool.QueryRow(ctx,
		`SELECT id, command, status, pharmacies, states, output_path, error, started_at, finished_at
		 FROM runs WHERE id = $1`, runID,
	).Scan(&run.ID, &run.Command, &run.Status, &run.Pharmacies, &run.States,
		&run.OutputPath, &run.Error, &run.StartedAt, &finished)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	if finished != nil {
		run.FinishedAt = *finished
	}
	return &run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, command, status, pharmacies, states, output_path, error, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.RunSummary
	for rows.Next() {
		var run model.RunSummary
		var finished *time.Time
		if err := rows.Scan(&run.ID, &run.Command, &run.Status, &run.Pharmacies, &run.States,
			&run.OutputPath, &run.Error, &run.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if finished != nil {
			run.FinishedAt = *finished
		}
		runs = append(runs, run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs")
}

func (s *PostgresStore) SaveScored(ctx context.Context, pharmacies []*model.Pharmacy) (int64, error) {
	if len(pharmacies) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(pharmacies))
	for _, p := range pharmacies {
		rows = append(rows, []any{
			p.NPI, p.State, p.Zip, p.CountyFIPS, p.NearbyClaims, p.Score,
			p.MonthlyFills, p.AnnualLoss, p.Grade, now,
		})
	}

	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "scored_pharmacies",
		Columns: []string{
			"npi", "state", "zip", "county_fips", "nearby_claims", "score",
			"monthly_fills", "annual_loss", "grade", "scored_at",
		},
		ConflictKeys: []string{"npi"},
	}, rows)
}

func (s *PostgresStore) RecordFetch(ctx context.Context, name, url string, bytes int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO fetches (name, url, bytes, fetched_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name) DO UPDATE SET url = EXCLUDED.url, bytes = EXCLUDED.bytes, fetched_at = EXCLUDED.fetched_at`,
		name, url, bytes, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: record fetch %s", name)
}

func (s *PostgresStore) LastFetch(ctx context.Context, name string) (*FetchRecord, error) {
	var rec FetchRecord
	err := s.pool.QueryRow(ctx,
		`SELECT name, url, bytes, fetched_at FROM fetches WHERE name = $1`, name,
	).Scan(&rec.Name, &rec.URL, &rec.Bytes, &rec.FetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: last fetch %s", name)
	}
	return &rec, nil
}
