package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/rxintel-group/exposure-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	command     TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	pharmacies  INTEGER NOT NULL DEFAULT 0,
	states      INTEGER NOT NULL DEFAULT 0,
	output_path TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS fetches (
	name       TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	bytes      INTEGER NOT NULL,
	fetched_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS scored_pharmacies (
	npi           TEXT PRIMARY KEY,
	state         TEXT NOT NULL,
	zip           TEXT NOT NULL,
	county_fips   TEXT NOT NULL DEFAULT '',
	nearby_claims REAL NOT NULL DEFAULT 0,
	score         REAL NOT NULL DEFAULT 0,
	monthly_fills INTEGER NOT NULL DEFAULT 0,
	annual_loss   INTEGER NOT NULL DEFAULT 0,
	grade         TEXT NOT NULL DEFAULT '',
	scored_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_scored_state ON scored_pharmacies(state);
CREATE INDEX IF NOT EXISTS idx_scored_grade ON scored_pharmacies(grade);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) StartRun(ctx context.Context, command string) (*model.RunSummary, error) {
	run := &model.RunSummary{
		ID:        uuid.New().String(),
		Command:   command,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, command, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Command, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return run, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, run *model.RunSummary) error {
	run.Status = model.RunStatusCompleted
	run.FinishedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, pharmacies = ?, states = ?, output_path = ?, finished_at = ? WHERE id = ?`,
		run.Status, run.Pharmacies, run.States, run.OutputPath, run.FinishedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", run.ID)
	}
	return checkAffected(res, run.ID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		model.RunStatusFailed, reason, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkAffected(res, runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.RunSummary, error) {
	var run model.RunSummary
	var finished sql.NullTime

	err := s.db.QueryRowContext(ctx,
		`SELECT id, command, status, pharmacies, states, output_path, error, started_at, finished_at
		 FROM runs WHERE id = ?`, runID,
	).Scan(&run.ID, &run.Command, &run.Status, &run.Pharmacies, &run.States,
		&run.OutputPath, &run.Error, &run.StartedAt, &finished)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("sqlite: run %s not found", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	return &run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, command, status, pharmacies, states, output_path, error, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.RunSummary
	for rows.Next() {
		var run model.RunSummary
		var finished sql.NullTime
		if err := rows.Scan(&run.ID, &run.Command, &run.Status, &run.Pharmacies, &run.States,
			&run.OutputPath, &run.Error, &run.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if finished.Valid {
			run.FinishedAt = finished.Time
		}
		runs = append(runs, run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs")
}

func (s *SQLiteStore) SaveScored(ctx context.Context, pharmacies []*model.Pharmacy) (int64, error) {
	if len(pharmacies) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin save")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO scored_pharmacies
		   (npi, state, zip, county_fips, nearby_claims, score, monthly_fills, annual_loss, grade, scored_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (npi) DO UPDATE SET
		   state = excluded.state, zip = excluded.zip, county_fips = excluded.county_fips,
		   nearby_claims = excluded.nearby_claims, score = excluded.score,
		   monthly_fills = excluded.monthly_fills, annual_loss = excluded.annual_loss,
		   grade = excluded.grade, scored_at = excluded.scored_at`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare save")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	var n int64
	for _, p := range pharmacies {
		if _, err := stmt.ExecContext(ctx,
			p.NPI, p.State, p.Zip, p.CountyFIPS, p.NearbyClaims, p.Score,
			p.MonthlyFills, p.AnnualLoss, p.Grade, now,
		); err != nil {
			return n, eris.Wrapf(err, "sqlite: save scored npi=%s", p.NPI)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return n, eris.Wrap(err, "sqlite: commit save")
	}
	return n, nil
}

func (s *SQLiteStore) RecordFetch(ctx context.Context, name, url string, bytes int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fetches (name, url, bytes, fetched_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET url = excluded.url, bytes = excluded.bytes, fetched_at = excluded.fetched_at`,
		name, url, bytes, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: record fetch %s", name)
}

func (s *SQLiteStore) LastFetch(ctx context.Context, name string) (*FetchRecord, error) {
	var rec FetchRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT name, url, bytes, fetched_at FROM fetches WHERE name = ?`, name,
	).Scan(&rec.Name, &rec.URL, &rec.Bytes, &rec.FetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: last fetch %s", name)
	}
	return &rec, nil
}

func checkAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: run %s not found", runID)
	}
	return nil
}
