package store

import (
	"context"

	"github.com/cockroachdb/errors"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS job_posting (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  external_url TEXT UNIQUE,
  source TEXT NOT NULL,
  title TEXT NOT NULL,
  position TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  required_skills TEXT NOT NULL DEFAULT '',
  experience_level TEXT NOT NULL DEFAULT '',
  location TEXT NOT NULL DEFAULT '',
  salary TEXT NOT NULL DEFAULT '',
  deadline TEXT,
  company_id INTEGER,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS job_posting_source_idx ON job_posting (source, created_at)`,
	`CREATE TABLE IF NOT EXISTS ingest_run (
  run_id TEXT PRIMARY KEY,
  source TEXT NOT NULL,
  started_at TEXT NOT NULL,
  finished_at TEXT NOT NULL,
  fetched INTEGER NOT NULL DEFAULT 0,
  saved INTEGER NOT NULL DEFAULT 0,
  duplicates INTEGER NOT NULL DEFAULT 0,
  invalid INTEGER NOT NULL DEFAULT 0,
  failed INTEGER NOT NULL DEFAULT 0,
  canceled INTEGER NOT NULL DEFAULT 0,
  last_position TEXT NOT NULL DEFAULT '',
  error TEXT NOT NULL DEFAULT ''
)`,
	`CREATE INDEX IF NOT EXISTS ingest_run_source_idx ON ingest_run (source, started_at)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS job_posting (
  id BIGSERIAL PRIMARY KEY,
  external_url TEXT UNIQUE,
  source TEXT NOT NULL,
  title TEXT NOT NULL,
  position TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  required_skills TEXT NOT NULL DEFAULT '',
  experience_level TEXT NOT NULL DEFAULT '',
  location TEXT NOT NULL DEFAULT '',
  salary TEXT NOT NULL DEFAULT '',
  deadline TIMESTAMPTZ,
  company_id BIGINT,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS job_posting_source_idx ON job_posting (source, created_at)`,
	`CREATE TABLE IF NOT EXISTS ingest_run (
  run_id TEXT PRIMARY KEY,
  source TEXT NOT NULL,
  started_at TIMESTAMPTZ NOT NULL,
  finished_at TIMESTAMPTZ NOT NULL,
  fetched INTEGER NOT NULL DEFAULT 0,
  saved INTEGER NOT NULL DEFAULT 0,
  duplicates INTEGER NOT NULL DEFAULT 0,
  invalid INTEGER NOT NULL DEFAULT 0,
  failed INTEGER NOT NULL DEFAULT 0,
  canceled BOOLEAN NOT NULL DEFAULT FALSE,
  last_position TEXT NOT NULL DEFAULT '',
  error TEXT NOT NULL DEFAULT ''
)`,
	`CREATE INDEX IF NOT EXISTS ingest_run_source_idx ON ingest_run (source, started_at)`,
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	schema := sqliteSchema
	if s.dialect == Postgres {
		schema = postgresSchema
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin migration")
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "migrate")
		}
	}
	return errors.Wrap(tx.Commit(), "commit migration")
}
