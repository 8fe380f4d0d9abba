package store

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	"github.com/jobbridge/ingest/internal/models"
)

// RecordRun stores the outcome of one ingestion run.
func (s *Store) RecordRun(ctx context.Context, r models.RunReport) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
INSERT INTO ingest_run (run_id, source, started_at, finished_at, fetched, saved, duplicates,
  invalid, failed, canceled, last_position, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.RunID,
		string(r.Source),
		s.timeValue(r.StartedAt),
		s.timeValue(r.FinishedAt),
		r.Fetched,
		r.Saved,
		r.Duplicates,
		r.Invalid,
		r.Failed,
		r.Canceled,
		r.LastPosition,
		r.Error,
	)
	return errors.Wrapf(err, "record run %s", r.RunID)
}

// RecentRuns returns the latest runs, newest first. An empty source
// returns runs of every source.
func (s *Store) RecentRuns(ctx context.Context, source models.Source, limit int) ([]models.RunReport, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT run_id, source, started_at, finished_at, fetched, saved, duplicates, invalid,
  failed, canceled, last_position, error FROM ingest_run`
	var args []any
	if source != "" {
		query += ` WHERE source = ?`
		args = append(args, string(source))
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	defer rows.Close()

	var runs []models.RunReport
	for rows.Next() {
		var (
			r          models.RunReport
			src        string
			startedAt  timeScanner
			finishedAt timeScanner
		)
		if err := rows.Scan(&r.RunID, &src, &startedAt, &finishedAt, &r.Fetched, &r.Saved,
			&r.Duplicates, &r.Invalid, &r.Failed, &r.Canceled, &r.LastPosition, &r.Error); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		r.Source = models.Source(src)
		r.StartedAt = startedAt.Time
		r.FinishedAt = finishedAt.Time
		runs = append(runs, r)
	}
	return runs, errors.Wrap(rows.Err(), "iterate runs")
}

// LastPosition returns the last position reached by the most recent run of
// source that got past initial contact.
func (s *Store) LastPosition(ctx context.Context, source models.Source) (string, error) {
	var position string
	err := s.db.QueryRowContext(ctx, s.rebind(`
SELECT last_position FROM ingest_run
WHERE source = ? AND error = '' AND last_position <> ''
ORDER BY started_at DESC LIMIT 1`), string(source)).Scan(&position)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return position, errors.Wrapf(err, "last position for %s", source)
}
