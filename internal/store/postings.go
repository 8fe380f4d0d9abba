package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jobbridge/ingest/internal/models"
)

const postingColumns = `id, external_url, source, title, position, description, required_skills,
  experience_level, location, salary, deadline, company_id, created_at, updated_at`

// ListExternalURLs returns every non-empty external URL stored for source.
func (s *Store) ListExternalURLs(ctx context.Context, source models.Source) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT external_url FROM job_posting WHERE source = ? AND external_url IS NOT NULL AND external_url <> ''`),
		string(source),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "list external urls for %s", source)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, errors.Wrap(err, "scan external url")
		}
		urls = append(urls, url)
	}
	return urls, errors.Wrap(rows.Err(), "iterate external urls")
}

// Save inserts p and sets its ID. A posting whose external URL is already
// stored is left untouched and ErrDuplicate is returned; the unique index
// makes the check atomic.
func (s *Store) Save(ctx context.Context, p *models.Posting) error {
	if p == nil {
		return errors.New("nil posting")
	}
	if strings.TrimSpace(p.Title) == "" {
		return errors.New("posting title is empty")
	}

	var externalURL any
	if p.ExternalURL != "" {
		externalURL = p.ExternalURL
	}
	var companyRef any
	if p.CompanyRef != nil {
		companyRef = *p.CompanyRef
	}

	row := s.db.QueryRowContext(ctx, s.rebind(`
INSERT INTO job_posting (external_url, source, title, position, description, required_skills,
  experience_level, location, salary, deadline, company_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (external_url) DO NOTHING
RETURNING id`),
		externalURL,
		string(p.Source),
		p.Title,
		p.Position,
		p.Description,
		p.RequiredSkills,
		p.ExperienceLevel,
		p.Location,
		p.Salary,
		s.nullTimeValue(p.Deadline),
		companyRef,
		s.timeValue(p.CreatedAt),
		s.timeValue(p.UpdatedAt),
	)

	var id int64
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errors.Wrapf(ErrDuplicate, "save %s", p.ExternalURL)
		}
		return errors.Wrapf(err, "save posting %q", p.Title)
	}
	p.ID = id
	return nil
}

// FindBySource returns the postings of source, newest first.
func (s *Store) FindBySource(ctx context.Context, source models.Source) ([]models.Posting, error) {
	return s.findBySource(ctx, source, 0)
}

// FindRecentBySource is FindBySource capped at limit rows; limit <= 0
// means no cap.
func (s *Store) FindRecentBySource(ctx context.Context, source models.Source, limit int) ([]models.Posting, error) {
	return s.findBySource(ctx, source, limit)
}

func (s *Store) findBySource(ctx context.Context, source models.Source, limit int) ([]models.Posting, error) {
	query := `SELECT ` + postingColumns + ` FROM job_posting WHERE source = ? ORDER BY created_at DESC, id DESC`
	args := []any{string(source)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, errors.Wrapf(err, "find postings for %s", source)
	}
	defer rows.Close()

	var postings []models.Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, err
		}
		postings = append(postings, p)
	}
	return postings, errors.Wrap(rows.Err(), "iterate postings")
}

func scanPosting(rows *sql.Rows) (models.Posting, error) {
	var (
		p           models.Posting
		externalURL sql.NullString
		source      string
		companyRef  sql.NullInt64
		deadline    timeScanner
		createdAt   timeScanner
		updatedAt   timeScanner
	)
	if err := rows.Scan(
		&p.ID,
		&externalURL,
		&source,
		&p.Title,
		&p.Position,
		&p.Description,
		&p.RequiredSkills,
		&p.ExperienceLevel,
		&p.Location,
		&p.Salary,
		&deadline,
		&companyRef,
		&createdAt,
		&updatedAt,
	); err != nil {
		return p, errors.Wrap(err, "scan posting")
	}

	p.ExternalURL = externalURL.String
	p.Source = models.Source(source)
	p.Deadline = deadline.ptr()
	if companyRef.Valid {
		ref := companyRef.Int64
		p.CompanyRef = &ref
	}
	p.CreatedAt = createdAt.Time
	p.UpdatedAt = updatedAt.Time
	return p, nil
}
