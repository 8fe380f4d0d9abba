// Package store persists canonical postings and run reports in SQLite or
// PostgreSQL through database/sql.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// ErrDuplicate is returned by Save when a posting with the same external
// URL already exists.
var ErrDuplicate = errors.New("duplicate external url")

type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

type Store struct {
	db      *sql.DB
	dialect Dialect
}

func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Open connects using dsn. postgres:// and postgresql:// URLs use pgx;
// anything else is a SQLite path, optionally prefixed with "sqlite:".
func Open(ctx context.Context, dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("database url is empty")
	}

	var (
		db      *sql.DB
		err     error
		dialect Dialect
	)
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		dialect = Postgres
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, errors.Wrap(err, "open postgres")
		}
		db.SetMaxOpenConns(4)
	default:
		dialect = SQLite
		path := strings.TrimPrefix(dsn, "sqlite:")
		path = strings.TrimPrefix(path, "file:")
		db, err = sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path))
		if err != nil {
			return nil, errors.Wrap(err, "open sqlite")
		}
		// sqlite wants a single writer
		db.SetMaxOpenConns(1)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "ping %s", dialect)
	}

	return &Store{db: db, dialect: dialect}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Dialect() Dialect {
	return s.dialect
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// timeLayout is fixed width so text timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (s *Store) timeValue(t time.Time) any {
	if s.dialect == Postgres {
		return t.UTC()
	}
	return t.UTC().Format(timeLayout)
}

func (s *Store) nullTimeValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return s.timeValue(*t)
}

// timeScanner reads timestamps stored natively or as text.
type timeScanner struct {
	Time  time.Time
	Valid bool
}

var textTimeLayouts = []string{
	timeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

func (ts *timeScanner) Scan(src any) error {
	ts.Time, ts.Valid = time.Time{}, false
	var text string
	switch v := src.(type) {
	case nil:
		return nil
	case time.Time:
		ts.Time, ts.Valid = v, true
		return nil
	case string:
		text = v
	case []byte:
		text = string(v)
	default:
		return errors.Newf("unsupported timestamp type %T", src)
	}
	for _, layout := range textTimeLayouts {
		if parsed, err := time.Parse(layout, text); err == nil {
			ts.Time, ts.Valid = parsed, true
			return nil
		}
	}
	return errors.Newf("unparseable timestamp %q", text)
}

func (ts timeScanner) ptr() *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}
