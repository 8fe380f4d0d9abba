// Package connector pulls raw listings from external job boards and maps
// them onto the canonical posting.
package connector

import (
	"context"
	"fmt"
	"iter"

	"github.com/cockroachdb/errors"
	"github.com/jobbridge/ingest/internal/models"
)

// ErrInitialContact marks a failure to reach or parse a source's first
// response. It aborts the run for the current tick.
var ErrInitialContact = errors.New("initial contact failed")

// ErrNotConfigured is returned when a connector lacks required settings.
var ErrNotConfigured = errors.New("connector not configured")

// RawRecord is one listing as a source delivered it.
type RawRecord struct {
	Source models.Source
	// Ref identifies the item within the source: an ID or a page offset.
	Ref         string
	URL         string
	Payload     []byte
	Description string
}

// ItemError is a failure confined to one listing. The run goes on.
type ItemError struct {
	Ref string
	URL string
	Err error
}

func (e *ItemError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("item %s: %v", e.Ref, e.Err)
	}
	return fmt.Sprintf("item %s (%s): %v", e.Ref, e.URL, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// KnownURLs lets a connector skip listings that are already stored.
type KnownURLs interface {
	Contains(url string) bool
}

// Connector is one external source. Fetch yields raw records lazily; a
// yielded error is either an *ItemError or one marked ErrInitialContact,
// after which the sequence ends. Normalize never touches the network.
type Connector interface {
	Source() models.Source
	Fetch(ctx context.Context, known KnownURLs) iter.Seq2[RawRecord, error]
	Normalize(rec RawRecord) (models.Posting, error)
}

func initialContact(err error, format string, args ...any) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrInitialContact)
}

func itemError(ref, url string, err error) error {
	return &ItemError{Ref: ref, URL: url, Err: err}
}

// IsItemError reports whether err is confined to one listing.
func IsItemError(err error) bool {
	var itemErr *ItemError
	return errors.As(err, &itemErr)
}

type nothingKnown struct{}

func (nothingKnown) Contains(string) bool { return false }

func knownOrEmpty(known KnownURLs) KnownURLs {
	if known == nil {
		return nothingKnown{}
	}
	return known
}
