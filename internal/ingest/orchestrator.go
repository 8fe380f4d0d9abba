// Package ingest runs connectors against the posting store: one run per
// source per tick, deduplicated by external URL.
package ingest

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jobbridge/ingest/internal/connector"
	"github.com/jobbridge/ingest/internal/models"
	"github.com/jobbridge/ingest/internal/seen"
	"github.com/jobbridge/ingest/internal/store"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
)

var (
	ErrMissingTitle  = errors.New("posting has no title")
	ErrRunInProgress = errors.New("run already in progress")
	ErrUnknownSource = errors.New("no connector for source")
)

// Store is the persistence the orchestrator needs.
type Store interface {
	ListExternalURLs(ctx context.Context, source models.Source) ([]string, error)
	Save(ctx context.Context, p *models.Posting) error
	RecordRun(ctx context.Context, r models.RunReport) error
}

type Options struct {
	Logger zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
	// LockDir enables a lock file per source so that separate processes
	// never ingest the same source at once.
	LockDir string
	// RunTimeout bounds a whole run. Zero means no bound.
	RunTimeout time.Duration
}

type Orchestrator struct {
	store      Store
	connectors map[models.Source]connector.Connector
	logger     zerolog.Logger
	now        func() time.Time
	runTimeout time.Duration
	locks      *sourceLocks
}

func NewOrchestrator(st Store, connectors map[models.Source]connector.Connector, opts Options) *Orchestrator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		store:      st,
		connectors: connectors,
		logger:     opts.Logger,
		now:        now,
		runTimeout: opts.RunTimeout,
		locks:      newSourceLocks(opts.LockDir),
	}
}

// Sources lists the sources that have a connector.
func (o *Orchestrator) Sources() []models.Source {
	out := make([]models.Source, 0, len(o.connectors))
	for _, source := range models.ExternalSources {
		if _, ok := o.connectors[source]; ok {
			out = append(out, source)
		}
	}
	return out
}

// RunOnce ingests one batch from source. Item failures are counted and
// logged; only an initial contact failure, a busy lock or a store failure
// before the first item is returned as an error. A cancelled ctx ends the
// run early with Canceled set and a nil error.
func (o *Orchestrator) RunOnce(ctx context.Context, source models.Source) (models.RunReport, error) {
	report := models.RunReport{
		RunID:     ksuid.New().String(),
		Source:    source,
		StartedAt: o.now().UTC(),
	}
	logger := o.logger.With().Str("run_id", report.RunID).Str("source", source.String()).Logger()

	conn, ok := o.connectors[source]
	if !ok {
		return report, errors.Wrapf(ErrUnknownSource, "%s", source)
	}

	release, err := o.locks.acquire(source)
	if err != nil {
		return report, err
	}
	defer release()

	if o.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.runTimeout)
		defer cancel()
	}

	err = o.run(ctx, conn, &report, logger)
	report.FinishedAt = o.now().UTC()
	if err != nil {
		report.Error = err.Error()
	}

	// the report is recorded even when the run was cancelled
	if recErr := o.store.RecordRun(context.WithoutCancel(ctx), report); recErr != nil {
		logger.Error().Err(recErr).Msg("record run")
	}

	event := logger.Info()
	if err != nil {
		event = logger.Error().Err(err)
	}
	event.
		Int("fetched", report.Fetched).
		Int("saved", report.Saved).
		Int("duplicates", report.Duplicates).
		Int("invalid", report.Invalid).
		Int("failed", report.Failed).
		Bool("canceled", report.Canceled).
		Dur("took", report.Duration()).
		Msg("run finished")
	return report, err
}

func (o *Orchestrator) run(ctx context.Context, conn connector.Connector, report *models.RunReport, logger zerolog.Logger) error {
	urls, err := o.store.ListExternalURLs(ctx, report.Source)
	if err != nil {
		if ctx.Err() != nil {
			report.Canceled = true
			return nil
		}
		return errors.Wrap(err, "load known urls")
	}
	known := seen.NewKnownSet(urls)
	logger.Debug().Int("known", known.Len()).Msg("run started")

	for rec, err := range conn.Fetch(ctx, known) {
		if err != nil {
			if errors.Is(err, connector.ErrInitialContact) {
				return err
			}
			if ctx.Err() != nil {
				break
			}
			report.Failed++
			var itemErr *connector.ItemError
			if errors.As(err, &itemErr) && itemErr.Ref != "" {
				report.LastPosition = itemErr.Ref
			}
			logItemFailure(logger, err)
			continue
		}

		report.Fetched++
		if rec.Ref != "" {
			report.LastPosition = rec.Ref
		}
		o.ingest(ctx, conn, rec, known, report, logger)
		if ctx.Err() != nil {
			break
		}
	}

	if ctx.Err() != nil {
		report.Canceled = true
	}
	return nil
}

// ingest normalizes and stores one record.
func (o *Orchestrator) ingest(ctx context.Context, conn connector.Connector, rec connector.RawRecord, known *seen.KnownSet, report *models.RunReport, logger zerolog.Logger) {
	itemLog := logger.With().Str("ref", rec.Ref).Str("url", rec.URL).Logger()

	posting, err := conn.Normalize(rec)
	if err != nil {
		report.Failed++
		itemLog.Warn().Err(err).Msg("normalize failed")
		return
	}
	if posting.Title == "" {
		report.Invalid++
		itemLog.Warn().Err(ErrMissingTitle).Msg("dropping posting")
		return
	}

	url := posting.ExternalURL
	if url != "" && known.Contains(url) {
		report.Duplicates++
		itemLog.Debug().Msg("already ingested")
		return
	}
	if url == "" {
		itemLog.Warn().Msg("posting has no external url and cannot be deduplicated")
	}

	now := o.now()
	posting.Source = conn.Source()
	posting.CompanyRef = nil
	posting.CreatedAt = now
	posting.UpdatedAt = now

	if err := o.store.Save(ctx, &posting); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			report.Duplicates++
			known.Add(url)
			itemLog.Debug().Msg("already stored")
			return
		}
		if ctx.Err() != nil {
			return
		}
		report.Failed++
		itemLog.Warn().Err(err).Msg("save failed")
		return
	}

	known.Add(url)
	report.Saved++
	itemLog.Debug().Int64("id", posting.ID).Msg("saved")
}

func logItemFailure(logger zerolog.Logger, err error) {
	event := logger.Warn().Err(err)
	var itemErr *connector.ItemError
	if errors.As(err, &itemErr) {
		event = event.Str("ref", itemErr.Ref).Str("url", itemErr.URL)
	}
	event.Msg("item failed")
}
