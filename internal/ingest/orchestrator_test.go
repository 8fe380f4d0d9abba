package ingest

import (
	"context"
	"iter"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jobbridge/ingest/internal/connector"
	"github.com/jobbridge/ingest/internal/models"
	"github.com/jobbridge/ingest/internal/store"
	"github.com/rs/zerolog"
)

type fakeItem struct {
	rec connector.RawRecord
	err error
}

func record(ref, url, title string) fakeItem {
	return fakeItem{rec: connector.RawRecord{Source: models.SourceJobKorea, Ref: ref, URL: url, Payload: []byte(title)}}
}

func failure(err error) fakeItem {
	return fakeItem{err: err}
}

// fakeConnector yields its items in order. Payload "!" fails to normalize.
type fakeConnector struct {
	items   []fakeItem
	started chan struct{}
	release chan struct{}
	onYield func(i int)
}

func (f *fakeConnector) Source() models.Source { return models.SourceJobKorea }

func (f *fakeConnector) Fetch(ctx context.Context, _ connector.KnownURLs) iter.Seq2[connector.RawRecord, error] {
	return func(yield func(connector.RawRecord, error) bool) {
		if f.started != nil {
			close(f.started)
		}
		if f.release != nil {
			select {
			case <-f.release:
			case <-ctx.Done():
				return
			}
		}
		for i, item := range f.items {
			if ctx.Err() != nil {
				return
			}
			if !yield(item.rec, item.err) {
				return
			}
			if item.err != nil && errors.Is(item.err, connector.ErrInitialContact) {
				return
			}
			if f.onYield != nil {
				f.onYield(i)
			}
		}
	}
}

func (f *fakeConnector) Normalize(rec connector.RawRecord) (models.Posting, error) {
	if string(rec.Payload) == "!" {
		return models.Posting{}, errors.New("bad payload")
	}
	return models.Posting{ExternalURL: rec.URL, Source: models.SourceJobKorea, Title: string(rec.Payload)}, nil
}

type memStore struct {
	mu       sync.Mutex
	postings []models.Posting
	urls     map[string]bool
	runs     []models.RunReport
	// hidden urls are rejected by Save without being listed
	hidden map[string]bool
}

func newMemStore() *memStore {
	return &memStore{urls: map[string]bool{}, hidden: map[string]bool{}}
}

func (m *memStore) ListExternalURLs(_ context.Context, _ models.Source) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for url := range m.urls {
		out = append(out, url)
	}
	return out, nil
}

func (m *memStore) Save(ctx context.Context, p *models.Posting) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ExternalURL != "" && (m.urls[p.ExternalURL] || m.hidden[p.ExternalURL]) {
		return errors.Wrapf(store.ErrDuplicate, "%s", p.ExternalURL)
	}
	p.ID = int64(len(m.postings) + 1)
	m.postings = append(m.postings, *p)
	if p.ExternalURL != "" {
		m.urls[p.ExternalURL] = true
	}
	return nil
}

func (m *memStore) RecordRun(_ context.Context, r models.RunReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, r)
	return nil
}

func (m *memStore) Runs() []models.RunReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.RunReport{}, m.runs...)
}

func newTestOrchestrator(st Store, conn connector.Connector, opts Options) *Orchestrator {
	opts.Logger = zerolog.Nop()
	return NewOrchestrator(st, map[models.Source]connector.Connector{conn.Source(): conn}, opts)
}

func openSQLite(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "jobbridge.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return st
}

func TestRunOnceDeduplicatesAcrossRuns(t *testing.T) {
	ctx := context.Background()
	st := openSQLite(t)
	conn := &fakeConnector{items: []fakeItem{
		record("1", "https://jk.test/1", "A 백엔드"),
		record("2", "https://jk.test/2", "B 프론트엔드"),
		record("3", "https://jk.test/1", "A 백엔드"),
	}}
	clock := time.Date(2025, 4, 16, 9, 0, 0, 0, time.UTC)
	orch := newTestOrchestrator(st, conn, Options{Now: func() time.Time { return clock }})

	first, err := orch.RunOnce(ctx, models.SourceJobKorea)
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if first.Fetched != 3 || first.Saved != 2 || first.Duplicates != 1 {
		t.Fatalf("unexpected first report %+v", first)
	}
	if first.LastPosition != "3" || first.RunID == "" || first.Canceled {
		t.Fatalf("unexpected first report %+v", first)
	}

	second, err := orch.RunOnce(ctx, models.SourceJobKorea)
	if err != nil {
		t.Fatalf("second RunOnce() error = %v", err)
	}
	if second.Saved != 0 || second.Duplicates != 3 {
		t.Fatalf("expected nothing new on second run, got %+v", second)
	}
	if second.RunID == first.RunID {
		t.Fatalf("expected distinct run ids")
	}

	postings, err := st.FindBySource(ctx, models.SourceJobKorea)
	if err != nil {
		t.Fatalf("FindBySource() error = %v", err)
	}
	if len(postings) != 2 {
		t.Fatalf("expected 2 stored postings, got %d", len(postings))
	}
	urls := map[string]bool{}
	for _, p := range postings {
		if urls[p.ExternalURL] {
			t.Fatalf("duplicate external url %s", p.ExternalURL)
		}
		urls[p.ExternalURL] = true
		if !p.CreatedAt.Equal(clock) || p.CompanyRef != nil {
			t.Fatalf("unexpected stored posting %+v", p)
		}
	}

	runs, err := st.RecentRuns(ctx, models.SourceJobKorea, 10)
	if err != nil {
		t.Fatalf("RecentRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 recorded runs, got %d", len(runs))
	}
}

func TestRunOnceItemFailuresDoNotStopRun(t *testing.T) {
	st := newMemStore()
	timeout := &connector.ItemError{Ref: "1", URL: "https://jk.test/1", Err: context.DeadlineExceeded}
	conn := &fakeConnector{items: []fakeItem{
		failure(timeout),
		record("2", "https://jk.test/2", "!"),
		record("3", "https://jk.test/3", ""),
		record("4", "https://jk.test/4", "D 데이터엔지니어"),
	}}
	orch := newTestOrchestrator(st, conn, Options{})

	report, err := orch.RunOnce(context.Background(), models.SourceJobKorea)
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if report.Failed != 2 || report.Invalid != 1 || report.Saved != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Error != "" || !report.Succeeded() {
		t.Fatalf("item failures must not fail the run: %q", report.Error)
	}
	if report.LastPosition != "4" {
		t.Fatalf("LastPosition = %q, want 4", report.LastPosition)
	}
	if len(st.postings) != 1 || st.postings[0].ExternalURL != "https://jk.test/4" {
		t.Fatalf("expected the later item to be stored, got %+v", st.postings)
	}
}

func TestRunOnceLastPositionTracksAttempts(t *testing.T) {
	st := newMemStore()
	st.urls["https://jk.test/1"] = true
	conn := &fakeConnector{items: []fakeItem{
		record("1", "https://jk.test/1", "A"),
		record("2", "https://jk.test/2", ""),
		failure(&connector.ItemError{Ref: "3", URL: "https://jk.test/3", Err: context.DeadlineExceeded}),
	}}
	orch := newTestOrchestrator(st, conn, Options{})

	report, err := orch.RunOnce(context.Background(), models.SourceJobKorea)
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if report.Saved != 0 || report.Duplicates != 1 || report.Invalid != 1 || report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.LastPosition != "3" {
		t.Fatalf("LastPosition = %q, want 3", report.LastPosition)
	}
}

func TestRunOnceInitialContactAborts(t *testing.T) {
	st := newMemStore()
	abort := errors.Mark(errors.New("connection refused"), connector.ErrInitialContact)
	conn := &fakeConnector{items: []fakeItem{failure(abort), record("1", "https://jk.test/1", "never")}}
	orch := newTestOrchestrator(st, conn, Options{})

	report, err := orch.RunOnce(context.Background(), models.SourceJobKorea)
	if !errors.Is(err, connector.ErrInitialContact) {
		t.Fatalf("expected initial contact error, got %v", err)
	}
	if report.Saved != 0 || report.Error == "" {
		t.Fatalf("unexpected report %+v", report)
	}
	runs := st.Runs()
	if len(runs) != 1 || runs[0].Error == "" {
		t.Fatalf("expected the failed run to be recorded, got %+v", runs)
	}
}

func TestRunOnceStoreDuplicateBackstop(t *testing.T) {
	st := newMemStore()
	st.hidden["https://jk.test/1"] = true
	conn := &fakeConnector{items: []fakeItem{record("1", "https://jk.test/1", "A")}}
	orch := newTestOrchestrator(st, conn, Options{})

	report, err := orch.RunOnce(context.Background(), models.SourceJobKorea)
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if report.Duplicates != 1 || report.Saved != 0 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestRunOnceKeepsPostingsWithoutURL(t *testing.T) {
	st := newMemStore()
	conn := &fakeConnector{items: []fakeItem{record("1", "", "A"), record("2", "", "B")}}
	orch := newTestOrchestrator(st, conn, Options{})

	report, err := orch.RunOnce(context.Background(), models.SourceJobKorea)
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if report.Saved != 2 {
		t.Fatalf("expected both postings saved, got %+v", report)
	}
}

func TestRunOnceCancelKeepsSavedItems(t *testing.T) {
	st := newMemStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn := &fakeConnector{
		items: []fakeItem{
			record("1", "https://jk.test/1", "A"),
			record("2", "https://jk.test/2", "B"),
			record("3", "https://jk.test/3", "C"),
		},
		onYield: func(i int) {
			if i == 0 {
				cancel()
			}
		},
	}
	orch := newTestOrchestrator(st, conn, Options{})

	report, err := orch.RunOnce(ctx, models.SourceJobKorea)
	if err != nil {
		t.Fatalf("cancellation must not be an error, got %v", err)
	}
	if !report.Canceled || report.Saved != 1 || report.LastPosition != "1" {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(st.Runs()) != 1 {
		t.Fatalf("expected the cancelled run to be recorded")
	}
}

func TestRunOnceTimeout(t *testing.T) {
	st := newMemStore()
	conn := &fakeConnector{release: make(chan struct{})}
	orch := newTestOrchestrator(st, conn, Options{RunTimeout: 30 * time.Millisecond})

	report, err := orch.RunOnce(context.Background(), models.SourceJobKorea)
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if !report.Canceled {
		t.Fatalf("expected timed out run to be reported as canceled")
	}
}

func TestRunOnceRejectsOverlap(t *testing.T) {
	st := newMemStore()
	conn := &fakeConnector{
		items:   []fakeItem{record("1", "https://jk.test/1", "A")},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	orch := newTestOrchestrator(st, conn, Options{})

	done := make(chan error, 1)
	go func() {
		_, err := orch.RunOnce(context.Background(), models.SourceJobKorea)
		done <- err
	}()
	<-conn.started

	if _, err := orch.RunOnce(context.Background(), models.SourceJobKorea); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	close(conn.release)
	if err := <-done; err != nil {
		t.Fatalf("first RunOnce() error = %v", err)
	}
	if len(st.Runs()) != 1 {
		t.Fatalf("rejected run must not be recorded")
	}
}

func TestRunOnceLockFileAcrossOrchestrators(t *testing.T) {
	lockDir := filepath.Join(t.TempDir(), "locks")
	blocked := &fakeConnector{started: make(chan struct{}), release: make(chan struct{})}
	holder := newTestOrchestrator(newMemStore(), blocked, Options{LockDir: lockDir})
	other := newTestOrchestrator(newMemStore(), &fakeConnector{}, Options{LockDir: lockDir})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = holder.RunOnce(context.Background(), models.SourceJobKorea)
	}()
	<-blocked.started

	if _, err := other.RunOnce(context.Background(), models.SourceJobKorea); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected lock file to be held, got %v", err)
	}
	close(blocked.release)
	<-done

	if _, err := other.RunOnce(context.Background(), models.SourceJobKorea); err != nil {
		t.Fatalf("expected lock to be released, got %v", err)
	}
}

func TestRunOnceUnknownSource(t *testing.T) {
	orch := newTestOrchestrator(newMemStore(), &fakeConnector{}, Options{})
	if _, err := orch.RunOnce(context.Background(), models.SourceSaramin); !errors.Is(err, ErrUnknownSource) {
		t.Fatalf("expected ErrUnknownSource, got %v", err)
	}
	if got := orch.Sources(); len(got) != 1 || got[0] != models.SourceJobKorea {
		t.Fatalf("Sources() = %v", got)
	}
}
