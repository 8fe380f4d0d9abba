package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/gofrs/flock"
	"github.com/jobbridge/ingest/internal/models"
)

// sourceLocks allows one run per source at a time. With a directory set,
// a lock file per source extends the guard across processes.
type sourceLocks struct {
	dir     string
	mu      sync.Mutex
	running map[models.Source]struct{}
}

func newSourceLocks(dir string) *sourceLocks {
	return &sourceLocks{
		dir:     strings.TrimSpace(dir),
		running: map[models.Source]struct{}{},
	}
}

// acquire returns ErrRunInProgress without waiting when source is busy.
func (l *sourceLocks) acquire(source models.Source) (func(), error) {
	l.mu.Lock()
	if _, busy := l.running[source]; busy {
		l.mu.Unlock()
		return nil, errors.Wrapf(ErrRunInProgress, "%s", source)
	}
	l.running[source] = struct{}{}
	l.mu.Unlock()

	releaseLocal := func() {
		l.mu.Lock()
		delete(l.running, source)
		l.mu.Unlock()
	}
	if l.dir == "" {
		return releaseLocal, nil
	}

	fileLock, err := l.lockFile(source)
	if err != nil {
		releaseLocal()
		return nil, err
	}
	return func() {
		_ = fileLock.Unlock()
		releaseLocal()
	}, nil
}

func (l *sourceLocks) lockFile(source models.Source) (*flock.Flock, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create lock dir")
	}
	path := filepath.Join(l.dir, strings.ToLower(source.String())+".lock")
	fileLock := flock.New(path)
	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, errors.Wrapf(err, "lock %s", path)
	}
	if !locked {
		return nil, errors.WithDetailf(errors.Wrapf(ErrRunInProgress, "%s", source), "held by another process: %s", path)
	}
	return fileLock, nil
}
