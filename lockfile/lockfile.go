// Package lockfile wraps the external advisory lock a Container holds over
// its install root for the container's lifetime (spec.md §5: "the process
// is expected to hold an external file lock over install_root"). It is a
// thin wrapper over github.com/theckman/go-flock, the same file-locking
// library the teacher vendors for its own cache locking.
package lockfile

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	flock "github.com/theckman/go-flock"
)

// Lock is an exclusive, non-reentrant advisory lock over a single path.
type Lock struct {
	fl *flock.Flock
}

// OpenContainerLock prepares (without yet acquiring) the lock file at path,
// creating parent directories as needed.
func OpenContainerLock(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "creating lock directory")
	}
	return &Lock{fl: flock.NewFlock(path)}, nil
}

// TryLock attempts to acquire the lock without blocking, returning an error
// if another process already holds it.
func (l *Lock) TryLock() error {
	ok, err := l.fl.TryLock()
	if err != nil {
		return errors.Wrap(err, "trying install-root lock")
	}
	if !ok {
		return errors.New("install root is locked by another process")
	}
	return nil
}

// WaitLock polls for the lock until ctx is done, with the given poll
// interval, mirroring the teacher's general preference for context-bounded
// waits over unconditional blocking.
func (l *Lock) WaitLock(ctx context.Context, poll time.Duration) error {
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	for {
		ok, err := l.fl.TryLock()
		if err != nil {
			return errors.Wrap(err, "trying install-root lock")
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(poll):
		}
	}
}

// Unlock releases the lock. Safe to call on an already-unlocked Lock.
func (l *Lock) Unlock() error {
	if !l.fl.Locked() {
		return nil
	}
	return l.fl.Unlock()
}

// Locked reports whether this process currently holds the lock.
func (l *Lock) Locked() bool { return l.fl.Locked() }
