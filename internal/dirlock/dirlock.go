// Package dirlock guards a database directory against being opened by a
// second Engine while the first is live, via a gofrs/flock lock on a
// ".lock" file taken before touching segments.
package dirlock

import (
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockFileName = ".lock"

// Lock is an advisory, process-wide file lock held for the lifetime of an
// open Engine.
type Lock struct {
	fl *flock.Flock
}

// Acquire tries to take the directory's lock file without blocking. ok is
// false if another Engine already holds it.
func Acquire(dir string) (*Lock, bool, error) {
	fl := flock.New(filepath.Join(dir, lockFileName))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return &Lock{fl: fl}, true, nil
}

// Release gives up the lock so a future Open of the same directory succeeds.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
