package hostfs

import (
	"os"
	"time"
)

// Real implements [FS] using the real filesystem. All methods are pure
// passthroughs to the [os] package with identical behavior and error
// semantics, except [Real.Lock] which layers [FileLocker]'s flock-based
// guard on top.
type Real struct{}

// NewReal returns a new [Real] filesystem.
func NewReal() *Real {
	return &Real{}
}

// A passthrough wrapper for [os.OpenFile].
func (r *Real) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	return os.OpenFile(path, flag, perm)
}

// A passthrough wrapper for [os.MkdirAll].
func (r *Real) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// A passthrough wrapper for [os.Stat].
func (r *Real) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// --- Locking ---

const lockTimeout = 2 * time.Second

// Lock acquires the single-instance guard for the simulated disk at path:
// an exclusive flock on path+".lock", via [FileLocker.LockWithTimeout] so a
// stale lock file left by a crashed process (inode replaced, or simply
// held past the timeout) is detected and reported rather than hung on
// forever. See cmd/simdiskd's startup guard (SPEC_FULL.md §12).
func (r *Real) Lock(path string) (Locker, error) {
	locker := NewLocker(r)

	lock, err := locker.LockWithTimeout(path+".lock", lockTimeout)
	if err != nil {
		return nil, err
	}

	return lock, nil
}

// Compile-time interface checks.
var (
	_ FS     = (*Real)(nil)
	_ Locker = (*Lock)(nil)
)
