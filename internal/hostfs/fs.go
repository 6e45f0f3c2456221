// Package hostfs provides filesystem abstractions for testing and fault
// injection.
//
// internal/vfs opens its backing file exclusively through this package's
// [FS] interface, never directly through [os] — that is what lets
// internal/vfs's tests drive I/O failures ([Chaos]) and assert on
// exactly which operations touch the host filesystem ([StrictTestFS])
// without internal/vfs itself knowing it is under test.
//
// The surface is deliberately narrow: a block device backed by one
// random-access file needs to open it, seek/read/write/sync/close it, and
// take an advisory lock on it — nothing more. [FS] and [File] expose only
// those operations, not a general os passthrough.
//
// The main types are:
//   - [FS]: interface for filesystem operations
//   - [File]: interface for open files (satisfied by [os.File])
//   - [Real]: production implementation using [os] package
//   - [Chaos]: testing implementation that injects random failures
//
// Example usage:
//
//	fsys := hostfs.NewReal()
//	f, err := fsys.OpenFile("disk.img", os.O_RDWR|os.O_CREATE, 0o644)
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
package hostfs

import (
	"io"
	"os"
)

// File represents an open file descriptor.
//
// This interface is satisfied by [os.File]. It covers exactly what a
// block device needs: positioned reads and writes, an explicit sync, and
// the raw descriptor [FileLocker] needs for flock.
type File interface {
	// Embedded interfaces from [io] package.
	// These provide Read, Write, Close, and Seek methods.
	io.ReadWriteCloser
	io.Seeker

	// Fd returns the file descriptor. See [os.File.Fd].
	// Used for low-level operations like [syscall.Flock].
	Fd() uintptr

	// Stat returns the [os.FileInfo] for this file. See [os.File.Stat].
	Stat() (os.FileInfo, error)

	// Sync commits the file's contents to disk. See [os.File.Sync].
	Sync() error
}

// Locker represents a held file lock.
// Call [Locker.Close] to release the lock.
//
// Example:
//
//	lock, err := fsys.Lock("data.db")
//	if err != nil {
//	    return err // lock contention or timeout
//	}
//	defer lock.Close() // always release
//
//	// ... exclusive access to data.db ...
type Locker interface {
	io.Closer
}

// FS defines the filesystem operations the simulated disk actually needs:
// opening its backing file, stat'ing it, and taking the single-instance
// lock ([FileLocker]'s own bookkeeping needs MkdirAll and Stat on the lock
// file it manages).
//
// Two implementations are provided:
//   - [Real]: production use, wraps [os] package
//   - [Chaos]: testing use, injects random failures
type FS interface {
	// OpenFile opens a file with specified flags and permissions. See
	// [os.OpenFile]. internal/vfs uses this exclusively to open the
	// backing file with O_RDWR|O_CREATE|O_SYNC.
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// Stat returns file info. See [os.Stat].
	// Returns [os.ErrNotExist] if file doesn't exist.
	Stat(path string) (os.FileInfo, error)

	// MkdirAll creates a directory and all parents. See [os.MkdirAll].
	// No error if the directory already exists. Used by [FileLocker] to
	// create a lock file's parent directory on first use.
	MkdirAll(path string, perm os.FileMode) error

	// Lock acquires the single-instance guard on the backing file at
	// path, blocking until it is available or the guard times out. Call
	// [Locker.Close] to release it.
	Lock(path string) (Locker, error)
}

// Compile-time interface checks.
var _ File = (*os.File)(nil)
