package hostfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

var (
	// ErrWouldBlock is returned by LockWithTimeout when the acquisition
	// timeout expires before the lock is acquired.
	ErrWouldBlock = errors.New("lock would block")

	// ErrInvalidTimeout is returned when a timeout is <= 0.
	ErrInvalidTimeout = errors.New("invalid lock timeout")

	// errInodeMismatch is an internal sentinel indicating the lock file was
	// replaced between open and flock. Callers should retry.
	errInodeMismatch = errors.New("inode mismatch")
)

// FileLocker provides the single-instance guard [Real.Lock] needs, using
// flock(2) on an exclusive lock file.
//
// flock locks an inode (the open file), not a pathname. FileLocker always
// locks the dedicated, stable path a caller provides (e.g.
// "simdisk.img.lock") and never replaces/unlinks it while a lock may be
// held.
//
// FileLocker has no internal mutable state beyond its dependencies. It is safe for
// concurrent use as long as the underlying [FS] implementation is safe for
// concurrent use.
type FileLocker struct {
	fs    FS
	flock func(fd int, how int) error
}

// NewLocker creates a FileLocker that uses the given filesystem for file operations.
func NewLocker(fs FS) *FileLocker {
	return &FileLocker{
		fs:    fs,
		flock: syscall.Flock,
	}
}

// Lock represents a held file lock. Call [Lock.Close] to release it.
type Lock struct {
	mu    sync.Mutex
	file  File
	flock func(fd int, how int) error
}

// Close releases the lock and closes the underlying file descriptor.
//
// Close is idempotent - calling it multiple times is safe and subsequent calls
// return nil.
//
// Note: on Unix, closing a file descriptor typically releases any flock held
// by that descriptor/process. Close attempts an explicit unlock first; if that
// fails but the close succeeds, the lock is usually still released. If Close
// returns an error, treat it as "something went wrong during cleanup" and log
// it; callers typically cannot make strong guarantees about whether the lock
// was released.
func (lk *Lock) Close() error {
	lk.mu.Lock()
	defer lk.mu.Unlock()

	if lk.file == nil {
		return nil
	}

	fd := int(lk.file.Fd())

	unlockErr := flockRetryEINTR(lk.flock, fd, syscall.LOCK_UN)
	closeErr := lk.file.Close()
	lk.file = nil

	if unlockErr != nil {
		return fmt.Errorf("unlocking lock: %w", unlockErr)
	}

	if closeErr != nil {
		return fmt.Errorf("closing lock fd: %w", closeErr)
	}

	return nil
}

// LockWithTimeout attempts to acquire an exclusive lock on the file at
// path, retrying with exponential backoff until the timeout expires.
//
// If the file or its parent directories do not exist, they are created
// lazily. Race conditions where the lock file is replaced (deleted +
// recreated) during acquisition are handled automatically - the lock is
// always acquired on the inode currently at path; see
// [FileLocker.inodeMatchesPath].
//
// This uses non-blocking flock calls internally and polls with sleeps
// (1ms to 25ms backoff), so the timeout is best-effort and may overshoot
// slightly under scheduler delay.
//
// Returns [ErrWouldBlock] if the timeout expires before the lock is acquired.
// Returns [ErrInvalidTimeout] if timeout <= 0.
func (l *FileLocker) LockWithTimeout(path string, timeout time.Duration) (*Lock, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("%w: timeout must be > 0", ErrInvalidTimeout)
	}

	deadline := time.Now().Add(timeout)
	backoff := time.Millisecond

	for {
		file, err := l.openLockFile(path)
		if err != nil {
			return nil, fmt.Errorf("opening lockfile: %w", err)
		}

		err = l.acquire(file, path)
		if err == nil {
			return &Lock{file: file, flock: l.flock}, nil
		}

		_ = file.Close()

		retryable := errors.Is(err, ErrWouldBlock) || errors.Is(err, errInodeMismatch)
		if !retryable {
			return nil, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			if errors.Is(err, errInodeMismatch) {
				return nil, fmt.Errorf("%w: timed out after %s (lock file was replaced while acquiring lock)", ErrWouldBlock, timeout)
			}

			return nil, fmt.Errorf("%w: timed out after %s", ErrWouldBlock, timeout)
		}

		sleep := backoff
		if sleep > remaining {
			sleep = remaining
		}

		time.Sleep(sleep)

		if backoff < 25*time.Millisecond {
			backoff *= 2
			if backoff > 25*time.Millisecond {
				backoff = 25 * time.Millisecond
			}
		}
	}
}

// acquire attempts to flock the given file non-blocking and verify the
// inode still matches path. On success, the file is locked and ready to
// use. On failure, the file is unlocked (if needed) but NOT closed - the
// caller must close it.
//
// Returns:
//   - nil: lock acquired successfully
//   - ErrWouldBlock: lock held by another process
//   - errInodeMismatch: file at path was replaced, caller should retry
//   - other error: something went wrong
func (l *FileLocker) acquire(file File, path string) error {
	fd := int(file.Fd())

	if err := flockRetryEINTR(l.flock, fd, syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		if isWouldBlock(err) {
			return ErrWouldBlock
		}
		return err
	}

	match, err := l.inodeMatchesPath(path, file)
	if err != nil {
		_ = flockRetryEINTR(l.flock, fd, syscall.LOCK_UN)
		if errors.Is(err, os.ErrNotExist) {
			return errInodeMismatch
		}
		return fmt.Errorf("verifying inode match: %w", err)
	}

	if !match {
		_ = flockRetryEINTR(l.flock, fd, syscall.LOCK_UN)
		return errInodeMismatch
	}

	return nil
}

const (
	lockFilePerm = 0o600
	lockDirPerm  = 0o755
)

func (l *FileLocker) openLockFile(path string) (File, error) {
	f, err := l.fs.OpenFile(path, os.O_RDWR|os.O_CREATE, lockFilePerm)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return f, err
	}

	if err := l.fs.MkdirAll(filepath.Dir(path), lockDirPerm); err != nil {
		return nil, err
	}

	return l.fs.OpenFile(path, os.O_RDWR|os.O_CREATE, lockFilePerm)
}

// inodeMatchesPath verifies that f (the open file descriptor we're about to
// use as the lock) still refers to the file currently at path.
//
// Why: flock locks by inode, not pathname. A pathname can be replaced while
// you’re acquiring the lock (or while you’re blocked waiting): rename,
// delete+recreate, editors writing via temp+rename, etc. Then you can end up
// with this situation:
//
//  1. A opens path → gets inode X
//  2. path is replaced → now points to inode Y
//  3. A successfully flocks inode X (still valid, but no longer “the file at path”)
//  4. B opens path → inode Y, and flocks it successfully too
//
// Without this check, both A and B believe they "locked the path", but they're
// actually coordinating on different inodes.
//
// This method compares (dev,inode) of the open fd (via File.Stat) to the
// current (dev,inode) at path (via [FS.Stat]). Callers use it immediately after
// flock; on mismatch they unlock and retry.
func (l *FileLocker) inodeMatchesPath(path string, f File) (bool, error) {
	openInfo, err := f.Stat()
	if err != nil {
		return false, err
	}

	openSys, ok := openInfo.Sys().(*syscall.Stat_t)
	if !ok || openSys == nil {
		return false, fmt.Errorf("file.Stat Sys=%T, want *syscall.Stat_t", openInfo.Sys())
	}

	pathInfo, err := l.fs.Stat(path)
	if err != nil {
		return false, err
	}

	pathSys, ok := pathInfo.Sys().(*syscall.Stat_t)
	if !ok || pathSys == nil {
		return false, fmt.Errorf("fs.Stat Sys=%T, want *syscall.Stat_t", pathInfo.Sys())
	}

	return openSys.Dev == pathSys.Dev && openSys.Ino == pathSys.Ino, nil
}

func isWouldBlock(err error) bool {
	return errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN)
}

// flockRetryEINTR wraps flock, retrying on EINTR.
//
// EINTR means the syscall was interrupted by a signal before it could complete.
// This is common on Unix systems - signals like SIGWINCH (terminal resize),
// SIGCHLD (child process exited), or SIGALRM (timers) can interrupt any
// blocking syscall. When this happens, the syscall didn't fail, it just needs
// to be retried.
//
// We cap retries to avoid spinning forever under pathological signal storms.
// In practice this limit should never be hit - if you're getting 10000 signals
// during a single flock call, something else is very wrong. Note that Go's
// stdlib (ignoringEINTR in the os package) retries forever without a cap.
func flockRetryEINTR(flock func(fd int, how int) error, fd int, how int) error {
	const maxEINTRRetries = 10000

	var err error
	for range maxEINTRRetries {
		err = flock(fd, how)
		if err == nil || !errors.Is(err, syscall.EINTR) {
			return err
		}
	}

	return err
}
