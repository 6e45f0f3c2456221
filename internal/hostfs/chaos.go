package hostfs

import (
	"errors"
	"io"
	"io/fs"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
)

// ChaosConfig controls fault injection probabilities.
// Each rate is a float64 from 0.0 (never) to 1.0 (always).
//
// The zero value disables all fault injection. Partially initialized configs
// only inject faults for the specified rates; unset fields default to 0.0.
//
// Fault injection is enabled by default ([ChaosModeActive]). Use
// [Chaos.SetMode] with [ChaosModeNoOp] to disable injection and pass
// all operations through to the underlying filesystem.
type ChaosConfig struct {
	// ReadFailRate controls how often File.Read fails entirely, returning
	// zero bytes and an EIO error.
	ReadFailRate float64

	// PartialReadRate controls how often File.Read returns a short read
	// (n < len(p), err==nil) by limiting the underlying read size. This is
	// valid io.Reader behavior, not an error, and tests that callers
	// correctly loop until EOF.
	PartialReadRate float64

	// WriteFailRate controls how often File.Write fails entirely, writing zero
	// bytes and returning an error (EIO, ENOSPC, EDQUOT, or EROFS).
	WriteFailRate float64

	// PartialWriteRate controls how often File.Write writes only some bytes
	// before failing. Returns n > 0 bytes written along with an error.
	// The error type is controlled by ShortWriteRate.
	PartialWriteRate float64

	// ShortWriteRate controls the error type for partial writes. This fraction
	// of partial writes return io.ErrShortWrite (a write that stopped early
	// without a syscall error). The remainder return *fs.PathError with an
	// errno (EIO, ENOSPC, EDQUOT, or EROFS).
	ShortWriteRate float64

	// FileStatFailRate controls how often File.Stat fails on an open file
	// handle, returning EIO. This is distinct from StatFailRate which controls
	// FS.Stat on paths.
	FileStatFailRate float64

	// SeekFailRate controls how often File.Seek fails, returning position 0
	// and an EIO error.
	SeekFailRate float64

	// SyncFailRate controls how often File.Sync (fsync) fails. Returns EIO,
	// ENOSPC, EDQUOT, or EROFS. Sync failures can surface delayed write errors
	// that weren't reported during Write.
	SyncFailRate float64

	// CloseFailRate controls how often File.Close reports an error. The
	// underlying file descriptor is always closed (to avoid leaks) even when
	// an error is returned. Returns EIO.
	CloseFailRate float64

	// OpenFailRate controls how often FS.OpenFile fails to open a file.
	// For read-only opens: EACCES, EIO, EMFILE, ENFILE, ENOTDIR.
	// For write opens (O_WRONLY, O_RDWR, O_CREATE, ...): adds ENOSPC,
	// EDQUOT, EROFS.
	OpenFailRate float64

	// StatFailRate controls how often FS.Stat fails on a path.
	// Returns EACCES or EIO. This is distinct from FileStatFailRate which
	// controls File.Stat on open handles.
	StatFailRate float64

	// MkdirAllFailRate controls how often FS.MkdirAll fails to create
	// directories. Returns EACCES, EIO, ENOSPC, EDQUOT, EROFS, or ENOTDIR.
	MkdirAllFailRate float64

	// LockFailRate controls how often FS.Lock fails to acquire the
	// single-instance guard. Returns EACCES or EIO.
	LockFailRate float64
}

// NewChaos creates a new [Chaos] filesystem wrapping the given [FS].
// The seed controls random fault injection for reproducibility.
// Panics if fs is nil.
func NewChaos(fs FS, seed int64, config ChaosConfig) *Chaos {
	if fs == nil {
		panic("fs is nil")
	}

	return &Chaos{
		fs:     fs,
		rng:    rand.New(rand.NewSource(seed)),
		config: config,
	}
}

// ChaosMode controls how [Chaos] behaves.
type ChaosMode uint8

const (
	// ChaosModeActive enables fault-rate injection.
	// This is the default mode for a new [Chaos].
	ChaosModeActive ChaosMode = iota

	// ChaosModeNoOp passes every operation directly to the underlying FS.
	ChaosModeNoOp
)

// ChaosStats contains counts of injected faults.
type ChaosStats struct {
	OpenFails     int64
	ReadFails     int64
	WriteFails    int64
	PartialReads  int64
	PartialWrites int64
	StatFails     int64
	MkdirAllFails int64
	LockFails     int64
	FileStatFails int64
	SeekFails     int64
	SyncFails     int64
	CloseFails    int64
}

// ChaosError marks an error as intentionally injected by [Chaos].
//
// It wraps the underlying error so errors.Is/As continue to work.
//
// Note: For errno-style errors, [Chaos] wraps an [*fs.PathError] with a
// [syscall.Errno] in PathError.Err so os.IsNotExist/os.IsPermission keep
// working via unwrapping, while [IsChaosErr] can still distinguish chaos vs
// real OS errors in tests.
//
// Error panics if the receiver or Err is nil; Unwrap panics if the receiver
// is nil.
type ChaosError struct {
	Err error
}

// Error returns a formatted error message.
// Panics if e or e.Err is nil.
func (e *ChaosError) Error() string {
	return "chaos: " + e.Err.Error()
}

// Unwrap returns the underlying error. Panics if e is nil.
func (e *ChaosError) Unwrap() error {
	return e.Err
}

// IsChaosErr reports whether err (or any wrapped error) was injected by [Chaos].
// Returns false if err is nil.
func IsChaosErr(err error) bool {
	var injected *ChaosError

	return errors.As(err, &injected)
}

// Chaos wraps an [FS] and injects random failures for testing.
//
// The fault model aims to match the surface semantics of Go's os package on
// Unix-ish systems, without overfitting to edge/undefined kernel behavior.
// It is a "real filesystem + fault injection" wrapper, not a full filesystem
// simulator. Chaos does not maintain per-path "sticky" fault state; each call
// independently decides whether to inject.
//
// Error model:
//   - Most injected filesystem errors are returned as an [*fs.PathError] with a
//     real [syscall.Errno] in PathError.Err, so [errors.Is] and helpers like
//     [os.IsPermission] behave like real OS errors.
//   - Injected errors are marked so tests can distinguish injected vs real
//     filesystem errors using [IsChaosErr].
//   - Chaos never injects ENOENT (any os.IsNotExist result originates from the
//     wrapped [FS]) and never injects EINTR (the stdlib generally retries EINTR
//     internally).
//   - Chaos does not inject os.ErrInvalid or other "API misuse" failures (nil
//     receiver/invalid handle); those are caller bugs, not filesystem faults.
//
// Return-shape constraints:
//   - File.Read injected failures return n==0 with a non-nil error (matching
//     os.File.Read on Unix-ish systems, which forces n=0 on syscall.Read errors).
//   - File.Write may return n>0 with a non-nil error (partial progress).
//   - File.Seek injected failures return pos==0 with a non-nil error.
//   - File.Stat injected failures return (nil, non-nil error).
//   - File.Sync injected failures return a non-nil error.
//   - File.Close injected failures still close the underlying file to avoid
//     descriptor leaks in tests.
//   - Chaos does not inject impossible anomalies like n>len(p) or "n==0 &&
//     err==nil" mid-write. EOF is not treated as an injected "failure"; it comes
//     from the wrapped filesystem as bare io.EOF.
//
// Partial operations:
//   - File.Read short: short read with err==nil by limiting the underlying
//     read size (does not skip bytes / advance offsets incorrectly). This is
//     a legal io.Reader outcome, not EOF or an error.
//   - File.Write partial: writes a prefix and returns a non-nil error; most
//     partial writes return an errno-style [*fs.PathError], but ShortWriteRate
//     of them return an injected [io.ErrShortWrite] to model "short write
//     without errno".
//
// Use [Chaos.SetMode] to control behavior and [Chaos.Stats] to inspect how many
// faults were injected.
type Chaos struct {
	fs     FS
	rng    *rand.Rand
	config ChaosConfig
	mode   atomic.Uint32

	rngMu sync.Mutex

	// Counters for testing verification
	openFails     atomic.Int64
	readFails     atomic.Int64
	writeFails    atomic.Int64
	partialReads  atomic.Int64
	partialWrites atomic.Int64
	statFails     atomic.Int64
	mkdirAllFails atomic.Int64
	lockFails     atomic.Int64
	fileStatFails atomic.Int64
	seekFails     atomic.Int64
	syncFails     atomic.Int64
	closeFails    atomic.Int64
}

// SetMode updates [Chaos] behavior.
//
// SetMode is safe to call concurrently with filesystem operations.
//
// Modes:
//   - [ChaosModeActive]: inject random failures according to [ChaosConfig].
//     This is the default.
//   - [ChaosModeNoOp]: pass all operations to the underlying filesystem.
func (c *Chaos) SetMode(m ChaosMode) { c.mode.Store(uint32(m)) }

// Stats returns the current fault injection counts.
func (c *Chaos) Stats() ChaosStats {
	return ChaosStats{
		OpenFails:     c.openFails.Load(),
		ReadFails:     c.readFails.Load(),
		WriteFails:    c.writeFails.Load(),
		PartialReads:  c.partialReads.Load(),
		PartialWrites: c.partialWrites.Load(),
		StatFails:     c.statFails.Load(),
		MkdirAllFails: c.mkdirAllFails.Load(),
		LockFails:     c.lockFails.Load(),
		FileStatFails: c.fileStatFails.Load(),
		SeekFails:     c.seekFails.Load(),
		SyncFails:     c.syncFails.Load(),
		CloseFails:    c.closeFails.Load(),
	}
}

// TotalFaults returns the total number of injected faults.
func (c *Chaos) TotalFaults() int64 {
	s := c.Stats()

	return s.OpenFails + s.ReadFails + s.WriteFails + s.PartialReads +
		s.PartialWrites + s.StatFails + s.MkdirAllFails + s.LockFails +
		s.FileStatFails + s.SeekFails + s.SyncFails + s.CloseFails
}

func (c *Chaos) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	op := "open"
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE|os.O_TRUNC) != 0 {
		op = "create"
	}

	mode := ChaosMode(c.mode.Load())
	if mode == ChaosModeNoOp {
		f, err := c.fs.OpenFile(path, flag, perm)
		if err != nil {
			return nil, err
		}

		return &chaosFile{f: f, chaos: c, path: path}, nil
	}

	if c.should(mode, c.config.OpenFailRate) {
		errno := c.pickError(op)
		c.openFails.Add(1)

		return nil, pathError("open", path, errno)
	}

	f, err := c.fs.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	return &chaosFile{f: f, chaos: c, path: path}, nil
}

func (c *Chaos) MkdirAll(path string, perm os.FileMode) error {
	err := c.introduceChaos(path, faultMkdirAll)
	if err != nil {
		return err
	}

	return c.fs.MkdirAll(path, perm)
}

func (c *Chaos) Stat(path string) (os.FileInfo, error) {
	err := c.introduceChaos(path, faultStat)
	if err != nil {
		return nil, err
	}

	return c.fs.Stat(path)
}

func (c *Chaos) Lock(path string) (Locker, error) {
	err := c.introduceChaos(path, faultLock)
	if err != nil {
		return nil, err
	}

	return c.fs.Lock(path)
}

// faultKind identifies a type of fault that can be injected.
// The string value is used as the operation name in error messages.
type faultKind string

const (
	faultStat     faultKind = "stat"
	faultMkdirAll faultKind = "mkdirall"
	faultLock     faultKind = "lock"
)

// fileFaultKind identifies a type of fault for file handle operations.
// The string value is used as the operation name in error messages.
type fileFaultKind string

const (
	fileFaultSeek fileFaultKind = "seek"
	fileFaultStat fileFaultKind = "stat"
	fileFaultSync fileFaultKind = "sync"
)

// introduceChaos checks if a fault should be injected for the given operation.
// Returns a non-nil error if a fault was injected, nil otherwise.
//
// Chaos never injects ENOENT or EINTR:
//   - ENOENT ("no such file or directory") should come from the wrapped FS so
//     Chaos doesn't manufacture "missing" results the real filesystem wouldn't
//     have produced.
//   - EINTR ("interrupted system call") is generally retried internally by the
//     Go stdlib, so surfacing it is usually less os-like than surfacing EIO.
func (c *Chaos) introduceChaos(path string, kind faultKind) error {
	mode := ChaosMode(c.mode.Load())
	if mode != ChaosModeActive {
		return nil
	}

	var (
		rate    float64
		counter *atomic.Int64
		errnos  []syscall.Errno
	)

	switch kind {
	case faultStat:
		// EACCES: permission denied (file/directory permissions or ACLs)
		// EIO: I/O error (device/filesystem failure)
		rate = c.config.StatFailRate
		counter = &c.statFails
		errnos = []syscall.Errno{syscall.EACCES, syscall.EIO}

	case faultMkdirAll:
		// EACCES: permission denied (file/directory permissions or ACLs)
		// EIO: I/O error (device/filesystem failure)
		// ENOSPC: no space left on device
		// EDQUOT: disk quota exceeded
		// EROFS: read-only filesystem (writes/mutations are rejected)
		// ENOTDIR: a path component is not a directory
		rate = c.config.MkdirAllFailRate
		counter = &c.mkdirAllFails
		errnos = []syscall.Errno{syscall.EACCES, syscall.EIO, syscall.ENOSPC, syscall.EDQUOT, syscall.EROFS, syscall.ENOTDIR}

	case faultLock:
		// EACCES: permission denied (file/directory permissions or ACLs)
		// EIO: I/O error (device/filesystem failure)
		rate = c.config.LockFailRate
		counter = &c.lockFails
		errnos = []syscall.Errno{syscall.EACCES, syscall.EIO}

	default:
		panic("unknown fault kind: " + string(kind))
	}

	if c.should(mode, rate) {
		counter.Add(1)

		errno := errnos[c.randIntn(len(errnos))]

		return pathError(string(kind), path, errno)
	}

	return nil
}

// should returns true with the given probability when chaos is injecting.
func (c *Chaos) should(mode ChaosMode, rate float64) bool {
	if mode != ChaosModeActive {
		return false
	}

	return c.randFloat() < rate
}

// randFloat returns a random float64 in [0.0, 1.0) (thread-safe).
func (c *Chaos) randFloat() float64 {
	c.rngMu.Lock()
	result := c.rng.Float64()
	c.rngMu.Unlock()

	return result
}

// randIntn returns a random int in [0, n) (thread-safe).
func (c *Chaos) randIntn(n int) int {
	c.rngMu.Lock()
	result := c.rng.Intn(n)
	c.rngMu.Unlock()

	return result
}

// pathError creates an injected [*fs.PathError] with the given operation, path, and errno.
// The error is wrapped in [ChaosError] so [IsChaosErr] can identify it, while
// [errors.As] and helpers like [os.IsPermission] still work via unwrapping.
func pathError(op, path string, errno syscall.Errno) error {
	pe := &fs.PathError{Op: op, Path: path, Err: errno}

	return &ChaosError{Err: pe}
}

// pickRandom selects a random error from the slice.
func (c *Chaos) pickRandom(errs []syscall.Errno) syscall.Errno {
	return errs[c.randIntn(len(errs))]
}

// pickError selects an injected errno for the given operation.
//
// Note: Some operations are handled by [Chaos.introduceChaos] or
// [chaosFile.introduceChaos] instead, which have inline errno documentation.
//
// Operation -> injected errnos:
//   - open: EACCES, EIO, EMFILE, ENFILE, ENOTDIR
//   - create: EACCES, EIO, ENOSPC, EDQUOT, EROFS, EMFILE, ENFILE, ENOTDIR
//   - fdread: EIO only (avoid EACCES/ENOENT post-open; match os.File.Read shape)
//   - fdwrite: EIO, ENOSPC, EDQUOT, EROFS (avoid EACCES/ENOENT post-open)
//   - fdclose: EIO only (avoid EACCES/ENOENT post-open)
func (c *Chaos) pickError(op string) syscall.Errno {
	switch op {
	case "open":
		// EACCES: permission denied (file/directory permissions or ACLs)
		// EIO: I/O error (device/filesystem failure)
		// EMFILE: too many open files for this process (per-process FD limit)
		// ENFILE: too many open files in the system (system-wide FD limit)
		// ENOTDIR: expected a directory, but a path component is not a directory
		return c.pickRandom([]syscall.Errno{
			syscall.EACCES,
			syscall.EIO,
			syscall.EMFILE,
			syscall.ENFILE,
			syscall.ENOTDIR,
		})

	case "create":
		// EACCES: permission denied (file/directory permissions or ACLs)
		// EIO: I/O error (device/filesystem failure)
		// ENOSPC: no space left on device
		// EDQUOT: disk quota exceeded
		// EROFS: read-only filesystem (writes/mutations are rejected)
		// EMFILE: too many open files for this process (per-process FD limit)
		// ENFILE: too many open files in the system (system-wide FD limit)
		// ENOTDIR: expected a directory, but a path component is not a directory
		return c.pickRandom([]syscall.Errno{
			syscall.EACCES,
			syscall.EIO,
			syscall.ENOSPC,
			syscall.EDQUOT,
			syscall.EROFS,
			syscall.EMFILE,
			syscall.ENFILE,
			syscall.ENOTDIR,
		})

	case "fdread":
		// EIO only: avoid EACCES/ENOENT post-open; match os.File.Read shape
		return syscall.EIO

	case "fdwrite":
		// EIO: I/O error (device/filesystem failure)
		// ENOSPC: no space left on device
		// EDQUOT: disk quota exceeded
		// EROFS: read-only filesystem (writes/mutations are rejected)
		// Avoid EACCES/ENOENT post-open.
		return c.pickRandom([]syscall.Errno{
			syscall.EIO,
			syscall.ENOSPC,
			syscall.EDQUOT,
			syscall.EROFS,
		})

	case "fdclose":
		// EIO only: avoid EACCES/ENOENT post-open
		return syscall.EIO

	default:
		return syscall.EIO
	}
}

// chaosFile wraps a [File] and injects faults on Read/Write.
type chaosFile struct {
	f     File
	chaos *Chaos
	path  string
}

// Interface compliance.
var _ File = (*chaosFile)(nil)

func (cf *chaosFile) Read(p []byte) (int, error) {
	mode := ChaosMode(cf.chaos.mode.Load())
	if mode == ChaosModeNoOp {
		return cf.f.Read(p)
	}

	if cf.chaos.should(mode, cf.chaos.config.ReadFailRate) {
		errno := cf.chaos.pickError("fdread")

		cf.chaos.readFails.Add(1)

		return 0, pathError("read", cf.path, errno)
	}

	// Partial read: return a short read WITHOUT skipping bytes.
	// This must limit the underlying read, not just shrink the returned count,
	// otherwise the file offset advances too far and callers silently lose data.
	if cf.chaos.should(mode, cf.chaos.config.PartialReadRate) && len(p) > 1 {
		cf.chaos.partialReads.Add(1)

		cutoff := cf.chaos.randIntn(len(p)-1) + 1 // [1, len(p)-1]

		return cf.f.Read(p[:cutoff])
	}

	return cf.f.Read(p)
}

func (cf *chaosFile) Write(p []byte) (int, error) {
	mode := ChaosMode(cf.chaos.mode.Load())
	if mode == ChaosModeNoOp {
		return cf.f.Write(p)
	}

	if cf.chaos.should(mode, cf.chaos.config.WriteFailRate) {
		errno := cf.chaos.pickError("fdwrite")

		cf.chaos.writeFails.Add(1)

		return 0, pathError("write", cf.path, errno)
	}

	// Partial write
	if cf.chaos.should(mode, cf.chaos.config.PartialWriteRate) && len(p) > 1 {
		cf.chaos.partialWrites.Add(1)

		cutoff := cf.chaos.randIntn(len(p)-1) + 1 // [1, len(p)-1]

		wrote, err := cf.f.Write(p[:cutoff])
		if err != nil {
			return wrote, err
		}

		// Some portion of partial writes should look like a "short write without an errno"
		// (io.ErrShortWrite). In the stdlib, this is the fallback when a write returns
		// n != len(b) without a syscall error.
		if cf.chaos.randFloat() < cf.chaos.config.ShortWriteRate {
			return wrote, &ChaosError{Err: io.ErrShortWrite}
		}

		errno := cf.chaos.pickError("fdwrite")

		return wrote, pathError("write", cf.path, errno)
	}

	return cf.f.Write(p)
}

func (cf *chaosFile) Close() error {
	mode := ChaosMode(cf.chaos.mode.Load())
	if mode == ChaosModeNoOp {
		return cf.f.Close()
	}

	injectClose := cf.chaos.should(mode, cf.chaos.config.CloseFailRate)

	// Always close the underlying file to avoid descriptor leaks, even when
	// returning an injected error.
	err := cf.f.Close()
	if err != nil {
		return err
	}

	if injectClose {
		cf.chaos.closeFails.Add(1)
		errno := cf.chaos.pickError("fdclose")

		return pathError("close", cf.path, errno)
	}

	return nil
}

// introduceChaos checks if a fault should be injected for file handle operations.
// Returns a non-nil error if a fault was injected, nil otherwise.
func (cf *chaosFile) introduceChaos(kind fileFaultKind) error {
	mode := ChaosMode(cf.chaos.mode.Load())
	if mode != ChaosModeActive {
		return nil
	}

	var (
		rate    float64
		counter *atomic.Int64
		errnos  []syscall.Errno
	)

	switch kind {
	case fileFaultSeek:
		// EIO: I/O error (avoid EACCES/ENOENT post-open)
		rate = cf.chaos.config.SeekFailRate
		counter = &cf.chaos.seekFails
		errnos = []syscall.Errno{syscall.EIO}

	case fileFaultStat:
		// EIO: I/O error (avoid EACCES/ENOENT post-open)
		rate = cf.chaos.config.FileStatFailRate
		counter = &cf.chaos.fileStatFails
		errnos = []syscall.Errno{syscall.EIO}

	case fileFaultSync:
		// EIO: I/O error (device/filesystem failure)
		// ENOSPC: no space left on device
		// EDQUOT: disk quota exceeded
		// EROFS: read-only filesystem (writes/mutations are rejected)
		// fsync can surface delayed write failures
		rate = cf.chaos.config.SyncFailRate
		counter = &cf.chaos.syncFails
		errnos = []syscall.Errno{syscall.EIO, syscall.ENOSPC, syscall.EDQUOT, syscall.EROFS}

	default:
		panic("unknown file fault kind: " + string(kind))
	}

	if cf.chaos.should(mode, rate) {
		counter.Add(1)

		errno := errnos[cf.chaos.randIntn(len(errnos))]

		return pathError(string(kind), cf.path, errno)
	}

	return nil
}

func (cf *chaosFile) Seek(offset int64, whence int) (int64, error) {
	err := cf.introduceChaos(fileFaultSeek)
	if err != nil {
		return 0, err
	}

	return cf.f.Seek(offset, whence)
}

func (cf *chaosFile) Fd() uintptr {
	return cf.f.Fd()
}

func (cf *chaosFile) Stat() (os.FileInfo, error) {
	err := cf.introduceChaos(fileFaultStat)
	if err != nil {
		return nil, err
	}

	return cf.f.Stat()
}

func (cf *chaosFile) Sync() error {
	err := cf.introduceChaos(fileFaultSync)
	if err != nil {
		return err
	}

	return cf.f.Sync()
}

var _ FS = (*Chaos)(nil)
