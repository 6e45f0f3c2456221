package vfs

import (
	"errors"
	"fmt"
)

// Error classification sentinels, per spec §7.
//
// Callers should classify with [errors.Is]; [Manager] operations return an
// error wrapping one of these alongside a human-readable message.
var (
	// ErrNameTooLong: name exceeds [NameMax] bytes.
	ErrNameTooLong = errors.New("filename too long")

	// ErrNoFreeInode: the inode table is full.
	ErrNoFreeInode = errors.New("Maximum file limit reached")

	// ErrNoSuchFile: operation references an absent name.
	ErrNoSuchFile = errors.New("file does not exist")

	// ErrNoSpace: insufficient free blocks, or content too large to encode.
	ErrNoSpace = errors.New("file too large or insufficient space")

	// ErrIO: backing-file failure. The operation was aborted; in-memory
	// state may be inconsistent with disk. Callers must reopen the file
	// system to recover.
	ErrIO = errors.New("backing file i/o error")

	// ErrCorrupt: on load, an invariant of §3 was found violated. Fatal —
	// [Open] returns this and the file system cannot be used.
	ErrCorrupt = errors.New("corrupt file system")
)

// fileError reports [ErrNoSuchFile] for a specific name.
type fileError struct {
	name string
}

func (e *fileError) Error() string {
	return fmt.Sprintf("file %s does not exist", e.name)
}

func (e *fileError) Unwrap() error {
	return ErrNoSuchFile
}

// errNoSuchFile builds the per-name form of [ErrNoSuchFile] used by every
// facade operation that looks a name up (§7: "ERROR: file <name> does not
// exist").
func errNoSuchFile(name string) error {
	return &fileError{name: name}
}

// ioError wraps an underlying host-file failure as [ErrIO].
type ioError struct {
	op  string
	err error
}

func (e *ioError) Error() string {
	return fmt.Sprintf("%s: %v", e.op, e.err)
}

func (e *ioError) Unwrap() error {
	return ErrIO
}

func wrapIOError(op string, err error) error {
	if err == nil {
		return nil
	}

	return &ioError{op: op, err: err}
}

// corruptError reports [ErrCorrupt] with the invariant that was violated.
type corruptError struct {
	reason string
}

func (e *corruptError) Error() string {
	return fmt.Sprintf("corrupt file system: %s", e.reason)
}

func (e *corruptError) Unwrap() error {
	return ErrCorrupt
}

func errCorrupt(reason string) error {
	return &corruptError{reason: reason}
}
