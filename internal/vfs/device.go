package vfs

import (
	"io"
	"os"

	"github.com/cstdev/simdiskd/internal/hostfs"
)

// device is the block device facade of §4.2: a thin wrapper over a
// random-access backing file opened with write-through semantics
// (O_SYNC). On top of that, every mutating operation ends with an explicit
// [device.sync] call by its caller before the relevant lock is released
// (§4.4, §4.5).
//
// device is not safe for concurrent use; callers serialize access to it
// through the lock manager (§4.6).
type device struct {
	fsys hostfs.FS
	path string
	file hostfs.File
}

// openDevice opens (creating if necessary) the backing file at path and
// returns a [device] positioned to serve seek/read/write calls.
//
// It does not itself initialize the metadata/data layout — that is
// [Manager]'s job during [Open], which distinguishes a freshly created
// (zero-length) file from one that already holds a file system.
func openDevice(fsys hostfs.FS, path string) (*device, error) {
	f, err := fsys.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_SYNC, 0o644)
	if err != nil {
		return nil, wrapIOError("open backing file", err)
	}

	return &device{fsys: fsys, path: path, file: f}, nil
}

// size returns the current length of the backing file.
func (d *device) size() (int64, error) {
	info, err := d.file.Stat()
	if err != nil {
		return 0, wrapIOError("stat backing file", err)
	}

	return info.Size(), nil
}

// seek repositions the backing file for the next read/write.
func (d *device) seek(offset int64) error {
	_, err := d.file.Seek(offset, io.SeekStart)
	if err != nil {
		return wrapIOError("seek backing file", err)
	}

	return nil
}

// readExact reads exactly len(buf) bytes from the current position,
// failing with [ErrIO] on a short read (the backing file is a fixed-size
// regular file; a short read means it was truncated out from under us).
func (d *device) readExact(buf []byte) error {
	_, err := io.ReadFull(d.file, buf)
	if err != nil {
		return wrapIOError("read backing file", err)
	}

	return nil
}

// write writes buf at the current position.
func (d *device) write(buf []byte) error {
	_, err := d.file.Write(buf)
	if err != nil {
		return wrapIOError("write backing file", err)
	}

	return nil
}

// writeZeros writes n zero bytes at the current position.
func (d *device) writeZeros(n int) error {
	if n == 0 {
		return nil
	}

	return d.write(make([]byte, n))
}

// sync flushes buffered writes to durable storage. Every mutating facade
// operation calls sync exactly once, after all of its writes, before
// releasing its write lock (§4.4, §4.5 step 3, §4.7).
func (d *device) sync() error {
	if err := d.file.Sync(); err != nil {
		return wrapIOError("sync backing file", err)
	}

	return nil
}

// growTo extends the backing file to exactly length bytes by appending
// zeros at the current end of file. Used only during initial layout
// creation (§4.7 "Construction / load"), where the file is either absent
// (size 0) or already the full [TotalSize] — growTo never needs to shrink,
// so it is implemented with plain writes rather than a platform truncate
// call, keeping it exercisable through the fault-injected [hostfs.FS] used
// in tests.
func (d *device) growTo(length int64) error {
	current, err := d.size()
	if err != nil {
		return err
	}

	if current >= length {
		return nil
	}

	if err := d.seek(current); err != nil {
		return err
	}

	return d.writeZeros(int(length - current))
}

// close releases the backing file descriptor. Invoked exactly once at
// process shutdown (§4.2).
func (d *device) close() error {
	if err := d.file.Close(); err != nil {
		return wrapIOError("close backing file", err)
	}

	return nil
}
