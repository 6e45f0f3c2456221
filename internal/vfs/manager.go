package vfs

import (
	"sync"

	"github.com/cstdev/simdiskd/internal/hostfs"
)

// Manager is the FS manager facade of §4.7: the only type callers use to
// operate on a simulated disk. Its CREATE/WRITE/READ/DELETE/LIST methods
// acquire the locks described in §4.6, consult the in-memory tables, drive
// the block device through the codec and chain engine, and return a typed
// error from errors.go on failure.
//
// A Manager owns the lifetime of one backing file. Close it exactly once
// when done.
type Manager struct {
	dev   *device
	locks *lockManager

	// state is fsState's runtime mirror of the metadata region. Every
	// access to it — anywhere in this package — holds locks.global for
	// reading or writing, per §4.6; there is no separate mutex for state
	// itself because global already serializes every path that reaches it.
	state fsState

	// name and configuredSize are stored only to satisfy the constructor
	// signature of §6 ("Constructor parameters: (backing_path, fs_name,
	// configured_size)"). configuredSize does not affect layout — see
	// [Manager.ConfiguredSize].
	name           string
	configuredSize int64

	closeOnce sync.Once
	closeErr  error
}

// Name returns the fs_name the Manager was constructed with.
func (m *Manager) Name() string { return m.name }

// ConfiguredSize returns the configured_size constructor parameter,
// unused by the implementation — §6/§9: "the reference's configured_size
// constructor parameter is ignored; layout is fixed by constants.
// Preserve this interface to keep callers working; document it as 'layout
// is fixed.'"
func (m *Manager) ConfiguredSize() int64 { return m.configuredSize }

// Open constructs a Manager backed by the file at path, per the
// "Construction / load" procedure of §4.7.
func Open(fsys hostfs.FS, path, fsName string, configuredSize int64) (*Manager, error) {
	dev, err := openDevice(fsys, path)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		dev:            dev,
		locks:          newLockManager(),
		name:           fsName,
		configuredSize: configuredSize,
	}

	size, err := dev.size()
	if err != nil {
		_ = dev.close()

		return nil, err
	}

	if size == 0 {
		if err := m.initializeLayout(); err != nil {
			_ = dev.close()

			return nil, err
		}
	} else {
		if err := m.loadLayout(); err != nil {
			_ = dev.close()

			return nil, err
		}
	}

	return m, nil
}

// initializeLayout writes a fresh, empty file system: zero inodes, all
// chain nodes (-1, -1), grown to [TotalSize], synced.
func (m *Manager) initializeLayout() error {
	for i := 0; i < MaxFiles; i++ {
		if err := persistEmptyInode(m.dev, i); err != nil {
			return err
		}

		m.state.inodes[i] = inodeSlot{}
	}

	empty := chainNode{blockIndex: noBlock, next: noBlock}

	for i := 0; i < MaxBlocks; i++ {
		if err := persistChainNode(m.dev, i, empty); err != nil {
			return err
		}

		m.state.nodes[i] = empty
		m.state.freeList[i] = true
	}

	if err := m.dev.growTo(int64(TotalSize)); err != nil {
		return err
	}

	return m.dev.sync()
}

// loadLayout reads every inode and chain node from disk into memory and
// rebuilds the free list per the canonical rule of §9: "free[k] =
// (node_table[k].block_index < 0)".
func (m *Manager) loadLayout() error {
	seenNames := make(map[string]bool, MaxFiles)

	for i := 0; i < MaxFiles; i++ {
		buf := make([]byte, InodeSize)

		if err := m.dev.seek(inodeOffset(i)); err != nil {
			return err
		}

		if err := m.dev.readExact(buf); err != nil {
			return err
		}

		entry, occupied, err := decodeInode(buf)
		if err != nil {
			return err
		}

		if occupied {
			if seenNames[entry.name] {
				return errCorrupt("duplicate file name " + entry.name)
			}

			seenNames[entry.name] = true

			if len(entry.name) > NameMax {
				return errCorrupt("file name exceeds NameMax: " + entry.name)
			}

			if entry.size < 0 || entry.size > MaxFileSize {
				return errCorrupt("file size out of range for " + entry.name)
			}

			m.state.liveCount++
		}

		m.state.inodes[i] = inodeSlot{occupied: occupied, entry: entry}
	}

	for i := 0; i < MaxBlocks; i++ {
		buf := make([]byte, ChainNodeSize)

		if err := m.dev.seek(chainNodeOffset(i)); err != nil {
			return err
		}

		if err := m.dev.readExact(buf); err != nil {
			return err
		}

		node := decodeChainNode(buf)
		m.state.nodes[i] = node
		m.state.freeList[i] = node.blockIndex < 0
	}

	if err := m.validateChains(); err != nil {
		return err
	}

	for _, slot := range m.state.inodes {
		if slot.occupied {
			m.locks.ensureFileLock(slot.entry.name)
		}
	}

	return nil
}

// validateChains checks I3/I4 across every occupied inode: each file's
// chain visits exactly ceil(size/BlockSize) distinct blocks, and no block
// is shared between two files' chains.
func (m *Manager) validateChains() error {
	owner := make(map[int]string, MaxBlocks)

	for _, slot := range m.state.inodes {
		if !slot.occupied {
			continue
		}

		e := slot.entry
		wantBlocks := (e.size + BlockSize - 1) / BlockSize

		visited := make(map[int]bool)

		k := e.firstBlock
		for k != noBlock {
			if k < 0 || k >= MaxBlocks {
				return errCorrupt("chain for " + e.name + " references out-of-range block")
			}

			if visited[k] {
				return errCorrupt("chain for " + e.name + " contains a cycle")
			}

			if owner[k] != "" {
				return errCorrupt("block shared between " + owner[k] + " and " + e.name)
			}

			owner[k] = e.name
			visited[k] = true
			k = m.state.nodes[k].next
		}

		if len(visited) != wantBlocks {
			return errCorrupt("chain length mismatch for " + e.name)
		}
	}

	return nil
}

// Close releases the backing file descriptor. Safe to call more than once;
// only the first call's error is returned (§4.2: "close() is invoked
// exactly once at process shutdown").
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.closeErr = m.dev.close()
	})

	return m.closeErr
}
