package vfs

import "sync"

// This file implements the five facade operations of §4.7, each following
// its documented lock-acquisition sequence exactly. See lock.go for the
// acquisition-order rule these sequences obey.

// Create adds an empty file named name. Creating a name that already
// exists succeeds without changing it (§4.7 CREATE, §8 scenario "CREATE an
// existing name").
func (m *Manager) Create(name string) error {
	if len(name) > NameMax {
		return ErrNameTooLong
	}

	m.locks.global.Lock()
	defer m.locks.global.Unlock()

	if _, ok := m.state.findByName(name); ok {
		return nil
	}

	idx, ok := m.state.findFreeSlot()
	if !ok {
		return ErrNoFreeInode
	}

	entry := inodeEntry{name: name, size: 0, firstBlock: noBlock}

	if err := persistInode(m.dev, idx, entry); err != nil {
		return err
	}

	m.state.inodes[idx] = inodeSlot{occupied: true, entry: entry}
	m.state.liveCount++

	m.locks.ensureFileLock(name)

	return m.dev.sync()
}

// Write replaces the content of name with content, reallocating its block
// chain. §4.7 WRITE.
func (m *Manager) Write(name string, content []byte) error {
	if len(content) > MaxWriteSize {
		return ErrNoSpace
	}

	fl := m.acquireFileWriteLock(name)
	defer fl.Unlock()

	m.locks.global.RLock()
	_, existed := m.state.findByName(name)
	m.locks.global.RUnlock()

	if !existed {
		return errNoSuchFile(name)
	}

	needed := (len(content) + BlockSize - 1) / BlockSize

	// Fail fast on an evidently-full disk without holding global for the
	// whole check; the authoritative decision happens below, under
	// global.write, against the current free list (§5: free_list can
	// change between this snapshot and the re-check).
	m.locks.global.RLock()
	_, fits := findFree(m.state.freeList, needed)
	m.locks.global.RUnlock()

	if !fits {
		return ErrNoSpace
	}

	m.locks.global.Lock()
	defer m.locks.global.Unlock()

	idx, ok := m.state.findByName(name)
	if !ok {
		// A DELETE ran between our existence check above and here (§5
		// "Known race"). Abort without touching any state.
		return errNoSuchFile(name)
	}

	blocks, ok := findFree(m.state.freeList, needed)
	if !ok {
		return ErrNoSpace
	}

	old := m.state.inodes[idx].entry

	if err := releaseChain(m.dev, &m.state, old.firstBlock); err != nil {
		return err
	}

	firstBlock, err := installChain(m.dev, &m.state, blocks, content)
	if err != nil {
		return err
	}

	entry := inodeEntry{name: name, size: len(content), firstBlock: firstBlock}

	if err := persistInode(m.dev, idx, entry); err != nil {
		return err
	}

	m.state.inodes[idx] = inodeSlot{occupied: true, entry: entry}

	return m.dev.sync()
}

// Read returns the current content of name. §4.7 READ.
func (m *Manager) Read(name string) ([]byte, error) {
	fl := m.locks.fileLock(name)
	if fl == nil {
		return nil, errNoSuchFile(name)
	}

	fl.RLock()
	defer fl.RUnlock()

	m.locks.global.RLock()
	idx, ok := m.state.findByName(name)

	var (
		size       int
		firstBlock int
		nodes      [MaxBlocks]chainNode
	)

	if ok {
		size = m.state.inodes[idx].entry.size
		firstBlock = m.state.inodes[idx].entry.firstBlock
		nodes = m.state.nodes
	}

	m.locks.global.RUnlock()

	if !ok {
		return nil, errNoSuchFile(name)
	}

	return readChain(m.dev, nodes, firstBlock, size)
}

// Delete removes name and releases its blocks. §4.7 DELETE.
//
// Per §4.7, DELETE takes only global.write, never the per-file lock — a
// READ already holding the file's read lock when DELETE runs can observe
// blocks being zeroed out from under it. This is the spec's documented
// scheme, not a gap introduced here; nothing in the corpus's
// [REDESIGN FLAGS] calls for giving DELETE the per-file lock too, so it is
// implemented literally.
func (m *Manager) Delete(name string) error {
	m.locks.global.Lock()
	defer m.locks.global.Unlock()

	idx, ok := m.state.findByName(name)
	if !ok {
		return errNoSuchFile(name)
	}

	entry := m.state.inodes[idx].entry

	if err := releaseChain(m.dev, &m.state, entry.firstBlock); err != nil {
		return err
	}

	if err := persistEmptyInode(m.dev, idx); err != nil {
		return err
	}

	m.state.inodes[idx] = inodeSlot{}
	m.state.liveCount--

	m.locks.removeFileLock(name)

	return m.dev.sync()
}

// List returns the names of every live file, in inode-slot order. §4.7
// LIST.
func (m *Manager) List() []string {
	m.locks.global.RLock()
	defer m.locks.global.RUnlock()

	return m.state.names()
}

// acquireFileWriteLock returns name's per-file lock, write-locked,
// creating the lock lazily under global.write if this is the first
// operation ever to touch name (§4.6: "creation ... of F[name] happens
// under G.write"). It never holds global and a per-file lock at the same
// time, preserving the outer-file/inner-global acquisition order.
func (m *Manager) acquireFileWriteLock(name string) *sync.RWMutex {
	l := m.locks.fileLock(name)

	if l == nil {
		m.locks.global.Lock()
		l = m.locks.ensureFileLock(name)
		m.locks.global.Unlock()
	}

	l.Lock()

	return l
}
