package vfs

// chain engine: release and install a file's block chain (§4.5), plus the
// read path that walks a chain back into bytes.
//
// Every method here assumes the caller already holds the locks required by
// §4.6/§4.7 for the operation in progress (CREATE/WRITE/DELETE hold
// lockManager.global.write; READ holds only the per-file lock and never
// touches fsState directly through this file).

// persistInode writes inode slot i to the backing file. Callers must call
// d.sync() themselves once all of an operation's writes are staged — this
// keeps multi-slot operations (e.g. WRITE touching several chain nodes and
// one inode) to a single sync per operation rather than one per slot.
func persistInode(d *device, i int, e inodeEntry) error {
	buf := make([]byte, InodeSize)
	encodeInode(e, buf)

	if err := d.seek(inodeOffset(i)); err != nil {
		return err
	}

	return d.write(buf)
}

// persistEmptyInode zeroes inode slot i on disk (§4.7 DELETE, and initial
// layout creation).
func persistEmptyInode(d *device, i int) error {
	if err := d.seek(inodeOffset(i)); err != nil {
		return err
	}

	return d.writeZeros(InodeSize)
}

// persistChainNode writes chain-node slot i to the backing file.
func persistChainNode(d *device, i int, n chainNode) error {
	buf := make([]byte, ChainNodeSize)
	encodeChainNode(n, buf)

	if err := d.seek(chainNodeOffset(i)); err != nil {
		return err
	}

	return d.write(buf)
}

// zeroBlock overwrites block k's data region with zeros (§4.5 release
// chain step 1).
func zeroBlock(d *device, k int) error {
	if err := d.seek(blockOffset(k)); err != nil {
		return err
	}

	return d.writeZeros(BlockSize)
}

// releaseChain walks the chain starting at firstBlock and frees every
// block it visits: zero the block's data, rewrite its chain node to
// (-1, -1) on disk, and mark it free in s. It is idempotent on the empty
// chain (firstBlock == noBlock), per §4.5.
//
// releaseChain defensively rejects a chain that revisits a block or steps
// outside [0, MaxBlocks) — both are impossible under the invariants of §3
// unless the backing file is corrupt, so visiting either is reported as
// [ErrCorrupt] rather than looping or panicking.
func releaseChain(d *device, s *fsState, firstBlock int) error {
	visited := make(map[int]bool)

	k := firstBlock
	for k != noBlock {
		if k < 0 || k >= MaxBlocks {
			return errCorrupt("chain references block index out of range")
		}

		if visited[k] {
			return errCorrupt("chain contains a cycle")
		}

		visited[k] = true

		next := s.nodes[k].next

		if err := zeroBlock(d, k); err != nil {
			return err
		}

		empty := chainNode{blockIndex: noBlock, next: noBlock}

		if err := persistChainNode(d, k, empty); err != nil {
			return err
		}

		s.nodes[k] = empty
		s.freeList[k] = true

		k = next
	}

	return nil
}

// installChain writes content across the blocks in blocks (one call to
// [findFree]'s result), persists the updated chain nodes, and returns the
// new first_block value; the caller persists the inode. It assumes the old
// chain has already
// been released by the caller (§4.5: "old chain fully released before new
// chain is allocated").
func installChain(d *device, s *fsState, blocks []int, content []byte) (firstBlock int, err error) {
	if len(blocks) == 0 {
		return noBlock, nil
	}

	for i, k := range blocks {
		next := noBlock
		if i < len(blocks)-1 {
			next = blocks[i+1]
		}

		s.freeList[k] = false
		node := chainNode{blockIndex: k, next: next}
		s.nodes[k] = node

		if err := persistChainNode(d, k, node); err != nil {
			return 0, err
		}

		start := i * BlockSize
		end := start + BlockSize

		if end > len(content) {
			end = len(content)
		}

		if err := d.seek(blockOffset(k)); err != nil {
			return 0, err
		}

		if err := d.write(content[start:end]); err != nil {
			return 0, err
		}
	}

	return blocks[0], nil
}

// readChain reads size bytes starting at firstBlock, per §4.5's read
// algorithm. size == 0 returns an empty slice without touching the data
// region or firstBlock at all.
func readChain(d *device, nodes [MaxBlocks]chainNode, firstBlock, size int) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}

	out := make([]byte, 0, size)
	visited := make(map[int]bool)

	k := firstBlock

	for len(out) < size {
		if k == noBlock {
			return nil, errCorrupt("chain ended before size bytes were read")
		}

		if k < 0 || k >= MaxBlocks {
			return nil, errCorrupt("chain references block index out of range")
		}

		if visited[k] {
			return nil, errCorrupt("chain contains a cycle")
		}

		visited[k] = true

		remaining := size - len(out)

		n := BlockSize
		if remaining < n {
			n = remaining
		}

		buf := make([]byte, n)

		if err := d.seek(blockOffset(k)); err != nil {
			return nil, err
		}

		if err := d.readExact(buf); err != nil {
			return nil, err
		}

		out = append(out, buf...)
		k = nodes[k].next
	}

	return out, nil
}
