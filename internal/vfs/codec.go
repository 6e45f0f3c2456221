package vfs

import (
	"encoding/binary"
	"strings"
	"unicode/utf8"
)

// inodeEntry is the in-memory form of one inode slot.
//
// The zero value (name == "", size == 0, firstBlock == 0) is never used as
// "empty" — callers track occupancy with the occupied flag returned
// alongside the entry instead, since first_block == 0 is a valid occupied
// state (chain head at block 0).
type inodeEntry struct {
	name       string
	size       int
	firstBlock int // noBlock if the file is empty
}

// chainNode is the in-memory form of one chain-node slot.
type chainNode struct {
	blockIndex int // noBlock if the block is free
	next       int // noBlock if this is the tail
}

// encodeInode writes e's on-disk representation (§4.1 / §3) into a
// caller-provided InodeSize-byte buffer.
func encodeInode(e inodeEntry, buf []byte) {
	if len(buf) != InodeSize {
		panic("vfs: encodeInode: buffer must be InodeSize bytes")
	}

	clear(buf[:NameMax])
	copy(buf[:NameMax], e.name)

	binary.BigEndian.PutUint16(buf[NameMax:NameMax+2], uint16(int16(e.size)))
	binary.BigEndian.PutUint16(buf[NameMax+2:NameMax+4], uint16(int16(e.firstBlock)))
}

// decodeInode parses an InodeSize-byte slot. occupied is false for an
// all-zero slot (§3: "An all-zero slot denotes an empty slot").
//
// A name that is not valid UTF-8 once trimmed of its trailing NUL padding
// is reported as [ErrCorrupt] — §4.1: "malformed UTF-8 in a name on load is
// reported as a fatal corruption error."
func decodeInode(buf []byte) (e inodeEntry, occupied bool, err error) {
	if len(buf) != InodeSize {
		panic("vfs: decodeInode: buffer must be InodeSize bytes")
	}

	if isAllZero(buf) {
		return inodeEntry{}, false, nil
	}

	nameEnd := 0
	for nameEnd < NameMax && buf[nameEnd] != 0 {
		nameEnd++
	}

	nameBytes := buf[:nameEnd]
	if !utf8.Valid(nameBytes) {
		return inodeEntry{}, false, errCorrupt("inode name is not valid UTF-8")
	}

	name := strings.TrimFunc(string(nameBytes), isASCIISpace)

	size := int(int16(binary.BigEndian.Uint16(buf[NameMax : NameMax+2])))
	firstBlock := int(int16(binary.BigEndian.Uint16(buf[NameMax+2 : NameMax+4])))

	return inodeEntry{name: name, size: size, firstBlock: firstBlock}, true, nil
}

// encodeChainNode writes n's on-disk representation into a caller-provided
// ChainNodeSize-byte buffer.
func encodeChainNode(n chainNode, buf []byte) {
	if len(buf) != ChainNodeSize {
		panic("vfs: encodeChainNode: buffer must be ChainNodeSize bytes")
	}

	binary.BigEndian.PutUint16(buf[0:2], uint16(int16(n.blockIndex)))
	binary.BigEndian.PutUint16(buf[2:4], uint16(int16(n.next)))
}

// decodeChainNode parses a ChainNodeSize-byte slot.
func decodeChainNode(buf []byte) chainNode {
	if len(buf) != ChainNodeSize {
		panic("vfs: decodeChainNode: buffer must be ChainNodeSize bytes")
	}

	blockIndex := int(int16(binary.BigEndian.Uint16(buf[0:2])))
	next := int(int16(binary.BigEndian.Uint16(buf[2:4])))

	return chainNode{blockIndex: blockIndex, next: next}
}

func isAllZero(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}

	return true
}

func isASCIISpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}
