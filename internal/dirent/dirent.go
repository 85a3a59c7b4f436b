// Package dirent implements the directory entry record and the directory
// engine: locate-by-name, locate-free-slot, insertion, and enumeration,
// all operating on a chain of clusters read through blockio and onfat.
package dirent

import (
	"encoding/binary"
	"fmt"

	"github.com/sfatfs/sfat/errors"
	"github.com/sfatfs/sfat/internal/blockio"
	"github.com/sfatfs/sfat/internal/onfat"
)

// Attribute bits for Entry.Attr, per spec.md §6.
const (
	AttrDir      uint8 = 0x10
	AttrEmpty    uint8 = 0x40 // tombstone: slot unused, scan continues past it
	AttrEmptyEnd uint8 = 0x80 // this and every later slot in the directory are unused
)

// Size is the on-disk size of one packed directory entry record.
const Size = onfat.DirentSize

const nameLen = 11

// Entry is the decoded, in-memory form of a 32-byte directory entry.
type Entry struct {
	Name        [nameLen]byte
	Attr        uint8
	CreatedAt   uint32
	AccessedAt  uint32
	ModifiedAt  uint32
	Size        uint32
	FirstCluster uint32
}

// IsLive reports whether the entry is neither a tombstone nor the
// terminator: it names a real child of the directory.
func (e *Entry) IsLive() bool {
	return e.Attr&(AttrEmpty|AttrEmptyEnd) == 0
}

// IsDir reports whether the entry names a subdirectory rather than a file.
func (e *Entry) IsDir() bool {
	return e.Attr&AttrDir != 0
}

// NameString returns the entry's name with trailing NUL padding trimmed.
func (e *Entry) NameString() string {
	n := nameLen
	for n > 0 && e.Name[n-1] == 0 {
		n--
	}
	return string(e.Name[:n])
}

// EncodeName packs name into an 11-byte, NUL-padded field. It fails
// errors.KindInvalid if name is longer than 11 bytes.
func EncodeName(name string) ([nameLen]byte, error) {
	var out [nameLen]byte
	if len(name) > nameLen {
		return out, errors.KindInvalid.WithMessage(
			fmt.Sprintf("name %q is longer than %d bytes", name, nameLen))
	}
	copy(out[:], name)
	return out, nil
}

// Decode parses a Size-byte slice into an Entry.
func Decode(raw []byte) (Entry, error) {
	if len(raw) < Size {
		return Entry{}, errors.KindInvalid.WithMessage(
			fmt.Sprintf("directory entry needs %d bytes, got %d", Size, len(raw)))
	}
	var e Entry
	copy(e.Name[:], raw[0:11])
	e.Attr = raw[11]
	e.CreatedAt = binary.LittleEndian.Uint32(raw[12:16])
	e.AccessedAt = binary.LittleEndian.Uint32(raw[16:20])
	e.ModifiedAt = binary.LittleEndian.Uint32(raw[20:24])
	e.Size = binary.LittleEndian.Uint32(raw[24:28])
	e.FirstCluster = binary.LittleEndian.Uint32(raw[28:32])
	return e, nil
}

// Encode packs e into a fresh Size-byte slice.
func Encode(e Entry) []byte {
	raw := make([]byte, Size)
	copy(raw[0:11], e.Name[:])
	raw[11] = e.Attr
	binary.LittleEndian.PutUint32(raw[12:16], e.CreatedAt)
	binary.LittleEndian.PutUint32(raw[16:20], e.AccessedAt)
	binary.LittleEndian.PutUint32(raw[20:24], e.ModifiedAt)
	binary.LittleEndian.PutUint32(raw[24:28], e.Size)
	binary.LittleEndian.PutUint32(raw[28:32], e.FirstCluster)
	return raw
}

// WriteInto copies e's encoded form into block at the given byte offset.
func WriteInto(block []byte, off uint, e Entry) {
	copy(block[off:off+uint(Size)], Encode(e))
}

// Location identifies exactly where one directory entry lives: cluster,
// block-within-cluster, and byte offset within that block.
type Location struct {
	Cluster uint32
	Block   uint
	Offset  uint
}

// ClusterBlockMapper converts a cluster index to the absolute block number
// of its first block. It's the one piece of geometry the directory engine
// needs but doesn't own; supplied by geometry.Geometry.ClusterToBlock.
type ClusterBlockMapper func(cluster uint32) uint

// Engine walks the directory chains of one volume: locate, locate-free,
// insertion, and enumeration, per spec.md §4.5. It knows the cluster
// geometry (blocks per cluster, entries per block) but defers all chain
// topology to the Allocator it's given and all cluster→block math to the
// mapper it's bound to.
type Engine struct {
	dev          *blockio.Device
	alloc        *onfat.Allocator
	mapper       ClusterBlockMapper
	blkPerClus   uint
	direntPerBlk uint
	clusterSize  uint
}

// NewEngine builds a directory Engine.
func NewEngine(dev *blockio.Device, alloc *onfat.Allocator, mapper ClusterBlockMapper, blkPerClus uint, clusterSize uint) *Engine {
	return &Engine{
		dev:          dev,
		alloc:        alloc,
		mapper:       mapper,
		blkPerClus:   blkPerClus,
		direntPerBlk: dev.BlockSize() / uint(Size),
		clusterSize:  clusterSize,
	}
}

func (e *Engine) clusterToBlock(cluster uint32) uint {
	return e.mapper(cluster)
}
