package onfat

import (
	"fmt"

	"github.com/sfatfs/sfat/errors"
	"github.com/sfatfs/sfat/internal/blockio"
)

// DirentSize is the on-disk size, in bytes, of one directory entry record.
const DirentSize = 32

// fatEntrySize is the on-disk size, in bytes, of one FAT entry.
const fatEntrySize = 4

// FAT entry sentinel values, per spec.md §4.4. Everything else is the index
// of the next cluster in a chain.
const (
	EntryFree     uint32 = 0xFFFFFFF9
	EntryEOC      uint32 = 0xFFFFFFF8
	EntryBad      uint32 = 0xFFFFFFF7
	reservedLow   uint32 = 0xFFFFFFF6
	reservedHigh  uint32 = 0xFFFFFFF8 // exclusive upper bound of the reserved range
)

// IsReserved reports whether v falls in the reserved range [0xFFFFFFF6,
// 0xFFFFFFF8) that spec.md §4.4 sets aside and no cluster chain may use.
func IsReserved(v uint32) bool {
	return v >= reservedLow && v < reservedHigh
}

// Allocator walks and mutates the FAT chain-allocator table. It knows
// nothing about directories or files; it operates purely in terms of
// cluster indices.
//
// It performs no caching of its own: every Follow/Modify round-trips
// through the block device, matching the teacher's driverbase.go pattern
// of reading one cluster/sector at a time rather than keeping the whole
// table resident.
type Allocator struct {
	dev             *blockio.Device
	fatStartBlk     uint
	entriesPerBlock uint
	totalClusters   uint32
}

// NewAllocator builds an Allocator over the FAT beginning at fatStartBlk
// (block units), sized for totalClusters entries, four bytes apiece and
// blockSize/4 entries per block.
func NewAllocator(dev *blockio.Device, fatStartBlk uint, totalClusters uint32) *Allocator {
	return &Allocator{
		dev:             dev,
		fatStartBlk:     fatStartBlk,
		entriesPerBlock: dev.BlockSize() / fatEntrySize,
		totalClusters:   totalClusters,
	}
}

func (a *Allocator) checkRange(cluster uint32) error {
	if cluster >= a.totalClusters {
		return errors.KindInvalid.WithMessage(
			fmt.Sprintf("cluster %d out of range [0, %d)", cluster, a.totalClusters))
	}
	return nil
}

func (a *Allocator) blockAndOffset(cluster uint32) (uint, uint) {
	blk := a.fatStartBlk + uint(cluster)/a.entriesPerBlock
	off := (uint(cluster) % a.entriesPerBlock) * fatEntrySize
	return blk, off
}

func (a *Allocator) readEntry(cluster uint32) (uint32, error) {
	if err := a.checkRange(cluster); err != nil {
		return 0, err
	}
	blk, off := a.blockAndOffset(cluster)
	buf, err := a.dev.ReadBlock(blk)
	if err != nil {
		return 0, err
	}
	defer buf.Release()
	b := buf.Bytes()[off : off+fatEntrySize]
	v := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return v, nil
}

func (a *Allocator) writeEntry(cluster uint32, value uint32) error {
	if err := a.checkRange(cluster); err != nil {
		return err
	}
	blk, off := a.blockAndOffset(cluster)
	buf, err := a.dev.ReadBlock(blk)
	if err != nil {
		return err
	}
	defer buf.Release()

	b := buf.Bytes()
	b[off] = byte(value)
	b[off+1] = byte(value >> 8)
	b[off+2] = byte(value >> 16)
	b[off+3] = byte(value >> 24)

	return a.dev.WriteBlock(blk, buf)
}

// Follow is next(c) in spec.md §4.4: it returns the cluster that follows c
// in its chain. Callers must check the result against EntryEOC themselves;
// Follow does not treat EOC as an error.
func (a *Allocator) Follow(cluster uint32) (uint32, error) {
	v, err := a.readEntry(cluster)
	if err != nil {
		return 0, err
	}
	if v == EntryFree || v == EntryBad || IsReserved(v) {
		return 0, errors.KindInvalid.WithMessage(
			fmt.Sprintf("cluster %d: not a live chain link (raw=0x%08x)", cluster, v))
	}
	return v, nil
}

// Modify is modify(c, v) in spec.md §4.4: it overwrites the FAT entry for
// cluster c with the raw value v, without interpreting it.
func (a *Allocator) Modify(cluster uint32, value uint32) error {
	return a.writeEntry(cluster, value)
}

// Acquire is acquire() in spec.md §4.4: it finds the lowest-index cluster
// whose entry reads EntryFree, marks it EOC, and returns its index. It
// returns errors.KindNoSpace if every entry is in use.
//
// Acquire scans one block at a time, lowest cluster index first, so ties
// always resolve to the lowest free index as the spec requires.
func (a *Allocator) Acquire() (uint32, error) {
	for cluster := uint32(0); cluster < a.totalClusters; cluster++ {
		v, err := a.readEntry(cluster)
		if err != nil {
			return 0, err
		}
		if v == EntryFree {
			if err := a.writeEntry(cluster, EntryEOC); err != nil {
				return 0, err
			}
			return cluster, nil
		}
	}
	return 0, errors.KindNoSpace.WithMessage("no free clusters")
}

// Append is append(start, tail) in spec.md §4.4: it walks the chain
// beginning at start to its last (EOC) link and rewrites that link to
// point at tail, leaving tail's own entry untouched (the caller is
// expected to have already marked it EOC via Acquire).
//
// If the walk itself fails partway through, Append does not attempt to
// undo anything it already wrote; per spec.md §4.4, a failed Append after
// a successful Acquire leaks the acquired cluster rather than risk
// corrupting the chain further by writing to already-inconsistent state.
func (a *Allocator) Append(start uint32, tail uint32) error {
	cur := start
	for {
		v, err := a.readEntry(cur)
		if err != nil {
			return err
		}
		if v == EntryEOC {
			return a.writeEntry(cur, tail)
		}
		if v == EntryFree || v == EntryBad || IsReserved(v) {
			return errors.KindInvalid.WithMessage(
				fmt.Sprintf("cluster %d: chain from %d is broken (raw=0x%08x)", cur, start, v))
		}
		cur = v
	}
}

// Seek is seek(start, byte_pos) in spec.md §4.4: given the first cluster of
// a chain and a byte offset from the start of the file, it returns the
// cluster that byte offset falls in and the offset's remainder within that
// cluster.
//
// It carries forward the conservative bounds check from
// sfat_seek in the original kernel module: the walk refuses to continue
// past totalClusters-1 steps even if the chain looks like it keeps going,
// treating that as a corrupted-chain error rather than looping forever.
func (a *Allocator) Seek(start uint32, bytePos int64, clusterSize uint) (uint32, uint, error) {
	if bytePos < 0 {
		return 0, 0, errors.KindInvalid.WithMessage("negative byte position")
	}

	clusterIndex := uint32(bytePos / int64(clusterSize))
	offsetInCluster := uint(bytePos % int64(clusterSize))

	cur := start
	var steps uint32
	for steps < clusterIndex {
		if steps >= a.totalClusters-1 {
			return 0, 0, errors.KindInvalid.WithMessage("seek walked past the cluster count; chain is corrupt")
		}
		next, err := a.Follow(cur)
		if err != nil {
			return 0, 0, err
		}
		cur = next
		steps++
	}
	return cur, offsetInCluster, nil
}
