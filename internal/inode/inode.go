// Package inode implements the binding between a directory entry (or the
// synthesized root) and a live in-memory file object, per spec.md §4.6:
// ReadRoot, FillFromEntry, and Flush.
package inode

import (
	"github.com/sfatfs/sfat/errors"
	"github.com/sfatfs/sfat/internal/blockio"
	"github.com/sfatfs/sfat/internal/dirent"
)

// RootDirentPos is the sentinel i_pos for the root inode: no real entry
// ever sits at volume offset 0 because that's the boot sector.
const RootDirentPos int64 = 0

// State is one of the five inode lifecycle states spec.md §4.7 names.
type State int

const (
	StateFresh State = iota
	StateClean
	StateDirty
	StateFlushing
	StateReleased
)

// Inode is the in-memory record binding a directory entry to file
// operations. The root inode has no backing entry; IsRoot reports that
// case and Flush becomes a no-op for it.
type Inode struct {
	IsRoot bool

	Start        uint32 // i_start: first cluster of the backing chain
	Attrs        uint8  // i_attrs
	Pos          int64  // i_pos: absolute byte offset of the backing entry
	Size         uint32
	Blocks       uint32 // i_blocks: device blocks currently allocated to the chain
	LinkCount    uint32
	CreatedAt    uint32
	AccessedAt   uint32
	ModifiedAt   uint32

	State State
}

// IsDir reports whether the inode names a directory.
func (in *Inode) IsDir() bool {
	return in.IsRoot || in.Attrs&dirent.AttrDir != 0
}

// markDirty transitions Clean or Fresh to Dirty; any other current state
// is left alone.
func (in *Inode) markDirty() {
	if in.State == StateClean || in.State == StateFresh {
		in.State = StateDirty
	}
}

// SetSize updates the inode's size and marks it dirty, as every mutator
// that changes on-disk shape must.
func (in *Inode) SetSize(size uint32) {
	in.Size = size
	in.markDirty()
}

// Touch updates the access and modification timestamps and marks the
// inode dirty.
func (in *Inode) Touch(now uint32, modified bool) {
	in.AccessedAt = now
	if modified {
		in.ModifiedAt = now
	}
	in.markDirty()
}

// GrowBlocks adds deltaBlocks to the inode's block count and marks it
// dirty, used whenever a chain gains a whole cluster.
func (in *Inode) GrowBlocks(deltaBlocks uint32) {
	in.Blocks += deltaBlocks
	in.markDirty()
}

// SpliceStart records a newly-acquired first cluster (used when a write
// extends an empty file) and marks the inode dirty.
func (in *Inode) SpliceStart(cluster uint32) {
	in.Start = cluster
	in.markDirty()
}

// RootCounter counts the live subdirectories of the root, which
// ReadRoot needs to compute the root's link count (subdirs + 3, for `.`,
// `..`, and the root's own self-reference).
type RootCounter interface {
	CountSubdirectories(rootStart uint32) (uint32, error)
}

// ReadRoot synthesizes the root inode directly from the boot sector's
// root_start, without ever reading a directory entry for it.
func ReadRoot(rootStart uint32, counter RootCounter) (*Inode, error) {
	subdirs, err := counter.CountSubdirectories(rootStart)
	if err != nil {
		return nil, err
	}
	return &Inode{
		IsRoot:    true,
		Start:     rootStart,
		Attrs:     dirent.AttrDir,
		Pos:       RootDirentPos,
		LinkCount: subdirs + 3,
		State:     StateClean,
	}, nil
}

// FillFromEntry populates an inode from a decoded directory entry plus the
// absolute byte offset pos where that entry resides.
func FillFromEntry(e dirent.Entry, pos int64) *Inode {
	return &Inode{
		Start:      e.FirstCluster,
		Attrs:      e.Attr,
		Pos:        pos,
		Size:       e.Size,
		LinkCount:  1,
		CreatedAt:  e.CreatedAt,
		AccessedAt: e.AccessedAt,
		ModifiedAt: e.ModifiedAt,
		State:      StateClean,
	}
}

// Flush is write_to_hd from spec.md §4.6: for the root, and for any inode
// that is not Dirty, it's a no-op; for a Dirty inode it locates the
// backing entry's block by shifting Pos
// by blockBits, updates fst_cls_no/size/timestamps in place, and writes
// the block back.
func Flush(dev *blockio.Device, in *Inode, blockBits uint) error {
	if in.IsRoot {
		return nil
	}
	if in.State != StateDirty {
		return nil
	}
	in.State = StateFlushing

	blockSize := dev.BlockSize()
	blk := uint(in.Pos) >> blockBits
	off := uint(in.Pos) & (blockSize - 1)

	buf, err := dev.ReadBlock(blk)
	if err != nil {
		in.State = StateDirty
		return err
	}
	defer buf.Release()

	data := buf.Bytes()
	if off+uint(dirent.Size) > uint(len(data)) {
		in.State = StateDirty
		return errors.ErrFileSystemCorrupted.WithMessage("inode i_pos does not land on a whole directory entry")
	}

	entry, err := dirent.Decode(data[off : off+uint(dirent.Size)])
	if err != nil {
		in.State = StateDirty
		return err
	}
	entry.FirstCluster = in.Start
	entry.Size = in.Size
	entry.CreatedAt = in.CreatedAt
	entry.AccessedAt = in.AccessedAt
	entry.ModifiedAt = in.ModifiedAt
	dirent.WriteInto(data, off, entry)

	if err := dev.WriteBlock(blk, buf); err != nil {
		in.State = StateDirty
		return err
	}
	in.State = StateClean
	return nil
}
