package sfat

import (
	"io"
	"os"
	"sync"

	"github.com/sfatfs/sfat/errors"
	"github.com/sfatfs/sfat/internal/blockio"
	"github.com/sfatfs/sfat/internal/dirent"
	"github.com/sfatfs/sfat/internal/geometry"
	"github.com/sfatfs/sfat/internal/inode"
	"github.com/sfatfs/sfat/internal/onfat"
)

// Volume is one mounted SimpleFAT filesystem. Open, Create and every File
// method acquire the volume's mutex on entry and release it on exit, per
// spec.md §5: those operations on one Volume never run concurrently, but
// distinct Volumes are fully independent. CountSubdirectories and the
// accessors (Geometry, Device, Allocator, Dirs, RootStart) take no lock.
type Volume struct {
	mu sync.Mutex

	dev   *blockio.Device
	geo   *geometry.Geometry
	alloc *onfat.Allocator
	dirs  *dirent.Engine
	root  *inode.Inode
	opts  MountOptions

	now func() uint32
}

// MountOptions mirrors the uid/gid/umask fields sfat_mount_options collects
// in the original source's super.c: SFAT directory entries carry no
// ownership or permission bits of their own, so these only ever feed
// attrsToFileMode and FileInfo's reported UID/GID, never anything read
// from or written to disk.
type MountOptions struct {
	UID, GID uint32
	FileMask os.FileMode
	DirMask  os.FileMode
}

// Mount reads the boot sector from stream, derives the volume's geometry,
// and synthesizes the root inode, using the zero value of MountOptions
// (uid/gid 0, no permission bits masked off). blockSize is the logical
// block size of the underlying device; it need not equal the on-disk
// sector_size.
//
// now supplies epoch-second timestamps for every operation that stamps
// one; pass a fixed or monotonically-advancing function so callers aren't
// forced through a wall clock in tests.
func Mount(stream io.ReadWriteSeeker, blockSize uint, now func() uint32) (*Volume, error) {
	return MountWithOptions(stream, blockSize, now, MountOptions{})
}

// MountWithOptions is Mount, plus the uid/gid/umask options parse_options
// collects from a real mount(2) call; see MountOptions.
func MountWithOptions(stream io.ReadWriteSeeker, blockSize uint, now func() uint32, opts MountOptions) (*Volume, error) {
	if blockSize == 0 {
		return nil, errors.KindInvalid.WithMessage("block size must be nonzero")
	}

	// Enough of the stream to read the boot sector; corrected below once the
	// real geometry, and so the real block count, is known.
	probe := blockio.NewDevice(stream, blockSize, 1, 0)
	buf, err := probe.ReadBlock(0)
	if err != nil {
		return nil, err
	}
	raw := append([]byte(nil), buf.Bytes()...)
	buf.Release()

	bs, err := onfat.DecodeBootSector(raw)
	if err != nil {
		return nil, err
	}

	geo, err := geometry.Derive(bs, blockSize)
	if err != nil {
		return nil, err
	}

	totalBlocks := uint(bs.Sectors) * geo.BlkPerSec
	dev := blockio.NewDevice(stream, blockSize, totalBlocks, 0)
	alloc := onfat.NewAllocator(dev, geo.FATStartBlk, uint32(geo.Clusters))
	dirs := dirent.NewEngine(dev, alloc, geo.ClusterToBlock, geo.BlkPerClus, geo.ClusterSize)

	v := &Volume{
		dev:   dev,
		geo:   geo,
		alloc: alloc,
		dirs:  dirs,
		opts:  opts,
		now:   now,
	}

	root, err := inode.ReadRoot(geo.RootCluster, v)
	if err != nil {
		return nil, err
	}
	v.root = root
	return v, nil
}

// CountSubdirectories implements inode.RootCounter. Per spec.md §7's error
// policy, a failed count is tolerated and treated as zero so a partially
// readable volume still mounts.
func (v *Volume) CountSubdirectories(rootStart uint32) (uint32, error) {
	var count uint32
	err := v.dirs.Enumerate(rootStart, 0, func(name string, fPos int64, e dirent.Entry) bool {
		if e.IsDir() {
count++
		}
		return true
	})
	if err != nil {
		return 0, nil
	}
	return count, nil
}

// Geometry exposes the volume's derived constants, for callers (fsck,
// mkfat) that need to reason about layout directly.
func (v *Volume) Geometry() *geometry.Geometry {
	return v.geo
}

// Device exposes the volume's block device, for callers (fsck) that need
// to read raw blocks outside the normal file/directory API.
func (v *Volume) Device() *blockio.Device {
	return v.dev
}

// Allocator exposes the volume's FAT allocator, for callers (fsck) that
// need to walk or validate chains directly.
func (v *Volume) Allocator() *onfat.Allocator {
	return v.alloc
}

// Dirs exposes the volume's directory engine, for callers (fsck) that
// need to enumerate directories directly.
func (v *Volume) Dirs() *dirent.Engine {
	return v.dirs
}

// RootStart returns the first cluster of the root directory.
func (v *Volume) RootStart() uint32 {
	return v.root.Start
}
