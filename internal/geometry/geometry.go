// Package geometry derives the constants spec.md §4.3 lists from a decoded
// boot sector plus the device's logical block size: bit widths, blocks per
// sector/cluster, and the helpers that translate a cluster index into an
// absolute block number or byte offset.
package geometry

import (
	"fmt"
	"math/bits"

	"github.com/sfatfs/sfat/errors"
	"github.com/sfatfs/sfat/internal/onfat"
)

// Geometry holds every derived constant a volume needs to translate between
// clusters, blocks, sectors, and byte offsets.
type Geometry struct {
	BlockSize  uint
	BlockBits  uint
	SectorSize uint
	SectorBits uint

	SecPerClus  uint
	ClusterSize uint
	ClusterBits uint

	BlkPerSec  uint
	BlkPerClus uint

	DirentPerBlk uint

	FATStartBlk   uint
	FATLengthBlk  uint
	DataStartBlk  uint
	Fats          uint
	FATLengthSec  uint
	Clusters      uint
	RootCluster   uint32
	RootSizeClus  uint32
}

func log2(n uint) (uint, error) {
	if n == 0 || bits.OnesCount(n) != 1 {
		return 0, errors.KindInvalid.WithMessage(fmt.Sprintf("%d is not a power of two", n))
	}
	return uint(bits.TrailingZeros(n)), nil
}

// Derive computes a Geometry from a decoded boot sector and the device's
// logical block size. It validates sec_per_clus is a power of two and that
// the resulting cluster size is an integer multiple of the block size,
// completing the validation DecodeBootSector leaves undone.
func Derive(bs *onfat.RawBootSector, blockSize uint) (*Geometry, error) {
	blockBits, err := log2(blockSize)
	if err != nil {
		return nil, errors.KindInvalid.WithMessage("block size: " + err.Error())
	}

	sectorSize := uint(bs.SectorSize)
	sectorBits, err := log2(sectorSize)
	if err != nil {
		return nil, errors.KindInvalid.WithMessage("sector size: " + err.Error())
	}

	secPerClus := uint(bs.SecPerClus)
	if secPerClus == 0 {
		return nil, errors.KindInvalid.WithMessage("sec_per_clus must be nonzero")
	}
	clusterSize := secPerClus * sectorSize
	clusterBits, err := log2(clusterSize)
	if err != nil {
		return nil, errors.KindInvalid.WithMessage("cluster size: " + err.Error())
	}

	if sectorSize%blockSize != 0 {
		return nil, errors.KindInvalid.WithMessage(
			fmt.Sprintf("sector size %d is not a multiple of block size %d", sectorSize, blockSize))
	}

	blkPerSec := sectorSize / blockSize
	blkPerClus := clusterSize / blockSize
	direntPerBlk := blockSize / onfat.DirentSize

	reserved := uint(bs.Reserved)
	fatStartSec := 1 + reserved
	fatStartBlk := fatStartSec * blkPerSec
	fatLengthSec := uint(bs.FATLength)
	fatLengthBlk := fatLengthSec * blkPerSec
	fats := uint(bs.Fats)
	if fats == 0 {
		return nil, errors.KindInvalid.WithMessage("fats must be at least 1")
	}
	dataStartBlk := fatStartBlk + fats*fatLengthBlk

	return &Geometry{
		BlockSize:    blockSize,
		BlockBits:    blockBits,
		SectorSize:   sectorSize,
		SectorBits:   sectorBits,
		SecPerClus:   secPerClus,
		ClusterSize:  clusterSize,
		ClusterBits:  clusterBits,
		BlkPerSec:    blkPerSec,
		BlkPerClus:   blkPerClus,
		DirentPerBlk: direntPerBlk,
		FATStartBlk:  fatStartBlk,
		FATLengthBlk: fatLengthBlk,
		DataStartBlk: dataStartBlk,
		Fats:         fats,
		FATLengthSec: fatLengthSec,
		Clusters:     uint(bs.Clusters),
		RootCluster:  bs.RootStart,
		RootSizeClus: bs.RootSize,
	}, nil
}

// ClusterToBlock is cls_to_blk(c) from spec.md §4.3: the absolute block
// number of the first block of cluster c.
func (g *Geometry) ClusterToBlock(cluster uint32) uint {
	return g.DataStartBlk + (uint(cluster) << (g.ClusterBits - g.BlockBits))
}

// EntryPos is entry_pos(c, blk_in_c, off) from spec.md §4.3: the absolute
// byte offset, within the whole volume, of a directory entry living at
// offset off of block blkInCluster of cluster c. This is the value stored
// as a live inode's i_pos.
func (g *Geometry) EntryPos(cluster uint32, blkInCluster uint, off uint) int64 {
	blk := uint64(g.ClusterToBlock(cluster)) + uint64(blkInCluster)
	return int64(blk<<g.BlockBits) + int64(off)
}
