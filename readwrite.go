package sfat

import (
	"io"

	"github.com/sfatfs/sfat/errors"
	"github.com/sfatfs/sfat/internal/blockio"
	"github.com/sfatfs/sfat/internal/inode"
)

// writeCluster is write_cluster from spec.md §4.7: it writes src into the
// cluster whose first block is clusterFirstBlock, starting at byte offset
// off within the cluster, one block at a time. A block that's only
// partially covered by src (a non-aligned head, or a short tail) is
// read-modify-written; fully covered blocks are streamed directly. It
// never writes past the cluster's last block.
//
// On any block I/O failure it stops and returns the bytes durably written
// so far, with the error that stopped it.
func writeCluster(dev *blockio.Device, clusterFirstBlock uint, blkPerClus uint, off uint, src []byte) (int, error) {
	blockSize := dev.BlockSize()
	blk := off / blockSize
	blkOff := off % blockSize

	written := 0
	remaining := src
	for len(remaining) > 0 && blk < blkPerClus {
		blockNo := clusterFirstBlock + blk

		if blkOff != 0 || uint(len(remaining)) < blockSize {
			buf, err := dev.ReadBlock(blockNo)
			if err != nil {
				return written, err
			}
			n := copy(buf.Bytes()[blkOff:], remaining)
			err = dev.WriteBlock(blockNo, buf)
			buf.Release()
			if err != nil {
				return written, err
			}
			written += n
			remaining = remaining[n:]
		} else {
			buf := dev.NewBuffer()
			copy(buf.Bytes(), remaining[:blockSize])
			err := dev.WriteBlock(blockNo, buf)
			buf.Release()
			if err != nil {
				return written, err
			}
			written += int(blockSize)
			remaining = remaining[blockSize:]
		}
		blkOff = 0
		blk++
	}
	return written, nil
}

// readCluster mirrors writeCluster for reads: it copies from the cluster
// whose first block is clusterFirstBlock, starting at byte offset off,
// into dst, one block at a time, stopping at the cluster's last block.
func readCluster(dev *blockio.Device, clusterFirstBlock uint, blkPerClus uint, off uint, dst []byte) (int, error) {
	blockSize := dev.BlockSize()
	blk := off / blockSize
	blkOff := off % blockSize

	read := 0
	remaining := dst
	for len(remaining) > 0 && blk < blkPerClus {
		blockNo := clusterFirstBlock + blk
		buf, err := dev.ReadBlock(blockNo)
		if err != nil {
			return read, err
		}
		n := copy(remaining, buf.Bytes()[blkOff:])
		buf.Release()
		read += n
		remaining = remaining[n:]
		blkOff = 0
		blk++
	}
	return read, nil
}

// Write is the write operation from spec.md §4.7: it appends len(p) bytes
// at the file's current position, rejecting any attempt to write past a
// gap, extending the chain one cluster at a time as needed, and returning
// the number of bytes durably accepted (which may be less than len(p)).
func (f *File) Write(p []byte) (int, error) {
	v := f.vol
	v.mu.Lock()
	defer v.mu.Unlock()

	in := f.in
	geo := v.geo

	if f.ppos > int64(in.Size) {
		return 0, errors.KindInvalid.WithMessage("write would leave a gap before the current position")
	}

	var cluster uint32
	var offInCluster uint
	acquiredForStart := false

	switch {
	case in.Size == 0:
		c, err := v.alloc.Acquire()
		if err != nil {
			return 0, err
		}
		in.SpliceStart(c)
		cluster = c
		offInCluster = 0
		acquiredForStart = true

	case in.Size%uint32(geo.BlockSize) != 0 || f.ppos < int64(in.Size):
		c, off, err := v.alloc.Seek(in.Start, f.ppos, geo.ClusterSize)
		if err != nil {
			return 0, err
		}
		cluster = c
		offInCluster = off

	default:
		// Block-aligned nonempty EOF: locate the chain's last cluster and
		// resume right after the file's last byte. When that cluster is full,
		// the extend loop below acquires a fresh one before writing anything.
		c, lastOff, err := v.alloc.Seek(in.Start, int64(in.Size)-1, geo.ClusterSize)
		if err != nil {
			return 0, err
		}
		cluster = c
		offInCluster = lastOff + 1
	}

	origLen := len(p)
	var written int
	var extraClusters uint32
	if acquiredForStart {
		extraClusters = 1
	}

	for len(p) > 0 {
		if offInCluster >= geo.ClusterSize {
			next, err := v.alloc.Acquire()
			if err != nil {
				break
			}
			if err := v.alloc.Modify(cluster, next); err != nil {
				break
			}
			cluster = next
			offInCluster = 0
			extraClusters++
		}

		n, err := writeCluster(v.dev, geo.ClusterToBlock(cluster), geo.BlkPerClus, offInCluster, p)
		written += n
		offInCluster += uint(n)
		p = p[n:]
		if err != nil {
			break
		}
		if n == 0 {
			break
		}
	}

	newEnd := f.ppos + int64(written)
	if newEnd > int64(in.Size) {
		in.SetSize(uint32(newEnd))
	}
	now := v.now()
	in.Touch(now, true)
	if extraClusters > 0 {
		in.GrowBlocks(extraClusters * uint32(geo.BlkPerClus))
	}
	f.ppos = newEnd

	if err := inode.Flush(v.dev, in, geo.BlockBits); err != nil {
		return written, err
	}

	if written < origLen {
		// Short write: the helper stopped early. Report it the way io.Writer
		// callers expect, while still returning the bytes actually accepted.
		return written, io.ErrShortWrite
	}
	return written, nil
}

// Read is the read operation from spec.md §4.7. Only the first cluster of
// the file is ever read; a request spanning further clamps to what the
// first cluster holds, per the documented single-cluster limitation.
func (f *File) Read(p []byte) (int, error) {
	v := f.vol
	v.mu.Lock()
	defer v.mu.Unlock()

	in := f.in
	geo := v.geo

	remainingInFile := int64(in.Size) - f.ppos
	remainingInCluster := int64(geo.ClusterSize) - f.ppos

	want := int64(len(p))
	if remainingInFile < want {
		want = remainingInFile
	}
	if remainingInCluster < want {
		want = remainingInCluster
	}
	if want <= 0 {
		return 0, nil
	}

	n, err := readCluster(v.dev, geo.ClusterToBlock(in.Start), geo.BlkPerClus, uint(f.ppos), p[:want])
	f.ppos += int64(n)
	in.Touch(v.now(), false)
	if ferr := inode.Flush(v.dev, in, geo.BlockBits); ferr != nil && err == nil {
		err = ferr
	}
	if err == nil && n == 0 && want > 0 {
		err = io.EOF
	}
	return n, err
}

// Seek repositions the file's cursor. SeekStart is the only mode the core
// needs; whence follows io.Seeker's convention for completeness.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()

	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = f.ppos
	case io.SeekEnd:
		base = int64(f.in.Size)
	default:
		return f.ppos, errors.KindInvalid.WithMessage("unknown whence")
	}

	pos := base + offset
	if pos < 0 {
		return f.ppos, errors.KindInvalid.WithMessage("negative seek position")
	}
	f.ppos = pos
	return pos, nil
}
