package blockio

import (
	"fmt"
	"io"

	"github.com/sfatfs/sfat/errors"
)

// Device is a block-addressable view over a stream: reads and writes always
// move exactly one logical block's worth of bytes, synchronously.
//
// Device never caches anything across calls; callers that need a block twice
// must call ReadBlock twice. That caching concern belongs to the caller
// (the FAT allocator and directory engine each read a block, mutate a small
// part of it, and write it straight back).
type Device struct {
	stream      io.ReadWriteSeeker
	blockSize   uint
	totalBlocks uint
	startOffset int64
	pool        *Pool
}

// NewDevice wraps stream as a block device of the given geometry. startOffset
// is a byte offset from the beginning of stream that block 0 is anchored to,
// letting a volume live alongside other data on the same backing stream.
func NewDevice(stream io.ReadWriteSeeker, blockSize uint, totalBlocks uint, startOffset int64) *Device {
	return &Device{
		stream:      stream,
		blockSize:   blockSize,
		totalBlocks: totalBlocks,
		startOffset: startOffset,
		pool:        NewPool(blockSize, 8),
	}
}

// BlockSize returns the size, in bytes, of a single block.
func (d *Device) BlockSize() uint { return d.blockSize }

// TotalBlocks returns the number of addressable blocks on the device.
func (d *Device) TotalBlocks() uint { return d.totalBlocks }

func (d *Device) byteOffset(blockNo uint) (int64, error) {
	if blockNo >= d.totalBlocks {
		return 0, errors.KindInvalid.WithMessage(
			fmt.Sprintf("block %d not in [0, %d)", blockNo, d.totalBlocks))
	}
	return d.startOffset + int64(blockNo)*int64(d.blockSize), nil
}

// ReadBlock reads exactly one block into a freshly acquired buffer. The
// caller owns the returned Buffer and must Release it.
//
// A short read is reported as errors.KindIO ("IO" in the spec's error
// kinds); it never returns a partially-filled buffer without an error.
func (d *Device) ReadBlock(blockNo uint) (*Buffer, error) {
	offset, err := d.byteOffset(blockNo)
	if err != nil {
		return nil, err
	}

	buf := d.pool.Acquire()
	if _, err := d.stream.Seek(offset, io.SeekStart); err != nil {
		buf.Release()
		return nil, errors.KindIO.WrapError(err)
	}

	n, err := io.ReadFull(d.stream, buf.Bytes())
	if err != nil || n != int(d.blockSize) {
		buf.Release()
		if err != nil {
			return nil, errors.KindIO.WrapError(err)
		}
		return nil, errors.KindIO.WithMessage(
			fmt.Sprintf("short read: wanted %d bytes, got %d", d.blockSize, n))
	}
	return buf, nil
}

// WriteBlock writes exactly one block's worth of data from buf to blockNo.
// The caller retains ownership of buf and must still Release it.
func (d *Device) WriteBlock(blockNo uint, buf *Buffer) error {
	if uint(len(buf.Bytes())) != d.blockSize {
		return errors.KindInvalid.WithMessage(
			fmt.Sprintf("buffer is %d bytes, block size is %d", len(buf.Bytes()), d.blockSize))
	}

	offset, err := d.byteOffset(blockNo)
	if err != nil {
		return err
	}

	if _, err := d.stream.Seek(offset, io.SeekStart); err != nil {
		return errors.KindIO.WrapError(err)
	}

	n, err := d.stream.Write(buf.Bytes())
	if err != nil {
		return errors.KindIO.WrapError(err)
	}
	if n != int(d.blockSize) {
		return errors.KindIO.WithMessage(
			fmt.Sprintf("short write: wanted %d bytes, wrote %d", d.blockSize, n))
	}
	return nil
}

// NewBuffer acquires a scratch buffer of the device's block size without
// performing any I/O, for callers that need to stage data before a write.
func (d *Device) NewBuffer() *Buffer {
	return d.pool.Acquire()
}
