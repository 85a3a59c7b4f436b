package inode_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/sfatfs/sfat/internal/blockio"
	"github.com/sfatfs/sfat/internal/dirent"
	"github.com/sfatfs/sfat/internal/inode"
)

const testBlockSize = 512
const testBlockBits = 9

type fakeCounter struct {
	n   uint32
	err error
}

func (f fakeCounter) CountSubdirectories(uint32) (uint32, error) { return f.n, f.err }

func TestReadRootLinkCount(t *testing.T) {
	root, err := inode.ReadRoot(0, fakeCounter{n: 2})
	require.NoError(t, err)
	require.True(t, root.IsRoot)
	require.True(t, root.IsDir())
	require.EqualValues(t, 5, root.LinkCount) // subdirs(2) + 3
	require.Equal(t, inode.RootDirentPos, root.Pos)
}

func TestReadRootPropagatesCounterError(t *testing.T) {
	_, err := inode.ReadRoot(0, fakeCounter{err: errors.New("boom")})
	require.Error(t, err)
}

func TestFillFromEntry(t *testing.T) {
	e := dirent.Entry{
		Attr:         dirent.AttrDir,
		Size:         1234,
		FirstCluster: 7,
		CreatedAt:    10,
		AccessedAt:   20,
		ModifiedAt:   30,
	}
	in := inode.FillFromEntry(e, 4096)
	require.True(t, in.IsDir())
	require.False(t, in.IsRoot)
	require.EqualValues(t, 7, in.Start)
	require.EqualValues(t, 1234, in.Size)
	require.EqualValues(t, 4096, in.Pos)
	require.EqualValues(t, 1, in.LinkCount)
}

func newTestDevice(t *testing.T) *blockio.Device {
	t.Helper()
	image := make([]byte, testBlockSize*4)
	stream := bytesextra.NewReadWriteSeeker(image)
	return blockio.NewDevice(stream, testBlockSize, 4, 0)
}

func TestFlushWritesBackMutatedEntry(t *testing.T) {
	dev := newTestDevice(t)

	original := dirent.Entry{
		Attr:         0,
		Size:         0,
		FirstCluster: 0,
		CreatedAt:    100,
		AccessedAt:   100,
		ModifiedAt:   100,
	}
	const pos = int64(64) // third entry of block 0

	buf, err := dev.ReadBlock(0)
	require.NoError(t, err)
	dirent.WriteInto(buf.Bytes(), uint(pos), original)
	require.NoError(t, dev.WriteBlock(0, buf))
	buf.Release()

	in := inode.FillFromEntry(original, pos)
	in.SetSize(999)
	in.SpliceStart(3)
	in.Touch(500, true)
	require.Equal(t, inode.StateDirty, in.State)

	require.NoError(t, inode.Flush(dev, in, testBlockBits))
	require.Equal(t, inode.StateClean, in.State)

	buf2, err := dev.ReadBlock(0)
	require.NoError(t, err)
	defer buf2.Release()
	data := buf2.Bytes()
	got, err := dirent.Decode(data[pos : pos+int64(dirent.Size)])
	require.NoError(t, err)

	require.EqualValues(t, 999, got.Size)
	require.EqualValues(t, 3, got.FirstCluster)
	require.EqualValues(t, 500, got.AccessedAt)
	require.EqualValues(t, 500, got.ModifiedAt)
	require.EqualValues(t, 100, got.CreatedAt)
}

func TestFlushIsNoopForRoot(t *testing.T) {
	dev := newTestDevice(t)
	root, err := inode.ReadRoot(0, fakeCounter{n: 0})
	require.NoError(t, err)
	require.NoError(t, inode.Flush(dev, root, testBlockBits))
}

func TestFlushIsNoopWhenClean(t *testing.T) {
	dev := newTestDevice(t)
	e := dirent.Entry{Size: 5}
	in := inode.FillFromEntry(e, 0)
	require.Equal(t, inode.StateClean, in.State)
	require.NoError(t, inode.Flush(dev, in, testBlockBits))
	// Nothing should have changed size-wise; state stays Clean (no-op path).
	require.Equal(t, inode.StateClean, in.State)
}
