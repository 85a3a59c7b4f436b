package sfat_test

import (
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sfatfs/sfat"
	"github.com/sfatfs/sfat/errors"
	"github.com/sfatfs/sfat/fsck"
	"github.com/sfatfs/sfat/sfattest"
)

func TestMountEmptyVolumeHasEmptyRoot(t *testing.T) {
	vol, _ := sfattest.NewVolume(t, 100*1024, sfattest.FixedClock(1000))
	root, err := vol.Open("/")
	require.NoError(t, err)

	entries, _, err := root.ReadDir(0, 0)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestCreateFileSurvivesRemount(t *testing.T) {
	now := sfattest.FixedClock(1000)
	vol, stream := sfattest.NewVolume(t, 100*1024, now)

	f, err := vol.Create("/hello.txt", false)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	vol2 := sfattest.Remount(t, stream, now)
	root, err := vol2.Open("/")
	require.NoError(t, err)
	entries, _, err := root.ReadDir(0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "hello.txt", entries[0].Name)
	require.False(t, entries[0].IsDir)
}

func TestWriteThenReadBackExactBytes(t *testing.T) {
	now := sfattest.FixedClock(1000)
	vol, stream := sfattest.NewVolume(t, 100*1024, now)

	f, err := vol.Create("/greeting", false)
	require.NoError(t, err)
	payload := []byte("hello world")
	n, err := f.Write(payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.NoError(t, f.Close())

	vol2 := sfattest.Remount(t, stream, now)
	f2, err := vol2.Open("/greeting")
	require.NoError(t, err)

	stat := f2.Stat()
	require.EqualValues(t, len(payload), stat.Size)
	require.False(t, stat.IsDir)

	buf := make([]byte, len(payload))
	n2, err := f2.Read(buf)
	require.NoError(t, err)
	require.Equal(t, len(payload), n2)
	require.Equal(t, payload, buf)
}

func TestWriteExactClusterBoundaryThenExtend(t *testing.T) {
	now := sfattest.FixedClock(1000)
	vol, _ := sfattest.NewVolume(t, 100*1024, now)

	f, err := vol.Create("/big.bin", false)
	require.NoError(t, err)

	clusterSize := int(vol.Geometry().ClusterSize)
	first := make([]byte, clusterSize)
	for i := range first {
		first[i] = byte(i)
	}
	n, err := f.Write(first)
	require.NoError(t, err)
	require.Equal(t, clusterSize, n)

	stat := f.Stat()
	require.EqualValues(t, clusterSize, stat.Size)
	require.EqualValues(t, vol.Geometry().BlkPerClus, stat.Blocks)

	second := []byte("0123456789")
	n2, err := f.Write(second)
	require.NoError(t, err)
	require.Equal(t, len(second), n2)

	stat2 := f.Stat()
	require.EqualValues(t, clusterSize+len(second), stat2.Size)
	require.EqualValues(t, 2*vol.Geometry().BlkPerClus, stat2.Blocks)

	require.NoError(t, f.Close())
	require.NoError(t, fsck.Check(vol))
}

func TestCreateDuplicateNameFails(t *testing.T) {
	now := sfattest.FixedClock(1000)
	vol, _ := sfattest.NewVolume(t, 100*1024, now)

	_, err := vol.Create("/dup", false)
	require.NoError(t, err)

	_, err = vol.Create("/dup", false)
	require.Error(t, err)
	require.True(t, errors.IsKind(err, errors.ErrExists))
}

func TestCreateUntilNoSpace(t *testing.T) {
	now := sfattest.FixedClock(1000)
	// 25 sectors of 512 bytes => 3 total clusters (root + 2 free), per
	// internal/format's layout math.
	vol, _ := sfattest.NewVolume(t, 25*512, now)

	// Drain every cluster but root directly, so the root directory's own
	// 64 slots are the only room left for new files.
	_, err := vol.Allocator().Acquire()
	require.NoError(t, err)
	_, err = vol.Allocator().Acquire()
	require.NoError(t, err)

	const slotsInRootCluster = 2048 / 32 // cluster_size / dirent size
	for i := 0; i < slotsInRootCluster; i++ {
		_, err := vol.Create(fmt.Sprintf("/f%02d", i), false)
		require.NoErrorf(t, err, "create %d", i)
	}

	_, err = vol.Create("/overflow", false)
	require.Error(t, err)
	require.True(t, errors.IsKind(err, errors.ErrNoSpaceOnDevice))
}

func TestWritePastGapIsRejected(t *testing.T) {
	now := sfattest.FixedClock(1000)
	vol, _ := sfattest.NewVolume(t, 100*1024, now)

	f, err := vol.Create("/gap", false)
	require.NoError(t, err)
	_, err = f.Seek(100, io.SeekStart)
	require.NoError(t, err)

	_, err = f.Write([]byte("x"))
	require.Error(t, err)
	require.True(t, errors.IsKind(err, errors.ErrInvalidArgument))
}

func TestReadOnEmptyFileReturnsNothing(t *testing.T) {
	now := sfattest.FixedClock(1000)
	vol, _ := sfattest.NewVolume(t, 100*1024, now)

	f, err := vol.Create("/empty", false)
	require.NoError(t, err)

	// An empty file has nothing to read: the clamp formula's first term
	// (size - ppos) is already zero, so Read reports it done without
	// touching the device at all rather than synthesizing an io.EOF.
	buf := make([]byte, 16)
	n, err := f.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestReadDirPagination(t *testing.T) {
	now := sfattest.FixedClock(1000)
	vol, _ := sfattest.NewVolume(t, 100*1024, now)

	for i := 0; i < 5; i++ {
		_, err := vol.Create(fmt.Sprintf("/n%d", i), false)
		require.NoError(t, err)
	}

	root, err := vol.Open("/")
	require.NoError(t, err)

	page1, cursor, err := root.ReadDir(0, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)

	page2, cursor2, err := root.ReadDir(cursor, 2)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	require.NotEqual(t, cursor, cursor2)

	page3, _, err := root.ReadDir(cursor2, 0)
	require.NoError(t, err)
	require.Len(t, page3, 1)
}

func TestFsckPassesOnFreshVolume(t *testing.T) {
	now := sfattest.FixedClock(1000)
	vol, _ := sfattest.NewVolume(t, 100*1024, now)
	require.NoError(t, fsck.Check(vol))
}

func TestMountOptionsShapeReportedMode(t *testing.T) {
	now := sfattest.FixedClock(1000)
	_, stream := sfattest.NewVolume(t, 100*1024, now)

	vol, err := sfat.MountWithOptions(stream, 512, now, sfat.MountOptions{
		UID:      42,
		GID:      7,
		FileMask: 0022,
		DirMask:  0002,
	})
	require.NoError(t, err)

	_, err = vol.Create("/f", false)
	require.NoError(t, err)
	d, err := vol.Create("/d", true)
	require.NoError(t, err)

	fileStat, err := vol.Open("/f")
	require.NoError(t, err)
	fi := fileStat.Stat()
	require.EqualValues(t, 42, fi.UID)
	require.EqualValues(t, 7, fi.GID)
	require.Equal(t, os.FileMode(0644), fi.Mode)

	di := d.Stat()
	require.True(t, di.IsDir)
	require.Equal(t, os.ModeDir|os.FileMode(0775), di.Mode)
}
