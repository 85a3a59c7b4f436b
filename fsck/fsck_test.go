package fsck_test

import (
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"

	"github.com/sfatfs/sfat/fsck"
	"github.com/sfatfs/sfat/internal/dirent"
	"github.com/sfatfs/sfat/sfattest"
)

func TestCheckPassesOnVolumeWithLiveFile(t *testing.T) {
	now := sfattest.FixedClock(1000)
	vol, _ := sfattest.NewVolume(t, 100*1024, now)

	f, err := vol.Create("/a", false)
	require.NoError(t, err)
	_, err = f.Write([]byte("some bytes"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, fsck.Check(vol))
}

func TestCheckCatchesSizeChainLengthMismatch(t *testing.T) {
	now := sfattest.FixedClock(1000)
	vol, _ := sfattest.NewVolume(t, 100*1024, now)

	f, err := vol.Create("/a", false)
	require.NoError(t, err)
	_, err = f.Write([]byte{1})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// "/a" is the first entry in the root directory: cluster 0, block 0,
	// offset 0. Forge its size so it claims far more data than its
	// single-cluster chain can back.
	geo := vol.Geometry()
	blockNo := geo.ClusterToBlock(0)
	buf, err := vol.Device().ReadBlock(blockNo)
	require.NoError(t, err)
	entry, err := dirent.Decode(buf.Bytes()[0:dirent.Size])
	require.NoError(t, err)
	entry.Size = uint32(geo.ClusterSize) * 5
	dirent.WriteInto(buf.Bytes(), 0, entry)
	require.NoError(t, vol.Device().WriteBlock(blockNo, buf))
	buf.Release()

	err = fsck.Check(vol)
	require.Error(t, err)

	merr, ok := err.(*multierror.Error)
	require.True(t, ok)
	require.NotEmpty(t, merr.Errors)
}

func TestCheckCatchesBrokenChain(t *testing.T) {
	now := sfattest.FixedClock(1000)
	vol, _ := sfattest.NewVolume(t, 100*1024, now)

	f, err := vol.Create("/a", false)
	require.NoError(t, err)
	_, err = f.Write([]byte{1})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	geo := vol.Geometry()
	blockNo := geo.ClusterToBlock(0)
	buf, err := vol.Device().ReadBlock(blockNo)
	require.NoError(t, err)
	entry, err := dirent.Decode(buf.Bytes()[0:dirent.Size])
	require.NoError(t, err)

	// Point the file at a cluster well past the volume's cluster count,
	// which Allocator.Follow will refuse to read.
	entry.FirstCluster = uint32(geo.Clusters) + 10
	entry.Size = uint32(geo.ClusterSize)
	dirent.WriteInto(buf.Bytes(), 0, entry)
	require.NoError(t, vol.Device().WriteBlock(blockNo, buf))
	buf.Release()

	err = fsck.Check(vol)
	require.Error(t, err)
}
