package onfat_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/sfatfs/sfat/internal/blockio"
	"github.com/sfatfs/sfat/internal/onfat"
)

const (
	testBlockSize = 512
	testClusters  = 16
)

func newTestAllocator(t *testing.T) *onfat.Allocator {
	t.Helper()
	image := make([]byte, testBlockSize*4)
	stream := bytesextra.NewReadWriteSeeker(image)
	dev := blockio.NewDevice(stream, testBlockSize, 4, 0)

	// Initialize every entry FREE except cluster 0, which is EOC (root).
	buf := dev.NewBuffer()
	data := buf.Bytes()
	for c := 0; c < testClusters; c++ {
		v := onfat.EntryFree
		if c == 0 {
			v = onfat.EntryEOC
		}
		off := c * 4
		data[off] = byte(v)
		data[off+1] = byte(v >> 8)
		data[off+2] = byte(v >> 16)
		data[off+3] = byte(v >> 24)
	}
	require.NoError(t, dev.WriteBlock(0, buf))
	buf.Release()

	return onfat.NewAllocator(dev, 0, testClusters)
}

func TestFollowEOC(t *testing.T) {
	alloc := newTestAllocator(t)
	next, err := alloc.Follow(0)
	require.NoError(t, err)
	require.Equal(t, onfat.EntryEOC, next)
}

func TestFollowFreeFails(t *testing.T) {
	alloc := newTestAllocator(t)
	_, err := alloc.Follow(1)
	require.Error(t, err)
}

func TestAcquireLowestIndex(t *testing.T) {
	alloc := newTestAllocator(t)
	c, err := alloc.Acquire()
	require.NoError(t, err)
	require.EqualValues(t, 1, c)

	next, err := alloc.Follow(c)
	require.NoError(t, err)
	require.Equal(t, onfat.EntryEOC, next)

	c2, err := alloc.Acquire()
	require.NoError(t, err)
	require.EqualValues(t, 2, c2)
}

func TestAcquireExhaustion(t *testing.T) {
	alloc := newTestAllocator(t)
	for i := 0; i < testClusters-1; i++ {
		_, err := alloc.Acquire()
		require.NoError(t, err)
	}
	_, err := alloc.Acquire()
	require.Error(t, err)
}

func TestAppendSplicesChain(t *testing.T) {
	alloc := newTestAllocator(t)
	tail, err := alloc.Acquire()
	require.NoError(t, err)

	require.NoError(t, alloc.Append(0, tail))

	next, err := alloc.Follow(0)
	require.NoError(t, err)
	require.Equal(t, tail, next)

	tailNext, err := alloc.Follow(tail)
	require.NoError(t, err)
	require.Equal(t, onfat.EntryEOC, tailNext)
}

func TestAcquireThenFreeIsBitIdentical(t *testing.T) {
	alloc := newTestAllocator(t)
	c, err := alloc.Acquire()
	require.NoError(t, err)
	require.NoError(t, alloc.Modify(c, onfat.EntryFree))

	c2, err := alloc.Acquire()
	require.NoError(t, err)
	require.Equal(t, c, c2)
}

func TestSeek(t *testing.T) {
	alloc := newTestAllocator(t)
	const clusterSize = 2048

	a, err := alloc.Acquire()
	require.NoError(t, err)
	require.NoError(t, alloc.Append(0, a))
	b, err := alloc.Acquire()
	require.NoError(t, err)
	require.NoError(t, alloc.Append(0, b))

	cluster, off, err := alloc.Seek(0, clusterSize+100, clusterSize)
	require.NoError(t, err)
	require.Equal(t, a, cluster)
	require.EqualValues(t, 100, off)

	cluster, off, err = alloc.Seek(0, 2*clusterSize+5, clusterSize)
	require.NoError(t, err)
	require.Equal(t, b, cluster)
	require.EqualValues(t, 5, off)
}

func TestIsReserved(t *testing.T) {
	require.True(t, onfat.IsReserved(0xFFFFFFF6))
	require.True(t, onfat.IsReserved(0xFFFFFFF7))
	require.False(t, onfat.IsReserved(onfat.EntryEOC))
	require.False(t, onfat.IsReserved(onfat.EntryFree))
	require.False(t, onfat.IsReserved(0))
}
