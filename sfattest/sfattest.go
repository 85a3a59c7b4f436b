// Package sfattest builds freshly-formatted, in-memory SimpleFAT volumes
// for tests: no temp files, no real block device, just a fixed-size byte
// slice wrapped as an io.ReadWriteSeeker via bytesextra, the same
// technique the teacher's testing package uses to hand tests a disk image
// without touching the filesystem.
package sfattest

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/sfatfs/sfat"
	"github.com/sfatfs/sfat/internal/blockio"
	"github.com/sfatfs/sfat/internal/format"
)

// FixedClock returns a sfat.Mount-compatible timestamp function that
// always reports t, for tests that want deterministic timestamps.
func FixedClock(t uint32) func() uint32 {
	return func() uint32 { return t }
}

// NewVolume formats a fresh in-memory volume of totalBytes and mounts it,
// failing the test immediately on any error. totalBytes is rounded down
// to a whole number of 512-byte sectors.
func NewVolume(t *testing.T, totalBytes int, now func() uint32) (*sfat.Volume, io.ReadWriteSeeker) {
	t.Helper()

	totalSectors := uint32(totalBytes / format.SectorSize)
	image := make([]byte, totalSectors*format.SectorSize)
	stream := bytesextra.NewReadWriteSeeker(image)

	dev := blockio.NewDevice(stream, format.SectorSize, uint(totalSectors), 0)
	require.NoError(t, format.WriteImage(dev, totalSectors))

	vol, err := sfat.Mount(stream, format.SectorSize, now)
	require.NoError(t, err)
	return vol, stream
}

// Remount re-mounts an already-formatted stream, for tests that check
// state survives a mount/unmount cycle (S2, S3, S7 in spec.md §8).
func Remount(t *testing.T, stream io.ReadWriteSeeker, now func() uint32) *sfat.Volume {
	t.Helper()
	vol, err := sfat.Mount(stream, format.SectorSize, now)
	require.NoError(t, err)
	return vol
}
