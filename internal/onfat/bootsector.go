// Package onfat implements the on-disk format described in spec.md §2 and
// §6: the boot sector, the FAT itself, and the chain allocator that walks
// and mutates it. Encoding is little-endian and packed, matching the
// teacher's drivers/fat/common.go approach of decoding a fixed-layout header
// with encoding/binary.
package onfat

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/noxer/bytewriter"

	"github.com/sfatfs/sfat/errors"
)

// MediaID is the only valid value of the boot sector's media byte; it
// identifies an SFAT volume.
const MediaID = 0x25

// BootSectorSize is the on-disk size of the packed boot sector record.
const BootSectorSize = 42

// validSectorSizes enumerates the only legal values for RawBootSector.SectorSize.
var validSectorSizes = [...]uint16{512, 1024, 2048, 4096}

// RawBootSector is the bit-exact on-disk layout of sector 0, per spec.md §6.
// Field order matches byte offsets exactly: encoding/binary serializes fixed-
// size fields back to back with no implicit padding.
type RawBootSector struct {
	Ignored    [3]byte
	SystemID   [8]byte
	Media      uint8
	SectorSize uint16
	SecPerClus uint8
	Reserved   uint16
	FATLength  uint32
	Fats       uint8
	Sectors    uint32
	Clusters   uint32
	RootStart  uint32
	RootSize   uint32
	Freelist   uint32
}

// Encode serializes the boot sector into a new BootSectorSize-byte buffer.
func (bs *RawBootSector) Encode() ([]byte, error) {
	buf := make([]byte, BootSectorSize)
	w := bytewriter.New(buf)
	if err := binary.Write(w, binary.LittleEndian, bs); err != nil {
		return nil, errors.KindIO.WrapError(err)
	}
	return buf, nil
}

// DecodeBootSector parses the first BootSectorSize bytes of data as a boot
// sector and validates the fields the decoder is responsible for: media ID
// and sector size. It does not validate sec_per_clus or the geometry that
// depends on it; see internal/geometry for that.
func DecodeBootSector(data []byte) (*RawBootSector, error) {
	if len(data) < BootSectorSize {
		return nil, errors.KindInvalid.WithMessage(
			fmt.Sprintf("boot sector needs %d bytes, got %d", BootSectorSize, len(data)))
	}

	var bs RawBootSector
	r := bytes.NewReader(data[:BootSectorSize])
	if err := binary.Read(r, binary.LittleEndian, &bs); err != nil {
		return nil, errors.KindIO.WrapError(err)
	}

	if bs.Media != MediaID {
		return nil, errors.KindInvalid.WithMessage(
			fmt.Sprintf("bad media byte: want 0x%02x, got 0x%02x", MediaID, bs.Media))
	}

	validSize := false
	for _, s := range validSectorSizes {
		if bs.SectorSize == s {
			validSize = true
			break
		}
	}
	if !validSize {
		return nil, errors.KindInvalid.WithMessage(
			fmt.Sprintf("sector_size must be one of %v, got %d", validSectorSizes, bs.SectorSize))
	}

	return &bs, nil
}
