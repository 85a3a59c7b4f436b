// Package format builds a fresh SimpleFAT image on an already-constructed
// block device: the boot sector, the initial FAT (cluster 0 marked EOC,
// everything else FREE), and a single-cluster, empty root directory.
//
// It's the shared core behind cmd/mkfat (which formats a real file or
// block device) and sfattest (which formats an in-memory volume for
// tests); spec.md §6 specifies the formatter only as an external
// collaborator the core assumes the output of.
package format

import (
	"fmt"

	"github.com/sfatfs/sfat/internal/blockio"
	"github.com/sfatfs/sfat/internal/dirent"
	"github.com/sfatfs/sfat/internal/onfat"
)

// Fixed formatter parameters per spec.md §6: sector size 512, 4 sectors
// per cluster, 10 reserved sectors, 2 FAT copies.
const (
	SectorSize      = 512
	SecPerClus      = 4
	ReservedSectors = 10
	Fats            = 2
	systemID        = "SFAT1.0 "
)

// ComputeLayout derives fat_length_sec and clusters for a volume of
// totalSectors sectors. The FAT's own size depends on how many clusters it
// must describe, and that depends on how much room is left after the FAT,
// so the two are solved by fixed-point iteration until they agree.
func ComputeLayout(totalSectors uint32) (fatLengthSec uint32, clusters uint32, err error) {
	dataStartSec := uint32(ReservedSectors + 1)
	fatLengthSec = 1
	for i := 0; i < 32; i++ {
		fatRegionSec := Fats * fatLengthSec
		if dataStartSec+fatRegionSec >= totalSectors {
			return 0, 0, fmt.Errorf("volume too small to hold any data clusters")
		}
		dataSectors := totalSectors - dataStartSec - fatRegionSec
		newClusters := dataSectors / SecPerClus
		entriesPerSector := uint32(SectorSize / 4)
		newFatLengthSec := (newClusters + entriesPerSector - 1) / entriesPerSector
		if newFatLengthSec < 1 {
			newFatLengthSec = 1
		}
		if newFatLengthSec == fatLengthSec {
			clusters = newClusters
			return fatLengthSec, clusters, nil
		}
		fatLengthSec = newFatLengthSec
	}
	return 0, 0, fmt.Errorf("layout did not converge")
}

// WriteImage formats dev, a block device of sector-sized blocks spanning
// totalSectors sectors, as a fresh SFAT volume.
func WriteImage(dev *blockio.Device, totalSectors uint32) error {
	fatLengthSec, clusters, err := ComputeLayout(totalSectors)
	if err != nil {
		return err
	}
	if clusters < 2 {
		return fmt.Errorf("volume holds only %d clusters, need at least 2 (root + 1 free)", clusters)
	}

	var sysID [8]byte
	copy(sysID[:], systemID)

	bs := &onfat.RawBootSector{
		SystemID:   sysID,
		Media:      onfat.MediaID,
		SectorSize: SectorSize,
		SecPerClus: SecPerClus,
		Reserved:   ReservedSectors,
		FATLength:  fatLengthSec,
		Fats:       Fats,
		Sectors:    totalSectors,
		Clusters:   clusters,
		RootStart:  0,
		RootSize:   1,
		Freelist:   0,
	}

	encoded, err := bs.Encode()
	if err != nil {
		return fmt.Errorf("encode boot sector: %w", err)
	}

	bootBuf := dev.NewBuffer()
	copy(bootBuf.Bytes(), encoded)
	if err := dev.WriteBlock(0, bootBuf); err != nil {
		bootBuf.Release()
		return fmt.Errorf("write boot sector: %w", err)
	}
	bootBuf.Release()

	if err := writeInitialFAT(dev, fatLengthSec, clusters); err != nil {
		return err
	}

	dataStartSec := uint32(ReservedSectors+1) + Fats*fatLengthSec
	return writeRootDirectory(dev, dataStartSec)
}

func writeInitialFAT(dev *blockio.Device, fatLengthSec uint32, clusters uint32) error {
	entriesPerSector := SectorSize / 4

	for copyIdx := uint32(0); copyIdx < Fats; copyIdx++ {
		fatStartSec := uint32(ReservedSectors+1) + copyIdx*fatLengthSec
		for sec := uint32(0); sec < fatLengthSec; sec++ {
			buf := dev.NewBuffer()
			data := buf.Bytes()
			for i := 0; i < entriesPerSector; i++ {
				cluster := sec*uint32(entriesPerSector) + uint32(i)
				var value uint32
				switch {
				case cluster >= clusters:
					value = 0 // past the end of the table; left zeroed
				case cluster == 0:
					value = onfat.EntryEOC
				default:
					value = onfat.EntryFree
				}
				off := i * 4
				data[off] = byte(value)
				data[off+1] = byte(value >> 8)
				data[off+2] = byte(value >> 16)
				data[off+3] = byte(value >> 24)
			}
			if err := dev.WriteBlock(uint(fatStartSec+sec), buf); err != nil {
				buf.Release()
				return fmt.Errorf("write FAT copy %d sector %d: %w", copyIdx, sec, err)
			}
			buf.Release()
		}
	}
	return nil
}

func writeRootDirectory(dev *blockio.Device, dataStartSec uint32) error {
	buf := dev.NewBuffer()
	data := buf.Bytes()
	data[11] = dirent.AttrEmptyEnd
	if err := dev.WriteBlock(uint(dataStartSec), buf); err != nil {
		buf.Release()
		return fmt.Errorf("write root directory: %w", err)
	}
	buf.Release()

	for s := uint32(1); s < SecPerClus; s++ {
		buf := dev.NewBuffer()
		if err := dev.WriteBlock(uint(dataStartSec+s), buf); err != nil {
			buf.Release()
			return fmt.Errorf("write root directory: %w", err)
		}
		buf.Release()
	}
	return nil
}
