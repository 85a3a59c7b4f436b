package main

import (
	"fmt"
	"os"

	"github.com/sfatfs/sfat/internal/blockio"
	"github.com/sfatfs/sfat/internal/format"
)

// Format writes a fresh SFAT image of totalBytes to the file at path,
// creating it if necessary.
func Format(path string, totalBytes int64) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if err := f.Truncate(totalBytes); err != nil {
		return fmt.Errorf("resize %s: %w", path, err)
	}

	totalSectors := uint32(totalBytes / format.SectorSize)
	dev := blockio.NewDevice(f, format.SectorSize, uint(totalSectors), 0)
	return format.WriteImage(dev, totalSectors)
}
