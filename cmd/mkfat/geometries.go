package main

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/gocarina/gocsv"
)

// namedGeometry is one entry of the embedded preset table: a human name
// for a total device size. Every preset shares the same on-disk SFAT
// parameters the formatter CLI is specified to use (sector size 512, 4
// sectors/cluster, 10 reserved sectors, 2 FATs) — only the overall device
// size differs between media, exactly as the teacher's disk geometry
// table varies only the numbers that differ between physical drives.
type namedGeometry struct {
	Name       string `csv:"name"`
	TotalBytes int64  `csv:"total_bytes"`
}

//go:embed geometries.csv
var geometriesCSV string

// presets is the set of named device sizes --geometry accepts, loaded once
// from the embedded CSV the way disks.go loads its floppy/HDD table.
var presets map[string]namedGeometry

func init() {
	var rows []*namedGeometry
	if err := gocsv.UnmarshalString(geometriesCSV, &rows); err != nil {
		panic(fmt.Sprintf("mkfat: embedded geometries.csv is malformed: %v", err))
	}
	presets = make(map[string]namedGeometry, len(rows))
	for _, r := range rows {
		presets[r.Name] = *r
	}
}

func lookupPreset(name string) (namedGeometry, bool) {
	g, ok := presets[name]
	return g, ok
}

func presetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
