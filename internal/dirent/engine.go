package dirent

import (
	"github.com/sfatfs/sfat/errors"
	"github.com/sfatfs/sfat/internal/onfat"
)

// forEachEntry walks dirStart's chain cluster-by-cluster, block-by-block,
// entry-by-entry, invoking visit for each 32-byte slot. visit receives the
// decoded entry and its Location, and returns (stop, err); stop halts the
// walk without error (used for EMPTY_END and successful locates).
//
// The walk never allocates: blocks are read one at a time straight out of
// the pool and released before moving to the next.
func (e *Engine) forEachEntry(dirStart uint32, visit func(Entry, Location) (bool, error)) error {
	cluster := dirStart
	for {
		blockOfCluster := e.clusterToBlock(cluster)
		for blk := uint(0); blk < e.blkPerClus; blk++ {
			buf, err := e.dev.ReadBlock(blockOfCluster + blk)
			if err != nil {
				return err
			}
			data := buf.Bytes()
			for off := uint(0); off < e.direntPerBlk; off++ {
				byteOff := off * uint(Size)
				entry, err := Decode(data[byteOff : byteOff+uint(Size)])
				if err != nil {
					buf.Release()
					return err
				}
				loc := Location{Cluster: cluster, Block: blk, Offset: byteOff}
				stop, err := visit(entry, loc)
				if err != nil {
					buf.Release()
					return err
				}
				if stop {
					buf.Release()
					return nil
				}
				if entry.Attr&AttrEmptyEnd != 0 {
					buf.Release()
					return errStopScan
				}
			}
			buf.Release()
		}

		next, err := e.alloc.Follow(cluster)
		if err != nil {
			return err
		}
		if next == onfat.EntryEOC { // chain ends, directory fully scanned
			return errStopScan
		}
		cluster = next
	}
}

// errStopScan is an internal sentinel meaning "the scan reached its natural
// end (EMPTY_END or end-of-chain) without visit asking to stop"; callers
// that need a definite answer (locate, locate_free) translate it to
// errors.KindNotFound.
var errStopScan error = errors.KindInvalid.WithMessage("internal: directory scan reached its end")

func isStopScan(err error) bool {
	return err == errStopScan
}

// Locate is locate(dir_start, name) from spec.md §4.5: the first live entry
// whose name matches byte-exactly.
func (e *Engine) Locate(dirStart uint32, name [nameLen]byte) (Entry, Location, error) {
	var found Entry
	var foundLoc Location
	err := e.forEachEntry(dirStart, func(entry Entry, loc Location) (bool, error) {
		if entry.Attr&AttrEmptyEnd != 0 {
			return false, nil // let forEachEntry's own EMPTY_END check end the scan
		}
		if entry.IsLive() && entry.Name == name {
			found = entry
			foundLoc = loc
			return true, nil
		}
		return false, nil
	})
	if isStopScan(err) {
		return Entry{}, Location{}, errors.KindNotFound.WithMessage("no entry with that name")
	}
	if err != nil {
		return Entry{}, Location{}, err
	}
	return found, foundLoc, nil
}

// LocateFree is locate_free(dir_start) from spec.md §4.5: the first entry
// whose attr has EMPTY or EMPTY_END set.
func (e *Engine) LocateFree(dirStart uint32) (Location, uint8, error) {
	var foundLoc Location
	var foundAttr uint8
	sawOne := false
	err := e.forEachEntry(dirStart, func(entry Entry, loc Location) (bool, error) {
		if entry.Attr&(AttrEmpty|AttrEmptyEnd) != 0 {
			foundLoc = loc
			foundAttr = entry.Attr
			sawOne = true
			return true, nil
		}
		return false, nil
	})
	if err != nil && !isStopScan(err) {
		return Location{}, 0, err
	}
	if !sawOne {
		return Location{}, 0, errors.KindNotFound.WithMessage("directory chain is full")
	}
	return foundLoc, foundAttr, nil
}

// VisitFunc is the host fill-callback used by Enumerate: it receives a
// live entry's decoded name, its byte cursor, and the entry itself, and
// returns false to request the scan stop (buffer full).
type VisitFunc func(name string, fPos int64, entry Entry) bool

// Enumerate is the read-directory scan from spec.md §4.5: it walks entries
// starting at byte cursor fPos (a multiple of Size), invoking visit on each
// live entry, advancing fPos by Size for both live and tombstoned entries,
// and halting at EMPTY_END or a false return from visit.
func (e *Engine) Enumerate(dirStart uint32, fPos int64, visit VisitFunc) error {
	cursor := int64(0)
	err := e.forEachEntry(dirStart, func(entry Entry, loc Location) (bool, error) {
		defer func() { cursor += int64(Size) }()
		if cursor < fPos {
			return false, nil
		}
		if entry.Attr&AttrEmptyEnd != 0 {
			return true, nil
		}
		if entry.IsLive() {
			if !visit(entry.NameString(), cursor, entry) {
				return true, nil
			}
		}
		return false, nil
	})
	if isStopScan(err) {
		return nil
	}
	return err
}
