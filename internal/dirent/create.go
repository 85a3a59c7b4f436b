package dirent

import (
	"github.com/sfatfs/sfat/errors"
	"github.com/sfatfs/sfat/internal/onfat"
)

// NewFileResult is everything CreateFile learned about the slot it filled,
// for the caller (Volume.Create) to finish the job: computing i_pos and,
// if a cluster was grown, bumping the parent directory's size and block
// count.
type NewFileResult struct {
	Location Location
	// GrewParent is true when locate_free found no slot and CreateFile had
	// to acquire and append a whole new cluster to the parent chain.
	GrewParent bool
}

// CreateFile is create_file from spec.md §4.5: it rejects an existing
// name, then either fills a free slot (propagating EMPTY_END to the next
// slot or block as needed) or grows the parent chain by one cluster.
//
// now is a pre-computed epoch-seconds timestamp (the engine has no clock
// of its own).
func (e *Engine) CreateFile(parentStart uint32, name [nameLen]byte, attr uint8, now uint32) (NewFileResult, error) {
	if _, _, err := e.Locate(parentStart, name); err == nil {
		return NewFileResult{}, errors.KindExists.WithMessage("a file with that name already exists")
	} else if !errors.IsKind(err, errors.ErrNotFound) {
		return NewFileResult{}, err
	}

	loc, priorAttr, err := e.LocateFree(parentStart)
	if err != nil {
		if errors.IsKind(err, errors.ErrNotFound) {
			return e.createByGrowingChain(parentStart, name, attr, now)
		}
		return NewFileResult{}, err
	}
	return e.createInFreeSlot(loc, priorAttr, name, attr, now)
}

func (e *Engine) createInFreeSlot(loc Location, priorAttr uint8, name [nameLen]byte, attr uint8, now uint32) (NewFileResult, error) {
	blockNo := e.clusterToBlock(loc.Cluster) + loc.Block
	buf, err := e.dev.ReadBlock(blockNo)
	if err != nil {
		return NewFileResult{}, err
	}
	data := buf.Bytes()

	newEntry := Entry{
		Name:         name,
		Attr:         attr,
		CreatedAt:    now,
		AccessedAt:   now,
		ModifiedAt:   now,
		Size:         0,
		FirstCluster: 0,
	}
	WriteInto(data, loc.Offset, newEntry)

	if priorAttr&AttrEmptyEnd != 0 {
		successorOff := loc.Offset + uint(Size)
		if successorOff+uint(Size) <= uint(len(data)) {
			// A later slot exists in the same block: it inherits the terminator.
			successor, derr := Decode(data[successorOff : successorOff+uint(Size)])
			if derr != nil {
				buf.Release()
				return NewFileResult{}, derr
			}
			successor.Attr = AttrEmptyEnd
			WriteInto(data, successorOff, successor)
			if err := e.dev.WriteBlock(blockNo, buf); err != nil {
				buf.Release()
				return NewFileResult{}, err
			}
			buf.Release()
			return NewFileResult{Location: loc}, nil
		}

		// The slot was the last in its block: write the new entry first...
		if err := e.dev.WriteBlock(blockNo, buf); err != nil {
			buf.Release()
			return NewFileResult{}, err
		}
		buf.Release()

		// ...then propagate EMPTY_END into the first entry of the next block,
		// whether that's still within this cluster or the start of the next.
		if err := e.propagateTerminator(loc.Cluster, loc.Block); err != nil {
			return NewFileResult{}, err
		}
		return NewFileResult{Location: loc}, nil
	}

	if err := e.dev.WriteBlock(blockNo, buf); err != nil {
		buf.Release()
		return NewFileResult{}, err
	}
	buf.Release()
	return NewFileResult{Location: loc}, nil
}

// propagateTerminator marks the first entry of the block following
// (cluster, block) as EMPTY_END, crossing into the next cluster of the
// chain if block was the last one in cluster. If the chain ends (the next
// cluster lookup hits EOC), no terminator is written — spec.md §4.5 treats
// running off the end of the chain as an implicit terminator.
func (e *Engine) propagateTerminator(cluster uint32, block uint) error {
	var targetBlockNo uint
	if block+1 < e.blkPerClus {
		targetBlockNo = e.clusterToBlock(cluster) + block + 1
	} else {
		next, err := e.alloc.Follow(cluster)
		if err != nil {
			return err
		}
		if next == onfat.EntryEOC {
			return nil
		}
		targetBlockNo = e.clusterToBlock(next)
	}

	buf, err := e.dev.ReadBlock(targetBlockNo)
	if err != nil {
		return err
	}
	defer buf.Release()
	data := buf.Bytes()
	entry, err := Decode(data[0:Size])
	if err != nil {
		return err
	}
	entry.Attr = AttrEmptyEnd
	WriteInto(data, 0, entry)
	return e.dev.WriteBlock(targetBlockNo, buf)
}

func (e *Engine) createByGrowingChain(parentStart uint32, name [nameLen]byte, attr uint8, now uint32) (NewFileResult, error) {
	cluster, err := e.alloc.Acquire()
	if err != nil {
		return NewFileResult{}, err
	}
	if err := e.alloc.Append(parentStart, cluster); err != nil {
		return NewFileResult{}, err
	}

	blockNo := e.clusterToBlock(cluster)
	buf, err := e.dev.ReadBlock(blockNo)
	if err != nil {
		return NewFileResult{}, err
	}
	data := buf.Bytes()

	newEntry := Entry{
		Name:         name,
		Attr:         attr,
		CreatedAt:    now,
		AccessedAt:   now,
		ModifiedAt:   now,
		Size:         0,
		FirstCluster: 0,
	}
	WriteInto(data, 0, newEntry)

	if uint(Size)*2 <= uint(len(data)) {
		terminator := Entry{Attr: AttrEmptyEnd}
		WriteInto(data, uint(Size), terminator)
	}

	if err := e.dev.WriteBlock(blockNo, buf); err != nil {
		buf.Release()
		return NewFileResult{}, err
	}
	buf.Release()

	loc := Location{Cluster: cluster, Block: 0, Offset: 0}
	return NewFileResult{Location: loc, GrewParent: true}, nil
}
