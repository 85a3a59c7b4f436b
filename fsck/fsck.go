// Package fsck validates a mounted volume against the invariants spec.md
// §3 lists that can be checked from the disk alone (I1, I2, I4, I5):
// FAT/geometry agreement, chain termination, chain exclusivity, and
// size-vs-chain-length consistency. It aggregates every
// violation it finds into one error via hashicorp/go-multierror instead
// of stopping at the first one, so a single run reports everything wrong
// with a volume.
package fsck

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/sfatfs/sfat"
	"github.com/sfatfs/sfat/internal/dirent"
	"github.com/sfatfs/sfat/internal/onfat"
)

// Check runs every invariant check against v and returns an aggregated
// error, or nil if the volume is consistent. A *multierror.Error is
// always the concrete type returned when non-nil; callers that want the
// individual violations can type-assert and range over its Errors field.
func Check(v *sfat.Volume) error {
	var result *multierror.Error

	geo := v.Geometry()

	// I1: data_start = boot_sector + reserved + fats * fat_length (sectors).
	if geo.DataStartBlk != geo.FATStartBlk+geo.Fats*geo.FATLengthBlk {
		result = multierror.Append(result, fmt.Errorf(
			"I1 violated: data_start_blk=%d != fat_start_blk(%d) + fats(%d)*fat_length_blk(%d)",
			geo.DataStartBlk, geo.FATStartBlk, geo.Fats, geo.FATLengthBlk))
	}

	visited := make(map[uint32]string) // cluster -> path of the chain that first claimed it

	var walk func(dirStart uint32, path string) error
	walk = func(dirStart uint32, path string) error {
		if err := checkChainTermination(v, dirStart, path, result, visited); err != nil {
			result = multierror.Append(result, err)
		}

		var children []dirent.Entry
		err := v.Dirs().Enumerate(dirStart, 0, func(name string, fPos int64, e dirent.Entry) bool {
			children = append(children, e)
			return true
		})
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: readdir failed: %w", path, err))
			return nil
		}

		for _, e := range children {
			childPath := path + "/" + e.NameString()
			if e.Size == 0 {
				continue
			}

			chainLen, cerr := chainLength(v, e.FirstCluster)
			if cerr != nil {
				result = multierror.Append(result, fmt.Errorf("%s: %w", childPath, cerr))
				continue
			}

			// I4: size <= chain_length*cluster_size; size > (chain_length-1)*cluster_size when size>0.
			clusterSize := uint32(geo.ClusterSize)
			if e.Size > chainLen*clusterSize {
				result = multierror.Append(result, fmt.Errorf(
					"I4 violated at %s: size=%d exceeds chain_length(%d)*cluster_size(%d)",
					childPath, e.Size, chainLen, clusterSize))
			}
			if chainLen > 0 && e.Size <= (chainLen-1)*clusterSize {
				result = multierror.Append(result, fmt.Errorf(
					"I4 violated at %s: size=%d too small for chain_length %d",
					childPath, e.Size, chainLen))
			}

			if e.IsDir() {
				walk(e.FirstCluster, childPath)
			} else if err := checkChainTermination(v, e.FirstCluster, childPath, result, visited); err != nil {
				result = multierror.Append(result, err)
			}
		}
		return nil
	}

	walk(v.RootStart(), "")

	return result.ErrorOrNil()
}

// checkChainTermination is I2 and I5: the chain starting at start must
// reach EOC within at most clusters steps, and it must not touch any
// cluster already claimed by a different chain.
func checkChainTermination(v *sfat.Volume, start uint32, path string, result *multierror.Error, visited map[uint32]string) error {
	geo := v.Geometry()
	alloc := v.Allocator()

	cur := start
	steps := uint(0)
	for {
		if owner, ok := visited[cur]; ok && owner != path {
			return fmt.Errorf("I5 violated: cluster %d is shared between %q and %q", cur, owner, path)
		}
		visited[cur] = path

		steps++
		if steps > geo.Clusters {
			return fmt.Errorf("I2 violated: chain at %q did not reach EOC within %d steps", path, geo.Clusters)
		}

		next, err := alloc.Follow(cur)
		if err != nil {
			return fmt.Errorf("I2 violated: chain at %q broke following cluster %d: %w", path, cur, err)
		}
		if next == onfat.EntryEOC {
			return nil
		}
		cur = next
	}
}

// chainLength counts the clusters in the chain starting at start.
func chainLength(v *sfat.Volume, start uint32) (uint32, error) {
	alloc := v.Allocator()
	var n uint32
	cur := start
	for {
		n++
		next, err := alloc.Follow(cur)
		if err != nil {
			return n, err
		}
		if next == onfat.EntryEOC {
			return n, nil
		}
		cur = next
		if n > uint32(v.Geometry().Clusters) {
			return n, fmt.Errorf("chain from %d exceeds volume cluster count", start)
		}
	}
}
