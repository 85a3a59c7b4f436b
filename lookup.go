package sfat

import (
	"strings"

	"github.com/sfatfs/sfat/errors"
	"github.com/sfatfs/sfat/internal/dirent"
	"github.com/sfatfs/sfat/internal/inode"
)

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// lookup resolves a slash-separated path to an inode, starting from the
// root. An empty or "/" path returns the root itself. Every intermediate
// component must be a directory; the core has no symlinks to chase.
//
// Caller must hold v.mu.
func (v *Volume) lookup(path string) (*inode.Inode, error) {
	components := splitPath(path)
	if len(components) == 0 {
		return v.root, nil
	}

	current := v.root
	for i, name := range components {
		if !current.IsDir() {
			return nil, errors.KindInvalid.WithMessage("not a directory: " + name)
		}
		encoded, err := dirent.EncodeName(name)
		if err != nil {
			return nil, err
		}
		entry, loc, err := v.dirs.Locate(current.Start, encoded)
		if err != nil {
			return nil, err
		}
		pos := v.geo.EntryPos(loc.Cluster, loc.Block, loc.Offset)
		child := inode.FillFromEntry(entry, pos)
		if i == len(components)-1 {
			return child, nil
		}
		current = child
	}
	return current, nil
}

// splitParentAndName divides a path into its parent directory path and
// final component, for operations (Create) that need to resolve the
// parent separately from the name being created.
func splitParentAndName(path string) (string, string, error) {
	components := splitPath(path)
	if len(components) == 0 {
		return "", "", errors.KindInvalid.WithMessage("empty path")
	}
	name := components[len(components)-1]
	parent := "/" + strings.Join(components[:len(components)-1], "/")
	return parent, name, nil
}
