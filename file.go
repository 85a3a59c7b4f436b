package sfat

import (
	"os"

	"github.com/sfatfs/sfat/errors"
	"github.com/sfatfs/sfat/internal/dirent"
	"github.com/sfatfs/sfat/internal/inode"
)

// File is a handle to an open file or directory. It is not safe for
// concurrent use by multiple goroutines; the Volume it belongs to
// serializes all operations across every open File on that volume anyway,
// per spec.md §5.
type File struct {
	vol  *Volume
	in   *inode.Inode
	ppos int64
}

// FileInfo is the metadata Stat reports about a file or directory.
type FileInfo struct {
	Name       string
	Size       uint32
	Blocks     uint32
	IsDir      bool
	CreatedAt  uint32
	AccessedAt uint32
	ModifiedAt uint32

	// Mode, UID and GID are synthesized, never stored on disk: SFAT
	// directory entries carry no permission or ownership bits. Mode comes
	// from attrsToFileMode; UID/GID are copied straight from the volume's
	// MountOptions, the way sfat_make_mode/parse_options attach a single
	// uid/gid/umask to every inode at mount time.
	Mode os.FileMode
	UID  uint32
	GID  uint32
}

// attrsToFileMode is sfat_make_mode from the original source: it combines
// SFAT_ATTR_DIR with the mount's umask fields into an os.FileMode. There's
// no execute bit in a directory entry's attrs, so every file gets the same
// base permissions modulo the relevant mask.
func attrsToFileMode(isDir bool, opts MountOptions) os.FileMode {
	if isDir {
		return os.ModeDir | (os.FileMode(0777) &^ opts.DirMask)
	}
	return os.FileMode(0666) &^ opts.FileMask
}

// Open resolves path to an existing file or directory. It performs a
// lookup only; it never creates anything.
func (v *Volume) Open(path string) (*File, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	in, err := v.lookup(path)
	if err != nil {
		return nil, err
	}
	return &File{vol: v, in: in}, nil
}

// Create implements create_file from spec.md §4.5: it rejects an existing
// name, fills a free directory slot or extends the parent's chain, and
// returns a handle to the new, empty file or directory.
func (v *Volume) Create(path string, isDir bool) (*File, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	parentPath, name, err := splitParentAndName(path)
	if err != nil {
		return nil, err
	}
	parent, err := v.lookup(parentPath)
	if err != nil {
		return nil, err
	}
	if !parent.IsDir() {
		return nil, errors.KindInvalid.WithMessage("parent is not a directory")
	}

	encoded, err := dirent.EncodeName(name)
	if err != nil {
		return nil, err
	}

	attr := uint8(0)
	if isDir {
		attr = dirent.AttrDir
	}

	now := v.now()
	result, err := v.dirs.CreateFile(parent.Start, encoded, attr, now)
	if err != nil {
		return nil, err
	}

	if result.GrewParent {
		parent.SetSize(parent.Size + uint32(v.geo.ClusterSize))
		parent.GrowBlocks(uint32(v.geo.BlkPerClus))
		if err := inode.Flush(v.dev, parent, v.geo.BlockBits); err != nil {
			return nil, err
		}
	}

	pos := v.geo.EntryPos(result.Location.Cluster, result.Location.Block, result.Location.Offset)
	child := &inode.Inode{
		Start:      0,
		Attrs:      attr,
		Pos:        pos,
		Size:       0,
		LinkCount:  1,
		CreatedAt:  now,
		AccessedAt: now,
		ModifiedAt: now,
		State:      inode.StateClean,
	}
	return &File{vol: v, in: child}, nil
}

// Stat reports the file's current metadata.
func (f *File) Stat() FileInfo {
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	isDir := f.in.IsDir()
	return FileInfo{
		Size:       f.in.Size,
		Blocks:     f.in.Blocks,
		IsDir:      isDir,
		CreatedAt:  f.in.CreatedAt,
		AccessedAt: f.in.AccessedAt,
		ModifiedAt: f.in.ModifiedAt,
		Mode:       attrsToFileMode(isDir, f.vol.opts),
		UID:        f.vol.opts.UID,
		GID:        f.vol.opts.GID,
	}
}

// Close flushes any pending metadata changes. Closing a File more than
// once is a safe no-op.
func (f *File) Close() error {
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	if f.in == nil {
		return nil
	}
	err := inode.Flush(f.vol.dev, f.in, f.vol.geo.BlockBits)
	f.in = nil
	return err
}
