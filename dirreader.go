package sfat

import (
	"github.com/sfatfs/sfat/errors"
	"github.com/sfatfs/sfat/internal/dirent"
)

// DirEntry is one child reported by ReadDir.
type DirEntry struct {
	Name  string
	IsDir bool
	FPos  int64
}

// ReadDir enumerates the children of the directory f was opened on,
// starting at byte cursor fPos (a multiple of 32; 0 starts from the
// beginning). It returns the entries gathered before either the
// directory's terminator or limit entries have been collected, plus the
// cursor to resume from on the next call.
//
// limit <= 0 means no limit: the whole directory is read in one call.
func (f *File) ReadDir(fPos int64, limit int) ([]DirEntry, int64, error) {
	v := f.vol
	v.mu.Lock()
	defer v.mu.Unlock()

	if !f.in.IsDir() {
		return nil, fPos, errors.KindInvalid.WithMessage("not a directory")
	}

	var out []DirEntry
	cursor := fPos
	err := v.dirs.Enumerate(f.in.Start, fPos, func(name string, pos int64, e dirent.Entry) bool {
		out = append(out, DirEntry{Name: name, IsDir: e.IsDir(), FPos: pos})
		cursor = pos + int64(dirent.Size)
		if limit > 0 && len(out) >= limit {
			return false
		}
		return true
	})
	if err != nil {
		return nil, fPos, err
	}
	return out, cursor, nil
}
