package filesys

import (
	"fmt"
	"strings"

	"github.com/mit-pdos/go-sectorfs/common"
	"github.com/mit-pdos/go-sectorfs/directory"
)

// segment is one separator-terminated piece of a path. A piece that is just
// the separator names the root; a piece ending in the separator names a
// directory; only the last piece can name a plain file.
type segment struct {
	name string
	dir  bool
	root bool
}

func (s segment) kind() directory.Kind {
	if s.dir {
		return directory.KindDir
	}
	return directory.KindFile
}

func (s segment) String() string {
	if s.root {
		return common.PathSeparatorText
	}
	if s.dir {
		return s.name + common.PathSeparatorText
	}
	return s.name
}

// splitPath tokenizes path: "/a/b/c" is "/", "a/", "b/", "c".
func splitPath(path string) ([]segment, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path: %w", ErrInvalidName)
	}
	var segs []segment
	rest := path
	for rest != "" {
		i := strings.IndexByte(rest, common.PathSeparator)
		var seg segment
		if i < 0 {
			seg = segment{name: rest}
			rest = ""
		} else if i == 0 {
			seg = segment{root: true, dir: true}
			rest = rest[1:]
		} else {
			seg = segment{name: rest[:i], dir: true}
			rest = rest[i+1:]
		}
		if !seg.root {
			if err := directory.ValidName(seg.name); err != nil {
				return nil, fmt.Errorf("%q: %w: %w", path, ErrInvalidName, err)
			}
		}
		segs = append(segs, seg)
	}
	return segs, nil
}
