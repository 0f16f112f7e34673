package filesys

import (
	"fmt"

	"github.com/mit-pdos/go-sectorfs/bitmap"
	"github.com/mit-pdos/go-sectorfs/common"
	"github.com/mit-pdos/go-sectorfs/directory"
	"github.com/mit-pdos/go-sectorfs/fdtable"
	"github.com/mit-pdos/go-sectorfs/filehdr"
	"github.com/mit-pdos/go-sectorfs/openfile"
	"github.com/mit-pdos/go-sectorfs/util"
)

// resolved is the outcome of walking a path: the deepest existing directory
// containing the target, and the target itself, which is not opened.
type resolved struct {
	dirFile *openfile.OpenFile
	dir     *directory.Directory
	target  segment
}

// resolve walks path from the root. Directory files opened along the way are
// dropped once the walk moves past them; the root file belongs to fs.
//
// A missing directory is only allowed as the last segment, where it is the
// target of a Create.
func (fs *FileSystem) resolve(path string) (*resolved, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	dirFile := fs.directoryFile
	dir, err := fs.fetchDir(dirFile)
	if err != nil {
		return nil, err
	}
	for i, seg := range segs {
		last := i == len(segs)-1
		if last {
			if seg.root {
				// re-fetch in case an earlier segment moved away from the root
				dirFile = fs.directoryFile
				if dir, err = fs.fetchDir(dirFile); err != nil {
					return nil, err
				}
			}
			return &resolved{dirFile: dirFile, dir: dir, target: seg}, nil
		}
		if seg.root {
			dirFile = fs.directoryFile
			if dir, err = fs.fetchDir(dirFile); err != nil {
				return nil, err
			}
			continue
		}
		e, ok := dir.Find(seg.name)
		if !ok {
			return nil, fmt.Errorf("%q at %q: %w", path, seg, ErrPathNotFound)
		}
		if !e.IsDir() {
			return nil, fmt.Errorf("%q at %q: %w", path, seg, ErrWrongType)
		}
		util.DPrintf(10, "resolve: %q -> sector %d\n", seg, e.Sector)
		if dirFile, dir, err = fs.openDir(e.Sector); err != nil {
			return nil, err
		}
	}
	// splitPath never returns an empty path
	panic("resolve")
}

// lookup resolves path and finds its target, checking that the entry kind
// matches the path's trailing separator.
func (fs *FileSystem) lookup(path string) (*resolved, directory.Entry, error) {
	r, err := fs.resolve(path)
	if err != nil {
		return nil, directory.Entry{}, err
	}
	if r.target.root {
		return r, directory.Entry{InUse: true, Kind: directory.KindDir, Sector: common.DirectorySector}, nil
	}
	e, ok := r.dir.Find(r.target.name)
	if !ok {
		return nil, directory.Entry{}, fmt.Errorf("%q: %w", path, ErrNotFound)
	}
	if e.Kind != r.target.kind() {
		return nil, directory.Entry{}, fmt.Errorf("%q is a %v: %w", path, e.Kind, ErrWrongType)
	}
	return r, e, nil
}

// Create makes a file of initialSize bytes at path. Files never grow, so the
// size is fixed here. A path ending in the separator creates a directory,
// which is immediately initialized with an empty table; its size is raised to
// at least one table.
//
// Create fails if the name is already present, if there is no sector for the
// header, no free slot in the containing directory, or not enough sectors for
// the data. Nothing is written back on failure.
func (fs *FileSystem) Create(path string, initialSize uint64) error {
	return fs.do("create", func() error {
		return fs.create(path, initialSize)
	})
}

func (fs *FileSystem) create(path string, initialSize uint64) error {
	util.DPrintf(1, "Creating file %s size %d\n", path, initialSize)
	r, err := fs.resolve(path)
	if err != nil {
		return err
	}
	if r.target.root {
		return fmt.Errorf("create root: %w", ErrInvalidName)
	}
	name := r.target.name
	if _, ok := r.dir.Find(name); ok {
		return fmt.Errorf("%q: %w", path, ErrNameCollision)
	}

	freeMap, err := fs.fetchFreeMap()
	if err != nil {
		return err
	}
	sector, err := freeMap.FindAndSet()
	if err != nil {
		return fmt.Errorf("%q: %w: %w", path, ErrNoFreeHeaderSector, err)
	}
	if err := r.dir.Add(name, sector, r.target.kind()); err != nil {
		return fmt.Errorf("%q: %w", path, mapErr(err, directory.ErrFull, ErrDirectoryFull))
	}
	size := initialSize
	if r.target.dir && size < directory.FileSize(fs.numDirEntries) {
		size = directory.FileSize(fs.numDirEntries)
	}
	hdr := filehdr.MkFileHeader(fs.d.SectorSize())
	if err := hdr.Allocate(freeMap, size); err != nil {
		return fmt.Errorf("%q: %w: %w", path, ErrInsufficientDataSpace, err)
	}

	// everything worked, flush all changes back to disk
	if err := hdr.WriteBack(fs.d, sector); err != nil {
		return err
	}
	if r.target.dir {
		f, err := openfile.Open(fs.d, sector)
		if err != nil {
			return err
		}
		if err := directory.MkDirectory(fs.numDirEntries).WriteBack(f); err != nil {
			return err
		}
	}
	if err := r.dir.WriteBack(r.dirFile); err != nil {
		return err
	}
	return fs.writeFreeMap(freeMap)
}

// Open opens the plain file at path and registers it under a new descriptor,
// available from the returned file's Fd.
func (fs *FileSystem) Open(path string) (*openfile.OpenFile, error) {
	var f *openfile.OpenFile
	err := fs.do("open", func() error {
		var err error
		f, err = fs.open(path)
		return err
	})
	return f, err
}

func (fs *FileSystem) open(path string) (*openfile.OpenFile, error) {
	util.DPrintf(1, "Opening file %s\n", path)
	r, err := fs.resolve(path)
	if err != nil {
		return nil, err
	}
	if r.target.dir {
		return nil, fmt.Errorf("open %q: %w", path, ErrWrongType)
	}
	e, ok := r.dir.Find(r.target.name)
	if !ok {
		return nil, fmt.Errorf("open %q: %w", path, ErrNotFound)
	}
	if e.IsDir() {
		return nil, fmt.Errorf("open %q: %w", path, ErrWrongType)
	}
	f, err := openfile.Open(fs.d, e.Sector)
	if err != nil {
		return nil, err
	}
	fd, err := fs.fds.Alloc(f)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, mapErr(err, fdtable.ErrExhausted, ErrDescriptorTableExhausted))
	}
	fs.metrics.SetOpenFiles(fs.fds.Len())
	util.DPrintf(1, "Open file %s fd=%d\n", path, fd)
	return f, nil
}

// Remove deletes the entry at path and frees its header and data sectors.
// Descriptors open on a removed file become invalid.
//
// With recursive set, a directory's children are removed first, depth first.
// Without it, removing a non-empty directory frees only the directory's own
// sectors: the children stay allocated but can no longer be reached.
func (fs *FileSystem) Remove(path string, recursive bool) error {
	return fs.do("remove", func() error {
		return fs.remove(path, recursive)
	})
}

func (fs *FileSystem) remove(path string, recursive bool) error {
	util.DPrintf(1, "Removing %s recursive %v\n", path, recursive)
	r, e, err := fs.lookup(path)
	if err != nil {
		return err
	}
	if r.target.root {
		return fmt.Errorf("remove root: %w", ErrInvalidName)
	}
	freeMap, err := fs.fetchFreeMap()
	if err != nil {
		return err
	}
	if recursive && e.IsDir() {
		subFile, subDir, err := fs.openDir(e.Sector)
		if err != nil {
			return err
		}
		if err := fs.removeChildren(subDir, freeMap); err != nil {
			return err
		}
		if err := subDir.WriteBack(subFile); err != nil {
			return err
		}
	}
	if err := fs.freeFile(e.Sector, freeMap); err != nil {
		return err
	}
	r.dir.Remove(r.target.name)

	if err := fs.writeFreeMap(freeMap); err != nil {
		return err
	}
	return r.dir.WriteBack(r.dirFile)
}

// removeChildren empties dir, freeing every descendant's sectors in freeMap.
func (fs *FileSystem) removeChildren(dir *directory.Directory, freeMap *bitmap.Bitmap) error {
	for _, e := range dir.Entries() {
		if e.IsDir() {
			_, sub, err := fs.openDir(e.Sector)
			if err != nil {
				return err
			}
			if err := fs.removeChildren(sub, freeMap); err != nil {
				return err
			}
		}
		if err := fs.freeFile(e.Sector, freeMap); err != nil {
			return err
		}
		dir.Remove(e.Name)
	}
	return nil
}

// freeFile clears the data sectors and the header sector of one file and
// drops any descriptor still open on it.
func (fs *FileSystem) freeFile(sector common.Sector, freeMap *bitmap.Bitmap) error {
	if common.Reserved(sector) {
		panic(fmt.Errorf("freeFile: reserved sector %d", sector))
	}
	hdr, err := filehdr.Fetch(fs.d, sector)
	if err != nil {
		return err
	}
	hdr.Deallocate(freeMap)
	freeMap.Clear(sector)
	if n := fs.fds.ReleaseSector(sector); n > 0 {
		util.DPrintf(1, "freeFile: dropped %d descriptors on sector %d\n", n, sector)
		fs.metrics.SetOpenFiles(fs.fds.Len())
	}
	return nil
}

// List enumerates entries in table order.
//
// For the root, or a plain file path, the containing directory is listed; for
// a directory path, that directory. With recursive set, every directory
// entry is descended into, depth first, and Depth counts the nesting.
func (fs *FileSystem) List(path string, recursive bool) ([]directory.Listing, error) {
	var ls []directory.Listing
	err := fs.do("list", func() error {
		var err error
		ls, err = fs.list(path, recursive)
		return err
	})
	return ls, err
}

func (fs *FileSystem) list(path string, recursive bool) ([]directory.Listing, error) {
	r, err := fs.resolve(path)
	if err != nil {
		return nil, err
	}
	dir := r.dir
	if r.target.dir && !r.target.root {
		e, ok := r.dir.Find(r.target.name)
		if !ok {
			return nil, fmt.Errorf("list %q: %w", path, ErrNotFound)
		}
		if !e.IsDir() {
			return nil, fmt.Errorf("list %q: %w", path, ErrWrongType)
		}
		if _, dir, err = fs.openDir(e.Sector); err != nil {
			return nil, err
		}
	}
	ls := []directory.Listing{}
	if err := fs.walk(dir, 0, recursive, &ls); err != nil {
		return nil, err
	}
	return ls, nil
}

func (fs *FileSystem) walk(dir *directory.Directory, depth int, recursive bool, ls *[]directory.Listing) error {
	for _, e := range dir.Entries() {
		hdr, err := filehdr.Fetch(fs.d, e.Sector)
		if err != nil {
			return err
		}
		*ls = append(*ls, directory.Listing{
			Name:   e.Name,
			Kind:   e.Kind,
			Sector: e.Sector,
			Size:   hdr.FileLength(),
			Depth:  depth,
		})
		if recursive && e.IsDir() {
			_, sub, err := fs.openDir(e.Sector)
			if err != nil {
				return err
			}
			if err := fs.walk(sub, depth+1, recursive, ls); err != nil {
				return err
			}
		}
	}
	return nil
}

// Stat returns the listing line for path without opening it.
func (fs *FileSystem) Stat(path string) (directory.Listing, error) {
	var l directory.Listing
	err := fs.do("stat", func() error {
		r, e, err := fs.lookup(path)
		if err != nil {
			return err
		}
		hdr, err := filehdr.Fetch(fs.d, e.Sector)
		if err != nil {
			return err
		}
		l = directory.Listing{Name: r.target.name, Kind: e.Kind, Sector: e.Sector, Size: hdr.FileLength()}
		if r.target.root {
			l.Name = common.PathSeparatorText
		}
		return nil
	})
	return l, err
}
