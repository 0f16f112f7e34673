// Package filesys maps textual path names to files on a sector device.
//
// Each file has a header stored in one sector, a number of data sectors and
// an entry in its parent directory. The free-sector bitmap and the root
// directory are themselves ordinary files whose headers live in the
// well-known sectors common.FreeMapSector and common.DirectorySector, so the
// file system can find them on boot. Both files are kept open for the
// lifetime of a FileSystem.
//
// Operations that modify the bitmap or a directory load a fresh copy, mutate
// it and write it back before returning; if an operation fails part way, the
// modified copies are discarded without being written. There is no journal:
// a crash between the writes of one operation can leave the bitmap and the
// directories inconsistent.
//
// Every exported method takes a single lock for its whole duration.
package filesys

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mit-pdos/go-sectorfs/bitmap"
	"github.com/mit-pdos/go-sectorfs/common"
	"github.com/mit-pdos/go-sectorfs/directory"
	"github.com/mit-pdos/go-sectorfs/disk"
	"github.com/mit-pdos/go-sectorfs/fdtable"
	"github.com/mit-pdos/go-sectorfs/filehdr"
	"github.com/mit-pdos/go-sectorfs/metrics"
	"github.com/mit-pdos/go-sectorfs/openfile"
	"github.com/mit-pdos/go-sectorfs/util"
)

type FileSystem struct {
	mu sync.Mutex

	d             disk.Disk
	numSectors    uint64
	numDirEntries uint64
	maxOpenFiles  uint64

	freeMapFile   *openfile.OpenFile
	directoryFile *openfile.OpenFile
	fds           *fdtable.Table
	metrics       metrics.FSMetrics
}

type Option func(*FileSystem)

// WithDirEntries sets the capacity of every directory table. It must match
// the value the device was formatted with.
func WithDirEntries(n uint64) Option {
	return func(fs *FileSystem) { fs.numDirEntries = n }
}

func WithMaxOpenFiles(n uint64) Option {
	return func(fs *FileSystem) { fs.maxOpenFiles = n }
}

func WithMetrics(m metrics.FSMetrics) Option {
	return func(fs *FileSystem) { fs.metrics = m }
}

// New brings up the file system on d. With format set the device is
// initialized with an empty root directory and a bitmap in which only the
// sectors of those two files are in use; otherwise the two files are opened
// from their well-known sectors and assumed consistent.
func New(d disk.Disk, format bool, opts ...Option) (*FileSystem, error) {
	fs := &FileSystem{
		d:             d,
		numSectors:    d.Size(),
		numDirEntries: common.NumDirEntries,
		maxOpenFiles:  common.MaxOpenFiles,
		metrics:       metrics.NewNoop(),
	}
	for _, opt := range opts {
		opt(fs)
	}
	fs.fds = fdtable.MkTable(fs.maxOpenFiles)

	util.DPrintf(1, "Initializing the file system.\n")
	if fs.numSectors <= common.DirectorySector || d.SectorSize() <= filehdr.HDRMETA {
		return nil, fmt.Errorf("%d sectors of %d bytes: %w", fs.numSectors, d.SectorSize(), ErrDeviceTooSmall)
	}
	if format {
		if err := fs.format(); err != nil {
			return nil, err
		}
		return fs, nil
	}
	var err error
	fs.freeMapFile, err = openfile.Open(d, common.FreeMapSector)
	if err != nil {
		return nil, fmt.Errorf("open bitmap file: %w", err)
	}
	fs.directoryFile, err = openfile.Open(d, common.DirectorySector)
	if err != nil {
		return nil, fmt.Errorf("open directory file: %w", err)
	}
	return fs, nil
}

func (fs *FileSystem) format() error {
	util.DPrintf(1, "Formatting the file system.\n")
	mapSize := common.FreeMapFileSize(fs.numSectors)
	if limit := filehdr.MaxFileSize(fs.d.SectorSize()); mapSize > limit {
		return fmt.Errorf("bitmap of %d bytes, header limit %d: %w", mapSize, limit, ErrDeviceTooLarge)
	}
	freeMap := bitmap.MkBitmap(fs.numSectors)
	mapHdr := filehdr.MkFileHeader(fs.d.SectorSize())
	dirHdr := filehdr.MkFileHeader(fs.d.SectorSize())

	// Header sectors first, so no data allocation grabs them.
	freeMap.Mark(common.FreeMapSector)
	freeMap.Mark(common.DirectorySector)

	if err := mapHdr.Allocate(freeMap, mapSize); err != nil {
		return fmt.Errorf("bitmap file: %w: %w", ErrDeviceTooSmall, err)
	}
	if err := dirHdr.Allocate(freeMap, directory.FileSize(fs.numDirEntries)); err != nil {
		return fmt.Errorf("directory file: %w: %w", ErrDeviceTooSmall, err)
	}

	// Headers must be on disk before the files can be opened.
	if err := mapHdr.WriteBack(fs.d, common.FreeMapSector); err != nil {
		return err
	}
	if err := dirHdr.WriteBack(fs.d, common.DirectorySector); err != nil {
		return err
	}

	var err error
	fs.freeMapFile, err = openfile.Open(fs.d, common.FreeMapSector)
	if err != nil {
		return err
	}
	fs.directoryFile, err = openfile.Open(fs.d, common.DirectorySector)
	if err != nil {
		return err
	}

	util.DPrintf(1, "Writing bitmap and directory back to disk.\n")
	if err := freeMap.WriteBack(fs.freeMapFile); err != nil {
		return err
	}
	if err := directory.MkDirectory(fs.numDirEntries).WriteBack(fs.directoryFile); err != nil {
		return err
	}
	if err := fs.d.Barrier(); err != nil {
		return err
	}
	fs.metrics.SetFreeSectors(freeMap.NumClear())
	return nil
}

// Close releases the bitmap and root directory files and every registered
// descriptor. The FileSystem is unusable afterwards.
func (fs *FileSystem) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.directoryFile == nil {
		return ErrClosed
	}
	fs.fds.ReleaseAll()
	fs.metrics.SetOpenFiles(0)
	fs.freeMapFile = nil
	fs.directoryFile = nil
	return fs.d.Barrier()
}

// do runs one operation under the lock and records it.
func (fs *FileSystem) do(op string, f func() error) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	start := time.Now()
	var err error
	if fs.directoryFile == nil {
		err = ErrClosed
	} else {
		err = f()
	}
	fs.metrics.RecordOperation(op, time.Since(start), err)
	if err != nil {
		util.DPrintf(1, "%s: %v\n", op, err)
	}
	return err
}

func (fs *FileSystem) fetchFreeMap() (*bitmap.Bitmap, error) {
	return bitmap.FetchBitmap(fs.freeMapFile, fs.numSectors)
}

func (fs *FileSystem) writeFreeMap(freeMap *bitmap.Bitmap) error {
	if err := freeMap.WriteBack(fs.freeMapFile); err != nil {
		return err
	}
	fs.metrics.SetFreeSectors(freeMap.NumClear())
	return nil
}

func (fs *FileSystem) fetchDir(f *openfile.OpenFile) (*directory.Directory, error) {
	return directory.Fetch(f, fs.numDirEntries)
}

// openDir opens the directory file whose header is at sector.
func (fs *FileSystem) openDir(sector common.Sector) (*openfile.OpenFile, *directory.Directory, error) {
	f, err := openfile.Open(fs.d, sector)
	if err != nil {
		return nil, nil, err
	}
	dir, err := fs.fetchDir(f)
	if err != nil {
		return nil, nil, err
	}
	return f, dir, nil
}

// FreeSectors returns the number of free sectors in the persisted bitmap.
func (fs *FileSystem) FreeSectors() (uint64, error) {
	var n uint64
	err := fs.do("free", func() error {
		freeMap, err := fs.fetchFreeMap()
		if err != nil {
			return err
		}
		n = freeMap.NumClear()
		return nil
	})
	return n, err
}

// Print dumps the bitmap and root directory metadata.
func (fs *FileSystem) Print(w io.Writer) error {
	return fs.do("print", func() error {
		ss := fs.d.SectorSize()
		fmt.Fprintf(w, "Bit map file header:\n")
		bitHdr, err := filehdr.Fetch(fs.d, common.FreeMapSector)
		if err != nil {
			return err
		}
		bitHdr.Print(w)

		fmt.Fprintf(w, "Directory file header:\n")
		dirHdr, err := filehdr.Fetch(fs.d, common.DirectorySector)
		if err != nil {
			return err
		}
		dirHdr.Print(w)

		freeMap, err := fs.fetchFreeMap()
		if err != nil {
			return err
		}
		freeMap.Print(w)
		free := freeMap.NumClear()
		fmt.Fprintf(w, "Free: %d of %d sectors (%s of %s)\n", free, fs.numSectors,
			humanize.IBytes(free*ss), humanize.IBytes(fs.numSectors*ss))

		dir, err := fs.fetchDir(fs.directoryFile)
		if err != nil {
			return err
		}
		dir.Print(w)
		fmt.Fprintf(w, "Open files: %d of %d\n", fs.fds.Len(), fs.fds.Capacity())
		return nil
	})
}

// mapErr wraps a collaborator error with the matching file system error.
func mapErr(err error, from error, to error) error {
	if errors.Is(err, from) {
		return fmt.Errorf("%w: %w", to, err)
	}
	return err
}
