package filesys

import (
	"fmt"

	"github.com/mit-pdos/go-sectorfs/fdtable"
	"github.com/mit-pdos/go-sectorfs/openfile"
)

func (fs *FileSystem) getFd(fd int) (*openfile.OpenFile, error) {
	f, err := fs.fds.Get(fd)
	if err != nil {
		return nil, mapErr(err, fdtable.ErrInvalid, ErrInvalidDescriptor)
	}
	return f, nil
}

// Read reads up to len(p) bytes from the descriptor's position and advances
// it. Reads stop at the end of the file.
func (fs *FileSystem) Read(fd int, p []byte) (int, error) {
	var n int
	err := fs.do("read", func() error {
		f, err := fs.getFd(fd)
		if err != nil {
			return err
		}
		n, err = f.Read(p)
		return err
	})
	return n, err
}

// Write writes up to len(p) bytes at the descriptor's position and advances
// it. Files do not grow: bytes past the end of the file are dropped.
func (fs *FileSystem) Write(fd int, p []byte) (int, error) {
	var n int
	err := fs.do("write", func() error {
		f, err := fs.getFd(fd)
		if err != nil {
			return err
		}
		n, err = f.Write(p)
		return err
	})
	return n, err
}

// Seek sets the descriptor's position, which must lie within the file.
func (fs *FileSystem) Seek(fd int, position int64) error {
	return fs.do("seek", func() error {
		f, err := fs.getFd(fd)
		if err != nil {
			return err
		}
		if position < 0 {
			return fmt.Errorf("seek to %d: %w", position, ErrInvalidOffset)
		}
		return mapErr(f.Seek(uint64(position)), openfile.ErrInvalidOffset, ErrInvalidOffset)
	})
}

// CloseFile unregisters fd.
func (fs *FileSystem) CloseFile(fd int) error {
	return fs.do("close", func() error {
		if _, err := fs.fds.Release(fd); err != nil {
			return mapErr(err, fdtable.ErrInvalid, ErrInvalidDescriptor)
		}
		fs.metrics.SetOpenFiles(fs.fds.Len())
		return nil
	})
}
