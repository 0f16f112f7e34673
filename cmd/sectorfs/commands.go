package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mit-pdos/go-sectorfs/directory"
	"github.com/mit-pdos/go-sectorfs/filesys"
	"github.com/mit-pdos/go-sectorfs/util"
)

// copyIn creates path with the size of the host file and writes its contents,
// one sector at a time.
func copyIn(fs *filesys.FileSystem, host string, path string, chunk uint64) error {
	f, err := os.Open(host)
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	size := uint64(st.Size())
	if err := fs.Create(path, size); err != nil {
		return err
	}
	of, err := fs.Open(path)
	if err != nil {
		return err
	}
	defer fs.CloseFile(of.Fd())

	util.DPrintf(1, "Copying host file %s to %s, size %d\n", host, path, size)
	buf := make([]byte, chunk)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			w, werr := fs.Write(of.Fd(), buf[:n])
			if werr != nil {
				return werr
			}
			if w != n {
				return fmt.Errorf("%s: short write %d of %d", path, w, n)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// cat writes the contents of path to w.
func cat(fs *filesys.FileSystem, path string, w io.Writer, chunk uint64) error {
	of, err := fs.Open(path)
	if err != nil {
		return err
	}
	defer fs.CloseFile(of.Fd())
	buf := make([]byte, chunk)
	for {
		n, err := fs.Read(of.Fd(), buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if _, err := w.Write(buf[:n]); err != nil {
			return err
		}
	}
}

func list(fs *filesys.FileSystem, path string, recursive bool, w io.Writer) error {
	ls, err := fs.List(path, recursive)
	if err != nil {
		return err
	}
	directory.FprintListing(w, ls)
	return nil
}
