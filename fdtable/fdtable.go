// Package fdtable maps integer descriptors to open files.
//
// Slots are handed out round-robin: the search for a free slot starts just
// after the last descriptor assigned, so a freshly closed descriptor is not
// immediately reused while other slots are free.
package fdtable

import (
	"errors"
	"fmt"

	"github.com/mit-pdos/go-sectorfs/bitmap"
	"github.com/mit-pdos/go-sectorfs/common"
	"github.com/mit-pdos/go-sectorfs/openfile"
	"github.com/mit-pdos/go-sectorfs/util"
)

var (
	ErrExhausted = errors.New("descriptor table exhausted")
	ErrInvalid   = errors.New("invalid descriptor")
)

type Table struct {
	used  *bitmap.Bitmap
	files []*openfile.OpenFile
	next  uint64 // first slot to try
	n     int
}

func MkTable(capacity uint64) *Table {
	return &Table{
		used:  bitmap.MkBitmap(capacity),
		files: make([]*openfile.OpenFile, capacity),
	}
}

func (t *Table) Capacity() uint64 {
	return uint64(len(t.files))
}

// Len returns the number of registered descriptors.
func (t *Table) Len() int {
	return t.n
}

// Alloc registers f under a free descriptor and tags f with it.
func (t *Table) Alloc(f *openfile.OpenFile) (int, error) {
	slot, err := t.used.FindFrom(t.next)
	if err != nil {
		return openfile.NoFd, fmt.Errorf("%d open: %w", t.n, ErrExhausted)
	}
	t.next = slot + 1
	t.files[slot] = f
	t.n++
	fd := int(slot)
	f.SetFd(fd)
	util.DPrintf(5, "fdtable: alloc %d\n", fd)
	return fd, nil
}

func (t *Table) valid(fd int) bool {
	return fd >= 0 && uint64(fd) < t.Capacity() && t.used.Test(uint64(fd))
}

// Get returns the open file registered under fd.
func (t *Table) Get(fd int) (*openfile.OpenFile, error) {
	if !t.valid(fd) {
		return nil, fmt.Errorf("fd %d: %w", fd, ErrInvalid)
	}
	return t.files[fd], nil
}

// Release unregisters fd and returns the file it was bound to.
func (t *Table) Release(fd int) (*openfile.OpenFile, error) {
	if !t.valid(fd) {
		return nil, fmt.Errorf("fd %d: %w", fd, ErrInvalid)
	}
	f := t.files[fd]
	t.files[fd] = nil
	t.used.Clear(uint64(fd))
	t.n--
	f.SetFd(openfile.NoFd)
	util.DPrintf(5, "fdtable: release %d\n", fd)
	return f, nil
}

// ReleaseAll unregisters every descriptor.
func (t *Table) ReleaseAll() {
	for fd := range t.files {
		if t.valid(fd) {
			t.Release(fd)
		}
	}
}

// ReleaseSector unregisters every descriptor bound to the file whose header
// is at sector and returns how many were dropped.
func (t *Table) ReleaseSector(sector common.Sector) int {
	var n int
	for fd, f := range t.files {
		if t.valid(fd) && f.Sector() == sector {
			t.Release(fd)
			n++
		}
	}
	return n
}
