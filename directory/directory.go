// Package directory implements the fixed-capacity table of (name, sector)
// entries that makes up the contents of one directory file.
//
// The table is loaded from and written back to an ordinary file in one piece;
// callers hold an in-memory copy only for the duration of one operation.
package directory

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-sectorfs/common"
)

const (
	NameMaxLen uint64 = 16
	EntrySize  uint64 = 8 + 8 + NameMaxLen
)

const (
	flagInUse uint64 = 1 << iota
	flagDir
)

var (
	ErrFull        = errors.New("directory full")
	ErrExists      = errors.New("name already in directory")
	ErrInvalidName = errors.New("invalid entry name")
)

// Kind tags an entry as a plain file or a directory.
type Kind uint8

const (
	KindFile Kind = iota
	KindDir
)

func (k Kind) String() string {
	if k == KindDir {
		return "dir"
	}
	return "file"
}

// File is the open file backing a directory table.
type File interface {
	ReadAt(p []byte, off uint64) (int, error)
	WriteAt(p []byte, off uint64) (int, error)
}

type Entry struct {
	InUse  bool
	Kind   Kind
	Sector common.Sector
	Name   string
}

func (e Entry) IsDir() bool {
	return e.Kind == KindDir
}

// FileSize returns the byte length of a directory file with numEntries slots.
func FileSize(numEntries uint64) uint64 {
	return numEntries * EntrySize
}

// ValidName checks that name fits an entry.
func ValidName(name string) error {
	if name == "" || uint64(len(name)) > NameMaxLen || strings.ContainsRune(name, common.PathSeparator) ||
		strings.IndexByte(name, 0) >= 0 {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return nil
}

type Directory struct {
	table []Entry
}

func MkDirectory(numEntries uint64) *Directory {
	return &Directory{table: make([]Entry, numEntries)}
}

// Fetch loads a numEntries table from f.
func Fetch(f File, numEntries uint64) (*Directory, error) {
	dir := MkDirectory(numEntries)
	if err := dir.FetchFrom(f); err != nil {
		return nil, err
	}
	return dir, nil
}

func (dir *Directory) Capacity() uint64 {
	return uint64(len(dir.table))
}

func (dir *Directory) encode() []byte {
	enc := marshal.NewEnc(FileSize(dir.Capacity()))
	for _, e := range dir.table {
		var flags uint64
		if e.InUse {
			flags |= flagInUse
		}
		if e.Kind == KindDir {
			flags |= flagDir
		}
		name := make([]byte, NameMaxLen)
		copy(name, e.Name)
		enc.PutInt(flags)
		enc.PutInt(e.Sector)
		enc.PutBytes(name)
	}
	return enc.Finish()
}

func (dir *Directory) decode(b []byte) {
	dec := marshal.NewDec(b)
	for i := range dir.table {
		flags := dec.GetInt()
		sector := dec.GetInt()
		name := dec.GetBytes(NameMaxLen)
		if j := bytes.IndexByte(name, 0); j >= 0 {
			name = name[:j]
		}
		e := Entry{InUse: flags&flagInUse != 0, Sector: sector, Name: string(name)}
		if flags&flagDir != 0 {
			e.Kind = KindDir
		}
		dir.table[i] = e
	}
}

// FetchFrom reads the table from the start of f.
func (dir *Directory) FetchFrom(f File) error {
	b := make([]byte, FileSize(dir.Capacity()))
	n, err := f.ReadAt(b, 0)
	if err != nil {
		return fmt.Errorf("directory fetch: %w", err)
	}
	if n != len(b) {
		return fmt.Errorf("directory fetch: short read %d of %d bytes", n, len(b))
	}
	dir.decode(b)
	return nil
}

// WriteBack stores the table at the start of f.
func (dir *Directory) WriteBack(f File) error {
	b := dir.encode()
	n, err := f.WriteAt(b, 0)
	if err != nil {
		return fmt.Errorf("directory write back: %w", err)
	}
	if n != len(b) {
		return fmt.Errorf("directory write back: short write %d of %d bytes", n, len(b))
	}
	return nil
}

func (dir *Directory) findIndex(name string) int {
	for i, e := range dir.table {
		if e.InUse && e.Name == name {
			return i
		}
	}
	return -1
}

// Find looks up name.
func (dir *Directory) Find(name string) (Entry, bool) {
	i := dir.findIndex(name)
	if i < 0 {
		return Entry{}, false
	}
	return dir.table[i], true
}

// Add puts name in the first free slot.
func (dir *Directory) Add(name string, sector common.Sector, kind Kind) error {
	if err := ValidName(name); err != nil {
		return err
	}
	if dir.findIndex(name) >= 0 {
		return fmt.Errorf("%q: %w", name, ErrExists)
	}
	for i := range dir.table {
		if !dir.table[i].InUse {
			dir.table[i] = Entry{InUse: true, Kind: kind, Sector: sector, Name: name}
			return nil
		}
	}
	return fmt.Errorf("%q: %w", name, ErrFull)
}

// Remove drops name, reporting whether it was present.
func (dir *Directory) Remove(name string) bool {
	i := dir.findIndex(name)
	if i < 0 {
		return false
	}
	dir.table[i] = Entry{}
	return true
}

// Entries returns the in-use entries in table order.
func (dir *Directory) Entries() []Entry {
	var es []Entry
	for _, e := range dir.table {
		if e.InUse {
			es = append(es, e)
		}
	}
	return es
}

func (dir *Directory) IsEmpty() bool {
	return len(dir.Entries()) == 0
}

func (dir *Directory) Print(w io.Writer) {
	fmt.Fprint(w, "Directory contents:\n")
	for _, e := range dir.Entries() {
		fmt.Fprintf(w, "Name: %s, Kind: %v, Sector: %d\n", e.Name, e.Kind, e.Sector)
	}
	fmt.Fprint(w, "\n")
}
