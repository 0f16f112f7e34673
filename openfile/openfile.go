// Package openfile binds a file header to a handle for byte-range reads and
// writes. A handle carries its own seek position and, once registered with
// the file system, its descriptor.
package openfile

import (
	"errors"
	"fmt"

	"github.com/mit-pdos/go-sectorfs/common"
	"github.com/mit-pdos/go-sectorfs/disk"
	"github.com/mit-pdos/go-sectorfs/filehdr"
	"github.com/mit-pdos/go-sectorfs/util"
)

// NoFd marks a handle that is not in the descriptor table.
const NoFd = -1

var ErrInvalidOffset = errors.New("offset outside file")

type OpenFile struct {
	d            disk.Disk
	sector       common.Sector
	hdr          *filehdr.FileHeader
	seekPosition uint64
	fd           int
}

// Open loads the header at sector and returns a handle positioned at 0.
func Open(d disk.Disk, sector common.Sector) (*OpenFile, error) {
	hdr, err := filehdr.Fetch(d, sector)
	if err != nil {
		return nil, err
	}
	return &OpenFile{d: d, sector: sector, hdr: hdr, fd: NoFd}, nil
}

func (f *OpenFile) Sector() common.Sector {
	return f.sector
}

func (f *OpenFile) Length() uint64 {
	return f.hdr.FileLength()
}

func (f *OpenFile) Fd() int {
	return f.fd
}

func (f *OpenFile) SetFd(fd int) {
	f.fd = fd
}

// Seek moves the position used by Read and Write. Positions past the end of
// the file are rejected since files never grow.
func (f *OpenFile) Seek(position uint64) error {
	if position > f.Length() {
		return fmt.Errorf("seek to %d of %d: %w", position, f.Length(), ErrInvalidOffset)
	}
	f.seekPosition = position
	return nil
}

func (f *OpenFile) Tell() uint64 {
	return f.seekPosition
}

// Read reads from the seek position and advances it.
func (f *OpenFile) Read(p []byte) (int, error) {
	n, err := f.ReadAt(p, f.seekPosition)
	f.seekPosition += uint64(n)
	return n, err
}

// Write writes at the seek position and advances it.
func (f *OpenFile) Write(p []byte) (int, error) {
	n, err := f.WriteAt(p, f.seekPosition)
	f.seekPosition += uint64(n)
	return n, err
}

// span clamps [pos, pos+len) to the file and returns the byte count and the
// sector range it covers.
func (f *OpenFile) span(n int, pos uint64) (uint64, uint64, uint64) {
	length := f.Length()
	if n == 0 || pos >= length {
		return 0, 0, 0
	}
	numBytes := uint64(n)
	if util.SumOverflows(pos, numBytes) || pos+numBytes > length {
		numBytes = length - pos
	}
	ss := f.hdr.SectorSize()
	first := pos / ss
	last := (pos + numBytes - 1) / ss
	return numBytes, first, last
}

func (f *OpenFile) readSectors(first, last uint64) ([]byte, error) {
	ss := f.hdr.SectorSize()
	buf := make([]byte, (last-first+1)*ss)
	for i := first; i <= last; i++ {
		off := (i - first) * ss
		if err := f.d.ReadTo(f.hdr.ByteToSector(i*ss), buf[off:off+ss]); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// ReadAt copies up to len(p) bytes starting at pos; reads stop at the end of
// the file.
func (f *OpenFile) ReadAt(p []byte, pos uint64) (int, error) {
	numBytes, first, last := f.span(len(p), pos)
	if numBytes == 0 {
		return 0, nil
	}
	util.DPrintf(10, "ReadAt: %d bytes at %d of sector %d\n", numBytes, pos, f.sector)
	buf, err := f.readSectors(first, last)
	if err != nil {
		return 0, fmt.Errorf("read file %d: %w", f.sector, err)
	}
	start := pos - first*f.hdr.SectorSize()
	return copy(p, buf[start:start+numBytes]), nil
}

// WriteAt copies up to len(p) bytes to pos; writes past the end of the file
// are truncated.
func (f *OpenFile) WriteAt(p []byte, pos uint64) (int, error) {
	numBytes, first, last := f.span(len(p), pos)
	if numBytes == 0 {
		return 0, nil
	}
	util.DPrintf(10, "WriteAt: %d bytes at %d of sector %d\n", numBytes, pos, f.sector)
	ss := f.hdr.SectorSize()
	// Only the partial first and last sectors need their old contents.
	buf := make([]byte, (last-first+1)*ss)
	if pos%ss != 0 {
		if err := f.d.ReadTo(f.hdr.ByteToSector(first*ss), buf[:ss]); err != nil {
			return 0, fmt.Errorf("write file %d: %w", f.sector, err)
		}
	}
	if end := pos + numBytes; end%ss != 0 && (last != first || pos%ss == 0) {
		off := (last - first) * ss
		if err := f.d.ReadTo(f.hdr.ByteToSector(last*ss), buf[off:off+ss]); err != nil {
			return 0, fmt.Errorf("write file %d: %w", f.sector, err)
		}
	}
	start := pos - first*ss
	copy(buf[start:start+numBytes], p)
	for i := first; i <= last; i++ {
		off := (i - first) * ss
		if err := f.d.Write(f.hdr.ByteToSector(i*ss), buf[off:off+ss]); err != nil {
			return 0, fmt.Errorf("write file %d: %w", f.sector, err)
		}
	}
	return int(numBytes), nil
}
