// Package filehdr implements the per-file header (inode) stored in exactly
// one sector.
//
// A header records the file's length in bytes and the sector holding each
// sector-sized piece of its data. Headers only address data directly, so a
// file can hold at most NumDirect sectors; files never grow after creation.
package filehdr

import (
	"errors"
	"fmt"
	"io"

	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-sectorfs/bitmap"
	"github.com/mit-pdos/go-sectorfs/common"
	"github.com/mit-pdos/go-sectorfs/disk"
	"github.com/mit-pdos/go-sectorfs/util"
)

const (
	HDRMETA = uint64(16) // numBytes and numSectors
)

var (
	ErrTooLarge = errors.New("file too large for header")
	ErrNoSpace  = errors.New("not enough free sectors")
)

// NumDirect returns how many data sectors a header addresses on a device
// with the given sector size.
func NumDirect(sectorSize uint64) uint64 {
	return (sectorSize - HDRMETA) / 8
}

// MaxFileSize returns the largest file a header can describe.
func MaxFileSize(sectorSize uint64) uint64 {
	return NumDirect(sectorSize) * sectorSize
}

type FileHeader struct {
	sectorSize  uint64
	numBytes    uint64
	numSectors  uint64
	dataSectors []common.Sector
}

func MkFileHeader(sectorSize uint64) *FileHeader {
	return &FileHeader{
		sectorSize:  sectorSize,
		dataSectors: make([]common.Sector, NumDirect(sectorSize)),
	}
}

// Fetch reads the header stored at sector.
func Fetch(d disk.Disk, sector common.Sector) (*FileHeader, error) {
	hdr := MkFileHeader(d.SectorSize())
	if err := hdr.FetchFrom(d, sector); err != nil {
		return nil, err
	}
	return hdr, nil
}

// Allocate claims data sectors for a fileSize-byte file from freeMap.
// Nothing is claimed when it fails.
func (hdr *FileHeader) Allocate(freeMap *bitmap.Bitmap, fileSize uint64) error {
	numSectors := util.RoundUp(fileSize, hdr.sectorSize)
	if numSectors > uint64(len(hdr.dataSectors)) {
		return fmt.Errorf("%d bytes needs %d sectors, header holds %d: %w",
			fileSize, numSectors, len(hdr.dataSectors), ErrTooLarge)
	}
	if freeMap.NumClear() < numSectors {
		return fmt.Errorf("%d sectors needed, %d free: %w",
			numSectors, freeMap.NumClear(), ErrNoSpace)
	}
	hdr.numBytes = fileSize
	hdr.numSectors = numSectors
	for i := uint64(0); i < numSectors; i++ {
		s, err := freeMap.FindAndSet()
		if err != nil {
			// NumClear said there was room.
			panic("Allocate")
		}
		hdr.dataSectors[i] = s
	}
	util.DPrintf(5, "Allocate: %d bytes -> %v\n", fileSize, hdr.dataSectors[:numSectors])
	return nil
}

// Deallocate returns the data sectors to freeMap.
func (hdr *FileHeader) Deallocate(freeMap *bitmap.Bitmap) {
	for _, s := range hdr.dataSectors[:hdr.numSectors] {
		if !freeMap.Test(s) || common.Reserved(s) {
			panic(fmt.Errorf("Deallocate: sector %d not allocated", s))
		}
		freeMap.Clear(s)
	}
}

func (hdr *FileHeader) encode() disk.Block {
	enc := marshal.NewEnc(hdr.sectorSize)
	enc.PutInt(hdr.numBytes)
	enc.PutInt(hdr.numSectors)
	enc.PutInts(hdr.dataSectors)
	return enc.Finish()
}

// FetchFrom loads the header from sector.
func (hdr *FileHeader) FetchFrom(d disk.Disk, sector common.Sector) error {
	blk, err := d.Read(sector)
	if err != nil {
		return fmt.Errorf("fetch header %d: %w", sector, err)
	}
	dec := marshal.NewDec(blk)
	hdr.numBytes = dec.GetInt()
	hdr.numSectors = dec.GetInt()
	hdr.dataSectors = dec.GetInts(NumDirect(hdr.sectorSize))
	if hdr.numSectors > uint64(len(hdr.dataSectors)) {
		return fmt.Errorf("fetch header %d: %d sectors: %w", sector, hdr.numSectors, ErrTooLarge)
	}
	return nil
}

// WriteBack stores the header at sector.
func (hdr *FileHeader) WriteBack(d disk.Disk, sector common.Sector) error {
	if err := d.Write(sector, hdr.encode()); err != nil {
		return fmt.Errorf("write header %d: %w", sector, err)
	}
	return nil
}

// ByteToSector returns the sector holding byte offset of the file.
func (hdr *FileHeader) ByteToSector(offset uint64) common.Sector {
	return hdr.dataSectors[offset/hdr.sectorSize]
}

// FileLength returns the file size in bytes.
func (hdr *FileHeader) FileLength() uint64 {
	return hdr.numBytes
}

func (hdr *FileHeader) NumSectors() uint64 {
	return hdr.numSectors
}

func (hdr *FileHeader) SectorSize() uint64 {
	return hdr.sectorSize
}

// DataSectors returns a copy of the sectors holding the file's data.
func (hdr *FileHeader) DataSectors() []common.Sector {
	return append([]common.Sector(nil), hdr.dataSectors[:hdr.numSectors]...)
}

func (hdr *FileHeader) Print(w io.Writer) {
	fmt.Fprintf(w, "FileHeader contents.  File size: %d.  File blocks:\n", hdr.numBytes)
	for _, s := range hdr.dataSectors[:hdr.numSectors] {
		fmt.Fprintf(w, "%d ", s)
	}
	fmt.Fprint(w, "\n")
}
