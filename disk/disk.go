package disk

import (
	"errors"
	"fmt"
)

// Block is a sector-sized buffer
type Block = []byte

var (
	ErrOutOfBounds = errors.New("sector out of bounds")
	ErrBlockSize   = errors.New("buffer is not sector-sized")
)

// Disk provides access to a logical sector-based device
type Disk interface {
	// Read reads a sector by number
	//
	// Expects a < Size().
	Read(a uint64) (Block, error)

	// ReadTo reads the sector at a and stores the result in b
	//
	// Expects a < Size() and len(b) == SectorSize().
	ReadTo(a uint64, b Block) error

	// Write updates a sector by number
	//
	// Expects a < Size() and len(v) == SectorSize().
	Write(a uint64, v Block) error

	// Size reports how big the disk is, in sectors
	Size() uint64

	// SectorSize reports the size of one sector in bytes
	SectorSize() uint64

	// Barrier ensures data is persisted.
	//
	// When it returns, all outstanding writes are guaranteed to be durably on
	// disk
	Barrier() error

	// Close releases any resources used by the disk and makes it unusable.
	Close() error
}

func checkAccess(d Disk, a uint64, b Block) error {
	if a >= d.Size() {
		return fmt.Errorf("sector %d of %d: %w", a, d.Size(), ErrOutOfBounds)
	}
	if uint64(len(b)) != d.SectorSize() {
		return fmt.Errorf("%d bytes, want %d: %w", len(b), d.SectorSize(), ErrBlockSize)
	}
	return nil
}

func readBlock(d Disk, a uint64) (Block, error) {
	buf := make(Block, d.SectorSize())
	if err := d.ReadTo(a, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
