package disk

import (
	"encoding/binary"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

var _ Disk = (*badgerDisk)(nil)

// badgerDisk stores one key per written sector. Sectors never written read
// back as zeroes, like a fresh device.
type badgerDisk struct {
	db         *badger.DB
	inMemory   bool
	numBlocks  uint64
	sectorSize uint64
}

// NewBadgerDisk opens a BadgerDB-backed device at dir. An empty dir keeps the
// whole device in memory.
func NewBadgerDisk(dir string, numBlocks uint64, sectorSize uint64) (Disk, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %q: %w", dir, err)
	}
	return &badgerDisk{
		db:         db,
		inMemory:   dir == "",
		numBlocks:  numBlocks,
		sectorSize: sectorSize,
	}, nil
}

func sectorKey(a uint64) []byte {
	key := make([]byte, 0, 7+8)
	key = append(key, "sector/"...)
	return binary.BigEndian.AppendUint64(key, a)
}

func (d *badgerDisk) ReadTo(a uint64, buf Block) error {
	if err := checkAccess(d, a, buf); err != nil {
		return err
	}
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sectorKey(a))
		if errors.Is(err, badger.ErrKeyNotFound) {
			clear(buf)
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			copy(buf, val)
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("read sector %d: %w", a, err)
	}
	return nil
}

func (d *badgerDisk) Read(a uint64) (Block, error) {
	return readBlock(d, a)
}

func (d *badgerDisk) Write(a uint64, v Block) error {
	if err := checkAccess(d, a, v); err != nil {
		return err
	}
	val := make([]byte, len(v))
	copy(val, v)
	err := d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sectorKey(a), val)
	})
	if err != nil {
		return fmt.Errorf("write sector %d: %w", a, err)
	}
	return nil
}

func (d *badgerDisk) Size() uint64 {
	return d.numBlocks
}

func (d *badgerDisk) SectorSize() uint64 {
	return d.sectorSize
}

func (d *badgerDisk) Barrier() error {
	if d.inMemory {
		return nil
	}
	return d.db.Sync()
}

func (d *badgerDisk) Close() error {
	return d.db.Close()
}
