package disk

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-sectorfs/util"
)

var _ Disk = (*fileDisk)(nil)

type fileDisk struct {
	fd         int
	numBlocks  uint64
	sectorSize uint64
}

// NewFileDisk opens (or creates) a host file holding numBlocks sectors of
// sectorSize bytes each.
func NewFileDisk(path string, numBlocks uint64, sectorSize uint64) (Disk, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0666)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	var stat unix.Stat_t
	err = unix.Fstat(fd, &stat)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	want := int64(numBlocks * sectorSize)
	if (stat.Mode&unix.S_IFREG) != 0 && stat.Size != want {
		err = unix.Ftruncate(fd, want)
		if err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("truncate %s: %w", path, err)
		}
	}
	return &fileDisk{fd: fd, numBlocks: numBlocks, sectorSize: sectorSize}, nil
}

func (d *fileDisk) ReadTo(a uint64, buf Block) error {
	if err := checkAccess(d, a, buf); err != nil {
		return err
	}
	_, err := unix.Pread(d.fd, buf, int64(a*d.sectorSize))
	if err != nil {
		return fmt.Errorf("read sector %d: %w", a, err)
	}
	util.DPrintf(20, "read: %v\n", a)
	return nil
}

func (d *fileDisk) Read(a uint64) (Block, error) {
	return readBlock(d, a)
}

func (d *fileDisk) Write(a uint64, v Block) error {
	if err := checkAccess(d, a, v); err != nil {
		return err
	}
	_, err := unix.Pwrite(d.fd, v, int64(a*d.sectorSize))
	if err != nil {
		return fmt.Errorf("write sector %d: %w", a, err)
	}
	util.DPrintf(20, "write: %v\n", a)
	return nil
}

func (d *fileDisk) Size() uint64 {
	return d.numBlocks
}

func (d *fileDisk) SectorSize() uint64 {
	return d.sectorSize
}

func (d *fileDisk) Barrier() error {
	// NOTE: on macOS, this flushes to the drive but doesn't actually issue a
	// disk barrier; see https://golang.org/src/internal/poll/fd_fsync_darwin.go
	// for more details. The correct replacement is to issue a fcntl syscall with
	// cmd F_FULLFSYNC.
	err := unix.Fsync(d.fd)
	if err != nil {
		return fmt.Errorf("file sync failed: %w", err)
	}
	return nil
}

func (d *fileDisk) Close() error {
	return unix.Close(d.fd)
}

/////////////////////////

var _ Disk = (*memDisk)(nil)

type memDisk struct {
	l          *sync.RWMutex
	blocks     [][]byte
	sectorSize uint64
}

// NewMemDisk returns a zeroed in-memory disk.
func NewMemDisk(numBlocks uint64, sectorSize uint64) Disk {
	blocks := make([][]byte, numBlocks)
	for i := range blocks {
		blocks[i] = make([]byte, sectorSize)
	}
	return &memDisk{l: new(sync.RWMutex), blocks: blocks, sectorSize: sectorSize}
}

func (d *memDisk) ReadTo(a uint64, buf Block) error {
	if err := checkAccess(d, a, buf); err != nil {
		return err
	}
	d.l.RLock()
	defer d.l.RUnlock()
	copy(buf, d.blocks[a])
	return nil
}

func (d *memDisk) Read(a uint64) (Block, error) {
	return readBlock(d, a)
}

func (d *memDisk) Write(a uint64, v Block) error {
	if err := checkAccess(d, a, v); err != nil {
		return err
	}
	d.l.Lock()
	defer d.l.Unlock()
	copy(d.blocks[a], v)
	return nil
}

func (d *memDisk) Size() uint64 {
	// this never changes so we assume it's safe to run lock-free
	return uint64(len(d.blocks))
}

func (d *memDisk) SectorSize() uint64 { return d.sectorSize }

func (d *memDisk) Barrier() error { return nil }

func (d *memDisk) Close() error { return nil }
