package disk

import (
	gdisk "github.com/tchajed/goose/machine/disk"
)

var _ Disk = (*gooseDisk)(nil)

// gooseDisk exposes a goose machine disk, whose sectors are gdisk.BlockSize
// bytes and whose operations panic instead of returning errors.
type gooseDisk struct {
	d gdisk.Disk
}

func FromGoose(d gdisk.Disk) Disk {
	return &gooseDisk{d: d}
}

func (d *gooseDisk) ReadTo(a uint64, buf Block) error {
	if err := checkAccess(d, a, buf); err != nil {
		return err
	}
	copy(buf, d.d.Read(a))
	return nil
}

func (d *gooseDisk) Read(a uint64) (Block, error) {
	return readBlock(d, a)
}

func (d *gooseDisk) Write(a uint64, v Block) error {
	if err := checkAccess(d, a, v); err != nil {
		return err
	}
	d.d.Write(a, v)
	return nil
}

func (d *gooseDisk) Size() uint64 {
	return d.d.Size()
}

func (d *gooseDisk) SectorSize() uint64 {
	return gdisk.BlockSize
}

func (d *gooseDisk) Barrier() error {
	d.d.Barrier()
	return nil
}

func (d *gooseDisk) Close() error {
	d.d.Close()
	return nil
}
