package disk

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gdisk "github.com/tchajed/goose/machine/disk"
)

func pattern(sz uint64, seed byte) Block {
	b := make(Block, sz)
	for i := range b {
		b[i] = seed + byte(i)
	}
	return b
}

func checkDisk(t *testing.T, d Disk, numBlocks uint64) {
	t.Helper()
	assert := assert.New(t)
	sz := d.SectorSize()
	assert.Equal(numBlocks, d.Size())

	blk, err := d.Read(3)
	require.NoError(t, err)
	assert.Equal(make(Block, sz), blk, "fresh sectors read as zero")

	x := pattern(sz, 7)
	require.NoError(t, d.Write(3, x))
	blk, err = d.Read(3)
	require.NoError(t, err)
	assert.Equal(x, blk)

	x[0] = 0xff
	blk, err = d.Read(3)
	require.NoError(t, err)
	assert.NotEqual(x[0], blk[0], "disk must not alias caller buffers")

	buf := make(Block, sz)
	require.NoError(t, d.ReadTo(3, buf))
	assert.Equal(blk, buf)

	assert.ErrorIs(d.Write(numBlocks, make(Block, sz)), ErrOutOfBounds)
	assert.ErrorIs(d.ReadTo(numBlocks, buf), ErrOutOfBounds)
	assert.ErrorIs(d.Write(0, make(Block, sz-1)), ErrBlockSize)
	assert.NoError(d.Barrier())
}

func TestMemDisk(t *testing.T) {
	d := NewMemDisk(16, 128)
	checkDisk(t, d, 16)
	assert.NoError(t, d.Close())
}

func TestFileDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	d, err := NewFileDisk(path, 16, 128)
	require.NoError(t, err)
	checkDisk(t, d, 16)
	require.NoError(t, d.Close())

	d, err = NewFileDisk(path, 16, 128)
	require.NoError(t, err)
	defer d.Close()
	blk, err := d.Read(3)
	require.NoError(t, err)
	assert.Equal(t, pattern(128, 7), blk, "contents survive reopen")
}

func TestBadgerDisk(t *testing.T) {
	d, err := NewBadgerDisk("", 16, 128)
	require.NoError(t, err)
	defer d.Close()
	checkDisk(t, d, 16)
}

func TestBadgerDiskPersistent(t *testing.T) {
	dir := t.TempDir()
	d, err := NewBadgerDisk(dir, 16, 64)
	require.NoError(t, err)
	require.NoError(t, d.Write(5, pattern(64, 1)))
	require.NoError(t, d.Barrier())
	require.NoError(t, d.Close())

	d, err = NewBadgerDisk(dir, 16, 64)
	require.NoError(t, err)
	defer d.Close()
	blk, err := d.Read(5)
	require.NoError(t, err)
	assert.Equal(t, pattern(64, 1), blk)
}

func TestGooseDisk(t *testing.T) {
	d := FromGoose(gdisk.NewMemDisk(16))
	assert.Equal(t, gdisk.BlockSize, d.SectorSize())
	checkDisk(t, d, 16)
}
