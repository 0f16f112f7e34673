package openfile

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mit-pdos/go-sectorfs/bitmap"
	"github.com/mit-pdos/go-sectorfs/disk"
	"github.com/mit-pdos/go-sectorfs/filehdr"
)

func data(sz int) []byte {
	d := make([]byte, sz)
	rand.Read(d)
	return d
}

// mkFile writes a header for a size-byte file at sector 1 of a fresh disk.
func mkFile(t *testing.T, size uint64) (disk.Disk, *OpenFile) {
	t.Helper()
	d := disk.NewMemDisk(64, 128)
	freeMap := bitmap.MkBitmap(64)
	freeMap.Mark(0)
	freeMap.Mark(1)
	hdr := filehdr.MkFileHeader(128)
	require.NoError(t, hdr.Allocate(freeMap, size))
	require.NoError(t, hdr.WriteBack(d, 1))
	f, err := Open(d, 1)
	require.NoError(t, err)
	return d, f
}

func TestWriteRead(t *testing.T) {
	assert := assert.New(t)
	_, f := mkFile(t, 100)
	assert.Equal(uint64(100), f.Length())
	assert.Equal(NoFd, f.Fd())

	x := data(50)
	n, err := f.Write(x)
	require.NoError(t, err)
	assert.Equal(50, n)
	assert.Equal(uint64(50), f.Tell())

	require.NoError(t, f.Seek(0))
	buf := make([]byte, 50)
	n, err = f.Read(buf)
	require.NoError(t, err)
	assert.Equal(50, n)
	assert.Equal(x, buf)
}

func TestUnalignedAcrossSectors(t *testing.T) {
	assert := assert.New(t)
	_, f := mkFile(t, 1000)
	all := data(1000)
	n, err := f.WriteAt(all, 0)
	require.NoError(t, err)
	assert.Equal(1000, n)

	patch := data(300)
	n, err = f.WriteAt(patch, 100)
	require.NoError(t, err)
	assert.Equal(300, n)
	copy(all[100:], patch)

	buf := make([]byte, 1000)
	n, err = f.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(1000, n)
	assert.Equal(all, buf, "neighbouring bytes preserved")

	small := make([]byte, 7)
	n, err = f.ReadAt(small, 250)
	require.NoError(t, err)
	assert.Equal(7, n)
	assert.Equal(all[250:257], small)
}

func TestNoGrowth(t *testing.T) {
	assert := assert.New(t)
	_, f := mkFile(t, 100)
	n, err := f.WriteAt(data(80), 50)
	require.NoError(t, err)
	assert.Equal(50, n, "write truncated at end of file")

	n, err = f.WriteAt(data(10), 100)
	require.NoError(t, err)
	assert.Equal(0, n)

	n, err = f.ReadAt(make([]byte, 10), 95)
	require.NoError(t, err)
	assert.Equal(5, n)
}

func TestSeek(t *testing.T) {
	_, f := mkFile(t, 10)
	assert.NoError(t, f.Seek(10))
	assert.ErrorIs(t, f.Seek(11), ErrInvalidOffset)
	assert.Equal(t, uint64(10), f.Tell())
	n, err := f.Read(make([]byte, 4))
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestReopenSeesData(t *testing.T) {
	d, f := mkFile(t, 300)
	x := data(300)
	_, err := f.WriteAt(x, 0)
	require.NoError(t, err)

	f2, err := Open(d, 1)
	require.NoError(t, err)
	buf := make([]byte, 300)
	_, err = f2.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, x, buf)
}
