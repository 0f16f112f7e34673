package fdtable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mit-pdos/go-sectorfs/disk"
	"github.com/mit-pdos/go-sectorfs/filehdr"
	"github.com/mit-pdos/go-sectorfs/openfile"
)

func mkFiles(n int) []*openfile.OpenFile {
	fs := make([]*openfile.OpenFile, n)
	for i := range fs {
		fs[i] = &openfile.OpenFile{}
	}
	return fs
}

func TestAllocUntilExhausted(t *testing.T) {
	assert := assert.New(t)
	tbl := MkTable(4)
	seen := make(map[int]bool)
	for _, f := range mkFiles(4) {
		fd, err := tbl.Alloc(f)
		require.NoError(t, err)
		assert.Equal(fd, f.Fd(), "file tagged with its descriptor")
		assert.False(seen[fd], "descriptors are distinct")
		seen[fd] = true
	}
	assert.Equal(4, tbl.Len())

	extra := &openfile.OpenFile{}
	extra.SetFd(openfile.NoFd)
	_, err := tbl.Alloc(extra)
	assert.ErrorIs(err, ErrExhausted)
	assert.Equal(openfile.NoFd, extra.Fd())
}

func TestRoundRobin(t *testing.T) {
	assert := assert.New(t)
	tbl := MkTable(4)
	fs := mkFiles(6)
	for i := 0; i < 3; i++ {
		fd, err := tbl.Alloc(fs[i])
		require.NoError(t, err)
		assert.Equal(i, fd)
	}
	_, err := tbl.Release(0)
	require.NoError(t, err)

	fd, err := tbl.Alloc(fs[3])
	require.NoError(t, err)
	assert.Equal(3, fd, "scan continues after the last assigned slot")

	fd, err = tbl.Alloc(fs[4])
	require.NoError(t, err)
	assert.Equal(0, fd, "scan wraps to the freed slot")

	_, err = tbl.Alloc(fs[5])
	assert.ErrorIs(err, ErrExhausted)
}

func TestGetRelease(t *testing.T) {
	assert := assert.New(t)
	tbl := MkTable(2)
	f := &openfile.OpenFile{}
	fd, err := tbl.Alloc(f)
	require.NoError(t, err)

	got, err := tbl.Get(fd)
	require.NoError(t, err)
	assert.Same(f, got)

	_, err = tbl.Get(1)
	assert.ErrorIs(err, ErrInvalid)
	_, err = tbl.Get(-1)
	assert.ErrorIs(err, ErrInvalid)
	_, err = tbl.Get(2)
	assert.ErrorIs(err, ErrInvalid)

	got, err = tbl.Release(fd)
	require.NoError(t, err)
	assert.Same(f, got)
	assert.Equal(openfile.NoFd, f.Fd())
	_, err = tbl.Release(fd)
	assert.ErrorIs(err, ErrInvalid, "double close")
	assert.Equal(0, tbl.Len())
}

func TestReleaseAll(t *testing.T) {
	tbl := MkTable(3)
	for _, f := range mkFiles(3) {
		_, err := tbl.Alloc(f)
		require.NoError(t, err)
	}
	tbl.ReleaseAll()
	assert.Equal(t, 0, tbl.Len())
}

func TestReleaseSector(t *testing.T) {
	assert := assert.New(t)
	d := disk.NewMemDisk(8, 128)
	for _, s := range []uint64{2, 3} {
		require.NoError(t, filehdr.MkFileHeader(128).WriteBack(d, s))
	}
	open := func(s uint64) *openfile.OpenFile {
		f, err := openfile.Open(d, s)
		require.NoError(t, err)
		return f
	}
	tbl := MkTable(4)
	a1, a2, b := open(2), open(2), open(3)
	for _, f := range []*openfile.OpenFile{a1, b, a2} {
		_, err := tbl.Alloc(f)
		require.NoError(t, err)
	}

	assert.Equal(2, tbl.ReleaseSector(2))
	assert.Equal(1, tbl.Len())
	assert.Equal(openfile.NoFd, a1.Fd())
	assert.Equal(openfile.NoFd, a2.Fd())
	got, err := tbl.Get(b.Fd())
	require.NoError(t, err)
	assert.Same(b, got)

	assert.Equal(0, tbl.ReleaseSector(2))
}
