// Package bitmap keeps one bit per numbered item, set when the item is in
// use. The file system uses it for free sectors, where the bitmap itself is
// stored in an ordinary file, and for the slots of the descriptor table.
package bitmap

import (
	"errors"
	"fmt"
	"io"
	"math/bits"

	"github.com/mit-pdos/go-sectorfs/util"
)

const BitsInByte uint64 = 8

var ErrNoSpace = errors.New("no clear bit")

// File is the byte stream a persistent bitmap is loaded from and stored to.
type File interface {
	ReadAt(p []byte, off uint64) (int, error)
	WriteAt(p []byte, off uint64) (int, error)
}

type Bitmap struct {
	numBits uint64
	m       []byte
}

func MkBitmap(numBits uint64) *Bitmap {
	return &Bitmap{
		numBits: numBits,
		m:       make([]byte, util.RoundUp(numBits, BitsInByte)),
	}
}

// FetchBitmap loads a numBits bitmap from the start of f.
func FetchBitmap(f File, numBits uint64) (*Bitmap, error) {
	b := MkBitmap(numBits)
	if err := b.FetchFrom(f); err != nil {
		return nil, err
	}
	return b, nil
}

// NumBits returns the number of items tracked.
func (b *Bitmap) NumBits() uint64 {
	return b.numBits
}

// NumBytes returns the persisted size of the bitmap.
func (b *Bitmap) NumBytes() uint64 {
	return uint64(len(b.m))
}

func (b *Bitmap) check(n uint64) {
	if n >= b.numBits {
		panic(fmt.Errorf("bitmap: bit %d out of range %d", n, b.numBits))
	}
}

// Mark sets bit n.
func (b *Bitmap) Mark(n uint64) {
	b.check(n)
	b.m[n/BitsInByte] |= 1 << (n % BitsInByte)
}

// Clear clears bit n.
func (b *Bitmap) Clear(n uint64) {
	b.check(n)
	b.m[n/BitsInByte] &^= 1 << (n % BitsInByte)
}

// Test reports whether bit n is set.
func (b *Bitmap) Test(n uint64) bool {
	b.check(n)
	return b.m[n/BitsInByte]&(1<<(n%BitsInByte)) != 0
}

// FindFrom scans circularly starting at start for a clear bit, sets it and
// returns it.
func (b *Bitmap) FindFrom(start uint64) (uint64, error) {
	if b.numBits == 0 {
		return 0, ErrNoSpace
	}
	num := start % b.numBits
	for i := uint64(0); i < b.numBits; i++ {
		if !b.Test(num) {
			b.Mark(num)
			util.DPrintf(10, "FindFrom: s %d num %d\n", start, num)
			return num, nil
		}
		num++
		if num >= b.numBits {
			num = 0
		}
	}
	return 0, ErrNoSpace
}

// FindAndSet claims the lowest clear bit.
func (b *Bitmap) FindAndSet() (uint64, error) {
	return b.FindFrom(0)
}

func popCnt(b byte) uint64 {
	return uint64(bits.OnesCount8(b))
}

// NumClear returns the number of clear bits.
func (b *Bitmap) NumClear() uint64 {
	var used uint64
	for _, x := range b.m {
		used += popCnt(x)
	}
	return b.numBits - used
}

// FetchFrom replaces the contents of b with the bytes stored in f.
func (b *Bitmap) FetchFrom(f File) error {
	n, err := f.ReadAt(b.m, 0)
	if err != nil {
		return fmt.Errorf("bitmap fetch: %w", err)
	}
	if n != len(b.m) {
		return fmt.Errorf("bitmap fetch: short read %d of %d bytes", n, len(b.m))
	}
	return nil
}

// WriteBack stores b at the start of f.
func (b *Bitmap) WriteBack(f File) error {
	n, err := f.WriteAt(b.m, 0)
	if err != nil {
		return fmt.Errorf("bitmap write back: %w", err)
	}
	if n != len(b.m) {
		return fmt.Errorf("bitmap write back: short write %d of %d bytes", n, len(b.m))
	}
	return nil
}

// Print lists the set bits.
func (b *Bitmap) Print(w io.Writer) {
	fmt.Fprint(w, "Bitmap set:\n")
	for i := uint64(0); i < b.numBits; i++ {
		if b.Test(i) {
			fmt.Fprintf(w, "%d, ", i)
		}
	}
	fmt.Fprint(w, "\n")
}
