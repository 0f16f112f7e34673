package common

// Sector identifies one fixed-size block on the device.
type Sector = uint64

const (
	// Well-known header sectors, located on boot-up.
	FreeMapSector   Sector = 0
	DirectorySector Sector = 1

	NULLSECTOR Sector = ^Sector(0)
)

const (
	BitsInByte uint64 = 8

	SectorSize        uint64 = 128
	NumSectors        uint64 = 1024
	NumDirEntries     uint64 = 10
	MaxOpenFiles      uint64 = 20
	PathSeparator            = '/'
	PathSeparatorText        = "/"
)

// FreeMapFileSize is the byte length of the bitmap file on a device with
// numSectors sectors.
func FreeMapFileSize(numSectors uint64) uint64 {
	return (numSectors + BitsInByte - 1) / BitsInByte
}

// Reserved reports whether s is one of the header sectors that are never freed.
func Reserved(s Sector) bool {
	return s == FreeMapSector || s == DirectorySector
}
