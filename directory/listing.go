package directory

import (
	"fmt"
	"io"
	"strings"

	"github.com/mit-pdos/go-sectorfs/common"
)

// Listing is one line of a directory listing.
type Listing struct {
	Name   string
	Kind   Kind
	Sector common.Sector
	Size   uint64
	Depth  int
}

// DisplayName is the entry name with a trailing separator for directories.
func (l Listing) DisplayName() string {
	if l.Kind == KindDir && l.Name != common.PathSeparatorText {
		return l.Name + common.PathSeparatorText
	}
	return l.Name
}

// FprintListing writes one line per entry, indented two spaces per level.
func FprintListing(w io.Writer, ls []Listing) {
	for _, l := range ls {
		fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", l.Depth), l.DisplayName())
	}
}
