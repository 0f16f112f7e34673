package util

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Debug is the highest DPrintf level that is emitted.
var Debug uint64 = 1

// DPrintf logs a debug trace through the default slog logger when level is
// at most Debug.
func DPrintf(level uint64, format string, a ...interface{}) {
	if level > Debug {
		return
	}
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	slog.Debug(strings.TrimSuffix(fmt.Sprintf(format, a...), "\n"), "trace", level)
}

func RoundUp(n uint64, sz uint64) uint64 {
	return (n + sz - 1) / sz
}

// SumOverflows reports whether n + m wraps around.
func SumOverflows(n uint64, m uint64) bool {
	return n+m < n
}
