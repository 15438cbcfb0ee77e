package igrf

import (
	"bytes"
	_ "embed"
	"io"
	"log/slog"
	"sync"
)

// The IGRF-13 distribution table: definitive columns 1900-2015, the
// predictive 2020 column, and the 2020-25 secular-variation block.
//
//go:embed igrf13coeffs.txt
var igrf13Table []byte

var (
	defaultOnce sync.Once
	defaultSet  *ModelSet
)

// Default returns the built-in IGRF-13 model set. The embedded table is
// parsed once on first use; no I/O happens at call time. The returned set
// is shared and must not be modified.
func Default() *ModelSet {
	defaultOnce.Do(func() {
		discard := slog.New(slog.NewTextHandler(io.Discard, nil))
		set, err := Parse(bytes.NewReader(igrf13Table), discard)
		if err != nil {
			panic("igrf: embedded IGRF-13 table is corrupt: " + err.Error())
		}
		set.Source = "embedded"
		defaultSet = set
	})
	return defaultSet
}
