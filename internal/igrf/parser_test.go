package igrf

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const miniTable = `# minimal two-epoch table with SV
c/s deg ord DGRF IGRF SV
g/h n m 2010.0 2015.0 2015-20
g 1 0 -29496.6 -29441.5 10.3
g 1 1 -1586.4 -1501.8 18.1
h 1 1 4944.3 4796.0 -26.6
g 2 0 -2396.1 -2445.9 -8.7
`

func TestParseMiniTable(t *testing.T) {
	set, err := Parse(strings.NewReader(miniTable), testLogger())
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	if len(set.Models) != 3 {
		t.Fatalf("parsed %d columns, want 3", len(set.Models))
	}
	if set.Models[0].Kind != KindDGRF || set.Models[1].Kind != KindIGRF || set.Models[2].Kind != KindSV {
		t.Errorf("kinds = %s/%s/%s, want DGRF/IGRF/SV",
			set.Models[0].Kind, set.Models[1].Kind, set.Models[2].Kind)
	}
	if set.Models[0].Epoch != 2010 || set.Models[1].Epoch != 2015 {
		t.Errorf("epochs = %.1f/%.1f, want 2010/2015", set.Models[0].Epoch, set.Models[1].Epoch)
	}
	// The SV range form keeps only the lower bound.
	if set.Models[2].Epoch != 2015 {
		t.Errorf("SV epoch = %.1f, want 2015 (lower bound of 2015-20)", set.Models[2].Epoch)
	}

	// Rows land at consecutive coefficient indices in file order.
	wantCol0 := []float64{-29496.6, -1586.4, 4944.3, -2396.1}
	for i, want := range wantCol0 {
		if got := set.Models[0].Coefficients[i]; got != want {
			t.Errorf("c[%d] = %v, want %v", i, got, want)
		}
	}
	// Unwritten slots stay zero.
	if set.Models[0].Coefficients[4] != 0 {
		t.Errorf("c[4] = %v, want 0", set.Models[0].Coefficients[4])
	}
}

func TestParseSkipsBadCellsWithoutShifting(t *testing.T) {
	// A garbage cell in one column must not shift that column's later
	// rows: the shared index advances for every row.
	table := `c/s deg ord DGRF IGRF SV
g/h n m 2010.0 2015.0 2015-20
g 1 0 -29496.6 ?????? 10.3
g 1 1 -1586.4 -1501.8 18.1
`
	set, err := Parse(strings.NewReader(table), testLogger())
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if set.Models[1].Coefficients[0] != 0 {
		t.Errorf("bad cell slot = %v, want 0", set.Models[1].Coefficients[0])
	}
	if set.Models[1].Coefficients[1] != -1501.8 {
		t.Errorf("row after bad cell = %v, want -1501.8 (index must not shift)", set.Models[1].Coefficients[1])
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty input", ""},
		{"comments only", "# nothing\n# here\n"},
		{"no kind row", "g/h n m 2010.0\ng 1 0 -29496.6\n"},
		{"no coefficient rows", "c/s deg ord DGRF\ng/h n m 2010.0\n"},
		{"epoch count mismatch", "c/s deg ord DGRF IGRF\ng/h n m 2010.0\ng 1 0 1 2\n"},
		{"SV not last", "c/s deg ord SV DGRF\ng/h n m 2010-15 2015.0\ng 1 0 1 2\n"},
		{"epochs not increasing", "c/s deg ord DGRF IGRF\ng/h n m 2015.0 2010.0\ng 1 0 1 2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input), testLogger())
			if !errors.Is(err, ErrMalformedFile) {
				t.Errorf("Parse error = %v, want ErrMalformedFile", err)
			}
		})
	}
}

func TestDefaultSet(t *testing.T) {
	set := Default()

	if len(set.Models) != 26 {
		t.Fatalf("default set has %d columns, want 26", len(set.Models))
	}
	first, last := set.EpochSpan()
	if first != 1900 || last != 2020 {
		t.Errorf("EpochSpan() = (%.1f, %.1f), want (1900, 2020)", first, last)
	}
	if !set.HasSV() {
		t.Fatal("default set must carry an SV block")
	}

	// Spot-check well-known dipole coefficients.
	if got := set.Models[0].Coefficients[0]; got != -31543 {
		t.Errorf("g(1,0) at 1900 = %v, want -31543", got)
	}
	m2020 := set.Models[24]
	if m2020.Epoch != 2020 || m2020.Coefficients[0] != -29404.8 {
		t.Errorf("2020 column: epoch %.1f g(1,0)=%v, want 2020 / -29404.8", m2020.Epoch, m2020.Coefficients[0])
	}
	sv := set.Models[25]
	if sv.Kind != KindSV || sv.Coefficients[0] != 5.7 {
		t.Errorf("SV column: kind %s g(1,0) rate=%v, want SV / 5.7", sv.Kind, sv.Coefficients[0])
	}

	// Default() returns the same shared instance.
	if Default() != set {
		t.Error("Default() must return a single shared set")
	}
}

func TestWriteIAGARoundTrip(t *testing.T) {
	orig := Default()

	var buf bytes.Buffer
	if err := orig.WriteIAGA(&buf); err != nil {
		t.Fatalf("WriteIAGA error: %v", err)
	}

	reparsed, err := Parse(bytes.NewReader(buf.Bytes()), testLogger())
	if err != nil {
		t.Fatalf("re-parse error: %v", err)
	}

	if len(reparsed.Models) != len(orig.Models) {
		t.Fatalf("round trip column count = %d, want %d", len(reparsed.Models), len(orig.Models))
	}
	for i := range orig.Models {
		if reparsed.Models[i].Kind != orig.Models[i].Kind {
			t.Errorf("column %d kind = %s, want %s", i, reparsed.Models[i].Kind, orig.Models[i].Kind)
		}
		if reparsed.Models[i].Epoch != orig.Models[i].Epoch {
			t.Errorf("column %d epoch = %v, want %v", i, reparsed.Models[i].Epoch, orig.Models[i].Epoch)
		}
		if reparsed.Models[i].Coefficients != orig.Models[i].Coefficients {
			t.Errorf("column %d coefficients changed across round trip", i)
		}
	}
}
