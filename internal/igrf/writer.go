package igrf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// WriteIAGA serializes the set in the IAGA distribution layout so that
// re-parsing the output reproduces the same coefficients. Only snapshot
// kinds (DGRF, IGRF, SV) are serializable; synthesized models are not part
// of a set on disk.
func (s *ModelSet) WriteIAGA(w io.Writer) error {
	main := s.mainField()
	if len(main) == 0 {
		return ErrEmptyModelSet
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# International Geomagnetic Reference Field Schmidt semi-normalised spherical harmonic coefficients")
	fmt.Fprintln(bw, "# units nanoTesla for main-field columns, nanoTesla/year for secular variation (SV)")

	fmt.Fprint(bw, "c/s deg ord")
	for _, m := range s.Models {
		switch m.Kind {
		case KindDGRF, KindIGRF, KindSV:
			fmt.Fprintf(bw, " %s", m.Kind)
		default:
			return fmt.Errorf("cannot serialize snapshot of kind %s", m.Kind)
		}
	}
	fmt.Fprintln(bw)

	fmt.Fprint(bw, "g/h n m")
	for _, m := range main {
		fmt.Fprintf(bw, " %.1f", m.Epoch)
	}
	if sv := s.sv(); sv != nil {
		// SV columns are written as the 5-year window they cover; the
		// parser reads back the lower bound.
		lower := int(sv.Epoch)
		fmt.Fprintf(bw, " %d-%02d", lower, (lower+5)%100)
	}
	fmt.Fprintln(bw)

	cIdx := 0
	for n := 1; n <= MaxDegree; n++ {
		for m := 0; m <= n; m++ {
			if err := writeRow(bw, s.Models, "g", n, m, cIdx); err != nil {
				return err
			}
			cIdx++
			if m > 0 {
				if err := writeRow(bw, s.Models, "h", n, m, cIdx); err != nil {
					return err
				}
				cIdx++
			}
		}
	}
	return bw.Flush()
}

func writeRow(w io.Writer, models []Model, gh string, n, m, cIdx int) error {
	if _, err := fmt.Fprintf(w, "%s %d %d", gh, n, m); err != nil {
		return err
	}
	for i := range models {
		if _, err := fmt.Fprintf(w, " %s", strconv.FormatFloat(models[i].Coefficients[cIdx], 'g', -1, 64)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}
