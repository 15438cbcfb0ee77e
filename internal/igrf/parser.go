package igrf

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// Parse reads an IAGA-distribution coefficient file (e.g. igrf13coeffs.txt)
// and returns the model set it describes.
//
// The format is line-oriented whitespace-separated ASCII: `#` comment
// lines, a `c/s` row naming each column's kind (DGRF, IGRF, SV), a `g/h`
// row naming each column's epoch, then one row per (g|h, n, m) coefficient
// with one value per column. Unparsable cells are skipped with a warning
// and their slot stays zero; the files are sparse and right-padded, so
// this is the only locally recovered failure. Structural problems return
// ErrMalformedFile.
func Parse(r io.Reader, logger *slog.Logger) (*ModelSet, error) {
	var (
		models     []Model
		cIdx       int
		epochCount int
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)

		switch fields[0] {
		case "c/s":
			for _, tok := range fields[1:] {
				kind := parseKind(tok)
				if kind == KindUnknown {
					continue // "deg", "ord" header tokens
				}
				models = append(models, Model{Kind: kind})
			}

		case "g/h":
			for _, tok := range fields[1:] {
				epoch, ok := parseEpoch(tok)
				if !ok {
					continue // "n", "m" header tokens
				}
				if epochCount >= len(models) {
					return nil, fmt.Errorf("%w: more epochs than kind columns (line %d)", ErrMalformedFile, lineNo)
				}
				models[epochCount].Epoch = epoch
				epochCount++
			}

		case "g", "h":
			if len(models) == 0 {
				return nil, fmt.Errorf("%w: coefficient row before c/s kind row (line %d)", ErrMalformedFile, lineNo)
			}
			if len(fields) < 3 {
				logger.Warn("skipping short coefficient row", "line", lineNo)
				continue
			}
			if cIdx >= CoefficientCount {
				return nil, fmt.Errorf("%w: more than %d coefficient rows", ErrMalformedFile, CoefficientCount)
			}
			for i, tok := range fields[3:] {
				if i >= len(models) {
					logger.Warn("ignoring extra coefficient column", "line", lineNo, "column", i)
					break
				}
				v, err := strconv.ParseFloat(tok, 64)
				if err != nil {
					logger.Warn("skipping unparsable coefficient cell",
						"line", lineNo, "column", i, "value", tok)
					continue
				}
				models[i].Coefficients[cIdx] = v
			}
			// The shared index advances for every coefficient row so a bad
			// cell cannot shift every later row in its column.
			cIdx++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading coefficient file: %w", err)
	}

	if len(models) == 0 {
		return nil, fmt.Errorf("%w: no c/s kind row", ErrMalformedFile)
	}
	if epochCount != len(models) {
		return nil, fmt.Errorf("%w: %d epochs for %d kind columns", ErrMalformedFile, epochCount, len(models))
	}
	if cIdx == 0 {
		return nil, fmt.Errorf("%w: no coefficient rows", ErrMalformedFile)
	}

	set := &ModelSet{Models: models}
	if err := validate(set); err != nil {
		return nil, err
	}
	return set, nil
}

// validate enforces the set invariants: at most one SV column and only in
// last position, and strictly increasing main-field epochs.
func validate(s *ModelSet) error {
	for i, m := range s.Models {
		if m.Kind == KindSV && i != len(s.Models)-1 {
			return fmt.Errorf("%w: SV column must be last (found at column %d)", ErrMalformedFile, i)
		}
	}
	main := s.mainField()
	for i := 1; i < len(main); i++ {
		if main[i].Epoch <= main[i-1].Epoch {
			return fmt.Errorf("%w: epochs not strictly increasing (%.1f after %.1f)",
				ErrMalformedFile, main[i].Epoch, main[i-1].Epoch)
		}
	}
	return nil
}

func parseKind(tok string) ModelKind {
	switch tok {
	case "DGRF":
		return KindDGRF
	case "IGRF":
		return KindIGRF
	case "SV":
		return KindSV
	default:
		return KindUnknown
	}
}

// parseEpoch accepts `yyyy.y` and the SV range form `yyyy-yy`, of which
// only the lower bound is used.
func parseEpoch(tok string) (float64, bool) {
	if len(tok) < len("yyyy.y") {
		return 0, false
	}
	if i := strings.IndexByte(tok[1:], '-'); i >= 0 {
		tok = tok[:i+1]
	}
	epoch, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}
	return epoch, true
}
