// Package igrf holds the IGRF-13 Gauss coefficient tables and the time
// machinery that turns them into a model for an arbitrary instant:
// snapshot selection, linear interpolation between epochs, and linear
// extrapolation using the secular-variation block as an annual rate.
//
// Reference: https://www.ngdc.noaa.gov/IAGA/vmod/igrf.html
package igrf

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

const (
	// MaxDegree is the truncation degree of the spherical-harmonic series.
	MaxDegree = 13
	// CoefficientCount is the length of a snapshot's coefficient array:
	// MaxDegree*(MaxDegree+2) main-field terms plus one unused slot.
	CoefficientCount = MaxDegree*(MaxDegree+2) + 1
)

var (
	// ErrEmptyModelSet reports selection on a set with no snapshots.
	ErrEmptyModelSet = errors.New("model set is empty")
	// ErrEpochOutOfRange reports a requested instant the set cannot cover.
	ErrEpochOutOfRange = errors.New("epoch out of range")
	// ErrMalformedFile reports a coefficient file the parser could not
	// turn into a consistent model set.
	ErrMalformedFile = errors.New("malformed coefficient file")
)

// ModelKind classifies a coefficient snapshot.
type ModelKind int

const (
	KindUnknown ModelKind = iota
	// KindDGRF marks a definitive main-field snapshot.
	KindDGRF
	// KindIGRF marks a provisional/predictive main-field snapshot.
	KindIGRF
	// KindSV marks the secular-variation block: annual rates in nT/year
	// relative to the immediately preceding snapshot.
	KindSV
	// KindInterpolated and KindExtrapolated mark synthesized models.
	KindInterpolated
	KindExtrapolated
)

func (k ModelKind) String() string {
	switch k {
	case KindDGRF:
		return "DGRF"
	case KindIGRF:
		return "IGRF"
	case KindSV:
		return "SV"
	case KindInterpolated:
		return "Interpolated"
	case KindExtrapolated:
		return "Extrapolated"
	default:
		return "Unknown"
	}
}

// Model is one coefficient snapshot. Coefficients are stored in IAGA file
// row order: for each degree n from 1 to MaxDegree, g(n,0) followed by
// alternating g(n,m), h(n,m) pairs for m = 1..n. Units are nanotesla, or
// nanotesla/year for SV snapshots. The trailing slot is always zero.
type Model struct {
	Epoch        float64 // fractional year
	Kind         ModelKind
	Coefficients [CoefficientCount]float64
}

// ModelSet is an epoch-ordered sequence of snapshots. The only SV snapshot,
// if present, is the last element. A ModelSet is immutable after
// construction and safe to share across goroutines.
type ModelSet struct {
	Source   string
	LoadedAt time.Time
	Models   []Model
}

// sv returns the trailing secular-variation snapshot, or nil.
func (s *ModelSet) sv() *Model {
	if n := len(s.Models); n > 0 && s.Models[n-1].Kind == KindSV {
		return &s.Models[n-1]
	}
	return nil
}

// mainField returns the snapshots excluding the trailing SV block.
func (s *ModelSet) mainField() []Model {
	if s.sv() != nil {
		return s.Models[:len(s.Models)-1]
	}
	return s.Models
}

// EpochSpan returns the first and last main-field epochs of the set.
func (s *ModelSet) EpochSpan() (first, last float64) {
	main := s.mainField()
	if len(main) == 0 {
		return 0, 0
	}
	return main[0].Epoch, main[len(main)-1].Epoch
}

// HasSV reports whether the set carries a secular-variation block and can
// therefore extrapolate past its last main-field epoch.
func (s *ModelSet) HasSV() bool {
	return s.sv() != nil
}

// Select returns the pair of snapshots straddling the requested epoch: the
// smallest-index snapshot with epoch ≥ t as next and its predecessor as
// last. An epoch equal to the first snapshot's returns that snapshot as
// both elements of the pair. An epoch past every main-field snapshot is
// paired with the SV block, which signals extrapolation to the caller.
func (s *ModelSet) Select(epoch float64) (last, next *Model, err error) {
	main := s.mainField()
	if len(main) == 0 {
		return nil, nil, ErrEmptyModelSet
	}

	if epoch < main[0].Epoch {
		return nil, nil, fmt.Errorf("%w: %.3f precedes first snapshot epoch %.1f",
			ErrEpochOutOfRange, epoch, main[0].Epoch)
	}

	i := sort.Search(len(main), func(i int) bool { return main[i].Epoch >= epoch })
	if i == len(main) {
		sv := s.sv()
		if sv == nil {
			return nil, nil, fmt.Errorf("%w: %.3f is past last snapshot epoch %.1f and the set has no secular-variation block",
				ErrEpochOutOfRange, epoch, main[len(main)-1].Epoch)
		}
		return &main[len(main)-1], sv, nil
	}
	if i == 0 {
		// epoch == main[0].Epoch: the first snapshot is its own pair.
		return &main[0], &main[0], nil
	}
	return &main[i-1], &main[i], nil
}

// SynthesizeAt builds a fully populated model for the requested epoch by
// linear interpolation between the straddling snapshots, or by linear
// extrapolation from the last snapshot using the SV annual rates.
func (s *ModelSet) SynthesizeAt(epoch float64) (Model, error) {
	last, next, err := s.Select(epoch)
	if err != nil {
		return Model{}, err
	}

	m := Model{Epoch: epoch}
	if next.Kind == KindSV {
		dt := epoch - last.Epoch
		for k := range m.Coefficients {
			m.Coefficients[k] = last.Coefficients[k] + dt*next.Coefficients[k]
		}
		m.Kind = KindExtrapolated
		return m, nil
	}

	m.Kind = KindInterpolated
	// Snapshot epochs reproduce the snapshot exactly; the interpolation
	// arithmetic is not guaranteed bit-exact at its endpoints.
	if next.Epoch == last.Epoch || epoch == next.Epoch {
		m.Coefficients = next.Coefficients
		return m, nil
	}
	f := (epoch - last.Epoch) / (next.Epoch - last.Epoch)
	for k := range m.Coefficients {
		m.Coefficients[k] = last.Coefficients[k] + f*(next.Coefficients[k]-last.Coefficients[k])
	}
	return m, nil
}
