package field

import (
	"fmt"
	"strings"
	"time"

	"github.com/geomag/geomagd/internal/geodesy"
	"github.com/geomag/geomagd/internal/igrf"
)

// Unit selects the output scaling applied to a field vector. The evaluator
// always works in nanotesla; units are a post-multiplication.
type Unit int

const (
	NanoTesla Unit = iota
	MicroTesla
	Tesla
	Gauss
	SI   // alias of Tesla
	CGS  // alias of Gauss
	MKS  // alias of Tesla
	MKSA // alias of Tesla
)

// Scale returns the nanotesla-to-unit multiplier.
func (u Unit) Scale() float64 {
	switch u {
	case MicroTesla:
		return 1e-3
	case Tesla, SI, MKS, MKSA:
		return 1e-9
	case Gauss, CGS:
		return 1e-5
	default:
		return 1
	}
}

// Symbol returns the unit symbol for display.
func (u Unit) Symbol() string {
	switch u {
	case MicroTesla:
		return "uT"
	case Tesla, SI, MKS, MKSA:
		return "T"
	case Gauss, CGS:
		return "G"
	default:
		return "nT"
	}
}

// ParseUnit maps a unit name or symbol to a Unit. Matching ignores case.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(s) {
	case "", "nt", "nanotesla":
		return NanoTesla, nil
	case "ut", "microtesla":
		return MicroTesla, nil
	case "t", "tesla":
		return Tesla, nil
	case "g", "gauss":
		return Gauss, nil
	case "si":
		return SI, nil
	case "cgs":
		return CGS, nil
	case "mks":
		return MKS, nil
	case "mksa":
		return MKSA, nil
	default:
		return NanoTesla, fmt.Errorf("unknown unit %q", s)
	}
}

// Scaled returns the vector converted to the given unit.
func (v Vector) Scaled(u Unit) Vector {
	s := u.Scale()
	return Vector{North: v.North * s, East: v.East * s, Down: v.Down * s}
}

// EvaluateScaled computes the field vector in the requested unit.
func EvaluateScaled(set *igrf.ModelSet, t time.Time, pos geodesy.Position, u Unit) (Vector, error) {
	v, err := Evaluate(set, t, pos)
	if err != nil {
		return Vector{}, err
	}
	return v.Scaled(u), nil
}
