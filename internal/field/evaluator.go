// Package field evaluates the IGRF spherical-harmonic series and produces
// magnetic flux density vectors in the observer's North-East-Down frame.
//
// The evaluation runs a Schmidt quasi-normalized associated Legendre
// recurrence over the triangular (n, m) layout, accumulates the spherical
// components (B_r, B_θ, B_φ), and rotates the result by the δ angle between
// the geocentric and geodetic local verticals. All buffers are fixed-size
// arrays, so a single evaluation performs no heap allocation.
package field

import (
	"math"
	"time"

	"github.com/geomag/geomagd/internal/geodesy"
	"github.com/geomag/geomagd/internal/igrf"
)

// EarthRadiusM is the IGRF reference radius in meters.
const EarthRadiusM = 6371.2e3

// pSize is the triangular Legendre table length for degree MaxDegree.
const pSize = (igrf.MaxDegree + 1) * (igrf.MaxDegree + 2) / 2

// Vector is a magnetic flux density vector in the local North-East-Down
// frame, in nanotesla.
type Vector struct {
	North float64 `json:"north"`
	East  float64 `json:"east"`
	Down  float64 `json:"down"`
}

// Evaluate computes the field vector for one instant and position using
// the given model set. The synthesized model is local to the call; use an
// Evaluator to memoize it across calls sharing an epoch.
func Evaluate(set *igrf.ModelSet, t time.Time, pos geodesy.Position) (Vector, error) {
	model, err := set.SynthesizeAt(geodesy.FractionalYears(t))
	if err != nil {
		return Vector{}, err
	}
	geom, err := pos.LocalGeometry()
	if err != nil {
		return Vector{}, err
	}
	return evaluate(&model, geom), nil
}

// evaluate runs the harmonic synthesis for a fully populated model.
//
// The loop walks the triangular table in the coefficient-file order: n
// advances and m resets to zero whenever m exceeds n, and the (R/r)^(n+2)
// ratio picks up one more factor of R/r per degree. Entries (0,0), (1,0)
// and (1,1) seed the recurrence; diagonal entries (n == m) use the
// single-term rule, all others the two-term rule.
func evaluate(model *igrf.Model, g geodesy.LocalGeometry) Vector {
	r := g.RadiusM
	cosTheta, sinTheta := g.CosTheta, g.SinTheta

	var cosPhi, sinPhi [igrf.MaxDegree]float64
	for m := 1; m <= igrf.MaxDegree; m++ {
		cosPhi[m-1] = math.Cos(float64(m) * g.LonRad)
		sinPhi[m-1] = math.Sin(float64(m) * g.LonRad)
	}

	var p, dp [pSize]float64
	p[0] = 1
	p[2] = sinTheta
	dp[2] = cosTheta

	var bR, bT, bP float64
	ratio := (EarthRadiusM / r) * (EarthRadiusM / r)

	cIdx, n, m := 1, 0, 1
	for pIdx := 2; pIdx <= pSize; pIdx++ {
		if n < m {
			n++
			m = 0
			ratio *= EarthRadiusM / r
		}

		pLag0 := pIdx - 1
		if n == m && pLag0 != 2 {
			pLag1 := pIdx - n - 2
			cof := math.Sqrt(1 - 1/float64(2*m))
			p[pLag0] = cof * sinTheta * p[pLag1]
			dp[pLag0] = cof * (sinTheta*dp[pLag1] + cosTheta*p[pLag1])
		} else if pLag0 != 2 {
			pLag1 := pIdx - n - 1
			pLag2 := pIdx - 2*n
			norm := math.Sqrt(float64(n*n - m*m))
			cofL := float64(2*n-1) / norm
			cofR := math.Sqrt(float64((n-1)*(n-1)-m*m)) / norm
			p[pLag0] = cofL*cosTheta*p[pLag1] - cofR*p[pLag2]
			dp[pLag0] = cofL*(cosTheta*dp[pLag1]-sinTheta*p[pLag1]) - cofR*dp[pLag2]
		}

		if m == 0 {
			gCof := model.Coefficients[cIdx-1]
			cof := ratio * gCof
			bR += float64(n+1) * cof * p[pLag0]
			bT -= cof * dp[pLag0]
			cIdx++
		} else {
			gCof := model.Coefficients[cIdx-1]
			hCof := model.Coefficients[cIdx]
			cof := ratio * (gCof*cosPhi[m-1] + hCof*sinPhi[m-1])
			bR += float64(n+1) * cof * p[pLag0]
			bT -= cof * dp[pLag0]
			if sinTheta == 0 {
				// Azimuthal term degenerates at the poles; this form keeps
				// B_φ finite there.
				bP -= cosTheta * ratio * (hCof*cosPhi[m-1] - gCof*sinPhi[m-1]) * p[pLag0]
			} else {
				bP -= 1 / sinTheta * ratio * float64(m) * (hCof*cosPhi[m-1] - gCof*sinPhi[m-1]) * p[pLag0]
			}
			cIdx += 2
		}
		m++
	}

	// Rotate (B_r, B_θ, B_φ) into the geodetic observer's NED frame.
	return Vector{
		North: -bT*g.CosDelta - bR*g.SinDelta,
		East:  bP,
		Down:  bT*g.SinDelta - bR*g.CosDelta,
	}
}
