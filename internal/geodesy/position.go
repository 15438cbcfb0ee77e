// Package geodesy provides position representations and the coordinate
// kernel for geomagnetic field evaluation.
//
// The field evaluator works in geocentric spherical coordinates (r, θ, λ)
// with θ the geocentric colatitude. Observers usually supply geodetic
// WGS-84 positions, so the kernel converts between the two and carries the
// δ rotation angle between the geodetic and geocentric local verticals,
// which is needed to project the spherical-frame field vector into the
// observer's North-East-Down frame.
//
// Reference: Langel, "Main Field" in Jacobs (ed.), Geomagnetism Vol. 1.
package geodesy

import (
	"errors"
	"fmt"
	"math"
)

// WGS-84 ellipsoid semi-axes (meters).
const (
	WGS84A = 6378137.0
	WGS84B = 6356752.3142
)

// ErrInvalidCoordinateKind reports a position whose frame the coordinate
// kernel does not support.
var ErrInvalidCoordinateKind = errors.New("invalid coordinate kind")

// CoordinateKind discriminates the frame a Position is expressed in.
type CoordinateKind int

const (
	// WGS84 is a geodetic position on the WGS-84 ellipsoid:
	// latitude/longitude plus ellipsoidal height in meters.
	WGS84 CoordinateKind = iota
	// GeocentricSpherical is a geocentric latitude/longitude plus radial
	// distance from Earth's center in meters.
	GeocentricSpherical
	// ECEF is an Earth-Centered Earth-Fixed cartesian position in meters.
	ECEF
)

// String returns the frame name for logs and error messages.
func (k CoordinateKind) String() string {
	switch k {
	case WGS84:
		return "WGS84"
	case GeocentricSpherical:
		return "GeocentricSpherical"
	case ECEF:
		return "ECEF"
	default:
		return fmt.Sprintf("CoordinateKind(%d)", int(k))
	}
}

// Position is a tagged position variant. The Kind discriminator is visible
// to the evaluator so it can choose the δ-rotation path. New frames extend
// the variant and define their rule in LocalGeometry.
type Position struct {
	Kind   CoordinateKind
	LatRad float64 // geodetic (WGS84) or geocentric latitude, radians
	LonRad float64 // longitude, radians
	// AltM is the ellipsoidal height for WGS84 positions and the geocentric
	// radius for GeocentricSpherical positions, in meters.
	AltM float64
	// Cartesian components, meters. Only meaningful for Kind == ECEF.
	X, Y, Z float64
}

// NewWGS84 creates a geodetic position. Latitude and longitude are in
// degrees, height in meters above the WGS-84 ellipsoid.
func NewWGS84(latDeg, lonDeg, heightM float64) Position {
	return Position{
		Kind:   WGS84,
		LatRad: latDeg * math.Pi / 180.0,
		LonRad: lonDeg * math.Pi / 180.0,
		AltM:   heightM,
	}
}

// NewGeocentricSpherical creates a geocentric spherical position. Latitude
// and longitude are in degrees, radius is the distance from Earth's center
// in meters.
func NewGeocentricSpherical(latDeg, lonDeg, radiusM float64) Position {
	return Position{
		Kind:   GeocentricSpherical,
		LatRad: latDeg * math.Pi / 180.0,
		LonRad: lonDeg * math.Pi / 180.0,
		AltM:   radiusM,
	}
}

// NewECEF creates a cartesian Earth-fixed position in meters.
func NewECEF(x, y, z float64) Position {
	return Position{Kind: ECEF, X: x, Y: y, Z: z}
}

// LocalGeometry holds the geocentric spherical geometry of a position
// together with the δ rotation between the geocentric and geodetic local
// verticals. CosTheta/SinTheta are the geocentric colatitude values, i.e.
// CosTheta = sin(geocentric latitude).
type LocalGeometry struct {
	RadiusM  float64
	LonRad   float64
	CosTheta float64
	SinTheta float64
	CosDelta float64
	SinDelta float64
}

// LocalGeometry resolves the position into the evaluation frame.
// Returns ErrInvalidCoordinateKind for frames the kernel does not know.
func (p Position) LocalGeometry() (LocalGeometry, error) {
	switch p.Kind {
	case GeocentricSpherical:
		return LocalGeometry{
			RadiusM:  p.AltM,
			LonRad:   p.LonRad,
			CosTheta: math.Sin(p.LatRad),
			SinTheta: math.Cos(p.LatRad),
			CosDelta: 1,
			SinDelta: 0,
		}, nil

	case ECEF:
		// Geocentric spherical form of the cartesian vector; the local
		// vertical is radial, so δ is the identity.
		rho := math.Sqrt(p.X*p.X + p.Y*p.Y)
		r := math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
		lat := math.Atan2(p.Z, rho)
		return LocalGeometry{
			RadiusM:  r,
			LonRad:   math.Atan2(p.Y, p.X),
			CosTheta: math.Sin(lat),
			SinTheta: math.Cos(lat),
			CosDelta: 1,
			SinDelta: 0,
		}, nil

	case WGS84:
		sinLat := math.Sin(p.LatRad)
		cosLat := math.Cos(p.LatRad)
		h := p.AltM

		aa := WGS84A * WGS84A
		bb := WGS84B * WGS84B

		// ρ is the geocentric distance to the ellipsoid surface point
		// under the observer; r the geocentric distance to the observer.
		rho2 := aa*cosLat*cosLat + bb*sinLat*sinLat
		rho := math.Sqrt(rho2)
		r := math.Sqrt((aa*aa*cosLat*cosLat+bb*bb*sinLat*sinLat)/rho2 + h*h + 2*h*rho)

		cosDelta := (h + rho) / r
		sinDelta := (aa - bb) / rho * cosLat * sinLat / r

		// Rotate the geodetic latitude trig values by δ to obtain the
		// geocentric colatitude trig values.
		return LocalGeometry{
			RadiusM:  r,
			LonRad:   p.LonRad,
			CosTheta: sinLat*cosDelta - cosLat*sinDelta,
			SinTheta: cosLat*cosDelta + sinLat*sinDelta,
			CosDelta: cosDelta,
			SinDelta: sinDelta,
		}, nil

	default:
		return LocalGeometry{}, fmt.Errorf("%w: %s", ErrInvalidCoordinateKind, p.Kind)
	}
}
