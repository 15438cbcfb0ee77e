package field

import "math"

// Components are the scalar quantities derived from a NED field vector.
// Intensities are in the vector's unit, angles in radians.
type Components struct {
	North       float64 `json:"north"`
	East        float64 `json:"east"`
	Down        float64 `json:"down"`
	Total       float64 `json:"total"`
	Horizontal  float64 `json:"horizontal"`
	Inclination float64 `json:"inclination_rad"`
	Declination float64 `json:"declination_rad"`
}

// Components derives total and horizontal intensity, inclination (dip,
// positive downward) and declination (positive eastward) from the vector.
func (v Vector) Components() Components {
	horizontal := math.Sqrt(v.North*v.North + v.East*v.East)
	return Components{
		North:       v.North,
		East:        v.East,
		Down:        v.Down,
		Total:       math.Sqrt(v.North*v.North + v.East*v.East + v.Down*v.Down),
		Horizontal:  horizontal,
		Inclination: math.Atan2(v.Down, horizontal),
		Declination: math.Atan2(v.East, v.North),
	}
}

// InclinationDeg returns the dip angle in degrees.
func (c Components) InclinationDeg() float64 {
	return c.Inclination * 180 / math.Pi
}

// DeclinationDeg returns the declination in degrees.
func (c Components) DeclinationDeg() float64 {
	return c.Declination * 180 / math.Pi
}
