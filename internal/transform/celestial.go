// Package transform provides the coordinate conversions the geometry engine
// consumes: Cartesian directions to right ascension/declination, WGS-84
// geodetic conversions, sidereal time and a sub-satellite point for
// Earth-inertial positions.
//
// All angles crossing the package boundary are in degrees; Cartesian
// vectors are in meters unless stated otherwise.
package transform

import (
	"math"

	"github.com/soniakeys/meeus/v3/angle"
	"github.com/soniakeys/unit"
	"gonum.org/v1/gonum/floats"
)

// RADec is an equatorial direction in degrees. RA lies in [0, 360).
type RADec struct {
	RA  float64 `json:"ra"`
	Dec float64 `json:"dec"`
}

// CartesianToRADec converts a direction vector (any length) to RA/Dec.
// A zero vector maps to RA=0, Dec=0.
func CartesianToRADec(v [3]float64) RADec {
	n := floats.Norm(v[:], 2)
	if n == 0 {
		return RADec{}
	}
	ra := math.Atan2(v[1], v[0]) * 180 / math.Pi
	if ra < 0 {
		ra += 360
	}
	dec := math.Asin(clamp(v[2]/n, -1, 1)) * 180 / math.Pi
	return RADec{RA: ra, Dec: dec}
}

// RADecToCartesian returns the unit vector of an RA/Dec direction.
func RADecToCartesian(d RADec) [3]float64 {
	x, y, z := RADecRToCartesian(d, 1)
	return [3]float64{x, y, z}
}

// RADecRToCartesian converts a direction at distance r to Cartesian coordinates.
func RADecRToCartesian(d RADec, r float64) (x, y, z float64) {
	sinRA, cosRA := math.Sincos(d.RA * math.Pi / 180)
	sinDec, cosDec := math.Sincos(d.Dec * math.Pi / 180)
	return r * cosRA * cosDec, r * sinRA * cosDec, r * sinDec
}

// GeocenterRADec returns the direction of the Earth's center as seen from
// a spacecraft at pos (Earth-inertial meters).
func GeocenterRADec(pos [3]float64) RADec {
	return CartesianToRADec([3]float64{-pos[0], -pos[1], -pos[2]})
}

// EarthHalfAngle returns the angular radius of the Earth in degrees seen
// from the given altitude above a sphere of radius earthRadius (meters).
func EarthHalfAngle(altM, earthRadius float64) float64 {
	return math.Asin(clamp(earthRadius/(earthRadius+altM), -1, 1)) * 180 / math.Pi
}

// Separation returns the great-circle angle between two directions in degrees.
func Separation(a, b RADec) float64 {
	s := angle.Sep(
		unit.AngleFromDeg(a.RA), unit.AngleFromDeg(a.Dec),
		unit.AngleFromDeg(b.RA), unit.AngleFromDeg(b.Dec),
	)
	return s.Deg()
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
