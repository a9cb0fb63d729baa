package transform

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/sidereal"
)

// JulianDate returns the Julian Date of t, taken as UT.
func JulianDate(t time.Time) float64 {
	return julian.TimeToJD(t.UTC())
}

// GMST returns Greenwich mean sidereal time in radians, [0, 2π).
// It is the IAU 1982 expression, so it agrees with SGP4's gstime.
func GMST(t time.Time) float64 {
	th := math.Mod(sidereal.Mean(JulianDate(t)).Rad(), 2*math.Pi)
	if th < 0 {
		th += 2 * math.Pi
	}
	return th
}
