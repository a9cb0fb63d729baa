// Package sun provides the apparent Sun direction used for Sun visibility.
package sun

import (
	"github.com/soniakeys/meeus/v3/solar"
	"github.com/soniakeys/unit"

	"github.com/GRID-datagroup/GRID-Data-tools/internal/met"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/transform"
)

// Model returns the geocentric direction of the Sun at a MET instant.
type Model interface {
	Direction(metSec float64) transform.RADec
}

// Meeus is the default Model: the apparent Sun of Meeus ch. 25
// (low accuracy, about 0.01 degree).
type Meeus struct{}

// Direction implements Model.
func (Meeus) Direction(metSec float64) transform.RADec {
	α, δ := solar.ApparentEquatorial(met.JDE(metSec))
	ra := unit.Angle(α).Deg()
	if ra < 0 {
		ra += 360
	}
	return transform.RADec{RA: ra, Dec: δ.Deg()}
}

// Fixed is a Model returning the same direction at every instant.
type Fixed transform.RADec

// Direction implements Model.
func (f Fixed) Direction(float64) transform.RADec { return transform.RADec(f) }

// Visible reports whether the Sun is outside the Earth disc seen from the
// spacecraft: the angle between the Sun and the geocenter exceeds the
// Earth's angular radius (degrees).
func Visible(sunDir, geocenter transform.RADec, earthHalfAngle float64) bool {
	return transform.Separation(sunDir, geocenter) > earthHalfAngle
}
