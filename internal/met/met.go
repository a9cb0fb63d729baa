// Package met converts GRID mission elapsed time (MET) to and from calendar time.
//
// MET counts seconds since 2018-01-01T00:00:00 UTC. Telemetry timestamps,
// interpolation queries and GTI bounds are all expressed in MET seconds.
package met

import (
	"fmt"
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// Epoch is the GRID MET reference instant.
var Epoch = time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)

// Launch is the GRID-01 orbit insertion date.
var Launch = time.Date(2018, 10, 29, 0, 0, 0, 0, time.UTC)

// deltaT is TT-UTC in seconds, used to turn UTC Julian dates into
// ephemeris Julian dates. Leap seconds after 2017 are not modelled.
const deltaT = 69.184

const secondsPerDay = 86400.0

// dateLayout is the yymmdd form used in GRID file names.
const dateLayout = "060102"

// ToTime converts MET seconds to a UTC time.
func ToTime(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return Epoch.Add(time.Duration(whole)*time.Second + time.Duration(frac*float64(time.Second)))
}

// FromTime converts a time to MET seconds.
func FromTime(t time.Time) float64 {
	d := t.UTC().Sub(Epoch)
	return d.Seconds()
}

// JD returns the UTC Julian date of a MET instant.
func JD(sec float64) float64 {
	return julian.TimeToJD(Epoch) + sec/secondsPerDay
}

// JDE returns the ephemeris (TT) Julian date of a MET instant.
func JDE(sec float64) float64 {
	return JD(sec) + deltaT/secondsPerDay
}

// DayNumber returns the number of whole UTC days between Epoch and t.
func DayNumber(t time.Time) int {
	return int(math.Floor(FromTime(t) / secondsPerDay))
}

// DateString formats t as yymmdd in UTC.
func DateString(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// DaysToDate returns the yymmdd date that lies the given number of days after Epoch.
func DaysToDate(days int) string {
	return DateString(Epoch.AddDate(0, 0, days))
}

// DateToDays parses a yymmdd date and returns its day number.
func DateToDays(s string) (int, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DayNumber(t), nil
}
