package transform

import (
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// WGS-84 ellipsoid parameters.
const (
	WGS84A  = 6378137.0             // semi-major axis (meters)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// GeodeticPoint holds a geodetic position (latitude/longitude in degrees, altitude in meters).
type GeodeticPoint struct {
	LatDeg, LonDeg, AltM float64
}

// GeodeticToECEF converts WGS-84 latitude/longitude (degrees) and altitude
// (meters) to ECEF meters. The fourth value is the distance from the Earth's center.
func GeodeticToECEF(latDeg, lonDeg, altM float64) (x, y, z, r float64) {
	lat := latDeg * math.Pi / 180.0
	lon := lonDeg * math.Pi / 180.0
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)

	// Radius of curvature in the prime vertical.
	N := WGS84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	x = (N + altM) * cosLat * cosLon
	y = (N + altM) * cosLat * sinLon
	z = (N*(1-wgs84E2) + altM) * sinLat
	r = math.Hypot((N+altM)*cosLat, z)
	return x, y, z, r
}

// ECEFToGeodetic converts ECEF coordinates (meters) to geodetic coordinates
// using the iterative Bowring method. Converges in 2-3 iterations for Earth orbits.
func ECEFToGeodetic(x, y, z float64) GeodeticPoint {
	lon := math.Atan2(y, x)
	p := math.Sqrt(x*x + y*y)

	lat := math.Atan2(z, p*(1-wgs84E2))
	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		N := WGS84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(z+wgs84E2*N*sinLat, p)
	}

	sinLat, cosLat := math.Sincos(lat)
	N := WGS84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - N
	} else {
		alt = math.Abs(z)/math.Abs(sinLat) - N*(1-wgs84E2)
	}

	return GeodeticPoint{
		LatDeg: lat * 180.0 / math.Pi,
		LonDeg: lon * 180.0 / math.Pi,
		AltM:   alt,
	}
}

// SubSatellitePoint returns the geodetic point below an Earth-inertial
// position (meters) at the given UTC time. Longitude is wrapped to (-180, 180].
func SubSatellitePoint(posM [3]float64, t time.Time) GeodeticPoint {
	gmst := satellite.ThetaG_JD(JulianDate(t))
	eci := satellite.Vector3{X: posM[0] / 1000, Y: posM[1] / 1000, Z: posM[2] / 1000}
	altKm, _, ll := satellite.ECIToLLA(eci, gmst)

	return GeodeticPoint{
		LatDeg: ll.Latitude * 180.0 / math.Pi,
		LonDeg: WrapLongitude(ll.Longitude * 180.0 / math.Pi),
		AltM:   altKm * 1000,
	}
}

// WrapLongitude maps any longitude in degrees onto (-180, 180].
func WrapLongitude(lon float64) float64 {
	lon = math.Mod(lon, 360)
	if lon <= -180 {
		lon += 360
	} else if lon > 180 {
		lon -= 360
	}
	return lon
}
