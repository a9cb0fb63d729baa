package interp

// Quantity names a continuous function of time held by a Bank.
type Quantity string

const (
	Position           Quantity = "position"
	Orientation        Quantity = "orientation"
	AngularVelocity    Quantity = "angular_velocity"
	Latitude           Quantity = "latitude"
	Longitude          Quantity = "longitude"
	Altitude           Quantity = "altitude"
	Velocity           Quantity = "velocity"
	EarthHalfAngle     Quantity = "earth_half_angle"
	GeocenterDirection Quantity = "geocenter_direction"
	SunVisible         Quantity = "sun_visible"
	SAAOccupied        Quantity = "saa_occupied"
)

// Quantities lists every quantity a Bank answers, in a stable order.
func Quantities() []Quantity {
	return []Quantity{
		Position, Orientation, AngularVelocity,
		Latitude, Longitude, Altitude,
		Velocity, EarthHalfAngle, GeocenterDirection,
		SunVisible, SAAOccupied,
	}
}

// Extrapolates reports whether q answers outside telemetry coverage by
// extending the nearest end segment.
func (q Quantity) Extrapolates() bool {
	switch q {
	case Velocity, SunVisible, SAAOccupied:
		return true
	}
	return false
}

// Dims returns the number of components of q, or 0 for an unknown quantity.
func (q Quantity) Dims() int {
	switch q {
	case Orientation:
		return 4
	case Position, AngularVelocity, Velocity:
		return 3
	case GeocenterDirection:
		return 2
	case Latitude, Longitude, Altitude, EarthHalfAngle, SunVisible, SAAOccupied:
		return 1
	}
	return 0
}
