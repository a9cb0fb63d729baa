package interp

import "github.com/GRID-datagroup/GRID-Data-tools/internal/transform"

func (b *Bank) vec3(q Quantity, t float64) ([3]float64, error) {
	v, err := b.Query(q, t)
	if err != nil {
		return [3]float64{}, err
	}
	return [3]float64{v[0], v[1], v[2]}, nil
}

func (b *Bank) scalar(q Quantity, t float64) (float64, error) {
	v, err := b.Query(q, t)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// flag thresholds an interpolated 0/1 quantity at 0.5.
func (b *Bank) flag(q Quantity, t float64) (bool, error) {
	v, err := b.scalar(q, t)
	if err != nil {
		return false, err
	}
	return v >= 0.5, nil
}

// Position returns the Earth-inertial position in meters.
func (b *Bank) Position(t float64) ([3]float64, error) { return b.vec3(Position, t) }

// Velocity returns the Earth-inertial velocity in m/s. It extrapolates.
func (b *Bank) Velocity(t float64) ([3]float64, error) { return b.vec3(Velocity, t) }

// AngularVelocity returns the body rates in rad/s.
func (b *Bank) AngularVelocity(t float64) ([3]float64, error) { return b.vec3(AngularVelocity, t) }

// Quaternion returns the component-wise interpolated Q1..Q4, not normalised.
func (b *Bank) Quaternion(t float64) ([4]float64, error) {
	v, err := b.Query(Orientation, t)
	if err != nil {
		return [4]float64{}, err
	}
	return [4]float64{v[0], v[1], v[2], v[3]}, nil
}

func (b *Bank) Latitude(t float64) (float64, error)       { return b.scalar(Latitude, t) }
func (b *Bank) Longitude(t float64) (float64, error)      { return b.scalar(Longitude, t) }
func (b *Bank) Altitude(t float64) (float64, error)       { return b.scalar(Altitude, t) }
func (b *Bank) EarthHalfAngle(t float64) (float64, error) { return b.scalar(EarthHalfAngle, t) }

// Geocenter returns the direction of the Earth's center seen from the spacecraft.
func (b *Bank) Geocenter(t float64) (transform.RADec, error) {
	v, err := b.Query(GeocenterDirection, t)
	if err != nil {
		return transform.RADec{}, err
	}
	return transform.RADec{RA: v[0], Dec: v[1]}, nil
}

// SunVisible reports whether the Sun is above the Earth limb. It extrapolates.
func (b *Bank) SunVisible(t float64) (bool, error) { return b.flag(SunVisible, t) }

// SAAOccupied reports whether the ground track is inside the SAA. It extrapolates.
func (b *Bank) SAAOccupied(t float64) (bool, error) { return b.flag(SAAOccupied, t) }
