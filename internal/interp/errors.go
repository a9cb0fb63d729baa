package interp

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation reports invalid build input or an unknown quantity.
	ErrValidation = errors.New("interp: validation failed")
	// ErrOutOfRange reports a bounded query outside telemetry coverage.
	ErrOutOfRange = errors.New("interp: time out of range")
)

// OutOfRangeError describes a bounded query outside [Start, End].
type OutOfRangeError struct {
	Quantity Quantity
	T        float64
	Start    float64
	End      float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("interp: %s at t=%v outside coverage [%v, %v]", e.Quantity, e.T, e.Start, e.End)
}

// Unwrap lets errors.Is match ErrOutOfRange.
func (e *OutOfRangeError) Unwrap() error { return ErrOutOfRange }
