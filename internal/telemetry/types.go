package telemetry

import (
	"context"
	"errors"
	"fmt"
)

// ErrValidation reports telemetry that violates the series invariants.
var ErrValidation = errors.New("telemetry: invalid series")

// Sample is one decoded row of the position/attitude record.
type Sample struct {
	Time            float64    // MET seconds
	Position        [3]float64 // meters, Earth-inertial (J2000)
	Quaternion      [4]float64 // Q1..Q4 as stored; not necessarily unit norm
	Latitude        float64    // degrees
	Longitude       float64    // degrees
	Altitude        float64    // meters
	AngularVelocity [3]float64 // rad/s
}

// Series is an immutable, time-ordered sample table.
// It holds at least two samples with strictly increasing times.
type Series struct {
	samples []Sample
}

// NewSeries validates samples and returns a Series that owns a copy of them.
func NewSeries(samples []Sample) (*Series, error) {
	if len(samples) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 samples, got %d", ErrValidation, len(samples))
	}
	for i := 1; i < len(samples); i++ {
		// Negated comparison also rejects NaN timestamps.
		if !(samples[i].Time > samples[i-1].Time) {
			return nil, fmt.Errorf("%w: time not strictly increasing at index %d (%v after %v)",
				ErrValidation, i, samples[i].Time, samples[i-1].Time)
		}
	}
	own := make([]Sample, len(samples))
	copy(own, samples)
	return &Series{samples: own}, nil
}

// Len returns the number of samples.
func (s *Series) Len() int { return len(s.samples) }

// At returns the i-th sample.
func (s *Series) At(i int) Sample { return s.samples[i] }

// Start returns the first sample time.
func (s *Series) Start() float64 { return s.samples[0].Time }

// End returns the last sample time.
func (s *Series) End() float64 { return s.samples[len(s.samples)-1].Time }

// Times returns a copy of the sample times.
func (s *Series) Times() []float64 {
	ts := make([]float64, len(s.samples))
	for i, smp := range s.samples {
		ts[i] = smp.Time
	}
	return ts
}

// Samples returns a copy of the samples.
func (s *Series) Samples() []Sample {
	out := make([]Sample, len(s.samples))
	copy(out, s.samples)
	return out
}

// Source yields a validated telemetry series. Implementations own all I/O;
// the geometry engine depends only on this interface.
type Source interface {
	Samples(ctx context.Context) (*Series, error)
}
