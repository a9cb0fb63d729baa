// Package geometry answers pointing, visibility and occupancy questions
// over an interpolation bank and turns them into GTI lists.
//
// A Service holds no mutable state; every method is a function of the bank
// it was built with and may be called concurrently.
package geometry

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/num/quat"

	"github.com/GRID-datagroup/GRID-Data-tools/internal/gti"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/interp"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/metrics"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/transform"
)

var (
	// ErrAttitude reports a quaternion or detector direction that cannot be
	// normalised.
	ErrAttitude = errors.New("geometry: degenerate attitude")
	// ErrBudget reports a request for more samples than allowed.
	ErrBudget = errors.New("geometry: sample budget exceeded")
)

// FluxLookup returns the SAA flux at a ground-track point. *hia.Index satisfies it.
type FluxLookup interface {
	FluxAt(lat, lon float64) float64
}

// Service composes an interpolation bank with interval extraction.
type Service struct {
	bank    *interp.Bank
	flux    FluxLookup
	workers int
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithFlux adds SAA flux to Track points.
func WithFlux(f FluxLookup) Option { return func(s *Service) { s.flux = f } }

// WithWorkers sets the default PointingParallel pool size.
func WithWorkers(n int) Option { return func(s *Service) { s.workers = n } }

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// New returns a Service over bank.
func New(bank *interp.Bank, opts ...Option) *Service {
	s := &Service{
		bank:    bank,
		workers: 4,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.workers < 1 {
		s.workers = 1
	}
	return s
}

// Bank returns the underlying interpolation bank.
func (s *Service) Bank() *interp.Bank { return s.bank }

// Pointing returns the sky direction of the detector axis dir (spacecraft
// body frame) at each time. The interpolated quaternion is normalised and
// read with Q1 as the scalar part.
func (s *Service) Pointing(times []float64, dir [3]float64) ([]transform.RADec, error) {
	v, err := unitVector(dir)
	if err != nil {
		return nil, err
	}
	out := make([]transform.RADec, len(times))
	for i, t := range times {
		d, err := s.pointingAt(t, v)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

func (s *Service) pointingAt(t float64, v quat.Number) (transform.RADec, error) {
	q, err := s.bank.Quaternion(t)
	if err != nil {
		return transform.RADec{}, err
	}
	r := quat.Number{Real: q[0], Imag: q[1], Jmag: q[2], Kmag: q[3]}
	n := quat.Abs(r)
	if n == 0 || math.IsNaN(n) {
		return transform.RADec{}, fmt.Errorf("%w: zero quaternion at t=%v", ErrAttitude, t)
	}
	r = quat.Scale(1/n, r)
	rot := quat.Mul(quat.Mul(r, v), quat.Conj(r))
	return transform.CartesianToRADec([3]float64{rot.Imag, rot.Jmag, rot.Kmag}), nil
}

func unitVector(dir [3]float64) (quat.Number, error) {
	v := quat.Number{Imag: dir[0], Jmag: dir[1], Kmag: dir[2]}
	n := quat.Abs(v)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return quat.Number{}, fmt.Errorf("%w: detector direction %v", ErrAttitude, dir)
	}
	return quat.Scale(1/n, v), nil
}

// Geocenter returns the direction of the Earth's center at each time.
func (s *Service) Geocenter(times []float64) ([]transform.RADec, error) {
	out := make([]transform.RADec, len(times))
	for i, t := range times {
		g, err := s.bank.Geocenter(t)
		if err != nil {
			return nil, err
		}
		out[i] = g
	}
	return out, nil
}

// EarthAngularRadius returns the Earth's angular radius in degrees at each time.
func (s *Service) EarthAngularRadius(times []float64) ([]float64, error) {
	out := make([]float64, len(times))
	for i, t := range times {
		r, err := s.bank.EarthHalfAngle(t)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// SunVisibilityIntervals returns the intervals during which the Sun is
// above the Earth limb, sampled at times.
func (s *Service) SunVisibilityIntervals(times []float64) (gti.List, error) {
	mask, err := s.mask(times, s.bank.SunVisible)
	if err != nil {
		return nil, err
	}
	return s.extract("sun", times, mask)
}

// SAAIntervals returns the intervals during which the ground track is
// inside the SAA, sampled at times.
func (s *Service) SAAIntervals(times []float64) (gti.List, error) {
	mask, err := s.mask(times, s.bank.SAAOccupied)
	if err != nil {
		return nil, err
	}
	return s.extract("saa", times, mask)
}

// GoodTimeIntervals returns the intervals during which the Sun is visible
// and the spacecraft is outside the SAA.
func (s *Service) GoodTimeIntervals(times []float64) (gti.List, error) {
	sunMask, err := s.mask(times, s.bank.SunVisible)
	if err != nil {
		return nil, err
	}
	saaMask, err := s.mask(times, s.bank.SAAOccupied)
	if err != nil {
		return nil, err
	}
	good := make([]bool, len(times))
	for i := range good {
		good[i] = sunMask[i] && !saaMask[i]
	}
	return s.extract("good", times, good)
}

func (s *Service) mask(times []float64, flag func(float64) (bool, error)) ([]bool, error) {
	out := make([]bool, len(times))
	for i, t := range times {
		v, err := flag(t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *Service) extract(kind string, times []float64, mask []bool) (gti.List, error) {
	list, err := gti.Extract(times, mask)
	if err != nil {
		return nil, err
	}
	metrics.SetGTIDuration(kind, list.Duration())
	s.logger.Debug("gti extracted", "kind", kind, "samples", len(times), "intervals", len(list))
	return list, nil
}

// TrackPoint is the ground-track state at one instant.
type TrackPoint struct {
	Time       float64 `json:"time"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Altitude   float64 `json:"altitude"`
	SunVisible bool    `json:"sun_visible"`
	InSAA      bool    `json:"in_saa"`
	Flux       float64 `json:"flux,omitempty"`
}

// Track samples the ground track at times.
func (s *Service) Track(times []float64) ([]TrackPoint, error) {
	out := make([]TrackPoint, len(times))
	for i, t := range times {
		p, err := s.trackAt(t)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// TrackAt samples the ground track at a single time.
func (s *Service) TrackAt(t float64) (TrackPoint, error) { return s.trackAt(t) }

func (s *Service) trackAt(t float64) (TrackPoint, error) {
	lat, err := s.bank.Latitude(t)
	if err != nil {
		return TrackPoint{}, err
	}
	lon, err := s.bank.Longitude(t)
	if err != nil {
		return TrackPoint{}, err
	}
	alt, err := s.bank.Altitude(t)
	if err != nil {
		return TrackPoint{}, err
	}
	sunVis, err := s.bank.SunVisible(t)
	if err != nil {
		return TrackPoint{}, err
	}
	inSAA, err := s.bank.SAAOccupied(t)
	if err != nil {
		return TrackPoint{}, err
	}
	p := TrackPoint{
		Time:       t,
		Latitude:   lat,
		Longitude:  lon,
		Altitude:   alt,
		SunVisible: sunVis,
		InSAA:      inSAA,
	}
	if s.flux != nil {
		p.Flux = s.flux.FluxAt(lat, lon)
	}
	return p, nil
}

// Times returns the sample grid start, start+step, ... up to and including
// end when it falls on the grid. It fails when the grid would exceed limit
// points (limit <= 0 disables the check).
func Times(start, end, step float64, limit int) ([]float64, error) {
	if !(step > 0) || math.IsInf(step, 0) {
		return nil, fmt.Errorf("%w: step must be positive, got %v", gti.ErrValidation, step)
	}
	if math.IsNaN(start) || math.IsNaN(end) || end < start {
		return nil, fmt.Errorf("%w: invalid range [%v, %v]", gti.ErrValidation, start, end)
	}
	n := math.Floor((end-start)/step+1e-9) + 1
	if limit > 0 && n > float64(limit) {
		return nil, fmt.Errorf("%w: %.0f samples exceeds limit %d", ErrBudget, n, limit)
	}
	out := make([]float64, int(n))
	for i := range out {
		out[i] = min(start+float64(i)*step, end)
	}
	return out, nil
}
