// Package interp reconstructs continuous-time spacecraft geometry from a
// telemetry series.
//
// A Bank is built once from a telemetry.Series and is read-only afterwards,
// so it may be shared by any number of goroutines. Every quantity is a
// piecewise-linear function of MET through per-sample values; queries at a
// sample time return that sample's value.
//
// Orientation is interpolated component-wise on the four stored quaternion
// components. Intermediate values are therefore not unit quaternions; callers
// that rotate vectors normalise first.
package interp

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/GRID-datagroup/GRID-Data-tools/internal/metrics"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/sun"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/telemetry"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/transform"
)

// Occupancy classifies a ground-track point. *hia.Index satisfies it.
type Occupancy interface {
	OccupiedAt(lat, lon float64) bool
}

type config struct {
	occupancy   Occupancy
	sunModel    sun.Model
	earthRadius float64
	logger      *slog.Logger
}

// Option configures Build.
type Option func(*config)

// WithOccupancy supplies the SAA classifier used for saa_occupied.
func WithOccupancy(o Occupancy) Option { return func(c *config) { c.occupancy = o } }

// WithSunModel overrides the Sun ephemeris used for sun_visible.
func WithSunModel(m sun.Model) Option { return func(c *config) { c.sunModel = m } }

// WithEarthRadius overrides the Earth radius (meters) used for earth_half_angle.
func WithEarthRadius(r float64) Option { return func(c *config) { c.earthRadius = r } }

// WithLogger sets the build logger.
func WithLogger(l *slog.Logger) Option { return func(c *config) { c.logger = l } }

// Bank holds one interpolant per quantity component.
type Bank struct {
	start, end float64
	samples    int
	hasOcc     bool
	channels   map[Quantity][]*channel
}

// Build derives every quantity from series and fits the interpolants.
func Build(series *telemetry.Series, opts ...Option) (*Bank, error) {
	cfg := config{
		sunModel:    sun.Meeus{},
		earthRadius: transform.WGS84A,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(&cfg)
	}

	if series == nil {
		return nil, fmt.Errorf("%w: nil telemetry series", ErrValidation)
	}
	if series.Len() < 2 {
		return nil, fmt.Errorf("%w: need at least 2 samples, got %d", ErrValidation, series.Len())
	}
	if !(cfg.earthRadius > 0) {
		return nil, fmt.Errorf("%w: earth radius must be positive, got %v", ErrValidation, cfg.earthRadius)
	}

	started := time.Now()
	xs := series.Times()
	for i := 1; i < len(xs); i++ {
		if !(xs[i] > xs[i-1]) {
			return nil, fmt.Errorf("%w: time not strictly increasing at index %d", ErrValidation, i)
		}
	}

	n := len(xs)
	cols := make(map[Quantity][][]float64, len(Quantities()))
	for _, q := range Quantities() {
		cc := make([][]float64, q.Dims())
		for k := range cc {
			cc[k] = make([]float64, n)
		}
		cols[q] = cc
	}

	if cfg.occupancy == nil {
		cfg.logger.Warn("no occupancy index configured, saa_occupied reads as zero")
	}

	sunVisible := 0
	saaOccupied := 0
	for i := 0; i < n; i++ {
		s := series.At(i)
		for k := 0; k < 3; k++ {
			cols[Position][k][i] = s.Position[k]
			cols[AngularVelocity][k][i] = s.AngularVelocity[k]
		}
		for k := 0; k < 4; k++ {
			cols[Orientation][k][i] = s.Quaternion[k]
		}
		cols[Latitude][0][i] = s.Latitude
		cols[Longitude][0][i] = s.Longitude
		cols[Altitude][0][i] = s.Altitude

		half := transform.EarthHalfAngle(s.Altitude, cfg.earthRadius)
		geo := transform.GeocenterRADec(s.Position)
		cols[EarthHalfAngle][0][i] = half
		cols[GeocenterDirection][0][i] = geo.RA
		cols[GeocenterDirection][1][i] = geo.Dec

		if sun.Visible(cfg.sunModel.Direction(s.Time), geo, half) {
			cols[SunVisible][0][i] = 1
			sunVisible++
		}
		if cfg.occupancy != nil && cfg.occupancy.OccupiedAt(s.Latitude, s.Longitude) {
			cols[SAAOccupied][0][i] = 1
			saaOccupied++
		}
	}
	for k := 0; k < 3; k++ {
		cols[Velocity][k] = gradient(xs, cols[Position][k])
	}

	b := &Bank{
		start:    xs[0],
		end:      xs[n-1],
		samples:  n,
		hasOcc:   cfg.occupancy != nil,
		channels: make(map[Quantity][]*channel, len(cols)),
	}
	for q, cc := range cols {
		chs := make([]*channel, len(cc))
		for k, ys := range cc {
			chs[k] = newChannel(xs, ys)
		}
		b.channels[q] = chs
	}

	elapsed := time.Since(started)
	metrics.ObserveBankBuild(elapsed)
	cfg.logger.Info("interpolation bank built",
		"samples", n,
		"start_met", b.start,
		"end_met", b.end,
		"sun_visible_samples", sunVisible,
		"saa_samples", saaOccupied,
		"duration_ms", elapsed.Milliseconds(),
	)
	return b, nil
}

// Start returns the first telemetry time.
func (b *Bank) Start() float64 { return b.start }

// End returns the last telemetry time.
func (b *Bank) End() float64 { return b.end }

// Samples returns the number of telemetry samples the bank was built from.
func (b *Bank) Samples() int { return b.samples }

// HasOccupancy reports whether saa_occupied is backed by an occupancy index.
func (b *Bank) HasOccupancy() bool { return b.hasOcc }

// Covers reports whether t lies inside telemetry coverage.
func (b *Bank) Covers(t float64) bool { return t >= b.start && t <= b.end }

// Query evaluates q at t.
func (b *Bank) Query(q Quantity, t float64) ([]float64, error) {
	chs, err := b.lookup(q)
	if err != nil {
		metrics.IncQuery(string(q), "invalid")
		return nil, err
	}
	if err := b.check(q, t); err != nil {
		metrics.IncQuery(string(q), "out_of_range")
		return nil, err
	}
	metrics.IncQuery(string(q), "ok")
	return eval(chs, t), nil
}

// QueryMany evaluates q at every t. It fails on the first time outside
// coverage for bounded quantities.
func (b *Bank) QueryMany(q Quantity, ts []float64) ([][]float64, error) {
	chs, err := b.lookup(q)
	if err != nil {
		metrics.IncQuery(string(q), "invalid")
		return nil, err
	}
	out := make([][]float64, len(ts))
	for i, t := range ts {
		if err := b.check(q, t); err != nil {
			metrics.IncQuery(string(q), "out_of_range")
			return nil, fmt.Errorf("time %d: %w", i, err)
		}
		out[i] = eval(chs, t)
	}
	metrics.IncQuery(string(q), "ok")
	return out, nil
}

func (b *Bank) lookup(q Quantity) ([]*channel, error) {
	chs, ok := b.channels[q]
	if !ok {
		return nil, fmt.Errorf("%w: unknown quantity %q", ErrValidation, q)
	}
	return chs, nil
}

func (b *Bank) check(q Quantity, t float64) error {
	if q.Extrapolates() {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return fmt.Errorf("%w: non-finite time %v", ErrValidation, t)
		}
		return nil
	}
	if !b.Covers(t) {
		return &OutOfRangeError{Quantity: q, T: t, Start: b.start, End: b.end}
	}
	return nil
}

func eval(chs []*channel, t float64) []float64 {
	v := make([]float64, len(chs))
	for k, c := range chs {
		v[k] = c.at(t)
	}
	return v
}
