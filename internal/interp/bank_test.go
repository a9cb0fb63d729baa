package interp

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/GRID-datagroup/GRID-Data-tools/internal/sun"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/telemetry"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/transform"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

var approx = cmpopts.EquateApprox(0, 1e-9)

// orbitSeries returns a circular equatorial orbit sampled at uneven times.
func orbitSeries(t *testing.T) *telemetry.Series {
	t.Helper()
	const r = 7_000_000.0
	const omega = 2 * math.Pi / 5800
	times := []float64{0, 7, 10, 25, 31, 60, 61.5, 90}
	samples := make([]telemetry.Sample, len(times))
	for i, tm := range times {
		s, c := math.Sincos(omega * tm)
		samples[i] = telemetry.Sample{
			Time:            tm,
			Position:        [3]float64{r * c, r * s, 1000 * float64(i)},
			Quaternion:      [4]float64{c, 0, 0, s},
			Latitude:        0.1 * float64(i),
			Longitude:       -60 + float64(i),
			Altitude:        r - transform.WGS84A + float64(i),
			AngularVelocity: [3]float64{0, 0, omega},
		}
	}
	series, err := telemetry.NewSeries(samples)
	if err != nil {
		t.Fatal(err)
	}
	return series
}

type stubOccupancy func(lat, lon float64) bool

func (f stubOccupancy) OccupiedAt(lat, lon float64) bool { return f(lat, lon) }

func TestRoundTripAtSampleTimes(t *testing.T) {
	series := orbitSeries(t)
	bank, err := Build(series, WithLogger(testLogger))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	for i := 0; i < series.Len(); i++ {
		s := series.At(i)

		pos, err := bank.Position(s.Time)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(s.Position, pos, approx); diff != "" {
			t.Errorf("position at %v (-want +got):\n%s", s.Time, diff)
		}

		q, err := bank.Quaternion(s.Time)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(s.Quaternion, q, approx); diff != "" {
			t.Errorf("orientation at %v (-want +got):\n%s", s.Time, diff)
		}

		w, _ := bank.AngularVelocity(s.Time)
		lat, _ := bank.Latitude(s.Time)
		lon, _ := bank.Longitude(s.Time)
		alt, _ := bank.Altitude(s.Time)
		if diff := cmp.Diff(
			[]float64{s.AngularVelocity[2], s.Latitude, s.Longitude, s.Altitude},
			[]float64{w[2], lat, lon, alt}, approx); diff != "" {
			t.Errorf("scalars at %v (-want +got):\n%s", s.Time, diff)
		}

		half, _ := bank.EarthHalfAngle(s.Time)
		if want := transform.EarthHalfAngle(s.Altitude, transform.WGS84A); math.Abs(half-want) > 1e-9 {
			t.Errorf("earth_half_angle at %v = %v, want %v", s.Time, half, want)
		}

		geo, _ := bank.Geocenter(s.Time)
		if diff := cmp.Diff(transform.GeocenterRADec(s.Position), geo, approx); diff != "" {
			t.Errorf("geocenter at %v (-want +got):\n%s", s.Time, diff)
		}
	}
}

func TestBoundedQueriesOutOfRange(t *testing.T) {
	bank, err := Build(orbitSeries(t), WithLogger(testLogger))
	if err != nil {
		t.Fatal(err)
	}

	for _, q := range Quantities() {
		for _, tm := range []float64{-0.001, 90.5, 1e9, math.NaN()} {
			_, err := bank.Query(q, tm)
			if q.Extrapolates() {
				if math.IsNaN(tm) {
					continue
				}
				if err != nil {
					t.Errorf("Query(%s, %v) = %v, want extrapolation", q, tm, err)
				}
				continue
			}
			if !errors.Is(err, ErrOutOfRange) {
				t.Errorf("Query(%s, %v) err = %v, want ErrOutOfRange", q, tm, err)
			}
		}
	}

	_, err = bank.Query(Position, 100)
	var oor *OutOfRangeError
	if !errors.As(err, &oor) {
		t.Fatalf("err = %v, want *OutOfRangeError", err)
	}
	if oor.Quantity != Position || oor.T != 100 || oor.Start != 0 || oor.End != 90 {
		t.Errorf("OutOfRangeError = %+v", oor)
	}

	// the bank keeps answering after a failed query
	if _, err := bank.Position(45); err != nil {
		t.Errorf("Position(45) after failure: %v", err)
	}
}

func TestVelocityStationary(t *testing.T) {
	series, err := telemetry.NewSeries([]telemetry.Sample{
		{Time: 0, Position: [3]float64{0, 0, 7000000}, Quaternion: [4]float64{1, 0, 0, 0}},
		{Time: 10, Position: [3]float64{0, 0, 7000000}, Quaternion: [4]float64{1, 0, 0, 0}},
	})
	if err != nil {
		t.Fatal(err)
	}
	bank, err := Build(series, WithLogger(testLogger))
	if err != nil {
		t.Fatal(err)
	}
	for _, tm := range []float64{5, -100, 1000} {
		v, err := bank.Velocity(tm)
		if err != nil {
			t.Fatalf("Velocity(%v): %v", tm, err)
		}
		if diff := cmp.Diff([3]float64{}, v, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
			t.Errorf("Velocity(%v) (-want +got):\n%s", tm, diff)
		}
	}
}

func TestVelocityExtrapolatesLinearly(t *testing.T) {
	// x = t^2 sampled at 0, 1, 3: gradient is [1, 2, 4] (one-sided ends)
	series, err := telemetry.NewSeries([]telemetry.Sample{
		{Time: 0, Position: [3]float64{0, 0, 0}},
		{Time: 1, Position: [3]float64{1, 0, 0}},
		{Time: 3, Position: [3]float64{9, 0, 0}},
	})
	if err != nil {
		t.Fatal(err)
	}
	bank, err := Build(series, WithLogger(testLogger))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		t, want float64
	}{
		{0, 1},
		{1, 2},
		{3, 4},
		{2, 3},
		{5, 6},  // last segment slope 1
		{-1, 0}, // first segment slope 1
	}
	for _, tt := range tests {
		v, err := bank.Velocity(tt.t)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(v[0]-tt.want) > 1e-12 {
			t.Errorf("Velocity(%v).x = %v, want %v", tt.t, v[0], tt.want)
		}
	}
}

func TestGradientQuadraticExactInterior(t *testing.T) {
	xs := []float64{0, 0.5, 2, 2.25, 5}
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = x * x
	}
	g := gradient(xs, ys)
	for i := 1; i < len(xs)-1; i++ {
		if math.Abs(g[i]-2*xs[i]) > 1e-12 {
			t.Errorf("gradient[%d] = %v, want %v", i, g[i], 2*xs[i])
		}
	}
}

func TestSAAOccupied(t *testing.T) {
	series := orbitSeries(t)
	// latitude is 0.1*i; occupied for samples 3..5
	occ := stubOccupancy(func(lat, lon float64) bool { return lat > 0.25 && lat < 0.55 })

	bank, err := Build(series, WithOccupancy(occ), WithLogger(testLogger))
	if err != nil {
		t.Fatal(err)
	}
	if !bank.HasOccupancy() {
		t.Error("HasOccupancy() = false")
	}
	for i := 0; i < series.Len(); i++ {
		got, err := bank.SAAOccupied(series.At(i).Time)
		if err != nil {
			t.Fatal(err)
		}
		if want := i >= 3 && i <= 5; got != want {
			t.Errorf("SAAOccupied at sample %d = %v, want %v", i, got, want)
		}
	}

	plain, err := Build(series, WithLogger(testLogger))
	if err != nil {
		t.Fatal(err)
	}
	vals, err := plain.QueryMany(SAAOccupied, series.Times())
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range vals {
		if v[0] != 0 {
			t.Errorf("saa_occupied without index at %d = %v", i, v[0])
		}
	}
}

func TestSunVisibleWithFixedModel(t *testing.T) {
	series := orbitSeries(t)

	// Sun along +x: visible while the spacecraft is on the +x side.
	bank, err := Build(series, WithSunModel(sun.Fixed{RA: 0, Dec: 0}), WithLogger(testLogger))
	if err != nil {
		t.Fatal(err)
	}
	vis, err := bank.SunVisible(0)
	if err != nil {
		t.Fatal(err)
	}
	if !vis {
		t.Error("SunVisible(0) = false with Sun opposite the geocenter")
	}

	// Sun along -x: behind the Earth for the whole arc.
	bank, err = Build(series, WithSunModel(sun.Fixed{RA: 180, Dec: 0}), WithLogger(testLogger))
	if err != nil {
		t.Fatal(err)
	}
	for _, tm := range []float64{0, 45, 90, 120} {
		vis, err := bank.SunVisible(tm)
		if err != nil {
			t.Fatal(err)
		}
		if vis {
			t.Errorf("SunVisible(%v) = true with Sun behind the Earth", tm)
		}
	}
}

func TestBuildValidation(t *testing.T) {
	if _, err := Build(nil); !errors.Is(err, ErrValidation) {
		t.Errorf("nil series err = %v", err)
	}
	if _, err := Build(orbitSeries(t), WithEarthRadius(-1), WithLogger(testLogger)); !errors.Is(err, ErrValidation) {
		t.Errorf("negative radius err = %v", err)
	}

	bank, err := Build(orbitSeries(t), WithLogger(testLogger))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := bank.Query("magnetic_field", 1); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown quantity err = %v", err)
	}
	if _, err := bank.QueryMany(Position, []float64{1, 2, 500}); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("QueryMany err = %v", err)
	}
}

func TestQueryManyShapes(t *testing.T) {
	bank, err := Build(orbitSeries(t), WithLogger(testLogger))
	if err != nil {
		t.Fatal(err)
	}
	for _, q := range Quantities() {
		vals, err := bank.QueryMany(q, []float64{1, 2, 3})
		if err != nil {
			t.Fatalf("QueryMany(%s): %v", q, err)
		}
		for _, v := range vals {
			if len(v) != q.Dims() {
				t.Fatalf("%s has %d components, want %d", q, len(v), q.Dims())
			}
		}
	}
}

func TestConcurrentReads(t *testing.T) {
	bank, err := Build(orbitSeries(t), WithLogger(testLogger))
	if err != nil {
		t.Fatal(err)
	}
	want, _ := bank.Position(33.3)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				got, err := bank.Position(33.3)
				if err != nil || got != want {
					t.Errorf("concurrent Position = %v, %v", got, err)
					return
				}
				bank.Query(Velocity, float64(i))
			}
		}()
	}
	wg.Wait()
}
