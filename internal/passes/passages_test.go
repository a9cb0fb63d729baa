package passes

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/GRID-datagroup/GRID-Data-tools/internal/geometry"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/gti"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/met"
)

// fakeTracker is inside the SAA on the given closed ranges; flux equals t.
type fakeTracker struct {
	in    gti.List
	calls int
}

func (f *fakeTracker) TrackAt(t float64) (geometry.TrackPoint, error) {
	f.calls++
	p := geometry.TrackPoint{Time: t, Latitude: -30, Longitude: t / 100, Altitude: 550000}
	if f.in.Contains(t) {
		p.InSAA = true
		p.Flux = t
	}
	return p, nil
}

func TestFind(t *testing.T) {
	tr := &fakeTracker{in: gti.List{{Start: 95, End: 130}, {Start: 400, End: 402}, {Start: 900, End: 2000}}}
	got, err := Find(context.Background(), tr, Request{Start: 0, End: 1000})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}

	if diff := cmp.Diff(gti.List{{Start: 95, End: 130}, {Start: 400, End: 402}, {Start: 900, End: 1000}}, Intervals(got)); diff != "" {
		t.Fatalf("passages (-want +got):\n%s", diff)
	}

	first := got[0]
	if first.DurationSeconds != 35 {
		t.Errorf("duration = %v, want 35", first.DurationSeconds)
	}
	if first.PeakFlux != 130 || first.PeakTime != 130 {
		t.Errorf("peak = %v at %v, want 130 at 130", first.PeakFlux, first.PeakTime)
	}
	if first.EntryLongitude != 0.95 {
		t.Errorf("entry longitude = %v", first.EntryLongitude)
	}
	if !first.EntryTime.Equal(met.ToTime(95)) {
		t.Errorf("entry time = %v", first.EntryTime)
	}

	var trackTimes []float64
	for _, p := range first.GroundTrack {
		trackTimes = append(trackTimes, p.Time)
	}
	if diff := cmp.Diff([]float64{95, 105, 115, 125}, trackTimes); diff != "" {
		t.Errorf("ground track times (-want +got):\n%s", diff)
	}
}

func TestFindMinDurationAndLimit(t *testing.T) {
	tr := &fakeTracker{in: gti.List{{Start: 95, End: 130}, {Start: 400, End: 402}, {Start: 900, End: 2000}}}

	got, err := Find(context.Background(), tr, Request{Start: 0, End: 1000, MinDuration: 5})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(gti.List{{Start: 95, End: 130}, {Start: 900, End: 1000}}, Intervals(got)); diff != "" {
		t.Errorf("MinDuration passages (-want +got):\n%s", diff)
	}

	got, err = Find(context.Background(), tr, Request{Start: 0, End: 1000, MaxPassages: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("MaxPassages: got %d passages, want 1", len(got))
	}
}

func TestFindCloselySpaced(t *testing.T) {
	tests := []struct {
		name string
		in   gti.List
		want gti.List
	}{
		{"gap shorter than coarse step", gti.List{{Start: 0, End: 10}, {Start: 20, End: 100}}, gti.List{{Start: 0, End: 10}, {Start: 20, End: 100}}},
		{"one sample gap", gti.List{{Start: 5, End: 40}, {Start: 42, End: 100}}, gti.List{{Start: 5, End: 40}, {Start: 42, End: 100}}},
		{"three in one coarse window", gti.List{{Start: 100, End: 103}, {Start: 108, End: 110}, {Start: 115, End: 150}}, gti.List{{Start: 100, End: 103}, {Start: 108, End: 110}, {Start: 115, End: 150}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Find(context.Background(), &fakeTracker{in: tt.in}, Request{Start: 0, End: 200})
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, Intervals(got)); diff != "" {
				t.Errorf("passages (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFindSampleBudget(t *testing.T) {
	tr := &fakeTracker{in: gti.List{{Start: 30, End: 90}}}
	_, err := Find(context.Background(), tr, Request{Start: 0, End: 100, FineStep: 1e-6, MaxSamples: 1000})
	if !errors.Is(err, geometry.ErrBudget) {
		t.Fatalf("err = %v, want ErrBudget", err)
	}
	if tr.calls != 1000 {
		t.Errorf("TrackAt calls = %d, want 1000", tr.calls)
	}

	if _, err := Find(context.Background(), &fakeTracker{in: tr.in}, Request{Start: 0, End: 100, MaxSamples: 1000}); err != nil {
		t.Errorf("default steps within budget: %v", err)
	}
}

func TestFindStartsInside(t *testing.T) {
	tr := &fakeTracker{in: gti.List{{Start: -50, End: 12}}}
	got, err := Find(context.Background(), tr, Request{Start: 0, End: 100})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(gti.List{{Start: 0, End: 12}}, Intervals(got)); diff != "" {
		t.Errorf("passages (-want +got):\n%s", diff)
	}
}

func TestFindNoPassages(t *testing.T) {
	tr := &fakeTracker{}
	got, err := Find(context.Background(), tr, Request{Start: 0, End: 3000})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %d passages, want 0", len(got))
	}
	// coarse scan only: 0, 30, ..., 3000
	if tr.calls != 101 {
		t.Errorf("TrackAt calls = %d, want 101", tr.calls)
	}
}

func TestFindErrors(t *testing.T) {
	if _, err := Find(context.Background(), &fakeTracker{}, Request{Start: 10, End: 0}); !errors.Is(err, gti.ErrValidation) {
		t.Errorf("reversed range err = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Find(ctx, &fakeTracker{}, Request{Start: 0, End: 100}); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled err = %v", err)
	}

	boom := errors.New("boom")
	if _, err := Find(context.Background(), errTracker{boom}, Request{Start: 0, End: 100}); !errors.Is(err, boom) {
		t.Errorf("tracker err = %v", err)
	}
}

type errTracker struct{ err error }

func (e errTracker) TrackAt(float64) (geometry.TrackPoint, error) {
	return geometry.TrackPoint{}, e.err
}
