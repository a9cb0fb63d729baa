package gti

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name  string
		times []float64
		pred  []bool
		want  List
	}{
		{
			name:  "single sample runs are zero width",
			times: []float64{0, 1, 2, 3, 4},
			pred:  []bool{false, true, true, false, true},
			want:  List{{1, 2}, {4, 4}},
		},
		{
			name:  "all true",
			times: []float64{0, 1, 2},
			pred:  []bool{true, true, true},
			want:  List{{0, 2}},
		},
		{
			name:  "all false",
			times: []float64{0, 1, 2},
			pred:  []bool{false, false, false},
			want:  List{},
		},
		{
			name:  "leading run",
			times: []float64{10, 20, 30, 40},
			pred:  []bool{true, true, false, false},
			want:  List{{10, 20}},
		},
		{
			name:  "irregular spacing",
			times: []float64{0, 0.5, 7, 8.25, 100},
			pred:  []bool{true, false, true, true, true},
			want:  List{{0, 0}, {7, 100}},
		},
		{
			name:  "empty",
			times: nil,
			pred:  nil,
			want:  List{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.times, tt.pred)
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Extract mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtractValidation(t *testing.T) {
	tests := []struct {
		name  string
		times []float64
		pred  []bool
	}{
		{"length mismatch", []float64{0, 1}, []bool{true}},
		{"duplicate time", []float64{0, 1, 1}, []bool{true, true, true}},
		{"decreasing", []float64{2, 1}, []bool{true, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.times, tt.pred)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

// randomMask builds n strictly increasing times and a random predicate.
func randomMask(r *rand.Rand, n int) ([]float64, []bool) {
	times := make([]float64, n)
	pred := make([]bool, n)
	t := 0.0
	for i := range times {
		t += 0.1 + r.Float64()*5
		times[i] = t
		pred[i] = r.Intn(3) > 0
	}
	return times, pred
}

func TestExtractCoverageAndIdempotence(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		times, pred := randomMask(r, 1+r.Intn(60))
		list, err := Extract(times, pred)
		if err != nil {
			t.Fatalf("trial %d: %v", trial, err)
		}

		if diff := cmp.Diff(pred, list.Mask(times)); diff != "" {
			t.Fatalf("trial %d: coverage mismatch (-pred +mask):\n%s", trial, diff)
		}

		again, err := Extract(times, list.Mask(times))
		if err != nil {
			t.Fatalf("trial %d: %v", trial, err)
		}
		if diff := cmp.Diff(list, again); diff != "" {
			t.Fatalf("trial %d: not idempotent (-first +second):\n%s", trial, diff)
		}

		for k := 1; k < len(list); k++ {
			if !(list[k].Start > list[k-1].End) {
				t.Fatalf("trial %d: intervals %v and %v overlap or touch", trial, list[k-1], list[k])
			}
		}
	}
}

func TestListHelpers(t *testing.T) {
	l := List{{1, 2}, {4, 4}, {6, 9}}

	if got := l.Duration(); got != 4 {
		t.Errorf("Duration() = %v, want 4", got)
	}
	if got := List(nil).Duration(); got != 0 {
		t.Errorf("nil Duration() = %v, want 0", got)
	}

	for _, tc := range []struct {
		t    float64
		want bool
	}{{0.5, false}, {1, true}, {2, true}, {3, false}, {4, true}, {5, false}, {9, true}, {9.5, false}} {
		if got := l.Contains(tc.t); got != tc.want {
			t.Errorf("Contains(%v) = %v, want %v", tc.t, got, tc.want)
		}
	}

	if diff := cmp.Diff(List{{1, 2}, {6, 9}}, l.Schedulable()); diff != "" {
		t.Errorf("Schedulable mismatch (-want +got):\n%s", diff)
	}
}

func TestComplement(t *testing.T) {
	tests := []struct {
		name       string
		list       List
		start, end float64
		want       List
	}{
		{"empty list", List{}, 0, 10, List{{0, 10}}},
		{"inner", List{{2, 3}, {5, 6}}, 0, 10, List{{0, 2}, {3, 5}, {6, 10}}},
		{"covers bounds", List{{-1, 2}, {8, 12}}, 0, 10, List{{2, 8}}},
		{"zero width splits gap", List{{4, 4}}, 0, 10, List{{0, 4}, {4, 10}}},
		{"fully covered", List{{0, 10}}, 0, 10, List{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.list.Complement(tt.start, tt.end)); diff != "" {
				t.Errorf("Complement mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIntersect(t *testing.T) {
	a := List{{0, 5}, {10, 20}}
	b := List{{3, 12}, {15, 16}, {19.5, 30}}
	want := List{{3, 5}, {10, 12}, {15, 16}, {19.5, 20}}
	got := Intersect(a, b)
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("Intersect mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(got, Intersect(b, a)); diff != "" {
		t.Errorf("Intersect not symmetric (-ab +ba):\n%s", diff)
	}
	if got := Intersect(a, List{}); len(got) != 0 {
		t.Errorf("Intersect with empty = %v", got)
	}
}
