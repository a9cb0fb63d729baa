// Package gti turns sampled boolean conditions into Good Time Intervals
// and provides the small interval algebra the GTI consumers need.
//
// Intervals are closed and expressed in the time base of the samples they
// were extracted from (MET seconds).
package gti

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// ErrValidation reports mismatched or unordered extraction input.
var ErrValidation = errors.New("gti: invalid input")

// Interval is a closed time range [Start, End].
// A run of a single true sample produces Start == End.
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns End - Start.
func (iv Interval) Duration() float64 { return iv.End - iv.Start }

// Schedulable reports whether the interval has positive width.
// Zero-width intervals are informational only.
func (iv Interval) Schedulable() bool { return iv.End > iv.Start }

// Contains reports whether t lies in [Start, End].
func (iv Interval) Contains(t float64) bool { return t >= iv.Start && t <= iv.End }

// List is a sorted sequence of non-overlapping, non-adjacent intervals.
type List []Interval

// Extract returns one interval per maximal run of true predicate values.
// A run [i, j] yields Interval{times[i], times[j]}; single-sample runs are
// kept as zero-width intervals. Empty input yields an empty list.
func Extract(times []float64, predicate []bool) (List, error) {
	if len(times) != len(predicate) {
		return nil, fmt.Errorf("%w: %d times but %d predicate values", ErrValidation, len(times), len(predicate))
	}
	for i := 1; i < len(times); i++ {
		if !(times[i] > times[i-1]) {
			return nil, fmt.Errorf("%w: times not strictly increasing at index %d", ErrValidation, i)
		}
	}

	out := List{}
	start := -1
	for i, v := range predicate {
		switch {
		case v && start < 0:
			start = i
		case !v && start >= 0:
			out = append(out, Interval{Start: times[start], End: times[i-1]})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, Interval{Start: times[start], End: times[len(times)-1]})
	}
	return out, nil
}

// Duration returns the summed width of all intervals.
func (l List) Duration() float64 {
	if len(l) == 0 {
		return 0
	}
	widths := make([]float64, len(l))
	for i, iv := range l {
		widths[i] = iv.Duration()
	}
	return floats.Sum(widths)
}

// Contains reports whether t falls in any interval.
func (l List) Contains(t float64) bool {
	// first interval ending at or after t
	i := sort.Search(len(l), func(i int) bool { return l[i].End >= t })
	return i < len(l) && l[i].Start <= t
}

// Mask samples the list at times. Extract(times, l.Mask(times)) reproduces
// l whenever every interval bound is one of times.
func (l List) Mask(times []float64) []bool {
	mask := make([]bool, len(times))
	for i, t := range times {
		mask[i] = l.Contains(t)
	}
	return mask
}

// Schedulable returns the intervals with positive width.
func (l List) Schedulable() List {
	out := make(List, 0, len(l))
	for _, iv := range l {
		if iv.Schedulable() {
			out = append(out, iv)
		}
	}
	return out
}

// Complement returns the positive-width gaps of l within [start, end].
// Gap bounds coincide with the bounds of the neighbouring intervals.
func (l List) Complement(start, end float64) List {
	out := List{}
	cursor := start
	for _, iv := range l {
		if iv.End < start {
			continue
		}
		if iv.Start > end {
			break
		}
		if iv.Start > cursor {
			out = append(out, Interval{Start: cursor, End: iv.Start})
		}
		if iv.End > cursor {
			cursor = iv.End
		}
	}
	if end > cursor {
		out = append(out, Interval{Start: cursor, End: end})
	}
	return out
}

// Intersect returns the ranges covered by both a and b.
// Intervals touching at a single instant intersect in a zero-width interval.
func Intersect(a, b List) List {
	out := List{}
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		lo := max(a[i].Start, b[j].Start)
		hi := min(a[i].End, b[j].End)
		if lo <= hi {
			out = append(out, Interval{Start: lo, End: hi})
		}
		if a[i].End < b[j].End {
			i++
		} else {
			j++
		}
	}
	return out
}
