// Package passes finds SAA passages along the ground track: entry and exit
// times, duration, peak flux and a sampled ground track for plotting.
package passes

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/GRID-datagroup/GRID-Data-tools/internal/geometry"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/gti"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/met"
)

// Tracker samples the ground track. *geometry.Service satisfies it.
type Tracker interface {
	TrackAt(t float64) (geometry.TrackPoint, error)
}

// GroundTrackPoint is a sub-satellite position during a passage.
type GroundTrackPoint struct {
	Time      float64 `json:"time"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
	Flux      float64 `json:"flux"`
}

// Passage is one continuous stay inside the SAA.
type Passage struct {
	Entry           float64            `json:"entry"` // MET seconds
	Exit            float64            `json:"exit"`
	EntryTime       time.Time          `json:"entry_time"`
	ExitTime        time.Time          `json:"exit_time"`
	DurationSeconds float64            `json:"duration_seconds"`
	PeakFlux        float64            `json:"peak_flux"`
	PeakTime        float64            `json:"peak_time"`
	EntryLatitude   float64            `json:"entry_latitude"`
	EntryLongitude  float64            `json:"entry_longitude"`
	GroundTrack     []GroundTrackPoint `json:"ground_track"`
}

// Request holds the parameters of a passage search over [Start, End] (MET).
type Request struct {
	Start, End  float64
	CoarseStep  float64 // seconds between coarse scan steps
	FineStep    float64 // seconds between fine scan steps
	TrackStep   float64 // seconds between ground track samples
	MinDuration float64 // shorter passages are dropped
	MaxPassages int
	MaxSamples  int // cap on TrackAt calls across both scans, 0 for none
}

// budgetTracker fails with geometry.ErrBudget once limit samples are used.
type budgetTracker struct {
	tr    Tracker
	limit int
	used  int
}

func (b *budgetTracker) TrackAt(t float64) (geometry.TrackPoint, error) {
	if b.limit > 0 && b.used >= b.limit {
		return geometry.TrackPoint{}, fmt.Errorf("%w: passage search needs more than %d samples", geometry.ErrBudget, b.limit)
	}
	b.used++
	return b.tr.TrackAt(t)
}

const (
	defaultCoarseStep  = 30
	defaultFineStep    = 1
	defaultTrackStep   = 10
	defaultMaxPassages = 1000
)

func (r Request) withDefaults() Request {
	if r.CoarseStep <= 0 {
		r.CoarseStep = defaultCoarseStep
	}
	if r.FineStep <= 0 {
		r.FineStep = defaultFineStep
	}
	if r.TrackStep <= 0 {
		r.TrackStep = defaultTrackStep
	}
	if r.MaxPassages <= 0 {
		r.MaxPassages = defaultMaxPassages
	}
	return r
}

// Find scans [req.Start, req.End] for SAA passages. A coarse scan looks for
// occupied samples; each hit is refined with a fine scan that backs up one
// coarse step to find the entry and runs forward to the exit. Entry and exit
// are the first and last occupied fine samples. The fine scan never backs
// up past the previous passage's exit.
func Find(ctx context.Context, tr Tracker, req Request) ([]Passage, error) {
	req = req.withDefaults()
	if math.IsNaN(req.Start) || math.IsNaN(req.End) || req.End < req.Start {
		return nil, fmt.Errorf("%w: invalid range [%v, %v]", gti.ErrValidation, req.Start, req.End)
	}
	tr = &budgetTracker{tr: tr, limit: req.MaxSamples}

	var passages []Passage
	floor := req.Start
	t := req.Start
	for t <= req.End && len(passages) < req.MaxPassages {
		if err := ctx.Err(); err != nil {
			return passages, err
		}

		p, err := tr.TrackAt(t)
		if err != nil {
			return nil, err
		}
		if !p.InSAA {
			t += req.CoarseStep
			continue
		}

		pass, windowEnd, err := refine(ctx, tr, t, floor, req)
		if err != nil {
			return nil, err
		}
		if pass != nil {
			floor = pass.Exit + req.FineStep
			if pass.DurationSeconds >= req.MinDuration {
				passages = append(passages, *pass)
			}
		}
		if pass != nil && windowEnd < t {
			// a shorter passage ended before the coarse hit; rescan
			// from its exit for the passage that contains t
			continue
		}
		t = math.Max(windowEnd, t) + req.CoarseStep
	}
	return passages, nil
}

// refine fine-scans around a coarse hit, starting no earlier than floor. It
// returns the passage and the time the scan stopped.
func refine(ctx context.Context, tr Tracker, coarseHit, floor float64, req Request) (*Passage, float64, error) {
	searchStart := math.Max(coarseHit-req.CoarseStep, floor)

	var (
		pass      *Passage
		lastIn    float64
		nextTrack float64
		t         float64
	)
	for k := 0; ; k++ {
		t = searchStart + float64(k)*req.FineStep
		if t > req.End {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, t, err
		}

		p, err := tr.TrackAt(t)
		if err != nil {
			return nil, t, err
		}

		if !p.InSAA {
			if pass != nil {
				break
			}
			continue
		}

		if pass == nil {
			pass = &Passage{
				Entry:          t,
				PeakFlux:       p.Flux,
				PeakTime:       t,
				EntryLatitude:  p.Latitude,
				EntryLongitude: p.Longitude,
			}
			nextTrack = t
		}
		lastIn = t
		if p.Flux > pass.PeakFlux {
			pass.PeakFlux = p.Flux
			pass.PeakTime = t
		}
		if t >= nextTrack {
			pass.GroundTrack = append(pass.GroundTrack, GroundTrackPoint{
				Time:      t,
				Latitude:  p.Latitude,
				Longitude: p.Longitude,
				Altitude:  p.Altitude,
				Flux:      p.Flux,
			})
			nextTrack += req.TrackStep
		}
	}

	if pass == nil {
		// the coarse hit fell between fine samples
		return nil, coarseHit, nil
	}
	pass.Exit = lastIn
	pass.EntryTime = met.ToTime(pass.Entry)
	pass.ExitTime = met.ToTime(pass.Exit)
	pass.DurationSeconds = pass.Exit - pass.Entry
	return pass, lastIn, nil
}

// Intervals returns the passages as a GTI list.
func Intervals(passages []Passage) gti.List {
	out := make(gti.List, len(passages))
	for i, p := range passages {
		out[i] = gti.Interval{Start: p.Entry, End: p.Exit}
	}
	return out
}
