// Package plotting renders the ground track and GTI timeline of a run as a
// PNG, with samples inside the SAA highlighted.
package plotting

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/GRID-datagroup/GRID-Data-tools/internal/geometry"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/gti"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/passes"
)

// ErrEmpty is returned when there is nothing to draw.
var ErrEmpty = errors.New("plotting: empty track")

var (
	colorTrack = color.RGBA{R: 70, G: 110, B: 180, A: 255}
	colorSAA   = color.RGBA{R: 210, G: 40, B: 40, A: 255}
	colorSun   = color.RGBA{R: 230, G: 170, B: 20, A: 255}
	colorGood  = color.RGBA{R: 40, G: 150, B: 70, A: 255}
)

// Report is everything drawn for one run.
type Report struct {
	Title    string
	Track    []geometry.TrackPoint
	Passages []passes.Passage
	Start    float64 // MET seconds
	End      float64
	Sun      gti.List
	SAA      gti.List
	Good     gti.List
}

// EarthPlot draws the sub-satellite points in longitude/latitude. Points in
// the SAA are red and passage ground tracks are drawn as lines.
func EarthPlot(title string, track []geometry.TrackPoint, passages []passes.Passage) (*plot.Plot, error) {
	if len(track) == 0 {
		return nil, ErrEmpty
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Longitude (deg)"
	p.Y.Label.Text = "Latitude (deg)"
	p.X.Min, p.X.Max = -180, 180
	p.Y.Min, p.Y.Max = -90, 90
	p.Add(plotter.NewGrid())

	out := make(plotter.XYs, 0, len(track))
	in := make(plotter.XYs, 0)
	for _, tp := range track {
		pt := plotter.XY{X: tp.Longitude, Y: tp.Latitude}
		if tp.InSAA {
			in = append(in, pt)
		} else {
			out = append(out, pt)
		}
	}

	if len(out) > 0 {
		s, err := plotter.NewScatter(out)
		if err != nil {
			return nil, fmt.Errorf("track scatter: %w", err)
		}
		s.GlyphStyle.Color = colorTrack
		s.GlyphStyle.Radius = vg.Points(1)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(s)
		p.Legend.Add("track", s)
	}
	if len(in) > 0 {
		s, err := plotter.NewScatter(in)
		if err != nil {
			return nil, fmt.Errorf("saa scatter: %w", err)
		}
		s.GlyphStyle.Color = colorSAA
		s.GlyphStyle.Radius = vg.Points(1.5)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(s)
		p.Legend.Add("in SAA", s)
	}

	for i, ps := range passages {
		for _, seg := range splitAtDateline(ps.GroundTrack) {
			l, err := plotter.NewLine(seg)
			if err != nil {
				return nil, fmt.Errorf("passage %d track: %w", i, err)
			}
			l.LineStyle.Color = colorSAA
			l.LineStyle.Width = vg.Points(1)
			p.Add(l)
		}
	}
	return p, nil
}

// splitAtDateline breaks a ground track wherever consecutive longitudes jump
// by more than 180 degrees. Segments with fewer than two points are dropped.
func splitAtDateline(track []passes.GroundTrackPoint) []plotter.XYs {
	var segs []plotter.XYs
	var cur plotter.XYs
	for i, g := range track {
		if i > 0 && math.Abs(g.Longitude-track[i-1].Longitude) > 180 {
			if len(cur) > 1 {
				segs = append(segs, cur)
			}
			cur = nil
		}
		cur = append(cur, plotter.XY{X: g.Longitude, Y: g.Latitude})
	}
	if len(cur) > 1 {
		segs = append(segs, cur)
	}
	return segs
}

// TimelinePlot draws the Sun, SAA and good intervals as horizontal bars over
// [start, end].
func TimelinePlot(start, end float64, sun, saa, good gti.List) (*plot.Plot, error) {
	if !(end > start) {
		return nil, fmt.Errorf("%w: timeline end %g not after start %g", ErrEmpty, end, start)
	}

	p := plot.New()
	p.X.Label.Text = "MET (s)"
	p.X.Min, p.X.Max = start, end
	p.Y.Min, p.Y.Max = -0.5, 2.5
	p.NominalY("sun", "saa", "good")

	rows := []struct {
		list gti.List
		y    float64
		c    color.Color
	}{
		{sun, 0, colorSun},
		{saa, 1, colorSAA},
		{good, 2, colorGood},
	}
	for _, r := range rows {
		for _, iv := range r.list {
			l, err := plotter.NewLine(plotter.XYs{{X: iv.Start, Y: r.y}, {X: iv.End, Y: r.y}})
			if err != nil {
				return nil, fmt.Errorf("interval bar: %w", err)
			}
			l.LineStyle.Color = r.c
			l.LineStyle.Width = vg.Points(8)
			p.Add(l)
		}
	}
	return p, nil
}

// WritePNG renders the earth plot above the timeline.
func WritePNG(w io.Writer, r Report, width, height vg.Length) error {
	earth, err := EarthPlot(r.Title, r.Track, r.Passages)
	if err != nil {
		return err
	}
	timeline, err := TimelinePlot(r.Start, r.End, r.Sun, r.SAA, r.Good)
	if err != nil {
		return err
	}

	plots := [][]*plot.Plot{{earth}, {timeline}}
	img := vgimg.New(width, height)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 2, Cols: 1, PadY: vg.Points(8)}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// SavePNG writes the report to path at 12x9 inches.
func SavePNG(path string, r Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create plot file: %w", err)
	}
	if err := WritePNG(f, r, 12*vg.Inch, 9*vg.Inch); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
