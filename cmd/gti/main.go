// Command gti computes Sun, SAA and good time intervals and SAA passages
// for one detector over a telemetry file.
//
// Usage:
//
//	gti -telemetry posatt.csv -config detectors.toml [-detector det1]
//	    [-step 1] [-start MET] [-end MET] [-db gti.db] [-plot out.png] [-json]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/GRID-datagroup/GRID-Data-tools/internal/detector"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/geometry"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/gti"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/gtistore"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/met"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/passes"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/plotting"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "gti:", err)
		}
		os.Exit(1)
	}
}

type options struct {
	telemetry  string
	config     string
	detector   string
	step       float64
	start, end float64
	coarse     float64
	fine       float64
	db         string
	plot       string
	json       bool
	verbose    bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("gti", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.telemetry, "telemetry", "", "position/attitude CSV file or http(s) URL")
	fs.StringVar(&o.config, "config", "detectors.toml", "detector configuration (TOML)")
	fs.StringVar(&o.detector, "detector", "", "detector id (default: first configured)")
	fs.Float64Var(&o.step, "step", 1, "GTI sampling step in seconds")
	fs.Float64Var(&o.start, "start", math.NaN(), "start MET (default: telemetry start)")
	fs.Float64Var(&o.end, "end", math.NaN(), "end MET (default: telemetry end)")
	fs.Float64Var(&o.coarse, "coarse", 30, "passage coarse scan step in seconds")
	fs.Float64Var(&o.fine, "fine", 1, "passage fine scan step in seconds")
	fs.StringVar(&o.db, "db", "", "archive the run in this SQLite database")
	fs.StringVar(&o.plot, "plot", "", "write a ground track PNG to this path")
	fs.BoolVar(&o.json, "json", false, "print JSON instead of tables")
	fs.BoolVar(&o.verbose, "v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.telemetry == "" {
		fs.Usage()
		return o, errors.New("-telemetry is required")
	}
	return o, nil
}

type report struct {
	Run      *gtistore.Run    `json:"run"`
	Passages []passes.Passage `json:"passages"`
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := detector.Load(o.config)
	if err != nil {
		return err
	}
	id := o.detector
	if id == "" {
		id = cfg.Detectors[0].ID
	}
	det, err := cfg.Lookup(id)
	if err != nil {
		return err
	}

	var src telemetry.Source = telemetry.CSVSource{Path: o.telemetry, Logger: logger}
	if strings.HasPrefix(o.telemetry, "http://") || strings.HasPrefix(o.telemetry, "https://") {
		src = telemetry.HTTPSource{Fetcher: telemetry.NewFetcher(o.telemetry), Logger: logger}
	}
	ds, err := geometry.Loader{
		Source:     src,
		SourceName: o.telemetry,
		Detector:   det,
		Logger:     logger,
	}.Build(ctx)
	if err != nil {
		return err
	}

	bank := ds.Service.Bank()
	start, end := bank.Start(), bank.End()
	if !math.IsNaN(o.start) {
		start = o.start
	}
	if !math.IsNaN(o.end) {
		end = o.end
	}
	times, err := geometry.Times(start, end, o.step, 0)
	if err != nil {
		return err
	}

	r, err := gtistore.Compute(ds, times)
	if err != nil {
		return err
	}
	found, err := passes.Find(ctx, ds.Service, passes.Request{
		Start:      start,
		End:        end,
		CoarseStep: o.coarse,
		FineStep:   o.fine,
	})
	if err != nil {
		return err
	}

	if o.db != "" {
		archive, err := gtistore.Open(o.db)
		if err != nil {
			return err
		}
		defer archive.Close()
		if err := archive.Insert(ctx, r); err != nil {
			return err
		}
		logger.Info("run archived", "run_id", r.RunID, "db", o.db)
	}

	if o.plot != "" {
		track, err := ds.Service.Track(times)
		if err != nil {
			return err
		}
		err = plotting.SavePNG(o.plot, plotting.Report{
			Title:    fmt.Sprintf("%s %s", det.ID, met.DateString(met.ToTime(start))),
			Track:    track,
			Passages: found,
			Start:    start,
			End:      end,
			Sun:      r.Sun,
			SAA:      r.SAA,
			Good:     r.Good,
		})
		if err != nil {
			return err
		}
	}

	if o.json {
		if found == nil {
			found = []passes.Passage{}
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report{Run: r, Passages: found})
	}
	return printTables(stdout, r, found)
}

func printTables(w io.Writer, r *gtistore.Run, found []passes.Passage) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "detector %s\tsource %s\n", r.Detector, r.Source)
	fmt.Fprintf(tw, "range\t%.3f .. %.3f MET\t(%s .. %s)\n",
		r.StartMET, r.EndMET,
		met.ToTime(r.StartMET).Format("2006-01-02T15:04:05Z"),
		met.ToTime(r.EndMET).Format("2006-01-02T15:04:05Z"))
	if r.RunID != "" {
		fmt.Fprintf(tw, "run\t%s\n", r.RunID)
	}

	for _, sec := range []struct {
		name string
		list gti.List
	}{{"Sun", r.Sun}, {"SAA", r.SAA}, {"Good", r.Good}} {
		fmt.Fprintf(tw, "\n%s GTIs: %d, %.1f s\n", sec.name, len(sec.list), sec.list.Duration())
		fmt.Fprintln(tw, "  start\tend\tduration")
		for _, iv := range sec.list {
			fmt.Fprintf(tw, "  %.3f\t%.3f\t%.3f\n", iv.Start, iv.End, iv.Duration())
		}
	}

	fmt.Fprintf(tw, "\nSAA passages: %d\n", len(found))
	fmt.Fprintln(tw, "  entry\texit\tduration\tpeak flux\tentry lat\tentry lon")
	for _, p := range found {
		fmt.Fprintf(tw, "  %.3f\t%.3f\t%.1f\t%.3g\t%.2f\t%.2f\n",
			p.Entry, p.Exit, p.DurationSeconds, p.PeakFlux, p.EntryLatitude, p.EntryLongitude)
	}
	return tw.Flush()
}
