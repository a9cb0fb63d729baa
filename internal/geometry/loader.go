package geometry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/GRID-datagroup/GRID-Data-tools/internal/detector"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/interp"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/sun"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/telemetry"
)

// Loader assembles a Dataset from a telemetry source and a detector
// definition. Its Build method fits Store.Reload.
type Loader struct {
	Source     telemetry.Source
	SourceName string // reported in the dataset, e.g. a path or URL
	Detector   detector.Detector
	Workers    int
	SunModel   sun.Model // nil uses the Meeus ephemeris
	Logger     *slog.Logger
}

// Build reads the detector grid and the telemetry, then builds the bank and
// service. Nothing is returned on a partial failure.
func (l Loader) Build(ctx context.Context) (*Dataset, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	grid, err := l.Detector.LoadIndex(logger)
	if err != nil {
		return nil, err
	}
	series, err := l.Source.Samples(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading telemetry: %w", err)
	}

	opts := []interp.Option{interp.WithOccupancy(grid), interp.WithLogger(logger)}
	if l.SunModel != nil {
		opts = append(opts, interp.WithSunModel(l.SunModel))
	}
	bank, err := interp.Build(series, opts...)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{
		Service: New(bank,
			WithFlux(grid),
			WithWorkers(l.Workers),
			WithLogger(logger),
		),
		Detector: l.Detector.ID,
		Normal:   l.Detector.Direction(),
		Grid:     grid,
		Source:   l.SourceName,
		LoadedAt: time.Now(),
	}
	logger.Info("dataset built",
		"detector", ds.Detector,
		"source", ds.Source,
		"samples", bank.Samples(),
		"grid_cells", grid.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return ds, nil
}
