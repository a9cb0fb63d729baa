package telemetry

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// CSVSource reads a telemetry table from a local CSV file.
type CSVSource struct {
	Path   string
	Logger *slog.Logger
}

// Samples implements Source.
func (s CSVSource) Samples(ctx context.Context) (*Series, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening telemetry: %w", err)
	}
	defer f.Close()

	series, err := Parse(f, s.logger())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	return series, nil
}

func (s CSVSource) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// HTTPSource downloads a telemetry table and keeps a copy in a disk cache.
// When the download fails the newest cached copy is used instead.
type HTTPSource struct {
	Fetcher *Fetcher
	Cache   *Cache // optional
	Logger  *slog.Logger
}

// Samples implements Source.
func (s HTTPSource) Samples(ctx context.Context) (*Series, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	data, err := s.Fetcher.Fetch(ctx)
	switch {
	case err == nil:
		logger.Info("telemetry fetched", "source_url", s.Fetcher.SourceURL(), "bytes", len(data))
		if s.Cache != nil {
			if werr := s.Cache.Write(data, time.Now()); werr != nil {
				logger.Warn("failed to cache telemetry", "error", werr)
			}
		}
	case s.Cache != nil:
		logger.Warn("telemetry fetch failed, falling back to cache", "error", err)
		var ts time.Time
		data, ts, err = s.Cache.LoadLatest()
		if err != nil {
			return nil, fmt.Errorf("no telemetry available: %w", err)
		}
		logger.Info("loaded telemetry from cache", "cached_at", ts.Format(time.RFC3339))
	default:
		return nil, err
	}

	return Parse(bytes.NewReader(data), logger)
}
