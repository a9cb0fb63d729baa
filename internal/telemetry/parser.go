package telemetry

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/GRID-datagroup/GRID-Data-tools/internal/met"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/transform"
)

// column aliases accepted in the header row, keyed by canonical name.
var columnAliases = map[string][]string{
	"TIME":      {"TIME", "MET"},
	"X":         {"X", "X_J2000", "POS_X"},
	"Y":         {"Y", "Y_J2000", "POS_Y"},
	"Z":         {"Z", "Z_J2000", "POS_Z"},
	"Q1":        {"Q1"},
	"Q2":        {"Q2"},
	"Q3":        {"Q3"},
	"Q4":        {"Q4"},
	"LATITUDE":  {"LATITUDE", "LAT"},
	"LONGITUDE": {"LONGITUDE", "LON"},
	"ALTITUDE":  {"ALTITUDE", "ALT"},
	"WX":        {"WX"},
	"WY":        {"WY"},
	"WZ":        {"WZ"},
}

var requiredColumns = []string{"TIME", "X", "Y", "Z", "Q1", "Q2", "Q3", "Q4"}

// Parse reads a comma-separated position/attitude table from r.
//
// The first non-comment row is a header naming the columns
// (TIME, X, Y, Z, Q1..Q4, LATITUDE, LONGITUDE, ALTITUDE, WX, WY, WZ; case
// insensitive, FITS names such as X_J2000 accepted). Lines starting with '#'
// are ignored. Rows that fail to parse are skipped with a warning log.
// When the geodetic columns are absent they are derived from the inertial
// position; missing angular velocity columns read as zero.
func Parse(r io.Reader, logger *slog.Logger) (*Series, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty telemetry table", ErrValidation)
		}
		return nil, fmt.Errorf("reading telemetry header: %w", err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	_, hasLat := cols["LATITUDE"]
	_, hasLon := cols["LONGITUDE"]
	_, hasAlt := cols["ALTITUDE"]
	deriveGeodetic := !(hasLat && hasLon && hasAlt)
	if deriveGeodetic {
		logger.Info("telemetry lacks geodetic columns, deriving from inertial position")
	}

	var (
		samples []Sample
		skipped int
	)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				logger.Warn("skipping malformed telemetry row", "line", perr.Line, "error", perr.Err)
				skipped++
				continue
			}
			return nil, fmt.Errorf("reading telemetry: %w", err)
		}

		s, err := decodeRow(row, cols)
		if err != nil {
			line, _ := cr.FieldPos(0)
			logger.Warn("skipping telemetry row", "line", line, "error", err)
			skipped++
			continue
		}
		if deriveGeodetic {
			gp := transform.SubSatellitePoint(s.Position, met.ToTime(s.Time))
			s.Latitude, s.Longitude, s.Altitude = gp.LatDeg, gp.LonDeg, gp.AltM
		}
		samples = append(samples, s)
	}

	if skipped > 0 {
		logger.Warn("telemetry rows skipped", "skipped", skipped, "kept", len(samples))
	}
	return NewSeries(samples)
}

// mapColumns resolves header names to row positions.
func mapColumns(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToUpper(strings.TrimSpace(h))] = i
	}

	cols := make(map[string]int, len(columnAliases))
	for canon, aliases := range columnAliases {
		for _, a := range aliases {
			if i, ok := index[a]; ok {
				cols[canon] = i
				break
			}
		}
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("%w: missing column %s", ErrValidation, c)
		}
	}
	return cols, nil
}

func decodeRow(row []string, cols map[string]int) (Sample, error) {
	var s Sample
	get := func(name string, dst *float64) error {
		i, ok := cols[name]
		if !ok {
			return nil
		}
		if i >= len(row) {
			return fmt.Errorf("column %s missing (row has %d fields)", name, len(row))
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
		if err != nil {
			return fmt.Errorf("column %s: %w", name, err)
		}
		*dst = v
		return nil
	}

	fields := []struct {
		name string
		dst  *float64
	}{
		{"TIME", &s.Time},
		{"X", &s.Position[0]}, {"Y", &s.Position[1]}, {"Z", &s.Position[2]},
		{"Q1", &s.Quaternion[0]}, {"Q2", &s.Quaternion[1]}, {"Q3", &s.Quaternion[2]}, {"Q4", &s.Quaternion[3]},
		{"LATITUDE", &s.Latitude}, {"LONGITUDE", &s.Longitude}, {"ALTITUDE", &s.Altitude},
		{"WX", &s.AngularVelocity[0]}, {"WY", &s.AngularVelocity[1]}, {"WZ", &s.AngularVelocity[2]},
	}
	for _, f := range fields {
		if err := get(f.name, f.dst); err != nil {
			return Sample{}, err
		}
	}
	return s, nil
}
