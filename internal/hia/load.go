package hia

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// LoadOptions describe the layout of the grid tables.
type LoadOptions struct {
	CoordSkipRows int  // leading lines skipped in the coordinate table
	FluxSkipRows  int  // leading lines skipped in the flux table
	Comment       byte // text after this byte is ignored; 0 means '\''
	Logger        *slog.Logger
}

// DefaultLoadOptions matches the layout of the GRID SAA grid exports.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{CoordSkipRows: 26, FluxSkipRows: 30, Comment: '\''}
}

// Load reads the coordinate table (index, lat, lon) and the flux table
// (index, *, flux), aligned by row, and builds an Index.
func Load(coordPath, fluxPath string, opts LoadOptions) (*Index, error) {
	if opts.Comment == 0 {
		opts.Comment = '\''
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	coordRows, err := readTableFile(coordPath, opts.CoordSkipRows, opts.Comment, 3)
	if err != nil {
		return nil, err
	}
	fluxRows, err := readTableFile(fluxPath, opts.FluxSkipRows, opts.Comment, 3)
	if err != nil {
		return nil, err
	}

	coords := make([]Coordinate, len(coordRows))
	for i, r := range coordRows {
		coords[i] = Coordinate{Lat: r[1], Lon: r[2]}
	}
	flux := make([]float64, len(fluxRows))
	for i, r := range fluxRows {
		flux[i] = r[2]
	}

	idx, err := New(coords, flux)
	if err != nil {
		return nil, fmt.Errorf("building grid from %s and %s: %w", coordPath, fluxPath, err)
	}
	logger.Info("hia grid loaded",
		"coord_path", coordPath,
		"flux_path", fluxPath,
		"nodes", idx.Len(),
		"occupied", idx.OccupiedCount(),
	)
	return idx, nil
}

func readTableFile(path string, skip int, comment byte, minCols int) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening grid table: %w", err)
	}
	defer f.Close()

	rows, err := readTable(f, skip, comment, minCols)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// readTable parses comma-separated numeric rows after skipping the first
// skip lines. Blank lines and comments are ignored.
func readTable(r io.Reader, skip int, comment byte, minCols int) ([][]float64, error) {
	scanner := bufio.NewScanner(r)
	var (
		rows   [][]float64
		lineNo int
	)
	for scanner.Scan() {
		lineNo++
		if lineNo <= skip {
			continue
		}
		line := scanner.Text()
		if i := strings.IndexByte(line, comment); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) < minCols {
			return nil, fmt.Errorf("%w: line %d has %d columns, want at least %d", ErrValidation, lineNo, len(fields), minCols)
		}
		row := make([]float64, len(fields))
		for j, fld := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(fld), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %d: %v", ErrValidation, lineNo, j+1, err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading grid table: %w", err)
	}
	return rows, nil
}
