// Package detector reads the detector table: each detector's pointing axis
// and the SAA grid files its occupancy index is built from.
package detector

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/naoina/toml"

	"github.com/GRID-datagroup/GRID-Data-tools/internal/hia"
)

var (
	// ErrInvalid reports a malformed detector table.
	ErrInvalid = errors.New("detector: invalid configuration")
	// ErrUnknown reports a lookup for an id that is not configured.
	ErrUnknown = errors.New("detector: unknown detector")
)

// Detector describes one detector unit.
type Detector struct {
	ID     string    `toml:"id" json:"id"`
	Name   string    `toml:"name" json:"name,omitempty"`
	Normal []float64 `toml:"normal" json:"normal"` // body-frame pointing axis

	CoordFile     string `toml:"coord_file" json:"coord_file"`
	FluxFile      string `toml:"flux_file" json:"flux_file"`
	CoordSkipRows *int   `toml:"coord_skip_rows" json:"-"`
	FluxSkipRows  *int   `toml:"flux_skip_rows" json:"-"`
}

// Config is the decoded detector table.
type Config struct {
	// GridDir is the base directory for relative grid paths. When empty,
	// paths resolve against the directory of the configuration file.
	GridDir   string     `toml:"grid_dir"`
	Detectors []Detector `toml:"detector"`
}

// Load reads and validates a TOML detector table.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading detector config: %w", err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}

	base := cfg.GridDir
	if base == "" {
		base = filepath.Dir(path)
	} else if !filepath.IsAbs(base) {
		base = filepath.Join(filepath.Dir(path), base)
	}
	for i := range cfg.Detectors {
		d := &cfg.Detectors[i]
		d.CoordFile = resolve(base, d.CoordFile)
		d.FluxFile = resolve(base, d.FluxFile)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func (c *Config) validate() error {
	if len(c.Detectors) == 0 {
		return fmt.Errorf("%w: no detectors defined", ErrInvalid)
	}
	seen := make(map[string]bool, len(c.Detectors))
	for i, d := range c.Detectors {
		if d.ID == "" {
			return fmt.Errorf("%w: detector %d has no id", ErrInvalid, i)
		}
		if seen[d.ID] {
			return fmt.Errorf("%w: duplicate detector id %q", ErrInvalid, d.ID)
		}
		seen[d.ID] = true
		if len(d.Normal) != 3 {
			return fmt.Errorf("%w: detector %q normal needs 3 components, got %d", ErrInvalid, d.ID, len(d.Normal))
		}
		if n := math.Hypot(math.Hypot(d.Normal[0], d.Normal[1]), d.Normal[2]); !(n > 0) || math.IsInf(n, 0) {
			return fmt.Errorf("%w: detector %q normal is degenerate", ErrInvalid, d.ID)
		}
		if d.CoordFile == "" || d.FluxFile == "" {
			return fmt.Errorf("%w: detector %q needs coord_file and flux_file", ErrInvalid, d.ID)
		}
		for _, rows := range []*int{d.CoordSkipRows, d.FluxSkipRows} {
			if rows != nil && *rows < 0 {
				return fmt.Errorf("%w: detector %q has a negative skip row count", ErrInvalid, d.ID)
			}
		}
	}
	return nil
}

// Lookup returns the detector with the given id.
func (c *Config) Lookup(id string) (Detector, error) {
	for _, d := range c.Detectors {
		if d.ID == id {
			return d, nil
		}
	}
	return Detector{}, fmt.Errorf("%w: %q", ErrUnknown, id)
}

// IDs returns the configured detector ids in file order.
func (c *Config) IDs() []string {
	ids := make([]string, len(c.Detectors))
	for i, d := range c.Detectors {
		ids[i] = d.ID
	}
	return ids
}

// Direction returns the pointing axis as a vector.
func (d Detector) Direction() [3]float64 {
	return [3]float64{d.Normal[0], d.Normal[1], d.Normal[2]}
}

// LoadOptions returns the grid layout for this detector, defaulting to the
// standard GRID export layout.
func (d Detector) LoadOptions(logger *slog.Logger) hia.LoadOptions {
	opts := hia.DefaultLoadOptions()
	if d.CoordSkipRows != nil {
		opts.CoordSkipRows = *d.CoordSkipRows
	}
	if d.FluxSkipRows != nil {
		opts.FluxSkipRows = *d.FluxSkipRows
	}
	opts.Logger = logger
	return opts
}

// LoadIndex reads the detector's SAA grid.
func (d Detector) LoadIndex(logger *slog.Logger) (*hia.Index, error) {
	idx, err := hia.Load(d.CoordFile, d.FluxFile, d.LoadOptions(logger))
	if err != nil {
		return nil, fmt.Errorf("detector %q: %w", d.ID, err)
	}
	return idx, nil
}
