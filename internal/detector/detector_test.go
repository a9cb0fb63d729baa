package detector

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

const sampleConfig = `
grid_dir = "grids"

[[detector]]
id = "det1"
name = "GRID-01 unit 1"
normal = [0.0, 0.0, 1.0]
coord_file = "det1/coord.txt"
flux_file = "det1/flux.txt"
coord_skip_rows = 1
flux_skip_rows = 1

[[detector]]
id = "det2"
normal = [0.5, 0.5, 0.0]
coord_file = "/abs/coord.txt"
flux_file = "/abs/flux.txt"
`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "detectors.toml", sampleConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff([]string{"det1", "det2"}, cfg.IDs()); diff != "" {
		t.Errorf("IDs (-want +got):\n%s", diff)
	}

	d1, err := cfg.Lookup("det1")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "grids", "det1", "coord.txt"); d1.CoordFile != want {
		t.Errorf("CoordFile = %q, want %q", d1.CoordFile, want)
	}
	if d1.Direction() != [3]float64{0, 0, 1} {
		t.Errorf("Direction = %v", d1.Direction())
	}
	opts := d1.LoadOptions(testLogger)
	if opts.CoordSkipRows != 1 || opts.FluxSkipRows != 1 {
		t.Errorf("LoadOptions = %+v", opts)
	}

	d2, _ := cfg.Lookup("det2")
	if d2.FluxFile != "/abs/flux.txt" {
		t.Errorf("absolute path rewritten: %q", d2.FluxFile)
	}
	opts = d2.LoadOptions(testLogger)
	if opts.CoordSkipRows != 26 || opts.FluxSkipRows != 30 {
		t.Errorf("default LoadOptions = %+v", opts)
	}

	if _, err := cfg.Lookup("det9"); !errors.Is(err, ErrUnknown) {
		t.Errorf("Lookup unknown err = %v", err)
	}
}

func TestLoadIndex(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "det1/coord.txt", "' header\n1, 0.0, 0.0\n2, 10.0, 10.0\n")
	write(t, dir, "det1/flux.txt", "' header\n1, 0, 5.0\n2, 0, 0.0\n")
	path := write(t, dir, "detectors.toml", `
[[detector]]
id = "det1"
normal = [1.0, 0.0, 0.0]
coord_file = "det1/coord.txt"
flux_file = "det1/flux.txt"
coord_skip_rows = 1
flux_skip_rows = 1
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	d, _ := cfg.Lookup("det1")
	idx, err := d.LoadIndex(testLogger)
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	if got := idx.FluxAt(1, 1); got != 5 {
		t.Errorf("FluxAt = %v, want 5", got)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", ``},
		{"syntax", `[[detector]`},
		{"missing id", "[[detector]]\nnormal = [0.0, 0.0, 1.0]\ncoord_file = \"a\"\nflux_file = \"b\"\n"},
		{"duplicate", "[[detector]]\nid = \"a\"\nnormal = [0.0, 0.0, 1.0]\ncoord_file = \"a\"\nflux_file = \"b\"\n" +
			"[[detector]]\nid = \"a\"\nnormal = [0.0, 0.0, 1.0]\ncoord_file = \"a\"\nflux_file = \"b\"\n"},
		{"short normal", "[[detector]]\nid = \"a\"\nnormal = [0.0, 1.0]\ncoord_file = \"a\"\nflux_file = \"b\"\n"},
		{"zero normal", "[[detector]]\nid = \"a\"\nnormal = [0.0, 0.0, 0.0]\ncoord_file = \"a\"\nflux_file = \"b\"\n"},
		{"no grid", "[[detector]]\nid = \"a\"\nnormal = [0.0, 0.0, 1.0]\n"},
		{"negative rows", "[[detector]]\nid = \"a\"\nnormal = [0.0, 0.0, 1.0]\ncoord_file = \"a\"\nflux_file = \"b\"\ncoord_skip_rows = -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := write(t, t.TempDir(), "d.toml", tt.body)
			if _, err := Load(path); !errors.Is(err, ErrInvalid) {
				t.Errorf("err = %v, want ErrInvalid", err)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}
