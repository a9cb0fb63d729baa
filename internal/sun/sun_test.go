package sun

import (
	"math"
	"testing"
	"time"

	"github.com/GRID-datagroup/GRID-Data-tools/internal/met"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/transform"
)

func angleDiff(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	return math.Min(d, 360-d)
}

func TestMeeusDirection(t *testing.T) {
	tests := []struct {
		name    string
		at      time.Time
		wantRA  float64
		wantDec float64
	}{
		{"march equinox 2019", time.Date(2019, 3, 20, 21, 58, 0, 0, time.UTC), 0, 0},
		{"june solstice 2019", time.Date(2019, 6, 21, 15, 54, 0, 0, time.UTC), 90, 23.44},
		{"september equinox 2019", time.Date(2019, 9, 23, 7, 50, 0, 0, time.UTC), 180, 0},
		{"december solstice 2019", time.Date(2019, 12, 22, 4, 19, 0, 0, time.UTC), 270, -23.44},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Meeus{}.Direction(met.FromTime(tt.at))
			if angleDiff(got.RA, tt.wantRA) > 0.1 {
				t.Errorf("RA = %.4f, want %.2f", got.RA, tt.wantRA)
			}
			if math.Abs(got.Dec-tt.wantDec) > 0.1 {
				t.Errorf("Dec = %.4f, want %.2f", got.Dec, tt.wantDec)
			}
			if got.RA < 0 || got.RA >= 360 {
				t.Errorf("RA %.4f outside [0, 360)", got.RA)
			}
		})
	}
}

func TestVisible(t *testing.T) {
	geo := transform.RADec{RA: 0, Dec: 0}
	tests := []struct {
		name string
		sun  transform.RADec
		want bool
	}{
		{"behind earth", transform.RADec{RA: 10, Dec: 0}, false},
		{"opposite", transform.RADec{RA: 180, Dec: 0}, true},
		{"just outside limb", transform.RADec{RA: 0, Dec: 66}, true},
		{"just inside limb", transform.RADec{RA: 0, Dec: 64}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Visible(tt.sun, geo, 65); got != tt.want {
				t.Errorf("Visible = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFixed(t *testing.T) {
	f := Fixed{RA: 12, Dec: -3}
	if got := f.Direction(1e6); got != (transform.RADec{RA: 12, Dec: -3}) {
		t.Errorf("Direction = %+v", got)
	}
}
