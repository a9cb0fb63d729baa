package met

import (
	"math"
	"testing"
	"time"
)

func TestJD(t *testing.T) {
	tests := []struct {
		name string
		sec  float64
		want float64
	}{
		{"epoch", 0, 2458119.5},
		{"one day", 86400, 2458120.5},
		{"half day", 43200, 2458120.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := JD(tt.sec)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("JD(%v) = %.10f, want %.10f", tt.sec, got, tt.want)
			}
		})
	}
}

func TestJDEAheadOfJD(t *testing.T) {
	diff := (JDE(1000) - JD(1000)) * secondsPerDay
	if math.Abs(diff-deltaT) > 1e-3 {
		t.Errorf("JDE-JD = %.6f s, want %.3f s", diff, deltaT)
	}
}

func TestTimeRoundTrip(t *testing.T) {
	for _, sec := range []float64{0, 1.5, 2.72e7, 1.98765e8 + 0.25} {
		got := FromTime(ToTime(sec))
		if math.Abs(got-sec) > 1e-6 {
			t.Errorf("FromTime(ToTime(%v)) = %v", sec, got)
		}
	}
}

func TestDates(t *testing.T) {
	if got := DateString(Launch); got != "181029" {
		t.Errorf("DateString(Launch) = %q, want 181029", got)
	}

	days := DayNumber(Launch)
	if days != 301 {
		t.Errorf("DayNumber(Launch) = %d, want 301", days)
	}
	if got := DaysToDate(days); got != "181029" {
		t.Errorf("DaysToDate(%d) = %q, want 181029", days, got)
	}

	n, err := DateToDays("181029")
	if err != nil {
		t.Fatalf("DateToDays: %v", err)
	}
	if n != days {
		t.Errorf("DateToDays = %d, want %d", n, days)
	}

	if _, err := DateToDays("18-10-29"); err == nil {
		t.Error("expected error for malformed date")
	}

	late := time.Date(2018, 10, 29, 23, 59, 59, 0, time.UTC)
	if DayNumber(late) != days {
		t.Errorf("DayNumber(%v) = %d, want %d", late, DayNumber(late), days)
	}
}
