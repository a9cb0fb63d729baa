package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/GRID-datagroup/GRID-Data-tools/internal/geometry"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/gti"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/gtistore"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/hia"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/httputil"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/interp"
)

var (
	errBadParam  = errors.New("invalid parameter")
	errNoDataset = errors.New("no dataset loaded")
)

const defaultStep = 1.0

// floatParam parses a single finite float query value, returning def when
// the parameter is absent.
func floatParam(r *http.Request, name string, def float64) (float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s=%q", errBadParam, name, v)
	}
	return f, nil
}

// floatList parses every value of a repeated parameter. Values may also be
// comma separated: ?t=1,2&t=3.
func floatList(r *http.Request, name string) ([]float64, error) {
	var out []float64
	for _, v := range r.URL.Query()[name] {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			f, err := strconv.ParseFloat(part, 64)
			if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, fmt.Errorf("%w: %s=%q", errBadParam, name, part)
			}
			out = append(out, f)
		}
	}
	return out, nil
}

// parseTimes returns explicit ?t= values when present; otherwise the grid
// start..end by step, where start and end default to the dataset coverage.
func parseTimes(r *http.Request, bank *interp.Bank, limit int) ([]float64, error) {
	ts, err := floatList(r, "t")
	if err != nil {
		return nil, err
	}
	if len(ts) > 0 {
		if len(ts) > limit {
			return nil, fmt.Errorf("%w: %d samples exceeds limit %d", geometry.ErrBudget, len(ts), limit)
		}
		return ts, nil
	}

	start, err := floatParam(r, "start", bank.Start())
	if err != nil {
		return nil, err
	}
	end, err := floatParam(r, "end", bank.End())
	if err != nil {
		return nil, err
	}
	step, err := floatParam(r, "step", defaultStep)
	if err != nil {
		return nil, err
	}
	return geometry.Times(start, end, step, limit)
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errNoDataset):
		return http.StatusServiceUnavailable
	case errors.Is(err, interp.ErrOutOfRange),
		errors.Is(err, geometry.ErrAttitude):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errBadParam),
		errors.Is(err, geometry.ErrBudget),
		errors.Is(err, interp.ErrValidation),
		errors.Is(err, gti.ErrValidation),
		errors.Is(err, hia.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, gtistore.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	httputil.WriteError(w, status, msg)
}
