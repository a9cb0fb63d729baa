package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/GRID-datagroup/GRID-Data-tools/internal/geometry"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/gti"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/gtistore"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/httputil"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/met"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/passes"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/transform"
)

type handlers struct {
	store      *geometry.Store
	archive    *gtistore.Store
	maxSamples int
	workers    int
	logger     *slog.Logger
}

// current returns the published dataset or writes 503.
func (h *handlers) current(w http.ResponseWriter) *geometry.Dataset {
	ds := h.store.Get()
	if ds == nil {
		writeErr(w, errNoDataset)
	}
	return ds
}

type datasetResponse struct {
	Detector     string     `json:"detector"`
	Source       string     `json:"source"`
	LoadedAt     time.Time  `json:"loaded_at"`
	Start        float64    `json:"start"`
	End          float64    `json:"end"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      time.Time  `json:"end_time"`
	Samples      int        `json:"samples"`
	Normal       [3]float64 `json:"normal"`
	HasOccupancy bool       `json:"has_occupancy"`
	GridCells    int        `json:"grid_cells,omitempty"`
}

func (h *handlers) dataset(w http.ResponseWriter, r *http.Request) {
	ds := h.current(w)
	if ds == nil {
		return
	}
	bank := ds.Service.Bank()
	resp := datasetResponse{
		Detector:     ds.Detector,
		Source:       ds.Source,
		LoadedAt:     ds.LoadedAt.UTC(),
		Start:        bank.Start(),
		End:          bank.End(),
		StartTime:    met.ToTime(bank.Start()),
		EndTime:      met.ToTime(bank.End()),
		Samples:      bank.Samples(),
		Normal:       ds.Normal,
		HasOccupancy: bank.HasOccupancy(),
	}
	if ds.Grid != nil {
		resp.GridCells = ds.Grid.Len()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type pointingResponse struct {
	Times    []float64         `json:"times"`
	Pointing []transform.RADec `json:"pointing"`
}

// pointing uses the dataset detector axis unless x, y and z are given.
func (h *handlers) pointing(w http.ResponseWriter, r *http.Request) {
	ds := h.current(w)
	if ds == nil {
		return
	}
	times, err := parseTimes(r, ds.Service.Bank(), h.maxSamples)
	if err != nil {
		writeErr(w, err)
		return
	}
	dir := ds.Normal
	for i, name := range []string{"x", "y", "z"} {
		if dir[i], err = floatParam(r, name, dir[i]); err != nil {
			writeErr(w, err)
			return
		}
	}

	out, err := ds.Service.PointingParallel(r.Context(), times, dir, h.workers)
	if err != nil {
		writeErr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pointingResponse{Times: times, Pointing: out})
}

func (h *handlers) geocenter(w http.ResponseWriter, r *http.Request) {
	ds := h.current(w)
	if ds == nil {
		return
	}
	times, err := parseTimes(r, ds.Service.Bank(), h.maxSamples)
	if err != nil {
		writeErr(w, err)
		return
	}
	out, err := ds.Service.Geocenter(times)
	if err != nil {
		writeErr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"times": times, "geocenter": out})
}

func (h *handlers) earthRadius(w http.ResponseWriter, r *http.Request) {
	ds := h.current(w)
	if ds == nil {
		return
	}
	times, err := parseTimes(r, ds.Service.Bank(), h.maxSamples)
	if err != nil {
		writeErr(w, err)
		return
	}
	out, err := ds.Service.EarthAngularRadius(times)
	if err != nil {
		writeErr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"times": times, "radius": out})
}

func (h *handlers) track(w http.ResponseWriter, r *http.Request) {
	ds := h.current(w)
	if ds == nil {
		return
	}
	times, err := parseTimes(r, ds.Service.Bank(), h.maxSamples)
	if err != nil {
		writeErr(w, err)
		return
	}
	out, err := ds.Service.Track(times)
	if err != nil {
		writeErr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"track": out})
}

type gtiResponse struct {
	Kind          string   `json:"kind"`
	Samples       int      `json:"samples"`
	Intervals     gti.List `json:"intervals"`
	TotalDuration float64  `json:"total_duration"`
}

func (h *handlers) intervals(kind string, extract func(*geometry.Service, []float64) (gti.List, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds := h.current(w)
		if ds == nil {
			return
		}
		times, err := parseTimes(r, ds.Service.Bank(), h.maxSamples)
		if err != nil {
			writeErr(w, err)
			return
		}
		list, err := extract(ds.Service, times)
		if err != nil {
			writeErr(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, gtiResponse{
			Kind:          kind,
			Samples:       len(times),
			Intervals:     list,
			TotalDuration: list.Duration(),
		})
	}
}

func (h *handlers) gtiSun(w http.ResponseWriter, r *http.Request) {
	h.intervals("sun", (*geometry.Service).SunVisibilityIntervals)(w, r)
}

func (h *handlers) gtiSAA(w http.ResponseWriter, r *http.Request) {
	h.intervals("saa", (*geometry.Service).SAAIntervals)(w, r)
}

func (h *handlers) gtiGood(w http.ResponseWriter, r *http.Request) {
	h.intervals("good", (*geometry.Service).GoodTimeIntervals)(w, r)
}

// passages reports SAA passages over start..end. The coarse grid is bounded
// by the sample budget like any other grid; the whole search, fine scans
// included, may use twice the budget.
func (h *handlers) passages(w http.ResponseWriter, r *http.Request) {
	ds := h.current(w)
	if ds == nil {
		return
	}
	bank := ds.Service.Bank()
	var req passes.Request
	var err error
	params := []struct {
		name string
		dst  *float64
		def  float64
	}{
		{"start", &req.Start, bank.Start()},
		{"end", &req.End, bank.End()},
		{"coarse_step", &req.CoarseStep, 30},
		{"fine_step", &req.FineStep, 1},
		{"track_step", &req.TrackStep, 10},
		{"min_duration", &req.MinDuration, 0},
	}
	for _, p := range params {
		if *p.dst, err = floatParam(r, p.name, p.def); err != nil {
			writeErr(w, err)
			return
		}
	}
	if _, err := geometry.Times(req.Start, req.End, req.CoarseStep, h.maxSamples); err != nil {
		writeErr(w, err)
		return
	}

	req.MaxSamples = 2 * h.maxSamples

	found, err := passes.Find(r.Context(), ds.Service, req)
	if err != nil {
		writeErr(w, err)
		return
	}
	if found == nil {
		found = []passes.Passage{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"passages": found})
}

type hiaPoint struct {
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Flux          float64 `json:"flux"`
	Occupied      bool    `json:"occupied"`
	GridLatitude  float64 `json:"grid_latitude"`
	GridLongitude float64 `json:"grid_longitude"`
}

func (h *handlers) hiaLookup(w http.ResponseWriter, r *http.Request) {
	ds := h.current(w)
	if ds == nil {
		return
	}
	if ds.Grid == nil {
		httputil.WriteError(w, http.StatusNotFound, "no HIA grid configured")
		return
	}
	lats, err := floatList(r, "lat")
	if err != nil {
		writeErr(w, err)
		return
	}
	lons, err := floatList(r, "lon")
	if err != nil {
		writeErr(w, err)
		return
	}
	if len(lats) == 0 || len(lats) != len(lons) || len(lats) > h.maxSamples {
		httputil.WriteError(w, http.StatusBadRequest, "lat and lon must be given in equal, non-zero numbers")
		return
	}

	out := make([]hiaPoint, len(lats))
	for i := range lats {
		row, _ := ds.Grid.Nearest(lats[i], lons[i])
		c := ds.Grid.Coordinate(row)
		f := ds.Grid.FluxAt(lats[i], lons[i])
		out[i] = hiaPoint{
			Latitude:      lats[i],
			Longitude:     lons[i],
			Flux:          f,
			Occupied:      f > 0,
			GridLatitude:  c.Lat,
			GridLongitude: c.Lon,
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"points": out})
}

// createRun computes Sun, SAA and good intervals over the requested grid
// and archives them.
func (h *handlers) createRun(w http.ResponseWriter, r *http.Request) {
	ds := h.current(w)
	if ds == nil {
		return
	}
	times, err := parseTimes(r, ds.Service.Bank(), h.maxSamples)
	if err != nil {
		writeErr(w, err)
		return
	}
	run, err := gtistore.Compute(ds, times)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := h.archive.Insert(r.Context(), run); err != nil {
		h.logger.Error("archive insert failed", "error", err)
		writeErr(w, err)
		return
	}
	h.logger.Info("gti run archived",
		"run_id", run.RunID,
		"detector", run.Detector,
		"good_intervals", len(run.Good),
	)
	httputil.WriteJSON(w, http.StatusCreated, run)
}

func (h *handlers) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := floatParam(r, "limit", 100)
	if err != nil {
		writeErr(w, err)
		return
	}
	runs, err := h.archive.List(r.Context(), r.URL.Query().Get("detector"), int(limit))
	if err != nil {
		writeErr(w, err)
		return
	}
	if runs == nil {
		runs = []gtistore.Run{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (h *handlers) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.archive.Get(r.Context(), r.PathValue("run_id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, run)
}
