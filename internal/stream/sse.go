// Package stream replays the interpolated ground track over Server-Sent
// Events. Clients connect to GET /api/v1/stream/track and receive one
// message per sample of [start, end] at the requested rate.
//
// SSE message format:
//
//	data: {"type":"track","time":1200,"latitude":-12.5,"longitude":-40.1,...}\n\n
//
// The first message is always metadata and the last one is "end":
//
//	data: {"type":"metadata","detector":"det1","start":0,"end":86400,"step":10,"samples":8641}\n\n
//	data: {"type":"end","samples":8641}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval while idle.
package stream

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/GRID-datagroup/GRID-Data-tools/internal/geometry"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/httputil"
	"github.com/GRID-datagroup/GRID-Data-tools/internal/metrics"
)

const (
	defaultStep = 10.0
	defaultRate = 10.0
	minRate     = 0.001
	maxRate     = 1000.0
)

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // default 10
	MaxConcurrent      int           // global cap, default 1000
	KeepaliveInterval  time.Duration // default 30s
	TrustProxy         bool          // read client IPs from proxy headers
}

// Handler manages SSE streaming connections.
type Handler struct {
	store   *geometry.Store
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler over the published dataset.
func NewHandler(store *geometry.Store, config Config, logger *slog.Logger) *Handler {
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	return &Handler{
		store:   store,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxConcurrent),
		logger:  logger,
	}
}

type trackRequest struct {
	start, end, step float64
	rate             float64 // messages per second
}

func (q trackRequest) samples() int {
	return int(math.Floor((q.end-q.start)/q.step+1e-9)) + 1
}

func (q trackRequest) at(i int) float64 {
	return min(q.start+float64(i)*q.step, q.end)
}

// parseTrackRequest reads start, end, step and rate. start and end default
// to the dataset coverage and must lie inside it.
func parseTrackRequest(r *http.Request, coverStart, coverEnd float64) (trackRequest, error) {
	q := trackRequest{start: coverStart, end: coverEnd, step: defaultStep, rate: defaultRate}
	vals := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *float64
	}{{"start", &q.start}, {"end", &q.end}, {"step", &q.step}, {"rate", &q.rate}} {
		v := vals.Get(p.name)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return q, fmt.Errorf("invalid %s parameter %q", p.name, v)
		}
		*p.dst = f
	}
	switch {
	case !(q.step > 0):
		return q, errors.New("step must be positive")
	case !(q.rate >= minRate) || q.rate > maxRate:
		return q, fmt.Errorf("rate must be in [%g, %g]", minRate, maxRate)
	case q.end < q.start:
		return q, fmt.Errorf("end %g before start %g", q.end, q.start)
	case q.start < coverStart || q.end > coverEnd:
		return q, errOutOfCoverage
	}
	return q, nil
}

var errOutOfCoverage = errors.New("requested range outside telemetry coverage")

// HandleTrack serves the SSE ground-track stream.
// GET /api/v1/stream/track?start=0&end=600&step=10&rate=20
func (h *Handler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	// Snapshot the dataset so a reload does not change a running replay.
	ds := h.store.Get()
	if ds == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "no dataset loaded")
		return
	}
	bank := ds.Service.Bank()
	req, err := parseTrackRequest(r, bank.Start(), bank.End())
	if errors.Is(err, errOutOfCoverage) {
		httputil.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		httputil.WriteError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"start", req.start,
		"end", req.end,
		"step", req.step,
		"rate", req.rate,
	)

	c := &client{ip: ip, logger: h.logger}
	defer func() {
		h.limiter.release(ip)
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"messages", c.messagesSent,
			"bytes", c.bytesSent,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Long replays outlive the server's WriteTimeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}
	c.w, c.flusher, c.rc = w, flusher, rc

	// Jittered retry (3-7s) spreads reconnects after a restart.
	fmt.Fprintf(w, "retry: %d\n\n", 3000+rand.Intn(4000))
	flusher.Flush()

	n := req.samples()
	meta := metadataMessage{
		Type:     "metadata",
		Detector: ds.Detector,
		Source:   ds.Source,
		LoadedAt: ds.LoadedAt.UTC().Format(time.RFC3339),
		Start:    req.start,
		End:      req.end,
		Step:     req.step,
		Samples:  n,
	}
	if err := c.sendJSON(meta); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
		return
	}

	ticker := time.NewTicker(time.Duration(float64(time.Second) / req.rate))
	defer ticker.Stop()
	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	ctx := r.Context()
	for i := 0; i < n; {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			p, err := ds.Service.TrackAt(req.at(i))
			if err != nil {
				h.sendTrackError(c, req.at(i), err)
				return
			}
			if err := c.sendJSON(trackMessage{Type: "track", TrackPoint: p}); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}
			i++
			keepalive.Reset(h.config.KeepaliveInterval)

		case <-keepalive.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}

	if err := c.sendJSON(endMessage{Type: "end", Samples: n}); err != nil {
		metrics.IncStreamErrors("send_error")
	}
}

// sendTrackError reports a failed sample to the client before the stream
// closes.
func (h *Handler) sendTrackError(c *client, t float64, trackErr error) {
	metrics.IncStreamErrors("track_error")
	h.logger.Warn("stream track error", "remote_ip", c.ip, "time", t, "error", trackErr)
	if err := c.sendJSON(errorMessage{Type: "error", Error: trackErr.Error()}); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (error message)", "remote_ip", c.ip, "error", err)
	}
}

type metadataMessage struct {
	Type     string  `json:"type"`
	Detector string  `json:"detector"`
	Source   string  `json:"source"`
	LoadedAt string  `json:"loaded_at"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Step     float64 `json:"step"`
	Samples  int     `json:"samples"`
}

type trackMessage struct {
	Type string `json:"type"`
	geometry.TrackPoint
}

type endMessage struct {
	Type    string `json:"type"`
	Samples int    `json:"samples"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}
