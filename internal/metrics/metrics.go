package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posatt_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "posatt_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	bankBuildSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "posatt_bank_build_duration_seconds",
			Help:    "Time spent building the interpolation bank.",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
		},
	)

	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posatt_queries_total",
			Help: "Interpolation queries by quantity and outcome.",
		},
		[]string{"quantity", "outcome"},
	)

	datasetSamples = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "posatt_dataset_samples",
		Help: "Number of telemetry samples in the published dataset.",
	})

	datasetStartMET = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "posatt_dataset_start_met_seconds",
		Help: "First telemetry time of the published dataset (MET).",
	})

	datasetEndMET = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "posatt_dataset_end_met_seconds",
		Help: "Last telemetry time of the published dataset (MET).",
	})

	datasetAgeSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "posatt_dataset_age_seconds",
		Help: "Seconds since the published dataset was loaded.",
	})

	gtiSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "posatt_gti_duration_seconds",
			Help: "Total duration of the most recently computed GTI list by kind.",
		},
		[]string{"kind"},
	)

	pointingWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "posatt_pointing_workers",
		Help: "Configured size of the pointing worker pool.",
	})

	pointingBatchSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "posatt_pointing_batch_duration_seconds",
		Help:    "Duration of parallel pointing batches.",
		Buckets: prometheus.DefBuckets,
	})

	archiveRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posatt_archive_runs_total",
			Help: "GTI runs written to the archive by outcome.",
		},
		[]string{"outcome"},
	)

	streamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "posatt_streams_active",
		Help: "Number of open SSE track streams.",
	})

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posatt_stream_connections_total",
			Help: "SSE connection events.",
		},
		[]string{"event"},
	)

	streamMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "posatt_stream_messages_total",
		Help: "SSE messages written.",
	})

	streamBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "posatt_stream_bytes_total",
		Help: "SSE bytes written.",
	})

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posatt_stream_errors_total",
			Help: "SSE errors by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		bankBuildSeconds,
		queriesTotal,
		datasetSamples,
		datasetStartMET,
		datasetEndMET,
		datasetAgeSeconds,
		gtiSeconds,
		pointingWorkers,
		pointingBatchSeconds,
		archiveRunsTotal,
		streamsActive,
		streamConnectionsTotal,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveBankBuild records the duration of an interpolation bank build.
func ObserveBankBuild(d time.Duration) { bankBuildSeconds.Observe(d.Seconds()) }

// IncQuery counts one interpolation query.
// outcome is one of "ok", "out_of_range" or "invalid".
func IncQuery(quantity, outcome string) { queriesTotal.WithLabelValues(quantity, outcome).Inc() }

// SetDataset updates the gauges describing the published dataset.
func SetDataset(samples int, startMET, endMET float64) {
	datasetSamples.Set(float64(samples))
	datasetStartMET.Set(startMET)
	datasetEndMET.Set(endMET)
}

// SetDatasetAge sets the age of the published dataset.
func SetDatasetAge(d time.Duration) { datasetAgeSeconds.Set(d.Seconds()) }

// SetGTIDuration records the total duration of a GTI list.
func SetGTIDuration(kind string, seconds float64) { gtiSeconds.WithLabelValues(kind).Set(seconds) }

// SetPointingWorkers records the worker pool size.
func SetPointingWorkers(n int) { pointingWorkers.Set(float64(n)) }

// ObservePointingBatch records the duration of a parallel pointing batch.
func ObservePointingBatch(d time.Duration) { pointingBatchSeconds.Observe(d.Seconds()) }

// IncArchiveRuns counts one archive write.
func IncArchiveRuns(outcome string) { archiveRunsTotal.WithLabelValues(outcome).Inc() }

func IncStreamsActive()                 { streamsActive.Inc() }
func DecStreamsActive()                 { streamsActive.Dec() }
func IncStreamConnections(event string) { streamConnectionsTotal.WithLabelValues(event).Inc() }
func IncStreamMessages()                { streamMessagesTotal.Inc() }
func AddStreamBytes(n int64)            { streamBytesTotal.Add(float64(n)) }
func IncStreamErrors(reason string)     { streamErrorsTotal.WithLabelValues(reason).Inc() }

// knownRoutes are exact paths reported under their own label.
var knownRoutes = map[string]bool{
	"/":                    true,
	"/healthz":             true,
	"/readyz":              true,
	"/metrics":             true,
	"/api/v1/dataset":      true,
	"/api/v1/pointing":     true,
	"/api/v1/geocenter":    true,
	"/api/v1/earth-radius": true,
	"/api/v1/track":        true,
	"/api/v1/gti/sun":      true,
	"/api/v1/gti/saa":      true,
	"/api/v1/gti/good":     true,
	"/api/v1/passes":       true,
	"/api/v1/hia":          true,
	"/api/v1/runs":         true,
	"/api/v1/stream/track": true,
}

const runsPrefix = "/api/v1/runs/"

// normalizeRoute maps a request path to a bounded set of metric labels.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if id, ok := strings.CutPrefix(path, runsPrefix); ok && id != "" && !strings.Contains(id, "/") {
		return runsPrefix + "{run_id}"
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the underlying writer so SSE keeps working behind the middleware.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		path := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(duration)
	})
}
