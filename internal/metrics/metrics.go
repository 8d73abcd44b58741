package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all detector metrics
type Metrics struct {
	// Frame counters
	FramesRead      atomic.Uint64
	FramesProcessed atomic.Uint64
	FrameErrors     atomic.Uint64
	InferenceErrors atomic.Uint64

	// Session counters
	EventsLogged         atomic.Uint64
	DuplicatesSuppressed atomic.Uint64
	Flushes              atomic.Uint64
	FlushErrors          atomic.Uint64
	SnapshotsSaved       atomic.Uint64
	NotifyErrors         atomic.Uint64

	// Current state
	LastCount      atomic.Int64
	SessionRecords atomic.Int64

	inferenceLatency prometheus.Histogram
	registry         *prometheus.Registry
}

// New creates a Metrics instance with its own Prometheus registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		inferenceLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "detector_inference_seconds",
			Help:    "Time spent running the detector on one frame",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}

	m.registerPrometheusMetrics()

	return m
}

func (m *Metrics) counter(name, help string, v *atomic.Uint64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{Name: name, Help: help},
		func() float64 { return float64(v.Load()) },
	))
}

func (m *Metrics) gauge(name, help string, v *atomic.Int64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: name, Help: help},
		func() float64 { return float64(v.Load()) },
	))
}

func (m *Metrics) registerPrometheusMetrics() {
	m.counter("detector_frames_read_total", "Total frames taken from the camera", &m.FramesRead)
	m.counter("detector_frames_processed_total", "Total frames run through the detector", &m.FramesProcessed)
	m.counter("detector_frame_errors_total", "Total failed frame reads", &m.FrameErrors)
	m.counter("detector_inference_errors_total", "Total failed detector runs", &m.InferenceErrors)

	m.counter("detector_events_logged_total", "Total records appended to the session log", &m.EventsLogged)
	m.counter("detector_duplicates_suppressed_total", "Total samples dropped as duplicates", &m.DuplicatesSuppressed)
	m.counter("detector_flushes_total", "Total session flushes", &m.Flushes)
	m.counter("detector_flush_errors_total", "Total failed record file writes", &m.FlushErrors)
	m.counter("detector_snapshots_saved_total", "Total annotated snapshots written", &m.SnapshotsSaved)
	m.counter("detector_notify_errors_total", "Total failed notifications", &m.NotifyErrors)

	m.gauge("detector_last_count", "Object count of the latest logged record", &m.LastCount)
	m.gauge("detector_session_records", "Number of records in the session log", &m.SessionRecords)

	m.registry.MustRegister(m.inferenceLatency)
}

// ObserveInference records the duration of one detector run
func (m *Metrics) ObserveInference(d time.Duration) {
	m.inferenceLatency.Observe(d.Seconds())
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
