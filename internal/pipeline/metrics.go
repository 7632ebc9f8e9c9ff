package pipeline

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Event names used for metrics and log codes.
const (
	EventRunReady   = "pipeline.run.ready"
	EventRunFailed  = "pipeline.run.failed"
	EventCodeLogin  = "pipeline.invocation.code"
	EventUserLogin  = "pipeline.invocation.uid"
	EventDefaultRun = "pipeline.invocation.default"
)

// MetricsRecorder receives pipeline events.
type MetricsRecorder interface {
	Increment(event string)
	ObserveRun(status Status, duration time.Duration, activityCount int)
}

type noopMetrics struct{}

func (noopMetrics) Increment(string) {}

func (noopMetrics) ObserveRun(Status, time.Duration, int) {}

// CounterMetrics implements MetricsRecorder with in-memory counts.
type CounterMetrics struct {
	mutex  sync.Mutex
	counts map[string]int64
}

// NewCounterMetrics constructs an in-memory metrics recorder.
func NewCounterMetrics() *CounterMetrics {
	return &CounterMetrics{counts: make(map[string]int64)}
}

// Increment increases the counter for the given event.
func (recorder *CounterMetrics) Increment(event string) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.counts[event]++
}

// ObserveRun counts completed runs under pipeline.run.<status>.
func (recorder *CounterMetrics) ObserveRun(status Status, _ time.Duration, _ int) {
	recorder.Increment("pipeline.run." + string(status))
}

// Count returns the current value for the given event.
func (recorder *CounterMetrics) Count(event string) int64 {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	return recorder.counts[event]
}

// Snapshot returns a copy of all recorded counters.
func (recorder *CounterMetrics) Snapshot() map[string]int64 {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	clone := make(map[string]int64, len(recorder.counts))
	for key, value := range recorder.counts {
		clone[key] = value
	}
	return clone
}

// PrometheusMetrics exports pipeline events to a Prometheus registry.
type PrometheusMetrics struct {
	events     *prometheus.CounterVec
	runs       *prometheus.CounterVec
	latency    prometheus.Histogram
	activities prometheus.Histogram
}

// NewPrometheusMetrics registers the pipeline collectors on registerer.
func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	metrics := &PrometheusMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ridemapper_pipeline_events_total",
			Help: "Pipeline events by name.",
		}, []string{"event"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ridemapper_pipeline_runs_total",
			Help: "Completed pipeline runs by status.",
		}, []string{"status"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ridemapper_pipeline_duration_seconds",
			Help:    "Wall time of a pipeline run.",
			Buckets: prometheus.DefBuckets,
		}),
		activities: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ridemapper_pipeline_activities",
			Help:    "Normalized activities returned per ready run.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 75, 100},
		}),
	}
	registerer.MustRegister(metrics.events, metrics.runs, metrics.latency, metrics.activities)
	return metrics
}

// Increment counts the named event.
func (metrics *PrometheusMetrics) Increment(event string) {
	metrics.events.WithLabelValues(event).Inc()
}

// ObserveRun records status, latency and, for ready runs, the activity count.
func (metrics *PrometheusMetrics) ObserveRun(status Status, duration time.Duration, activityCount int) {
	metrics.runs.WithLabelValues(string(status)).Inc()
	metrics.latency.Observe(duration.Seconds())
	if status == StatusReady {
		metrics.activities.Observe(float64(activityCount))
	}
}

// Handler exposes the gathered metrics in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
