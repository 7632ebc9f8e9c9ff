package pipeline

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounterMetricsSnapshotIsCopy(t *testing.T) {
	t.Parallel()

	metrics := NewCounterMetrics()
	metrics.Increment(EventCodeLogin)
	metrics.ObserveRun(StatusFailed, time.Second, 0)

	snapshot := metrics.Snapshot()
	snapshot[EventCodeLogin] = 42
	if metrics.Count(EventCodeLogin) != 1 {
		t.Fatalf("snapshot mutation leaked into recorder")
	}
	if metrics.Count(EventRunFailed) != 1 {
		t.Fatalf("expected failed run to be counted, got %v", metrics.Snapshot())
	}
}

func TestPrometheusMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	metrics := NewPrometheusMetrics(registry)

	metrics.Increment(EventDefaultRun)
	metrics.Increment(EventDefaultRun)
	metrics.ObserveRun(StatusReady, 250*time.Millisecond, 12)
	metrics.ObserveRun(StatusFailed, time.Second, 0)

	if got := testutil.ToFloat64(metrics.events.WithLabelValues(EventDefaultRun)); got != 2 {
		t.Fatalf("expected 2 default runs, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.runs.WithLabelValues(string(StatusReady))); got != 1 {
		t.Fatalf("expected 1 ready run, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.runs.WithLabelValues(string(StatusFailed))); got != 1 {
		t.Fatalf("expected 1 failed run, got %v", got)
	}
	if count := testutil.CollectAndCount(metrics.latency); count != 1 {
		t.Fatalf("expected duration histogram to be registered, got %d", count)
	}
}

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	metrics := NewPrometheusMetrics(registry)
	metrics.ObserveRun(StatusReady, time.Millisecond, 1)

	recorder := httptest.NewRecorder()
	Handler(registry).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), `ridemapper_pipeline_runs_total{status="ready"} 1`) {
		t.Fatalf("expected ready run in exposition, got %s", recorder.Body.String())
	}
}
