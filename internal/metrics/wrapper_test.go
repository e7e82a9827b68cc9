package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	return NewWithRegistry(registry), registry
}

func TestNewRecorder(t *testing.T) {
	metrics, _ := newTestMetrics(t)
	recorder := NewRecorder(metrics)

	if recorder == nil {
		t.Fatal("NewRecorder returned nil")
	}
	if recorder.m != metrics {
		t.Error("Recorder does not contain correct metrics instance")
	}
}

func TestRecorder_PredictionCounters(t *testing.T) {
	metrics, _ := newTestMetrics(t)
	recorder := NewRecorder(metrics)

	if v := testutil.ToFloat64(metrics.PredictionsTotal); v != 0 {
		t.Errorf("Expected initial counter value 0, got %f", v)
	}

	recorder.PredictionsInc()
	recorder.PredictionsInc()
	if v := testutil.ToFloat64(metrics.PredictionsTotal); v != 2 {
		t.Errorf("Expected 2 predictions, got %f", v)
	}

	recorder.CacheHitInc()
	recorder.CacheMissInc()
	recorder.CacheMissInc()
	if v := testutil.ToFloat64(metrics.CacheHits); v != 1 {
		t.Errorf("Expected 1 cache hit, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.CacheMisses); v != 2 {
		t.Errorf("Expected 2 cache misses, got %f", v)
	}
}

func TestRecorder_LabelledCounters(t *testing.T) {
	metrics, _ := newTestMetrics(t)
	recorder := NewRecorder(metrics)

	recorder.FailuresInc("invalid_input")
	recorder.FailuresInc("invalid_input")
	recorder.FailuresInc("inference")

	if v := testutil.ToFloat64(metrics.PredictionFailures.WithLabelValues("invalid_input")); v != 2 {
		t.Errorf("Expected 2 invalid_input failures, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.PredictionFailures.WithLabelValues("inference")); v != 1 {
		t.Errorf("Expected 1 inference failure, got %f", v)
	}

	recorder.FallbackInc("make")
	if v := testutil.ToFloat64(metrics.FallbackEncodings.WithLabelValues("make")); v != 1 {
		t.Errorf("Expected 1 make fallback, got %f", v)
	}
	if n := testutil.CollectAndCount(metrics.FallbackEncodings); n != 1 {
		t.Errorf("Expected one fallback series, got %d", n)
	}
}

func TestRecorder_Histograms(t *testing.T) {
	metrics, registry := newTestMetrics(t)
	recorder := NewRecorder(metrics)

	for _, v := range []float64{0.001, 0.005, 0.01} {
		recorder.LatencyObserve(v)
	}
	recorder.PriceObserve(13495)

	if n := testutil.CollectAndCount(metrics.PredictionLatency); n != 1 {
		t.Errorf("Expected latency histogram to be collected, got %d series", n)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	counts := map[string]uint64{}
	for _, mf := range families {
		for _, m := range mf.Metric {
			if h := m.GetHistogram(); h != nil {
				counts[mf.GetName()] = h.GetSampleCount()
			}
		}
	}
	if counts["autoprice_prediction_latency_seconds"] != 3 {
		t.Errorf("Expected 3 latency observations, got %d", counts["autoprice_prediction_latency_seconds"])
	}
	if counts["autoprice_predicted_price"] != 1 {
		t.Errorf("Expected 1 price observation, got %d", counts["autoprice_predicted_price"])
	}
}

func TestRecorder_HTTP(t *testing.T) {
	metrics, _ := newTestMetrics(t)
	recorder := NewRecorder(metrics)

	recorder.RequestObserve("/api/predict", 200, 0.002)
	recorder.RequestObserve("/api/predict", 400, 0.001)
	recorder.RequestObserve("/api/predict", 200, 0.003)

	if v := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/api/predict", "200")); v != 2 {
		t.Errorf("Expected 2 OK requests, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/api/predict", "400")); v != 1 {
		t.Errorf("Expected 1 bad request, got %f", v)
	}

	recorder.WSConnectionsAdd(1)
	recorder.WSConnectionsAdd(1)
	recorder.WSConnectionsAdd(-1)
	if v := testutil.ToFloat64(metrics.WSConnections); v != 1 {
		t.Errorf("Expected 1 open stream, got %f", v)
	}

	recorder.PredictionLogErrorInc()
	if v := testutil.ToFloat64(metrics.PredictionLogErrs); v != 1 {
		t.Errorf("Expected 1 log error, got %f", v)
	}
}

func TestSetBundleInfo(t *testing.T) {
	metrics, _ := newTestMetrics(t)
	loaded := time.Unix(1_700_000_000, 0)

	metrics.SetBundleInfo(25, loaded)

	if v := testutil.ToFloat64(metrics.BundleFeatures); v != 25 {
		t.Errorf("Expected 25 features, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.BundleLoadedAt); v != 1_700_000_000 {
		t.Errorf("Expected load time 1700000000, got %f", v)
	}
}

func TestNewWithRegistry_Isolated(t *testing.T) {
	metrics, registry := newTestMetrics(t)
	metrics.PredictionsTotal.Inc()

	expected := `
# HELP autoprice_predictions_total Total number of successful price predictions
# TYPE autoprice_predictions_total counter
autoprice_predictions_total 1
`
	if err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "autoprice_predictions_total"); err != nil {
		t.Errorf("unexpected metric output: %v", err)
	}

	// A second set on a fresh registry must not collide.
	other, _ := newTestMetrics(t)
	if v := testutil.ToFloat64(other.PredictionsTotal); v != 0 {
		t.Errorf("Expected isolated registry to start at 0, got %f", v)
	}
}
