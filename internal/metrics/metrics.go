// Package metrics provides Prometheus metrics for the price prediction service.
// Everything is exposed on the /metrics endpoint of the HTTP server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "autoprice"

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	// Prediction metrics
	PredictionsTotal   prometheus.Counter     // Successful predictions
	PredictionFailures *prometheus.CounterVec // Failed predictions by failure kind
	FallbackEncodings  *prometheus.CounterVec // Unseen categorical values by attribute
	PredictionLatency  prometheus.Histogram   // Service-level prediction latency
	PredictedPrice     prometheus.Histogram   // Distribution of predicted prices
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter

	// Bundle metrics
	BundleFeatures prometheus.Gauge // Width of the loaded feature vector
	BundleLoadedAt prometheus.Gauge // Unix time the bundle was loaded

	// HTTP metrics
	HTTPRequests      *prometheus.CounterVec   // Requests by route and status code
	HTTPDuration      *prometheus.HistogramVec // Request duration by route
	WSConnections     prometheus.Gauge         // Open websocket prediction streams
	PredictionLogErrs prometheus.Counter       // Failed writes to the prediction log
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Total number of successful price predictions",
		}),
		PredictionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_failures_total",
			Help:      "Total number of failed price predictions by kind",
		}, []string{"kind"}),
		FallbackEncodings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_encodings_total",
			Help:      "Categorical values encoded with the fallback code",
		}, []string{"attribute"}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_latency_seconds",
			Help:      "Prediction latency in seconds (validation, encoding and inference)",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		PredictedPrice: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "predicted_price",
			Help:      "Distribution of predicted prices",
			Buckets:   prometheus.ExponentialBuckets(2500, 1.5, 12),
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_cache_hits_total",
			Help:      "Predictions served from the result cache",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_cache_misses_total",
			Help:      "Predictions that required model inference",
		}),
		BundleFeatures: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bundle_features",
			Help:      "Number of features expected by the loaded model",
		}),
		BundleLoadedAt: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bundle_loaded_timestamp_seconds",
			Help:      "Unix time at which the artifact bundle was loaded",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Open websocket prediction streams",
		}),
		PredictionLogErrs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_log_errors_total",
			Help:      "Failed writes to the prediction log",
		}),
	}
}

// SetBundleInfo records the shape and load time of the active bundle.
func (m *Metrics) SetBundleInfo(features int, loadedAt time.Time) {
	m.BundleFeatures.Set(float64(features))
	m.BundleLoadedAt.Set(float64(loadedAt.Unix()))
}
