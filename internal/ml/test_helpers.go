package ml

import (
	"sync"

	"autoprice/internal/features"
	"autoprice/internal/storage"
)

// MockMetrics implements MetricsInterface and HTTPMetrics for testing
type MockMetrics struct {
	mu          sync.Mutex
	predictions int
	failures    map[string]int
	fallbacks   map[string]int
	latencies   int
	prices      []float64
	cacheHits   int
	cacheMisses int
	requests    map[string]int
	wsOpen      float64
	logErrors   int
}

func (m *MockMetrics) PredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) FailuresInc(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures == nil {
		m.failures = make(map[string]int)
	}
	m.failures[kind]++
}

func (m *MockMetrics) FallbackInc(attribute string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fallbacks == nil {
		m.fallbacks = make(map[string]int)
	}
	m.fallbacks[attribute]++
}

func (m *MockMetrics) LatencyObserve(float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies++
}

func (m *MockMetrics) PriceObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices = append(m.prices, v)
}

func (m *MockMetrics) CacheHitInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheHits++
}

func (m *MockMetrics) CacheMissInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheMisses++
}

func (m *MockMetrics) RequestObserve(route string, status int, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.requests == nil {
		m.requests = make(map[string]int)
	}
	m.requests[route]++
}

func (m *MockMetrics) WSConnectionsAdd(delta float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wsOpen += delta
}

func (m *MockMetrics) PredictionLogErrorInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logErrors++
}

func (m *MockMetrics) snapshot() MockMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MockMetrics{
		predictions: m.predictions,
		failures:    copyCounts(m.failures),
		fallbacks:   copyCounts(m.fallbacks),
		latencies:   m.latencies,
		prices:      append([]float64(nil), m.prices...),
		cacheHits:   m.cacheHits,
		cacheMisses: m.cacheMisses,
		requests:    copyCounts(m.requests),
		wsOpen:      m.wsOpen,
		logErrors:   m.logErrors,
	}
}

func copyCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// memoryLog is an in-memory PredictionLog.
type memoryLog struct {
	mu      sync.Mutex
	records []storage.PredictionRecord
	err     error
}

func (l *memoryLog) StorePrediction(rec storage.PredictionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.records = append(l.records, rec)
	return nil
}

func (l *memoryLog) all() []storage.PredictionRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]storage.PredictionRecord(nil), l.records...)
}

// testEncoders covers every categorical column with a small vocabulary.
func testEncoders() map[string][]string {
	return map[string][]string{
		"make":            {"audi", "bmw", "toyota", "volvo"},
		"fuel-type":       {"diesel", "gas"},
		"aspiration":      {"std", "turbo"},
		"body-style":      {"convertible", "hatchback", "sedan", "wagon"},
		"drive-wheels":    {"4wd", "fwd", "rwd"},
		"engine-location": {"front", "rear"},
		"engine-type":     {"dohc", "l", "ohc", "ohcv"},
		"fuel-system":     {"1bbl", "2bbl", "mpfi"},
	}
}

// linearTestBundle returns a bundle whose price is
// 1000 + 50*horsepower + 10*engine-size + 500*make, with every other
// coefficient zero.
func linearTestBundle(tb interface{ Fatalf(string, ...any) }) *Bundle {
	order := features.Columns()
	coefs := make([]float64, len(order))
	for i, col := range order {
		switch col {
		case "horsepower":
			coefs[i] = 50
		case "engine-size":
			coefs[i] = 10
		case "make":
			coefs[i] = 500
		}
	}
	model, err := NewLinear(coefs, 1000)
	if err != nil {
		tb.Fatalf("linear model: %v", err)
	}
	stats := ModelStats{
		TrainScore: 0.98,
		TestScore:  0.91,
		FeatureImportance: map[string]float64{
			"engine-size": 0.6,
			"curb-weight": 0.2,
			"horsepower":  0.1,
			"width":       0.05,
			"make":        0.05,
		},
	}
	b, err := NewBundle(model, ModelLinear, testEncoders(), order, stats)
	if err != nil {
		tb.Fatalf("bundle: %v", err)
	}
	return b
}
