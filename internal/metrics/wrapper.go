package metrics

import "strconv"

// Recorder adapts Metrics to the narrow interfaces consumed by the
// prediction service and HTTP server so those packages need not import
// Prometheus.
type Recorder struct {
	m *Metrics
}

func NewRecorder(m *Metrics) *Recorder {
	return &Recorder{m: m}
}

func (r *Recorder) PredictionsInc() {
	r.m.PredictionsTotal.Inc()
}

func (r *Recorder) FailuresInc(kind string) {
	r.m.PredictionFailures.WithLabelValues(kind).Inc()
}

func (r *Recorder) FallbackInc(attribute string) {
	r.m.FallbackEncodings.WithLabelValues(attribute).Inc()
}

func (r *Recorder) LatencyObserve(seconds float64) {
	r.m.PredictionLatency.Observe(seconds)
}

func (r *Recorder) PriceObserve(price float64) {
	r.m.PredictedPrice.Observe(price)
}

func (r *Recorder) CacheHitInc() {
	r.m.CacheHits.Inc()
}

func (r *Recorder) CacheMissInc() {
	r.m.CacheMisses.Inc()
}

func (r *Recorder) RequestObserve(route string, status int, seconds float64) {
	r.m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	r.m.HTTPDuration.WithLabelValues(route).Observe(seconds)
}

func (r *Recorder) WSConnectionsAdd(delta float64) {
	r.m.WSConnections.Add(delta)
}

func (r *Recorder) PredictionLogErrorInc() {
	r.m.PredictionLogErrs.Inc()
}
