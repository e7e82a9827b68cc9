package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"autoprice/internal/common"
	"autoprice/internal/features"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

// Failure kinds reported to metrics.
const (
	FailureInvalidInput = "invalid_input"
	FailureInference    = "inference"
	FailureCancelled    = "cancelled"
)

// MetricsInterface defines the metrics the prediction service records.
type MetricsInterface interface {
	PredictionsInc()
	FailuresInc(kind string)
	FallbackInc(attribute string)
	LatencyObserve(seconds float64)
	PriceObserve(price float64)
	CacheHitInc()
	CacheMissInc()
}

// InferenceError wraps any failure raised by the model, including panics.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string { return "model inference failed: " + e.Err.Error() }

func (e *InferenceError) Unwrap() error { return e.Err }

// PredictionResult is the response contract handed to callers. It is either a
// success with a price and currency or a failure with a message, never both.
type PredictionResult struct {
	Success        bool     `json:"success"`
	PredictedPrice *float64 `json:"predicted_price,omitempty"`
	Currency       string   `json:"currency,omitempty"`
	Error          string   `json:"error,omitempty"`

	// Fallbacks lists categorical columns that were not recognised. Kept for
	// logging; not part of the wire contract.
	Fallbacks []string `json:"-"`
}

func success(price float64, fallbacks []string) PredictionResult {
	p := roundPrice(price)
	return PredictionResult{Success: true, PredictedPrice: &p, Currency: common.Currency, Fallbacks: fallbacks}
}

func failure(err error) PredictionResult {
	return PredictionResult{Success: false, Error: err.Error()}
}

type ServiceConfig struct {
	CacheSize int // 0 disables the prediction cache
}

// Service turns request payloads into price predictions. It holds no mutable
// state besides the optional cache, whose entries are pure functions of their key.
type Service struct {
	bundle    *Bundle
	reference *Reference
	metrics   MetricsInterface
	cache     *lru.Cache[string, float64]
}

// NewService wires a service around an already validated bundle. reference and
// metrics may be nil.
func NewService(bundle *Bundle, reference *Reference, metrics MetricsInterface, config ServiceConfig) (*Service, error) {
	if bundle == nil {
		return nil, fmt.Errorf("service: nil bundle")
	}
	s := &Service{bundle: bundle, reference: reference, metrics: metrics}
	if config.CacheSize > 0 {
		c, err := lru.New[string, float64](config.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("service: create cache: %w", err)
		}
		s.cache = c
	}
	return s, nil
}

func (s *Service) Bundle() *Bundle { return s.bundle }

// Predict never returns an error and never panics; every failure is folded into
// the result.
func (s *Service) Predict(ctx context.Context, payload features.Payload) PredictionResult {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.LatencyObserve(time.Since(start).Seconds())
		}
	}()

	price, fallbacks, err := s.predict(ctx, payload)
	if err != nil {
		s.recordFailure(err)
		return failure(err)
	}

	if s.metrics != nil {
		s.metrics.PredictionsInc()
		s.metrics.PriceObserve(price)
		for _, col := range fallbacks {
			s.metrics.FallbackInc(col)
		}
	}
	return success(price, fallbacks)
}

func (s *Service) predict(ctx context.Context, payload features.Payload) (float64, []string, error) {
	vec, err := s.bundle.builder.Build(payload)
	if err != nil {
		return 0, nil, err
	}

	if err := ctx.Err(); err != nil {
		return 0, nil, fmt.Errorf("request cancelled: %w", err)
	}

	var key string
	if s.cache != nil {
		key = cacheKey(vec.Values)
		if price, ok := s.cache.Get(key); ok {
			if s.metrics != nil {
				s.metrics.CacheHitInc()
			}
			return price, vec.Fallbacks, nil
		}
		if s.metrics != nil {
			s.metrics.CacheMissInc()
		}
	}

	price, err := s.infer(vec.Values)
	if err != nil {
		return 0, nil, err
	}
	if s.cache != nil {
		s.cache.Add(key, price)
	}
	return price, vec.Fallbacks, nil
}

// infer runs the model on a single row, converting errors and panics into
// *InferenceError.
func (s *Service) infer(row []float64) (price float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Floats64("features", row).Msg("model panicked during inference")
			err = &InferenceError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	price, err = s.bundle.model.Predict(row)
	if err != nil {
		log.Error().Err(err).Floats64("features", row).Msg("model inference failed")
		return 0, &InferenceError{Err: err}
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, &InferenceError{Err: fmt.Errorf("model returned non-finite value %v", price)}
	}
	return price, nil
}

func (s *Service) recordFailure(err error) {
	if s.metrics == nil {
		return
	}
	var ie *InferenceError
	switch {
	case errors.As(err, &ie):
		s.metrics.FailuresInc(FailureInference)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.metrics.FailuresInc(FailureCancelled)
	default:
		s.metrics.FailuresInc(FailureInvalidInput)
	}
}

func roundPrice(v float64) float64 {
	return math.Round(v*100) / 100
}

func cacheKey(values []float64) string {
	var sb strings.Builder
	for i, v := range values {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatUint(math.Float64bits(v), 16))
	}
	return sb.String()
}
