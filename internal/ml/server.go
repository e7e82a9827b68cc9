package ml

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"autoprice/internal/common"
	"autoprice/internal/features"
	"autoprice/internal/storage"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// RequestIDHeader carries the per-request id in both directions.
const RequestIDHeader = "X-Request-ID"

// PredictionLog persists the outcome of every prediction request.
type PredictionLog interface {
	StorePrediction(rec storage.PredictionRecord) error
}

// HTTPMetrics defines the metrics recorded by the HTTP layer.
type HTTPMetrics interface {
	RequestObserve(route string, status int, seconds float64)
	WSConnectionsAdd(delta float64)
	PredictionLogErrorInc()
}

type ServerConfig struct {
	Port           int
	RequestTimeout time.Duration
	WSReadLimit    int64
	MetricsHandler http.Handler  // served on /metrics when set
	Metrics        HTTPMetrics   // optional
	PredictionLog  PredictionLog // optional
}

// Server exposes a Service over HTTP and WebSocket.
type Server struct {
	service  *Service
	config   ServerConfig
	handler  http.Handler
	server   *http.Server
	upgrader websocket.Upgrader
	started  time.Time
}

// NewServer creates a new HTTP server for price prediction.
func NewServer(service *Service, config ServerConfig) *Server {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = common.DefaultRequestTimeout
	}
	if config.WSReadLimit <= 0 {
		config.WSReadLimit = common.DefaultWSReadLimit
	}

	s := &Server{
		service:  service,
		config:   config,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		started:  time.Now(),
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/predict", s.instrument("/api/predict", s.handlePredict))
	mux.Handle("GET /api/stats", s.instrument("/api/stats", s.handleStats))
	mux.Handle("GET /api/options", s.instrument("/api/options", s.handleOptions))
	mux.Handle("GET /api/ws/predict", s.instrument("/api/ws/predict", s.handleWSPredict))
	mux.Handle("GET /health", s.instrument("/health", s.handleHealth))
	mux.Handle("GET /model/info", s.instrument("/model/info", s.handleModelInfo))
	if config.MetricsHandler != nil {
		mux.Handle("GET /metrics", config.MetricsHandler)
	}

	s.handler = requestID(recovery(mux))
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", config.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// Start begins serving HTTP requests. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting prediction server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.WSReadLimit))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, failure(fmt.Errorf("invalid request: %w", err)))
		return
	}

	payload, err := decodePayload(body)
	if err != nil {
		res := failure(err)
		s.logPrediction(r.Context(), "http", body, res)
		writeJSON(w, http.StatusBadRequest, res)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()

	res := s.service.Predict(ctx, payload)
	s.logPrediction(r.Context(), "http", body, res)

	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, res)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Stats())
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Options())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	b := s.service.Bundle()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"model_type":     b.ModelType(),
		"features":       len(b.order),
		"loaded_at":      b.LoadedAt(),
		"uptime_seconds": time.Since(s.started).Seconds(),
	})
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	b := s.service.Bundle()
	stats := b.Stats()

	encoders := make(map[string]int)
	for _, col := range features.CategoricalColumns() {
		encoders[col] = b.Encoder().Size(col)
	}

	info := map[string]any{
		"model_type":    b.ModelType(),
		"feature_order": b.FeatureOrder(),
		"train_score":   stats.TrainScore,
		"test_score":    stats.TestScore,
		"encoders":      encoders,
		"cache_enabled": s.service.cache != nil,
	}
	if s.service.reference != nil {
		info["reference_rows"] = s.service.reference.Rows()
	}
	writeJSON(w, http.StatusOK, info)
}

// handleWSPredict answers each text frame with one PredictionResult, in order.
func (s *Server) handleWSPredict(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	if s.config.Metrics != nil {
		s.config.Metrics.WSConnectionsAdd(1)
		defer s.config.Metrics.WSConnectionsAdd(-1)
	}

	conn.SetReadLimit(s.config.WSReadLimit)
	logger := log.With().Str("request_id", requestIDFrom(r.Context())).Logger()
	logger.Debug().Str("remote", r.RemoteAddr).Msg("prediction stream opened")

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("prediction stream closed unexpectedly")
			}
			return
		}

		var res PredictionResult
		payload, err := decodePayload(msg)
		if err != nil {
			res = failure(err)
		} else {
			ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
			res = s.service.Predict(ctx, payload)
			cancel()
		}
		s.logPrediction(withRequestID(r.Context(), uuid.NewString()), "ws", msg, res)

		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(res); err != nil {
			logger.Warn().Err(err).Msg("prediction stream write failed")
			return
		}
	}
}

func (s *Server) logPrediction(ctx context.Context, source string, body []byte, res PredictionResult) {
	id := requestIDFrom(ctx)
	event := log.Info()
	if !res.Success {
		event = log.Warn().Str("error", res.Error)
	} else {
		event = event.Float64("predicted_price", *res.PredictedPrice)
	}
	event.Str("request_id", id).Str("source", source).Strs("fallbacks", res.Fallbacks).Msg("prediction served")

	if s.config.PredictionLog == nil {
		return
	}
	rec := storage.PredictionRecord{
		RequestID:      id,
		Timestamp:      time.Now(),
		Source:         source,
		Success:        res.Success,
		PredictedPrice: res.PredictedPrice,
		Error:          res.Error,
		Fallbacks:      res.Fallbacks,
	}
	if json.Valid(body) {
		rec.Payload = json.RawMessage(body)
	}
	if err := s.config.PredictionLog.StorePrediction(rec); err != nil {
		log.Error().Err(err).Str("request_id", id).Msg("failed to store prediction")
		if s.config.Metrics != nil {
			s.config.Metrics.PredictionLogErrorInc()
		}
	}
}

// decodePayload accepts exactly one JSON object. Numbers are kept as
// json.Number so that integers survive unchanged.
func decodePayload(body []byte) (features.Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload features.Payload
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("invalid request: body must be a JSON object: %w", err)
	}
	if payload == nil {
		return nil, errors.New("invalid request: body must be a JSON object")
	}
	if dec.More() {
		return nil, errors.New("invalid request: trailing data after JSON object")
	}
	return payload, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("failed to write response")
	}
}

// middleware

type ctxKey struct{}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// requestID reuses a caller-supplied id or assigns a fresh uuid.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), id)))
	})
}

func recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error().
					Interface("panic", rec).
					Str("request_id", requestIDFrom(r.Context())).
					Str("path", r.URL.Path).
					Msg("handler panicked")
				writeJSON(w, http.StatusInternalServerError, PredictionResult{Success: false, Error: "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) instrument(route string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if s.config.Metrics != nil {
				s.config.Metrics.RequestObserve(route, rec.status, time.Since(start).Seconds())
			}
		}()
		h(rec, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }
