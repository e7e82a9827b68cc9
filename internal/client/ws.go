package client

import (
	"context"
	"fmt"
	"time"

	"autoprice/internal/ml"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type WS struct {
	url     string
	timeout time.Duration
}

// NewWS creates a streaming client for the /api/ws/predict endpoint. timeout
// bounds each request/response round trip.
func NewWS(u string, timeout time.Duration) WS {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return WS{url: u, timeout: timeout}
}

// Stream sends every payload on one connection and forwards each reply to
// results in order. Payloads of type []byte are sent verbatim; anything else is
// JSON encoded. Stream returns nil once payloads is closed and drained.
func (w WS) Stream(ctx context.Context, payloads <-chan any, results chan<- ml.PredictionResult) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	log.Debug().Str("url", w.url).Msg("prediction stream connected")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p, ok := <-payloads:
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
				return nil
			}

			res, err := w.roundTrip(conn, p)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return err
			}

			select {
			case results <- res:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (w WS) roundTrip(conn *websocket.Conn, p any) (ml.PredictionResult, error) {
	conn.SetWriteDeadline(time.Now().Add(w.timeout))
	var err error
	if raw, ok := p.([]byte); ok {
		err = conn.WriteMessage(websocket.TextMessage, raw)
	} else {
		err = conn.WriteJSON(p)
	}
	if err != nil {
		return ml.PredictionResult{}, fmt.Errorf("write message failed: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(w.timeout))
	var res ml.PredictionResult
	if err := conn.ReadJSON(&res); err != nil {
		return ml.PredictionResult{}, fmt.Errorf("read message failed: %w", err)
	}
	return res, nil
}
