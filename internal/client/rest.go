// Package client talks to a running prediction server over REST and WebSocket.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"autoprice/internal/ml"

	"github.com/go-resty/resty/v2"
)

type Client struct {
	base string
	rest *resty.Client
}

func NewREST(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second) // default fallback
	}
	r.SetHeader("Accept", "application/json")
	return &Client{base: strings.TrimRight(base, "/"), rest: r}
}

// Predict posts one payload. A rejected request is not an error: the server's
// failure body is returned with Success false.
func (c *Client) Predict(ctx context.Context, payload any) (ml.PredictionResult, error) {
	var res ml.PredictionResult
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&res).
		SetError(&res).
		Post(c.base + "/api/predict")
	if err != nil {
		return ml.PredictionResult{}, err
	}
	switch resp.StatusCode() {
	case http.StatusOK, http.StatusBadRequest:
		return res, nil
	default:
		return ml.PredictionResult{}, fmt.Errorf("predict: unexpected status %d: %s", resp.StatusCode(), resp.String())
	}
}

func (c *Client) Stats(ctx context.Context) (ml.StatsReport, error) {
	var out ml.StatsReport
	err := c.get(ctx, "/api/stats", &out)
	return out, err
}

func (c *Client) Options(ctx context.Context) (ml.OptionsReport, error) {
	var out ml.OptionsReport
	err := c.get(ctx, "/api/options", &out)
	return out, err
}

// Health returns the server's health document.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.get(ctx, "/health", &out)
	return out, err
}

func (c *Client) ModelInfo(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.get(ctx, "/model/info", &out)
	return out, err
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(out).
		Get(c.base + path)
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d: %s", path, resp.StatusCode(), resp.String())
	}
	return nil
}
