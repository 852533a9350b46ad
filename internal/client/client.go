// Package client talks to a running forestd model server.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"forest-predictor/internal/ml"

	"github.com/go-resty/resty/v2"
)

const defaultTimeout = 5 * time.Second

// Options tune a Client. Zero values select the defaults.
type Options struct {
	Timeout    time.Duration
	RetryCount int
}

// Client calls the /predict, /health and /model/info endpoints.
type Client struct {
	base string
	rest *resty.Client
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Body)
}

func New(baseURL string, opts Options) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	r := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if opts.RetryCount > 0 {
		r.SetRetryCount(opts.RetryCount).
			SetRetryWaitTime(100 * time.Millisecond).
			AddRetryCondition(func(resp *resty.Response, err error) bool {
				return err != nil || resp.StatusCode() >= 500
			})
	}

	return &Client{base: strings.TrimRight(baseURL, "/"), rest: r}, nil
}

// Predict returns the label the server assigns to features.
func (c *Client) Predict(ctx context.Context, features []float64) (int, error) {
	out, err := c.PredictRequest(ctx, ml.PredictionRequest{Features: features})
	if err != nil {
		return 0, err
	}
	return out.Label, nil
}

// PredictRequest sends req as is and returns the full response.
func (c *Client) PredictRequest(ctx context.Context, req ml.PredictionRequest) (ml.PredictionResponse, error) {
	var out ml.PredictionResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&out).
		Post(c.base + "/predict")
	if err := check(resp, err); err != nil {
		return ml.PredictionResponse{}, err
	}
	return out, nil
}

// Health fetches /health. An unhealthy server answers 503, which is
// returned as a *StatusError.
func (c *Client) Health(ctx context.Context) (ml.HealthStatus, error) {
	var out ml.HealthStatus
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&out).
		Get(c.base + "/health")
	if err := check(resp, err); err != nil {
		return ml.HealthStatus{}, err
	}
	return out, nil
}

func (c *Client) ModelInfo(ctx context.Context) (ml.ModelInfo, error) {
	var out ml.ModelInfo
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&out).
		Get(c.base + "/model/info")
	if err := check(resp, err); err != nil {
		return ml.ModelInfo{}, err
	}
	return out, nil
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return &StatusError{
			StatusCode: resp.StatusCode(),
			Body:       strings.TrimSpace(resp.String()),
		}
	}
	return nil
}
