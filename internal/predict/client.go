// Package predict calls the external travel-time model.
package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/KaramelBytes/deliverylens/internal/delivery"
)

// DefaultTimeout bounds a single prediction call.
const DefaultTimeout = 30 * time.Second

// Response is the model's answer, one value per submitted feature row.
type Response struct {
	PredictedTravelTimes []float64 `json:"predicted_travel_times"`
}

// Predictor is what the pipeline needs from the model.
type Predictor interface {
	Predict(ctx context.Context, features []delivery.Feature) ([]float64, error)
}

// Client posts feature rows to the prediction endpoint. Calls are not retried.
type Client struct {
	httpClient *http.Client
	url        string
}

// NewClient targets url (the full /predict endpoint).
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{httpClient: &http.Client{Timeout: timeout}, url: url}
}

// URL returns the configured endpoint.
func (c *Client) URL() string { return c.url }

// Predict submits features and returns the predicted durations in minutes.
func (c *Client) Predict(ctx context.Context, features []delivery.Feature) ([]float64, error) {
	resp, err := c.Do(ctx, Input{Kind: KindRecords, Features: features})
	if err != nil {
		return nil, err
	}
	return resp.PredictedTravelTimes, nil
}

// Do sends in to the model. The model always receives a bare array.
func (c *Client) Do(ctx context.Context, in Input) (*Response, error) {
	if c.url == "" {
		return nil, fmt.Errorf("prediction_url is not configured")
	}
	if len(in.Features) == 0 {
		return nil, ErrEmptyInput
	}
	payload, err := json.Marshal(in.Features)
	if err != nil {
		return nil, fmt.Errorf("marshal features: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &UnreachableError{URL: c.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, &ServiceError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(body)),
			RequestID:  resp.Header.Get("X-Request-Id"),
		}
	}
	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode prediction response: %w", err)
	}
	if out.PredictedTravelTimes == nil {
		return nil, fmt.Errorf("prediction response is missing predicted_travel_times")
	}
	return &out, nil
}
