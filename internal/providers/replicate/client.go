// Package replicate wraps the Replicate predictions API: create a prediction,
// poll it until a terminal status, and fetch output assets.
package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Terminal prediction statuses reported by the provider.
const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// Options controls how the client is configured.
type Options struct {
	BaseURL      string
	APIToken     string
	Model        string
	HTTPClient   *http.Client
	PollInterval time.Duration
	WaitTimeout  time.Duration
}

// Client is a thin facade over the predictions API. Rows are attempted once;
// the client never retries on its own.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	token        string
	model        string
	pollInterval time.Duration
	waitTimeout  time.Duration
}

func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://api.replicate.com/v1"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}
	wait := opts.WaitTimeout
	if wait <= 0 {
		wait = 5 * time.Minute
	}
	return &Client{
		httpClient:   client,
		baseURL:      base,
		token:        strings.TrimSpace(opts.APIToken),
		model:        strings.TrimSpace(opts.Model),
		pollInterval: poll,
		waitTimeout:  wait,
	}
}

// Model returns the configured model version identifier. Empty means the
// provider is not usable and callers should fail structurally.
func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

// Prediction mirrors the provider's prediction resource.
type Prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
}

// OutputURLs flattens the model output into a list of asset URLs. Replicate
// models return either a single URL string or a list of them.
func (p *Prediction) OutputURLs() []string {
	if p == nil || len(p.Output) == 0 {
		return nil
	}
	var single string
	if err := json.Unmarshal(p.Output, &single); err == nil {
		if single = strings.TrimSpace(single); single != "" {
			return []string{single}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(p.Output, &many); err == nil {
		out := make([]string, 0, len(many))
		for _, u := range many {
			if u = strings.TrimSpace(u); u != "" {
				out = append(out, u)
			}
		}
		return out
	}
	return nil
}

// PredictionError carries the provider's terminal failure detail.
type PredictionError struct {
	ID     string
	Status string
	Detail string
}

func (e *PredictionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("replicate: prediction %s ended %s", e.ID, e.Status)
	}
	return fmt.Sprintf("replicate: prediction %s ended %s: %s", e.ID, e.Status, e.Detail)
}

// Create submits a new prediction for the configured model.
func (c *Client) Create(ctx context.Context, input map[string]any) (*Prediction, error) {
	if c.token == "" {
		return nil, errors.New("replicate: API token is missing")
	}
	if c.model == "" {
		return nil, errors.New("replicate: model version is missing")
	}
	body, err := json.Marshal(map[string]any{
		"version": c.model,
		"input":   input,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predictions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.token)

	return c.do(req)
}

// Wait polls the prediction at the configured interval until it reaches a
// terminal status or the wait timeout elapses. Non-success terminal statuses
// surface as *PredictionError.
func (c *Client) Wait(ctx context.Context, p *Prediction) (*Prediction, error) {
	if p == nil {
		return nil, errors.New("replicate: prediction is required")
	}
	deadline := time.Now().Add(c.waitTimeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	current := p
	for {
		switch current.Status {
		case StatusSucceeded:
			return current, nil
		case StatusFailed, StatusCanceled:
			return nil, &PredictionError{ID: current.ID, Status: current.Status, Detail: current.Error}
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("replicate: prediction %s timed out after %s in status %q", current.ID, c.waitTimeout, current.Status)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		next, err := c.get(ctx, current)
		if err != nil {
			return nil, err
		}
		current = next
	}
}

// Fetch downloads an output asset.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("replicate: download asset: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("replicate: download asset: http %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("replicate: download asset: %w", err)
	}
	return data, nil
}

func (c *Client) get(ctx context.Context, p *Prediction) (*Prediction, error) {
	url := strings.TrimSpace(p.URLs.Get)
	if url == "" {
		url = fmt.Sprintf("%s/predictions/%s", c.baseURL, p.ID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+c.token)
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*Prediction, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("replicate: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Detail string `json:"detail"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Detail != "" {
			return nil, fmt.Errorf("replicate: http %d: %s", resp.StatusCode, apiErr.Detail)
		}
		return nil, fmt.Errorf("replicate: http %d", resp.StatusCode)
	}

	var p Prediction
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("replicate: decode prediction: %w", err)
	}
	return &p, nil
}
