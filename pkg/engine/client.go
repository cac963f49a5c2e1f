// Package engine is the HTTP client for the external training engine. The
// engine owns simulation, optimization, checkpointing and video rendering;
// this client only submits jobs and observes them.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rlworks/rollout/pkg/core"
)

// DefaultBaseURL is where a locally running engine listens.
const DefaultBaseURL = "http://127.0.0.1:8870"

const defaultPollInterval = 2 * time.Second

// Client talks to one engine instance.
type Client struct {
	baseURL      string
	token        string
	httpClient   *http.Client
	dialer       *websocket.Dialer
	logger       *slog.Logger
	pollInterval time.Duration
}

type ClientOption func(*Client)

func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates an engine client with pooled connections and keepalive.
func NewClient(opts ...ClientOption) *Client {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	c := &Client{
		baseURL:      DefaultBaseURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second, Transport: transport},
		dialer:       websocket.DefaultDialer,
		logger:       slog.Default(),
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitJob submits a training or evaluation job.
func (c *Client) SubmitJob(ctx context.Context, req JobRequest) (*Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodPost, "/v1/jobs", req, &job); err != nil {
		return nil, err
	}
	c.logger.Info("Submitted job", "id", job.ID, "kind", job.Kind)
	return &job, nil
}

// Job fetches the current state of a job.
func (c *Client) Job(ctx context.Context, id string) (*Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodGet, "/v1/jobs/"+id, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Watch streams progress events for a job over WebSocket. The returned
// channel is closed when the job reaches a terminal status, the stream ends,
// or ctx is cancelled.
func (c *Client) Watch(ctx context.Context, id string) (<-chan core.Progress, error) {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, _, err := c.dialer.DialContext(ctx, c.wsURL("/v1/jobs/"+id+"/events"), header)
	if err != nil {
		return nil, fmt.Errorf("engine: failed to open event stream: %w", err)
	}

	out := make(chan core.Progress, 64)
	go func() {
		defer close(out)
		defer conn.Close()

		// Unblock ReadJSON when the caller gives up.
		stop := context.AfterFunc(ctx, func() {
			conn.Close()
		})
		defer stop()

		for {
			var p core.Progress
			if err := conn.ReadJSON(&p); err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					c.logger.Debug("Event stream ended", "job", id, "error", err)
				}
				return
			}
			select {
			case out <- p:
			case <-ctx.Done():
				return
			}
			if JobState(p.Status).Terminal() {
				return
			}
		}
	}()
	return out, nil
}

// Wait blocks until the job finishes, invoking onProgress (when non-nil) for
// each event. It prefers the WebSocket stream and falls back to polling when
// the stream cannot be opened. The final job state is always re-fetched.
func (c *Client) Wait(ctx context.Context, id string, onProgress func(core.Progress)) (*Job, error) {
	stream, err := c.Watch(ctx, id)
	if err != nil {
		c.logger.Debug("Falling back to polling", "job", id, "error", err)
		return c.poll(ctx, id, onProgress)
	}

	for p := range stream {
		if onProgress != nil {
			onProgress(p)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	job, err := c.Job(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.State.Terminal() {
		return job, nil
	}
	// The stream dropped before a terminal event; the job is still going.
	c.logger.Debug("Event stream dropped mid-job, polling", "job", id)
	return c.poll(ctx, id, onProgress)
}

func (c *Client) poll(ctx context.Context, id string, onProgress func(core.Progress)) (*Job, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		job, err := c.Job(ctx, id)
		if err != nil {
			return nil, err
		}
		if onProgress != nil {
			onProgress(core.Progress{
				JobID:     job.ID,
				Step:      job.Step,
				Status:    string(job.State),
				Timestamp: job.UpdatedAt,
			})
		}
		if job.State.Terminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("engine: failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("engine: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = resp.Status
		}
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("engine: failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) wsURL(path string) string {
	url := c.baseURL + path
	switch {
	case strings.HasPrefix(url, "https://"):
		return "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		return "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url
}
