/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package client talks to the scaffolder task API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/NissesSenap/azdo-scaffolder/pkg/api"
)

const defaultPollInterval = 2 * time.Second

// ErrNotFound is returned when the task does not exist.
var ErrNotFound = errors.New("task not found")

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for API requests.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// WithLogger sets the logger for the client.
func WithLogger(l logr.Logger) ClientOption {
	return func(cl *Client) { cl.logger = l }
}

// WithClock sets the clock WaitForTask sleeps on.
func WithClock(c clock.Clock) ClientOption {
	return func(cl *Client) { cl.clock = c }
}

// Client is a client for the scaffolder task API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     logr.Logger
	clock      clock.Clock
}

// NewClient creates an API client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logr.Discard(),
		clock:      clock.RealClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError is a non-success response of the API.
type StatusError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *StatusError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("unexpected status %d: %s: %s", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, want int) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != want {
		var errResp api.ErrorResponse
		if json.Unmarshal(respBody, &errResp) != nil || errResp.Error == "" {
			errResp.Error = strings.TrimSpace(string(respBody))
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: errResp.Error, Details: errResp.Details}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// ListActions returns the actions the server can run.
func (c *Client) ListActions(ctx context.Context) ([]api.ActionResponse, error) {
	var out []api.ActionResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/actions", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTask submits a task.
func (c *Client) CreateTask(ctx context.Context, req api.CreateTaskRequest) (*api.TaskResponse, error) {
	var out api.TaskResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/tasks", req, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	c.logger.V(1).Info("task created", "taskID", out.ID)
	return &out, nil
}

// GetTask fetches the current state of a task.
func (c *Client) GetTask(ctx context.Context, taskID string) (*api.TaskResponse, error) {
	var out api.TaskResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/tasks/"+url.PathEscape(taskID), nil, &out, http.StatusOK)
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, taskID)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// IsTerminal reports whether the phase is final.
func IsTerminal(phase string) bool {
	return phase == api.PhaseCompleted || phase == api.PhaseFailed
}

// WaitForTask polls the task every interval until it completes or fails.
func (c *Client) WaitForTask(ctx context.Context, taskID string, interval time.Duration) (*api.TaskResponse, error) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	for {
		t, err := c.GetTask(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if IsTerminal(t.Phase) {
			return t, nil
		}
		c.logger.V(1).Info("waiting for task", "taskID", taskID, "phase", t.Phase)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.clock.After(interval):
		}
	}
}

// StreamEvents follows the event stream of a task, calling fn for every
// event with a sequence greater than after. It returns once the server sends
// the completion message.
func (c *Client) StreamEvents(ctx context.Context, taskID string, after int64, fn func(api.TaskEvent)) (*api.TaskCompleteData, error) {
	u, err := url.Parse(c.baseURL + "/api/v1/tasks/" + url.PathEscape(taskID) + "/events")
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if after > 0 {
		u.RawQuery = "after=" + strconv.FormatInt(after, 10)
	}

	// The stream outlives any request timeout; ctx bounds it instead.
	hc := *c.httpClient
	hc.Timeout = 0
	conn, resp, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{HTTPClient: &hc})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, taskID)
		}
		return nil, fmt.Errorf("connecting to event stream: %w", err)
	}
	defer conn.CloseNow() //nolint:errcheck
	conn.SetReadLimit(1 << 20)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading event stream: %w", err)
		}
		var msg struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decoding message: %w", err)
		}

		switch msg.Type {
		case "task_event":
			var e api.TaskEvent
			if err := json.Unmarshal(msg.Data, &e); err != nil {
				return nil, fmt.Errorf("decoding event: %w", err)
			}
			fn(e)
		case "task_complete":
			var done api.TaskCompleteData
			if err := json.Unmarshal(msg.Data, &done); err != nil {
				return nil, fmt.Errorf("decoding completion: %w", err)
			}
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return &done, nil
		default:
			c.logger.V(1).Info("ignoring unknown message", "type", msg.Type)
		}
	}
}
