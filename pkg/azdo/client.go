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

package azdo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"
)

const (
	// APIVersion is the REST API version used for pipelines and git calls.
	APIVersion = "7.1"
	// PermissionsAPIVersion is required by the pipeline permissions endpoint.
	PermissionsAPIVersion = "7.1-preview.1"

	// DefaultHost is the Azure DevOps Services host.
	DefaultHost = "dev.azure.com"

	maxResponseSize = 1 << 20
	retryBaseDelay  = 500 * time.Millisecond
	retryMaxDelay   = 10 * time.Second
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for API requests.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithLogger sets the logger for the client.
func WithLogger(l logr.Logger) ClientOption {
	return func(cl *Client) { cl.logger = l }
}

// WithMaxRetries retries transport failures and 5xx responses up to n times
// with exponential backoff.
func WithMaxRetries(n int) ClientOption {
	return func(cl *Client) { cl.maxRetries = n }
}

// WithClock sets the clock used for retry backoff.
func WithClock(c clock.Clock) ClientOption {
	return func(cl *Client) { cl.clock = c }
}

// Client is a minimal Azure DevOps REST client covering pipelines, pipeline
// permissions and git repositories.
type Client struct {
	baseURL    string
	auth       AuthHandler
	httpClient *http.Client
	logger     logr.Logger
	maxRetries int
	clock      clock.Clock
}

// NewClient creates a client for the given host. The host may carry an
// explicit scheme (on-prem servers, tests); otherwise https is used.
func NewClient(host string, auth AuthHandler, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    BaseURL(host),
		auth:       auth,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logr.Discard(),
		clock:      clock.RealClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root for a host.
func BaseURL(host string) string {
	if host == "" {
		host = DefaultHost
	}
	host = strings.TrimRight(host, "/")
	if strings.Contains(host, "://") {
		return host
	}
	return "https://" + host
}

// OrganizationURL returns the URL credentials are looked up by.
func OrganizationURL(host, organization string) string {
	return BaseURL(host) + "/" + url.PathEscape(organization)
}

func projectPath(organization, project string) string {
	return "/" + url.PathEscape(organization) + "/" + url.PathEscape(project)
}

// send performs one request and returns the status and body. Only transport
// failures are returned as errors.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any) (int, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.auth != nil {
		req.Header.Set("Authorization", c.auth.AuthorizationHeader())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// do performs a request, retrying when configured, and decodes a 2xx body into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := backoff(attempt)
			c.logger.V(1).Info("retrying request", "method", method, "path", path, "attempt", attempt, "delay", delay, "error", lastErr.Error())
			select {
			case <-c.clock.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		status, respBody, err := c.send(ctx, method, path, query, body)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			lastErr = err
			continue
		}

		if status < 200 || status >= 300 {
			lastErr = parseAPIError(status, respBody)
			if status >= 500 {
				continue
			}
			return lastErr
		}

		if out == nil || len(respBody) == 0 {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
		return nil
	}
	return lastErr
}

func backoff(attempt int) time.Duration {
	d := retryBaseDelay << (attempt - 1)
	if d > retryMaxDelay || d <= 0 {
		return retryMaxDelay
	}
	return d
}

func apiVersion(v string) url.Values {
	q := url.Values{}
	q.Set("api-version", v)
	return q
}
