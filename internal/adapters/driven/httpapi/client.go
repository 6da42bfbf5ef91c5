// Package httpapi is the JSON-over-HTTP transport shared by the OpenAI and
// Ollama provider adapters. It retries rate limits and gateway failures with
// exponential backoff and turns non-2xx responses into *StatusError.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/ragkit/internal/logger"
)

// Default transport settings.
const (
	DefaultRetries    = 2
	DefaultBackoff    = 250 * time.Millisecond
	DefaultMaxBackoff = 5 * time.Second

	maxErrorBody = 4096
)

// Options configure a Client.
type Options struct {
	// Provider names the remote in error messages, e.g. "openai".
	Provider string

	// BaseURL is prefixed to every request path. A trailing slash is dropped.
	BaseURL string

	// Header is sent with every request.
	Header http.Header

	// Timeout bounds a single attempt. Zero means no timeout.
	Timeout time.Duration

	// Retries is the number of extra attempts for retryable failures.
	// Negative disables retries; zero uses DefaultRetries.
	Retries int

	// Backoff is the delay before the first retry; it doubles per attempt.
	Backoff time.Duration
}

// Client sends JSON requests to one provider.
type Client struct {
	http     *http.Client
	provider string
	baseURL  string
	header   http.Header
	retries  int
	backoff  time.Duration
}

// New creates a Client.
func New(opts Options) *Client {
	retries := opts.Retries
	switch {
	case retries == 0:
		retries = DefaultRetries
	case retries < 0:
		retries = 0
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	header := opts.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	return &Client{
		http:     &http.Client{Timeout: opts.Timeout},
		provider: opts.Provider,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		header:   header,
		retries:  retries,
		backoff:  backoff,
	}
}

// BaseURL returns the normalised base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// StatusError is a non-2xx response.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s error (status %d)", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed if sent again.
func (e *StatusError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Post sends in as JSON to path and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", c.provider, err)
	}
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Get fetches path and decodes the response into out. A nil out discards
// the body.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	delay := c.backoff
	for attempt := 0; ; attempt++ {
		err := c.once(ctx, method, path, body, out)
		var statusErr *StatusError
		if err == nil || !errors.As(err, &statusErr) || !statusErr.Retryable() || attempt >= c.retries {
			return err
		}

		wait := delay
		if statusErr.RetryAfter > 0 {
			wait = statusErr.RetryAfter
		}
		wait = min(wait, DefaultMaxBackoff)
		logger.Debug("%s %s: %v, retrying in %s", c.provider, path, statusErr, wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}

func (c *Client) once(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", c.provider, err)
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: send request: %w", c.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Provider:   c.provider,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw),
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.provider, err)
	}
	return nil
}

// errorMessage extracts the message from the error bodies providers send:
// {"error":"..."} from Ollama, {"error":{"message":"..."}} from OpenAI.
func errorMessage(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil && len(envelope.Error) > 0 {
		var text string
		if json.Unmarshal(envelope.Error, &text) == nil && text != "" {
			return text
		}
		var detail struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(envelope.Error, &detail) == nil && detail.Message != "" {
			return detail.Message
		}
	}
	return string(raw)
}

func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
