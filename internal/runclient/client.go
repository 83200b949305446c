// Package runclient submits payloads to the /run evaluator.
//
// The evaluator is external: it accepts arbitrary text and answers with a JSON
// object carrying a "results" string and an "ast" string. Both are opaque here.
package runclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"runview/internal/logging"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 16 << 20

// Result is the decoded /run response.
type Result struct {
	Results string `json:"results"`
	AST     string `json:"ast"`
}

// Config configures a Client.
type Config struct {
	Endpoint string        // full URL, e.g. http://localhost:8000/run
	Timeout  time.Duration // zero disables the per-request timeout
}

// Client posts payloads to the evaluator.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// New creates a client for the given endpoint.
func New(cfg Config) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Endpoint returns the URL requests are sent to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Close releases idle keep-alive connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// Run posts payload verbatim as the request body and decodes the response.
// No headers are set explicitly.
func (c *Client) Run(ctx context.Context, payload string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader([]byte(payload)))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}

	logging.APIDebug("POST %s (%d bytes)", c.endpoint, len(payload))
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, fmt.Errorf("failed to read response: %w", err)
	}

	logging.APIDebug("POST %s -> %d in %s", c.endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, &StatusError{Code: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	return decode(body)
}

// decode requires a JSON object with string fields results and ast.
func decode(body []byte) (Result, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var res Result
	if err := stringField(fields, "results", &res.Results); err != nil {
		return Result{}, err
	}
	if err := stringField(fields, "ast", &res.AST); err != nil {
		return Result{}, err
	}
	return res, nil
}

func stringField(fields map[string]json.RawMessage, name string, dst *string) error {
	raw, ok := fields[name]
	if !ok || string(raw) == "null" {
		return fmt.Errorf("%w: %q", ErrMissingField, name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: field %q is not a string", ErrMalformedResponse, name)
	}
	return nil
}

// truncate cuts s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
